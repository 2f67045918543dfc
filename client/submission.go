package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inercia/spaceclient/internal/logging"
)

// State is the lifecycle state of a Submission.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateQueued     State = "queued"
	StateRunning    State = "running"
	StateComplete   State = "complete"
	StateError      State = "error"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether the submission can no longer change state.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError || s == StateCancelled
}

// SubmitOption configures one call.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	eventData any
	triggerID *int
	listeners []typedListener
}

type typedListener struct {
	typ EventType
	fn  Listener
}

// WithEventData attaches the event_data value sent with the call.
func WithEventData(data any) SubmitOption {
	return func(o *submitOptions) {
		o.eventData = data
	}
}

// WithTriggerID sets the id of the component that triggered the call.
func WithTriggerID(id int) SubmitOption {
	return func(o *submitOptions) {
		o.triggerID = &id
	}
}

// WithListener registers fn before the call starts, so it observes every
// event, including the first pending status.
func WithListener(t EventType, fn Listener) SubmitOption {
	return func(o *submitOptions) {
		o.listeners = append(o.listeners, typedListener{typ: t, fn: fn})
	}
}

// responder answers the server's requests for the session hash or the
// call payload on transports that ask for them.
type responder interface {
	sendHash() error
	sendData(eventID string) error
}

// Submission is one in-flight call. Its events are delivered in order
// from a dedicated goroutine. All methods are safe for concurrent use,
// including from inside a listener.
type Submission struct {
	id       string
	client   *Client
	endpoint string
	apiName  string
	fnIndex  int
	queued   bool
	payload  Payload
	logger   *slog.Logger
	bus      *eventBus

	ctx        context.Context
	cancel     context.CancelFunc
	stopParent func() bool

	mu         sync.Mutex
	state      State
	terminal   bool
	started    bool
	lastStatus *Status
	eventID    string
	// generated accumulates sse_v2 generator output the diffs apply to.
	generated []any
}

// Submit starts a call to ep with the given input data and returns
// immediately. Failures, including unknown endpoints, are reported as a
// terminal status event rather than an error.
//
// Cancelling ctx cancels the call as if Cancel had been called.
func (c *Client) Submit(ctx context.Context, ep Endpoint, data []any, opts ...SubmitOption) *Submission {
	var o submitOptions
	for _, opt := range opts {
		opt(&o)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if data == nil {
		data = []any{}
	}

	fnIndex, label, resolveErr := ep.resolve(c.config, c.apiMap)
	if label == "" {
		label = ep.String()
	}

	callCtx, cancel := context.WithCancel(ctx)
	s := &Submission{
		id:       uuid.NewString(),
		client:   c,
		endpoint: label,
		fnIndex:  fnIndex,
		payload: Payload{
			Data:        data,
			FnIndex:     fnIndex,
			EventData:   o.eventData,
			TriggerID:   o.triggerID,
			SessionHash: c.sessionHash,
		},
		ctx:    callCtx,
		cancel: cancel,
		state:  StateIdle,
	}
	if dep, ok := c.config.Dependency(fnIndex); ok {
		s.apiName = dep.APIName
	}
	s.logger = logging.WithCall(c.logger, s.id, label, fnIndex)
	s.bus = newEventBus(s.logger)
	for _, l := range o.listeners {
		s.bus.on(l.typ, l.fn)
	}

	if ctx.Err() != nil {
		s.Cancel()
		return s
	}
	if resolveErr != nil {
		s.logger.Warn("Cannot submit call", "error", resolveErr)
		s.finish(Status{Stage: StageError, Message: resolveErr.Error()}, nil, false)
		return s
	}
	if !c.register(s) {
		s.finish(Status{Stage: StageError, Message: ErrClosed.Error()}, nil, false)
		return s
	}

	c.cancelDependents(s)

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	go s.run()

	// The callback may run before AfterFunc returns, so stopParent is
	// published under the lock release reads it with.
	stop := context.AfterFunc(ctx, s.Cancel)
	s.mu.Lock()
	s.stopParent = stop
	ended := s.terminal
	s.mu.Unlock()
	if ended {
		// A fast call may have released before stop was stored.
		stop()
	}
	return s
}

// ID returns the client-side identifier of the call.
func (s *Submission) ID() string {
	return s.id
}

// Endpoint returns the label events of this call carry.
func (s *Submission) Endpoint() string {
	return s.endpoint
}

// FnIndex returns the dependency index, or -1 when the endpoint was not found.
func (s *Submission) FnIndex() int {
	return s.fnIndex
}

// State returns the current lifecycle state.
func (s *Submission) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastStatus returns the most recent status of the call.
func (s *Submission) LastStatus() (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastStatus == nil {
		return Status{}, false
	}
	return *s.lastStatus, true
}

// Done is closed once every event of a finished call has been delivered,
// or promptly after Destroy.
func (s *Submission) Done() <-chan struct{} {
	return s.bus.done
}

// On registers fn for events of type t. Events dispatched before the
// registration are not replayed; use WithListener to see them all.
func (s *Submission) On(t EventType, fn Listener) ListenerID {
	return s.bus.on(t, fn)
}

// Off removes a listener registered with On or WithListener.
func (s *Submission) Off(t EventType, id ListenerID) {
	s.bus.off(t, id)
}

// Cancel stops the call. Listeners receive exactly one final status with
// stage complete and Cancelled set, and nothing after it. The server is
// asked to drop the call in the background. Cancel is idempotent and has
// no effect on a call that already finished.
func (s *Submission) Cancel() {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.terminal = true
	s.state = StateCancelled
	st := Status{
		Stage:     StageComplete,
		Queue:     s.queued,
		Message:   CancelledMessage,
		Cancelled: true,
		Time:      time.Now(),
	}
	s.lastStatus = &st
	eventID := s.eventID
	started := s.started
	s.mu.Unlock()

	s.logger.Debug("Call cancelled", "event_id", eventID)
	s.client.recordStatus(s.endpoint, st.Stage)
	s.release()
	s.bus.seal(s.statusEvent(st))
	if started {
		s.client.resetCall(s.fnIndex, eventID)
	}
}

// Destroy releases the call's resources without notifying the server
// and without emitting a final event. Undelivered events are dropped.
func (s *Submission) Destroy() {
	s.mu.Lock()
	if !s.terminal {
		s.terminal = true
		s.state = StateCancelled
	}
	s.bus.drop()
	s.mu.Unlock()
	s.release()
}

func (s *Submission) release() {
	s.cancel()
	s.mu.Lock()
	stop := s.stopParent
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	s.client.unregister(s)
}

func (s *Submission) run() {
	cfg := s.client.config
	skip := SkipQueue(s.fnIndex, cfg)

	s.mu.Lock()
	s.queued = !skip
	s.mu.Unlock()
	s.setState(StateConnecting)
	s.publishStatus(Status{Stage: StagePending, Queue: !skip})

	switch {
	case skip:
		s.runDirect()
	case cfg.Protocol.multiplexed():
		s.runMultiplexed()
	case cfg.Protocol == ProtocolSSE:
		s.runSSE()
	default:
		s.runWebSocket()
	}

	// Transports return without a terminal status when the connection
	// dropped. A cancelled context means Cancel or Destroy owns the ending.
	if s.ctx.Err() == nil {
		s.finish(Status{Stage: StageError, Queue: !skip, Message: BrokenConnectionMessage}, nil, false)
	}
}

// handle applies one server message to the call and reports whether the
// transport should stop reading.
func (s *Submission) handle(msg ServerMessage, r responder) bool {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return true
	}
	var last Stage
	if s.lastStatus != nil {
		last = s.lastStatus.Stage
	}
	s.mu.Unlock()

	tr := HandleMessage(msg, last)
	switch tr.Type {
	case TranslateSendHash, TranslateSendData:
		if r == nil {
			s.logger.Debug("Ignoring request on a multiplexed stream", "msg", msg.Msg)
			return false
		}
		var err error
		if tr.Type == TranslateSendHash {
			err = r.sendHash()
		} else {
			err = r.sendData(msg.EventID)
		}
		if err != nil {
			if s.ctx.Err() != nil {
				return true
			}
			s.logger.Warn("Failed to answer server", "msg", msg.Msg, "error", err)
			s.finish(Status{Stage: StageError, Queue: true, Message: BrokenConnectionMessage}, nil, false)
			return true
		}
		return false

	case TranslateHeartbeat:
		return false

	case TranslateNone:
		s.logger.Debug("Ignoring server message", "msg", msg.Msg)
		return false

	case TranslateLog:
		s.publishLog(*tr.Log)
		return false
	}

	st := *tr.Status
	var data []any
	hasData := tr.Data != nil
	if hasData {
		var err error
		if data, err = s.outputData(msg.Msg, tr.Data.Data); err != nil {
			s.logger.Warn("Cannot apply output diff", "error", err)
			s.finish(Status{Stage: StageError, Queue: true, Message: err.Error()}, nil, false)
			return true
		}
	}

	if st.Stage.Terminal() {
		s.finish(st, data, hasData)
		return true
	}

	switch msg.Msg {
	case MsgEstimation:
		s.setState(StateQueued)
	case MsgProcessStarts, MsgProgress, MsgProcessGenerating:
		s.setState(StateRunning)
	}
	s.publishStatus(st)
	if hasData {
		s.publishData(data)
	}
	return false
}

// outputData returns the full output of a process_* message, resolving
// generator diffs on protocols that send them.
func (s *Submission) outputData(kind string, data []any) ([]any, error) {
	if !s.client.config.Protocol.diffs() {
		return data, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if kind != MsgProcessGenerating {
		s.generated = nil
		return data, nil
	}
	if s.generated == nil {
		s.generated = cloneList(data)
		return data, nil
	}
	for i, diff := range data {
		if i >= len(s.generated) {
			s.generated = append(s.generated, nil)
		}
		v, err := applyDiff(s.generated[i], diff)
		if err != nil {
			return nil, err
		}
		s.generated[i] = v
	}
	return cloneList(s.generated), nil
}

func (s *Submission) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.terminal {
		s.state = st
	}
}

func (s *Submission) setEventID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventID = id
}

func (s *Submission) statusEvent(st Status) *Event {
	return &Event{Type: EventStatus, Endpoint: s.endpoint, FnIndex: s.fnIndex, Status: &st}
}

func (s *Submission) publishStatus(st Status) {
	if st.Time.IsZero() {
		st.Time = time.Now()
	}
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.lastStatus = &st
	s.bus.publish(*s.statusEvent(st))
	s.mu.Unlock()
	s.client.recordStatus(s.endpoint, st.Stage)
}

func (s *Submission) publishData(data []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.terminal {
		s.bus.publish(Event{Type: EventData, Endpoint: s.endpoint, FnIndex: s.fnIndex, Data: data})
	}
}

func (s *Submission) publishLog(l LogMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.terminal {
		s.bus.publish(Event{Type: EventLog, Endpoint: s.endpoint, FnIndex: s.fnIndex, Log: &l})
	}
}

// finish delivers the final data, if any, followed by the terminal status.
func (s *Submission) finish(st Status, data []any, hasData bool) {
	if st.Time.IsZero() {
		st.Time = time.Now()
	}
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.terminal = true
	if st.Stage == StageError {
		s.state = StateError
	} else {
		s.state = StateComplete
	}
	s.lastStatus = &st
	s.mu.Unlock()

	if st.Stage == StageError {
		s.logger.Debug("Call failed", "message", st.Message)
	} else {
		s.logger.Debug("Call completed")
	}
	// Bookkeeping first, so it is settled by the time Done is closed.
	s.client.recordStatus(s.endpoint, st.Stage)
	s.release()

	if hasData {
		s.bus.publish(Event{Type: EventData, Endpoint: s.endpoint, FnIndex: s.fnIndex, Data: data})
	}
	s.bus.seal(s.statusEvent(st))
}
