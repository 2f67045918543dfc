package client

import (
	"encoding/json"
)

// User-facing messages for failures the server does not describe itself.
const (
	QueueFullMessage        = "This application is too busy. Keep trying!"
	BrokenConnectionMessage = "Connection errored out."
	CancelledMessage        = "Cancelled"
)

// Known values of ServerMessage.Msg.
const (
	MsgSendData          = "send_data"
	MsgSendHash          = "send_hash"
	MsgQueueFull         = "queue_full"
	MsgHeartbeat         = "heartbeat"
	MsgUnexpectedError   = "unexpected_error"
	MsgEstimation        = "estimation"
	MsgProgress          = "progress"
	MsgLog               = "log"
	MsgProcessGenerating = "process_generating"
	MsgProcessCompleted  = "process_completed"
	MsgProcessStarts     = "process_starts"
	MsgCloseStream       = "close_stream"
)

// ServerMessage is one frame received on a queue transport.
// Msg discriminates the variant; fields not used by a variant are zero.
type ServerMessage struct {
	Msg             string         `json:"msg"`
	EventID         string         `json:"event_id,omitempty"`
	Rank            *int           `json:"rank,omitempty"`
	QueueSize       *int           `json:"queue_size,omitempty"`
	RankETA         *float64       `json:"rank_eta,omitempty"`
	ETA             *float64       `json:"eta,omitempty"`
	AverageDuration *float64       `json:"average_duration,omitempty"`
	Success         bool           `json:"success"`
	Code            string         `json:"code,omitempty"`
	Message         string         `json:"message,omitempty"`
	Output          *Output        `json:"output,omitempty"`
	ProgressData    []ProgressUnit `json:"progress_data,omitempty"`
	Log             string         `json:"log,omitempty"`
	Level           string         `json:"level,omitempty"`
}

// Output is the result object attached to process_* messages and
// returned by the direct call path.
type Output struct {
	Data            []any
	AverageDuration *float64
	Duration        *float64
	IsGenerating    bool
	// HasError is set when the object carried an "error" key, even a null one.
	HasError bool
	Error    string
}

// UnmarshalJSON records whether an "error" key was present.
func (o *Output) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*o = Output{}
	if raw, ok := fields["data"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &o.Data); err != nil {
			return err
		}
	}
	if raw, ok := fields["average_duration"]; ok && !isNull(raw) {
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		o.AverageDuration = &v
	}
	if raw, ok := fields["duration"]; ok && !isNull(raw) {
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		o.Duration = &v
	}
	if raw, ok := fields["is_generating"]; ok && !isNull(raw) {
		_ = json.Unmarshal(raw, &o.IsGenerating)
	}
	if raw, ok := fields["error"]; ok {
		o.HasError = true
		if !isNull(raw) {
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				// Non-string error payloads are kept verbatim.
				text = string(raw)
			}
			o.Error = text
		}
	}
	return nil
}

// MarshalJSON writes the wire form of the output.
func (o Output) MarshalJSON() ([]byte, error) {
	fields := map[string]any{"data": o.Data}
	if o.AverageDuration != nil {
		fields["average_duration"] = *o.AverageDuration
	}
	if o.Duration != nil {
		fields["duration"] = *o.Duration
	}
	if o.IsGenerating {
		fields["is_generating"] = true
	}
	if o.HasError {
		if o.Error == "" {
			fields["error"] = nil
		} else {
			fields["error"] = o.Error
		}
	}
	return json.Marshal(fields)
}

// TranslationType tells the controller what to do with a translated message.
type TranslationType string

const (
	// TranslateSendData asks the client to (re)send the call payload.
	TranslateSendData TranslationType = "data"
	// TranslateSendHash asks the client to send the session hash.
	TranslateSendHash      TranslationType = "hash"
	TranslateUpdate        TranslationType = "update"
	TranslateHeartbeat     TranslationType = "heartbeat"
	TranslateUnexpectedErr TranslationType = "unexpected_error"
	TranslateLog           TranslationType = "log"
	TranslateGenerating    TranslationType = "generating"
	TranslateComplete      TranslationType = "complete"
	TranslateNone          TranslationType = "none"
)

// Translation is the typed result of HandleMessage.
type Translation struct {
	Type   TranslationType
	Status *Status
	Data   *Output
	Log    *LogMessage
}

// HandleMessage maps one server message to one translation. It never
// fails: message kinds it does not know become TranslateNone with an
// error status.
//
// lastStage is the stage previously reported for the same call. An
// estimation keeps the call in StageGenerating if it was already
// generating and reports StagePending otherwise.
func HandleMessage(msg ServerMessage, lastStage Stage) Translation {
	const queue = true
	success := msg.Success

	switch msg.Msg {
	case MsgSendData:
		return Translation{Type: TranslateSendData}

	case MsgSendHash:
		return Translation{Type: TranslateSendHash}

	case MsgQueueFull:
		return Translation{
			Type: TranslateUpdate,
			Status: &Status{
				Stage:   StageError,
				Queue:   queue,
				Message: QueueFullMessage,
				Code:    msg.Code,
				Success: &success,
			},
		}

	case MsgHeartbeat:
		return Translation{Type: TranslateHeartbeat}

	case MsgCloseStream:
		return Translation{Type: TranslateNone}

	case MsgUnexpectedError:
		failed := false
		return Translation{
			Type: TranslateUnexpectedErr,
			Status: &Status{
				Stage:   StageError,
				Queue:   queue,
				Message: msg.Message,
				Success: &failed,
			},
		}

	case MsgEstimation:
		stage := StagePending
		if lastStage == StageGenerating {
			stage = StageGenerating
		}
		return Translation{
			Type: TranslateUpdate,
			Status: &Status{
				Stage:    stage,
				Queue:    queue,
				Code:     msg.Code,
				Size:     msg.QueueSize,
				Position: msg.Rank,
				ETA:      msg.RankETA,
				Success:  &success,
			},
		}

	case MsgProgress:
		return Translation{
			Type: TranslateUpdate,
			Status: &Status{
				Stage:        StagePending,
				Queue:        queue,
				Code:         msg.Code,
				ProgressData: msg.ProgressData,
				Success:      &success,
			},
		}

	case MsgLog:
		return Translation{
			Type: TranslateLog,
			Log:  &LogMessage{Log: msg.Log, Level: msg.Level},
		}

	case MsgProcessGenerating:
		if !success || (msg.Output != nil && msg.Output.HasError) {
			return Translation{
				Type: TranslateUpdate,
				Status: &Status{
					Stage:   StageError,
					Queue:   queue,
					Message: outputError(msg.Output),
					Code:    msg.Code,
					Success: &success,
				},
			}
		}
		return Translation{
			Type: TranslateGenerating,
			Status: &Status{
				Stage:        StageGenerating,
				Queue:        queue,
				Code:         msg.Code,
				ProgressData: msg.ProgressData,
				ETA:          msg.AverageDuration,
				Success:      &success,
			},
			Data: msg.Output,
		}

	case MsgProcessCompleted:
		// An explicit error payload wins over the success flag.
		if msg.Output != nil && msg.Output.HasError {
			return Translation{
				Type: TranslateUpdate,
				Status: &Status{
					Stage:   StageError,
					Queue:   queue,
					Message: outputError(msg.Output),
					Code:    msg.Code,
					Success: &success,
				},
			}
		}
		status := &Status{
			Stage:        StageComplete,
			Queue:        queue,
			Code:         msg.Code,
			ProgressData: msg.ProgressData,
			Success:      &success,
		}
		if msg.Output != nil {
			status.ETA = msg.Output.AverageDuration
		}
		if !success {
			status.Stage = StageError
			status.Message = outputError(msg.Output)
			return Translation{Type: TranslateComplete, Status: status}
		}
		return Translation{Type: TranslateComplete, Status: status, Data: msg.Output}

	case MsgProcessStarts:
		position := 0
		return Translation{
			Type: TranslateUpdate,
			Status: &Status{
				Stage:    StagePending,
				Queue:    queue,
				Code:     msg.Code,
				Size:     msg.Rank,
				Position: &position,
				ETA:      msg.ETA,
				Success:  &success,
			},
		}
	}

	return Translation{
		Type:   TranslateNone,
		Status: &Status{Stage: StageError, Queue: queue},
	}
}

func outputError(o *Output) string {
	if o == nil {
		return ""
	}
	return o.Error
}
