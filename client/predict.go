package client

import (
	"context"
	"sync"
)

// PredictError is returned by Predict when the call ends in an error status.
type PredictError struct {
	Endpoint string
	Status   Status
}

func (e *PredictError) Error() string {
	if e.Status.Message == "" {
		return "prediction failed for " + e.Endpoint
	}
	return e.Status.Message
}

// Predict submits a call and waits for it to complete, returning the
// last data payload received.
//
// Predict is meant for endpoints that produce a single result. For
// generator endpoints only the final output is returned; use Submit to
// observe intermediate outputs.
//
// Predict returns ErrClosed when the call is destroyed before it ends,
// as Close does with every call in flight.
func (c *Client) Predict(ctx context.Context, ep Endpoint, data []any, opts ...SubmitOption) ([]any, error) {
	type result struct {
		data []any
		err  error
	}
	done := make(chan result, 1)
	deliver := func(r result) {
		select {
		case done <- r:
		default:
		}
	}

	var (
		mu   sync.Mutex
		last []any
	)
	opts = append(opts,
		WithListener(EventData, func(ev Event) {
			mu.Lock()
			last = ev.Data
			mu.Unlock()
		}),
		WithListener(EventStatus, func(ev Event) {
			switch st := ev.Status; {
			case st.Cancelled:
				deliver(result{err: context.Canceled})
			case st.Stage == StageComplete:
				mu.Lock()
				d := last
				mu.Unlock()
				deliver(result{data: d})
			case st.Stage == StageError:
				deliver(result{err: &PredictError{Endpoint: ev.Endpoint, Status: *st}})
			}
		}),
	)

	sub := c.Submit(ctx, ep, data, opts...)
	var r result
	select {
	case r = <-done:
	case <-sub.Done():
		// Every event has been delivered, so a result is already waiting
		// unless the call was destroyed without a final status.
		select {
		case r = <-done:
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		sub.Cancel()
		return nil, ctx.Err()
	}
	if r.err == context.Canceled && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return r.data, r.err
}
