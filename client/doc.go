// Package client calls the prediction endpoints of a hosted ML demo app.
//
// The client resolves an app reference to its config document, maps named
// endpoints to dependency indexes, and submits calls over whichever
// transport the server speaks: a direct HTTP request for dependencies
// that skip the queue, a websocket, a per-call event stream, or one event
// stream shared by every call of the session.
//
// # Basic Usage
//
// Connect to an app and wait for a single result:
//
//	ctx := context.Background()
//	c, err := client.Connect(ctx, "abidlabs/whisper")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	out, err := c.Predict(ctx, client.Named("/predict"), []any{"hello"})
//
// # Observing a Call
//
// Submit returns immediately. Listeners receive data, status and log
// events in the order the server sent them:
//
//	sub := c.Submit(ctx, client.Named("/generate"), []any{"a prompt"},
//	    client.WithListener(client.EventStatus, func(ev client.Event) {
//	        fmt.Println(ev.Status.Stage, ev.Status.Message)
//	    }),
//	)
//	sub.On(client.EventData, func(ev client.Event) {
//	    fmt.Println(ev.Data...)
//	})
//	<-sub.Done()
//
// Listeners passed with WithListener see every event. Listeners added
// with On only see events dispatched after they were registered.
//
// # Cancellation
//
// Cancel stops a call locally first: listeners get exactly one status with
// Cancelled set and nothing afterwards, and the server is told to drop
// the call in the background. Destroy releases the call silently.
// Cancelling the context passed to Submit has the same effect as Cancel.
//
// # Hosted Spaces
//
// When the config of an "org/space" app cannot be fetched, Connect polls
// the hub until the space is running. Use WithStatusCallback to show the
// progress:
//
//	c, err := client.Connect(ctx, "org/space",
//	    client.WithStatusCallback(func(st client.SpaceStatus) {
//	        fmt.Println(st.Status, st.Message)
//	    }),
//	)
//
// # Thread Safety
//
// Client and Submission are safe for concurrent use. Listeners of one call
// are invoked from a single goroutine and may call Cancel, Destroy, On and
// Off. A panicking listener is logged and does not affect the others.
package client
