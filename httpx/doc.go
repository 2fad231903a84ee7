// Package httpx implements HTTP/1.0 and HTTP/1.1 messages, a client with
// connection pooling, redirects and proxy selection, and a small
// one-request-per-connection server with pluggable request handlers.
//
// Client:
//
//	c := httpx.NewClient(nil)
//	defer c.Close()
//	req, _ := httpx.NewRequestFromString(httpx.MethodGet, "http://example.com/")
//	resp, err := c.SendRequest(ctx, req)
//	if err != nil { return err }
//	defer resp.Close()
//	body, err := resp.Entity.Load()
//
// Server:
//
//	s := httpx.NewServer(httpx.DefaultServerConfig())
//	s.AddRequestHandler(httpx.NewStaticHandler([]byte("hello"), "text/plain"), "/", false)
//	err := s.Loop(ctx)
//
// Logging and metrics go through the obs.Logger and obs.Meter hooks and
// are off unless installed.
package httpx
