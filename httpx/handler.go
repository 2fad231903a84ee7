package httpx

import "io"

// RequestHandler fills in the response to a request. Returning
// ErrNoSuchItem, ErrPermissionDenied or any other error makes the server
// answer 404, 403 or 500; ErrTerminated stops the server after this
// response.
type RequestHandler interface {
	SetupResponse(req *Request, rc *RequestContext, resp *Response) error
}

// BodySender is implemented by handlers that write the response body
// themselves instead of attaching it to the response entity.
type BodySender interface {
	SendResponseBody(rc *RequestContext, resp *Response, w io.Writer) error
}

// HandlerFunc adapts a function to RequestHandler.
type HandlerFunc func(req *Request, rc *RequestContext, resp *Response) error

func (f HandlerFunc) SetupResponse(req *Request, rc *RequestContext, resp *Response) error {
	return f(req, rc, resp)
}

// StaticHandler serves a fixed document.
type StaticHandler struct {
	mimeType string
	document []byte
}

// NewStaticHandler serves document with mimeType, "text/html" when empty.
func NewStaticHandler(document []byte, mimeType string) *StaticHandler {
	if mimeType == "" {
		mimeType = "text/html"
	}
	return &StaticHandler{mimeType: mimeType, document: document}
}

func (h *StaticHandler) SetupResponse(req *Request, rc *RequestContext, resp *Response) error {
	e := NewEntity()
	e.SetContentType(h.mimeType)
	e.SetInputBytes(h.document)
	resp.SetEntity(e)
	return nil
}
