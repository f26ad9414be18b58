package upstream

import (
	"encoding/json"
	"strings"

	"github.com/valyala/fasthttp"
)

var unknownErrorBody = []byte(`{"error":"Unknown error"}`)

// Response is a detached copy of an upstream reply.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

func newResponse(resp *fasthttp.Response) *Response {
	return &Response{
		Status:      resp.StatusCode(),
		ContentType: string(resp.Header.ContentType()),
		Body:        append([]byte(nil), resp.Body()...),
	}
}

// OK mirrors fetch's Response.ok.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// JSONBody returns the body if it is valid JSON, otherwise fallback.
func (r *Response) JSONBody(fallback []byte) []byte {
	if r == nil || !json.Valid(r.Body) {
		return fallback
	}
	return r.Body
}

// ErrorBody is the payload relayed to the browser for a non-OK reply.
func (r *Response) ErrorBody() []byte {
	return r.JSONBody(unknownErrorBody)
}

// Detail extracts FastAPI's {"detail": "..."} message. Validation errors carry
// a list instead of a string and yield "".
func (r *Response) Detail() string {
	if r == nil {
		return ""
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(r.Body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err != nil {
		return ""
	}
	return detail
}

// DetailContains reports whether the detail message contains substr.
func (r *Response) DetailContains(substr string) bool {
	return strings.Contains(r.Detail(), substr)
}
