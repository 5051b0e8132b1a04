// Package ipc turns a one-way named-channel event transport into a
// request/response protocol.
//
// A request {id, data} is published on a channel; the handler registered for
// that channel answers with exactly one {code, data} response on the derived
// channel "<channel>_res_<id>". Registry is the answering side, Correlator
// the asking side. Both are written against events.Transport, so they work
// over the in-process EventBus or across processes over a unix socket.
package ipc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Response codes. Any code other than StatusOK is a failure.
const (
	StatusOK            = 200
	StatusBadRequest    = 400
	StatusInternalError = 500
)

const responseInfix = "_res_"

// Request is the envelope published on a handler channel.
type Request struct {
	ID   string `json:"id"`
	Data any    `json:"data"`
}

// Response is the envelope published on a response channel.
// On failure Data holds the human-readable message.
type Response struct {
	Code int `json:"code"`
	Data any `json:"data"`
}

// ResponseChannel derives the single-use channel a response to id is
// published on.
func ResponseChannel(channel, id string) string {
	return channel + responseInfix + id
}

// IsResponseChannel reports whether channel was produced by ResponseChannel.
func IsResponseChannel(channel string) bool {
	return strings.Contains(channel, responseInfix)
}

// NewOKResponse creates a success response.
func NewOKResponse(data any) *Response {
	return &Response{Code: StatusOK, Data: data}
}

// NewErrorResponse converts a handler failure into a response. The code is
// taken from errors implementing Coder, 500 otherwise.
func NewErrorResponse(err error) *Response {
	return &Response{Code: CodeOf(err), Data: err.Error()}
}

// OK reports whether the response denotes success.
func (r *Response) OK() bool {
	return r.Code == StatusOK
}

// Message returns the failure message of a non-OK response.
func (r *Response) Message() string {
	if s, ok := r.Data.(string); ok {
		return s
	}
	if r.Data == nil {
		return ""
	}
	return fmt.Sprint(r.Data)
}

// asRequest extracts a request envelope from a transport payload. In-process
// payloads arrive as Request values; payloads that crossed a socket may
// arrive in their generic JSON form.
func asRequest(payload any) (*Request, bool) {
	switch v := payload.(type) {
	case *Request:
		return v, v != nil
	case Request:
		return &v, true
	}
	req, err := DecodeData[Request](payload)
	if err != nil || req.ID == "" {
		return nil, false
	}
	return &req, true
}

// asResponse extracts a response envelope from a transport payload.
func asResponse(payload any) (*Response, bool) {
	switch v := payload.(type) {
	case *Response:
		return v, v != nil
	case Response:
		return &v, true
	}
	resp, err := DecodeData[Response](payload)
	if err != nil || resp.Code == 0 {
		return nil, false
	}
	return &resp, true
}

// DecodeData converts call data into T. Values that are already a T (or *T)
// are returned as is; anything else, typically the map[string]any produced
// by JSON decoding, is re-marshaled and unmarshaled into T.
func DecodeData[T any](data any) (T, error) {
	var out T
	switch v := data.(type) {
	case nil:
		return out, nil
	case T:
		return v, nil
	case *T:
		if v != nil {
			return *v, nil
		}
		return out, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return out, fmt.Errorf("failed to encode %T: %w", data, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode into %T: %w", out, err)
	}
	return out, nil
}
