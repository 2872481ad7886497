package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rechart/rechart/internal/core/domain"
)

// ResponseError is a response with a non-2xx status.
type ResponseError struct {
	Status   int
	Class    domain.ResponseClass
	Body     []byte
	Response *Response
}

func (e *ResponseError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("api: status %d: %s", e.Status, msg)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

// Unwrap returns the domain sentinel for the response class.
func (e *ResponseError) Unwrap() error {
	return e.Class.Err()
}

// Message returns the server's error message, read from a JSON body of the
// form {"error": "..."} or {"message": "..."}.
func (e *ResponseError) Message() string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(e.Body, &body) != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// IsHandledError reports whether err is a response the client reacts to
// itself: 401 not authenticated or 405 not allowed. Transport errors and
// every other status are not handled.
func IsHandledError(err error) bool {
	var rerr *ResponseError
	if !errors.As(err, &rerr) {
		return false
	}
	return rerr.Class.Handled()
}
