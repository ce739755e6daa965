package weberr

import (
	"net/http"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RequestError marks an error as caused by the request rather than the server.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return e.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

// NewError wraps err so that it renders as msg with status.
func NewError(err error, msg string, status int, opts ...Opt) error {
	opts = append(opts, WithResponse(&ErrorResponse{Error: msg}, status))
	return Wrap(&RequestError{Err: err}, opts...)
}

func BadRequest(err error, opts ...Opt) error {
	return NewError(err, "bad request", http.StatusBadRequest, opts...)
}

func NotFound(err error, opts ...Opt) error {
	return NewError(err, "the resource could not be found", http.StatusNotFound, opts...)
}

// Conflict reports a request that is well formed but cannot be served in
// the resource's current state, such as a sold out workshop.
func Conflict(err error, msg string, opts ...Opt) error {
	return NewError(err, msg, http.StatusConflict, opts...)
}

func TooManyRequests(err error, opts ...Opt) error {
	return NewError(err, "rate limit exceeded, retry later", http.StatusTooManyRequests, opts...)
}

func InternalError(err error, opts ...Opt) error {
	return NewError(err, "the server encountered a problem and could not process your request", http.StatusInternalServerError, opts...)
}

// BadGateway reports a payment provider that failed or timed out.
func BadGateway(err error, opts ...Opt) error {
	return NewError(err, "the payment provider is not responding, please try again", http.StatusBadGateway, opts...)
}
