package plug

import (
	"context"
	"errors"
	"fmt"
)

// The client distinguishes four failure kinds so callers can react
// differently to a dead network, a missed deadline, an upstream rejection
// and a garbled body. A valid empty result is not an error (see ErrNoData).

// TransportError indicates the request never produced an HTTP response
// (DNS failure, refused connection, reset).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError indicates the configured deadline for the named operation
// expired before a response arrived.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out", e.Op)
}

// UpstreamError carries a non-2xx status and the response body text.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError indicates a 2xx body that did not decode into the
// expected shape.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ErrNoData marks a valid empty result. Callers must treat it as "nothing to
// show", never as a failure.
var ErrNoData = errors.New("no data")

// classifyRequestError maps an error returned by http.Client.Do to the
// taxonomy above.
func classifyRequestError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op}
	}
	return &TransportError{Err: err}
}

// IsTimeout reports whether err is a deadline failure.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
