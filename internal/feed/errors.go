package feed

import "errors"

// Classified causes of a failed fetch, matched with errors.Is
var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrMalformed        = errors.New("malformed payload")
	ErrNoCapture        = errors.New("payload has no capture")
	ErrMissingField     = errors.New("missing required field")
)

// FetchError is the single failure type returned by Client.Fetch
type FetchError struct {
	Op  string // request, status, read, decode
	Err error
}

func (e *FetchError) Error() string {
	return "feed " + e.Op + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
