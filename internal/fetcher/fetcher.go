// Package fetcher defines the page and error types shared by fetch
// implementations.
package fetcher

import (
	"errors"
	"fmt"
	"time"
)

// ErrUndecodableBody is returned when a response body is not valid UTF-8.
var ErrUndecodableBody = errors.New("response body is not valid utf-8")

// Page is the result of one successful GET.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// TransportError reports a failed request or an unusable response body.
// StatusCode is zero when no response was received.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
