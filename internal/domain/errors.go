package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPromptRequired         = errors.New("prompt is required")
	ErrMalformedRequest       = errors.New("malformed request")
	ErrCredentialsUnavailable = errors.New("credentials unavailable")
	ErrInvalidRemoteResponse  = errors.New("invalid remote response")
)

// ClientError is a caller-side failure that is answered with 400 and never
// reaches the remote service.
type ClientError struct {
	Message string
	Err     error
}

func (e *ClientError) Error() string {
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// UpstreamError is a non-2xx answer from the remote service. Body is kept
// verbatim so it can be relayed to the caller.
type UpstreamError struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}
