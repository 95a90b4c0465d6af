package notify

import (
	"fmt"

	"github.com/darshan-rambhia/herald/internal/model"
)

// ValidationError reports channel parameters that were rejected before any
// network call was made.
type ValidationError struct {
	Channel model.ChannelType
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Channel, e.Reason)
}

// ProviderError reports a provider response without the expected success
// marker. Its message is the raw response body.
type ProviderError struct {
	Channel    model.ChannelType
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string { return e.Body }

// TransportError reports a network, timeout or SMTP failure. Its message is
// the underlying error text.
type TransportError struct {
	Channel model.ChannelType
	Err     error
}

func (e *TransportError) Error() string { return e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

func invalid(ch model.ChannelType, format string, args ...any) error {
	return &ValidationError{Channel: ch, Reason: fmt.Sprintf(format, args...)}
}

func rejected(ch model.ChannelType, resp *Response) error {
	return &ProviderError{Channel: ch, StatusCode: resp.StatusCode, Body: string(resp.Body)}
}

func failed(ch model.ChannelType, err error) error {
	return &TransportError{Channel: ch, Err: err}
}
