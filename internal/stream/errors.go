package stream

import (
	"errors"
	"fmt"
)

var (
	ErrRateLimited = errors.New("alert dropped by rate limit")
	ErrClosed      = errors.New("sink closed")
)

// DeliveryError reports that a sink failed to accept an event. The agent
// logs and swallows it.
type DeliveryError struct {
	Sink    string
	EventID string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver alert %s to %s: %v", e.EventID, e.Sink, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// AsDeliveryError wraps err unless it already is a DeliveryError.
func AsDeliveryError(sink, eventID string, err error) error {
	if err == nil {
		return nil
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return err
	}
	return &DeliveryError{Sink: sink, EventID: eventID, Err: err}
}
