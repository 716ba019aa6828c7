package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/pfrederiksen/chi-landmarks/internal/event"
)

// Notifier defines the interface for posting meeting notifications
type Notifier interface {
	// Notify posts the meetings in order. When it fails after some meetings
	// went out, the error is a *PartialError carrying how many.
	Notify(ctx context.Context, events []*event.Event) error
}

// PartialError reports a batch that stopped after the first Posted meetings
// were delivered.
type PartialError struct {
	Posted int
	Err    error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("stopped after %d posted: %v", e.Posted, e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

// Posted returns how many meetings a failed Notify call delivered.
// Errors that are not a *PartialError count as nothing posted.
func Posted(err error) int {
	var partial *PartialError
	if errors.As(err, &partial) {
		return partial.Posted
	}
	return 0
}

// stopped wraps err for a batch that delivered posted meetings.
func stopped(posted int, err error) error {
	if posted == 0 {
		return err
	}
	return &PartialError{Posted: posted, Err: err}
}
