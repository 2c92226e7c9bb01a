package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error kinds. Every error returned by Service wraps exactly one of them.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrEventNotFound   = errors.New("event not found")
	ErrTimeUnavailable = errors.New("time is no longer available")
	ErrCollaborator    = errors.New("collaborator failure")
)

// Steps reported in Error.Op.
const (
	OpValidate      = "validate"
	OpGetEvent      = "get_event"
	OpGetSchedule   = "get_schedule"
	OpBusyIntervals = "busy_intervals"
	OpClaim         = "claim"
	OpCreateEvent   = "create_event"
)

// Error carries the context a caller needs to choose between retrying and
// giving up.
type Error struct {
	Op      string
	Kind    error
	OwnerID string
	EventID string
	Instant time.Time
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("booking ")
	b.WriteString(e.Op)
	if e.OwnerID != "" {
		fmt.Fprintf(&b, " owner=%s", e.OwnerID)
	}
	if e.EventID != "" {
		fmt.Fprintf(&b, " event=%s", e.EventID)
	}
	if !e.Instant.IsZero() {
		fmt.Fprintf(&b, " instant=%s", e.Instant.UTC().Format(time.RFC3339))
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether repeating the same request may succeed. Only
// failed reads qualify; a failed create is left to the caller's judgement.
func (e *Error) Retryable() bool {
	return e.Kind == ErrCollaborator && e.Op != OpCreateEvent
}
