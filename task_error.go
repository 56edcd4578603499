package offload

import (
	"errors"
	"fmt"
)

// TaskMetaError exposes correlation metadata for a task failure.
// Errors delivered through futures and batch outcomes implement it, so callers
// can recover the task ID from an error without holding the original handle.
type TaskMetaError interface {
	error
	Unwrap() error
	TaskID() (string, bool)
}

type taskTaggedError struct {
	err error
	id  string
}

// tagTaskError wraps err with the task ID for correlation. Already-tagged
// errors are returned unchanged to keep a single tag per chain.
func tagTaskError(err error, id string) error {
	if err == nil {
		return nil
	}
	var tme TaskMetaError
	if errors.As(err, &tme) {
		return err
	}
	return &taskTaggedError{err: err, id: id}
}

func (e *taskTaggedError) Error() string { return e.err.Error() }
func (e *taskTaggedError) Unwrap() error { return e.err }

func (e *taskTaggedError) TaskID() (string, bool) {
	if e.id == "" {
		return "", false
	}
	return e.id, true
}

func (e *taskTaggedError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "task(id=%s): %+v", e.id, e.err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractTaskID returns the task ID carried by err, if any.
func ExtractTaskID(err error) (string, bool) {
	var tme TaskMetaError
	if errors.As(err, &tme) {
		return tme.TaskID()
	}
	return "", false
}
