// Package errs defines the error kinds surfaced by the scheduling engine.
package errs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harrisonrobin/zenkai/pkg/model"
)

var (
	// ErrMissingArgument is returned when a required date, time or title fragment is absent.
	ErrMissingArgument = errors.New("missing required argument")
	// ErrInvalidArgument is returned for values that parse but make no sense, like an unknown timezone.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict matches any *ConflictError through errors.Is.
	ErrConflict = errors.New("scheduling conflict")
	// ErrBackend matches any *BackendError through errors.Is.
	ErrBackend = errors.New("backend failure")
)

// Missing reports that the named argument was not supplied.
func Missing(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingArgument, name)
}

// Invalid reports that the named argument has an unusable value.
func Invalid(name string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidArgument, name, fmt.Sprintf(format, args...))
}

// ConflictError carries the events overlapping a candidate event.
// It is not fatal: callers decide whether to persist anyway.
type ConflictError struct {
	Candidate model.Event
	Conflicts []model.Event
}

func (e *ConflictError) Error() string {
	titles := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		titles = append(titles, c.Title)
	}
	return fmt.Sprintf("%s: %q overlaps %s", ErrConflict, e.Candidate.Title, strings.Join(titles, ", "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// BackendError wraps a failed call to an external event or task service.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrBackend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}

// Backend wraps err as a BackendError for op. A nil err stays nil, and an
// error that already is a BackendError is returned unchanged.
func Backend(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}

// Conflicts returns the conflicting events carried by err, if any.
func Conflicts(err error) ([]model.Event, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Conflicts, true
	}
	return nil, false
}
