package grid

import (
	"errors"
	"fmt"

	"schedula/availability/internal/domain"
)

var (
	ErrLoadSuperseded         = errors.New("load superseded by a newer range request")
	ErrCommitInFlight         = errors.New("a commit is already in flight")
	ErrNoSelection            = errors.New("no day selected")
	ErrNotAuthorized          = errors.New("operator is not allowed to edit availability")
	ErrSingleWriteUnsupported = errors.New("backend does not support single-record writes")
)

// ValidationError rejects an edit before it reaches the ledger.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// FetchError reports a failed range load. The store keeps its previous contents.
type FetchError struct {
	RangeStart domain.Date
	RangeEnd   domain.Date
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("load availability %s..%s: %v", e.RangeStart, e.RangeEnd, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// CommitError reports a failed write. Ledger and store are left untouched.
type CommitError struct {
	Count int
	Err   error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit %d change(s): %v", e.Count, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}
