package service

import "errors"

var (
	// ErrInvalidInput is returned when a request fails validation. The
	// error text is the user-facing explanation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyExists is returned by Create when the repository URL and
	// commit pair is already managed. The existing record accompanies
	// the error.
	ErrAlreadyExists = errors.New("repository already managed")

	// ErrPathConflict is returned when the requested clone directory is
	// owned by a different repository record.
	ErrPathConflict = errors.New("clone path already in use")

	// ErrNotFound is returned when no repository matches the given ID.
	ErrNotFound = errors.New("repository not found")
)

// opError pairs a user-facing message with one of the sentinel errors so
// handlers can branch with errors.Is while surfacing the message verbatim.
type opError struct {
	msg      string
	sentinel error
}

func (e *opError) Error() string { return e.msg }

func (e *opError) Unwrap() error { return e.sentinel }

func invalidInput(msg string) error {
	return &opError{msg: msg, sentinel: ErrInvalidInput}
}

func pathConflict(msg string) error {
	return &opError{msg: msg, sentinel: ErrPathConflict}
}
