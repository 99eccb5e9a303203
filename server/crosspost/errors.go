package crosspost

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// InvalidArgumentError is the error returned when invalid data is presented
// to an operation.
type InvalidArgumentError struct {
	Errors []InvalidArgument
}

// InvalidArgument is the details about a single invalid argument.
type InvalidArgument struct {
	name   string
	reason string
}

// NewInvalidArgumentError returns an InvalidArgumentError with at least one
// error.
func NewInvalidArgumentError(name, reason string) *InvalidArgumentError {
	var invalid InvalidArgumentError
	invalid.Append(name, reason)
	return &invalid
}

func (e *InvalidArgumentError) Append(name, reason string) {
	e.Errors = append(e.Errors, InvalidArgument{name: name, reason: reason})
}

func (e *InvalidArgumentError) HasErrors() bool {
	return len(e.Errors) != 0
}

func (e InvalidArgumentError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "validation failed"
	case 1:
		return fmt.Sprintf("validation failed: %s %s", e.Errors[0].name, e.Errors[0].reason)
	default:
		return fmt.Sprintf("validation failed: %s %s and %d other errors", e.Errors[0].name, e.Errors[0].reason,
			len(e.Errors)-1)
	}
}

func (e InvalidArgumentError) Invalid() bool {
	return true
}

// ValidationFailedError is returned by SchedulePost when the content violates
// one or more target platforms' constraints. The gate is all-or-nothing: when
// this error is returned, nothing was persisted and no job was enqueued.
type ValidationFailedError struct {
	// ByPlatform maps a platform code to the list of violation messages for
	// that platform.
	ByPlatform map[string][]string
}

func (e *ValidationFailedError) Error() string {
	codes := make([]string, 0, len(e.ByPlatform))
	for code := range e.ByPlatform {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return fmt.Sprintf("post content rejected by platform constraints: %s", strings.Join(codes, ", "))
}

func (e *ValidationFailedError) Invalid() bool {
	return true
}

// NotFoundError is implemented by errors indicating the requested resource
// does not exist.
type NotFoundError interface {
	error
	IsNotFound() bool
}

// IsNotFound reports whether err's chain indicates a missing resource.
func IsNotFound(err error) bool {
	var nfe NotFoundError
	if errors.As(err, &nfe) {
		return nfe.IsNotFound()
	}
	return false
}
