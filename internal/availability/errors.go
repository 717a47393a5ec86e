package availability

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUpstreamData = errors.New("upstream data error")
)

// InputError reports a malformed request field.
type InputError struct {
	Field  string
	Reason string
}

func (e InputError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e InputError) Unwrap() error {
	return ErrInvalidInput
}

// UpstreamError reports that the working hours or candidate appointments
// could not be read, so no decision was made.
type UpstreamError struct {
	Source string
	Err    error
}

func (e UpstreamError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e UpstreamError) Is(target error) bool {
	return target == ErrUpstreamData
}

func (e UpstreamError) Unwrap() error {
	return e.Err
}
