package parser

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
	ErrMissingField        = errors.New("missing field")
	ErrInvalidFormat       = errors.New("invalid format")
	ErrInvalidUUID         = errors.New("invalid uuid")
	ErrPayloadTooLarge     = errors.New("payload too large")
)

// LinkError is the only error Parse returns. Err is one of the sentinels above,
// Field names the missing or malformed component when there is one, and Detail
// says which check failed.
type LinkError struct {
	Protocol string
	Field    string
	Detail   string
	Err      error
}

func (e *LinkError) Error() string {
	msg := fmt.Sprintf("invalid %s link: %v", e.Protocol, e.Err)
	if e.Field != "" {
		msg += fmt.Sprintf(" (%s)", e.Field)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

func missing(protocol, field string) *LinkError {
	return &LinkError{Protocol: protocol, Field: field, Detail: field + " is required", Err: ErrMissingField}
}

func malformed(protocol, field, detail string) *LinkError {
	return &LinkError{Protocol: protocol, Field: field, Detail: detail, Err: ErrInvalidFormat}
}
