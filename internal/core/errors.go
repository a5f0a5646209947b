package core

import (
	"errors"
	"strings"
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidMessageType = errors.New("invalid message type")
)

// ValidationError reports input that cannot be processed: required columns
// missing from an upload, or fields of a compose request that failed checks.
type ValidationError struct {
	Missing []string
	Fields  []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Fields) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(e.Fields, ", "))
	}
	if len(parts) == 0 {
		return "validation failed"
	}
	return strings.Join(parts, "; ")
}

// CompositionError wraps any failure of the message composer.
type CompositionError struct {
	DonorName   string
	MessageType MessageType
	Err         error
}

func (e *CompositionError) Error() string {
	msg := "compose " + string(e.MessageType) + " message for " + e.DonorName
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg + ": failed"
}

func (e *CompositionError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsCompositionError reports whether err carries a *CompositionError.
func IsCompositionError(err error) bool {
	var ce *CompositionError
	return errors.As(err, &ce)
}
