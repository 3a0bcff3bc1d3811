package backup

import (
	"errors"
	"fmt"
)

// Kind classifies control-plane failures so callers can tell
// "not found" (idempotent-safe) from "operation failed" (cleanup state
// unknown) from "unsupported" (capability gate).
type Kind string

const (
	KindValidation             Kind = "validation"
	KindChain                  Kind = "chain"
	KindNoSuchBackup           Kind = "no_such_backup"
	KindNoSuchCheckpoint       Kind = "no_such_checkpoint"
	KindInconsistentCheckpoint Kind = "inconsistent_checkpoint"
	KindOperation              Kind = "backup_operation"
	KindUnsupported            Kind = "unsupported_operation"
	KindLookup                 Kind = "lookup"
)

// Error is the tagged error every public operation returns.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// KindOf returns err's kind, or the empty string for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
