package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindMissingAsset        Kind = "MISSING_ASSET"
	KindExternalTool        Kind = "EXTERNAL_TOOL_FAILURE"
	KindMalformedDescriptor Kind = "MALFORMED_DESCRIPTOR"
	KindCacheIO             Kind = "CACHE_IO_FAILURE"
)

var (
	ErrMissingAsset        = errors.New("missing asset")
	ErrExternalTool        = errors.New("external tool failure")
	ErrMalformedDescriptor = errors.New("malformed descriptor")
	ErrCacheIO             = errors.New("cache io failure")
)

// Error is a failure scoped to one unit of work (an archive, a folder, a
// character or a skin). Only KindCacheIO is fatal to a run.
type Error struct {
	Kind    Kind
	Unit    string
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Unit != "" {
		msg = fmt.Sprintf("%s: %s", e.Unit, msg)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match an *Error against the sentinel for its kind.
func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

func sentinel(kind Kind) error {
	switch kind {
	case KindMissingAsset:
		return ErrMissingAsset
	case KindExternalTool:
		return ErrExternalTool
	case KindMalformedDescriptor:
		return ErrMalformedDescriptor
	case KindCacheIO:
		return ErrCacheIO
	default:
		return nil
	}
}

func New(kind Kind, unit, message string) *Error {
	return &Error{Kind: kind, Unit: unit, Message: message}
}

func MissingAsset(unit, path, message string) *Error {
	return &Error{Kind: KindMissingAsset, Unit: unit, Path: path, Message: message}
}

func ExternalTool(unit, message string, cause error) *Error {
	return &Error{Kind: KindExternalTool, Unit: unit, Message: message, Cause: cause}
}

func MalformedDescriptor(unit, path string, cause error) *Error {
	return &Error{Kind: KindMalformedDescriptor, Unit: unit, Path: path, Message: "malformed descriptor", Cause: cause}
}

func CacheIO(operation, path string, cause error) *Error {
	return &Error{Kind: KindCacheIO, Unit: operation, Path: path, Message: "cache io failed", Cause: cause}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return "", false
}

func IsFatal(err error) bool {
	return errors.Is(err, ErrCacheIO)
}
