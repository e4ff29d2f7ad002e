package loader

import (
	"errors"
	"fmt"
)

// ErrInvalidDocument indicates the input bytes are not a well-formed PDF.
// The document is never partially loaded.
var ErrInvalidDocument = errors.New("invalid document")

// ErrUnreadable indicates the input looks like a PDF but its pages cannot
// be enumerated, e.g. a corrupted cross-reference table or page tree.
var ErrUnreadable = errors.New("unreadable document")

// DocumentError wraps a load failure with its cause. It unwraps to one of
// the sentinel errors above, so callers can classify with errors.Is.
type DocumentError struct {
	Kind  error // ErrInvalidDocument or ErrUnreadable
	Cause error
}

func (e *DocumentError) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
}

func (e *DocumentError) Unwrap() error {
	return e.Kind
}

func invalid(cause error) error {
	return &DocumentError{Kind: ErrInvalidDocument, Cause: cause}
}

func unreadable(cause error) error {
	return &DocumentError{Kind: ErrUnreadable, Cause: cause}
}
