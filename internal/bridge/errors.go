package bridge

import "fmt"

// Kind classifies a bridge failure so the tool layer can pick a stable
// wire code without parsing message text.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindUnsupported Kind = "unsupported"
	KindInternal    Kind = "internal"
)

// Error is a classified bridge failure. Message is the complete
// caller-facing text; Kind only selects the wire code.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Errorf builds a classified error with fmt.Sprintf semantics.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
