package lsc

import "fmt"

// CompileError is implemented by every typed error kind in the compiler's
// taxonomy. Kind is the stable tag printed before every
// diagnostic's location and message, e.g. "TypeError".
type CompileError interface {
	error
	Kind() string
	Message() string
	Primary() Span
	Secondary() (Span, string, bool)
}

// baseErr carries the fields shared by every CompileError variant.
type baseErr struct {
	kind      string
	message   string
	primary   Span
	secondary Span
	secLabel  string
	hasSec    bool
}

func (e baseErr) Error() string     { return fmt.Sprintf("%s: %s @ %s", e.kind, e.message, e.primary) }
func (e baseErr) Kind() string      { return e.kind }
func (e baseErr) Message() string   { return e.message }
func (e baseErr) Primary() Span     { return e.primary }
func (e baseErr) Secondary() (Span, string, bool) {
	return e.secondary, e.secLabel, e.hasSec
}

func newErr(kind, message string, primary Span) baseErr {
	return baseErr{kind: kind, message: message, primary: primary}
}

func newErrWithSecondary(kind, message string, primary Span, secondary Span, secLabel string) baseErr {
	return baseErr{kind: kind, message: message, primary: primary, secondary: secondary, secLabel: secLabel, hasSec: true}
}

// Concrete error kinds.

type CliError struct{ baseErr }

func NewCliError(message string) CliError {
	return CliError{newErr("CliError", message, Span{})}
}

type IoError struct{ baseErr }

func NewIoError(message string) IoError { return IoError{newErr("IoError", message, Span{})} }

type LexicalError struct{ baseErr }

func NewLexicalError(message string, span Span) LexicalError {
	return LexicalError{newErr("LexicalError", message, span)}
}

type SyntaxError struct{ baseErr }

func NewSyntaxError(message string, span Span) SyntaxError {
	return SyntaxError{newErr("SyntaxError", message, span)}
}

type NameError struct{ baseErr }

func NewNameError(message string, span Span) NameError {
	return NameError{newErr("NameError", message, span)}
}

func NewNameErrorPrev(message string, span, prev Span) NameError {
	return NameError{newErrWithSecondary("NameError", message, span, prev, "previous declaration here")}
}

type TypeError struct{ baseErr }

func NewTypeError(message string, span Span) TypeError {
	return TypeError{newErr("TypeError", message, span)}
}

type ThrowsContractError struct{ baseErr }

func NewThrowsContractError(message string, span Span) ThrowsContractError {
	return ThrowsContractError{newErr("ThrowsContractError", message, span)}
}

type ParallelLoopConstraintError struct{ baseErr }

func NewParallelLoopConstraintError(message string, span Span) ParallelLoopConstraintError {
	return ParallelLoopConstraintError{newErr("ParallelLoopConstraintError", message, span)}
}

type ConstDivByZeroError struct{ baseErr }

func NewConstDivByZeroError(message string, span Span) ConstDivByZeroError {
	return ConstDivByZeroError{newErr("ConstDivByZeroError", message, span)}
}

type OwnedHandleEscapeError struct{ baseErr }

func NewOwnedHandleEscapeError(message string, span Span) OwnedHandleEscapeError {
	return OwnedHandleEscapeError{newErr("OwnedHandleEscapeError", message, span)}
}

type BackendError struct{ baseErr }

func NewBackendError(message string) BackendError {
	return BackendError{newErr("BackendError", message, Span{})}
}

type ToolchainError struct{ baseErr }

func NewToolchainError(message string) ToolchainError {
	return ToolchainError{newErr("ToolchainError", message, Span{})}
}
