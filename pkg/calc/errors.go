// Package calc implements the calculator core: tokenizer, symbol table and
// a recursive-descent evaluator that computes while it parses.
package calc

import (
	"errors"
	"fmt"
)

// Error kinds. Every evaluation failure wraps exactly one of these.
var (
	ErrInvalidToken         = errors.New("invalid token")
	ErrBufferFull           = errors.New("token buffer full")
	ErrDuplicateDeclaration = errors.New("already declared")
	ErrUndeclaredVariable   = errors.New("undeclared variable")
	ErrAssignToConst        = errors.New("is a constant")
	ErrUnmatchedBracket     = errors.New("unmatched bracket")
	ErrPrimaryExpected      = errors.New("primary expected")
	ErrNameExpected         = errors.New("name expected")
	ErrAssignExpected       = errors.New("= expected")
	ErrDivideByZero         = errors.New("divide by zero")
)

// errorCodes maps each kind to the code used in transcripts and wire messages.
var errorCodes = map[error]string{
	ErrInvalidToken:         "INVALID_TOKEN",
	ErrBufferFull:           "BUFFER_FULL",
	ErrDuplicateDeclaration: "DUPLICATE_DECLARATION",
	ErrUndeclaredVariable:   "UNDECLARED_VARIABLE",
	ErrAssignToConst:        "ASSIGN_TO_CONST",
	ErrUnmatchedBracket:     "UNMATCHED_BRACKET",
	ErrPrimaryExpected:      "PRIMARY_EXPECTED",
	ErrNameExpected:         "NAME_EXPECTED",
	ErrAssignExpected:       "ASSIGN_EXPECTED",
	ErrDivideByZero:         "DIVIDE_BY_ZERO",
}

// CalcError is a failure raised while tokenizing or evaluating a statement.
type CalcError struct {
	Kind   error  // one of the Err* kinds above
	Code   string // stable upper-case code, e.g. DIVIDE_BY_ZERO
	Detail string // offending name or character, may be empty
}

// Error implements the error interface
func (ce *CalcError) Error() string {
	if ce.Detail == "" {
		return ce.Kind.Error()
	}
	switch ce.Kind {
	case ErrAssignToConst:
		return fmt.Sprintf("%s %s", ce.Detail, ce.Kind.Error())
	case ErrUnmatchedBracket:
		return fmt.Sprintf("no '%s' to complete", ce.Detail)
	}
	return fmt.Sprintf("%s: %s", ce.Kind.Error(), ce.Detail)
}

// Unwrap lets errors.Is match against the kind.
func (ce *CalcError) Unwrap() error {
	return ce.Kind
}

// newError builds a CalcError for kind with an optional detail.
func newError(kind error, detail string) *CalcError {
	return &CalcError{
		Kind:   kind,
		Code:   errorCodes[kind],
		Detail: detail,
	}
}

// IsStatementError reports whether err aborts only the current statement.
// Anything else (I/O failures, end of input) is handled by the caller.
func IsStatementError(err error) bool {
	var ce *CalcError
	return errors.As(err, &ce)
}

// ErrorCode returns the code of a CalcError, or "" for other errors.
func ErrorCode(err error) string {
	var ce *CalcError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
