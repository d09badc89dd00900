package sqlasm

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors used throughout the sqlasm packages
var (
	// Fragment store errors

	// ErrLoad is returned when a fragment file cannot be read or parsed.
	ErrLoad = errors.New("failed to load fragment")
	// ErrInvalidUTF8 indicates a fragment file is not valid UTF-8 text.
	ErrInvalidUTF8 = errors.New("file is not valid UTF-8 text")
	// ErrFragmentNotFound indicates an include directive or override names an unknown fragment.
	ErrFragmentNotFound = errors.New("fragment not found")
	// ErrRootNotDirectory indicates the fragment root is not a directory.
	ErrRootNotDirectory = errors.New("fragment root is not a directory")

	// Resolver errors

	// ErrCircularInclude indicates a fragment transitively includes itself
	// or two CTE definitions consume each other.
	ErrCircularInclude = errors.New("circular dependency")
	// ErrDuplicateDefinition indicates two definitions of the same CTE name without an override.
	ErrDuplicateDefinition = errors.New("duplicate CTE definition")
	// ErrNoQueryStatement indicates included CTEs stand before statements
	// that cannot take a WITH clause (SET, DDL) and no query follows.
	ErrNoQueryStatement = errors.New("no query statement for included CTEs")

	// Substitution errors

	// ErrMissingParameter indicates a {{NAME}} placeholder has no binding.
	ErrMissingParameter = errors.New("missing parameter binding")

	// Tokenizer errors

	// ErrMalformedDirective indicates an include marker without a closing '>>'
	// or path, or one written inside a string literal.
	ErrMalformedDirective = errors.New("malformed include directive")
	// ErrUnterminatedString indicates a string literal or quoted identifier was not terminated.
	ErrUnterminatedString = errors.New("unterminated string literal")
	// ErrUnterminatedComment indicates a block comment was not terminated.
	ErrUnterminatedComment = errors.New("unterminated block comment")

	// ErrConfigValidation is returned when configuration validation fails
	ErrConfigValidation = errors.New("configuration validation failed")
	// ErrUnsupportedDialect indicates an unknown dialect name.
	ErrUnsupportedDialect = errors.New("unsupported dialect")
)

// LoadError reports a fragment file that could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrLoad, e.Path, e.Err)
}

// Unwrap exposes both ErrLoad and the underlying cause.
func (e *LoadError) Unwrap() []error {
	return []error{ErrLoad, e.Err}
}

// NotFoundError reports an include reference that does not resolve to a fragment.
// Chain lists the fragments that led to the reference, outermost first.
type NotFoundError struct {
	Name  string
	Chain []string
}

func (e *NotFoundError) Error() string {
	if len(e.Chain) == 0 {
		return fmt.Sprintf("%s: %s", ErrFragmentNotFound, e.Name)
	}

	return fmt.Sprintf("%s: %s (referenced from %s)", ErrFragmentNotFound, e.Name, strings.Join(e.Chain, " -> "))
}

func (e *NotFoundError) Unwrap() error {
	return ErrFragmentNotFound
}

// CycleError reports a circular include or a circular CTE reference.
// Path starts and ends with the same node.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCircularInclude, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCircularInclude
}

// DuplicateDefinitionError reports a CTE name defined by two sources.
// First and Second are fragment (or document) names; they are equal when one
// file defines the name twice.
type DuplicateDefinitionError struct {
	Name   string
	First  string
	Second string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("%s: %q is defined in both %s and %s", ErrDuplicateDefinition, e.Name, e.First, e.Second)
}

func (e *DuplicateDefinitionError) Unwrap() error {
	return ErrDuplicateDefinition
}

// MissingParameterError reports a placeholder left without a binding.
type MissingParameterError struct {
	Token  string
	Line   int
	Column int
}

func (e *MissingParameterError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", ErrMissingParameter, e.Token)
	}

	return fmt.Sprintf("%s: %s at line %d, column %d", ErrMissingParameter, e.Token, e.Line, e.Column)
}

func (e *MissingParameterError) Unwrap() error {
	return ErrMissingParameter
}
