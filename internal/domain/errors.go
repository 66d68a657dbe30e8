package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	// ErrLLMConfig reports missing credentials or model identifier at
	// client construction time, before any network call.
	ErrLLMConfig = errors.New("llm configuration error")
	// ErrLLMCall reports a failed model call. Refined variants below wrap
	// it, so errors.Is(err, ErrLLMCall) holds for all of them.
	ErrLLMCall = errors.New("llm call failed")

	ErrRateLimited     = fmt.Errorf("%w: rate limited", ErrLLMCall)
	ErrAuthInvalid     = fmt.Errorf("%w: authentication failed", ErrLLMCall)
	ErrContextOverflow = fmt.Errorf("%w: context window exceeded", ErrLLMCall)

	ErrToolNotFound    = errors.New("tool not found")
	ErrToolFailure     = errors.New("tool execution failed")
	ErrInvalidToolCall = errors.New("invalid tool call")
	ErrMaxTurns        = errors.New("reached turn budget without final answer")

	ErrInvalidInput = errors.New("invalid input")
	ErrConfigLoad   = errors.New("failed to load configuration")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Tool.Execute")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
