package domain

import (
	"errors"
	"testing"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Tool.Execute", ErrToolFailure, "boom")
	want := "Tool.Execute: boom: tool execution failed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	noDetail := NewDomainError("Registry.Get", ErrToolNotFound, "")
	if noDetail.Error() != "Registry.Get: tool not found" {
		t.Errorf("Error() = %q", noDetail.Error())
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("Agent.Run", ErrMaxTurns, "")
	if !errors.Is(err, ErrMaxTurns) {
		t.Error("expected errors.Is to match sentinel")
	}
}

func TestLLMCallErrorChain(t *testing.T) {
	for _, err := range []error{ErrRateLimited, ErrAuthInvalid, ErrContextOverflow} {
		if !errors.Is(err, ErrLLMCall) {
			t.Errorf("%v should wrap ErrLLMCall", err)
		}
	}
	if errors.Is(ErrLLMConfig, ErrLLMCall) {
		t.Error("config errors must not match call errors")
	}
}

func TestWrapOp(t *testing.T) {
	if WrapOp("op", nil) != nil {
		t.Error("WrapOp(nil) should be nil")
	}
	err := WrapOp("Agent.Run", ErrToolNotFound)
	if !errors.Is(err, ErrToolNotFound) {
		t.Error("wrapped sentinel lost")
	}
	if err.Error() != "Agent.Run: tool not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}
