// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package modelerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKindAndClass(t *testing.T) {
	err := New(ErrDuplicateFactory, "dup")
	assert.True(t, errors.Is(err, ErrDuplicateFactory))
	assert.True(t, errors.Is(err, ErrRegistrationConflict))
	assert.False(t, errors.Is(err, ErrCreation))
	assert.False(t, errors.Is(err, ErrNotASubtype))
}

func TestError_WrappedStillMatches(t *testing.T) {
	inner := New(ErrCycleDetected, "cycle").WithChain("A", "B", "A")
	outer := fmt.Errorf("realize: %w", inner)
	assert.True(t, errors.Is(outer, ErrGraphIntegrity))
	assert.Equal(t, "CYCLE_DETECTED", ErrorCode(outer))
	assert.Equal(t, "realize: cycle (A -> B -> A)", outer.Error())
}

func TestError_MessageIsExact(t *testing.T) {
	msg := "Cannot register a factory for type X because a factory for this type is already registered."
	assert.Equal(t, msg, New(ErrDuplicateFactory, msg).Error())
}

func TestError_CauseAndOrigin(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ErrRuleExecutionFailed, "rule failed", cause).WithOrigin("Plugin#rule")
	assert.Equal(t, "rule failed: boom", err.Error())
	assert.Equal(t, "Plugin#rule", err.Origin)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, ErrGraphIntegrity, err.Class())

	sentence := Wrap(ErrInvalidRuleShape, "Plugin#rule is not a valid language model rule method.", cause)
	assert.Equal(t, "Plugin#rule is not a valid language model rule method. boom", sentence.Error())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("x"), 1},
		{"configuration", New(ErrInvalidRuleShape, "x"), 2},
		{"conflict", New(ErrNotASubtype, "x"), 3},
		{"creation", New(ErrUnknownCreatableType, "x"), 4},
		{"graph", New(ErrTooLateToMutate, "x"), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "INTERNAL", ErrorCode(errors.New("x")))
	assert.Equal(t, "REGISTRY_FROZEN", ErrorCode(New(ErrRegistryFrozen, "x")))
}

func TestSuggestions(t *testing.T) {
	require.NotEmpty(t, Suggestions(New(ErrInvalidRuleShape, "x")))
	require.NotEmpty(t, Suggestions(New(ErrCycleDetected, "x")))
	assert.Nil(t, Suggestions(errors.New("x")))
	assert.Nil(t, Suggestions(nil))
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, ErrCreation, ClassOf(New(ErrServiceMissing, "x")))
	assert.Nil(t, ClassOf(errors.New("x")))
	assert.Equal(t, ErrConfiguration, ClassOf(fmt.Errorf("load: %w", ErrConfiguration)))
}

func TestCodeAndExitCodeAgreeOnWrappedErrors(t *testing.T) {
	inner := New(ErrDuplicateRegistration, "Model element x is already declared.")
	outer := Wrap(ErrRuleExecutionFailed, "Exception thrown while executing model rule: r", inner)

	assert.Equal(t, "RULE_EXECUTION_FAILED", ErrorCode(outer))
	assert.Equal(t, ErrGraphIntegrity, ClassOf(outer))
	assert.Equal(t, 5, ExitCode(outer))
	assert.True(t, errors.Is(outer, ErrDuplicateRegistration))

	assert.Equal(t, "DUPLICATE_REGISTRATION", ErrorCode(inner))
	assert.Equal(t, 3, ExitCode(inner))
}
