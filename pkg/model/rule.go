// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Action is the configuration logic of a rule. It receives the subject value
// and the realized inputs in declaration order.
type Action func(subject any, inputs Inputs) error

// Rule is a mutator registered against one subject.
type Rule struct {
	ID uuid.UUID
	// Descriptor is the human readable declaration site, used in diagnostics.
	Descriptor string
	Subject    Reference
	Inputs     []Reference
	Action     Action
}

// NewRule creates a rule with a fresh identifier.
func NewRule(descriptor string, subject Reference, action Action, inputs ...Reference) *Rule {
	return &Rule{
		ID:         uuid.New(),
		Descriptor: descriptor,
		Subject:    subject,
		Inputs:     append([]Reference(nil), inputs...),
		Action:     action,
	}
}

func (r *Rule) String() string {
	return r.Descriptor
}

// Inputs holds the realized input values of a firing rule.
type Inputs []any

// Len returns the number of inputs.
func (in Inputs) Len() int { return len(in) }

// InputAt returns input i asserted to T.
func InputAt[T any](in Inputs, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(in) {
		return zero, fmt.Errorf("rule input %d out of range (have %d)", i, len(in))
	}
	v, ok := in[i].(T)
	if !ok {
		return zero, fmt.Errorf("rule input %d has type %T, want %T", i, in[i], zero)
	}
	return v, nil
}
