// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package rule validates type rule declarations and turns them into model
// rules that register new language and component kinds.
//
// A type rule is a function taking a single type builder parameterized with
// the declared type, for example LanguageTypeBuilder<CSourceSet>. Its body
// names the kind and picks a default implementation. Declarations are
// checked structurally before the body runs, and the resulting registration
// is deferred until the catalog it targets is first used.
package rule

import (
	"fmt"
	"strings"

	"github.com/kilnbuild/kiln/pkg/modelerr"
	"github.com/kilnbuild/kiln/pkg/modeltype"
)

// Method is a rule declaration.
type Method struct {
	// Origin describes the declaration site, e.g. "CPlugin#languages(LanguageTypeBuilder<CSourceSet>)".
	Origin string
	// Returns is nil for rules without a return value.
	Returns *modeltype.Type
	Params  []*modeltype.Type
	Body    func(b *TypeBuilder) error
}

// Descriptor returns the origin label, deriving one from the parameters when
// Origin is empty.
func (m Method) Descriptor() string {
	if m.Origin != "" {
		return m.Origin
	}
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.String()
	}
	return "rule(" + strings.Join(params, ", ") + ")"
}

// TypeBuilder collects what a type rule body declares.
type TypeBuilder struct {
	modelName      string
	name           string
	implementation *modeltype.Type
}

func newTypeBuilder(modelName string) *TypeBuilder {
	return &TypeBuilder{modelName: modelName}
}

// SetName sets the name of the kind, e.g. the language name.
func (b *TypeBuilder) SetName(name string) { b.name = name }

// Name returns the name set by the rule body.
func (b *TypeBuilder) Name() string { return b.name }

// DefaultImplementation sets the implementation type. It may be called once.
func (b *TypeBuilder) DefaultImplementation(implementation *modeltype.Type) error {
	if b.implementation != nil {
		return modelerr.New(modelerr.ErrInvalidRuleShape,
			fmt.Sprintf("%s type builder cannot set default implementation multiple times.", capitalize(b.modelName)))
	}
	b.implementation = implementation
	return nil
}

// Implementation returns the implementation type, or nil when none was set.
func (b *TypeBuilder) Implementation() *modeltype.Type { return b.implementation }

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
