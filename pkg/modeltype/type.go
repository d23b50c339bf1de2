// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package modeltype provides explicit type tokens for the configuration model.
//
// Plugins describe the types they contribute (their name, the types they
// extend, whether they are abstract, and which capabilities they carry) as
// values of this package. Every assignability, wildcard or type-argument
// question asked by the registry and the rule handlers is answered from these
// tokens, never from runtime reflection.
package modeltype

import (
	"strings"
)

// Kind classifies a type token.
type Kind int

const (
	// KindInterface is a contract type. Interfaces cannot be instantiated.
	KindInterface Kind = iota
	// KindClass is an implementation type. It may be instantiated unless abstract.
	KindClass
	// KindParameterized is a generic type applied to type arguments.
	KindParameterized
	// KindWildcard is an "any subtype/supertype of" placeholder.
	KindWildcard
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindClass:
		return "class"
	case KindParameterized:
		return "parameterized"
	case KindWildcard:
		return "wildcard"
	default:
		return "unknown"
	}
}

// Type is a model type token.
//
// Named types (interfaces and classes) are compared by identity: declare each
// one once, typically as a package level variable, and share the pointer.
// Parameterized and wildcard types are compared structurally.
type Type struct {
	pkgPath    string
	name       string
	kind       Kind
	abstract   bool
	supertypes []*Type

	// parameterized types
	raw  *Type
	args []*Type

	// wildcards
	bound      *Type
	lowerBound bool
}

// Option customises a named type at declaration time.
type Option func(*Type)

// InPackage records the package path that declares the type.
func InPackage(pkgPath string) Option {
	return func(t *Type) { t.pkgPath = pkgPath }
}

// Extends records direct supertypes.
func Extends(supertypes ...*Type) Option {
	return func(t *Type) {
		for _, s := range supertypes {
			if s != nil {
				t.supertypes = append(t.supertypes, s)
			}
		}
	}
}

// Abstract marks a class as not directly instantiable.
func Abstract() Option {
	return func(t *Type) { t.abstract = true }
}

// Interface declares a named interface type.
func Interface(name string, opts ...Option) *Type {
	t := &Type{name: name, kind: KindInterface}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Class declares a named implementation type.
func Class(name string, opts ...Option) *Type {
	t := &Type{name: name, kind: KindClass}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Parameterize applies type arguments to a generic raw type.
func Parameterize(raw *Type, args ...*Type) *Type {
	return &Type{
		pkgPath: raw.pkgPath,
		name:    raw.name,
		kind:    KindParameterized,
		raw:     raw,
		args:    append([]*Type(nil), args...),
	}
}

// SubtypeOf is the "? extends bound" wildcard.
func SubtypeOf(bound *Type) *Type {
	return &Type{name: "?", kind: KindWildcard, bound: bound}
}

// SupertypeOf is the "? super bound" wildcard.
func SupertypeOf(bound *Type) *Type {
	return &Type{name: "?", kind: KindWildcard, bound: bound, lowerBound: true}
}

// Any is the unbounded "?" wildcard.
func Any() *Type {
	return &Type{name: "?", kind: KindWildcard}
}

// Name returns the simple name of the type.
func (t *Type) Name() string {
	if t == nil {
		return "<nil>"
	}
	return t.name
}

// PkgPath returns the declaring package path, if any.
func (t *Type) PkgPath() string { return t.pkgPath }

// Kind returns the token kind.
func (t *Type) Kind() Kind { return t.kind }

// IsAbstract reports whether the type cannot be instantiated directly.
// Interfaces are always abstract.
func (t *Type) IsAbstract() bool {
	return t.kind == KindInterface || t.abstract
}

// IsWildcard reports whether the type is a wildcard placeholder.
func (t *Type) IsWildcard() bool { return t.kind == KindWildcard }

// Raw returns the generic type of a parameterized type, or t itself.
func (t *Type) Raw() *Type {
	if t.kind == KindParameterized {
		return t.raw
	}
	return t
}

// TypeArguments returns the type arguments of a parameterized type.
func (t *Type) TypeArguments() []*Type {
	return append([]*Type(nil), t.args...)
}

// Supertypes returns the direct supertypes of a named type.
func (t *Type) Supertypes() []*Type {
	return append([]*Type(nil), t.supertypes...)
}

// QualifiedName returns pkgPath.Name for named types.
func (t *Type) QualifiedName() string {
	if t.pkgPath == "" {
		return t.name
	}
	return t.pkgPath + "." + t.name
}

// String renders the type the way diagnostics display it.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.kind {
	case KindParameterized:
		args := make([]string, len(t.args))
		for i, a := range t.args {
			args[i] = a.String()
		}
		return t.raw.String() + "<" + strings.Join(args, ", ") + ">"
	case KindWildcard:
		switch {
		case t.bound == nil:
			return "?"
		case t.lowerBound:
			return "? super " + t.bound.String()
		default:
			return "? extends " + t.bound.String()
		}
	default:
		return t.QualifiedName()
	}
}

// Equal reports whether two tokens denote the same type.
func (t *Type) Equal(other *Type) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil || t.kind != other.kind {
		return false
	}
	switch t.kind {
	case KindParameterized:
		if !t.raw.Equal(other.raw) || len(t.args) != len(other.args) {
			return false
		}
		for i := range t.args {
			if !t.args[i].Equal(other.args[i]) {
				return false
			}
		}
		return true
	case KindWildcard:
		return t.lowerBound == other.lowerBound && t.bound.Equal(other.bound)
	default:
		return false
	}
}

// IsAssignableFrom reports whether a value of type other can be used where t
// is expected: other is t or one of its (transitive) subtypes.
func (t *Type) IsAssignableFrom(other *Type) bool {
	if t == nil || other == nil {
		return false
	}
	if t.kind == KindWildcard || other.kind == KindWildcard {
		return t.Equal(other)
	}
	if t.kind == KindParameterized {
		if other.kind != KindParameterized {
			return false
		}
		if !t.raw.IsAssignableFrom(other.raw) || len(t.args) != len(other.args) {
			return false
		}
		for i := range t.args {
			if !t.args[i].Equal(other.args[i]) {
				return false
			}
		}
		return true
	}
	return other.Raw().extends(t, map[*Type]bool{})
}

func (t *Type) extends(target *Type, seen map[*Type]bool) bool {
	if t == target {
		return true
	}
	if seen[t] {
		return false
	}
	seen[t] = true
	for _, s := range t.supertypes {
		if s.extends(target, seen) {
			return true
		}
	}
	return false
}

// AsSubtype returns candidate when it is assignable to t, or nil otherwise.
func (t *Type) AsSubtype(candidate *Type) *Type {
	if t.IsAssignableFrom(candidate) {
		return candidate
	}
	return nil
}
