// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package modeltype

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kilnbuild/kiln/pkg/modelerr"
)

// Named is the capability of having an identity. Implementation types that
// extend it are constructed with the requested name.
var Named = Interface("Named", InPackage("kiln"))

// Universe is the set of named types known to a configuration session.
// Names are unique; both simple and qualified names resolve.
type Universe struct {
	byQualified map[string]*Type
	bySimple    map[string][]*Type
}

// NewUniverse returns a universe seeded with the given types.
func NewUniverse(types ...*Type) (*Universe, error) {
	u := &Universe{
		byQualified: make(map[string]*Type),
		bySimple:    make(map[string][]*Type),
	}
	for _, t := range types {
		if err := u.Add(t); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Add declares a named type. Adding the very same token twice is a no-op;
// adding a different token under a taken qualified name fails.
func (u *Universe) Add(t *Type) error {
	if t == nil {
		return fmt.Errorf("cannot add nil type")
	}
	if t.kind == KindParameterized || t.kind == KindWildcard {
		return fmt.Errorf("only named types can be added, got %s", t)
	}
	q := t.QualifiedName()
	if existing, ok := u.byQualified[q]; ok {
		if existing == t {
			return nil
		}
		return modelerr.New(modelerr.ErrDuplicateRegistration,
			fmt.Sprintf("Type '%s' is already declared.", q))
	}
	u.byQualified[q] = t
	u.bySimple[t.name] = append(u.bySimple[t.name], t)
	return nil
}

// Lookup resolves a qualified name, or a simple name when it is unambiguous.
func (u *Universe) Lookup(name string) (*Type, error) {
	if t, ok := u.byQualified[name]; ok {
		return t, nil
	}
	candidates := u.bySimple[name]
	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("unknown type '%s'", name)
	case 1:
		return candidates[0], nil
	default:
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.QualifiedName()
		}
		sort.Strings(names)
		return nil, fmt.Errorf("type name '%s' is ambiguous: %s", name, strings.Join(names, ", "))
	}
}

// Types returns all declared types sorted by qualified name.
func (u *Universe) Types() []*Type {
	out := make([]*Type, 0, len(u.byQualified))
	for _, t := range u.byQualified {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QualifiedName() < out[j].QualifiedName()
	})
	return out
}

// Clone returns a universe holding the same type tokens. Types added to the
// clone are not seen by u.
func (u *Universe) Clone() *Universe {
	c := &Universe{
		byQualified: make(map[string]*Type, len(u.byQualified)),
		bySimple:    make(map[string][]*Type, len(u.bySimple)),
	}
	for q, t := range u.byQualified {
		c.byQualified[q] = t
	}
	for name, ts := range u.bySimple {
		c.bySimple[name] = append([]*Type(nil), ts...)
	}
	return c
}

// Len returns the number of declared types.
func (u *Universe) Len() int { return len(u.byQualified) }
