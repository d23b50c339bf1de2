// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package manifest

import (
	"fmt"
	"strings"

	"github.com/kilnbuild/kiln/pkg/modelerr"
	"github.com/kilnbuild/kiln/pkg/modeltype"
	"github.com/kilnbuild/kiln/pkg/rule"
)

// Declaration is what a manifest contributes to a configuration session.
type Declaration struct {
	// Types are the declared types in dependency order, supertypes first.
	Types []*modeltype.Type
	// Methods are the rule declarations, in manifest order.
	Methods []rule.Method
}

// Declare adds the manifest's types to u and builds its rule declarations.
// Supertypes may be declared anywhere in the manifest or already be in u.
func (m *Manifest) Declare(u *modeltype.Universe) (*Declaration, error) {
	d := &Declaration{}
	local := make(map[string]*modeltype.Type)

	unresolved := make(map[string]bool, len(m.Types))
	for _, t := range m.Types {
		unresolved[t.Name] = true
		unresolved[qualified(t.Package, t.Name)] = true
	}

	pending := append([]TypeDecl(nil), m.Types...)
	for len(pending) > 0 {
		var next []TypeDecl
		for _, decl := range pending {
			supers, ready, err := m.resolveSupertypes(decl, u, local, unresolved)
			if err != nil {
				return nil, err
			}
			if !ready {
				next = append(next, decl)
				continue
			}
			t := decl.build(supers)
			if err := u.Add(t); err != nil {
				return nil, m.invalid(fmt.Sprintf("Type %s conflicts with an existing type.", t.QualifiedName()), err)
			}
			local[decl.Name] = t
			local[t.QualifiedName()] = t
			delete(unresolved, decl.Name)
			delete(unresolved, t.QualifiedName())
			d.Types = append(d.Types, t)
		}
		if len(next) == len(pending) {
			names := make([]string, len(next))
			for i, decl := range next {
				names[i] = decl.Name
			}
			return nil, m.invalid(fmt.Sprintf("Types %s extend each other in a cycle.", strings.Join(names, ", ")), nil)
		}
		pending = next
	}

	for _, r := range m.Rules {
		method, err := m.method(r, u, local)
		if err != nil {
			return nil, err
		}
		d.Methods = append(d.Methods, method)
	}
	return d, nil
}

func (decl TypeDecl) build(supers []*modeltype.Type) *modeltype.Type {
	opts := []modeltype.Option{modeltype.Extends(supers...)}
	if decl.Package != "" {
		opts = append(opts, modeltype.InPackage(decl.Package))
	}
	if decl.Named {
		opts = append(opts, modeltype.Extends(modeltype.Named))
	}
	if decl.Kind == "interface" {
		return modeltype.Interface(decl.Name, opts...)
	}
	if decl.Abstract {
		opts = append(opts, modeltype.Abstract())
	}
	return modeltype.Class(decl.Name, opts...)
}

func (m *Manifest) resolveSupertypes(decl TypeDecl, u *modeltype.Universe, local map[string]*modeltype.Type, unresolved map[string]bool) ([]*modeltype.Type, bool, error) {
	supers := make([]*modeltype.Type, 0, len(decl.Extends))
	for _, name := range decl.Extends {
		if t, ok := local[name]; ok {
			supers = append(supers, t)
			continue
		}
		if unresolved[name] {
			return nil, false, nil
		}
		t, err := u.Lookup(name)
		if err != nil {
			return nil, false, m.invalid(fmt.Sprintf("Type %s extends unknown type %s.", decl.Name, name), err)
		}
		supers = append(supers, t)
	}
	return supers, true, nil
}

func (m *Manifest) method(r RuleDecl, u *modeltype.Universe, local map[string]*modeltype.Type) (rule.Method, error) {
	declared, err := resolveType(r.Type, u, local)
	if err != nil {
		return rule.Method{}, m.invalid(fmt.Sprintf("Rule %s refers to an unknown type.", r.Name), err)
	}
	var impl *modeltype.Type
	if r.Implementation != "" {
		if impl, err = resolveType(r.Implementation, u, local); err != nil {
			return rule.Method{}, m.invalid(fmt.Sprintf("Rule %s refers to an unknown implementation.", r.Name), err)
		}
	}

	var param *modeltype.Type
	name := r.Language
	switch r.Model {
	case ModelComponent:
		param = rule.ComponentRule(declared)
	default:
		param = rule.LanguageRule(declared)
		if name == "" {
			name = r.Name
		}
	}

	return rule.Method{
		Origin: m.Plugin.ID + "#" + r.Name,
		Params: []*modeltype.Type{param},
		Body: func(b *rule.TypeBuilder) error {
			b.SetName(name)
			if impl == nil {
				return nil
			}
			return b.DefaultImplementation(impl)
		},
	}, nil
}

// resolveType resolves a type name or a wildcard over one.
func resolveType(name string, u *modeltype.Universe, local map[string]*modeltype.Type) (*modeltype.Type, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "?":
		return modeltype.Any(), nil
	case strings.HasPrefix(name, "? extends "):
		bound, err := resolveType(strings.TrimPrefix(name, "? extends "), u, local)
		if err != nil {
			return nil, err
		}
		return modeltype.SubtypeOf(bound), nil
	case strings.HasPrefix(name, "? super "):
		bound, err := resolveType(strings.TrimPrefix(name, "? super "), u, local)
		if err != nil {
			return nil, err
		}
		return modeltype.SupertypeOf(bound), nil
	}
	if t, ok := local[name]; ok {
		return t, nil
	}
	return u.Lookup(name)
}

func (m *Manifest) invalid(msg string, cause error) error {
	if cause == nil {
		return modelerr.New(modelerr.ErrInvalidManifest, msg).WithOrigin(m.Source)
	}
	return modelerr.Wrap(modelerr.ErrInvalidManifest, msg, cause).WithOrigin(m.Source)
}
