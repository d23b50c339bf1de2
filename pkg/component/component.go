// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package component declares the component spec model types and the
// container that component type rules bind implementations into.
package component

import (
	"fmt"

	"github.com/kilnbuild/kiln/pkg/modeltype"
	"github.com/kilnbuild/kiln/pkg/registry"
)

const pkgPath = "kiln/component"

var (
	// SpecType is the base interface of every component type.
	SpecType = modeltype.Interface("ComponentSpec",
		modeltype.InPackage(pkgPath), modeltype.Extends(modeltype.Named))
	// BaseSpecType is the implementation every component implementation extends.
	BaseSpecType = modeltype.Class("BaseComponentSpec",
		modeltype.InPackage(pkgPath), modeltype.Abstract(), modeltype.Extends(SpecType))
	// ContainerType is the model type of the component container node.
	ContainerType = modeltype.Interface("ComponentSpecContainer", modeltype.InPackage(pkgPath))
)

// Spec is a named buildable component.
type Spec interface {
	Name() string
}

// BaseSpec is embedded by component implementations. Named implementations
// receive their name at construction.
type BaseSpec struct {
	name string
}

// NewBaseSpec returns a spec named name.
func NewBaseSpec(name string) BaseSpec {
	return BaseSpec{name: name}
}

// Name returns the component name.
func (s BaseSpec) Name() string { return s.name }

func (s BaseSpec) String() string {
	return fmt.Sprintf("component '%s'", s.name)
}

// Container holds the component factories bound by component type rules.
type Container = registry.Registry[Spec]

// NewContainer creates an empty container constructing implementations
// through instantiator.
func NewContainer(instantiator registry.Instantiator) *Container {
	return registry.New[Spec](SpecType,
		registry.WithDisplayName("ComponentSpec"),
		registry.WithInstantiator(instantiator))
}

// DeclaredSpec is the component created for implementation types without a
// Go constructor of their own.
type DeclaredSpec struct {
	BaseSpec
	implementation *modeltype.Type
}

// NewDeclaredSpec returns a component named name of implementation.
func NewDeclaredSpec(name string, implementation *modeltype.Type) *DeclaredSpec {
	return &DeclaredSpec{BaseSpec: NewBaseSpec(name), implementation: implementation}
}

// Implementation returns the implementation type the component was built for.
func (s *DeclaredSpec) Implementation() *modeltype.Type { return s.implementation }
