// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package language

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kilnbuild/kiln/pkg/modelerr"
	"github.com/kilnbuild/kiln/pkg/modeltype"
	"github.com/kilnbuild/kiln/pkg/paths"
	"github.com/kilnbuild/kiln/pkg/registry"
)

// Registration is a language kind contributed by a model rule. It doubles
// as the factory of source sets of its declared type.
type Registration struct {
	Name               string
	DeclaredType       *modeltype.Type
	ImplementationType *modeltype.Type

	instantiator registry.Instantiator
	resolver     *paths.Resolver
}

// NewRegistration creates a registration that constructs implementation
// through instantiator and resolves source directories through resolver.
func NewRegistration(name string, declared, implementation *modeltype.Type, instantiator registry.Instantiator, resolver *paths.Resolver) *Registration {
	return &Registration{
		Name:               name,
		DeclaredType:       declared,
		ImplementationType: implementation,
		instantiator:       instantiator,
		resolver:           resolver,
	}
}

// Factory returns the source set factory of the registration.
func (r *Registration) Factory() registry.Factory[SourceSet] {
	return r.create
}

func (r *Registration) create(name string) (SourceSet, error) {
	if r.instantiator == nil {
		return nil, modelerr.New(modelerr.ErrServiceMissing,
			fmt.Sprintf("Language %s was registered without an instantiator.", r.Name))
	}
	instance, err := r.instantiator.NewInstance(r.ImplementationType)
	if err != nil {
		return nil, err
	}
	sourceSet, ok := instance.(SourceSet)
	if !ok {
		return nil, modelerr.New(modelerr.ErrInstantiationFailed,
			fmt.Sprintf("Implementation %s of language %s does not produce a source set (got %T).",
				r.ImplementationType.Name(), r.Name, instance))
	}
	if init, ok := instance.(Initializer); ok {
		if err := init.Initialize(name, r.Name, r.resolver); err != nil {
			return nil, modelerr.Wrap(modelerr.ErrInstantiationFailed,
				fmt.Sprintf("Could not initialize %s source set '%s'", r.Name, name), err)
		}
	}
	return sourceSet, nil
}

func (r *Registration) String() string {
	return fmt.Sprintf("%s (%s -> %s)", r.Name, r.DeclaredType.Name(), r.ImplementationType.Name())
}

// Registry is the catalog of registered language kinds.
type Registry struct {
	entries []*Registration
	byName  map[string]*Registration
	logger  zerolog.Logger
}

// NewRegistry creates an empty catalog.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Registration),
		logger: log.With().Str("component", "language.registry").Logger(),
	}
}

// Add appends reg to the catalog. Language names are unique.
func (r *Registry) Add(reg *Registration) error {
	if reg == nil || reg.DeclaredType == nil || reg.ImplementationType == nil {
		return fmt.Errorf("language registration requires declared and implementation types")
	}
	if reg.Name == "" {
		return modelerr.New(modelerr.ErrInvalidModelType,
			fmt.Sprintf("Language type '%s' was registered without a language name.", reg.DeclaredType))
	}
	if existing, ok := r.byName[reg.Name]; ok {
		return modelerr.New(modelerr.ErrDuplicateRegistration,
			fmt.Sprintf("Cannot register language %s for type %s because it is already registered for type %s.",
				reg.Name, reg.DeclaredType.Name(), existing.DeclaredType.Name()))
	}
	r.entries = append(r.entries, reg)
	r.byName[reg.Name] = reg
	r.logger.Debug().Str("language", reg.Name).Str("type", reg.DeclaredType.String()).Msg("Language registered")
	return nil
}

// All returns the registrations in insertion order.
func (r *Registry) All() []*Registration {
	return append([]*Registration(nil), r.entries...)
}

// Find returns the registration named name.
func (r *Registry) Find(name string) (*Registration, bool) {
	reg, ok := r.byName[name]
	return reg, ok
}

// Len returns the number of registrations.
func (r *Registry) Len() int { return len(r.entries) }

// ApplyTo registers the factory of every registration into container under
// its declared type.
func (r *Registry) ApplyTo(container *registry.Registry[SourceSet]) error {
	for _, reg := range r.entries {
		if err := container.RegisterFactory(reg.DeclaredType, reg.Factory()); err != nil {
			return fmt.Errorf("apply language %s: %w", reg.Name, err)
		}
	}
	return nil
}
