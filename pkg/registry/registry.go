// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package registry provides the typed object registry: a polymorphic
// container that maps each declared model type to the one factory able to
// produce named instances of it.
//
// A registry is populated during the configuration phase and then frozen.
// Registration is not synchronized; once Freeze has been called the factory
// map is never written again and Create may be called from any goroutine.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kilnbuild/kiln/pkg/modelerr"
	"github.com/kilnbuild/kiln/pkg/modeltype"
)

const (
	msgAmbiguousCreation = "Cannot create a %s named '%s' because this container does not support creating elements by name alone. " +
		"Please specify which subtype of %s to create. Known subtypes are: %s"
	msgUnknownType = "Cannot create a %s because this type is not known to this container. Known types are: %s"
	msgNotASubtype = "Cannot register a factory for type %s because it is not a subtype of container element type %s."
	msgDuplicate   = "Cannot register a factory for type %s because a factory for this type is already registered."

	noneKnown = "(None)"
)

// Factory creates the named instance of one declared type.
type Factory[T any] func(name string) (T, error)

// Instantiator constructs objects by implementation type.
type Instantiator interface {
	NewInstance(implementation *modeltype.Type, args ...any) (any, error)
}

// Registry is a typed object registry whose elements are T values of the
// base model type or one of its subtypes.
type Registry[T any] struct {
	baseType     *modeltype.Type
	displayName  string
	instantiator Instantiator
	factories    map[*modeltype.Type]Factory[T]
	frozen       atomic.Bool
	logger       zerolog.Logger
}

// Option customises a registry.
type Option func(*options)

type options struct {
	displayName  string
	instantiator Instantiator
}

// WithDisplayName overrides the name used for the element type in diagnostics.
func WithDisplayName(name string) Option {
	return func(o *options) { o.displayName = name }
}

// WithInstantiator sets the instantiation service used by RegisterBinding.
func WithInstantiator(i Instantiator) Option {
	return func(o *options) { o.instantiator = i }
}

// New creates an empty registry for elements of baseType.
func New[T any](baseType *modeltype.Type, opts ...Option) *Registry[T] {
	o := options{displayName: baseType.Name()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry[T]{
		baseType:     baseType,
		displayName:  o.displayName,
		instantiator: o.instantiator,
		factories:    make(map[*modeltype.Type]Factory[T]),
		logger: log.With().
			Str("component", "registry").
			Str("element_type", baseType.String()).
			Logger(),
	}
}

// BaseType returns the container element type.
func (r *Registry[T]) BaseType() *modeltype.Type { return r.baseType }

// DisplayName returns the element type name used in diagnostics.
func (r *Registry[T]) DisplayName() string { return r.displayName }

// RegisterDefaultFactory binds factory to the registry's own base type.
// Unlike RegisterFactory it performs no duplicate check: the last default
// factory registered wins.
func (r *Registry[T]) RegisterDefaultFactory(factory Factory[T]) error {
	if err := r.checkNotFrozen(r.baseType); err != nil {
		return err
	}
	if _, exists := r.factories[r.baseType]; exists {
		r.logger.Debug().Msg("Replacing default factory")
	}
	r.factories[r.baseType] = factory
	return nil
}

// RegisterFactory binds factory to typ, which must be the base type or one
// of its subtypes and must not have a factory yet.
func (r *Registry[T]) RegisterFactory(typ *modeltype.Type, factory Factory[T]) error {
	if err := r.checkNotFrozen(typ); err != nil {
		return err
	}
	if !r.baseType.IsAssignableFrom(typ) {
		return modelerr.New(modelerr.ErrNotASubtype, fmt.Sprintf(msgNotASubtype, typ.Name(), r.displayName))
	}
	if _, exists := r.factories[typ]; exists {
		return modelerr.New(modelerr.ErrDuplicateFactory, fmt.Sprintf(msgDuplicate, typ.Name()))
	}
	r.factories[typ] = factory
	r.logger.Debug().Str("type", typ.String()).Msg("Factory registered")
	return nil
}

// RegisterBinding registers a factory for typ that constructs implementation
// through the instantiation service. The requested name is passed to the
// constructor only when implementation carries the Named capability.
func (r *Registry[T]) RegisterBinding(typ, implementation *modeltype.Type) error {
	if r.instantiator == nil {
		return fmt.Errorf("cannot bind %s: registry for %s has no instantiator", typ.Name(), r.displayName)
	}
	if !typ.IsAssignableFrom(implementation) {
		return modelerr.New(modelerr.ErrNotASubtype,
			fmt.Sprintf("Cannot bind type %s to implementation %s because it is not a subtype of %s.",
				typ.Name(), implementation.Name(), typ.Name()))
	}
	named := modeltype.Named.IsAssignableFrom(implementation)
	instantiator := r.instantiator
	return r.RegisterFactory(typ, func(name string) (T, error) {
		var (
			instance any
			err      error
		)
		if named {
			instance, err = instantiator.NewInstance(implementation, name)
		} else {
			instance, err = instantiator.NewInstance(implementation)
		}
		if err != nil {
			var zero T
			return zero, err
		}
		typed, ok := instance.(T)
		if !ok {
			var zero T
			return zero, modelerr.New(modelerr.ErrInstantiationFailed,
				fmt.Sprintf("Instance of %s created for '%s' has unexpected Go type %T.", implementation.Name(), name, instance))
		}
		return typed, nil
	})
}

// Create creates a named element using the factory bound to the base type.
func (r *Registry[T]) Create(name string) (T, error) {
	factory, ok := r.factories[r.baseType]
	if !ok {
		var zero T
		return zero, modelerr.New(modelerr.ErrAmbiguousCreation,
			fmt.Sprintf(msgAmbiguousCreation, r.displayName, name, r.displayName, r.SupportedTypeNames()))
	}
	return factory(name)
}

// CreateOfType creates a named element using the factory bound exactly to typ.
func (r *Registry[T]) CreateOfType(name string, typ *modeltype.Type) (T, error) {
	factory, ok := r.factories[typ]
	if !ok {
		var zero T
		return zero, modelerr.New(modelerr.ErrUnknownCreatableType,
			fmt.Sprintf(msgUnknownType, typ.Name(), r.SupportedTypeNames()))
	}
	return factory(name)
}

// Has reports whether a factory is bound exactly to typ.
func (r *Registry[T]) Has(typ *modeltype.Type) bool {
	_, ok := r.factories[typ]
	return ok
}

// Len returns the number of bound types.
func (r *Registry[T]) Len() int { return len(r.factories) }

// SupportedTypeNames returns the simple names of all bound types, sorted and
// joined with ", ", or "(None)" when no factory is bound.
func (r *Registry[T]) SupportedTypeNames() string {
	names := make([]string, 0, len(r.factories))
	for typ := range r.factories {
		names = append(names, typ.Name())
	}
	if len(names) == 0 {
		return noneKnown
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// CreatableTypes returns a snapshot of all bound types, sorted by name.
func (r *Registry[T]) CreatableTypes() []*modeltype.Type {
	types := make([]*modeltype.Type, 0, len(r.factories))
	for typ := range r.factories {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool {
		if types[i].Name() != types[j].Name() {
			return types[i].Name() < types[j].Name()
		}
		return types[i].QualifiedName() < types[j].QualifiedName()
	})
	return types
}

// Freeze ends the configuration phase of the registry. Every later
// registration fails with modelerr.ErrRegistryFrozen.
func (r *Registry[T]) Freeze() {
	if r.frozen.CompareAndSwap(false, true) {
		r.logger.Debug().Int("types", len(r.factories)).Msg("Registry frozen")
	}
}

// Frozen reports whether Freeze was called.
func (r *Registry[T]) Frozen() bool { return r.frozen.Load() }

func (r *Registry[T]) checkNotFrozen(typ *modeltype.Type) error {
	if r.frozen.Load() {
		return modelerr.New(modelerr.ErrRegistryFrozen,
			fmt.Sprintf("Cannot register a factory for type %s because the %s container is frozen.", typ.Name(), r.displayName))
	}
	return nil
}
