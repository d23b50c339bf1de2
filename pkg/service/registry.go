// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package service provides the read-only service lookup that rule actions
// use to fetch collaborators at firing time.
//
// It is not a dependency injection container: services are
// added once by the host before configuration begins, there is no lifecycle
// management and no resolution of one service from another.
package service

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

// LookupType is the model type of the service locator node.
var LookupType = modeltype.Interface("ServiceRegistry", modeltype.InPackage("kiln/service"))

// Lookup is the read-only view handed to rule actions.
type Lookup interface {
	// Get returns the service registered for serviceType.
	// Fails with modelerr.ErrServiceMissing when absent.
	Get(serviceType *modeltype.Type) (any, error)
}

// Registry is the host-populated service table.
type Registry struct {
	services map[*modeltype.Type]any
	frozen   atomic.Bool
	logger   zerolog.Logger
}

// NewRegistry creates an empty service registry.
func NewRegistry() *Registry {
	return &Registry{
		services: make(map[*modeltype.Type]any),
		logger:   log.With().Str("component", "service.registry").Logger(),
	}
}

// Add registers instance under serviceType. Only the host configuration
// phase may call it, before Freeze.
func (r *Registry) Add(serviceType *modeltype.Type, instance any) error {
	if serviceType == nil || instance == nil {
		return fmt.Errorf("service type and instance are required")
	}
	if r.frozen.Load() {
		return modelerr.New(modelerr.ErrRegistryFrozen,
			fmt.Sprintf("Cannot add service %s because the service registry is frozen.", serviceType.Name()))
	}
	if _, exists := r.services[serviceType]; exists {
		return modelerr.New(modelerr.ErrDuplicateRegistration,
			fmt.Sprintf("Cannot add service %s because it is already registered.", serviceType.Name()))
	}
	r.services[serviceType] = instance
	r.logger.Debug().Str("service", serviceType.String()).Msg("Service registered")
	return nil
}

// Get implements Lookup.
func (r *Registry) Get(serviceType *modeltype.Type) (any, error) {
	instance, ok := r.services[serviceType]
	if !ok {
		return nil, modelerr.New(modelerr.ErrServiceMissing,
			fmt.Sprintf("No service of type %s available. Known services are: %s", serviceType.Name(), r.names()))
	}
	return instance, nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

func (r *Registry) names() string {
	names := make([]string, 0, len(r.services))
	for t := range r.services {
		names = append(names, t.Name())
	}
	if len(names) == 0 {
		return "(None)"
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// Get fetches a service and asserts its Go type.
func Get[T any](lookup Lookup, serviceType *modeltype.Type) (T, error) {
	var zero T
	instance, err := lookup.Get(serviceType)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, modelerr.New(modelerr.ErrServiceMissing,
			fmt.Sprintf("Service %s has unexpected implementation %T.", serviceType.Name(), instance))
	}
	return typed, nil
}
