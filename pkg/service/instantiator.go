// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package service

import (
	"fmt"

	"github.com/kilnbuild/kiln/pkg/modelerr"
	"github.com/kilnbuild/kiln/pkg/modeltype"
)

// InstantiatorType is the service type of the instantiation service.
var InstantiatorType = modeltype.Interface("Instantiator", modeltype.InPackage("kiln/service"))

// Constructor builds an instance of one implementation type.
type Constructor func(args ...any) (any, error)

// Instantiator constructs objects by model type from an explicit
// constructor table.
type Instantiator struct {
	constructors map[*modeltype.Type]Constructor
}

// NewInstantiator returns an empty instantiator.
func NewInstantiator() *Instantiator {
	return &Instantiator{constructors: make(map[*modeltype.Type]Constructor)}
}

// Register binds the constructor of a concrete class.
func (i *Instantiator) Register(implementation *modeltype.Type, ctor Constructor) error {
	if implementation == nil || ctor == nil {
		return fmt.Errorf("implementation type and constructor are required")
	}
	if implementation.IsAbstract() {
		return modelerr.New(modelerr.ErrInstantiationFailed,
			fmt.Sprintf("Cannot register a constructor for %s because it is abstract.", implementation.Name()))
	}
	if _, exists := i.constructors[implementation]; exists {
		return modelerr.New(modelerr.ErrDuplicateRegistration,
			fmt.Sprintf("A constructor for %s is already registered.", implementation.Name()))
	}
	i.constructors[implementation] = ctor
	return nil
}

// CanInstantiate reports whether a constructor is known for t.
func (i *Instantiator) CanInstantiate(t *modeltype.Type) bool {
	_, ok := i.constructors[t]
	return ok
}

// NewInstance constructs an instance of implementation with args.
func (i *Instantiator) NewInstance(implementation *modeltype.Type, args ...any) (any, error) {
	if implementation.IsAbstract() {
		return nil, modelerr.New(modelerr.ErrInstantiationFailed,
			fmt.Sprintf("Could not create an instance of type %s because it is abstract.", implementation.Name()))
	}
	ctor, ok := i.constructors[implementation]
	if !ok {
		return nil, modelerr.New(modelerr.ErrInstantiationFailed,
			fmt.Sprintf("Could not create an instance of type %s because no constructor is registered.", implementation.Name()))
	}
	instance, err := ctor(args...)
	if err != nil {
		return nil, modelerr.Wrap(modelerr.ErrInstantiationFailed,
			fmt.Sprintf("Could not create an instance of type %s", implementation.Name()), err)
	}
	return instance, nil
}
