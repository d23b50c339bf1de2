// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package rule

import (
	"fmt"

	"github.com/kilnbuild/kiln/pkg/modelerr"
	"github.com/kilnbuild/kiln/pkg/modeltype"
)

// ImplementationDeterminer checks the implementation chosen by a type rule.
type ImplementationDeterminer struct {
	modelName          string
	baseImplementation *modeltype.Type
}

// NewImplementationDeterminer returns a determiner requiring implementations
// to extend baseImplementation.
func NewImplementationDeterminer(modelName string, baseImplementation *modeltype.Type) ImplementationDeterminer {
	return ImplementationDeterminer{modelName: modelName, baseImplementation: baseImplementation}
}

// Determine returns the implementation of declared set on b, nil when b has
// none, or an ErrInvalidModelType error when it is unusable.
func (d ImplementationDeterminer) Determine(declared *modeltype.Type, b *TypeBuilder) (*modeltype.Type, error) {
	impl := b.Implementation()
	if impl == nil {
		return nil, nil
	}
	model := capitalize(d.modelName)
	if d.baseImplementation != nil && !d.baseImplementation.IsAssignableFrom(impl) {
		return nil, modelerr.New(modelerr.ErrInvalidModelType,
			fmt.Sprintf("%s implementation '%s' must extend '%s'.", model, impl, d.baseImplementation))
	}
	if !declared.IsAssignableFrom(impl) {
		return nil, modelerr.New(modelerr.ErrInvalidModelType,
			fmt.Sprintf("%s implementation '%s' must implement '%s'.", model, impl, declared))
	}
	if impl.Kind() != modeltype.KindClass || impl.IsAbstract() {
		return nil, modelerr.New(modelerr.ErrInvalidModelType,
			fmt.Sprintf("%s implementation '%s' must be a concrete class.", model, impl))
	}
	return impl, nil
}
