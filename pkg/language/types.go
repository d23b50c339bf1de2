// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package language holds the catalog of language kinds registered by model
// rules and the source sets those kinds produce.
package language

import (
	"fmt"
	"path/filepath"

	"github.com/kilnbuild/kiln/pkg/modeltype"
	"github.com/kilnbuild/kiln/pkg/paths"
)

const pkgPath = "kiln/language"

var (
	// SourceSetType is the base interface of every language source set type.
	SourceSetType = modeltype.Interface("LanguageSourceSet",
		modeltype.InPackage(pkgPath), modeltype.Extends(modeltype.Named))
	// BaseSourceSetType is the implementation every source set implementation extends.
	BaseSourceSetType = modeltype.Class("BaseLanguageSourceSet",
		modeltype.InPackage(pkgPath), modeltype.Abstract(), modeltype.Extends(SourceSetType))
	// RegistryType is the model type of the catalog node.
	RegistryType = modeltype.Interface("LanguageRegistry", modeltype.InPackage(pkgPath))
)

// SourceSet is a named set of sources in one language.
type SourceSet interface {
	Name() string
	Language() string
	SourceDir() string
}

// Initializer is implemented by source sets that are set up after
// construction. BaseSourceSet implements it.
type Initializer interface {
	Initialize(name, language string, resolver *paths.Resolver) error
}

// BaseSourceSet is embedded by source set implementations.
type BaseSourceSet struct {
	name      string
	language  string
	sourceDir string
}

// Initialize names the source set and resolves its source directory, which
// defaults to src/<name> under the resolver's base.
func (s *BaseSourceSet) Initialize(name, language string, resolver *paths.Resolver) error {
	if name == "" {
		return fmt.Errorf("source set name is required")
	}
	s.name = name
	s.language = language
	if resolver == nil {
		s.sourceDir = filepath.Join("src", name)
		return nil
	}
	dir, err := resolver.Resolve(filepath.Join("src", name))
	if err != nil {
		return fmt.Errorf("resolve source directory of %s: %w", name, err)
	}
	s.sourceDir = dir
	return nil
}

// Name returns the source set name.
func (s *BaseSourceSet) Name() string { return s.name }

// Language returns the name of the language the source set was created for.
func (s *BaseSourceSet) Language() string { return s.language }

// SourceDir returns the resolved source directory.
func (s *BaseSourceSet) SourceDir() string { return s.sourceDir }

// SetSourceDir overrides the source directory.
func (s *BaseSourceSet) SetSourceDir(dir string) { s.sourceDir = dir }

func (s *BaseSourceSet) String() string {
	return fmt.Sprintf("%s source set '%s'", s.language, s.name)
}

// DeclaredSourceSet is the source set created for implementation types that
// have no Go constructor of their own, such as types declared in manifests.
type DeclaredSourceSet struct {
	BaseSourceSet
	implementation *modeltype.Type
}

// NewDeclaredSourceSet returns an uninitialized source set of implementation.
func NewDeclaredSourceSet(implementation *modeltype.Type) *DeclaredSourceSet {
	return &DeclaredSourceSet{implementation: implementation}
}

// Implementation returns the implementation type the source set was built for.
func (s *DeclaredSourceSet) Implementation() *modeltype.Type { return s.implementation }
