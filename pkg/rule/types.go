// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package rule

import (
	"fmt"

	"github.com/kilnbuild/kiln/pkg/component"
	"github.com/kilnbuild/kiln/pkg/language"
	"github.com/kilnbuild/kiln/pkg/model"
	"github.com/kilnbuild/kiln/pkg/modeltype"
)

var (
	// LanguageTypeBuilderType is the builder parameter of language type rules.
	LanguageTypeBuilderType = modeltype.Interface("LanguageTypeBuilder", modeltype.InPackage("kiln/rule"))
	// ComponentTypeBuilderType is the builder parameter of component type rules.
	ComponentTypeBuilderType = modeltype.Interface("ComponentTypeBuilder", modeltype.InPackage("kiln/rule"))
)

// LanguageRule returns the parameter type of a rule declaring languageType.
func LanguageRule(languageType *modeltype.Type) *modeltype.Type {
	return modeltype.Parameterize(LanguageTypeBuilderType, languageType)
}

// ComponentRule returns the parameter type of a rule declaring componentType.
func ComponentRule(componentType *modeltype.Type) *modeltype.Type {
	return modeltype.Parameterize(ComponentTypeBuilderType, componentType)
}

// NewLanguageTypeHandler returns the handler of language type rules. Valid
// rules add a language.Registration to the language catalog.
func NewLanguageTypeHandler() *Handler {
	return NewTypeRuleHandler(Config{
		ModelName:          "language",
		BuilderType:        LanguageTypeBuilderType,
		BaseInterface:      language.SourceSetType,
		BaseImplementation: language.BaseSourceSetType,
		Catalog:            model.Of(language.RegistryType),
		Requires:           []string{ComponentModelBasePlugin},
		Register: func(ctx RegistrationContext) error {
			catalog, ok := ctx.Catalog.(*language.Registry)
			if !ok {
				return fmt.Errorf("language catalog has unexpected type %T", ctx.Catalog)
			}
			return catalog.Add(language.NewRegistration(ctx.Name, ctx.Type, ctx.Implementation, ctx.Instantiator, ctx.Resolver))
		},
	})
}

// NewComponentTypeHandler returns the handler of component type rules. Valid
// rules bind the implementation into the component container.
func NewComponentTypeHandler() *Handler {
	return NewTypeRuleHandler(Config{
		ModelName:          "component",
		BuilderType:        ComponentTypeBuilderType,
		BaseInterface:      component.SpecType,
		BaseImplementation: component.BaseSpecType,
		Catalog:            model.Of(component.ContainerType),
		Requires:           []string{ComponentModelBasePlugin},
		Register: func(ctx RegistrationContext) error {
			container, ok := ctx.Catalog.(*component.Container)
			if !ok {
				return fmt.Errorf("component container has unexpected type %T", ctx.Catalog)
			}
			return container.RegisterBinding(ctx.Type, ctx.Implementation)
		},
	})
}
