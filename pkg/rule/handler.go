// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package rule

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kilnbuild/kiln/pkg/model"
	"github.com/kilnbuild/kiln/pkg/modelerr"
	"github.com/kilnbuild/kiln/pkg/modeltype"
	"github.com/kilnbuild/kiln/pkg/paths"
	"github.com/kilnbuild/kiln/pkg/service"
)

// Mutator accepts model rules.
type Mutator interface {
	Mutate(rule *model.Rule) error
}

// RegistrationContext is handed to the registration action when the rule
// produced by a valid declaration fires.
type RegistrationContext struct {
	Type           *modeltype.Type
	Implementation *modeltype.Type
	Name           string
	// Catalog is the realized value of the handler's catalog node.
	Catalog      any
	Instantiator *service.Instantiator
	Resolver     *paths.Resolver
}

// Config describes one kind of type rule.
type Config struct {
	// ModelName is used in diagnostics, e.g. "language".
	ModelName string
	// BuilderType is the raw builder interface the rule parameter must implement.
	BuilderType *modeltype.Type
	// BaseInterface is the type every declared type must extend.
	BaseInterface *modeltype.Type
	// BaseImplementation is the type every implementation must extend.
	BaseImplementation *modeltype.Type
	// Catalog is the subject of the registration rule.
	Catalog model.Reference
	// Register adds the declared kind to the catalog.
	Register func(ctx RegistrationContext) error
	// Requires lists the plugins a rule source using this handler depends on.
	Requires []string
}

// Handler validates type rule declarations and registers their model rules.
type Handler struct {
	cfg        Config
	determiner ImplementationDeterminer
	logger     zerolog.Logger
}

// NewTypeRuleHandler creates a handler for cfg.
func NewTypeRuleHandler(cfg Config) *Handler {
	return &Handler{
		cfg:        cfg,
		determiner: NewImplementationDeterminer(cfg.ModelName, cfg.BaseImplementation),
		logger: log.With().
			Str("component", "rule.handler").
			Str("model", cfg.ModelName).
			Logger(),
	}
}

// ModelName returns the name of the kind of model the handler registers.
func (h *Handler) ModelName() string { return h.cfg.ModelName }

// BuilderType returns the builder interface rule parameters must implement.
func (h *Handler) BuilderType() *modeltype.Type { return h.cfg.BuilderType }

// Accepts reports whether m looks like a rule for this handler, that is,
// whether its first parameter is this handler's builder.
func (h *Handler) Accepts(m Method) bool {
	return len(m.Params) > 0 && m.Params[0] != nil &&
		h.cfg.BuilderType.IsAssignableFrom(m.Params[0].Raw())
}

// Register validates m, runs its body with a fresh builder and, when the body
// declared an implementation, registers a rule against the catalog. A rule
// body that declares no implementation is valid and registers nothing.
// Nothing is registered when validation fails.
func (h *Handler) Register(m Method, graph Mutator, deps *Dependencies) error {
	declared, err := h.readType(m)
	if err != nil {
		return h.invalid(m, err)
	}

	builder := newTypeBuilder(h.cfg.ModelName)
	if m.Body != nil {
		if err := m.Body(builder); err != nil {
			if errors.Is(err, modelerr.ErrConfiguration) {
				return h.invalid(m, err)
			}
			return modelerr.Wrap(modelerr.ErrRuleExecutionFailed,
				"Exception thrown while executing model rule: "+m.Descriptor(), err).WithOrigin(m.Descriptor())
		}
	}

	impl, err := h.determiner.Determine(declared, builder)
	if err != nil {
		return h.invalid(m, err)
	}
	if deps != nil {
		deps.Add(h.cfg.Requires...)
	}
	if impl == nil {
		h.logger.Debug().Str("rule", m.Descriptor()).Msg("No implementation declared, nothing to register")
		return nil
	}

	name := builder.Name()
	r := model.NewRule(m.Descriptor(), h.cfg.Catalog, func(subject any, inputs model.Inputs) error {
		lookup, err := model.InputAt[service.Lookup](inputs, 0)
		if err != nil {
			return err
		}
		instantiator, err := service.Get[*service.Instantiator](lookup, service.InstantiatorType)
		if err != nil {
			return err
		}
		resolver, err := service.Get[*paths.Resolver](lookup, paths.ResolverType)
		if err != nil {
			return err
		}
		return h.cfg.Register(RegistrationContext{
			Type:           declared,
			Implementation: impl,
			Name:           name,
			Catalog:        subject,
			Instantiator:   instantiator,
			Resolver:       resolver,
		})
	}, model.Of(service.LookupType))

	if err := graph.Mutate(r); err != nil {
		return err
	}
	h.logger.Debug().
		Str("rule", m.Descriptor()).
		Str("type", declared.String()).
		Str("implementation", impl.String()).
		Msg("Type rule registered")
	return nil
}

func (h *Handler) readType(m Method) (*modeltype.Type, error) {
	description := fmt.Sprintf("%s declared as a %s type rule", m.Descriptor(), h.cfg.ModelName)
	if m.Returns != nil {
		return nil, modelerr.New(modelerr.ErrInvalidRuleShape,
			fmt.Sprintf("Method %s must not have a return value.", description))
	}
	builderName := h.cfg.BuilderType.String()
	if len(m.Params) != 1 || m.Params[0] == nil || !h.cfg.BuilderType.IsAssignableFrom(m.Params[0].Raw()) {
		return nil, modelerr.New(modelerr.ErrInvalidRuleShape,
			fmt.Sprintf("Method %s must have a single parameter of type '%s'.", description, builderName))
	}
	args := m.Params[0].TypeArguments()
	if len(args) != 1 {
		return nil, modelerr.New(modelerr.ErrInvalidRuleShape,
			fmt.Sprintf("Parameter of type '%s' must declare a type parameter.", builderName))
	}
	sub := args[0]
	title := capitalize(h.cfg.ModelName)
	if sub.IsWildcard() {
		return nil, modelerr.New(modelerr.ErrInvalidRuleShape,
			fmt.Sprintf("%s type '%s' cannot be a wildcard type (i.e. cannot use ? super, ? extends etc.).", title, sub))
	}
	declared := h.cfg.BaseInterface.AsSubtype(sub)
	if declared == nil {
		return nil, modelerr.New(modelerr.ErrInvalidModelType,
			fmt.Sprintf("%s type '%s' is not a subtype of '%s'.", title, sub, h.cfg.BaseInterface))
	}
	return declared, nil
}

func (h *Handler) invalid(m Method, cause error) error {
	kind := modelerr.ErrInvalidRuleShape
	var me *modelerr.Error
	if errors.As(cause, &me) && me.Class() == modelerr.ErrConfiguration {
		kind = me.Kind
	}
	return modelerr.Wrap(kind,
		fmt.Sprintf("%s is not a valid %s model rule method.", m.Descriptor(), h.cfg.ModelName), cause).
		WithOrigin(m.Descriptor())
}
