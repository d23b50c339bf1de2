// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package core wires a configuration session: the type universe, the
// services handed to rule actions, the model graph with its catalog nodes,
// and the language and component type rule handlers.
//
// A Session is used from a single goroutine while it is configured. After
// Freeze, the registries it hands out may be used concurrently for creation.
package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"github.com/kilnbuild/kiln/pkg/component"
	"github.com/kilnbuild/kiln/pkg/hook"
	"github.com/kilnbuild/kiln/pkg/language"
	"github.com/kilnbuild/kiln/pkg/manifest"
	"github.com/kilnbuild/kiln/pkg/model"
	"github.com/kilnbuild/kiln/pkg/modelerr"
	"github.com/kilnbuild/kiln/pkg/modeltype"
	"github.com/kilnbuild/kiln/pkg/paths"
	"github.com/kilnbuild/kiln/pkg/registry"
	"github.com/kilnbuild/kiln/pkg/rule"
	"github.com/kilnbuild/kiln/pkg/service"
)

// Options configures a new session.
type Options struct {
	// SourceRoot is the base directory source set paths resolve against.
	// Empty means the working directory.
	SourceRoot string
	// Hooks receives the session lifecycle events. A new manager is used when nil.
	Hooks *hook.Manager
	// Types are added to the universe next to the built-in model types.
	Types []*modeltype.Type
}

// Session is one configuration run.
type Session struct {
	universe     *modeltype.Universe
	services     *service.Registry
	instantiator *service.Instantiator
	resolver     *paths.Resolver
	graph        *model.Graph
	handlers     []*rule.Handler
	deps         rule.Dependencies
	hooks        *hook.Manager
	plugins      []manifest.Plugin

	sourceSets *registry.Registry[language.SourceSet]
	frozen     bool
	logger     zerolog.Logger
}

// NewSession builds a session ready to accept rule declarations.
func NewSession(opts Options) (*Session, error) {
	builtins := []*modeltype.Type{
		modeltype.Named,
		language.SourceSetType, language.BaseSourceSetType,
		component.SpecType, component.BaseSpecType,
	}
	universe, err := modeltype.NewUniverse(append(builtins, opts.Types...)...)
	if err != nil {
		return nil, fmt.Errorf("build type universe: %w", err)
	}

	resolver, err := paths.NewResolver(opts.SourceRoot)
	if err != nil {
		return nil, err
	}
	instantiator := service.NewInstantiator()
	services := service.NewRegistry()
	if err := services.Add(service.InstantiatorType, instantiator); err != nil {
		return nil, err
	}
	if err := services.Add(paths.ResolverType, resolver); err != nil {
		return nil, err
	}

	graph := model.NewGraph()
	nodes := []struct {
		ref    model.Reference
		create model.Creator
	}{
		{model.Of(service.LookupType).WithPath("services"), func() (any, error) { return services, nil }},
		{model.Of(language.RegistryType).WithPath("languages"), func() (any, error) { return language.NewRegistry(), nil }},
		{model.Of(component.ContainerType).WithPath("components"), func() (any, error) { return component.NewContainer(instantiator), nil }},
	}
	for _, n := range nodes {
		if err := graph.Create(n.ref, n.create); err != nil {
			return nil, err
		}
	}

	hooks := opts.Hooks
	if hooks == nil {
		hooks = hook.NewManager()
	}

	return &Session{
		universe:     universe,
		services:     services,
		instantiator: instantiator,
		resolver:     resolver,
		graph:        graph,
		handlers:     []*rule.Handler{rule.NewLanguageTypeHandler(), rule.NewComponentTypeHandler()},
		hooks:        hooks,
		logger:       log.With().Str("component", "core.session").Logger(),
	}, nil
}

// Universe returns the session's type universe.
func (s *Session) Universe() *modeltype.Universe { return s.universe }

// Graph returns the model graph.
func (s *Session) Graph() *model.Graph { return s.graph }

// Services returns the read-only service lookup.
func (s *Session) Services() service.Lookup { return s.services }

// Instantiator returns the instantiation service.
func (s *Session) Instantiator() *service.Instantiator { return s.instantiator }

// Resolver returns the path resolution service.
func (s *Session) Resolver() *paths.Resolver { return s.resolver }

// Hooks returns the lifecycle hook manager.
func (s *Session) Hooks() *hook.Manager { return s.hooks }

// Dependencies returns the plugins required by the applied rules.
func (s *Session) Dependencies() []string { return s.deps.List() }

// Plugins returns the plugins loaded from manifests, in load order.
func (s *Session) Plugins() []manifest.Plugin {
	return append([]manifest.Plugin(nil), s.plugins...)
}

// Frozen reports whether Freeze was called.
func (s *Session) Frozen() bool { return s.frozen }

// Apply registers rule declarations with the handler whose builder each
// method takes. It stops at the first invalid declaration.
func (s *Session) Apply(methods ...rule.Method) error {
	if err := s.checkNotFrozen(); err != nil {
		return err
	}
	return s.register(methods, s.graph, &s.deps)
}

func (s *Session) register(methods []rule.Method, graph rule.Mutator, deps *rule.Dependencies) error {
	for _, m := range methods {
		h := s.handlerFor(m)
		if h == nil {
			return modelerr.New(modelerr.ErrInvalidRuleShape,
				fmt.Sprintf("%s is not a type rule method; its parameter must be one of: %s.", m.Descriptor(), s.builderNames())).
				WithOrigin(m.Descriptor())
		}
		if err := h.Register(m, graph, deps); err != nil {
			return err
		}
	}
	return nil
}

// discard accepts every rule without queueing it.
type discard struct{}

func (discard) Mutate(*model.Rule) error { return nil }

func (s *Session) checkNotFrozen() error {
	if s.frozen {
		return modelerr.New(modelerr.ErrRegistryFrozen, "Cannot apply rules because the session is frozen.")
	}
	return nil
}

func (s *Session) handlerFor(m rule.Method) *rule.Handler {
	for _, h := range s.handlers {
		if h.Accepts(m) {
			return h
		}
	}
	return nil
}

func (s *Session) builderNames() string {
	names := make([]string, len(s.handlers))
	for i, h := range s.handlers {
		names[i] = h.BuilderType().String()
	}
	return strings.Join(names, ", ")
}

// Load validates and declares manifests, registers constructors for the
// classes they declare and applies their rules. The configured hook fires
// once every manifest is applied.
//
// Load is all or nothing: the manifests are declared and their rules checked
// against a copy of the universe first, and the session is only changed when
// every manifest passes.
func (s *Session) Load(ctx context.Context, manifests ...*manifest.Manifest) error {
	if err := s.checkNotFrozen(); err != nil {
		return err
	}
	staged := s.universe.Clone()
	decls := make([]*manifest.Declaration, len(manifests))
	for i, m := range manifests {
		if err := m.Validate(); err != nil {
			return err
		}
		d, err := m.Declare(staged)
		if err != nil {
			return err
		}
		if err := s.register(d.Methods, discard{}, nil); err != nil {
			return err
		}
		decls[i] = d
	}

	for i, m := range manifests {
		d := decls[i]
		for _, t := range d.Types {
			if err := s.universe.Add(t); err != nil {
				return err
			}
			if err := s.registerDeclared(t); err != nil {
				return err
			}
		}
		if err := s.Apply(d.Methods...); err != nil {
			return err
		}
		s.plugins = append(s.plugins, m.Plugin)
		s.logger.Debug().
			Str("plugin", m.Plugin.ID).
			Int("types", len(d.Types)).
			Int("rules", len(d.Methods)).
			Msg("Manifest applied")
	}
	s.hooks.Trigger(ctx, hook.EventConfigured)
	return nil
}

// RegisterConstructor binds a Go constructor to a concrete class.
func (s *Session) RegisterConstructor(implementation *modeltype.Type, ctor service.Constructor) error {
	return s.instantiator.Register(implementation, ctor)
}

// registerDeclared gives concrete classes declared by a manifest a
// constructor producing the generic declared source set or component.
func (s *Session) registerDeclared(t *modeltype.Type) error {
	if t.Kind() != modeltype.KindClass || t.IsAbstract() || s.instantiator.CanInstantiate(t) {
		return nil
	}
	switch {
	case language.BaseSourceSetType.IsAssignableFrom(t):
		return s.instantiator.Register(t, func(...any) (any, error) {
			return language.NewDeclaredSourceSet(t), nil
		})
	case component.BaseSpecType.IsAssignableFrom(t):
		return s.instantiator.Register(t, func(args ...any) (any, error) {
			var name string
			if len(args) > 0 {
				name = cast.ToString(args[0])
			}
			return component.NewDeclaredSpec(name, t), nil
		})
	}
	s.logger.Debug().Str("type", t.String()).Msg("Declared class has no built-in constructor")
	return nil
}

// Catalog realizes and returns the language catalog.
func (s *Session) Catalog() (*language.Registry, error) {
	return model.Get[*language.Registry](s.graph, model.Of(language.RegistryType))
}

// Components realizes and returns the component container.
func (s *Session) Components() (*component.Container, error) {
	return model.Get[*component.Container](s.graph, model.Of(component.ContainerType))
}

// SourceSets returns a source set registry holding a factory for every
// registered language. It is built once, from the realized catalog.
func (s *Session) SourceSets() (*registry.Registry[language.SourceSet], error) {
	if s.sourceSets != nil {
		return s.sourceSets, nil
	}
	catalog, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	sets := registry.New[language.SourceSet](language.SourceSetType,
		registry.WithDisplayName("LanguageSourceSet"),
		registry.WithInstantiator(s.instantiator))
	if err := catalog.ApplyTo(sets); err != nil {
		return nil, err
	}
	if s.frozen {
		sets.Freeze()
	}
	s.sourceSets = sets
	return sets, nil
}

// Freeze realizes the catalogs, makes the services and registries read-only
// and fires the frozen hook. Calling it again is a no-op.
func (s *Session) Freeze(ctx context.Context) error {
	if s.frozen {
		return nil
	}
	components, err := s.Components()
	if err != nil {
		return err
	}
	sets, err := s.SourceSets()
	if err != nil {
		return err
	}
	s.services.Freeze()
	components.Freeze()
	sets.Freeze()
	s.frozen = true
	s.logger.Debug().Int("languages", sets.Len()).Int("components", components.Len()).Msg("Session frozen")
	s.hooks.Trigger(ctx, hook.EventFrozen)
	return nil
}
