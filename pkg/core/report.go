// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package core

import (
	"github.com/kilnbuild/kiln/pkg/model"
)

// Report describes the state of a session for display.
type Report struct {
	Plugins      []PluginReport   `json:"plugins" yaml:"plugins"`
	Languages    []LanguageReport `json:"languages" yaml:"languages"`
	Components   []string         `json:"components" yaml:"components"`
	Elements     []ElementReport  `json:"elements" yaml:"elements"`
	Dependencies []string         `json:"dependencies" yaml:"dependencies"`
	Frozen       bool             `json:"frozen" yaml:"frozen"`
}

// PluginReport identifies one loaded plugin.
type PluginReport struct {
	ID      string `json:"id" yaml:"id"`
	Version string `json:"version" yaml:"version"`
}

// LanguageReport is one catalog entry.
type LanguageReport struct {
	Name           string `json:"name" yaml:"name"`
	Type           string `json:"type" yaml:"type"`
	Implementation string `json:"implementation" yaml:"implementation"`
}

// ElementReport is one model graph element.
type ElementReport struct {
	Element string `json:"element" yaml:"element"`
	State   string `json:"state" yaml:"state"`
	Fired   int    `json:"fired" yaml:"fired"`
}

// Report realizes the catalogs and describes the session.
func (s *Session) Report() (*Report, error) {
	catalog, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	components, err := s.Components()
	if err != nil {
		return nil, err
	}

	r := &Report{
		Plugins:      make([]PluginReport, 0, len(s.plugins)),
		Languages:    make([]LanguageReport, 0, catalog.Len()),
		Components:   make([]string, 0, components.Len()),
		Dependencies: s.Dependencies(),
		Frozen:       s.frozen,
	}
	for _, p := range s.plugins {
		r.Plugins = append(r.Plugins, PluginReport{ID: p.ID, Version: p.Version})
	}
	for _, reg := range catalog.All() {
		r.Languages = append(r.Languages, LanguageReport{
			Name:           reg.Name,
			Type:           reg.DeclaredType.String(),
			Implementation: reg.ImplementationType.String(),
		})
	}
	for _, t := range components.CreatableTypes() {
		r.Components = append(r.Components, t.String())
	}
	for _, ref := range s.graph.Elements() {
		state, _ := s.graph.State(ref)
		fired := 0
		for _, h := range s.graph.History(ref) {
			if h.Event == model.EventFired {
				fired++
			}
		}
		r.Elements = append(r.Elements, ElementReport{Element: ref.String(), State: state.String(), Fired: fired})
	}
	return r, nil
}
