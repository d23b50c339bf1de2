// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package manifest reads declarative plugin manifests. A manifest declares
// model types and the language and component type rules a plugin contributes,
// in YAML or HCL:
//
//	plugin "native-rc" {
//	  version  = "1.2.0"
//	  requires = ">= 1.0.0, < 2.0.0"
//	}
//
//	type "WindowsResourceSet" {
//	  kind    = "interface"
//	  extends = ["LanguageSourceSet"]
//	}
//
//	rule "resources" {
//	  model          = "language"
//	  type           = "WindowsResourceSet"
//	  language       = "rc"
//	  implementation = "DefaultWindowsResourceSet"
//	}
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"

	"github.com/kilnbuild/kiln/pkg/modelerr"
)

// Format is a manifest encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// Model names accepted in rule declarations.
const (
	ModelLanguage  = "language"
	ModelComponent = "component"
)

// Manifest is a decoded plugin manifest.
type Manifest struct {
	Plugin Plugin     `yaml:"plugin" hcl:"plugin,block"`
	Types  []TypeDecl `yaml:"types,omitempty" hcl:"type,block" validate:"dive"`
	Rules  []RuleDecl `yaml:"rules,omitempty" hcl:"rule,block" validate:"dive"`

	// Source is the file the manifest was read from.
	Source string `yaml:"-"`
}

// Plugin identifies the contributing plugin.
type Plugin struct {
	ID          string `yaml:"id" hcl:"id,label" validate:"required,plugin_id"`
	Version     string `yaml:"version" hcl:"version" validate:"required"`
	Requires    string `yaml:"requires,omitempty" hcl:"requires,optional"`
	Description string `yaml:"description,omitempty" hcl:"description,optional" validate:"max=256"`
}

// TypeDecl declares a model type.
type TypeDecl struct {
	Name     string   `yaml:"name" hcl:"name,label" validate:"required,type_name"`
	Package  string   `yaml:"package,omitempty" hcl:"package,optional"`
	Kind     string   `yaml:"kind" hcl:"kind" validate:"required,oneof=interface class"`
	Abstract bool     `yaml:"abstract,omitempty" hcl:"abstract,optional"`
	Named    bool     `yaml:"named,omitempty" hcl:"named,optional"`
	Extends  []string `yaml:"extends,omitempty" hcl:"extends,optional" validate:"dive,required"`
}

// RuleDecl declares a type rule.
type RuleDecl struct {
	Name  string `yaml:"name" hcl:"name,label" validate:"required,type_name"`
	Model string `yaml:"model" hcl:"model" validate:"required,oneof=language component"`
	// Type is the declared type. Wildcards ("? extends T") are accepted here
	// and rejected when the rule is registered.
	Type string `yaml:"type" hcl:"type" validate:"required"`
	// Language is the language name; defaults to the rule name.
	Language       string `yaml:"language,omitempty" hcl:"language,optional"`
	Implementation string `yaml:"implementation,omitempty" hcl:"implementation,optional"`
}

// FormatOf returns the format implied by the file extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", modelerr.New(modelerr.ErrInvalidManifest,
			fmt.Sprintf("Manifest %s has an unsupported extension; use .yaml, .yml or .hcl.", path))
	}
}

// Load reads and decodes the manifest at path. It does not validate it.
func Load(path string) (*Manifest, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return Parse(data, format, path)
}

// LoadAll loads every manifest in paths, stopping at the first failure.
func LoadAll(paths ...string) ([]*Manifest, error) {
	manifests := make([]*Manifest, 0, len(paths))
	for _, p := range paths {
		m, err := Load(p)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// Parse decodes data in format. source names the input in diagnostics.
func Parse(data []byte, format Format, source string) (*Manifest, error) {
	var (
		m   Manifest
		err error
	)
	switch format {
	case FormatYAML:
		err = decodeYAML(data, &m)
	case FormatHCL:
		err = decodeHCL(data, source, &m)
	default:
		return nil, modelerr.New(modelerr.ErrInvalidManifest, fmt.Sprintf("Unknown manifest format %q.", format))
	}
	if err != nil {
		return nil, modelerr.Wrap(modelerr.ErrInvalidManifest,
			fmt.Sprintf("Could not decode manifest %s.", source), err)
	}
	m.Source = source
	return &m, nil
}

func decodeYAML(data []byte, m *Manifest) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("manifest is empty")
		}
		return err
	}
	return nil
}

func decodeHCL(data []byte, source string, m *Manifest) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, source)
	if diags.HasErrors() {
		return diags
	}
	if diags := gohcl.DecodeBody(file.Body, nil, m); diags.HasErrors() {
		return diags
	}
	return nil
}

// Encode writes m as YAML.
func (m *Manifest) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return err
	}
	return enc.Close()
}
