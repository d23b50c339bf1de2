// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package manifest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/module"

	"github.com/kilnbuild/kiln/pkg/modelerr"
	"github.com/kilnbuild/kiln/pkg/version"
)

var (
	// pluginIDPattern matches lowercase ids starting with a letter, 3-63 chars.
	pluginIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{2,62}$`)
	typeNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("plugin_id", func(fl validator.FieldLevel) bool {
		return pluginIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("type_name", func(fl validator.FieldLevel) bool {
		return typeNamePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidationError lists every problem found in one manifest.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Validate checks m against the model API version this binary implements.
// All problems are reported together.
func (m *Manifest) Validate() error {
	return m.validateAgainst(version.CheckCompatible)
}

func (m *Manifest) validateAgainst(compatible func(constraint string) error) error {
	var problems []string

	if err := validate.Struct(m); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			problems = append(problems, describeFieldError(fe))
		}
	}

	if m.Plugin.Version != "" {
		if _, err := semver.NewVersion(m.Plugin.Version); err != nil {
			problems = append(problems, fmt.Sprintf("plugin version %q is not a semantic version", m.Plugin.Version))
		}
	}
	if err := compatible(m.Plugin.Requires); err != nil {
		problems = append(problems, err.Error())
	}

	seenTypes := make(map[string]bool, len(m.Types))
	for _, t := range m.Types {
		if t.Package != "" {
			if err := module.CheckImportPath(t.Package); err != nil {
				problems = append(problems, fmt.Sprintf("type %s: invalid package: %v", t.Name, err))
			}
		}
		key := qualified(t.Package, t.Name)
		if seenTypes[key] {
			problems = append(problems, fmt.Sprintf("type %s is declared more than once", key))
		}
		seenTypes[key] = true
		if t.Kind == "interface" && t.Abstract {
			problems = append(problems, fmt.Sprintf("type %s: interfaces are always abstract", t.Name))
		}
	}

	seenRules := make(map[string]bool, len(m.Rules))
	for _, r := range m.Rules {
		if seenRules[r.Name] {
			problems = append(problems, fmt.Sprintf("rule %s is declared more than once", r.Name))
		}
		seenRules[r.Name] = true
		if r.Model == ModelComponent && r.Language != "" {
			problems = append(problems, fmt.Sprintf("rule %s: language is only valid for language rules", r.Name))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return modelerr.Wrap(modelerr.ErrInvalidManifest,
		fmt.Sprintf("Manifest %s is invalid.", m.Source),
		&ValidationError{Source: m.Source, Problems: problems})
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Manifest.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "plugin_id":
		return fmt.Sprintf("%s %q must be lowercase alphanumeric with hyphens/underscores, 3-63 chars, starting with a letter", field, fe.Value())
	case "type_name":
		return fmt.Sprintf("%s %q is not a valid type name", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed '%s' validation", field, fe.Tag())
	}
}

func qualified(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}
