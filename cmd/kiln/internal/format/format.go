// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package format renders command output as tables or JSON.
package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/kilnbuild/kiln/pkg/manifest"
	"github.com/kilnbuild/kiln/pkg/modelerr"
)

// OutputMode defines the output format for CLI commands
type OutputMode string

const (
	// ModeJSON outputs data as JSON
	ModeJSON OutputMode = "json"
	// ModeTable outputs data as aligned columns
	ModeTable OutputMode = "table"
	// ModeYAML outputs documents as YAML; tables fall back to JSON
	ModeYAML OutputMode = "yaml"
)

// Formatter provides consistent output formatting across CLI commands
type Formatter interface {
	// PrintJSON writes data as indented JSON to stdout.
	PrintJSON(data any) error

	// PrintDocument writes data as one JSON or YAML document.
	PrintDocument(data any) error

	// PrintTable writes rows under headers. In JSON mode each row becomes an object.
	PrintTable(headers []string, rows [][]string) error

	// PrintSection writes a heading above a block of table output.
	PrintSection(title string) error

	// PrintSummary writes a closing message (unless quiet).
	PrintSummary(message string) error

	// PrintProblems lists manifest validation problems.
	PrintProblems(source string, problems []string) error

	// PrintError writes err with its error code and suggestions.
	PrintError(err error) error
}

type formatter struct {
	stdout io.Writer
	stderr io.Writer
	mode   OutputMode
	quiet  bool
	color  bool
}

// New creates a new Formatter
func New(stdout, stderr io.Writer, mode OutputMode, quiet, color bool) Formatter {
	return &formatter{
		stdout: stdout,
		stderr: stderr,
		mode:   mode,
		quiet:  quiet,
		color:  color,
	}
}

var sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))

func (f *formatter) PrintJSON(data any) error {
	enc := json.NewEncoder(f.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (f *formatter) PrintDocument(data any) error {
	if f.mode != ModeYAML {
		return f.PrintJSON(data)
	}
	enc := yaml.NewEncoder(f.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

// structured reports whether output must stay machine readable.
func (f *formatter) structured() bool {
	return f.mode == ModeJSON || f.mode == ModeYAML
}

func (f *formatter) PrintTable(headers []string, rows [][]string) error {
	if f.structured() {
		items := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			item := make(map[string]string, len(headers))
			for i, header := range headers {
				if i < len(row) {
					item[strings.ToLower(header)] = row[i]
				}
			}
			items = append(items, item)
		}
		return f.PrintJSON(items)
	}

	w := tabwriter.NewWriter(f.stdout, 0, 0, 2, ' ', 0)
	headerLine := make([]string, len(headers))
	for i, h := range headers {
		headerLine[i] = strings.ToUpper(h)
		if f.color {
			headerLine[i] = color.New(color.Bold).Sprint(headerLine[i])
		}
	}
	if _, err := fmt.Fprintln(w, strings.Join(headerLine, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (f *formatter) PrintSection(title string) error {
	if f.structured() || f.quiet {
		return nil
	}
	if f.color {
		title = sectionStyle.Render(title)
	}
	_, err := fmt.Fprintf(f.stdout, "\n%s\n", title)
	return err
}

func (f *formatter) PrintSummary(message string) error {
	if f.quiet {
		return nil
	}
	if f.structured() {
		// keep stdout machine readable
		_, err := fmt.Fprintln(f.stderr, message)
		return err
	}
	if f.color {
		_, err := color.New(color.FgGreen).Fprintln(f.stdout, message)
		return err
	}
	_, err := fmt.Fprintln(f.stdout, message)
	return err
}

func (f *formatter) PrintProblems(source string, problems []string) error {
	if f.structured() {
		return f.PrintJSON(map[string]any{
			"manifest": source,
			"valid":    len(problems) == 0,
			"problems": problems,
		})
	}
	if len(problems) == 0 {
		return f.PrintSummary(fmt.Sprintf("✓ %s is valid", source))
	}
	header := fmt.Sprintf("✗ %s has %d problem(s):", source, len(problems))
	if f.color {
		header = color.New(color.FgRed, color.Bold).Sprint(header)
	}
	if _, err := fmt.Fprintln(f.stdout, header); err != nil {
		return err
	}
	for _, p := range problems {
		if _, err := fmt.Fprintf(f.stdout, "  - %s\n", p); err != nil {
			return err
		}
	}
	return nil
}

func (f *formatter) PrintError(err error) error {
	if err == nil {
		return nil
	}
	var code string
	var me *modelerr.Error
	if errors.As(err, &me) {
		code = me.Code()
	}
	suggestions := modelerr.Suggestions(err)

	if f.structured() {
		out := map[string]any{
			"success": false,
			"error":   err.Error(),
		}
		if code != "" {
			out["code"] = code
		}
		if len(suggestions) > 0 {
			out["suggestions"] = suggestions
		}
		var verr *manifest.ValidationError
		if errors.As(err, &verr) {
			out["problems"] = verr.Problems
		}
		return f.PrintJSON(out)
	}

	red := color.New(color.FgRed)
	if !f.color {
		red.DisableColor()
	}
	if _, werr := red.Fprintf(f.stderr, "Error: %v\n", err); werr != nil {
		return werr
	}
	if code != "" {
		if _, werr := fmt.Fprintf(f.stderr, "Code: %s\n", code); werr != nil {
			return werr
		}
	}
	if len(suggestions) > 0 {
		if _, werr := fmt.Fprintln(f.stderr, "Suggestions:"); werr != nil {
			return werr
		}
		for _, s := range suggestions {
			if _, werr := fmt.Fprintf(f.stderr, "  → %s\n", s); werr != nil {
				return werr
			}
		}
	}
	return nil
}

// ValidateMode checks if the output mode is valid
func ValidateMode(mode string) error {
	switch OutputMode(strings.ToLower(mode)) {
	case ModeJSON, ModeTable, ModeYAML:
		return nil
	default:
		return fmt.Errorf("invalid output mode: %s (must be 'json', 'yaml' or 'table')", mode)
	}
}

// ParseMode converts a string to OutputMode, defaulting to table.
func ParseMode(mode string) OutputMode {
	switch m := OutputMode(strings.ToLower(mode)); m {
	case ModeJSON, ModeYAML:
		return m
	default:
		return ModeTable
	}
}
