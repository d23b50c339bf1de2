// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package rule

// ComponentModelBasePlugin is the plugin every type rule source requires.
const ComponentModelBasePlugin = "component-model-base"

// Dependencies collects the plugins required by the rule sources inspected
// so far, in first-seen order.
type Dependencies struct {
	ids  []string
	seen map[string]bool
}

// Add records plugin ids.
func (d *Dependencies) Add(ids ...string) {
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	for _, id := range ids {
		if id == "" || d.seen[id] {
			continue
		}
		d.seen[id] = true
		d.ids = append(d.ids, id)
	}
}

// List returns the recorded ids.
func (d *Dependencies) List() []string {
	return append([]string(nil), d.ids...)
}

// Has reports whether id was recorded.
func (d *Dependencies) Has(id string) bool {
	return d.seen[id]
}
