// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package model implements the rule dispatch engine: a graph of model
// elements, each realized lazily on first access by running its creator and
// then every rule queued against it, in registration order.
//
// A Graph is not safe for concurrent use. Rule actions run on the goroutine
// that triggered realization and may call back into the graph.
package model

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kilnbuild/kiln/pkg/modelerr"
)

// State is the realization state of a model element.
type State int

const (
	Unrealized State = iota
	Realizing
	Realized
	// Failed elements replay their recorded error on every access.
	Failed
)

func (s State) String() string {
	switch s {
	case Unrealized:
		return "unrealized"
	case Realizing:
		return "realizing"
	case Realized:
		return "realized"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Creator produces the initial value of a model element.
type Creator func() (any, error)

// Event names recorded in element history.
const (
	EventQueued    = "queued"
	EventFired     = "fired"
	EventDuplicate = "duplicate"
	EventRejected  = "rejected"
	EventFailed    = "failed"
)

// HistoryEntry is one diagnostic record of what happened to an element.
type HistoryEntry struct {
	Event      string
	RuleID     uuid.UUID
	Descriptor string
}

type node struct {
	ref      Reference
	declared bool
	creator  Creator
	state    State
	value    any
	err      error
	queue    []*Rule
	history  []HistoryEntry
}

func (n *node) record(event string, r *Rule) {
	entry := HistoryEntry{Event: event}
	if r != nil {
		entry.RuleID = r.ID
		entry.Descriptor = r.Descriptor
	}
	n.history = append(n.history, entry)
}

// Graph holds model elements and the rules that configure them.
type Graph struct {
	nodes    map[Reference]*node
	declared []*node
	known    map[uuid.UUID]*node
	seq      map[uuid.UUID]int
	stack    []*node
	logger   zerolog.Logger
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:  make(map[Reference]*node),
		known:  make(map[uuid.UUID]*node),
		seq:    make(map[uuid.UUID]int),
		logger: log.With().Str("component", "model.graph").Logger(),
	}
}

// Create declares the element ref, whose initial value is produced by creator
// when the element is first accessed. Rules registered for ref before it was
// declared are kept and run after creator.
func (g *Graph) Create(ref Reference, creator Creator) error {
	if ref.Type == nil {
		return fmt.Errorf("model element %q has no type", ref.Path)
	}
	if creator == nil {
		return fmt.Errorf("model element %s has no creator", ref)
	}
	n, exists := g.nodes[ref]
	if exists && n.declared {
		return modelerr.New(modelerr.ErrDuplicateRegistration,
			fmt.Sprintf("Model element %s is already declared.", ref))
	}
	if other := g.declaredAt(ref.Path); other != nil {
		return modelerr.New(modelerr.ErrDuplicateRegistration,
			fmt.Sprintf("Cannot declare model element %s as path %s is already used by %s.", ref, ref.Path, other.ref))
	}
	if !exists {
		n = &node{ref: ref}
		g.nodes[ref] = n
	}
	n.declared = true
	n.creator = creator
	g.adopt(n)
	g.declared = append(g.declared, n)
	g.logger.Debug().Str("element", ref.String()).Int("pending_rules", len(n.queue)).Msg("Element declared")
	return nil
}

// Mutate queues rule against its subject. A rule that is already known is
// recorded as a duplicate and not queued again.
func (g *Graph) Mutate(rule *Rule) error {
	if rule == nil || rule.Action == nil {
		return fmt.Errorf("rule has no action")
	}
	if prev, ok := g.known[rule.ID]; ok {
		prev.record(EventDuplicate, rule)
		g.logger.Debug().Str("rule", rule.Descriptor).Msg("Duplicate rule registration ignored")
		return nil
	}

	n, err := g.bind(rule.Subject)
	if err != nil {
		if !errors.Is(err, modelerr.ErrUnknownModel) {
			return err
		}
		// the path is taken by an element of another type
		if other := g.declaredAt(rule.Subject.Path); other != nil {
			other.record(EventRejected, rule)
			return modelerr.Wrap(modelerr.ErrUnknownModel,
				"Cannot add rule "+rule.Descriptor, err).WithOrigin(rule.Descriptor)
		}
		// subject declared later
		if n = g.nodes[rule.Subject]; n == nil {
			n = &node{ref: rule.Subject}
			g.nodes[rule.Subject] = n
		}
	}

	if n.state == Realized || n.state == Failed {
		n.record(EventRejected, rule)
		return modelerr.New(modelerr.ErrTooLateToMutate,
			fmt.Sprintf("Cannot add rule %s for model element %s as this element has already been realized.",
				rule.Descriptor, n.ref)).WithOrigin(rule.Descriptor)
	}

	n.queue = append(n.queue, rule)
	n.record(EventQueued, rule)
	g.known[rule.ID] = n
	g.seq[rule.ID] = len(g.seq)
	g.logger.Debug().Str("rule", rule.Descriptor).Str("subject", n.ref.String()).Msg("Rule queued")
	return nil
}

// Get returns the realized value of ref, realizing it first if needed.
func (g *Graph) Get(ref Reference) (any, error) {
	n, err := g.bind(ref)
	if err != nil {
		return nil, err
	}
	return g.realize(n)
}

// State returns the realization state of ref.
func (g *Graph) State(ref Reference) (State, error) {
	n, err := g.bind(ref)
	if err != nil {
		return Unrealized, err
	}
	return n.state, nil
}

// History returns the diagnostic log of ref, including entries recorded
// before the element was declared.
func (g *Graph) History(ref Reference) []HistoryEntry {
	n, ok := g.nodes[ref]
	if !ok {
		var err error
		if n, err = g.bind(ref); err != nil {
			return nil
		}
	}
	return append([]HistoryEntry(nil), n.history...)
}

// Elements returns the declared references in declaration order.
func (g *Graph) Elements() []Reference {
	refs := make([]Reference, len(g.declared))
	for i, n := range g.declared {
		refs[i] = n.ref
	}
	return refs
}

// Pending returns the number of rules queued against ref and not yet fired.
func (g *Graph) Pending(ref Reference) int {
	n, ok := g.nodes[ref]
	if !ok || n.state == Realized {
		return 0
	}
	return len(n.queue)
}

// adopt moves rules queued against not yet declared subjects that n now
// satisfies into n, keeping registration order.
func (g *Graph) adopt(n *node) {
	adopted := false
	for key, p := range g.nodes {
		if p == n || p.declared {
			continue
		}
		samePath := key.Path != "" && key.Path == n.ref.Path &&
			(key.Type == nil || key.Type.IsAssignableFrom(n.ref.Type))
		byType := key.Path == "" && key.Type != nil && key.Type.IsAssignableFrom(n.ref.Type)
		if !samePath && !byType {
			continue
		}
		for _, r := range p.queue {
			g.known[r.ID] = n
		}
		n.queue = append(n.queue, p.queue...)
		n.history = append(n.history, p.history...)
		delete(g.nodes, key)
		adopted = true
	}
	if adopted {
		sort.SliceStable(n.queue, func(i, j int) bool {
			return g.seq[n.queue[i].ID] < g.seq[n.queue[j].ID]
		})
	}
}

// bind resolves ref to a declared element: by exact match, by path when one
// is given, otherwise by type when exactly one declared element fits.
// declaredAt returns the declared node at path, if any.
func (g *Graph) declaredAt(path string) *node {
	if path == "" {
		return nil
	}
	for _, n := range g.declared {
		if n.ref.Path == path {
			return n
		}
	}
	return nil
}

func (g *Graph) bind(ref Reference) (*node, error) {
	if n, ok := g.nodes[ref]; ok && n.declared {
		return n, nil
	}
	if ref.Path != "" {
		for _, n := range g.declared {
			if n.ref.Path == ref.Path {
				if ref.Type != nil && !ref.Type.IsAssignableFrom(n.ref.Type) {
					return nil, modelerr.New(modelerr.ErrUnknownModel,
						fmt.Sprintf("Model element %s has type %s, which is not assignable to %s.",
							ref.Path, n.ref.Type, ref.Type))
				}
				return n, nil
			}
		}
		return nil, modelerr.New(modelerr.ErrUnknownModel,
			fmt.Sprintf("No model element found at path %s.", ref.Path))
	}

	var matches []*node
	for _, n := range g.declared {
		if ref.Type.IsAssignableFrom(n.ref.Type) {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		return nil, modelerr.New(modelerr.ErrUnknownModel,
			fmt.Sprintf("No model element of type %s found.", ref.Type))
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.ref.String()
		}
		return nil, modelerr.New(modelerr.ErrAmbiguousReference,
			fmt.Sprintf("Reference to %s is ambiguous; candidates are: %v", ref.Type, names))
	}
}

func (g *Graph) realize(n *node) (any, error) {
	switch n.state {
	case Realized:
		return n.value, nil
	case Failed:
		return nil, n.err
	case Realizing:
		return nil, g.cycle(n)
	}

	n.state = Realizing
	g.stack = append(g.stack, n)
	defer func() { g.stack = g.stack[:len(g.stack)-1] }()

	value, err := n.creator()
	if err != nil {
		return nil, g.fail(n, nil, modelerr.Wrap(modelerr.ErrRuleExecutionFailed,
			fmt.Sprintf("Could not create model element %s", n.ref), err))
	}
	n.value = value

	// rules may be queued while draining; they run in this pass
	for i := 0; i < len(n.queue); i++ {
		rule := n.queue[i]
		inputs := make(Inputs, len(rule.Inputs))
		for j, in := range rule.Inputs {
			dep, err := g.bind(in)
			if err != nil {
				return nil, g.fail(n, rule, err)
			}
			v, err := g.realize(dep)
			if err != nil {
				return nil, g.fail(n, rule, err)
			}
			inputs[j] = v
		}
		if err := rule.Action(n.value, inputs); err != nil {
			return nil, g.fail(n, rule, modelerr.Wrap(modelerr.ErrRuleExecutionFailed,
				"Exception thrown while executing model rule: "+rule.Descriptor, err).WithOrigin(rule.Descriptor))
		}
		n.record(EventFired, rule)
		g.logger.Debug().Str("rule", rule.Descriptor).Str("subject", n.ref.String()).Msg("Rule fired")
	}

	n.queue = nil
	n.state = Realized
	g.logger.Debug().Str("element", n.ref.String()).Msg("Element realized")
	return n.value, nil
}

func (g *Graph) fail(n *node, rule *Rule, err error) error {
	n.state = Failed
	n.err = err
	n.record(EventFailed, rule)
	g.logger.Debug().Err(err).Str("element", n.ref.String()).Msg("Element realization failed")
	return err
}

func (g *Graph) cycle(n *node) error {
	start := 0
	for i, s := range g.stack {
		if s == n {
			start = i
			break
		}
	}
	chain := make([]string, 0, len(g.stack)-start+1)
	for _, s := range g.stack[start:] {
		chain = append(chain, s.ref.String())
	}
	chain = append(chain, n.ref.String())
	return modelerr.New(modelerr.ErrCycleDetected,
		fmt.Sprintf("A cycle has been detected in model rule dependencies while realizing %s.", n.ref)).WithChain(chain...)
}

// Get returns the realized value of ref asserted to T.
func Get[T any](g *Graph, ref Reference) (T, error) {
	var zero T
	v, err := g.Get(ref)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("model element %s has Go type %T, want %T", ref, v, zero)
	}
	return typed, nil
}
