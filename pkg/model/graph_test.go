// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnbuild/kiln/pkg/modelerr"
	"github.com/kilnbuild/kiln/pkg/modeltype"
)

var (
	catalogType  = modeltype.Interface("Catalog")
	servicesType = modeltype.Interface("Services")
	toolType     = modeltype.Interface("Tool")
	hammerType   = modeltype.Interface("Hammer", modeltype.Extends(toolType))
	sawType      = modeltype.Interface("Saw", modeltype.Extends(toolType))
)

type catalog struct {
	entries []string
}

func newCatalog() (any, error) { return &catalog{}, nil }

func appendEntry(entry string) Action {
	return func(subject any, _ Inputs) error {
		c := subject.(*catalog)
		c.entries = append(c.entries, entry)
		return nil
	}
}

func TestGraph_RealizesLazily(t *testing.T) {
	g := NewGraph()
	created := 0
	require.NoError(t, g.Create(Of(catalogType), func() (any, error) {
		created++
		return &catalog{}, nil
	}))
	require.NoError(t, g.Mutate(NewRule("m1", Of(catalogType), appendEntry("a"))))

	assert.Equal(t, 0, created)
	state, err := g.State(Of(catalogType))
	require.NoError(t, err)
	assert.Equal(t, Unrealized, state)
	assert.Equal(t, 1, g.Pending(Of(catalogType)))

	c, err := Get[*catalog](g, Of(catalogType))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, c.entries)

	_, err = g.Get(Of(catalogType))
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	state, _ = g.State(Of(catalogType))
	assert.Equal(t, Realized, state)
	assert.Equal(t, 0, g.Pending(Of(catalogType)))
}

func TestGraph_RulesFireInRegistrationOrder(t *testing.T) {
	g := NewGraph()
	// rules registered before the subject is declared are kept
	require.NoError(t, g.Mutate(NewRule("m1", Of(catalogType), appendEntry("m1"))))
	require.NoError(t, g.Create(Of(catalogType), newCatalog))
	require.NoError(t, g.Mutate(NewRule("m2", Of(catalogType), appendEntry("m2"))))
	require.NoError(t, g.Mutate(NewRule("m3", Of(catalogType), appendEntry("m3"))))

	c, err := Get[*catalog](g, Of(catalogType))
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, c.entries)
}

func TestGraph_PendingRulesAdoptedByTypeKeepOrder(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Mutate(NewRule("first", Of(catalogType), appendEntry("first"))))
	require.NoError(t, g.Mutate(NewRule("second", Of(catalogType).WithPath("catalog"), appendEntry("second"))))
	require.NoError(t, g.Mutate(NewRule("third", Of(catalogType), appendEntry("third"))))
	require.NoError(t, g.Create(Of(catalogType).WithPath("catalog"), newCatalog))

	c, err := Get[*catalog](g, Of(catalogType))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, c.entries)
}

func TestGraph_InputsRealizedInOrder(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(Of(catalogType), newCatalog))
	require.NoError(t, g.Create(Of(hammerType), func() (any, error) { return "hammer", nil }))
	require.NoError(t, g.Create(Of(sawType), func() (any, error) { return "saw", nil }))

	var got []string
	require.NoError(t, g.Mutate(NewRule("uses tools", Of(catalogType), func(_ any, in Inputs) error {
		require.Equal(t, 2, in.Len())
		first, err := InputAt[string](in, 0)
		if err != nil {
			return err
		}
		second, err := InputAt[string](in, 1)
		if err != nil {
			return err
		}
		got = append(got, first, second)
		return nil
	}, Of(sawType), Of(hammerType))))

	_, err := g.Get(Of(catalogType))
	require.NoError(t, err)
	assert.Equal(t, []string{"saw", "hammer"}, got)

	state, _ := g.State(Of(sawType))
	assert.Equal(t, Realized, state)
}

func TestGraph_InputRulesFireBeforeConsumer(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(Of(catalogType), newCatalog))
	require.NoError(t, g.Create(Of(servicesType), func() (any, error) { return &catalog{}, nil }))

	require.NoError(t, g.Mutate(NewRule("consumer", Of(catalogType), func(subject any, in Inputs) error {
		services, err := InputAt[*catalog](in, 0)
		if err != nil {
			return err
		}
		subject.(*catalog).entries = append([]string(nil), services.entries...)
		return nil
	}, Of(servicesType))))
	require.NoError(t, g.Mutate(NewRule("provider", Of(servicesType), appendEntry("clock"))))

	c, err := Get[*catalog](g, Of(catalogType))
	require.NoError(t, err)
	assert.Equal(t, []string{"clock"}, c.entries)
}

func TestGraph_SelfInputIsCycle(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(Of(catalogType), newCatalog))
	require.NoError(t, g.Mutate(NewRule("self", Of(catalogType), appendEntry("x"), Of(catalogType))))

	_, err := g.Get(Of(catalogType))
	require.Error(t, err)
	assert.True(t, errors.Is(err, modelerr.ErrCycleDetected))
	assert.True(t, errors.Is(err, modelerr.ErrGraphIntegrity))

	var me *modelerr.Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, []string{"Catalog", "Catalog"}, me.Chain)
}

func TestGraph_TwoNodeCycle(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(Of(hammerType), newCatalog))
	require.NoError(t, g.Create(Of(sawType), newCatalog))
	require.NoError(t, g.Mutate(NewRule("h", Of(hammerType), appendEntry("h"), Of(sawType))))
	require.NoError(t, g.Mutate(NewRule("s", Of(sawType), appendEntry("s"), Of(hammerType))))

	_, err := g.Get(Of(hammerType))
	require.Error(t, err)
	assert.True(t, errors.Is(err, modelerr.ErrCycleDetected))
	var me *modelerr.Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, []string{"Hammer", "Saw", "Hammer"}, me.Chain)
}

func TestGraph_TooLateToMutate(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(Of(catalogType), newCatalog))
	_, err := g.Get(Of(catalogType))
	require.NoError(t, err)

	err = g.Mutate(NewRule("late", Of(catalogType), appendEntry("late")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, modelerr.ErrTooLateToMutate))

	history := g.History(Of(catalogType))
	require.Len(t, history, 1)
	assert.Equal(t, EventRejected, history[0].Event)
	assert.Equal(t, "late", history[0].Descriptor)
}

func TestGraph_DuplicateRuleRecordedOnly(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(Of(catalogType), newCatalog))
	fired := 0
	rule := NewRule("once", Of(catalogType), func(any, Inputs) error {
		fired++
		return nil
	})
	require.NoError(t, g.Mutate(rule))
	require.NoError(t, g.Mutate(rule))

	_, err := g.Get(Of(catalogType))
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	// known rules are never rejected as too late
	require.NoError(t, g.Mutate(rule))
	assert.Equal(t, 1, fired)

	var events []string
	for _, h := range g.History(Of(catalogType)) {
		events = append(events, h.Event)
	}
	assert.Equal(t, []string{EventQueued, EventDuplicate, EventFired, EventDuplicate}, events)
}

func TestGraph_RuleQueuedDuringDrainRunsInSamePass(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(Of(catalogType), newCatalog))
	require.NoError(t, g.Mutate(NewRule("outer", Of(catalogType), func(subject any, _ Inputs) error {
		subject.(*catalog).entries = append(subject.(*catalog).entries, "outer")
		return g.Mutate(NewRule("inner", Of(catalogType), appendEntry("inner")))
	})))

	c, err := Get[*catalog](g, Of(catalogType))
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, c.entries)
}

func TestGraph_ActionFailureIsReplayed(t *testing.T) {
	g := NewGraph()
	created := 0
	require.NoError(t, g.Create(Of(catalogType), func() (any, error) {
		created++
		return &catalog{}, nil
	}))
	boom := errors.New("boom")
	require.NoError(t, g.Mutate(NewRule("Plugin.broken()", Of(catalogType), func(any, Inputs) error { return boom })))

	_, err := g.Get(Of(catalogType))
	require.Error(t, err)
	assert.True(t, errors.Is(err, modelerr.ErrRuleExecutionFailed))
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, "Exception thrown while executing model rule: Plugin.broken(): boom", err.Error())

	_, again := g.Get(Of(catalogType))
	assert.Same(t, err, again)
	assert.Equal(t, 1, created)

	state, _ := g.State(Of(catalogType))
	assert.Equal(t, Failed, state)

	err = g.Mutate(NewRule("after failure", Of(catalogType), appendEntry("x")))
	assert.True(t, errors.Is(err, modelerr.ErrTooLateToMutate))
}

func TestGraph_Binding(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(Of(hammerType).WithPath("tools.hammer"), newCatalog))

	// unique by type, including through a supertype
	_, err := g.Get(Of(hammerType))
	require.NoError(t, err)
	_, err = g.Get(Of(toolType))
	require.NoError(t, err)

	// by path
	_, err = g.Get(Reference{Path: "tools.hammer"})
	require.NoError(t, err)
	_, err = g.Get(Of(sawType).WithPath("tools.hammer"))
	assert.True(t, errors.Is(err, modelerr.ErrUnknownModel))
	_, err = g.Get(Reference{Path: "tools.saw"})
	assert.True(t, errors.Is(err, modelerr.ErrUnknownModel))

	// unknown
	_, err = g.Get(Of(catalogType))
	assert.True(t, errors.Is(err, modelerr.ErrUnknownModel))

	// ambiguous
	require.NoError(t, g.Create(Of(sawType).WithPath("tools.saw"), newCatalog))
	_, err = g.Get(Of(toolType))
	assert.True(t, errors.Is(err, modelerr.ErrAmbiguousReference))

	assert.Equal(t, []Reference{
		Of(hammerType).WithPath("tools.hammer"),
		Of(sawType).WithPath("tools.saw"),
	}, g.Elements())
}

func TestGraph_SubjectTypeMismatchAtDeclaredPath(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(Of(catalogType).WithPath("catalog"), newCatalog))

	err := g.Mutate(NewRule("wrong", Of(hammerType).WithPath("catalog"), appendEntry("x")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, modelerr.ErrUnknownModel))
	assert.Contains(t, err.Error(), "not assignable")

	history := g.History(Of(catalogType).WithPath("catalog"))
	require.Len(t, history, 1)
	assert.Equal(t, EventRejected, history[0].Event)
	assert.Equal(t, 0, g.Pending(Of(catalogType).WithPath("catalog")))

	// a path nobody declared yet still parks the rule
	require.NoError(t, g.Mutate(NewRule("later", Of(hammerType).WithPath("tools.hammer"), appendEntry("y"))))
}

func TestGraph_PathIsUnique(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(Of(catalogType).WithPath("x"), newCatalog))

	err := g.Create(Of(servicesType).WithPath("x"), newCatalog)
	assert.True(t, errors.Is(err, modelerr.ErrDuplicateRegistration))
	assert.Equal(t, []Reference{Of(catalogType).WithPath("x")}, g.Elements())

	// path-less elements never collide by path
	require.NoError(t, g.Create(Of(servicesType), newCatalog))
	require.NoError(t, g.Create(Of(hammerType), newCatalog))
}

func TestGraph_RegistrationOrderWinsOverInputReadiness(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(Of(catalogType), newCatalog))
	require.NoError(t, g.Create(Of(hammerType), func() (any, error) { return "hammer", nil }))
	require.NoError(t, g.Create(Of(sawType), func() (any, error) { return "saw", nil }))

	_, err := g.Get(Of(sawType))
	require.NoError(t, err)

	require.NoError(t, g.Mutate(NewRule("m1", Of(catalogType), appendEntry("m1"), Of(hammerType))))
	require.NoError(t, g.Mutate(NewRule("m2", Of(catalogType), appendEntry("m2"), Of(sawType))))

	state, _ := g.State(Of(hammerType))
	assert.Equal(t, Unrealized, state)

	c, err := Get[*catalog](g, Of(catalogType))
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, c.entries)

	state, _ = g.State(Of(hammerType))
	assert.Equal(t, Realized, state)
}

func TestGraph_CreateValidation(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(Of(catalogType), newCatalog))
	err := g.Create(Of(catalogType), newCatalog)
	assert.True(t, errors.Is(err, modelerr.ErrDuplicateRegistration))

	assert.Error(t, g.Create(Reference{Path: "x"}, newCatalog))
	assert.Error(t, g.Create(Of(sawType), nil))
	assert.Error(t, g.Mutate(nil))
	assert.Error(t, g.Mutate(&Rule{Subject: Of(catalogType)}))
}

func TestGraph_CreatorError(t *testing.T) {
	g := NewGraph()
	boom := errors.New("no disk")
	require.NoError(t, g.Create(Of(catalogType), func() (any, error) { return nil, boom }))
	_, err := g.Get(Of(catalogType))
	assert.True(t, errors.Is(err, boom))
	assert.True(t, errors.Is(err, modelerr.ErrRuleExecutionFailed))
}

func TestTypedHelpers(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(Of(catalogType), newCatalog))
	_, err := Get[string](g, Of(catalogType))
	assert.Error(t, err)

	in := Inputs{"a", 1}
	_, err = InputAt[string](in, 1)
	assert.Error(t, err)
	_, err = InputAt[string](in, 2)
	assert.Error(t, err)
	n, err := InputAt[int](in, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReference_String(t *testing.T) {
	assert.Equal(t, "Catalog", Of(catalogType).String())
	assert.Equal(t, "languages (Catalog)", Of(catalogType).WithPath("languages").String())
	assert.True(t, Reference{}.IsZero())
	assert.Equal(t, Of(catalogType), Reference{Type: catalogType})
}
