package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/statecraft/internal/engine"
	"github.com/kestrelhq/statecraft/internal/machinedef"
	"github.com/kestrelhq/statecraft/internal/model"
	"github.com/kestrelhq/statecraft/internal/statevalue"
)

func toggleMachine(t *testing.T) *machinedef.Machine {
	t.Helper()
	cfg := &model.MachineConfig{
		ID: "toggle",
		Root: &model.StateNode{
			ID:      "light",
			Kind:    model.Compound,
			Initial: "off",
			Children: []*model.StateNode{
				{
					ID:   "off",
					Kind: model.Atomic,
					On: map[string][]model.TransitionConfig{
						"TOGGLE": {{Target: "on"}},
					},
				},
				{
					ID:   "on",
					Kind: model.Atomic,
					On: map[string][]model.TransitionConfig{
						"TOGGLE": {{Target: "off"}},
					},
				},
			},
		},
	}
	m, err := machinedef.Build(cfg, nil)
	require.NoError(t, err)
	return m
}

func TestInitialValue(t *testing.T) {
	m := toggleMachine(t)
	v, err := engine.InitialValue(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"light.off"}, statevalue.Paths(v))
}

func TestSelectAndApplyToggle(t *testing.T) {
	m := toggleMachine(t)
	v, err := engine.InitialValue(m)
	require.NoError(t, err)

	sels, err := engine.SelectTransitions(m, v, nil, model.NewEvent("TOGGLE", nil))
	require.NoError(t, err)
	require.Len(t, sels, 1)
	assert.Equal(t, "light.off", sels[0].SourcePath)

	plan, next, err := engine.BuildPlan(m, v, sels[0], nil)
	require.NoError(t, err)
	assert.False(t, plan.IsInternal)
	assert.Equal(t, "light", plan.LCA)
	assert.Equal(t, []string{"light.off"}, plan.ExitPaths)
	assert.Equal(t, []string{"light.on"}, plan.EntryPaths)
	assert.Equal(t, []string{"light.on"}, statevalue.Paths(next))
}

func TestUnmatchedEventDropsSilently(t *testing.T) {
	m := toggleMachine(t)
	v, err := engine.InitialValue(m)
	require.NoError(t, err)

	sels, err := engine.SelectTransitions(m, v, nil, model.NewEvent("NOPE", nil))
	require.NoError(t, err)
	assert.Empty(t, sels)
}

func guardedMachine(t *testing.T) *machinedef.Machine {
	t.Helper()
	alwaysFalse := func(ctx any, e model.Event) bool { return false }
	alwaysTrue := func(ctx any, e model.Event) bool { return true }
	cfg := &model.MachineConfig{
		ID: "counter",
		Root: &model.StateNode{
			ID:      "machine",
			Kind:    model.Compound,
			Initial: "active",
			Children: []*model.StateNode{
				{
					ID:   "active",
					Kind: model.Atomic,
					On: map[string][]model.TransitionConfig{
						"INC": {
							{Target: "active", Guard: alwaysFalse},
							{Target: "done", Guard: alwaysTrue},
						},
					},
				},
				{ID: "done", Kind: model.Atomic},
			},
		},
	}
	m, err := machinedef.Build(cfg, nil)
	require.NoError(t, err)
	return m
}

func TestFirstMatchWinsAmongGuards(t *testing.T) {
	m := guardedMachine(t)
	v, err := engine.InitialValue(m)
	require.NoError(t, err)

	sels, err := engine.SelectTransitions(m, v, nil, model.NewEvent("INC", nil))
	require.NoError(t, err)
	require.Len(t, sels, 1)
	assert.Equal(t, "done", sels[0].Transition.Target)
}

func parallelMachine(t *testing.T) *machinedef.Machine {
	t.Helper()
	cfg := &model.MachineConfig{
		ID: "media",
		Root: &model.StateNode{
			ID:   "player",
			Kind: model.Parallel,
			Children: []*model.StateNode{
				{
					ID:      "playback",
					Kind:    model.Compound,
					Initial: "paused",
					Children: []*model.StateNode{
						{ID: "paused", Kind: model.Atomic, On: map[string][]model.TransitionConfig{
							"PLAY": {{Target: "playing"}},
						}},
						{ID: "playing", Kind: model.Atomic},
					},
				},
				{
					ID:      "volume",
					Kind:    model.Compound,
					Initial: "unmuted",
					Children: []*model.StateNode{
						{ID: "unmuted", Kind: model.Atomic, On: map[string][]model.TransitionConfig{
							"MUTE": {{Target: "muted"}},
						}},
						{ID: "muted", Kind: model.Atomic},
					},
				},
			},
		},
	}
	m, err := machinedef.Build(cfg, nil)
	require.NoError(t, err)
	return m
}

func TestParallelRegionsSelectIndependently(t *testing.T) {
	m := parallelMachine(t)
	v, err := engine.InitialValue(m)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"player.playback.paused", "player.volume.unmuted"}, statevalue.Paths(v))

	sels, err := engine.SelectTransitions(m, v, nil, model.NewEvent("PLAY", nil))
	require.NoError(t, err)
	require.Len(t, sels, 1)

	plan, next, err := engine.BuildPlan(m, v, sels[0], nil)
	require.NoError(t, err)
	assert.Equal(t, "player.playback", plan.LCA)
	assert.ElementsMatch(t, []string{"player.playback.playing", "player.volume.unmuted"}, statevalue.Paths(next))
}

type fakeHistoryStore struct {
	byPath map[string]statevalue.Value
}

func (f *fakeHistoryStore) Get(path string) (statevalue.Value, bool) {
	v, ok := f.byPath[path]
	return v, ok
}

func TestShallowHistoryReResolvesViaInitial(t *testing.T) {
	cfg := &model.MachineConfig{
		ID: "wizard",
		Root: &model.StateNode{
			ID:      "app",
			Kind:    model.Compound,
			Initial: "step1",
			Children: []*model.StateNode{
				{
					ID:      "step1",
					Kind:    model.Compound,
					Initial: "a",
					Children: []*model.StateNode{
						{ID: "a", Kind: model.Atomic},
						{ID: "b", Kind: model.Atomic},
					},
				},
				{ID: "hist", Kind: model.History, HistoryFlavor: model.Shallow},
			},
		},
	}
	m, err := machinedef.Build(cfg, nil)
	require.NoError(t, err)

	// Stored contribution for "app" at exit time: step1 was active with child b.
	histories := &fakeHistoryStore{byPath: map[string]statevalue.Value{
		"app": map[string]statevalue.Value{"step1": "b"},
	}}

	leaves, err := engine.ExpandTarget(m, "app.hist", histories)
	require.NoError(t, err)
	assert.Equal(t, []string{"app.step1.a"}, leaves)
}
