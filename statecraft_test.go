package statecraft_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/statecraft"
)

func trafficLightConfig() *statecraft.MachineConfig {
	return &statecraft.MachineConfig{
		ID: "trafficLight",
		Root: &statecraft.StateNode{
			ID:      "light",
			Kind:    statecraft.Compound,
			Initial: "red",
			Children: []*statecraft.StateNode{
				{
					ID:   "red",
					Kind: statecraft.Atomic,
					On: map[string][]statecraft.TransitionConfig{
						"NEXT": {{Target: "green"}},
					},
				},
				{
					ID:   "green",
					Kind: statecraft.Atomic,
					On: map[string][]statecraft.TransitionConfig{
						"NEXT": {{Target: "yellow"}},
					},
				},
				{
					ID:   "yellow",
					Kind: statecraft.Atomic,
					On: map[string][]statecraft.TransitionConfig{
						"NEXT": {{Target: "red"}},
					},
				},
			},
		},
	}
}

func TestBuildAndSpawnActorDrivesTransitions(t *testing.T) {
	m, err := statecraft.Build(trafficLightConfig(), nil)
	require.NoError(t, err)

	a := statecraft.SpawnActor(m, statecraft.WithIDGenerator(statecraft.SequentialIDGenerator()))
	require.NoError(t, a.Start())
	defer a.Stop()

	assert.True(t, a.GetSnapshot().Matches("light.red"))

	a.Send(statecraft.NewEvent("NEXT", nil))
	assert.True(t, a.GetSnapshot().Matches("light.green"))

	a.Send(statecraft.NewEvent("NEXT", nil))
	assert.True(t, a.GetSnapshot().Matches("light.yellow"))
}

func TestSubscribeReceivesEverySnapshot(t *testing.T) {
	m, err := statecraft.Build(trafficLightConfig(), nil)
	require.NoError(t, err)

	a := statecraft.SpawnActor(m, statecraft.WithIDGenerator(statecraft.SequentialIDGenerator()))

	var seen []statecraft.Snapshot
	unsubscribe := a.Subscribe(func(s statecraft.Snapshot) { seen = append(seen, s) })
	require.NoError(t, a.Start())
	a.Send(statecraft.NewEvent("NEXT", nil))
	unsubscribe()
	a.Send(statecraft.NewEvent("NEXT", nil))
	a.Stop()

	require.Len(t, seen, 2, "Start and the one NEXT sent before unsubscribe")
	assert.True(t, seen[0].Matches("light.red"))
	assert.True(t, seen[1].Matches("light.green"))
}

func TestProvideOverlaysNamedImplementations(t *testing.T) {
	cfg := &statecraft.MachineConfig{
		ID: "greeter",
		Root: &statecraft.StateNode{
			ID:   "root",
			Kind: statecraft.Atomic,
			On: map[string][]statecraft.TransitionConfig{
				"GREET": {{Actions: []any{"greet"}}},
			},
		},
	}

	unprovided, err := statecraft.Build(cfg, nil)
	require.NoError(t, err)

	var greeted bool
	m := unprovided.Provide(&statecraft.Implementations{
		Actions: map[string]statecraft.Action{
			"greet": func(ctx any, event statecraft.Event, h statecraft.Helpers) []statecraft.Effect {
				greeted = true
				return nil
			},
		},
	})

	a := statecraft.SpawnActor(m, statecraft.WithIDGenerator(statecraft.SequentialIDGenerator()))
	require.NoError(t, a.Start())
	defer a.Stop()

	a.Send(statecraft.NewEvent("GREET", nil))
	assert.True(t, greeted)
}

func TestFromPromiseLogicIsAValidInvocationSrc(t *testing.T) {
	cfg := &statecraft.MachineConfig{
		ID: "fetcher",
		Root: &statecraft.StateNode{
			ID:      "fetcher",
			Kind:    statecraft.Compound,
			Initial: "loading",
			Children: []*statecraft.StateNode{
				{
					ID:   "loading",
					Kind: statecraft.Atomic,
					Invoke: []statecraft.InvokeConfig{
						{
							ID: "fetch",
							Src: statecraft.FromPromise(func(ctx context.Context, input any) (any, error) {
								return input, nil
							}),
							OnDone: &statecraft.TransitionConfig{Target: "done"},
						},
					},
				},
				{ID: "done", Kind: statecraft.Atomic},
			},
		},
	}
	m, err := statecraft.Build(cfg, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	a := statecraft.SpawnActor(m, statecraft.WithIDGenerator(statecraft.SequentialIDGenerator()))
	a.Subscribe(func(s statecraft.Snapshot) {
		if s.Matches("fetcher.done") {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	})
	require.NoError(t, a.Start())
	defer a.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("invocation never completed")
	}
}
