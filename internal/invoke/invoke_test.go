package invoke_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kestrelhq/statecraft/internal/invoke"
)

type fakeHandle struct{ stopped *bool }

func (f fakeHandle) Stop() { *f.stopped = true }

func TestManagerStartAndStopPath(t *testing.T) {
	m := invoke.New()
	stopped := false
	logic := invoke.LogicFunc(func(id string, input any, deliver invoke.Deliver) invoke.Handle {
		return fakeHandle{stopped: &stopped}
	})

	m.Start("light.on", "task1", logic, nil, func(string, any) {})
	assert.False(t, stopped)

	m.StopPath("light.on")
	assert.True(t, stopped)
}

func TestManagerReEntryStopsPriorHandle(t *testing.T) {
	m := invoke.New()

	firstStopped := false
	secondStopped := false
	m.Start("light.on", "task1", invoke.LogicFunc(func(string, any, invoke.Deliver) invoke.Handle {
		return fakeHandle{stopped: &firstStopped}
	}), nil, func(string, any) {})
	m.Start("light.on", "task1", invoke.LogicFunc(func(string, any, invoke.Deliver) invoke.Handle {
		return fakeHandle{stopped: &secondStopped}
	}), nil, func(string, any) {})

	assert.True(t, firstStopped, "re-entry must stop the prior invocation")
	assert.False(t, secondStopped)

	m.StopAll()
	assert.True(t, secondStopped)
}
