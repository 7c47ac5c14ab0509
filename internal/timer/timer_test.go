package timer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/statecraft/internal/clock"
	"github.com/kestrelhq/statecraft/internal/timer"
)

func TestScheduleFires(t *testing.T) {
	fake := clock.NewFake(time.Now())
	var got [2]string
	m := timer.New(fake, func(path, name string) { got = [2]string{path, name} })

	m.Schedule("light.on", "200", 200*time.Millisecond)
	fake.Advance(200 * time.Millisecond)

	assert.Equal(t, [2]string{"light.on", "200"}, got)
}

func TestCancelPathPreventsLateFire(t *testing.T) {
	fake := clock.NewFake(time.Now())
	fired := false
	m := timer.New(fake, func(string, string) { fired = true })

	m.Schedule("light.on", "200", 200*time.Millisecond)
	m.CancelPath("light.on")
	fake.Advance(200 * time.Millisecond)

	assert.False(t, fired, "cancelled timer must not fire")
}

func TestRescheduleInvalidatesPriorToken(t *testing.T) {
	fake := clock.NewFake(time.Now())
	var got []string
	m := timer.New(fake, func(path, name string) { got = append(got, name) })

	m.Schedule("light.on", "200", 200*time.Millisecond)
	m.Schedule("light.on", "200", 200*time.Millisecond) // re-entry: old timer must not also fire
	fake.Advance(200 * time.Millisecond)

	require.Len(t, got, 1)
	assert.Equal(t, []string{"200"}, got)
}
