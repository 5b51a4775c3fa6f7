package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/savestate/internal/core/chunk"
	"github.com/zeusync/savestate/internal/core/events/bus"
	"github.com/zeusync/savestate/internal/core/observability/log"
	"github.com/zeusync/savestate/internal/core/savestate"
	"github.com/zeusync/savestate/internal/core/sim"
	"github.com/zeusync/savestate/internal/core/systems/physics"
)

// flaky wraps the world and corrupts it on one chosen step.
type flaky struct {
	*sim.World
	steps   int
	breakAt int
}

func (f *flaky) Step(in sim.Input) {
	f.World.Step(in)
	f.steps++
	if f.steps == f.breakAt {
		f.World.Score += 1000
	}
}

func input(i int) sim.Input {
	return sim.Input{Move: physics.V(float64(i%3)-1, 1), Fire: i%2 == 0, Pickup: true}
}

func setup(t *testing.T, withEvents bool) (*flaky, *savestate.Engine, *Recorder[sim.Input]) {
	t.Helper()
	w := &flaky{World: sim.NewWorld(sim.DefaultConfig())}
	reg, err := sim.NewRegistry()
	require.NoError(t, err)
	var events bus.EventBus
	if withEvents {
		events = bus.New()
	}
	e := savestate.NewEngine(reg, w.World, events, log.NewNop())
	r, err := NewRecorder[sim.Input](e, w, events, log.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return w, e, r
}

func TestRecorder_VerifiesDeterministicRun(t *testing.T) {
	w, _, r := setup(t, false)
	for i := 0; i < 30; i++ {
		w.Step(input(i))
	}
	require.NoError(t, r.Begin())
	for i := 0; i < 300; i++ {
		_, err := r.Step(input(i))
		require.NoError(t, err)
	}

	report, err := r.Verify()
	require.NoError(t, err)
	assert.Equal(t, Report{StartTick: 30, EndTick: 330, Ticks: 300}, report)
	assert.Equal(t, uint64(330), w.Tick())
}

func TestRecorder_ReportsFirstDivergence(t *testing.T) {
	w, _, r := setup(t, false)
	require.NoError(t, r.Begin())
	for i := 0; i < 10; i++ {
		_, err := r.Step(input(i))
		require.NoError(t, err)
	}

	w.breakAt = w.steps + 4
	_, err := r.Verify()
	var div *DivergenceError
	require.ErrorAs(t, err, &div)
	assert.Equal(t, uint64(4), div.Tick)
	assert.NotEqual(t, div.Want, div.Got)
}

func TestRecorder_RequiresBegin(t *testing.T) {
	_, _, r := setup(t, false)
	_, err := r.Step(sim.Input{})
	assert.ErrorIs(t, err, ErrNotRecording)
	_, err = r.Verify()
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestRecorder_FollowsRestores(t *testing.T) {
	w, e, r := setup(t, true)
	before := chunk.New(0)
	_, err := e.Capture(before, savestate.All())
	require.NoError(t, err)

	w.Step(input(0))
	require.NoError(t, r.Begin())
	mid := chunk.New(0)
	for i := 0; i < 10; i++ {
		_, err := r.Step(input(i))
		require.NoError(t, err)
		if w.Tick() == 6 {
			_, err = e.Capture(mid, savestate.All())
			require.NoError(t, err)
		}
	}
	require.Equal(t, 10, r.Len())

	_, err = e.Restore(mid, savestate.RestoreOptions{ResetClock: true})
	require.NoError(t, err)
	assert.Equal(t, 5, r.Len())

	// The truncated recording still verifies.
	_, err = r.Verify()
	require.NoError(t, err)
	assert.Equal(t, 5, r.Len())

	_, err = e.Restore(before, savestate.RestoreOptions{ResetClock: true})
	require.NoError(t, err)
	assert.False(t, r.Recording())
}
