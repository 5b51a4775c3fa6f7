package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/savestate/internal/core/chunk"
	"github.com/zeusync/savestate/internal/core/observability/log"
	"github.com/zeusync/savestate/internal/core/savestate"
	"github.com/zeusync/savestate/internal/core/systems/physics"
)

// script is a fixed input sequence that walks the player around the arena
// while firing, so enemies, projectiles and pickups all come and go.
func script(tick int) Input {
	moves := []physics.Vec2{
		physics.V(1, 0), physics.V(0, 1), physics.V(-1, 0), physics.V(0, -1),
	}
	return Input{
		Move:   moves[(tick/45)%len(moves)],
		Fire:   true,
		Pickup: tick%5 == 0,
	}
}

func run(w *World, from, to int) {
	for i := from; i < to; i++ {
		w.Step(script(i))
	}
}

func newEngine(t *testing.T, w *World) *savestate.Engine {
	t.Helper()
	reg, err := NewRegistry()
	require.NoError(t, err)
	return savestate.NewEngine(reg, w, nil, log.NewNop())
}

func capture(t *testing.T, e *savestate.Engine) []byte {
	t.Helper()
	c := chunk.New(0)
	_, err := e.Capture(c, savestate.All())
	require.NoError(t, err)
	return c.Clone()
}

func TestRegister_TypeOrder(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	for id, name := range []string{"player", "enemy", "projectile", "pickup"} {
		d, ok := reg.Lookup(savestate.TypeID(id))
		require.True(t, ok)
		assert.Equal(t, name, d.Name)
	}
	player, _ := reg.ByName("player")
	assert.Nil(t, player.Spawn)
}

func TestWorld_IsDeterministic(t *testing.T) {
	a, b := NewWorld(DefaultConfig()), NewWorld(DefaultConfig())
	run(a, 0, 600)
	run(b, 0, 600)

	assert.Equal(t, capture(t, newEngine(t, a)), capture(t, newEngine(t, b)))
	assert.Greater(t, a.Len(), 2, "the script should leave more than the player alive")
}

func TestWorld_RestoreReplaysIdentically(t *testing.T) {
	w := NewWorld(DefaultConfig())
	e := newEngine(t, w)

	run(w, 0, 300)
	snap := chunk.New(0)
	_, err := e.Capture(snap, savestate.All())
	require.NoError(t, err)

	run(w, 300, 600)
	want := capture(t, e)

	_, err = e.Restore(snap, savestate.RestoreOptions{ResetClock: true})
	require.NoError(t, err)
	assert.Equal(t, uint64(300), w.Tick())

	run(w, 300, 600)
	assert.Equal(t, want, capture(t, e))
}

func TestWorld_RestoreIntoFreshWorld(t *testing.T) {
	src := NewWorld(DefaultConfig())
	run(src, 0, 400)
	snap := capture(t, newEngine(t, src))

	dst := NewWorld(DefaultConfig())
	e := newEngine(t, dst)
	report, err := e.Restore(chunk.Wrap(snap), savestate.RestoreOptions{ResetClock: true})
	require.NoError(t, err)
	assert.Equal(t, src.Len()-1, report.Spawned)

	assert.Equal(t, snap, capture(t, e))
	assert.Equal(t, src.NextID(), dst.NextID())
	require.NotNil(t, dst.Camera.Follow)
	assert.Same(t, dst.Player(), dst.Camera.Follow)

	run(src, 400, 500)
	run(dst, 400, 500)
	assert.Equal(t, capture(t, newEngine(t, src)), capture(t, e))
}

func TestWorld_InventoryAndHolderLinksSurviveRestore(t *testing.T) {
	w := NewWorld(DefaultConfig())
	p := w.Player()
	gem := &Pickup{Pos: p.Pos, Kind: PickupGem}
	w.Spawn(gem)
	w.Step(Input{Pickup: true})
	require.Same(t, p, gem.Holder)
	require.Len(t, p.Inventory, 1)

	e := newEngine(t, w)
	snap := chunk.New(0)
	_, err := e.Capture(snap, savestate.All())
	require.NoError(t, err)

	p.Inventory = nil
	w.Remove(gem)

	_, err = e.Restore(snap, savestate.RestoreOptions{})
	require.NoError(t, err)
	require.Len(t, p.Inventory, 1)
	restored := p.Inventory[0]
	assert.Same(t, p, restored.Holder)
	assert.Equal(t, PickupGem, restored.Kind)
	assert.Equal(t, gem.EntityID(), restored.EntityID())
}

func TestWorld_RemoteProjectilesAreLeftAlone(t *testing.T) {
	w := NewWorld(DefaultConfig())
	remote := &Projectile{Pos: physics.V(3, 3), Remote: true}
	w.Spawn(remote)
	e := newEngine(t, w)

	snap := chunk.New(0)
	report, err := e.Capture(snap, savestate.All())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)

	remote.Pos = physics.V(9, 9)
	_, err = e.Restore(snap, savestate.RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, physics.V(9, 9), remote.Pos)
	assert.Same(t, remote, w.ByID(remote.EntityID()))
}
