package sim

import (
	"fmt"
	"iter"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/zeusync/savestate/internal/core/savestate"
)

var _ savestate.World = (*World)(nil)

// Config holds the simulation constants.
type Config struct {
	TickRate     int
	Seed         uint64
	WaveInterval time.Duration
	ArenaSize    float64
}

// DefaultConfig returns the constants the demo and the tests run with.
func DefaultConfig() Config {
	return Config{
		TickRate:     60,
		Seed:         1,
		WaveInterval: 2 * time.Second,
		ArenaSize:    20,
	}
}

// World owns every live entity. It is single-threaded.
type World struct {
	cfg      Config
	step     time.Duration
	entities []savestate.Entity
	nextID   savestate.EntityID

	now  time.Duration
	tick uint64

	Camera Camera
	WaveAt time.Duration
	Score  int64

	pcg *rand.PCG
	rng *rand.Rand
}

// NewWorld builds a world holding the local player.
func NewWorld(cfg Config) *World {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultConfig().TickRate
	}
	pcg := rand.NewPCG(cfg.Seed, cfg.Seed^0x9E3779B97F4A7C15)
	w := &World{
		cfg:    cfg,
		step:   time.Second / time.Duration(cfg.TickRate),
		pcg:    pcg,
		rng:    rand.New(pcg),
		WaveAt: cfg.WaveInterval,
	}
	player := &Player{HP: 100}
	w.Spawn(player)
	w.Camera = Camera{Zoom: 1, Follow: player}
	return w
}

// Spawn assigns the next id to e and appends it.
func (w *World) Spawn(e savestate.Entity) {
	e.SetEntityID(w.nextID)
	w.nextID++
	w.entities = append(w.entities, e)
}

// Entities yields live entities grouped by type, in spawn order within a
// type. Captures therefore do not depend on how spawns of different types
// interleaved.
func (w *World) Entities() iter.Seq[savestate.Entity] {
	return func(yield func(savestate.Entity) bool) {
		for tid := TypePlayer; tid <= TypePickup; tid++ {
			for _, e := range w.entities {
				if e.TypeID() == tid && !yield(e) {
					return
				}
			}
		}
	}
}

// Add appends an entity built by a type factory. The engine assigns its id.
func (w *World) Add(e savestate.Entity) {
	w.entities = append(w.entities, e)
}

func (w *World) Remove(e savestate.Entity) {
	if i := slices.Index(w.entities, e); i >= 0 {
		w.entities = slices.Delete(w.entities, i, i+1)
	}
}

func (w *World) Now() time.Duration          { return w.now }
func (w *World) SetNow(t time.Duration)      { w.now = t }
func (w *World) Tick() uint64                { return w.tick }
func (w *World) StepDuration() time.Duration { return w.step }
func (w *World) Len() int                    { return len(w.entities) }
func (w *World) NextID() savestate.EntityID  { return w.nextID }

// SetNextID raises the id counter to at least id. The counter restored by
// ReadGlobals wins when it is higher, so spawns after a restore get the same
// ids they got in the original run.
func (w *World) SetNextID(id savestate.EntityID) { w.nextID = max(w.nextID, id) }

// Player returns the local player.
func (w *World) Player() *Player {
	for _, e := range w.entities {
		if p, ok := e.(*Player); ok {
			return p
		}
	}
	return nil
}

// ByID finds a live entity by id.
func (w *World) ByID(id savestate.EntityID) savestate.Entity {
	for _, e := range w.entities {
		if e.EntityID() == id {
			return e
		}
	}
	return nil
}

// OfType returns the live entities of one type in natural order.
func OfType[T savestate.Entity](w *World) []T {
	var out []T
	for _, e := range w.entities {
		if t, ok := e.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// WriteGlobals writes the tail: tick counter, id counter, camera, wave timer,
// score and the RNG state.
func (w *World) WriteGlobals(wr *savestate.Writer) {
	wr.WriteUint64(w.tick)
	wr.WriteInt32(int32(w.nextID))
	wr.WriteFloat64(w.Camera.Pos.Xv)
	wr.WriteFloat64(w.Camera.Pos.Yv)
	wr.WriteFloat64(w.Camera.Zoom)
	savestate.WriteRef(wr, w.Camera.Follow)
	wr.WriteTime(w.WaveAt)
	wr.WriteInt64(w.Score)

	state, err := w.pcg.MarshalBinary()
	if err != nil {
		panic(fmt.Errorf("sim: marshal rng: %w", err))
	}
	wr.WriteBytes(state)
}

func (w *World) ReadGlobals(r *savestate.Reader) {
	w.tick = r.ReadUint64()
	w.nextID = savestate.EntityID(r.ReadInt32())
	w.Camera.Pos.Xv = r.ReadFloat64()
	w.Camera.Pos.Yv = r.ReadFloat64()
	w.Camera.Zoom = r.ReadFloat64()
	savestate.ReadRef(r, &w.Camera.Follow)
	w.WaveAt = r.ReadTime()
	w.Score = r.ReadInt64()

	if err := w.pcg.UnmarshalBinary(r.ReadBytes()); err != nil {
		r.Fail(fmt.Errorf("rng state: %w", err))
	}
}
