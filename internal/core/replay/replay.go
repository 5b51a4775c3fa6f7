// Package replay checks that a simulation is deterministic: it records the
// inputs fed to the world and a digest of the captured state after every
// tick, then replays the inputs from the starting snapshot and compares.
package replay

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/savestate/internal/core/chunk"
	"github.com/zeusync/savestate/internal/core/events/bus"
	"github.com/zeusync/savestate/internal/core/observability/log"
	"github.com/zeusync/savestate/internal/core/savestate"
)

var ErrNotRecording = errors.New("replay: no recording in progress")

// DivergenceError reports the first tick whose replayed state differs from
// the recording.
type DivergenceError struct {
	Tick uint64
	Want uint64
	Got  uint64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("replay: diverged at tick %d: want %016x, got %016x", e.Tick, e.Want, e.Got)
}

// Simulation is the stepping side of a world.
type Simulation[I any] interface {
	Step(in I)
	Tick() uint64
}

type step[I any] struct {
	input  I
	digest uint64
}

// Report summarizes a successful verification.
type Report struct {
	StartTick uint64
	EndTick   uint64
	Ticks     int
}

// Recorder must be driven from the simulation goroutine.
type Recorder[I any] struct {
	engine  *savestate.Engine
	sim     Simulation[I]
	events  bus.EventBus
	sub     bus.Subscription
	scratch *chunk.Chunk
	logger  log.Log

	start     []byte
	startTick uint64
	steps     []step[I]
	replaying bool
}

// NewRecorder binds a recorder to a world. When events is not nil the
// recorder follows restores: rewinding to a recorded tick drops the steps
// after it, rewinding before the start ends the recording.
func NewRecorder[I any](engine *savestate.Engine, sim Simulation[I], events bus.EventBus, logger log.Log) (*Recorder[I], error) {
	if logger == nil {
		logger = log.NewNop()
	}
	r := &Recorder[I]{
		engine:  engine,
		sim:     sim,
		events:  events,
		scratch: chunk.New(0),
		logger:  logger.With(log.String("component", "replay")),
	}
	if events != nil {
		sub, err := events.Subscribe(savestate.EventRestored, r.onRestored)
		if err != nil {
			return nil, err
		}
		r.sub = sub
	}
	return r, nil
}

// Close stops following restores.
func (r *Recorder[I]) Close() error {
	if r.sub == nil {
		return nil
	}
	return r.events.Unsubscribe(r.sub)
}

// Begin starts a new recording from the current state.
func (r *Recorder[I]) Begin() error {
	if _, err := r.engine.Capture(r.scratch, savestate.All()); err != nil {
		return fmt.Errorf("replay: capture start: %w", err)
	}
	r.start = r.scratch.Clone()
	r.startTick = r.sim.Tick()
	r.steps = r.steps[:0]
	return nil
}

func (r *Recorder[I]) Recording() bool { return r.start != nil }

// Len is the number of recorded ticks.
func (r *Recorder[I]) Len() int { return len(r.steps) }

func (r *Recorder[I]) StartTick() uint64 { return r.startTick }

// Step advances the simulation with in and records the resulting digest.
func (r *Recorder[I]) Step(in I) (uint64, error) {
	if r.start == nil {
		return 0, ErrNotRecording
	}
	r.sim.Step(in)
	d, err := r.digest()
	if err != nil {
		return 0, err
	}
	r.steps = append(r.steps, step[I]{input: in, digest: d})
	return d, nil
}

func (r *Recorder[I]) digest() (uint64, error) {
	if _, err := r.engine.Capture(r.scratch, savestate.All()); err != nil {
		return 0, fmt.Errorf("replay: capture tick %d: %w", r.sim.Tick(), err)
	}
	return xxhash.Sum64(r.scratch.Bytes()), nil
}

// Verify restores the starting snapshot, feeds the recorded inputs again and
// compares every tick. On success the world ends where the recording ended.
func (r *Recorder[I]) Verify() (Report, error) {
	if r.start == nil {
		return Report{}, ErrNotRecording
	}
	r.replaying = true
	defer func() { r.replaying = false }()

	if _, err := r.engine.Restore(chunk.Wrap(r.start), savestate.RestoreOptions{ResetClock: true}); err != nil {
		return Report{}, fmt.Errorf("replay: restore start: %w", err)
	}
	for i, s := range r.steps {
		r.sim.Step(s.input)
		got, err := r.digest()
		if err != nil {
			return Report{}, err
		}
		if got != s.digest {
			tick := r.startTick + uint64(i) + 1
			r.logger.Warn("replay diverged", log.Uint64("tick", tick))
			return Report{}, &DivergenceError{Tick: tick, Want: s.digest, Got: got}
		}
	}
	report := Report{StartTick: r.startTick, EndTick: r.sim.Tick(), Ticks: len(r.steps)}
	r.logger.Debug("replay verified", log.Int("ticks", report.Ticks))
	return report, nil
}

func (r *Recorder[I]) onRestored(bus.Event) error {
	if r.replaying || r.start == nil {
		return nil
	}
	tick := r.sim.Tick()
	switch {
	case tick < r.startTick:
		r.start = nil
		r.steps = r.steps[:0]
		r.logger.Debug("recording dropped by restore", log.Uint64("tick", tick))
	case tick-r.startTick < uint64(len(r.steps)):
		r.steps = r.steps[:tick-r.startTick]
		r.logger.Debug("recording truncated by restore", log.Uint64("tick", tick))
	}
	return nil
}
