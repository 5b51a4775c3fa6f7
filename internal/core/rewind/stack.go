// Package rewind keeps a linear history of snapshots for stepping a frozen
// simulation backwards and forwards.
package rewind

import (
	"errors"
	"fmt"
	"time"

	"github.com/zeusync/savestate/internal/core/chunk"
	"github.com/zeusync/savestate/internal/core/events/bus"
	"github.com/zeusync/savestate/internal/core/observability/log"
	"github.com/zeusync/savestate/internal/core/savestate"
)

var (
	ErrPositionOutOfRange = errors.New("rewind: position out of range")
	ErrNoHistory          = errors.New("rewind: no earlier frame")
	ErrNotFrozen          = errors.New("rewind: simulation is not frozen")
)

// Frame is one captured tick.
type Frame struct {
	Tick uint64
	Time time.Duration
	Data []byte
}

// Options bound the history. Zero values mean unbounded.
type Options struct {
	// MaxFrames caps the number of frames kept.
	MaxFrames int
	// MaxAge drops frames older than this, measured on the simulation clock
	// from the newest frame.
	MaxAge time.Duration
	// KeepClock restores frames onto the present clock instead of jumping
	// the clock back to the frame's time.
	KeepClock bool
	Filter    savestate.Filter
}

// WriteResult describes what a Write did to the history.
type WriteResult struct {
	Position  int
	Bytes     int
	Truncated int
	Evicted   int
}

// Stack is a linear snapshot history with a cursor. The cursor counts the
// frames that are "present": frames at or past it are a future that the next
// Write discards.
type Stack struct {
	engine    *savestate.Engine
	opts      Options
	scratch   *chunk.Chunk
	frames    []Frame
	cursor    int
	fixedStep bool
	logger    log.Log

	events  bus.EventBus
	sub     bus.Subscription
	seeking bool
}

func NewStack(engine *savestate.Engine, opts Options, logger log.Log) *Stack {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Stack{
		engine:  engine,
		opts:    opts,
		scratch: chunk.New(0),
		logger:  logger.With(log.String("component", "rewind")),
	}
}

// Follow clears the history whenever the engine restores a snapshot that
// did not come from Seek, such as a slot load. Frames recorded before such a
// restore describe a timeline the world has left.
func (s *Stack) Follow(events bus.EventBus) error {
	if s.sub != nil {
		return nil
	}
	sub, err := events.Subscribe(savestate.EventRestored, s.onRestored)
	if err != nil {
		return err
	}
	s.events, s.sub = events, sub
	return nil
}

// Close stops following restores.
func (s *Stack) Close() error {
	if s.sub == nil {
		return nil
	}
	err := s.events.Unsubscribe(s.sub)
	s.events, s.sub = nil, nil
	return err
}

func (s *Stack) onRestored(bus.Event) error {
	if s.seeking || len(s.frames) == 0 {
		return nil
	}
	s.logger.Debug("rewind history dropped after external restore", log.Int("frames", len(s.frames)))
	s.Clear()
	return nil
}

// Write captures the world as frame tick. Frames past the cursor are
// discarded first, then the new frame becomes the newest present one.
func (s *Stack) Write(tick uint64) (WriteResult, error) {
	report, err := s.engine.Capture(s.scratch, s.opts.Filter)
	if err != nil {
		return WriteResult{}, fmt.Errorf("rewind: capture tick %d: %w", tick, err)
	}

	var res WriteResult
	var reuse []byte
	if s.cursor < len(s.frames) {
		res.Truncated = len(s.frames) - s.cursor
		reuse = s.frames[s.cursor].Data
		clear(s.frames[s.cursor:])
		s.frames = s.frames[:s.cursor]
	}
	s.frames = append(s.frames, Frame{
		Tick: tick,
		Time: report.Timestamp,
		Data: s.scratch.CopyTo(reuse),
	})
	s.cursor = len(s.frames)

	res.Evicted = s.evict()
	res.Position = s.cursor - 1
	res.Bytes = report.Bytes
	if res.Truncated > 0 || res.Evicted > 0 {
		s.logger.Debug("rewind history trimmed",
			log.Uint64("tick", tick),
			log.Int("truncated", res.Truncated),
			log.Int("evicted", res.Evicted),
		)
	}
	return res, nil
}

// evict drops the oldest frames that fall outside the retention limits.
func (s *Stack) evict() int {
	drop := 0
	if s.opts.MaxFrames > 0 && len(s.frames) > s.opts.MaxFrames {
		drop = len(s.frames) - s.opts.MaxFrames
	}
	if s.opts.MaxAge > 0 && len(s.frames) > 0 {
		newest := s.frames[len(s.frames)-1].Time
		for drop < len(s.frames)-1 && newest-s.frames[drop].Time > s.opts.MaxAge {
			drop++
		}
	}
	if drop == 0 {
		return 0
	}
	n := copy(s.frames, s.frames[drop:])
	clear(s.frames[n:])
	s.frames = s.frames[:n]
	s.cursor = max(s.cursor-drop, 0)
	return drop
}

// Seek restores the frame at position and makes it the newest present frame.
// The history itself is unchanged.
func (s *Stack) Seek(position int) (savestate.RestoreReport, error) {
	if position < 0 || position >= len(s.frames) {
		return savestate.RestoreReport{}, fmt.Errorf("%w: %d not in [0,%d)", ErrPositionOutOfRange, position, len(s.frames))
	}
	f := s.frames[position]
	s.seeking = true
	defer func() { s.seeking = false }()
	report, err := s.engine.Restore(chunk.Wrap(f.Data), savestate.RestoreOptions{ResetClock: !s.opts.KeepClock})
	if err != nil {
		return report, fmt.Errorf("rewind: seek to tick %d: %w", f.Tick, err)
	}
	s.cursor = position + 1
	return report, nil
}

// PositionOf finds the frame recorded for tick.
func (s *Stack) PositionOf(tick uint64) (int, bool) {
	for i, f := range s.frames {
		if f.Tick == tick {
			return i, true
		}
	}
	return -1, false
}

// Frame returns the frame at position. The data must not be modified and is
// only valid until the frame is discarded.
func (s *Stack) Frame(position int) (Frame, bool) {
	if position < 0 || position >= len(s.frames) {
		return Frame{}, false
	}
	return s.frames[position], true
}

// Position is the number of present frames. The current state, if recorded,
// is frame Position()-1.
func (s *Stack) Position() int { return s.cursor }

func (s *Stack) Len() int { return len(s.frames) }

func (s *Stack) Clear() {
	clear(s.frames)
	s.frames = s.frames[:0]
	s.cursor = 0
}

// SetFixedStep switches fixed-step mode. Leaving it drops the history, since
// frames recorded at a fixed step cannot be stepped through afterwards.
func (s *Stack) SetFixedStep(on bool) {
	if s.fixedStep && !on {
		s.Clear()
	}
	s.fixedStep = on
}

func (s *Stack) FixedStep() bool { return s.fixedStep }
