package savestate

import (
	"errors"
	"fmt"
	"time"

	"github.com/zeusync/savestate/internal/core/chunk"
	"github.com/zeusync/savestate/internal/core/events/bus"
	"github.com/zeusync/savestate/internal/core/observability/log"
)

// CaptureReport summarizes one capture.
type CaptureReport struct {
	Timestamp time.Duration
	Records   int
	Skipped   int // secondary-owned entities
	Bytes     int
}

// RestoreOptions tune a restore.
type RestoreOptions struct {
	// ResetClock adopts the snapshot's absolute time instead of shifting
	// recorded timestamps onto the present clock.
	ResetClock bool
}

// RestoreReport summarizes one restore.
type RestoreReport struct {
	SnapshotTime time.Duration
	Dt           time.Duration
	Records      int
	Spawned      int
	Destroyed    int
	Renumbered   int
	Resolved     int
	Cleared      int
	Skipped      int
	Unresolved   int
}

// Engine orchestrates capture and restore for one world. It is not safe for
// concurrent use and must run on the goroutine that steps the simulation.
type Engine struct {
	registry *Registry
	world    World
	events   bus.EventBus
	logger   log.Log
}

// NewEngine seals the registry and binds it to a world. events may be nil.
func NewEngine(registry *Registry, world World, events bus.EventBus, logger log.Log) *Engine {
	registry.Seal()
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{
		registry: registry,
		world:    world,
		events:   events,
		logger:   logger.With(log.String("component", "savestate")),
	}
}

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) World() World { return e.world }

// Capture writes the current world into c, replacing its contents.
func (e *Engine) Capture(c *chunk.Chunk, filter Filter) (CaptureReport, error) {
	include := filter.Bits(e.registry.Len())
	now := e.world.Now()

	c.Reset()
	w := &Writer{Chunk: c, include: include}
	w.WriteInt64(int64(now))
	w.WriteBits(include)

	report := CaptureReport{Timestamp: now}
	for ent := range e.world.Entities() {
		if isSecondary(ent) {
			report.Skipped++
			continue
		}
		tid := ent.TypeID()
		desc, ok := e.registry.Lookup(tid)
		if !ok {
			return report, fmt.Errorf("%w: type %d on entity %d", ErrUnknownType, tid, ent.EntityID())
		}
		if !include[tid] {
			continue
		}
		w.WriteInt32(int32(tid))
		w.WriteInt32(int32(ent.EntityID()))
		desc.Write(w, ent)
		report.Records++
	}
	w.WriteInt32(int32(EndOfRecords))
	e.world.WriteGlobals(w)
	report.Bytes = c.Len()

	e.logger.Debug("captured snapshot",
		log.Duration("timestamp", now),
		log.Int("records", report.Records),
		log.Int("bytes", report.Bytes),
	)
	e.publish(EventCaptured, report)
	return report, nil
}

// Restore rewrites the world from the snapshot in c. Any error is terminal:
// the world may be partially overwritten and must not keep running.
func (e *Engine) Restore(c *chunk.Chunk, opts RestoreOptions) (RestoreReport, error) {
	report, err := e.restore(c, opts)
	if err != nil {
		var be *chunk.BoundsError
		if errors.As(err, &be) {
			err = fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
		}
		e.logger.Error("restore failed", log.Error(err), log.Int("records", report.Records))
		return report, err
	}

	e.logger.Debug("restored snapshot",
		log.Duration("snapshot_time", report.SnapshotTime),
		log.Duration("dt", report.Dt),
		log.Int("records", report.Records),
		log.Int("spawned", report.Spawned),
		log.Int("destroyed", report.Destroyed),
		log.Int("renumbered", report.Renumbered),
	)
	if report.Unresolved > 0 {
		e.logger.Debug("references cleared during restore", log.Int("unresolved", report.Unresolved))
	}
	e.publish(EventRestored, report)
	return report, nil
}

func (e *Engine) restore(c *chunk.Chunk, opts RestoreOptions) (report RestoreReport, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			switch x := rec.(type) {
			case readFailure:
				err = x.err
			case *chunk.BoundsError:
				err = x
			default:
				panic(rec)
			}
		}
	}()

	c.Start()
	snapTime := time.Duration(c.ReadInt64())
	include := c.ReadBits(e.registry.Len())
	report.SnapshotTime = snapTime

	var dt time.Duration
	if opts.ResetClock {
		e.world.SetNow(snapTime)
	} else {
		dt = e.world.Now() - snapTime
	}
	report.Dt = dt

	session := newSession(dt)
	r := &Reader{Chunk: c, session: session}

	live := make([][]Entity, e.registry.Len())
	for ent := range e.world.Entities() {
		if isSecondary(ent) {
			continue
		}
		tid := ent.TypeID()
		if tid < 0 || int(tid) >= len(live) {
			return report, fmt.Errorf("%w: type %d on live entity %d", ErrUnknownType, tid, ent.EntityID())
		}
		live[tid] = append(live[tid], ent)
	}
	used := make([]int, e.registry.Len())

	for {
		tid := TypeID(c.ReadInt32())
		if tid == EndOfRecords {
			break
		}
		desc, ok := e.registry.Lookup(tid)
		if !ok || !include[tid] {
			return report, fmt.Errorf("%w: unexpected record type %d at offset %d", ErrCorruptSnapshot, tid, c.Pos()-4)
		}
		recorded := EntityID(c.ReadInt32())

		n := used[tid]
		var ent Entity
		if n < len(live[tid]) {
			ent = live[tid][n]
		} else {
			if desc.Spawn == nil {
				return report, fmt.Errorf("%w: %s needs %d instances, world has %d", ErrMissingFactory, desc.Name, n+1, len(live[tid]))
			}
			ent = desc.Spawn()
			e.world.Add(ent)
			live[tid] = append(live[tid], ent)
			report.Spawned++
		}
		used[tid] = n + 1

		ent.SetEntityID(recorded)
		if !session.register(recorded, ent) {
			return report, fmt.Errorf("%w: entity id %d recorded twice", ErrCorruptSnapshot, recorded)
		}
		desc.Read(r, ent)
		report.Records++
	}

	e.world.ReadGlobals(r)

	for tid, ents := range live {
		desc, _ := e.registry.Lookup(TypeID(tid))
		if !include[tid] || desc.Spawn == nil {
			continue
		}
		for _, surplus := range ents[used[tid]:] {
			e.world.Remove(surplus)
			report.Destroyed++
		}
	}

	st := session.resolve()
	report.Resolved = st.resolved
	report.Cleared = st.cleared
	report.Skipped = st.skipped
	report.Unresolved = st.unresolved

	report.Renumbered = e.renumber(session)
	return report, nil
}

// renumber keeps every snapshot-sourced id and packs all other live entities
// into the lowest ids the snapshot did not claim, in iteration order.
func (e *Engine) renumber(session *Session) int {
	renumbered := 0
	next := EntityID(0)
	highest := EntityID(-1)
	for ent := range e.world.Entities() {
		if session.isFixed(ent) {
			highest = max(highest, ent.EntityID())
			continue
		}
		for session.isClaimed(next) {
			next++
		}
		if ent.EntityID() != next {
			ent.SetEntityID(next)
			renumbered++
		}
		highest = max(highest, next)
		next++
	}
	e.world.SetNextID(highest + 1)
	return renumbered
}

func (e *Engine) publish(eventType string, data any) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(bus.NewEvent(eventType, "savestate", data)); err != nil {
		e.logger.Warn("event handler failed", log.String("event", eventType), log.Error(err))
	}
}
