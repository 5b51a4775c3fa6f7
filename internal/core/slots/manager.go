package slots

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/savestate/internal/core/chunk"
	"github.com/zeusync/savestate/internal/core/observability/log"
	"github.com/zeusync/savestate/internal/core/savestate"
)

// ManagerOptions configure a Manager.
type ManagerOptions struct {
	// Version is the build's snapshot version marker. Slots written under a
	// different marker are refused.
	Version string
	Filter  savestate.Filter
	// ShiftClock keeps the live clock on load and shifts recorded times onto
	// it. By default the clock jumps to the slot's saved time.
	ShiftClock bool
}

// Manager moves snapshots between an engine and a Store, stamping and
// checking the metadata that guards against loading a foreign snapshot.
type Manager struct {
	store       Store
	engine      *savestate.Engine
	opts        ManagerOptions
	fingerprint uint64
	logger      log.Log
	now         func() time.Time
}

func NewManager(store Store, engine *savestate.Engine, opts ManagerOptions, logger log.Log) *Manager {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Manager{
		store:       store,
		engine:      engine,
		opts:        opts,
		fingerprint: engine.Registry().Fingerprint(),
		logger:      logger.With(log.String("component", "slots")),
		now:         time.Now,
	}
}

func (m *Manager) Store() Store { return m.store }

// Snapshot captures the world into a new slot without storing it. The slot
// owns its bytes.
func (m *Manager) Snapshot(name string, tick uint64) (Slot, error) {
	if !ValidName(name) {
		return Slot{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	c := chunk.New(0)
	if _, err := m.engine.Capture(c, m.opts.Filter); err != nil {
		return Slot{}, err
	}
	data := c.Bytes()
	h := m.Stamp(name, tick)
	h.Size = len(data)
	h.Checksum = Checksum(data)
	return Slot{Header: h, Data: data}, nil
}

// Stamp returns a header for a new slot carrying this build's version marker
// and type table fingerprint. Size and Checksum are left to the writer.
func (m *Manager) Stamp(name string, tick uint64) Header {
	return Header{
		ID:          uuid.New(),
		Name:        name,
		Version:     m.opts.Version,
		Fingerprint: m.fingerprint,
		Tick:        tick,
		SavedAt:     m.now().UTC(),
	}
}

// Save captures and stores the world under name.
func (m *Manager) Save(ctx context.Context, name string, tick uint64) (Header, error) {
	s, err := m.Snapshot(name, tick)
	if err != nil {
		return Header{}, err
	}
	if err := m.store.Save(ctx, s); err != nil {
		return Header{}, err
	}
	m.logger.Info("slot saved",
		log.String("slot", name),
		log.Uint64("tick", tick),
		log.Int("bytes", s.Header.Size),
	)
	return s.Header, nil
}

// Check refuses slots written by another build or another type table, and
// slots whose bytes do not match their checksum.
func (m *Manager) Check(s Slot) error {
	if s.Header.Version != m.opts.Version {
		return fmt.Errorf("%w: %s was written by %q, running %q", ErrVersionMismatch, s.Header.Name, s.Header.Version, m.opts.Version)
	}
	if s.Header.Fingerprint != m.fingerprint {
		return fmt.Errorf("%w: %s has type table %016x, running %016x", ErrVersionMismatch, s.Header.Name, s.Header.Fingerprint, m.fingerprint)
	}
	return s.Verify()
}

// Load restores the world from the slot called name. Checks run before the
// engine sees any byte; an engine failure leaves the world undefined.
func (m *Manager) Load(ctx context.Context, name string) (Header, savestate.RestoreReport, error) {
	s, err := m.store.Load(ctx, name)
	if err != nil {
		return Header{}, savestate.RestoreReport{}, err
	}
	if err := m.Check(s); err != nil {
		m.logger.Warn("slot refused", log.String("slot", name), log.Error(err))
		return s.Header, savestate.RestoreReport{}, err
	}
	report, err := m.engine.Restore(chunk.Wrap(s.Data), savestate.RestoreOptions{ResetClock: !m.opts.ShiftClock})
	if err != nil {
		return s.Header, report, fmt.Errorf("slots: load %s: %w", name, err)
	}
	m.logger.Info("slot loaded",
		log.String("slot", name),
		log.Uint64("tick", s.Header.Tick),
		log.Int("records", report.Records),
	)
	return s.Header, report, nil
}

func (m *Manager) Delete(ctx context.Context, name string) error {
	return m.store.Delete(ctx, name)
}

func (m *Manager) List(ctx context.Context) ([]Header, error) {
	return m.store.List(ctx)
}
