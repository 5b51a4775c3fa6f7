package rewind

import (
	"github.com/zeusync/savestate/internal/core/observability/log"
)

// Simulation is the stepping side of a world.
type Simulation[I any] interface {
	Step(in I)
	Tick() uint64
}

// Controller records every tick into a Stack while running and lets a frozen
// simulation be stepped one tick at a time in either direction.
type Controller[I any] struct {
	sim    Simulation[I]
	stack  *Stack
	frozen bool
	logger log.Log
}

func NewController[I any](sim Simulation[I], stack *Stack, logger log.Log) *Controller[I] {
	if logger == nil {
		logger = log.NewNop()
	}
	stack.SetFixedStep(true)
	return &Controller[I]{sim: sim, stack: stack, logger: logger}
}

func (c *Controller[I]) Stack() *Stack { return c.stack }

func (c *Controller[I]) Frozen() bool { return c.frozen }

// Tick advances a running simulation and records the result. It does nothing
// while frozen and reports whether a step happened.
func (c *Controller[I]) Tick(in I) (bool, error) {
	if c.frozen {
		return false, nil
	}
	return true, c.advance(in)
}

// Freeze stops Tick from advancing. The current state is recorded if the
// history does not already end on it.
func (c *Controller[I]) Freeze() error {
	if c.frozen {
		return nil
	}
	c.frozen = true
	tick := c.sim.Tick()
	if f, ok := c.stack.Frame(c.stack.Position() - 1); ok && f.Tick == tick {
		return nil
	}
	_, err := c.stack.Write(tick)
	return err
}

func (c *Controller[I]) Unfreeze() {
	c.frozen = false
}

// StepForward runs one tick with in and records it, discarding any frames
// ahead of the cursor.
func (c *Controller[I]) StepForward(in I) error {
	if !c.frozen {
		return ErrNotFrozen
	}
	return c.advance(in)
}

// StepBack restores the frame before the current one.
func (c *Controller[I]) StepBack() error {
	if !c.frozen {
		return ErrNotFrozen
	}
	pos := c.stack.Position()
	if pos < 2 {
		return ErrNoHistory
	}
	if _, err := c.stack.Seek(pos - 2); err != nil {
		return err
	}
	c.logger.Debug("stepped back", log.Uint64("tick", c.sim.Tick()))
	return nil
}

func (c *Controller[I]) advance(in I) error {
	c.sim.Step(in)
	_, err := c.stack.Write(c.sim.Tick())
	return err
}
