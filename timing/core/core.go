// Package core drives the 5-stage pipeline as an akita ticking component.
// One engine tick is one pipeline cycle.
package core

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rv5sim/timing/pipeline"
)

// DefaultFrequency is the clock the core ticks at.
const DefaultFrequency = 1 * sim.GHz

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of stall cycles.
	Stalls uint64
	// Flushes is the number of pipeline flushes.
	Flushes uint64
}

// Core represents a cycle-accurate CPU core model.
// It wraps a 5-stage pipeline and advances it once per engine tick until
// the pipeline drains, hits its cycle limit or faults.
type Core struct {
	*sim.TickingComponent

	pipeline *pipeline.Pipeline
	err      error
	stopped  bool
}

// NewCore creates a new Core named name that ticks p on engine at freq.
func NewCore(name string, engine sim.Engine, freq sim.Freq, p *pipeline.Pipeline) *Core {
	c := &Core{pipeline: p}
	c.TickingComponent = sim.NewTickingComponent(name, engine, freq, c)
	return c
}

// Pipeline returns the underlying pipeline.
func (c *Core) Pipeline() *pipeline.Pipeline {
	return c.pipeline
}

// Start schedules the first tick.
func (c *Core) Start() {
	c.TickLater()
}

// Tick executes one pipeline cycle. It returns false once the core has
// nothing more to do, which stops the component from rescheduling itself.
func (c *Core) Tick() bool {
	if c.stopped {
		return false
	}

	p := c.pipeline
	if p.Drained() || (p.MaxCycles() > 0 && p.Cycle() >= p.MaxCycles()) {
		c.stopped = true
		return false
	}

	if err := p.Tick(); err != nil {
		c.err = err
		c.stopped = true
		return false
	}

	return true
}

// Halted returns true once the core stopped ticking.
func (c *Core) Halted() bool {
	return c.stopped
}

// Err returns the fault that stopped the core, if any.
func (c *Core) Err() error {
	return c.err
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.pipeline.Stats()
	return Stats{
		Cycles:       pipeStats.Cycles,
		Instructions: pipeStats.Instructions,
		Stalls:       pipeStats.Stalls,
		Flushes:      pipeStats.Flushes,
	}
}

// Reset clears all core state.
func (c *Core) Reset() {
	c.pipeline.Reset()
	c.err = nil
	c.stopped = false
}

// Run drives p to completion on a serial engine and returns its result.
func Run(p *pipeline.Pipeline) (pipeline.Result, error) {
	engine := sim.NewSerialEngine()
	c := NewCore("Core", engine, DefaultFrequency, p)
	c.Start()

	if err := engine.Run(); err != nil {
		return p.Result(), err
	}

	return p.Result(), c.Err()
}
