package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/rv5sim/timing/pipeline"
)

// stepLoop ticks p once per key read from in. 'c' runs to the end and 'q'
// stops early; any other key advances one cycle.
func stepLoop(p *pipeline.Pipeline, in io.Reader, out io.Writer) (pipeline.Result, error) {
	key := make([]byte, 1)
	running := false

	for !p.Drained() && (p.MaxCycles() == 0 || p.Cycle() < p.MaxCycles()) {
		if !running {
			_, _ = fmt.Fprintln(out, occupancy(p))
			_, _ = fmt.Fprint(out, "[any] step  [c] continue  [q] quit > ")

			if _, err := in.Read(key); err != nil {
				_, _ = fmt.Fprintln(out)
				if errors.Is(err, io.EOF) {
					break
				}
				return p.Result(), err
			}
			_, _ = fmt.Fprintln(out)

			switch key[0] {
			case 'q':
				return p.Result(), nil
			case 'c':
				running = true
			}
		}

		if err := p.Tick(); err != nil {
			return p.Result(), err
		}
	}

	_, _ = fmt.Fprintln(out, occupancy(p))
	return p.Result(), nil
}

// occupancy renders the instruction index held by each stage register.
func occupancy(p *pipeline.Pipeline) string {
	s := p.State()
	id := slot(s.ID.Index)
	if s.ID.Stall {
		id = "stall"
	}
	return fmt.Sprintf("cycle %-4d pc %-4d IF %-5s ID %-5s EX %-5s MEM %-5s WB %-5s",
		p.Cycle(), p.PC(), slot(s.IF.Index), id, slot(s.EX.Index), slot(s.MEM.Index), slot(s.WB.Index))
}

func slot(index int) string {
	if index == pipeline.Bubble {
		return "-"
	}
	return fmt.Sprint(index)
}
