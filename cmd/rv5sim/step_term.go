//go:build !windows

package main

import (
	"fmt"
	"io"

	"github.com/pkg/term"

	"github.com/sarchlab/rv5sim/timing/pipeline"
)

// stepRun steps p from the controlling terminal in cbreak mode so that a
// single key press advances a cycle.
func stepRun(p *pipeline.Pipeline, out io.Writer) (pipeline.Result, error) {
	t, err := term.Open("/dev/tty", term.CBreakMode)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("failed to open terminal: %w", err)
	}
	defer func() {
		_ = t.Restore()
		_ = t.Close()
	}()

	return stepLoop(p, t, out)
}
