//go:build windows

package main

import (
	"io"
	"os"

	"github.com/sarchlab/rv5sim/timing/pipeline"
)

// stepRun steps p from line-buffered standard input.
func stepRun(p *pipeline.Pipeline, out io.Writer) (pipeline.Result, error) {
	return stepLoop(p, os.Stdin, out)
}
