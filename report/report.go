// Package report renders the results of a pipeline run: the
// per-instruction stage table, the cycle-by-cycle diagram, a statistics
// summary and a machine-readable run summary.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rs/xid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sarchlab/rv5sim/emu"
	"github.com/sarchlab/rv5sim/loader"
	"github.com/sarchlab/rv5sim/timing/pipeline"
)

// Cell texts used for cycles without a pipeline stage.
const (
	cellStall     = "stall"
	cellIdle      = "-"
	cellNotIssued = "."
)

// Report collects what is needed to render a run.
type Report struct {
	Program  []loader.Instruction
	Timeline *pipeline.Timeline
	Stats    pipeline.Statistics
	RegFile  *emu.RegFile
}

// New creates a report for a pipeline that has run program.
func New(program *loader.Program, p *pipeline.Pipeline) *Report {
	return &Report{
		Program:  program.Instructions,
		Timeline: p.Timeline(),
		Stats:    p.Stats(),
		RegFile:  p.RegFile(),
	}
}

func (r *Report) label(inst loader.Instruction) string {
	text := inst.Text
	if text == "" {
		text = fmt.Sprintf("%08x", inst.Word)
	}
	if r.Timeline.IsIllegal(inst.Index) {
		text += " (illegal)"
	}
	return fmt.Sprintf("%d: %s", inst.Index, text)
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
}

// WriteStageTable writes one row per instruction with the last cycle it
// spent in each stage, or "-" if it never reached the stage.
func (r *Report) WriteStageTable(w io.Writer) error {
	tw := newTabWriter(w)

	header := []string{"Instruction"}
	for _, stage := range pipeline.AllStages {
		header = append(header, stage.String())
	}
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, inst := range r.Program {
		row := []string{r.label(inst)}
		for _, stage := range pipeline.AllStages {
			cycle, ok := r.Timeline.LastCycle(inst.Index, stage)
			if !ok {
				row = append(row, cellIdle)
				continue
			}
			row = append(row, fmt.Sprint(cycle))
		}
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	return tw.Flush()
}

// WriteDiagram writes the cycle diagram: one row per instruction, one
// column per cycle. A cell names the stage(s) the instruction occupied,
// or "stall" while it waited in fetch. Cycles before the instruction was
// first fetched print "." and idle cycles after that print "-". An
// instruction that was never fetched is "." throughout.
func (r *Report) WriteDiagram(w io.Writer) error {
	tw := newTabWriter(w)
	cycles := r.Timeline.Cycles()

	header := []string{"Instruction"}
	for c := uint64(1); c <= cycles; c++ {
		header = append(header, fmt.Sprint(c))
	}
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, inst := range r.Program {
		row := []string{r.label(inst)}
		first, issued := r.Timeline.FirstCycle(inst.Index)
		for c := uint64(1); c <= cycles; c++ {
			if !issued || c < first {
				row = append(row, cellNotIssued)
				continue
			}
			row = append(row, cell(r.Timeline.Stages(inst.Index, c)))
		}
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	return tw.Flush()
}

func cell(stages []pipeline.Stage) string {
	if len(stages) == 0 {
		return cellIdle
	}

	names := make([]string, len(stages))
	for i, s := range stages {
		if s == pipeline.StageStall {
			names[i] = cellStall
			continue
		}
		names[i] = s.String()
	}
	return strings.Join(names, "/")
}

// WriteStats writes the statistics summary with locale digit grouping.
func (r *Report) WriteStats(w io.Writer) error {
	p := message.NewPrinter(language.English)
	s := r.Stats

	lines := []struct {
		name  string
		value uint64
	}{
		{"Cycles", s.Cycles},
		{"Instructions", s.Instructions},
		{"Stall cycles", s.Stalls},
		{"Load-use stalls", s.LoadUseStalls},
		{"Flushes", s.Flushes},
		{"Forwards", s.Forwards},
		{"Illegal", s.Illegal},
	}

	tw := newTabWriter(w)
	for _, l := range lines {
		_, _ = p.Fprintf(tw, "%s:\t%d\n", l.name, l.value)
	}
	_, _ = p.Fprintf(tw, "CPI:\t%.3f\n", s.CPI())

	return tw.Flush()
}

// WriteRegisters writes the non-zero registers, four per line.
func (r *Report) WriteRegisters(w io.Writer) error {
	regs := r.RegFile.Snapshot()
	n := 0
	for i, v := range regs {
		if v == 0 {
			continue
		}
		sep := "  "
		if n%4 == 3 {
			sep = "\n"
		}
		if _, err := fmt.Fprintf(w, "x%-2d = %-11d%s", i, v, sep); err != nil {
			return err
		}
		n++
	}
	if n%4 != 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	return nil
}

// Summary is the machine-readable result of one run.
type Summary struct {
	RunID     string              `json:"run_id"`
	Program   string              `json:"program"`
	Drained   bool                `json:"drained"`
	CPI       float64             `json:"cpi"`
	Stats     pipeline.Statistics `json:"stats"`
	Registers [emu.NumRegs]int32  `json:"registers"`
}

// NewSummary builds a Summary for a run of the program at path, tagged
// with a fresh run ID.
func NewSummary(path string, result pipeline.Result, regFile *emu.RegFile) Summary {
	return Summary{
		RunID:     xid.New().String(),
		Program:   path,
		Drained:   result.Drained,
		CPI:       result.Stats.CPI(),
		Stats:     result.Stats,
		Registers: regFile.Snapshot(),
	}
}
