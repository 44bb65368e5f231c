package pipeline

import "sort"

// Stage identifies where an instruction was during a cycle.
type Stage uint8

// Timeline stages. StageStall marks an instruction held in fetch while
// decode waits on a hazard.
const (
	StageIF Stage = iota
	StageID
	StageEX
	StageMEM
	StageWB
	StageStall
)

// AllStages lists the five pipeline stages in program order.
var AllStages = []Stage{StageIF, StageID, StageEX, StageMEM, StageWB}

func (s Stage) String() string {
	switch s {
	case StageIF:
		return "IF"
	case StageID:
		return "ID"
	case StageEX:
		return "EX"
	case StageMEM:
		return "MEM"
	case StageWB:
		return "WB"
	case StageStall:
		return "stall"
	default:
		return "invalid"
	}
}

// Event records that an instruction occupied a stage during a cycle.
type Event struct {
	Index int
	Cycle uint64
	Stage Stage
}

type cellKey struct {
	index int
	cycle uint64
}

// Timeline is the per-instruction, per-cycle record of stage occupancy.
// Cycles are numbered from 1.
type Timeline struct {
	events  []Event
	byIndex map[int][]int
	cells   map[cellKey][]Stage
	illegal map[int]bool
	last    uint64
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{
		byIndex: make(map[int][]int),
		cells:   make(map[cellKey][]Stage),
		illegal: make(map[int]bool),
	}
}

// Record adds an event. Bubbles are ignored.
func (t *Timeline) Record(index int, cycle uint64, stage Stage) {
	if index == Bubble {
		return
	}

	t.byIndex[index] = append(t.byIndex[index], len(t.events))
	t.events = append(t.events, Event{Index: index, Cycle: cycle, Stage: stage})
	key := cellKey{index: index, cycle: cycle}
	t.cells[key] = append(t.cells[key], stage)

	if cycle > t.last {
		t.last = cycle
	}
}

// MarkIllegal flags index as an undecodable word that flowed as a no-op.
func (t *Timeline) MarkIllegal(index int) {
	t.illegal[index] = true
}

// IsIllegal reports whether index was flagged by MarkIllegal.
func (t *Timeline) IsIllegal(index int) bool {
	return t.illegal[index]
}

// Events returns all events in recording order.
func (t *Timeline) Events() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Cycles returns the last cycle that has an event.
func (t *Timeline) Cycles() uint64 {
	return t.last
}

// Indices returns the instruction indices that appear in the timeline,
// in ascending order.
func (t *Timeline) Indices() []int {
	out := make([]int, 0, len(t.byIndex))
	for index := range t.byIndex {
		out = append(out, index)
	}
	sort.Ints(out)
	return out
}

// Stages returns the stages index occupied during cycle. An instruction in
// a loop may occupy more than one stage in the same cycle.
func (t *Timeline) Stages(index int, cycle uint64) []Stage {
	stages := t.cells[cellKey{index: index, cycle: cycle}]
	if len(stages) == 0 {
		return nil
	}
	out := make([]Stage, len(stages))
	copy(out, stages)
	return out
}

// FirstCycle returns the first cycle with an event for index, and false
// if index never entered the pipeline.
func (t *Timeline) FirstCycle(index int) (uint64, bool) {
	ids := t.byIndex[index]
	if len(ids) == 0 {
		return 0, false
	}
	first := t.events[ids[0]].Cycle
	for _, i := range ids[1:] {
		if t.events[i].Cycle < first {
			first = t.events[i].Cycle
		}
	}
	return first, true
}

// LastCycle returns the last cycle index occupied stage, and false if it
// never did.
func (t *Timeline) LastCycle(index int, stage Stage) (uint64, bool) {
	var last uint64
	found := false
	for _, i := range t.byIndex[index] {
		e := t.events[i]
		if e.Stage == stage && e.Cycle >= last {
			last = e.Cycle
			found = true
		}
	}
	return last, found
}

// Count returns how many times index occupied stage.
func (t *Timeline) Count(index int, stage Stage) int {
	n := 0
	for _, i := range t.byIndex[index] {
		if t.events[i].Stage == stage {
			n++
		}
	}
	return n
}

// Reset discards every event.
func (t *Timeline) Reset() {
	t.events = nil
	t.byIndex = make(map[int][]int)
	t.cells = make(map[cellKey][]Stage)
	t.illegal = make(map[int]bool)
	t.last = 0
}
