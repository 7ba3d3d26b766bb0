package pv

// TraceRecord is one row of the per-register transition table: a register
// that changed on some clock's positive edge, the clock it changed on, and
// how many times it changed within that clock's table (the table is reset
// after every clock, so the count does not accumulate across clocks).
// Grounded on
// original_source/include/pv_testbench.h's dump_trace map of register id to
// a transition-count/last-value record.
type TraceRecord struct {
	ID          uint64
	Name        string
	Clock       uint64
	Start       string
	End         string
	Transitions uint64
}

// traceTable accumulates TraceRecords across a clock's positive edge. The
// root owns exactly one traceTable; it is drained (and the drained rows
// handed to the pvtrace package for rendering) once per clock if nonempty.
type traceTable struct {
	order []uint64
	rows  map[uint64]*TraceRecord
	clock uint64
}

func newTraceTable() *traceTable {
	return &traceTable{rows: make(map[uint64]*TraceRecord)}
}

func (t *traceTable) record(id uint64, name, start, end string) {
	row, ok := t.rows[id]
	if !ok {
		row = &TraceRecord{ID: id, Name: name}
		t.rows[id] = row
		t.order = append(t.order, id)
	}
	row.Clock = t.clock
	row.Start = start
	row.End = end
	row.Transitions++
}

// setClock is called by Root at the start of each clock so new records
// carry the right clock number.
func (t *traceTable) setClock(clock uint64) { t.clock = clock }

func (t *traceTable) isEmpty() bool { return len(t.order) == 0 }

// snapshot returns the accumulated rows in first-touched order and resets
// the table for the next clock.
func (t *traceTable) snapshot() []TraceRecord {
	out := make([]TraceRecord, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.rows[id])
	}
	t.order = t.order[:0]
	t.rows = make(map[uint64]*TraceRecord)
	return out
}
