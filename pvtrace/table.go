// Copyright 2024 Michael C Shebanow
// Licensed under the Apache License, Version 2.0. See license text in the LICENSE file.

// Package pvtrace renders the per-register transition table a pv.Root
// accumulates across a clock's positive edge: a optional, human-readable
// companion to the VCD byte stream, grounded on
// original_source/include/pv_testbench.h's dump_trace.
package pvtrace

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"

	"github.com/shebanow/pseudo-verilog"
)

// Recorder accumulates TraceRecords across an entire Simulate call and
// renders them as a column-aligned table on Flush. Wire it to a Root with
// Root.SetTraceSink(recorder.Sink).
type Recorder struct {
	out      io.Writer
	color    bool
	rows     []pv.TraceRecord
}

// NewRecorder builds a Recorder writing to out. Column output uses
// go-runewidth to align names that may contain multi-width runes; color
// highlighting of the register name column is enabled automatically when
// out is a terminal, detected with go-isatty, and can be overridden with
// SetColor.
func NewRecorder(out io.Writer) *Recorder {
	r := &Recorder{out: out}
	if f, ok := out.(fdWriter); ok {
		r.color = isatty.IsTerminal(f.Fd())
	}
	return r
}

type fdWriter interface {
	Fd() uintptr
}

// SetColor overrides the terminal auto-detection.
func (r *Recorder) SetColor(on bool) { r.color = on }

// Sink is the callback Root.SetTraceSink expects: it appends rows,
// deferring rendering until Flush so a single table can span multiple
// clocks.
func (r *Recorder) Sink(rows []pv.TraceRecord) {
	r.rows = append(r.rows, rows...)
}

const (
	colorReg   = "\x1b[36m"
	colorReset = "\x1b[0m"
)

// Flush renders the accumulated rows as a fixed-width table: clock,
// register name, start value, end value, transition count. Call once
// after Simulate returns, or periodically if the run is long-lived.
func (r *Recorder) Flush() {
	if len(r.rows) == 0 {
		return
	}
	nameWidth := runewidth.StringWidth("register")
	for _, row := range r.rows {
		if w := runewidth.StringWidth(row.Name); w > nameWidth {
			nameWidth = w
		}
	}
	fmt.Fprintf(r.out, "%-6s %s %-6s %-6s %s\n", "clock", pad("register", nameWidth), "start", "end", "count")
	for _, row := range r.rows {
		name := pad(row.Name, nameWidth)
		if r.color {
			name = colorReg + name + colorReset
		}
		fmt.Fprintf(r.out, "%-6d %s %-6s %-6s %d\n", row.Clock, name, row.Start, row.End, row.Transitions)
	}
	r.rows = r.rows[:0]
}

func pad(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
