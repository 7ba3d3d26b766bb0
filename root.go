// Copyright 2024 Michael C Shebanow
// Licensed under the Apache License, Version 2.0. See license text in the LICENSE file.

package pv

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shebanow/pseudo-verilog/vcd"
)

// Default watchdog thresholds used by NewRoot when SetLimits is never
// called. They are generous enough not to fire on a well-behaved design;
// callers exercising the boundary behaviors in the testable-properties
// section pass their own small values to SetLimits.
const (
	DefaultIterationLimit = 10000
	DefaultIdleLimit      = 10000
	DefaultCycleLimit     = ^uint64(0)
)

// Limits holds the three watchdog thresholds: the maximum number of
// clocks, the maximum consecutive idle clocks, and the maximum
// fixed-point iterations within a single clock.
type Limits struct {
	IterationLimit uint64
	IdleLimit      uint64
	CycleLimit     uint64
}

// Root is the distinguished top-level module: the scheduler. It owns the
// run queue, the changed-wire and changed-register sets, the clock number,
// the watchdog limits, the VCD writer (if any) and the trace table.
// Grounded on original_source/include/pv_testbench.h's simulation class.
type Root struct {
	Module

	idc idCounter

	runQueue         *orderedSet[*Module]
	changedWires     *orderedSet[wireOps]
	changedRegisters *orderedSet[regOps]
	registryOwner    map[uint64]*Module

	currentSnapshot map[*Module]bool

	trace     *traceTable
	traceSink func([]TraceRecord)

	vcdWriter     *vcd.Writer
	vcdStartClock uint64
	vcdStopClock  uint64
	vcdHasStart   bool
	vcdHasStop    bool
	tracingActive bool

	limits Limits
	clock  uint64

	endRequested bool
	exitCode     ExitCode
	errString    string

	cumulativeRunTime time.Duration
	lastRunTime       time.Duration
}

// NewRoot constructs the top of a design. self is the embedding type
// implementing Evaluator (and, optionally, PreEdger/PostEdger); those
// optional hooks are only ever invoked on the root.
func NewRoot(name string, self Evaluator) *Root {
	r := &Root{
		limits: Limits{
			IterationLimit: DefaultIterationLimit,
			IdleLimit:      DefaultIdleLimit,
			CycleLimit:     DefaultCycleLimit,
		},
		runQueue:         newOrderedSet[*Module](),
		changedWires:     newOrderedSet[wireOps](),
		changedRegisters: newOrderedSet[regOps](),
		registryOwner:    make(map[uint64]*Module),
		trace:            newTraceTable(),
	}
	r.Module = Module{name: name, self: self, rootMod: r}
	return r
}

// AsModule exposes the root's embedded Module by pointer, for passing to
// NewModule as the parent of a design's top-level instance.
func (r *Root) AsModule() *Module { return &r.Module }

// SetLimits overrides the default watchdog thresholds.
func (r *Root) SetLimits(l Limits) { r.limits = l }

// SetVCDWriter attaches a trace writer. Pass nil to disable tracing.
func (r *Root) SetVCDWriter(w *vcd.Writer) { r.vcdWriter = w }

// SetTraceSink installs a callback invoked once per clock with that
// clock's accumulated register-transition rows, whenever the table is
// nonempty. The pv/pvtrace package's Recorder.Sink method is the intended
// callback.
func (r *Root) SetTraceSink(fn func([]TraceRecord)) { r.traceSink = fn }

// SetVCDWindow configures the VCD start/stop clock gate. Passing
// hasStart=false means tracing (once a writer is attached) is visible from
// tick 0; passing hasStop=false means it never stops. start-clock must be
// less than stop-clock when both are set.
func (r *Root) SetVCDWindow(startClock uint64, hasStart bool, stopClock uint64, hasStop bool) error {
	if hasStart && hasStop && !(startClock < stopClock) {
		return errors.New("vcd: start-clock must be less than stop-clock")
	}
	r.vcdStartClock, r.vcdHasStart = startClock, hasStart
	r.vcdStopClock, r.vcdHasStop = stopClock, hasStop
	return nil
}

// EndSimulation requests a clean stop at the next opportunity, callable
// from inside Evaluate, PreEdge or PostEdge.
func (r *Root) EndSimulation() { r.endRequested = true }

// ErrorString returns the diagnostic message recorded when Simulate
// returns a non-normal ExitCode.
func (r *Root) ErrorString() string { return r.errString }

// Clock returns the current clock number (0 before the first clock).
func (r *Root) Clock() uint64 { return r.clock }

// RunTime is the wall-clock duration of the most recent call to Simulate.
func (r *Root) RunTime() time.Duration { return r.lastRunTime }

// CumulativeRunTime is the sum of RunTime across every call to Simulate on
// this Root.
func (r *Root) CumulativeRunTime() time.Duration { return r.cumulativeRunTime }

func (r *Root) nextID() uint64 { return r.idc.next() }

func (r *Root) enqueue(m *Module) { r.runQueue.add(m) }

func (r *Root) trackRegister(id uint64, owner *Module) { r.registryOwner[id] = owner }

func (r *Root) forgetRegister(id uint64) { delete(r.registryOwner, id) }

// forceEvaluate implements Module.ForceEvaluateThisClock/NextClock. A
// this-clock request that targets a module already inside the iteration
// currently being drained is dropped: that module already ran (or will
// run again naturally via a wire/register trigger), per the Open Question
// decision in DESIGN.md.
func (r *Root) forceEvaluate(m *Module, nextClock bool) {
	if nextClock {
		m.needsEvalNextClock = true
		return
	}
	if r.currentSnapshot != nil && r.currentSnapshot[m] {
		return
	}
	r.runQueue.add(m)
}

// resetModuleToInstanceState recursively restores every wire and register
// under m to its instance-time (construction-time) value, without
// triggering anything.
func resetModuleToInstanceState(m *Module) {
	for _, w := range m.wires {
		w.resetToInstanceState()
	}
	for _, reg := range m.registers {
		reg.resetToInstanceState()
	}
	for _, c := range m.children {
		resetModuleToInstanceState(c)
	}
}

// ResetToInstanceState restores the entire design under the root to its
// construction-time state and clears scheduler bookkeeping, without
// triggering evaluation. Clocking with identical stimuli after this call
// reproduces an identical trace.
func (r *Root) ResetToInstanceState() {
	resetModuleToInstanceState(&r.Module)
	r.runQueue.clear()
	r.changedWires.clear()
	r.changedRegisters.clear()
	r.clock = 0
	r.endRequested = false
	r.exitCode = ExitNormal
	r.errString = ""
	r.tracingActive = false
}

func triggerAllModules(m *Module, q *orderedSet[*Module]) {
	q.add(m)
	for _, c := range m.children {
		triggerAllModules(c, q)
	}
}

func markNoEval(m *Module) {
	m.evalCalledThisClock = false
	for _, c := range m.children {
		markNoEval(c)
	}
}

func drainForceEvalNextClock(m *Module, q *orderedSet[*Module]) {
	if m.needsEvalNextClock {
		m.needsEvalNextClock = false
		q.add(m)
	}
	for _, c := range m.children {
		drainForceEvalNextClock(c, q)
	}
}

func walkRegisters(m *Module, fn func(*Module, regOps)) {
	for _, reg := range m.registers {
		fn(m, reg)
	}
	for _, c := range m.children {
		walkRegisters(c, fn)
	}
}

func toWireHandles(ws []wireOps) []vcd.WireHandle {
	out := make([]vcd.WireHandle, len(ws))
	for i, w := range ws {
		out[i] = w
	}
	return out
}

func toRegisterHandles(rs []regOps) []vcd.RegisterHandle {
	out := make([]vcd.RegisterHandle, len(rs))
	for i, r := range rs {
		out[i] = r
	}
	return out
}

// Simulate runs the two-phase clock loop until a watchdog fires, a caught
// evaluation panic terminates the run, EndSimulation is called, or the
// cycle limit is reached. Grounded on
// original_source/include/pv_testbench.h's simulation::run.
func (r *Root) Simulate() ExitCode {
	start := time.Now()
	defer func() {
		r.lastRunTime = time.Since(start)
		r.cumulativeRunTime += r.lastRunTime
	}()

	r.openTrace()

	triggerAllModules(&r.Module, r.runQueue)

	var idleCycles uint64
	for {
		r.clock++
		if r.clock > r.limits.CycleLimit {
			r.clock--
			return r.finish(ExitClockLimit, "clock limit exceeded")
		}

		markNoEval(&r.Module)
		drainForceEvalNextClock(&r.Module, r.runQueue)

		if code, msg, done := r.recoveredPhase(r.runPreEdge); done {
			return r.finish(code, msg)
		}

		r.advanceVCDWindow()

		r.posEdgeCommit()

		idle, code, msg, done := r.fixedPointLoop()
		if done {
			return r.finish(code, msg)
		}
		if idle {
			idleCycles++
			if idleCycles >= r.limits.IdleLimit {
				return r.finish(ExitIdleLimit, errors.Wrapf(ErrIdleLimit, "clock %d", r.clock).Error())
			}
		} else {
			idleCycles = 0
		}

		r.negEdgeCommit()

		if !r.trace.isEmpty() {
			rows := r.trace.snapshot()
			if r.traceSink != nil {
				r.traceSink(rows)
			}
		}

		if code, msg, done := r.recoveredPhase(r.runPostEdge); done {
			return r.finish(code, msg)
		}

		if r.endRequested {
			return r.finish(ExitNormal, "")
		}
	}
}

// openTrace emits the header and initial dumpvars/dumpoff block. A failure
// to open the underlying file is a resource error per the error-handling
// design: non-fatal to the simulation, which proceeds untraced.
func (r *Root) openTrace() {
	if r.vcdWriter == nil {
		return
	}
	if err := r.vcdWriter.Definition(r.Module.Handle()); err != nil {
		r.vcdWriter = nil
		return
	}
	if !r.vcdHasStart || r.vcdStartClock == 0 {
		r.tracingActive = true
		_ = r.vcdWriter.DumpVars(r.Module.Handle())
		return
	}
	_ = r.vcdWriter.DumpOff(0, nil)
}

func (r *Root) advanceVCDWindow() {
	if r.vcdWriter == nil {
		return
	}
	if r.vcdHasStart && !r.tracingActive && r.clock == r.vcdStartClock {
		r.tracingActive = true
		_ = r.vcdWriter.DumpOn(r.clock, r.Module.Handle())
	}
	if r.vcdHasStop && r.tracingActive && r.clock == r.vcdStopClock {
		r.tracingActive = false
		_ = r.vcdWriter.DumpOff(r.clock, r.Module.Handle())
	}
}

func (r *Root) runPreEdge() {
	if h, ok := r.self.(PreEdger); ok {
		h.PreEdge()
	}
}

func (r *Root) runPostEdge() {
	if h, ok := r.self.(PostEdger); ok {
		h.PostEdge()
	}
}

// recoveredPhase runs fn with panic recovery: a panicking Evaluate,
// PreEdge or PostEdge terminates the simulation at the current clock with
// ExitRuntimeError rather than propagating out of Simulate, per the
// user-raised error taxonomy.
func (r *Root) recoveredPhase(fn func()) (code ExitCode, msg string, done bool) {
	defer func() {
		if rec := recover(); rec != nil {
			code, msg, done = ExitRuntimeError, errorMessage(rec), true
		}
	}()
	fn()
	return 0, "", false
}

func errorMessage(rec interface{}) string {
	if err, ok := rec.(error); ok {
		return err.Error()
	}
	return errors.Errorf("%v", rec).Error()
}

// posEdgeCommit is the positive edge: every register in the tree commits
// D into Q; each register that changed is added to the changed-registers
// set and its owning module is enqueued for the fixed-point loop. The clk
// signal rises at n*T every traced clock, whether or not any register
// actually changed.
func (r *Root) posEdgeCommit() {
	r.changedRegisters.clear()
	r.trace.setClock(r.clock)
	walkRegisters(&r.Module, func(owner *Module, reg regOps) {
		if reg.posEdge(r.trace) {
			r.changedRegisters.add(reg)
			r.runQueue.add(owner)
		}
	})
	if r.vcdWriter != nil && r.tracingActive {
		_ = r.vcdWriter.Tick(r.clock, 0, true, nil, toRegisterHandles(r.changedRegisters.items()))
	}
}

// fixedPointLoop drains the run queue to quiescence, restoring each
// re-evaluated module's registers first. Returns idle=true if the queue
// was empty on entry (no activity this clock).
func (r *Root) fixedPointLoop() (idle bool, code ExitCode, msg string, done bool) {
	idle = r.runQueue.len() == 0
	var iterations uint64
	for r.runQueue.len() > 0 {
		iterations++
		if iterations > r.limits.IterationLimit {
			return idle, ExitIterationLimit, errors.Wrapf(ErrIterationLimit, "clock %d", r.clock).Error(), true
		}
		snapshot := r.runQueue.snapshot()
		set := make(map[*Module]bool, len(snapshot))
		for _, m := range snapshot {
			set[m] = true
		}
		r.currentSnapshot = set
		for _, m := range snapshot {
			if m.evalCalledThisClock {
				for _, reg := range m.registers {
					reg.restoreReplica()
				}
			}
			m.evalCalledThisClock = true
			if c, mg, dn := r.recoveredPhase(m.evaluate); dn {
				r.currentSnapshot = nil
				return idle, c, mg, dn
			}
		}
		r.currentSnapshot = nil
	}
	return idle, 0, "", false
}

// negEdgeCommit is the negative edge: every changed wire emits its VCD
// change line, then commits V0/X0 <- V/X. Wire writes during evaluation
// never touch V0/X0 directly; this is the only place they change. The clk
// signal falls at n*T + T/2 every traced clock, whether or not any wire
// actually changed.
func (r *Root) negEdgeCommit() {
	changed := r.changedWires.items()
	if r.vcdWriter != nil && r.tracingActive {
		_ = r.vcdWriter.Tick(r.clock, r.vcdWriter.TicksPerClock()/2, false, toWireHandles(changed), nil)
	}
	for _, w := range changed {
		w.negedgeUpdate()
	}
	r.changedWires.clear()
}

func (r *Root) finish(code ExitCode, msg string) ExitCode {
	r.exitCode = code
	r.errString = msg
	if r.vcdWriter != nil {
		if r.tracingActive && r.vcdHasStop {
			_ = r.vcdWriter.DumpOff(r.clock, r.Module.Handle())
		}
		_ = r.vcdWriter.Close()
	}
	return code
}
