package pv

import "github.com/shebanow/pseudo-verilog/vcd"

// RegisterOption configures a Register at construction, mirroring Option[T]
// for wires.
type RegisterOption[T Value] func(*Register[T])

// WithRegisterWidth overrides the register's natural bit width.
func WithRegisterWidth[T Value](w int) RegisterOption[T] {
	return func(r *Register[T]) { r.formatter.SetWidth(w) }
}

// WithRegisterInit sets the instance-time value Di/Qi used by
// ResetToInstanceState.
func WithRegisterInit[T Value](v T) RegisterOption[T] {
	return func(r *Register[T]) {
		r.di = v
		r.xi = false
	}
}

// WithRegisterFormatter installs a custom formatter.
func WithRegisterFormatter[T Value](f vcd.Formatter[T]) RegisterOption[T] {
	return func(r *Register[T]) { r.formatter = f }
}

// WithoutRegisterTrace excludes the register from VCD output and from the
// transition table. Default is traced.
func WithoutRegisterTrace[T Value]() RegisterOption[T] {
	return func(r *Register[T]) { r.traced = false }
}

// Register is a named, typed edge-triggered flip-flop owned by a Module.
// Writes are non-blocking: Assign mutates D; Q is the observable replica,
// updated only by the positive edge. Grounded on
// original_source/include/pv_register.h.
type Register[T Value] struct {
	name  string
	id    uint64
	owner *Module

	d, q   T
	xd, xq bool
	di     T
	xi     bool

	formatter vcd.Formatter[T]
	traced    bool
}

// NewRegister declares a register on owner.
func NewRegister[T Value](owner *Module, name string, opts ...RegisterOption[T]) *Register[T] {
	if owner == nil {
		structuralError("register %q declared outside any module", name)
	}
	r := &Register[T]{
		name:      name,
		owner:     owner,
		formatter: defaultFormatterFor[T](),
		traced:    true,
		xd:        true,
		xq:        true,
		xi:        true,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.d, r.q, r.xd, r.xq = r.di, r.di, r.xi, r.xi
	r.id = owner.root().nextID()
	h := anyRegisterHandle{r}
	owner.addRegister(h)
	owner.root().trackRegister(r.id, owner)
	return r
}

// ID is the root-assigned VCD identifier counter value.
func (r *Register[T]) ID() uint64 { return r.id }

// Name is the register's leaf name.
func (r *Register[T]) Name() string { return r.name }

// Q returns the replica value: the only value observable from outside the
// register, and what every other module sees when it reads this register.
func (r *Register[T]) Q() T { return r.q }

// IsX reports whether Q currently holds the unknown state.
func (r *Register[T]) IsX() bool { return r.xq }

// WillBeX reports whether the pending, as-yet-uncommitted D holds the
// unknown state.
func (r *Register[T]) WillBeX() bool { return r.xd }

// Width returns the configured bit width.
func (r *Register[T]) Width() int { return r.formatter.Width() }

// SetWidth overrides the bit width used when rendering VCD value tokens.
func (r *Register[T]) SetWidth(w int) { r.formatter.SetWidth(w) }

// SetFormatter installs a custom formatter, replacing the default.
func (r *Register[T]) SetFormatter(f vcd.Formatter[T]) { r.formatter = f }

// EnableTrace turns on VCD/trace-table output for this register.
func (r *Register[T]) EnableTrace() { r.traced = true }

// DisableTrace turns off VCD/trace-table output for this register without
// affecting its participation in the positive edge.
func (r *Register[T]) DisableTrace() { r.traced = false }

// Assign is the non-blocking write: it sets D to v. The change only
// becomes observable on Q after the next positive edge.
func (r *Register[T]) Assign(v T) {
	r.d = v
	r.xd = false
}

// AssignX is the non-blocking write of the unknown state to D.
func (r *Register[T]) AssignX() {
	r.xd = true
}

// AssignFromQ writes D from another register's current replica Q,
// carrying its X state along.
func AssignFromQ[T Value](dst *Register[T], src *Register[T]) {
	if src.xq {
		dst.AssignX()
	} else {
		dst.Assign(src.q)
	}
}

// AssignFromD writes dst's D from src's D, preserving an in-flight
// non-blocking write on src rather than src's committed Q.
func AssignFromD[T Value](dst *Register[T], src *Register[T]) {
	if src.xd {
		dst.AssignX()
	} else {
		dst.Assign(src.d)
	}
}

// posEdge is the positive-edge commit: §4.2's algorithm. Returns whether
// this register changed, so the caller (Root.posEdge) can decide whether
// to add it to the changed-registers set and request re-evaluation of the
// owning module.
func (r *Register[T]) posEdge(trace *traceTable) bool {
	changed := r.xq != r.xd || (!r.xd && r.q != r.d)
	if changed && r.traced && trace != nil {
		trace.record(r.id, r.name, r.formatTokenFor(r.xq, r.q), r.formatTokenFor(r.xd, r.d))
	}
	r.q, r.xq = r.d, r.xd
	return changed
}

func (r *Register[T]) formatTokenFor(isX bool, v T) string {
	if isX {
		return r.formatter.Undefined()
	}
	return r.formatter.String(v)
}

// restoreReplica is the rollback operation: when a module is re-evaluated
// within the same clock's fixed-point loop, its registers must forget the
// speculative D from the earlier evaluation before the new pass writes D
// again.
func (r *Register[T]) restoreReplica() {
	r.d, r.xd = r.q, r.xq
}

// resetToInstanceState restores Di/Xi into D, Q, Xd, Xq.
func (r *Register[T]) resetToInstanceState() {
	r.d, r.q = r.di, r.di
	r.xd, r.xq = r.xi, r.xi
}

// ValueToken renders the register's replica (Q) as a VCD token, honoring X.
// The VCD trace observes Q, never the in-flight D.
func (r *Register[T]) ValueToken() string {
	return r.formatTokenFor(r.xq, r.q)
}

// UndefinedToken renders this register's X token unconditionally,
// regardless of Q's current state. Used by DumpOff to force every traced
// signal to X in the stream without disturbing the register's own state.
func (r *Register[T]) UndefinedToken() string { return r.formatter.Undefined() }

// IsTraced reports whether this register is emitted to the VCD stream and
// the trace table.
func (r *Register[T]) IsTraced() bool { return r.traced }

// anyRegisterHandle adapts a *Register[T] to vcd.RegisterHandle and to the
// root's type-erased changed-registers bookkeeping and posedge walk.
type anyRegisterHandle struct {
	r interface {
		ID() uint64
		Name() string
		Width() int
		ValueToken() string
		UndefinedToken() string
		IsTraced() bool
		posEdge(*traceTable) bool
		restoreReplica()
		resetToInstanceState()
	}
}

func (h anyRegisterHandle) ID() uint64             { return h.r.ID() }
func (h anyRegisterHandle) Name() string           { return h.r.Name() }
func (h anyRegisterHandle) Width() int             { return h.r.Width() }
func (h anyRegisterHandle) ValueToken() string     { return h.r.ValueToken() }
func (h anyRegisterHandle) UndefinedToken() string { return h.r.UndefinedToken() }
func (h anyRegisterHandle) IsTraced() bool         { return h.r.IsTraced() }
func (h anyRegisterHandle) posEdge(t *traceTable) bool { return h.r.posEdge(t) }
func (h anyRegisterHandle) restoreReplica()            { h.r.restoreReplica() }
func (h anyRegisterHandle) resetToInstanceState()      { h.r.resetToInstanceState() }

var _ vcd.RegisterHandle = anyRegisterHandle{}
