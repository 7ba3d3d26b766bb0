package pv

import (
	"math"
	"reflect"
	"strings"

	"github.com/shebanow/pseudo-verilog/vcd"
)

// Kind distinguishes the four wire sensitization policies from §3/§4.1.
type Kind int

const (
	// KindInput sensitizes its own owning module on change.
	KindInput Kind = iota
	// KindWire (an internal combinational signal) sensitizes its own
	// owning module on change, same as Input.
	KindWire
	// KindQWire is visible in the trace but never retriggers anything.
	KindQWire
	// KindOutput sensitizes the owning module's parent. Forbidden on the
	// root module, which has no parent to notify.
	KindOutput
)

// Option configures a Wire at construction. Go has no overloaded
// constructors, so the original library's multiple per-kind constructors
// are realized here as functional options over one constructor per Kind.
type Option[T Value] func(*Wire[T])

// WithWidth overrides the wire's natural bit width (vcd.BitWidth[T]()).
func WithWidth[T Value](w int) Option[T] {
	return func(wire *Wire[T]) { wire.formatter.SetWidth(w) }
}

// WithInit sets the instance-time value Vi used by ResetToInstanceState.
// The wire starts in this concrete (non-X) state.
func WithInit[T Value](v T) Option[T] {
	return func(wire *Wire[T]) {
		wire.vi = v
		wire.xi = false
	}
}

// WithFormatter installs a custom vcd.Formatter[T] in place of the default
// bit-pattern formatter.
func WithFormatter[T Value](f vcd.Formatter[T]) Option[T] {
	return func(wire *Wire[T]) { wire.formatter = f }
}

// WithoutTrace excludes the wire from VCD output entirely, while it still
// participates in sensitization. Default is traced.
func WithoutTrace[T Value]() Option[T] {
	return func(wire *Wire[T]) { wire.traced = false }
}

// Wire is a named, typed combinational signal owned by a Module. See §3 and
// §4.1 for the field-level semantics this type realizes.
type Wire[T Value] struct {
	name      string
	id        uint64
	kind      Kind
	owner     *Module
	sensitize *Module

	v, v0   T
	x, x0   bool
	vi      T
	xi      bool

	formatter vcd.Formatter[T]
	traced    bool
}

// defaultFormatterFor builds the fallback Formatter installed on every
// Wire/Register unless WithFormatter overrides it. It goes through
// reflect rather than a type switch on T directly because T is commonly a
// *named* type over a builtin kind (an enum such as a traffic-light Color,
// or a domain-specific bus type) and a type switch only matches exact types;
// vcd.NewDefaultFormatter's ~int-style type set constraint has the same
// limitation when called generically from code that only knows T
// satisfies Value. Reflect's Kind() sees through the named type to its
// underlying representation, which is what the VCD bit pattern is defined
// over anyway.
func defaultFormatterFor[T Value]() vcd.Formatter[T] {
	return &reflectFormatter[T]{width: vcd.BitWidth[T]()}
}

type reflectFormatter[T Value] struct{ width int }

func (f *reflectFormatter[T]) Width() int     { return f.width }
func (f *reflectFormatter[T]) SetWidth(w int) { f.width = w }

func (f *reflectFormatter[T]) Undefined() string {
	if f.width <= 1 {
		return "x"
	}
	return "b" + strings.Repeat("x", f.width)
}

func (f *reflectFormatter[T]) String(v T) string {
	rv := reflect.ValueOf(v)
	var bits uint64
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			bits = 1
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		bits = uint64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		bits = rv.Uint()
	case reflect.Float32:
		bits = uint64(math.Float32bits(float32(rv.Float())))
	case reflect.Float64:
		bits = math.Float64bits(rv.Float())
	default:
		panic("pv: no default Formatter for type " + rv.Type().String() + "; supply one with WithFormatter")
	}
	if f.width <= 1 {
		if bits&1 != 0 {
			return "1"
		}
		return "0"
	}
	var b strings.Builder
	b.WriteByte('b')
	for i := f.width - 1; i >= 0; i-- {
		if (bits>>uint(i))&1 != 0 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

func newWire[T Value](owner *Module, kind Kind, name string, opts ...Option[T]) *Wire[T] {
	if owner == nil {
		structuralError("wire %q declared outside any module", name)
	}
	if kind == KindOutput && owner.parent == nil {
		structuralError("output wire %q declared on the root module", name)
	}
	w := &Wire[T]{
		name:      name,
		kind:      kind,
		owner:     owner,
		formatter: defaultFormatterFor[T](),
		traced:    true,
		x:         true,
		x0:        true,
		xi:        true,
	}
	switch kind {
	case KindInput, KindWire:
		w.sensitize = owner
	case KindOutput:
		w.sensitize = owner.parent
	case KindQWire:
		w.sensitize = nil
	}
	for _, opt := range opts {
		opt(w)
	}
	w.v, w.v0, w.x, w.x0 = w.vi, w.vi, w.xi, w.xi
	w.id = owner.root().nextID()
	owner.addWire(anyWireHandle{w})
	return w
}

// NewInput declares an input wire on owner: a combinational signal that
// sensitizes owner when it changes.
func NewInput[T Value](owner *Module, name string, opts ...Option[T]) *Wire[T] {
	return newWire(owner, KindInput, name, opts...)
}

// NewWire declares an internal combinational wire on owner.
func NewWire[T Value](owner *Module, name string, opts ...Option[T]) *Wire[T] {
	return newWire(owner, KindWire, name, opts...)
}

// NewQWire declares a quiet wire: traced in the VCD stream but never
// sensitizes any module.
func NewQWire[T Value](owner *Module, name string, opts ...Option[T]) *Wire[T] {
	return newWire(owner, KindQWire, name, opts...)
}

// NewOutput declares an output wire: changes sensitize owner's parent, not
// owner itself. Panics if owner is the root (no parent to notify).
func NewOutput[T Value](owner *Module, name string, opts ...Option[T]) *Wire[T] {
	return newWire(owner, KindOutput, name, opts...)
}

// ID is the root-assigned VCD identifier counter value.
func (w *Wire[T]) ID() uint64 { return w.id }

// Name is the wire's leaf name as given at construction.
func (w *Wire[T]) Name() string { return w.name }

// Get returns the wire's current value V. Its validity when IsX is true is
// unspecified; callers concerned with X should check IsX first.
func (w *Wire[T]) Get() T { return w.v }

// IsX reports whether the wire currently holds the unknown state.
func (w *Wire[T]) IsX() bool { return w.x }

// WasX reports whether the wire held the unknown state at the start of the
// current clock (X0).
func (w *Wire[T]) WasX() bool { return w.x0 }

// Width returns the configured bit width.
func (w *Wire[T]) Width() int { return w.formatter.Width() }

// SetWidth overrides the bit width used when rendering VCD value tokens.
func (w *Wire[T]) SetWidth(width int) { w.formatter.SetWidth(width) }

// SetFormatter installs a custom formatter, replacing the default.
func (w *Wire[T]) SetFormatter(f vcd.Formatter[T]) { w.formatter = f }

// Set assigns a concrete value. Two independent booleans drive the
// bookkeeping: whether the wire now differs from its value at the start
// of the clock (membership in changed-wires, which feeds the VCD
// emitter), and whether it differs from what it held an instant ago
// (whether to retrigger the sensitized module). They coincide for a
// wire's first write in a clock but diverge on a second write within the
// same evaluation, which is the point of carrying both.
func (w *Wire[T]) Set(v T) {
	trigger := w.x || v != w.v
	inChangedSet := w.x0 || v != w.v0
	w.applyChangeBookkeeping(inChangedSet, trigger)
	w.x = false
	w.v = v
}

// SetX assigns the unknown state. Per the Open Question decision recorded
// in DESIGN.md, a transition into X from a concrete (non-X) state is
// treated as a change for triggering purposes.
func (w *Wire[T]) SetX() {
	trigger := !w.x
	inChangedSet := !w.x0
	w.applyChangeBookkeeping(inChangedSet, trigger)
	w.x = true
}

// AssignFrom copies another wire's value and X state, as if by `a = b` in
// the original library where assignment between wires carries X along.
func AssignFrom[T Value](dst, src *Wire[T]) {
	if src.x {
		dst.SetX()
	} else {
		dst.Set(src.v)
	}
}

func (w *Wire[T]) applyChangeBookkeeping(inChangedSet, trigger bool) {
	root := w.owner.root()
	if inChangedSet {
		root.changedWires.add(anyWireHandle{w})
	} else {
		root.changedWires.remove(anyWireHandle{w})
	}
	if trigger && w.sensitize != nil {
		root.enqueue(w.sensitize)
	}
}

// negedgeUpdate commits V0/X0 <- V/X. Called by the root once per changed
// wire at the negative edge; it is the only place these fields change.
func (w *Wire[T]) negedgeUpdate() {
	w.v0 = w.v
	w.x0 = w.x
}

// resetToInstanceState restores Vi/Xi into V, V0, X, X0 without
// triggering any module, per §4.1.
func (w *Wire[T]) resetToInstanceState() {
	w.v, w.v0 = w.vi, w.vi
	w.x, w.x0 = w.xi, w.xi
}

// ValueToken renders the wire's current value as a VCD token, honoring X.
func (w *Wire[T]) ValueToken() string {
	if w.x {
		return w.formatter.Undefined()
	}
	return w.formatter.String(w.v)
}

// UndefinedToken renders this wire's X token unconditionally, regardless
// of its current value. Used by DumpOff to force every traced signal to
// X in the stream without disturbing the wire's actual state.
func (w *Wire[T]) UndefinedToken() string { return w.formatter.Undefined() }

// IsTraced reports whether this wire is emitted to the VCD stream.
func (w *Wire[T]) IsTraced() bool { return w.traced }

// anyWireHandle adapts a *Wire[T] to vcd.WireHandle and to the root's
// type-erased changed-wires/run-queue bookkeeping, avoiding a type
// parameter on Module, Root and orderedSet.
type anyWireHandle struct {
	w interface {
		ID() uint64
		Name() string
		Width() int
		ValueToken() string
		UndefinedToken() string
		IsTraced() bool
		negedgeUpdate()
		resetToInstanceState()
	}
}

func (h anyWireHandle) ID() uint64             { return h.w.ID() }
func (h anyWireHandle) Name() string           { return h.w.Name() }
func (h anyWireHandle) Width() int             { return h.w.Width() }
func (h anyWireHandle) ValueToken() string     { return h.w.ValueToken() }
func (h anyWireHandle) UndefinedToken() string { return h.w.UndefinedToken() }
func (h anyWireHandle) IsTraced() bool         { return h.w.IsTraced() }
func (h anyWireHandle) negedgeUpdate()         { h.w.negedgeUpdate() }
func (h anyWireHandle) resetToInstanceState()  { h.w.resetToInstanceState() }

var _ vcd.WireHandle = anyWireHandle{}

// The in-place arithmetic helpers below are free functions rather than
// methods because Go has no operator overloading (see value.go); each
// funnels through Set so the change/trigger computation never gets
// bypassed, per §9's requirement.

func AddAssign[T Numeric](w *Wire[T], rhs T) { w.Set(w.Get() + rhs) }
func SubAssign[T Numeric](w *Wire[T], rhs T) { w.Set(w.Get() - rhs) }
func MulAssign[T Numeric](w *Wire[T], rhs T) { w.Set(w.Get() * rhs) }
func DivAssign[T Numeric](w *Wire[T], rhs T) { w.Set(w.Get() / rhs) }

func ModAssign[T Integer](w *Wire[T], rhs T) { w.Set(w.Get() % rhs) }
func XorAssign[T Integer](w *Wire[T], rhs T) { w.Set(w.Get() ^ rhs) }
func AndAssign[T Integer](w *Wire[T], rhs T) { w.Set(w.Get() & rhs) }
func OrAssign[T Integer](w *Wire[T], rhs T)  { w.Set(w.Get() | rhs) }
func ShlAssign[T Integer](w *Wire[T], n uint) { w.Set(w.Get() << n) }
func ShrAssign[T Integer](w *Wire[T], n uint) { w.Set(w.Get() >> n) }

// PreIncr increments w then returns the new value, mirroring ++w.
func PreIncr[T Numeric](w *Wire[T]) T {
	w.Set(w.Get() + 1)
	return w.Get()
}

// PostIncr returns the pre-increment value then increments w, mirroring
// w++: per §9, post-increment returns the prior value by value while the
// wire itself is mutated by reference.
func PostIncr[T Numeric](w *Wire[T]) T {
	old := w.Get()
	w.Set(old + 1)
	return old
}

// PreDecr decrements w then returns the new value, mirroring --w.
func PreDecr[T Numeric](w *Wire[T]) T {
	w.Set(w.Get() - 1)
	return w.Get()
}

// PostDecr returns the pre-decrement value then decrements w, mirroring
// w--.
func PostDecr[T Numeric](w *Wire[T]) T {
	old := w.Get()
	w.Set(old - 1)
	return old
}

// idCounter is the root's monotonically increasing VCD identifier source,
// shared by wires and registers. Scheduling is single-threaded (a simulation
// never evaluates two modules concurrently), so a plain counter suffices;
// it lives on the Root instance rather than as process-wide state, per §9's
// requirement that independent simulations not interfere with each other.
type idCounter struct{ n uint64 }

func (c *idCounter) next() uint64 {
	c.n++
	return c.n
}
