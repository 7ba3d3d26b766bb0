package pv

import "github.com/shebanow/pseudo-verilog/vcd"

// Evaluator is the one required override: combinational behavior run
// whenever the module is (re-)scheduled. Implementations read Inputs and
// Wires, write Wires and Register.D, and may call Module.ForceEvaluateThisClock
// / ForceEvaluateNextClock.
type Evaluator interface {
	Evaluate()
}

// PreEdger is an optional hook run once per clock, before the positive
// edge. Only meaningful on the Root; other modules may implement it but it
// is never called directly by the scheduler.
type PreEdger interface {
	PreEdge()
}

// PostEdger is an optional hook run once per clock, after the negative
// edge settles.
type PostEdger interface {
	PostEdge()
}

// wireOps is the scheduler's private view of a wire: the public
// vcd.WireHandle capability plus the two operations only the root ever
// calls. Keeping these off vcd.WireHandle itself is what lets package vcd
// stay ignorant of pv (§9's "shared capability set, typed operations stay
// on the typed variant" design).
type wireOps interface {
	vcd.WireHandle
	negedgeUpdate()
	resetToInstanceState()
}

// regOps is the equivalent private view of a register.
type regOps interface {
	vcd.RegisterHandle
	posEdge(*traceTable) bool
	restoreReplica()
	resetToInstanceState()
}

// Module is a named node in the design tree: a container of child modules,
// wires and registers, plus the bookkeeping the scheduler needs to drive
// it. Embed Module in a user type and implement Evaluate to define
// combinational behavior. Grounded on original_source/include/pv_module.h.
type Module struct {
	name    string
	parent  *Module
	rootMod *Root

	self Evaluator

	children  []*Module
	wires     []wireOps
	registers []regOps

	evalCalledThisClock bool
	needsEvalNextClock  bool
}

// NewModule constructs a Module named name, attached to parent. self must
// be the embedding type (the Evaluator implementation); this is the "self
// back-pointer" idiom standing in for C++ virtual dispatch through
// composition, since a Module embedded by value has no way to observe
// which concrete type wraps it.
//
// parent == nil panics with a structural error; use NewRoot for the top of
// a design.
func NewModule(parent *Module, name string, self Evaluator) *Module {
	if parent == nil {
		structuralError("NewModule called with a nil parent; use NewRoot for the top module")
	}
	m := &Module{name: name, parent: parent, self: self, rootMod: parent.rootMod}
	parent.children = append(parent.children, m)
	return m
}

// Name is the module's leaf name.
func (m *Module) Name() string { return m.name }

// HierarchicalName is the leaf name prefixed by every ancestor's name,
// joined with ".", matching the original library's full instance path.
func (m *Module) HierarchicalName() string {
	if m.parent == nil {
		return m.name
	}
	return m.parent.HierarchicalName() + "." + m.name
}

// Parent returns the owning module, or nil for the root.
func (m *Module) Parent() *Module { return m.parent }

// Root returns the simulation's top-level Root.
func (m *Module) Root() *Root { return m.rootMod }

func (m *Module) root() *Root { return m.rootMod }

// Children returns the module's direct children, in construction order.
func (m *Module) Children() []*Module {
	out := make([]*Module, len(m.children))
	copy(out, m.children)
	return out
}

// Wires returns the module's directly owned wires, in construction order;
// it backs vcd.ModuleHandle.Wires on the adapter returned by Handle.
func (m *Module) Wires() []vcd.WireHandle {
	out := make([]vcd.WireHandle, len(m.wires))
	for i, w := range m.wires {
		out[i] = w
	}
	return out
}

// Registers returns the module's directly owned registers, in construction
// order; it backs vcd.ModuleHandle.Registers on the adapter returned by
// Handle.
func (m *Module) Registers() []vcd.RegisterHandle {
	out := make([]vcd.RegisterHandle, len(m.registers))
	for i, r := range m.registers {
		out[i] = r
	}
	return out
}

// ModuleChildren adapts Children to []vcd.ModuleHandle; it backs
// vcd.ModuleHandle.Children on the adapter returned by Handle.
func (m *Module) ModuleChildren() []vcd.ModuleHandle {
	out := make([]vcd.ModuleHandle, len(m.children))
	for i, c := range m.children {
		out[i] = moduleHandleAdapter{c}
	}
	return out
}

// Handle adapts m to vcd.ModuleHandle for passing to a vcd.Writer.
func (m *Module) Handle() vcd.ModuleHandle { return moduleHandleAdapter{m} }

func (m *Module) addWire(w wireOps)     { m.wires = append(m.wires, w) }
func (m *Module) addRegister(r regOps)  { m.registers = append(m.registers, r) }

// ForceEvaluateThisClock immediately enqueues the module for another pass
// of the current clock's fixed-point loop. Per the Open Question decision
// in DESIGN.md, this is a no-op if the module is already part of the
// iteration snapshot currently being evaluated.
func (m *Module) ForceEvaluateThisClock() {
	m.rootMod.forceEvaluate(m, false)
}

// ForceEvaluateNextClock latches a flag drained at the start of the next
// clock, enqueuing the module once that clock's positive edge has
// committed.
func (m *Module) ForceEvaluateNextClock() {
	m.rootMod.forceEvaluate(m, true)
}

// evaluate invokes the user's Evaluate through the self back-pointer.
func (m *Module) evaluate() { m.self.Evaluate() }

// detach removes m from its parent's child collection. It first detaches
// every child (recursively), per the destruction-ordering Open Question
// decision in DESIGN.md: children first, then this module's own registers
// drop out of the root's register-owner bookkeeping (registryOwner), then
// the module detaches from its parent.
func (m *Module) detach() {
	// Each child removes itself from m.children, so iterate over a copy.
	children := append([]*Module(nil), m.children...)
	for _, c := range children {
		c.detach()
	}
	for _, r := range m.registers {
		m.rootMod.forgetRegister(r.ID())
	}
	if m.parent == nil {
		return
	}
	siblings := m.parent.children
	for i, c := range siblings {
		if c == m {
			m.parent.children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
}

// Close removes the module and its entire subtree from the design:
// children are torn down first, each register forgets the root's
// id-to-owner bookkeeping, then the module detaches from its parent. Wires
// and registers already committed to a VCD stream remain in whatever was
// already written; Close only affects future clocks. The root module has
// no parent and cannot be closed.
func (m *Module) Close() {
	if m.parent == nil {
		structuralError("the root module cannot be closed")
	}
	m.detach()
}

var _ vcd.ModuleHandle = moduleHandleAdapter{}

// moduleHandleAdapter exists solely so Module satisfies vcd.ModuleHandle's
// Children() []vcd.ModuleHandle signature without Module.Children itself
// losing its more specific []*Module return type, which the rest of this
// package depends on.
type moduleHandleAdapter struct{ m *Module }

func (a moduleHandleAdapter) Name() string                    { return a.m.Name() }
func (a moduleHandleAdapter) Wires() []vcd.WireHandle          { return a.m.Wires() }
func (a moduleHandleAdapter) Registers() []vcd.RegisterHandle { return a.m.Registers() }
func (a moduleHandleAdapter) Children() []vcd.ModuleHandle     { return a.m.ModuleChildren() }
