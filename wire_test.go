package pv

import "testing"

type fixtureEvaluator struct{ calls int }

func (e *fixtureEvaluator) Evaluate() { e.calls++ }

func newFixtureModule(parent *Module, name string) (*Module, *fixtureEvaluator) {
	e := &fixtureEvaluator{}
	return NewModule(parent, name, e), e
}

func newFixtureRoot(name string) (*Root, *fixtureEvaluator) {
	e := &fixtureEvaluator{}
	return NewRoot(name, e), e
}

func TestWireDefaultsToX(t *testing.T) {
	root, _ := newFixtureRoot("top")
	w := NewWire[uint32](root.AsModule(), "w")
	if !w.IsX() || !w.WasX() {
		t.Fatalf("new wire should start as X, got IsX=%v WasX=%v", w.IsX(), w.WasX())
	}
}

func TestWireSetClearsXAndSensitizesOwner(t *testing.T) {
	root, _ := newFixtureRoot("top")
	child, eval := newFixtureModule(root.AsModule(), "child")
	w := NewWire[uint32](child, "w")

	w.Set(7)
	if w.IsX() {
		t.Fatal("Set should clear X")
	}
	if w.Get() != 7 {
		t.Fatalf("Get() = %d, want 7", w.Get())
	}
	if !root.runQueue.has(child) {
		t.Fatal("setting an input/wire should enqueue its owner")
	}
	_ = eval
}

func TestWireSetXFromXIsNotATrigger(t *testing.T) {
	root, _ := newFixtureRoot("top")
	child, _ := newFixtureModule(root.AsModule(), "child")
	w := NewWire[uint32](child, "w")
	root.runQueue.clear()

	w.SetX()
	if root.runQueue.has(child) {
		t.Fatal("X-to-X should not retrigger the owner")
	}
}

func TestWireOutputSensitizesParentNotOwner(t *testing.T) {
	root, _ := newFixtureRoot("top")
	child, _ := newFixtureModule(root.AsModule(), "child")
	out := NewOutput[uint32](child, "o")
	root.runQueue.clear()

	out.Set(1)
	if root.runQueue.has(child) {
		t.Fatal("output should not sensitize its own owner")
	}
	if !root.runQueue.has(root.AsModule()) {
		t.Fatal("output should sensitize its owner's parent")
	}
}

func TestNewOutputOnRootPanics(t *testing.T) {
	root, _ := newFixtureRoot("top")
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic declaring an output on the root module")
		}
	}()
	NewOutput[uint32](root.AsModule(), "bad")
}

func TestQWireNeverSensitizes(t *testing.T) {
	root, _ := newFixtureRoot("top")
	child, _ := newFixtureModule(root.AsModule(), "child")
	q := NewQWire[uint32](child, "q")
	root.runQueue.clear()

	q.Set(3)
	if root.runQueue.len() != 0 {
		t.Fatal("a QWire write must never enqueue anything")
	}
}

func TestWireChangedSetTracksClockStartValue(t *testing.T) {
	root, _ := newFixtureRoot("top")
	child, _ := newFixtureModule(root.AsModule(), "child")
	w := NewWire[uint32](child, "w", WithInit[uint32](5))
	root.changedWires.clear()

	// A write back to the clock-start value must drop out of the
	// changed set even though it still differs from the prior write.
	w.Set(9)
	if !root.changedWires.has(anyWireHandle{w}) {
		t.Fatal("writing a new value should enter the changed-wires set")
	}
	w.Set(5)
	if root.changedWires.has(anyWireHandle{w}) {
		t.Fatal("writing back the clock-start value should leave the changed-wires set")
	}
}

func TestWireTriggerUsesCurrentNotClockStartValue(t *testing.T) {
	root, _ := newFixtureRoot("top")
	child, _ := newFixtureModule(root.AsModule(), "child")
	w := NewWire[uint32](child, "w", WithInit[uint32](5))
	w.Set(9)
	root.runQueue.clear()

	// Writing the same value again must not retrigger the owner, even
	// though it's still in the changed-wires set relative to clock start.
	w.Set(9)
	if root.runQueue.has(child) {
		t.Fatal("writing the same value twice should not retrigger the owner")
	}
}

// testEnum is a named type over int, standing in for a domain enum such as
// a traffic-light Color: it exercises defaultFormatterFor's reflect-based
// fallback, which must see through the named type to the underlying kind.
type testEnum int

const (
	testEnumA testEnum = iota
	testEnumB
	testEnumC
)

func TestWireWithWidthOverridesFormatterWidth(t *testing.T) {
	root, _ := newFixtureRoot("top")
	w := NewWire[testEnum](root.AsModule(), "c", WithWidth[testEnum](2))
	if w.Width() != 2 {
		t.Fatalf("Width() = %d, want 2", w.Width())
	}
	w.Set(testEnumC)
	if tok := w.ValueToken(); tok != "b10" {
		t.Fatalf("ValueToken() = %q, want %q", tok, "b10")
	}
}

func TestWireValueTokenUndefinedWhileX(t *testing.T) {
	root, _ := newFixtureRoot("top")
	w := NewWire[bool](root.AsModule(), "b")
	if tok := w.ValueToken(); tok != "x" {
		t.Fatalf("ValueToken() on a fresh bool wire = %q, want %q", tok, "x")
	}
}

func TestAssignFromCarriesX(t *testing.T) {
	root, _ := newFixtureRoot("top")
	a := NewWire[uint32](root.AsModule(), "a")
	b := NewWire[uint32](root.AsModule(), "b", WithInit[uint32](1))
	AssignFrom(a, b)
	if a.IsX() {
		t.Fatal("AssignFrom should clear X once the source is concrete")
	}
	if a.Get() != 1 {
		t.Fatalf("Get() = %d, want 1", a.Get())
	}

	b.SetX()
	AssignFrom(a, b)
	if !a.IsX() {
		t.Fatal("AssignFrom should carry X from an X source")
	}
}

func TestOpAssignHelpersRoundTripThroughSet(t *testing.T) {
	root, _ := newFixtureRoot("top")
	w := NewWire[uint32](root.AsModule(), "w", WithInit[uint32](10))

	AddAssign(w, 5)
	if w.Get() != 15 {
		t.Fatalf("AddAssign: Get() = %d, want 15", w.Get())
	}
	SubAssign(w, 3)
	if w.Get() != 12 {
		t.Fatalf("SubAssign: Get() = %d, want 12", w.Get())
	}
	if got := PostIncr(w); got != 12 {
		t.Fatalf("PostIncr returned %d, want old value 12", got)
	}
	if w.Get() != 13 {
		t.Fatalf("after PostIncr, Get() = %d, want 13", w.Get())
	}
	if got := PreIncr(w); got != 14 {
		t.Fatalf("PreIncr returned %d, want new value 14", got)
	}
}

func TestResetToInstanceStateRestoresInit(t *testing.T) {
	root, _ := newFixtureRoot("top")
	w := NewWire[uint32](root.AsModule(), "w", WithInit[uint32](42))
	w.Set(99)
	w.negedgeUpdate()
	w.resetToInstanceState()
	if w.Get() != 42 || w.IsX() || w.WasX() {
		t.Fatalf("resetToInstanceState: Get()=%d IsX=%v WasX=%v, want 42/false/false", w.Get(), w.IsX(), w.WasX())
	}
}
