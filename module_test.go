package pv

import "testing"

func TestHierarchicalName(t *testing.T) {
	root, _ := newFixtureRoot("top")
	child, _ := newFixtureModule(root.AsModule(), "child")
	grandchild, _ := newFixtureModule(child, "leaf")

	if got := grandchild.HierarchicalName(); got != "top.child.leaf" {
		t.Fatalf("HierarchicalName() = %q, want %q", got, "top.child.leaf")
	}
}

func TestNewModuleWithNilParentPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic constructing a Module with a nil parent")
		}
	}()
	NewModule(nil, "orphan", &fixtureEvaluator{})
}

func TestModuleCloseRemovesFromParentAndForgetsRegisters(t *testing.T) {
	root, _ := newFixtureRoot("top")
	child, _ := newFixtureModule(root.AsModule(), "child")
	reg := NewRegister[uint32](child, "r")

	if len(root.AsModule().Children()) != 1 {
		t.Fatalf("expected 1 child before Close, got %d", len(root.AsModule().Children()))
	}
	if _, ok := root.registryOwner[reg.ID()]; !ok {
		t.Fatal("expected the register to be tracked before Close")
	}

	child.Close()

	if len(root.AsModule().Children()) != 0 {
		t.Fatalf("expected 0 children after Close, got %d", len(root.AsModule().Children()))
	}
	if _, ok := root.registryOwner[reg.ID()]; ok {
		t.Fatal("Close should forget the closed subtree's registers")
	}
}

func TestModuleCloseOnRootPanics(t *testing.T) {
	root, _ := newFixtureRoot("top")
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic closing the root module")
		}
	}()
	root.AsModule().Close()
}

func TestModuleCloseTearsDownChildrenFirst(t *testing.T) {
	root, _ := newFixtureRoot("top")
	child, _ := newFixtureModule(root.AsModule(), "child")
	grandchild, _ := newFixtureModule(child, "leaf")
	reg := NewRegister[uint32](grandchild, "r")

	child.Close()

	if _, ok := root.registryOwner[reg.ID()]; ok {
		t.Fatal("Close should recursively forget registers owned by nested descendants")
	}
}

func TestWiresAndRegistersReflectConstructionOrder(t *testing.T) {
	root, _ := newFixtureRoot("top")
	child, _ := newFixtureModule(root.AsModule(), "child")
	a := NewWire[uint32](child, "a")
	b := NewWire[uint32](child, "b")

	wires := child.Wires()
	if len(wires) != 2 || wires[0].ID() != a.ID() || wires[1].ID() != b.ID() {
		t.Fatalf("Wires() did not preserve construction order: %+v", wires)
	}

	r1 := NewRegister[uint32](child, "r1")
	r2 := NewRegister[uint32](child, "r2")
	regs := child.Registers()
	if len(regs) != 2 || regs[0].ID() != r1.ID() || regs[1].ID() != r2.ID() {
		t.Fatalf("Registers() did not preserve construction order: %+v", regs)
	}
}
