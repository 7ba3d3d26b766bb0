package pv

import "testing"

func TestRegisterAssignIsNonBlocking(t *testing.T) {
	root, _ := newFixtureRoot("top")
	r := NewRegister[uint32](root.AsModule(), "r", WithRegisterInit[uint32](1))

	r.Assign(5)
	if r.Q() != 1 {
		t.Fatalf("Assign must not affect Q before posEdge; Q() = %d, want 1", r.Q())
	}
	changed := r.posEdge(nil)
	if !changed {
		t.Fatal("posEdge should report a change when D != Q")
	}
	if r.Q() != 5 {
		t.Fatalf("after posEdge, Q() = %d, want 5", r.Q())
	}
}

func TestRegisterPosEdgeNoChangeWhenDEqualsQ(t *testing.T) {
	root, _ := newFixtureRoot("top")
	r := NewRegister[uint32](root.AsModule(), "r", WithRegisterInit[uint32](3))
	r.Assign(3)
	if r.posEdge(nil) {
		t.Fatal("posEdge should report no change when D equals Q and neither is X")
	}
}

func TestRegisterXToXIsNotAChange(t *testing.T) {
	root, _ := newFixtureRoot("top")
	r := NewRegister[uint32](root.AsModule(), "r")
	if !r.IsX() {
		t.Fatal("a register with no WithRegisterInit should start X")
	}
	r.AssignX()
	if r.posEdge(nil) {
		t.Fatal("X staying X across posEdge should not be a change")
	}
}

func TestRegisterXToConcreteIsAChange(t *testing.T) {
	root, _ := newFixtureRoot("top")
	r := NewRegister[uint32](root.AsModule(), "r")
	r.Assign(4)
	if !r.posEdge(nil) {
		t.Fatal("X to a concrete value should be a change")
	}
	if r.IsX() || r.Q() != 4 {
		t.Fatalf("after posEdge: IsX=%v Q=%d, want false/4", r.IsX(), r.Q())
	}
}

func TestRegisterRestoreReplicaDiscardsSpeculativeD(t *testing.T) {
	root, _ := newFixtureRoot("top")
	r := NewRegister[uint32](root.AsModule(), "r", WithRegisterInit[uint32](7))
	r.Assign(100)
	r.restoreReplica()
	if r.WillBeX() {
		t.Fatal("restoreReplica should leave D concrete when Q was concrete")
	}
	if changed := r.posEdge(nil); changed {
		t.Fatal("after restoreReplica, D should equal Q, so posEdge reports no change")
	}
}

func TestAssignFromQCarriesReplicaNotInFlightD(t *testing.T) {
	root, _ := newFixtureRoot("top")
	src := NewRegister[uint32](root.AsModule(), "src", WithRegisterInit[uint32](2))
	dst := NewRegister[uint32](root.AsModule(), "dst")

	src.Assign(999) // in-flight D, not yet committed to Q
	AssignFromQ(dst, src)
	dst.posEdge(nil)
	if dst.Q() != 2 {
		t.Fatalf("AssignFromQ should read src's Q (2), got %d", dst.Q())
	}
}

func TestAssignFromDCarriesInFlightWrite(t *testing.T) {
	root, _ := newFixtureRoot("top")
	src := NewRegister[uint32](root.AsModule(), "src", WithRegisterInit[uint32](2))
	dst := NewRegister[uint32](root.AsModule(), "dst")

	src.Assign(999)
	AssignFromD(dst, src)
	dst.posEdge(nil)
	if dst.Q() != 999 {
		t.Fatalf("AssignFromD should read src's D (999), got %d", dst.Q())
	}
}

func TestRegisterTraceRecordsOldAndNewTokens(t *testing.T) {
	root, _ := newFixtureRoot("top")
	r := NewRegister[uint32](root.AsModule(), "timer", WithRegisterInit[uint32](0), WithRegisterWidth[uint32](8))
	r.Assign(5)

	tt := newTraceTable()
	tt.setClock(1)
	if !r.posEdge(tt) {
		t.Fatal("expected a change")
	}
	rows := tt.snapshot()
	if len(rows) != 1 {
		t.Fatalf("expected 1 trace row, got %d", len(rows))
	}
	row := rows[0]
	if row.Name != "timer" || row.Clock != 1 {
		t.Fatalf("row = %+v, want Name=timer Clock=1", row)
	}
	if row.Start != "b00000000" {
		t.Fatalf("row.Start = %q, want %q", row.Start, "b00000000")
	}
	if row.End != "b00000101" {
		t.Fatalf("row.End = %q, want %q", row.End, "b00000101")
	}
}
