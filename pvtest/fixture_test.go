package pvtest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/shebanow/pseudo-verilog"
)

func writeFixture(t *testing.T, yamlText string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	if err := os.WriteFile(path, []byte(yamlText), 0o644); err != nil {
		t.Fatalf("writeFixture: %v", err)
	}
	return path
}

// capturingCounterRoot is the same free-running counter as counterRoot, but
// records q's value at every clock via PostEdge so a test can build an
// Observed without calling Simulate more than once (Root.Simulate runs to
// the configured exit condition, not one clock at a time).
type capturingCounterRoot struct {
	*pv.Root
	c        *counter
	observed *Observed
}

func (cr *capturingCounterRoot) Evaluate() {}
func (cr *capturingCounterRoot) PostEdge() {
	cr.observed.Capture(cr.Root.Clock(), map[string]string{"q": cr.c.q.ValueToken()})
}

func newCapturingCounterRoot(cycleLimit uint64) (*pv.Root, *Observed) {
	cr := &capturingCounterRoot{observed: &Observed{}}
	cr.Root = pv.NewRoot("top", cr)
	cr.c = &counter{}
	cr.c.Module = pv.NewModule(cr.Root.AsModule(), "counter", cr.c)
	cr.c.q = pv.NewRegister[uint32](cr.c.Module, "q", pv.WithRegisterInit[uint32](0))
	cr.Root.SetLimits(pv.Limits{IterationLimit: 10, IdleLimit: 10, CycleLimit: cycleLimit})
	return cr.Root, cr.observed
}

func TestLoadFixtureAndCompareMatch(t *testing.T) {
	path := writeFixture(t, `
clocks:
  - clock: 1
    registers:
      q: "b00000000000000000000000000000000"
  - clock: 2
    registers:
      q: "b00000000000000000000000000000001"
`)

	fixture, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	root, observed := newCapturingCounterRoot(2)
	if code := root.Simulate(); code != pv.ExitClockLimit {
		t.Fatalf("Simulate() = %v, want ExitClockLimit", code)
	}

	Compare(t, fixture, observed)
}

// recordingTB stands in for a *testing.T so a test can observe Compare
// failing without that failure propagating to the enclosing test, as a
// failing t.Run subtest would.
type recordingTB struct {
	testing.TB
	failed bool
}

func (r *recordingTB) Helper()                       {}
func (r *recordingTB) Errorf(string, ...interface{}) { r.failed = true }
func (r *recordingTB) Fatalf(string, ...interface{}) { r.failed = true; runtime.Goexit() }

func TestCompareFailsOnClockCountMismatch(t *testing.T) {
	fixture := &Fixture{Clocks: []ClockExpectation{{Clock: 1, Registers: map[string]string{"q": "1"}}}}
	observed := &Observed{}

	tb := &recordingTB{TB: t}
	done := make(chan struct{})
	go func() {
		defer close(done)
		Compare(tb, fixture, observed)
	}()
	<-done
	if !tb.failed {
		t.Fatal("expected Compare to fail when clock counts differ")
	}
}

func TestLoadFixtureMissingFileReturnsError(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error loading a nonexistent fixture")
	}
}
