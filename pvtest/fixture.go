package pvtest

import (
	"os"
	"testing"

	"gopkg.in/yaml.v3"
)

// Fixture is a golden trace: the expected register replica values at a
// sequence of clocks. Grounded on hwtest's random-stimulus differential
// comparator, reworked for single-implementation golden-trace comparison
// since this kernel has one reference behavior to check against, not two
// implementations to cross-check against each other.
type Fixture struct {
	Clocks []ClockExpectation `yaml:"clocks"`
}

// ClockExpectation is the expected state of named registers at one clock.
type ClockExpectation struct {
	Clock     uint64            `yaml:"clock"`
	Registers map[string]string `yaml:"registers"`
}

// LoadFixture reads and parses a YAML golden-trace file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Observed accumulates the actual register values seen at each clock,
// built by a test's Root.SetTraceSink or by explicit per-clock capture,
// then checked against a Fixture with Compare.
type Observed struct {
	Clocks []ClockExpectation
}

// Capture records a single clock's worth of named register values.
func (o *Observed) Capture(clock uint64, registers map[string]string) {
	o.Clocks = append(o.Clocks, ClockExpectation{Clock: clock, Registers: registers})
}

// Compare checks observed against fixture clock by clock. A differing clock
// count or clock number stops the comparison with t.Fatalf; otherwise every
// register that diverged, on every clock, is reported with t.Errorf.
func Compare(t testing.TB, fixture *Fixture, observed *Observed) {
	t.Helper()
	if len(fixture.Clocks) != len(observed.Clocks) {
		t.Fatalf("pvtest: expected %d recorded clocks, got %d", len(fixture.Clocks), len(observed.Clocks))
	}
	for i, want := range fixture.Clocks {
		got := observed.Clocks[i]
		if want.Clock != got.Clock {
			t.Fatalf("pvtest: clock index %d: expected clock number %d, got %d", i, want.Clock, got.Clock)
		}
		for name, wantVal := range want.Registers {
			gotVal, ok := got.Registers[name]
			if !ok {
				t.Errorf("clock %d: register %q not observed", want.Clock, name)
				continue
			}
			if gotVal != wantVal {
				t.Errorf("clock %d: register %q = %q, want %q", want.Clock, name, gotVal, wantVal)
			}
		}
	}
}
