package pv

import "github.com/pkg/errors"

// ExitCode mirrors the simulation exit codes of the original library
// (SIM_NORMAL_EXIT, SIM_CLOCK_LIMIT, SIM_ERR_IDLE_LIMIT, SIM_ERR_ITERATION_LIMIT).
type ExitCode int

const (
	// ExitNormal means the simulation ran to completion (or was ended
	// explicitly via Root.EndSimulation) without hitting a watchdog.
	ExitNormal ExitCode = 0
	// ExitClockLimit means the cycle limit set by Root.SetLimits was reached.
	ExitClockLimit ExitCode = -1
	// ExitIdleLimit means the idle-cycle watchdog fired: no module was
	// triggered for IdleLimit consecutive clocks.
	ExitIdleLimit ExitCode = -2
	// ExitIterationLimit means the fixed-point loop did not converge within
	// IterationLimit iterations in a single clock.
	ExitIterationLimit ExitCode = -3
	// ExitRuntimeError means a user Evaluate() panicked; the panic value is
	// recorded in Root.ErrorString.
	ExitRuntimeError ExitCode = -4
)

// Sentinel errors for the runtime watchdogs. Root.Simulate wraps these with
// the clock number at the point of failure via errors.Wrapf and records the
// wrapped error's message in Root.ErrorString; the error value itself is not
// returned to callers.
var (
	ErrIterationLimit = errors.New("iteration limit exceeded")
	ErrIdleLimit      = errors.New("idle cycle limit exceeded")
)

// structuralError panics with a wrapped, stack-traced error. Structural
// errors (declaring a wire/register outside a module, an Output on the
// root) are construction-time failures that must prevent the invalid
// instance from being used, so this panics rather than returning an error
// from a constructor whose result a caller might otherwise ignore, mirroring
// the original C++ constructors' throw-on-bad-input behavior.
func structuralError(format string, args ...interface{}) {
	panic(errors.Errorf(format, args...))
}
