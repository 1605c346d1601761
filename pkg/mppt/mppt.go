// Package mppt tracks the maximum power point of a PV source by adjusting the
// converter duty cycle.
//
// Current is used as the tracked quantity: with the battery holding the
// output voltage fixed, output current is proportional to harvested power.
package mppt

import (
	"context"

	"github.com/itohio/gomppt/pkg/actuator"
	"github.com/itohio/gomppt/pkg/sample"
)

var (
	_ Acquirer = (*sample.Pipeline)(nil)
	_ Actuator = (*actuator.Actuator)(nil)
)

// Acquirer delivers one averaged batch per call.
type Acquirer interface {
	Acquire(ctx context.Context) (sample.Averages, error)
}

// Actuator applies duty cycle values.
type Actuator interface {
	Set(ctx context.Context, target int) (int, error)
	Perturb(ctx context.Context, from int, dir actuator.Direction, step int) (int, error)
}

// State is the control state carried across cycles.
type State struct {
	Duty            int
	Direction       actuator.Direction
	PreviousCurrent uint16
	Cycle           int // cycles since the last sweep
}

// Mode tells which algorithm handled a cycle.
type Mode int

const (
	ModeTrack Mode = iota
	ModeSweep
)

func (m Mode) String() string {
	switch m {
	case ModeTrack:
		return "track"
	case ModeSweep:
		return "sweep"
	default:
		return "unknown"
	}
}
