package mppt

import (
	"context"

	"github.com/itohio/gomppt/pkg/actuator"
)

// PerturbObserve is a hill climber on output current. Every step moves the
// duty cycle one increment and reverses direction when the last move made the
// current worse.
type PerturbObserve struct {
	act  Actuator
	step int

	Duty            int
	Direction       actuator.Direction
	PreviousCurrent uint16
}

// NewPerturbObserve creates a tracker starting at duty, heading up.
func NewPerturbObserve(act Actuator, step, duty int) *PerturbObserve {
	return &PerturbObserve{
		act:       act,
		step:      step,
		Duty:      duty,
		Direction: actuator.Up,
	}
}

// Step feeds the latest current reading and perturbs the duty cycle.
func (p *PerturbObserve) Step(ctx context.Context, current uint16) error {
	if p.PreviousCurrent > current {
		p.Direction = p.Direction.Reverse()
	}

	duty, err := p.act.Perturb(ctx, p.Duty, p.Direction, p.step)
	if err != nil {
		return err
	}

	p.Duty = duty
	p.PreviousCurrent = current
	return nil
}

// Anchor restarts tracking from a known operating point.
func (p *PerturbObserve) Anchor(duty int, current uint16) {
	p.Duty = duty
	p.PreviousCurrent = current
	p.Direction = actuator.Up
}
