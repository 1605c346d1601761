package mppt

import (
	"context"

	"github.com/itohio/gomppt/pkg/actuator"
	"github.com/itohio/gomppt/pkg/sample"
)

// Result is the outcome of one sweep.
type Result struct {
	BestDuty    int
	BestCurrent uint16
	Visited     []int
	Curve       []Point // measured current at every visited duty
}

// Sweep scans the duty cycle range for the global current maximum. Under
// partial shading the curve has several peaks and the hill climber alone
// settles on whichever is nearest.
type Sweep struct {
	acq   Acquirer
	act   Actuator
	start int
	step  int
	max   int
}

// NewSweep creates a scan over [start, last] in increments of step.
func NewSweep(acq Acquirer, act Actuator, start, step, last int) *Sweep {
	return &Sweep{
		acq:   acq,
		act:   act,
		start: start,
		step:  step,
		max:   last,
	}
}

// Run visits start, start+step, ... up to the last duty and returns the duty with the
// highest current. Each point is the mean of two consecutive batches. Only a
// strictly higher current replaces the best, so among equal peaks the lowest
// duty wins. Run leaves the register at the last visited duty.
func (s *Sweep) Run(ctx context.Context) (Result, error) {
	duty, err := s.act.Set(ctx, s.start)
	if err != nil {
		return Result{}, err
	}

	n := (s.max-s.start)/s.step + 1
	if n < 1 {
		n = 1
	}
	res := Result{
		BestDuty: duty,
		Visited:  make([]int, 0, n),
		Curve:    make([]Point, 0, n),
	}

	for {
		res.Visited = append(res.Visited, duty)

		current, err := s.measure(ctx)
		if err != nil {
			return res, err
		}
		res.Curve = append(res.Curve, Point{Duty: duty, Current: current})
		if current > res.BestCurrent {
			res.BestDuty = duty
			res.BestCurrent = current
		}

		if duty+s.step > s.max {
			break
		}
		next, err := s.act.Perturb(ctx, duty, actuator.Up, s.step)
		if err != nil {
			return res, err
		}
		if next <= duty {
			// actuator range ends below max
			break
		}
		duty = next
	}

	return res, nil
}

func (s *Sweep) measure(ctx context.Context) (uint16, error) {
	a, err := s.acq.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	b, err := s.acq.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	return sample.Mean2(a.Current, b.Current), nil
}
