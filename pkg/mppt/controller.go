package mppt

import (
	"context"
	"sync"
	"time"

	"github.com/itohio/gomppt/pkg/actuator"
	"github.com/itohio/gomppt/pkg/config"
	"github.com/itohio/gomppt/pkg/sample"
)

// Status describes one completed control cycle.
type Status struct {
	Cycle    uint64 // cycles since Run started
	Mode     Mode
	State    State
	Averages sample.Averages
	Sweep    *Result // set when Mode is ModeSweep
}

// Controller runs the foreground control loop: acquire, decide, actuate.
// Every SweepTime tracking cycles the hill climber is replaced for one cycle
// by a full sweep that re-anchors it.
type Controller struct {
	cfg   config.ControlConfig
	acq   Acquirer
	act   Actuator
	po    *PerturbObserve
	sweep *Sweep

	cycle uint64
	since int

	callbacks []func(Status)
	cbMu      sync.RWMutex

	// Sleep implements the rest between cycles. Replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New creates a controller.
func New(cfg config.ControlConfig, acq Acquirer, act Actuator) *Controller {
	return &Controller{
		cfg:   cfg,
		acq:   acq,
		act:   act,
		po:    NewPerturbObserve(act, cfg.Step, cfg.InitialDuty),
		sweep: NewSweep(acq, act, cfg.SweepStart, cfg.SweepStep, cfg.DutyMax),
		Sleep: actuator.SleepContext,
	}
}

// OnUpdate registers a callback invoked after every cycle from the control
// goroutine. The callback must return quickly.
func (c *Controller) OnUpdate(callback func(Status)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.callbacks = append(c.callbacks, callback)
}

// State returns the control state. It must not be called concurrently with
// Run; observers get the same data through Status.
func (c *Controller) State() State {
	return State{
		Duty:            c.po.Duty,
		Direction:       c.po.Direction,
		PreviousCurrent: c.po.PreviousCurrent,
		Cycle:           c.since,
	}
}

// Run applies the initial duty cycle and loops until ctx is done or a cycle
// fails. Acquisition and actuation errors are returned as is.
func (c *Controller) Run(ctx context.Context) error {
	duty, err := c.act.Set(ctx, c.cfg.InitialDuty)
	if err != nil {
		return err
	}
	c.po.Anchor(duty, 0)
	c.since = 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Cycle(ctx); err != nil {
			return err
		}
		if err := c.Sleep(ctx, c.cfg.CycleDelay); err != nil {
			return err
		}
	}
}

// Cycle runs one acquire-decide-actuate round.
func (c *Controller) Cycle(ctx context.Context) error {
	avg, err := c.acq.Acquire(ctx)
	if err != nil {
		return err
	}

	status := Status{
		Mode:     ModeTrack,
		Averages: avg,
	}

	if c.since >= c.cfg.SweepTime {
		res, err := c.sweep.Run(ctx)
		if err != nil {
			return err
		}
		duty, err := c.act.Set(ctx, res.BestDuty)
		if err != nil {
			return err
		}
		c.po.Anchor(duty, res.BestCurrent)
		c.since = 0
		status.Mode = ModeSweep
		status.Sweep = &res
	} else {
		if err := c.po.Step(ctx, avg.Current); err != nil {
			return err
		}
		c.since++
	}

	c.cycle++
	status.Cycle = c.cycle
	status.State = c.State()
	c.notify(status)

	return nil
}

func (c *Controller) notify(status Status) {
	c.cbMu.RLock()
	callbacks := make([]func(Status), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(status)
		}
	}
}
