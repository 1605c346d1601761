// Package actuator owns the converter's duty cycle register.
package actuator

import (
	"context"
	"fmt"
	"time"

	"github.com/itohio/gomppt/pkg/config"
	"github.com/itohio/gomppt/pkg/device"
)

// Direction is the sign of a duty cycle perturbation.
type Direction int8

const (
	Down Direction = -1
	Up   Direction = 1
)

// Valid reports whether d is Up or Down.
func (d Direction) Valid() bool {
	return d == Up || d == Down
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	return -d
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("Direction(%d)", int8(d))
	}
}

// Actuator clamps and applies duty cycle values. It is the only writer of the
// PWM compare register.
type Actuator struct {
	pwm    device.PWM
	min    int
	max    int
	floor  int
	settle time.Duration
	duty   int

	// Sleep waits for the converter to settle. Replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New creates an actuator for pwm. The upper clamp never exceeds the PWM
// period.
func New(pwm device.PWM, cfg config.ControlConfig) *Actuator {
	top := cfg.DutyMax
	if p := int(pwm.Period()); top > p {
		top = p
	}
	return &Actuator{
		pwm:    pwm,
		min:    cfg.DutyMin,
		max:    top,
		floor:  cfg.DutyFloor,
		settle: cfg.SettleDelay,
		Sleep:  SleepContext,
	}
}

// Range returns the duty cycle clamp range.
func (a *Actuator) Range() (lo, hi int) {
	return a.min, a.max
}

// Duty returns the last value written to the register.
func (a *Actuator) Duty() int {
	return a.duty
}

// Clamp limits target to the actuator range.
func (a *Actuator) Clamp(target int) int {
	return clamp(target, a.min, a.max)
}

// Apply clamps target, writes it to the register and returns the value
// written. It does not wait for the converter to settle.
func (a *Actuator) Apply(target int) (int, error) {
	duty := a.Clamp(target)
	if err := a.pwm.SetCompare(uint32(duty)); err != nil {
		return a.duty, fmt.Errorf("%w: set duty %d: %w", device.ErrHardwareFault, duty, err)
	}
	a.duty = duty
	return duty, nil
}

// Set applies target and waits for the converter to settle.
func (a *Actuator) Set(ctx context.Context, target int) (int, error) {
	duty, err := a.Apply(target)
	if err != nil {
		return duty, err
	}
	return duty, a.Sleep(ctx, a.settle)
}

// Perturb moves the duty cycle one step from from in direction dir, limited
// to [floor, max], and waits for the converter to settle so that the next
// reading reflects the new operating point. An invalid direction leaves the
// register untouched and returns from.
func (a *Actuator) Perturb(ctx context.Context, from int, dir Direction, step int) (int, error) {
	if !dir.Valid() {
		return from, nil
	}
	target := clamp(from+int(dir)*step, a.floor, a.max)
	return a.Set(ctx, target)
}

// SleepContext sleeps for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
