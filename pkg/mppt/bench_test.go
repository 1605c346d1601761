package mppt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itohio/gomppt/pkg/actuator"
	"github.com/itohio/gomppt/pkg/config"
	"github.com/itohio/gomppt/pkg/sample"
)

// bench is a converter whose output current depends only on the duty cycle
// currently in the register.
type bench struct {
	period       uint32
	compare      uint32
	writes       []int
	curve        func(duty int) uint16
	acquisitions int
	failAt       int
	err          error
}

func (b *bench) Period() uint32 { return b.period }

func (b *bench) SetCompare(v uint32) error {
	b.compare = v
	b.writes = append(b.writes, int(v))
	return nil
}

func (b *bench) Acquire(ctx context.Context) (sample.Averages, error) {
	b.acquisitions++
	if b.err != nil && b.acquisitions >= b.failAt {
		return sample.Averages{}, b.err
	}
	return sample.Averages{Voltage: 500, Current: b.curve(int(b.compare))}, nil
}

func newBench(t *testing.T, profile string, curve func(int) uint16) (*bench, *actuator.Actuator, config.ControlConfig) {
	t.Helper()
	ctl, err := config.Profile(profile)
	require.NoError(t, err)

	b := &bench{period: uint32(ctl.PWMPeriod), curve: curve}
	act := actuator.New(b, ctl)
	act.Sleep = func(context.Context, time.Duration) error { return nil }
	return b, act, ctl
}

// peak is a single-maximum curve centred on at.
func peak(at int) func(int) uint16 {
	return func(duty int) uint16 {
		d := duty - at
		if d < 0 {
			d = -d
		}
		return uint16(3000 - d)
	}
}

func flat(int) uint16 { return 1000 }
