package sample

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gomppt/pkg/config"
	"github.com/itohio/gomppt/pkg/device"
)

// scripted is a front end that answers every conversion immediately with the
// next pair from values. When failAt is set, that conversion ends in failure
// instead.
type scripted struct {
	values   []uint16
	next     int
	armed    []uint16
	done     chan struct{}
	triggers int
	err      error
	failAt   int
	failure  error
	fault    error
}

func newScripted(values []uint16) *scripted {
	return &scripted{values: values, done: make(chan struct{}, len(values))}
}

func (s *scripted) Arm(dst []uint16)                   { s.armed = dst }
func (s *scripted) WaitIdle(ctx context.Context) error { return nil }
func (s *scripted) Completions() <-chan struct{}       { return s.done }
func (s *scripted) Err() error                         { return s.fault }

func (s *scripted) Trigger() error {
	if s.err != nil {
		return s.err
	}
	s.triggers++
	if s.triggers == s.failAt {
		s.fault = s.failure
		s.done <- struct{}{}
		return nil
	}
	s.armed[0] = s.values[s.next]
	s.armed[1] = s.values[s.next+1]
	s.next += 2
	s.done <- struct{}{}
	return nil
}

func TestNewPipeline_RejectsNonPowerOfTwo(t *testing.T) {
	_, err := NewPipeline(newScripted(nil), 24, 0)
	assert.Error(t, err)

	p, err := NewPipeline(newScripted(nil), 32, 0)
	require.NoError(t, err)
	assert.Equal(t, 32, p.SamplesPerChannel())
}

func TestPipeline_AcquireBatchLayout(t *testing.T) {
	values := make([]uint16, 64)
	for i := range values {
		values[i] = uint16(i)
	}
	fe := newScripted(values)

	p, err := NewPipeline(fe, 32, time.Second)
	require.NoError(t, err)

	batch, err := p.AcquireBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Batch(values), batch)
	assert.Equal(t, 32, fe.triggers)
}

func TestPipeline_Acquire(t *testing.T) {
	values := make([]uint16, 64)
	for i := 0; i < 32; i++ {
		values[2*i] = 300 + uint16(i%2) // voltage alternates 300/301
		values[2*i+1] = 600
	}

	p, err := NewPipeline(newScripted(values), 32, 0)
	require.NoError(t, err)

	avg, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Averages{Voltage: 300, Current: 600}, avg)
}

func TestPipeline_TriggerFault(t *testing.T) {
	fe := newScripted(make([]uint16, 64))
	fe.err = errors.New("adc busy bit stuck")

	p, err := NewPipeline(fe, 32, time.Second)
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, device.ErrHardwareFault)
	assert.Contains(t, err.Error(), "adc busy bit stuck")
}

func TestPipeline_WithMock(t *testing.T) {
	cfg := config.Default()
	cfg.Mock.ConversionTime = 100 * time.Microsecond
	plant := device.PlantFunc(func(duty float32) (float32, float32) { return 21, 10 })

	m := device.NewMock(cfg, plant)
	require.NoError(t, m.Connect())
	defer m.Close()

	p, err := NewPipeline(m, 32, time.Second)
	require.NoError(t, err)

	avg, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 310, float64(avg.Voltage), 1)
	assert.InDelta(t, 310, float64(avg.Current), 1)
	assert.Equal(t, 32, m.Conversions())

	// Consecutive batches are independent.
	_, err = p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 64, m.Conversions())
}

func TestPipeline_Timeout(t *testing.T) {
	m := device.NewMock(nil, nil)
	require.NoError(t, m.Connect())
	defer m.Close()
	m.SetStalled(true)

	p, err := NewPipeline(m, 32, 20*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, device.ErrAcquisitionTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPipeline_NoTimeoutHonoursContext(t *testing.T) {
	m := device.NewMock(nil, nil)
	require.NoError(t, m.Connect())
	defer m.Close()
	m.SetStalled(true)

	p, err := NewPipeline(m, 32, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, device.ErrAcquisitionTimeout)
}

func TestPipeline_DeviceClosed(t *testing.T) {
	m := device.NewMock(nil, nil)
	require.NoError(t, m.Connect())
	require.NoError(t, m.Close())

	p, err := NewPipeline(m, 32, time.Second)
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, device.ErrHardwareFault)
}

func TestPipeline_CallerDeadlineIsNotTimeout(t *testing.T) {
	m := device.NewMock(nil, nil)
	require.NoError(t, m.Connect())
	defer m.Close()
	m.SetStalled(true)

	p, err := NewPipeline(m, 32, time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, device.ErrAcquisitionTimeout)
}

func TestPipeline_FaultOnLastConversion(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
	}{
		{name: "with timeout", timeout: time.Second},
		{name: "without timeout", timeout: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := newScripted(make([]uint16, 64))
			fe.failAt = 32
			fe.failure = fmt.Errorf("%w: adc stuck", device.ErrHardwareFault)

			p, err := NewPipeline(fe, 32, tt.timeout)
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			start := time.Now()
			_, err = p.Acquire(ctx)
			assert.ErrorIs(t, err, device.ErrHardwareFault)
			assert.NotErrorIs(t, err, device.ErrAcquisitionTimeout)
			assert.NotErrorIs(t, err, context.DeadlineExceeded)
			assert.Contains(t, err.Error(), "adc stuck")
			assert.Less(t, time.Since(start), 500*time.Millisecond)
		})
	}
}

func TestPipeline_AbandonedBatchDoesNotLeak(t *testing.T) {
	cfg := config.Default()
	cfg.Mock.ConversionTime = 3 * time.Millisecond
	plant := device.PlantFunc(func(duty float32) (float32, float32) { return 21, 10 })

	m := device.NewMock(cfg, plant)
	require.NoError(t, m.Connect())
	defer m.Close()

	// 32 conversions of 3ms cannot finish in 10ms.
	short, err := NewPipeline(m, 32, 10*time.Millisecond)
	require.NoError(t, err)
	_, err = short.AcquireBatch(context.Background())
	require.ErrorIs(t, err, device.ErrAcquisitionTimeout)

	p, err := NewPipeline(m, 32, 0)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		batch, err := p.AcquireBatch(context.Background())
		require.NoError(t, err)
		assert.NotContains(t, []uint16(batch), uint16(0))

		avg := Average(batch, p.shift)
		assert.InDelta(t, 310, float64(avg.Voltage), 1)
		assert.InDelta(t, 310, float64(avg.Current), 1)
	}
}
