package device

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/itohio/gomppt/pkg/config"
)

// Mock simulates the charge controller power stage for testing and
// development. Conversions complete asynchronously, like the DMA interrupt of
// the real front end.
type Mock struct {
	cfg   *config.Config
	plant Plant

	completions chan struct{}
	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	connected   bool

	// Front end state
	armed    []uint16
	inflight chan struct{} // closed when the running conversion finishes
	stalled  bool
	count    int
	rng      *rand.Rand

	// Duty cycle register
	compare uint32

	positive RecordingLine
	negative RecordingLine
}

// NewMock creates a new simulated device. A nil plant selects the panel
// described by cfg.Mock.
func NewMock(cfg *config.Config, plant Plant) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}
	if plant == nil {
		plant = NewPanel(&cfg.Mock)
	}

	bufSize := DefaultBufferSize
	if n := cfg.Acquisition.SamplesPerChannel; n > bufSize {
		bufSize = n
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:         cfg,
		plant:       plant,
		completions: make(chan struct{}, bufSize),
		ctx:         ctx,
		cancel:      cancel,
		rng:         rand.New(rand.NewSource(cfg.Mock.Seed)),
	}
}

// Connect simulates connecting to the device.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}

	m.connected = true
	return nil
}

// Close stops the simulated device and closes the completions channel.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.cancel()
	m.connected = false
	if m.inflight != nil {
		close(m.inflight)
		m.inflight = nil
	}
	close(m.completions)

	return nil
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Arm points the next conversion at dst.
func (m *Mock) Arm(dst []uint16) {
	m.mu.Lock()
	m.armed = dst
	m.mu.Unlock()
}

// WaitIdle blocks until the running conversion, if any, has finished.
func (m *Mock) WaitIdle(ctx context.Context) error {
	m.mu.Lock()
	inflight := m.inflight
	m.mu.Unlock()

	if inflight == nil {
		return nil
	}

	select {
	case <-inflight:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger starts one conversion of both channels into the armed slot.
func (m *Mock) Trigger() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	if m.inflight != nil {
		return fmt.Errorf("%w: conversion already in flight", ErrHardwareFault)
	}
	if len(m.armed) < 2 {
		return fmt.Errorf("%w: no destination armed", ErrHardwareFault)
	}

	inflight := make(chan struct{})
	m.inflight = inflight
	m.count++

	if m.stalled {
		// Conversion never finishes, as when the converter stops answering.
		return nil
	}

	go m.convert(m.armed[:2], m.compare, inflight)

	return nil
}

// Completions returns the conversion completion channel.
func (m *Mock) Completions() <-chan struct{} {
	return m.completions
}

// Err always returns nil: simulated conversions either finish or stall.
func (m *Mock) Err() error {
	return nil
}

// Period returns the PWM period in compare counts.
func (m *Mock) Period() uint32 {
	return uint32(m.cfg.Control.PWMPeriod)
}

// SetCompare writes the simulated duty cycle register.
func (m *Mock) SetCompare(value uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	if value > m.Period() {
		return fmt.Errorf("%w: compare %d beyond period %d", ErrHardwareFault, value, m.Period())
	}

	m.compare = value
	return nil
}

// Compare returns the current duty cycle register value.
func (m *Mock) Compare() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.compare
}

// Conversions returns how many conversions have been triggered.
func (m *Mock) Conversions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// SetStalled makes subsequent conversions hang forever.
func (m *Mock) SetStalled(stalled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stalled = stalled
}

// InverterLines returns the simulated inverter bridge outputs.
func (m *Mock) InverterLines() (positive, negative Line) {
	return &m.positive, &m.negative
}

// Lines returns the simulated inverter bridge outputs with their recorders.
func (m *Mock) Lines() (positive, negative *RecordingLine) {
	return &m.positive, &m.negative
}

// convert simulates one conversion and signals its completion.
func (m *Mock) convert(dst []uint16, compare uint32, inflight chan struct{}) {
	if d := m.cfg.Mock.ConversionTime; d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-m.ctx.Done():
			return
		}
	}

	volts, amps := m.plant.Operate(float32(compare) / float32(m.Period()))

	m.mu.Lock()
	if !m.connected || m.inflight != inflight {
		m.mu.Unlock()
		return
	}
	dst[0] = m.counts(m.voltageToADC(float64(volts)))
	dst[1] = m.counts(m.currentToADC(float64(amps)))

	// The event is queued before WaitIdle wakes, so an idle front end has no
	// completion still to come. The buffer holds a full batch, so this only
	// drops events nobody reads.
	select {
	case m.completions <- struct{}{}:
	default:
	}
	close(inflight)
	m.inflight = nil
	m.mu.Unlock()
}

// voltageToADC maps a panel voltage to ADC counts through the divider.
func (m *Mock) voltageToADC(volts float64) float64 {
	cal := m.cfg.Calibration
	sensed := volts * cal.DividerR2 / (cal.DividerR1 + cal.DividerR2)
	return sensed / cal.VRef * m.fullScale()
}

// currentToADC maps a battery current to ADC counts through the sense amplifier.
func (m *Mock) currentToADC(amps float64) float64 {
	cal := m.cfg.Calibration
	return amps / cal.CurrentPerVolt / cal.VRef * m.fullScale()
}

func (m *Mock) fullScale() float64 {
	return float64(uint32(1)<<m.cfg.Calibration.Resolution - 1)
}

// counts adds noise and clamps to the ADC range. Called with m.mu held.
func (m *Mock) counts(v float64) uint16 {
	if n := m.cfg.Mock.NoiseCounts; n > 0 {
		v += float64(m.rng.Intn(2*n+1) - n)
	}
	if v < 0 {
		return 0
	}
	if top := m.fullScale(); v > top {
		return uint16(top)
	}
	return uint16(v)
}
