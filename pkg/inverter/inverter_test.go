package inverter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gomppt/pkg/device"
)

func newTestGenerator(t *testing.T, full, dead int) (*Generator, *device.RecordingLine, *device.RecordingLine) {
	t.Helper()
	pos, neg := &device.RecordingLine{}, &device.RecordingLine{}
	g, err := NewGenerator(full, dead, pos, neg)
	require.NoError(t, err)
	return g, pos, neg
}

func TestNewGenerator_Validation(t *testing.T) {
	tests := []struct {
		name       string
		full, dead int
		ok         bool
	}{
		{"default", 517, 350, true},
		{"zero period", 0, 0, false},
		{"zero dead width", 517, 0, false},
		{"dead width equals period", 517, 517, false},
		{"dead width beyond period", 517, 600, false},
		{"minimal", 2, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator(tt.full, tt.dead, &device.RecordingLine{}, &device.RecordingLine{})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestGenerator_Start(t *testing.T) {
	g, pos, neg := newTestGenerator(t, 517, 350)
	g.Start()

	assert.True(t, pos.Level())
	assert.False(t, neg.Level())
	assert.Equal(t, Positive, g.Phase())
	assert.Equal(t, 0, g.Counter())
	assert.Equal(t, PositiveOutput, g.Output())
}

func TestGenerator_HalfCycleTiming(t *testing.T) {
	g, pos, neg := newTestGenerator(t, 517, 350)
	g.Start()

	for tick := 1; tick <= 517; tick++ {
		g.Tick()

		switch {
		case tick < 350:
			require.True(t, pos.Level(), "tick %d", tick)
			require.False(t, neg.Level(), "tick %d", tick)
			require.Equal(t, PositiveOutput, g.Output(), "tick %d", tick)
			require.Equal(t, Positive, g.Phase(), "tick %d", tick)
		case tick < 517:
			require.False(t, pos.Level(), "tick %d", tick)
			require.False(t, neg.Level(), "tick %d", tick)
			require.Equal(t, DeadZone, g.Output(), "tick %d", tick)
			require.Equal(t, Positive, g.Phase(), "tick %d", tick)
		default:
			require.False(t, pos.Level())
			require.True(t, neg.Level())
			require.Equal(t, NegativeOutput, g.Output())
			require.Equal(t, Negative, g.Phase())
			require.Equal(t, 0, g.Counter())
		}
	}
}

func TestGenerator_FlipsOncePerPeriod(t *testing.T) {
	g, pos, neg := newTestGenerator(t, 517, 350)
	g.Start()

	flips := 0
	last := g.Phase()
	for tick := 1; tick <= 10*517; tick++ {
		g.Tick()
		if g.Phase() != last {
			flips++
			last = g.Phase()
			assert.Equal(t, 0, tick%517, "flip at tick %d", tick)
		}
		assert.False(t, pos.Level() && neg.Level(), "both lines active at tick %d", tick)
	}

	assert.Equal(t, 10, flips)
	assert.Equal(t, Positive, g.Phase())
	// Start raised positive; each half cycle adds one rise and one fall.
	assert.Equal(t, uint32(1+10), pos.Edges())
	assert.Equal(t, uint32(10), neg.Edges())
}

func TestGenerator_TickDoesNotAllocate(t *testing.T) {
	g, _, _ := newTestGenerator(t, 517, 350)
	g.Start()

	allocs := testing.AllocsPerRun(10000, g.Tick)
	assert.Zero(t, allocs)
}

func TestGenerator_Frequency(t *testing.T) {
	g, _, _ := newTestGenerator(t, 500, 350)
	assert.InDelta(t, 50.0, g.Frequency(20*time.Microsecond), 1e-9)
}

func TestGenerator_Run(t *testing.T) {
	g, pos, neg := newTestGenerator(t, 4, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx, 100*time.Microsecond) }()

	assert.Eventually(t, func() bool { return neg.Edges() >= 4 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.False(t, pos.Level())
	assert.False(t, neg.Level())
}

func TestGenerator_RunRejectsZeroTick(t *testing.T) {
	g, _, _ := newTestGenerator(t, 517, 350)
	assert.Error(t, g.Run(context.Background(), 0))
}
