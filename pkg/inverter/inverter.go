// Package inverter generates a bipolar quasi-square wave on two output lines.
//
// One cycle of the wave is two half cycles of FullPeriod ticks each. A half
// cycle drives the active line for DeadWidth ticks and then holds both lines
// low until the phase flips.
//
//	positive  ‾‾‾‾‾‾‾‾\__________________________/‾‾‾‾
//	negative  _____________/‾‾‾‾‾‾‾‾\_____________
//	          0       DW   FP       FP+DW        2FP
//
// DW is DeadWidth and FP is FullPeriod.
package inverter

import (
	"context"
	"fmt"
	"time"
)

// Line is one bridge output. machine.Pin satisfies it on the firmware side.
type Line interface {
	High()
	Low()
}

// Phase is the active half cycle.
type Phase uint8

const (
	Positive Phase = iota
	Negative
)

func (p Phase) String() string {
	if p == Positive {
		return "positive"
	}
	return "negative"
}

// Output is the observable waveform state.
type Output uint8

const (
	PositiveOutput Output = iota
	DeadZone
	NegativeOutput
)

func (o Output) String() string {
	switch o {
	case PositiveOutput:
		return "positive"
	case DeadZone:
		return "dead"
	case NegativeOutput:
		return "negative"
	default:
		return "unknown"
	}
}

// Generator is the waveform state machine. Its state belongs to whichever
// goroutine calls Tick; nothing else reads or writes it while it runs.
type Generator struct {
	fullPeriod uint32
	deadWidth  uint32
	lines      [2]Line // indexed by Phase

	phase   Phase
	counter uint32
}

// NewGenerator creates a generator. deadWidth must be in (0, fullPeriod).
func NewGenerator(fullPeriod, deadWidth int, positive, negative Line) (*Generator, error) {
	if fullPeriod <= 0 {
		return nil, fmt.Errorf("full period must be positive, got %d", fullPeriod)
	}
	if deadWidth <= 0 || deadWidth >= fullPeriod {
		return nil, fmt.Errorf("dead width must be in (0, %d), got %d", fullPeriod, deadWidth)
	}
	return &Generator{
		fullPeriod: uint32(fullPeriod),
		deadWidth:  uint32(deadWidth),
		lines:      [2]Line{positive, negative},
	}, nil
}

// Start resets the generator and asserts the positive line.
func (g *Generator) Start() {
	g.phase = Positive
	g.counter = 0
	g.lines[Negative].Low()
	g.lines[Positive].High()
}

// Stop drives both lines low.
func (g *Generator) Stop() {
	g.lines[Positive].Low()
	g.lines[Negative].Low()
}

// Tick advances the waveform by one tick. It never blocks or allocates.
func (g *Generator) Tick() {
	g.counter++

	if g.counter == g.deadWidth {
		g.lines[g.phase].Low()
	}

	if g.counter >= g.fullPeriod {
		g.counter = 0
		g.phase ^= 1
		g.lines[g.phase].High()
	}
}

// Phase returns the active half cycle.
func (g *Generator) Phase() Phase {
	return g.phase
}

// Counter returns the ticks since the last phase flip.
func (g *Generator) Counter() int {
	return int(g.counter)
}

// Output returns the current waveform state.
func (g *Generator) Output() Output {
	switch {
	case g.counter >= g.deadWidth:
		return DeadZone
	case g.phase == Positive:
		return PositiveOutput
	default:
		return NegativeOutput
	}
}

// Frequency returns the output frequency for a tick interval.
func (g *Generator) Frequency(tick time.Duration) float64 {
	cycle := time.Duration(2*g.fullPeriod) * tick
	if cycle <= 0 {
		return 0
	}
	return float64(time.Second) / float64(cycle)
}

// Run starts the waveform and ticks it every tick until ctx is done, then
// drives both lines low.
func (g *Generator) Run(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		return fmt.Errorf("tick must be positive, got %v", tick)
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	g.Start()
	defer g.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.Tick()
		}
	}
}
