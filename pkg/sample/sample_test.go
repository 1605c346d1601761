package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"periph.io/x/conn/v3/physic"

	"github.com/itohio/gomppt/pkg/config"
)

func TestNewBatch(t *testing.T) {
	b := NewBatch(32)
	assert.Len(t, b, 64)
}

func TestConverter(t *testing.T) {
	cal := config.CalibrationConfig{
		VRef:           3.3,
		Resolution:     10,
		DividerR1:      200000,
		DividerR2:      10000,
		CurrentPerVolt: 5,
	}
	c := NewConverter(cal, 12)

	// 310 counts is 1.0V at the pin: 21V panel, 5A charge current.
	r := c.Convert(Averages{Voltage: 310, Current: 310})

	assert.InDelta(t, 21.0, float64(r.Voltage)/float64(physic.Volt), 0.01)
	assert.InDelta(t, 5.0, float64(r.Current)/float64(physic.Ampere), 0.01)
	assert.InDelta(t, 60.0, float64(r.Power)/float64(physic.Watt), 0.1)
}

func TestConverter_NoDivider(t *testing.T) {
	cal := config.CalibrationConfig{VRef: 1.023, Resolution: 10, CurrentPerVolt: 1}
	c := NewConverter(cal, 1)

	r := c.Convert(Averages{Voltage: 500, Current: 0})
	assert.InDelta(t, 0.5, float64(r.Voltage)/float64(physic.Volt), 0.001)
	assert.Zero(t, r.Current)
	assert.Zero(t, r.Power)
}
