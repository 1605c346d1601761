package sample

import (
	"periph.io/x/conn/v3/physic"

	"github.com/itohio/gomppt/pkg/config"
)

// Batch is one round of interleaved raw readings: voltage at even positions,
// current at odd positions. Its length is twice the per-channel sample count.
type Batch []uint16

// NewBatch allocates a batch for n samples per channel.
func NewBatch(n int) Batch {
	return make(Batch, 2*n)
}

// Voltage returns the i-th voltage reading.
func (b Batch) Voltage(i int) uint16 { return b[2*i] }

// Current returns the i-th current reading.
func (b Batch) Current(i int) uint16 { return b[2*i+1] }

// Averages is the per-channel mean of one batch in raw ADC counts.
type Averages struct {
	Voltage uint16
	Current uint16
}

// Reading is an Averages value in physical units.
type Reading struct {
	Voltage physic.ElectricPotential // panel voltage
	Current physic.ElectricCurrent   // battery charge current
	Power   physic.Power             // power delivered to the battery
}

// Converter turns raw averages into physical readings.
type Converter struct {
	lsb          float64 // volts per count at the ADC pin
	dividerRatio float64
	ampsPerVolt  float64
	vbat         float64
}

// NewConverter creates a converter from the calibration section. batteryVolts
// is used to express the charge current as power.
func NewConverter(cal config.CalibrationConfig, batteryVolts float64) *Converter {
	c := &Converter{
		lsb:         cal.VRef / float64(uint32(1)<<cal.Resolution-1),
		ampsPerVolt: cal.CurrentPerVolt,
		vbat:        batteryVolts,
	}
	if cal.DividerR2 > 0 {
		c.dividerRatio = (cal.DividerR1 + cal.DividerR2) / cal.DividerR2
	} else {
		c.dividerRatio = 1
	}
	return c
}

// Convert maps averages to physical units.
func (c *Converter) Convert(avg Averages) Reading {
	volts := float64(avg.Voltage) * c.lsb * c.dividerRatio
	amps := float64(avg.Current) * c.lsb * c.ampsPerVolt

	return Reading{
		Voltage: physic.ElectricPotential(volts * float64(physic.Volt)),
		Current: physic.ElectricCurrent(amps * float64(physic.Ampere)),
		Power:   physic.Power(amps * c.vbat * float64(physic.Watt)),
	}
}
