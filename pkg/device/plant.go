package device

import (
	"github.com/chewxy/math32"

	"github.com/itohio/gomppt/pkg/config"
)

// Plant models the power stage seen through the converter: for a duty
// fraction in [0, 1] it returns the converter input (panel) voltage and the
// converter output (battery) current.
type Plant interface {
	Operate(duty float32) (volts, amps float32)
}

// PlantFunc adapts a function to the Plant interface.
type PlantFunc func(duty float32) (volts, amps float32)

// Operate calls f(duty).
func (f PlantFunc) Operate(duty float32) (volts, amps float32) {
	return f(duty)
}

// Cell parameters at full sun.
const (
	cellIsc     = 8.0    // short circuit current (A)
	cellVoc     = 0.6    // open circuit voltage (V)
	cellVt      = 0.0334 // ideality * thermal voltage (V)
	bypassDrop  = 0.5    // bypass diode forward voltage (V)
	efficiency  = 0.95   // converter efficiency
	bisectSteps = 48
)

// Panel is a string of series substrings, each protected by a bypass diode,
// charging a battery through an ideal buck converter. Uneven irradiance
// between substrings produces several local power maxima.
type Panel struct {
	battery float32
	strings []substring
	i0      float32
}

type substring struct {
	cells float32
	isc   float32
}

// NewPanel builds a panel from the mock configuration.
func NewPanel(cfg *config.MockConfig) *Panel {
	p := &Panel{
		battery: float32(cfg.BatteryVoltage),
		i0:      cellIsc / (math32.Exp(cellVoc/cellVt) - 1),
	}
	for _, s := range cfg.Substrings {
		irr := float32(s.Irradiance)
		if irr < 0 {
			irr = 0
		}
		p.strings = append(p.strings, substring{
			cells: float32(s.Cells),
			isc:   cellIsc * irr,
		})
	}
	return p
}

// OpenCircuit returns the panel voltage at zero current.
func (p *Panel) OpenCircuit() float32 {
	return p.voltageAt(0)
}

// voltageAt returns the string voltage when current i flows through it.
// Substrings that cannot carry i are bypassed.
func (p *Panel) voltageAt(i float32) float32 {
	var v float32
	for _, s := range p.strings {
		if i >= s.isc {
			v -= bypassDrop
			continue
		}
		v += s.cells * cellVt * math32.Log((s.isc-i)/p.i0+1)
	}
	return v
}

// Operate implements Plant. The buck converter holds the panel at
// battery/duty; the current that makes the string produce that voltage is
// found by bisection since voltageAt decreases monotonically with current.
func (p *Panel) Operate(duty float32) (volts, amps float32) {
	voc := p.OpenCircuit()
	if duty <= 0 {
		return voc, 0
	}
	if duty > 1 {
		duty = 1
	}

	vin := p.battery / duty
	if vin >= voc {
		return voc, 0
	}

	var hi float32
	for _, s := range p.strings {
		if s.isc > hi {
			hi = s.isc
		}
	}
	lo := float32(0)
	for range bisectSteps {
		mid := (lo + hi) / 2
		if p.voltageAt(mid) > vin {
			lo = mid
		} else {
			hi = mid
		}
	}
	panelAmps := (lo + hi) / 2

	return vin, panelAmps * vin * efficiency / p.battery
}
