package device

import "context"

const (
	// DefaultBaudRate is the UART rate the firmware listens on.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the completions channel buffer.
	DefaultBufferSize = 100
)

// FrontEnd is the analog front end. One conversion samples the panel voltage
// channel and then the current channel into a two word slot.
type FrontEnd interface {
	// Arm points the next conversion at dst. dst[0] receives the voltage
	// reading and dst[1] the current reading.
	Arm(dst []uint16)
	// WaitIdle blocks until no conversion is in flight.
	WaitIdle(ctx context.Context) error
	// Trigger starts one conversion into the armed slot.
	Trigger() error
	// Completions delivers one event per finished conversion. A conversion
	// that ends in a fault also delivers an event and Err reports the fault.
	// The channel is closed when the device goes away.
	Completions() <-chan struct{}
	// Err returns the fault that ended a conversion, if any.
	Err() error
}

// PWM is the converter switch timer. The compare value is the duty cycle
// register and is the only state shared with the control loop.
type PWM interface {
	// Period returns the fixed PWM period in compare counts.
	Period() uint32
	// SetCompare writes the duty cycle register.
	SetCompare(value uint32) error
}

// Line is a digital output.
type Line interface {
	High()
	Low()
}

// Device is a charge controller power stage (real or simulated).
type Device interface {
	Connect() error
	Close() error
	IsConnected() bool
	FrontEnd
	PWM
}

// InverterOutputs is implemented by devices whose inverter bridge is driven
// from the host instead of the firmware.
type InverterOutputs interface {
	InverterLines() (positive, negative Line)
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device and drives the inverter from the host.
var (
	_ Device          = (*Mock)(nil)
	_ InverterOutputs = (*Mock)(nil)
)
