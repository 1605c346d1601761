//go:build tinygo

package main

import (
	"machine"
	"time"
)

const (
	// ADC configuration. Readings are reported with ADC_RESOLUTION bits to
	// match the host calibration section.
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 10   // Reported resolution in bits (0-1023)

	// Analog inputs
	PIN_PANEL_VOLTAGE = machine.A1 // panel voltage through 200k/10k divider
	PIN_BATTERY_AMPS  = machine.A2 // current sense amplifier output

	// Buck converter switch. The host writes compare values in [0, PWM_PERIOD]
	// and they are rescaled to the timer's own top value.
	PIN_BUCK_PWM     = machine.D10
	PWM_PERIOD       = 2000
	PWM_SWITCHING_NS = 10_000 // 100 kHz
	PWM_INITIAL_DUTY = 1460

	// Inverter bridge
	PIN_INVERTER_POS     = machine.D7
	PIN_INVERTER_NEG     = machine.D8
	INVERTER_FULL_PERIOD = 517
	INVERTER_DEAD_WIDTH  = 350
	INVERTER_TICK        = 20 * time.Microsecond

	// Status LED
	PIN_STATUS_LED = machine.LED
	BOOT_BLINKS    = 3

	// Serial configuration
	// Longest report is "v,1023,1023\n" (12 bytes), one per conversion
	// request. At 115200 baud a 32 sample batch takes roughly 35ms.
	UART_BAUD_RATE = 115200
)
