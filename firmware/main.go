//go:build tinygo

//go:generate tinygo flash -target=xiao

// Firmware side of the charge controller: converts on request, writes the
// buck converter duty cycle and runs the inverter waveform locally.
package main

import (
	"context"
	"machine"
	"time"

	"github.com/itohio/gomppt/pkg/inverter"
	"github.com/itohio/gomppt/pkg/wire"
)

var (
	adcVoltage machine.ADC
	adcCurrent machine.ADC
	uart       = machine.UART0

	buck        = machine.TCC1
	buckChannel uint8

	// Serial buffer for reading lines
	serialBuffer [wire.MaxLineSize]byte
	serialPos    int
	out          [wire.MaxLineSize]byte
)

func main() {
	PIN_STATUS_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	blink(BOOT_BLINKS)

	// Configure ADC pins
	PIN_PANEL_VOLTAGE.Configure(machine.PinConfig{Mode: machine.PinInput})
	PIN_BATTERY_AMPS.Configure(machine.PinConfig{Mode: machine.PinInput})

	adcVoltage = machine.ADC{Pin: PIN_PANEL_VOLTAGE}
	adcCurrent = machine.ADC{Pin: PIN_BATTERY_AMPS}

	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}
	adcVoltage.Configure(adcConfig)
	adcCurrent.Configure(adcConfig)

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	if err := configureBuck(); err != nil {
		fault(err.Error())
		halt()
	}

	PIN_INVERTER_POS.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_INVERTER_NEG.Configure(machine.PinConfig{Mode: machine.PinOutput})

	gen, err := inverter.NewGenerator(INVERTER_FULL_PERIOD, INVERTER_DEAD_WIDTH, PIN_INVERTER_POS, PIN_INVERTER_NEG)
	if err != nil {
		fault(err.Error())
		halt()
	}
	go gen.Run(context.Background(), INVERTER_TICK)

	for {
		processSerial()
		time.Sleep(50 * time.Microsecond)
	}
}

func configureBuck() error {
	if err := buck.Configure(machine.PWMConfig{Period: PWM_SWITCHING_NS}); err != nil {
		return err
	}
	ch, err := buck.Channel(PIN_BUCK_PWM)
	if err != nil {
		return err
	}
	buckChannel = ch
	setDuty(PWM_INITIAL_DUTY)
	return nil
}

// setDuty rescales a compare value in [0, PWM_PERIOD] to the timer top.
func setDuty(compare uint32) {
	buck.Set(buckChannel, uint32(uint64(compare)*uint64(buck.Top())/PWM_PERIOD))
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos > 0 {
				handleCommand(string(serialBuffer[:serialPos]))
			}
			serialPos = 0
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		} else {
			// Overlong line - drop it
			serialPos = 0
		}
	}
}

func handleCommand(line string) {
	cmd, err := wire.ParseCommand(line)
	if err != nil {
		fault(err.Error())
		return
	}

	switch cmd.Kind {
	case wire.CmdConvert:
		shift := 16 - ADC_RESOLUTION
		v := adcVoltage.Get() >> shift
		i := adcCurrent.Get() >> shift
		uart.Write(wire.AppendSample(out[:0], v, i))
	case wire.CmdDuty:
		if cmd.Compare > PWM_PERIOD {
			fault("duty beyond period")
			return
		}
		setDuty(cmd.Compare)
	}
}

func fault(msg string) {
	uart.Write(wire.AppendFault(out[:0], msg))
}

func blink(n int) {
	for range n {
		PIN_STATUS_LED.High()
		time.Sleep(100 * time.Millisecond)
		PIN_STATUS_LED.Low()
		time.Sleep(100 * time.Millisecond)
	}
}

func halt() {
	for {
		PIN_STATUS_LED.High()
		time.Sleep(time.Second)
	}
}
