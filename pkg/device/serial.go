package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.bug.st/serial"

	"github.com/itohio/gomppt/pkg/wire"
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial is a charge controller whose firmware bridges the ADC and PWM
// peripherals over a UART.
type Serial struct {
	port     string
	baudRate int
	period   uint32

	conn        serial.Port
	completions chan struct{}
	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	connected   bool

	armed    []uint16
	pending  []uint16
	inflight chan struct{}
	fault    error
	compare  uint32
	buf      []byte
}

// NewSerial creates a new Serial device with the specified port, baud rate,
// PWM period and buffer size.
func NewSerial(port string, baudRate int, period uint32, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:        port,
		baudRate:    baudRate,
		period:      period,
		completions: make(chan struct{}, bufSize),
		ctx:         ctx,
		cancel:      cancel,
		buf:         make([]byte, 0, wire.MaxLineSize),
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect opens the serial port and starts reading firmware reports.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}

	mode := &serial.Mode{
		BaudRate: d.baudRate,
	}

	port, err := serial.Open(d.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.attach(port)

	return nil
}

// attach starts the reader on an open connection. Called with d.mu held.
func (d *Serial) attach(conn serial.Port) {
	d.conn = conn
	d.connected = true
	go d.readMessages()
}

// Close closes the connection. The completions channel is closed once the
// reader has stopped.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			slog.Warn("error closing serial port", "port", d.port, "err", err)
		}
	}

	d.connected = false
	d.release()

	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Arm points the next conversion at dst.
func (d *Serial) Arm(dst []uint16) {
	d.mu.Lock()
	d.armed = dst
	d.mu.Unlock()
}

// WaitIdle blocks until the outstanding conversion request has been answered.
func (d *Serial) WaitIdle(ctx context.Context) error {
	d.mu.Lock()
	inflight := d.inflight
	d.mu.Unlock()

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

// Trigger asks the firmware for one conversion into the armed slot.
func (d *Serial) Trigger() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	if d.fault != nil {
		return fmt.Errorf("%w: %w", ErrHardwareFault, d.fault)
	}
	if d.inflight != nil {
		return fmt.Errorf("%w: conversion already in flight", ErrHardwareFault)
	}
	if len(d.armed) < 2 {
		return fmt.Errorf("%w: no destination armed", ErrHardwareFault)
	}

	if err := d.write(wire.AppendConvert(d.buf[:0])); err != nil {
		return err
	}

	d.pending = d.armed[:2]
	d.inflight = make(chan struct{})

	return nil
}

// Completions returns the conversion completion channel.
func (d *Serial) Completions() <-chan struct{} {
	return d.completions
}

// Err returns the firmware fault or link failure, if any.
func (d *Serial) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fault != nil {
		return fmt.Errorf("%w: %w", ErrHardwareFault, d.fault)
	}
	return nil
}

// Period returns the PWM period in compare counts.
func (d *Serial) Period() uint32 {
	return d.period
}

// SetCompare sends a duty cycle write to the firmware.
func (d *Serial) SetCompare(value uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	if value > d.period {
		return fmt.Errorf("%w: compare %d beyond period %d", ErrHardwareFault, value, d.period)
	}

	if err := d.write(wire.AppendDuty(d.buf[:0], value)); err != nil {
		return err
	}
	d.compare = value

	return nil
}

// write sends one line. Called with d.mu held.
func (d *Serial) write(line []byte) error {
	if _, err := d.conn.Write(line); err != nil {
		return fmt.Errorf("%w: write to %s: %w", ErrHardwareFault, d.port, err)
	}
	return nil
}

// release wakes a waiter of the outstanding conversion without filling it.
// Called with d.mu held.
func (d *Serial) release() {
	if d.inflight != nil {
		close(d.inflight)
		d.inflight = nil
		d.pending = nil
	}
}

// readMessages reads firmware reports until the port closes.
func (d *Serial) readMessages() {
	defer close(d.completions)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in serial reader", "panic", r)
		}
	}()

	scanner := bufio.NewScanner(d.conn)
	for scanner.Scan() {
		msg, err := wire.ParseMessage(scanner.Text())
		if errors.Is(err, wire.ErrEmpty) {
			continue
		}
		if err != nil {
			slog.Warn("failed to parse firmware line", "line", scanner.Text(), "err", err)
			continue
		}
		d.handle(msg)
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case <-d.ctx.Done():
		return
	default:
	}

	slog.Error("serial reader stopped", "port", d.port, "err", err)
	d.mu.Lock()
	d.fault = err
	d.release()
	d.mu.Unlock()
}

// handle applies one firmware report.
func (d *Serial) handle(msg wire.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch msg.Kind {
	case wire.KindSample:
		if d.pending == nil {
			slog.Warn("unsolicited conversion result", "voltage", msg.Voltage, "current", msg.Current)
			return
		}
		d.pending[0] = msg.Voltage
		d.pending[1] = msg.Current

		// Queue the event before waking WaitIdle so that an idle front end
		// has no completion still to come.
		d.complete()
		close(d.inflight)
		d.inflight = nil
		d.pending = nil
	case wire.KindFault:
		slog.Error("firmware fault", "message", msg.Text)
		d.fault = errors.New(msg.Text)
		if d.inflight != nil {
			d.complete()
		}
		d.release()
	}
}

// complete signals one finished conversion. Called with d.mu held.
func (d *Serial) complete() {
	select {
	case d.completions <- struct{}{}:
	default:
		slog.Warn("completions channel full, dropping event")
	}
}
