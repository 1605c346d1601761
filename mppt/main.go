package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/itohio/gomppt/pkg/config"
	"github.com/itohio/gomppt/pkg/device"
)

func main() {
	var (
		portFlag    = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag  = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag    = flag.Bool("mock", false, "Use simulated power stage instead of serial port")
		profileFlag = flag.String("profile", "", "Tuning profile override (coarse or fine)")
		listFlag    = flag.Bool("list", false, "List serial ports and exit")
	)
	flag.Parse()

	if *listFlag {
		listPorts()
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		slog.Error("failed to load configuration", "file", *configFlag, "err", err)
		os.Exit(1)
	}

	// Command line overrides
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *profileFlag != "" {
		if err := cfg.UseProfile(*profileFlag); err != nil {
			slog.Error("invalid profile", "err", err)
			os.Exit(2)
		}
	}

	slog.SetDefault(newLogger(cfg.Log))

	var dev device.Device
	if *mockFlag {
		dev = device.NewMock(cfg, nil)
	} else {
		dev = device.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate, uint32(cfg.Control.PWMPeriod), 2*cfg.Acquisition.SamplesPerChannel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, dev); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("controller stopped", "kind", errorKind(err), "err", err)
		stop()
		os.Exit(1)
	}

	slog.Info("controller stopped")
}

func listPorts() {
	ports, err := device.Ports()
	if err != nil {
		slog.Error("failed to list serial ports", "err", err)
		os.Exit(1)
	}
	for _, p := range ports {
		slog.Info("serial port", "name", p.Name, "description", p.Description)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, device.ErrAcquisitionTimeout):
		return "acquisition_timeout"
	case errors.Is(err, device.ErrHardwareFault):
		return "hardware_fault"
	default:
		return "other"
	}
}
