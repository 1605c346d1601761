package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/itohio/gomppt/pkg/actuator"
	"github.com/itohio/gomppt/pkg/config"
	"github.com/itohio/gomppt/pkg/device"
	"github.com/itohio/gomppt/pkg/inverter"
	"github.com/itohio/gomppt/pkg/mppt"
	"github.com/itohio/gomppt/pkg/sample"
)

// run connects dev and runs the control loop until ctx is done or the loop
// fails. When the device exposes inverter lines the waveform generator runs
// on its own goroutine for the same lifetime.
func run(ctx context.Context, cfg *config.Config, dev device.Device) error {
	if err := dev.Connect(); err != nil {
		return fmt.Errorf("%w: %w", device.ErrHardwareFault, err)
	}
	defer dev.Close()

	pipeline, err := sample.NewPipeline(dev, cfg.Acquisition.SamplesPerChannel, cfg.Acquisition.Timeout)
	if err != nil {
		return err
	}
	act := actuator.New(dev, cfg.Control)
	controller := mppt.New(cfg.Control, pipeline, act)
	controller.OnUpdate(statusLogger(cfg))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if out, ok := dev.(device.InverterOutputs); ok {
		pos, neg := out.InverterLines()
		gen, err := inverter.NewGenerator(cfg.Inverter.FullPeriod, cfg.Inverter.DeadWidth, pos, neg)
		if err != nil {
			return err
		}
		slog.Info("inverter started", "frequency_hz", gen.Frequency(cfg.Inverter.Tick))

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gen.Run(ctx, cfg.Inverter.Tick); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("inverter stopped", "err", err)
			}
		}()
	}

	slog.Info("controller started",
		"profile", cfg.Profile,
		"initial_duty", cfg.Control.InitialDuty,
		"duty_range", []int{cfg.Control.DutyMin, cfg.Control.DutyMax},
		"step", cfg.Control.Step,
		"sweep_time", cfg.Control.SweepTime,
	)

	err = controller.Run(ctx)
	cancel()
	wg.Wait()

	return err
}

// sweepCurvePoints is how many points of a sweep curve are logged at debug level.
const sweepCurvePoints = 16

// statusLogger logs every sweep and every log.every-th tracking cycle.
func statusLogger(cfg *config.Config) func(mppt.Status) {
	conv := sample.NewConverter(cfg.Calibration, cfg.Mock.BatteryVoltage)
	every := uint64(cfg.Log.Every)
	curve := make([]mppt.Point, 0, sweepCurvePoints)

	return func(s mppt.Status) {
		r := conv.Convert(s.Averages)

		if s.Mode == mppt.ModeSweep && s.Sweep != nil {
			slog.Info("sweep",
				"cycle", s.Cycle,
				"best_duty", s.Sweep.BestDuty,
				"best_current", s.Sweep.BestCurrent,
				"points", len(s.Sweep.Visited),
			)
			curve = mppt.Decimate(curve, s.Sweep.Curve, sweepCurvePoints)
			slog.Debug("sweep curve", "points", curve)
			return
		}

		if every == 0 || s.Cycle%every != 0 {
			return
		}
		slog.Info("track",
			"cycle", s.Cycle,
			"duty", s.State.Duty,
			"direction", s.State.Direction.String(),
			"voltage", r.Voltage.String(),
			"current", r.Current.String(),
			"power", r.Power.String(),
		)
	}
}
