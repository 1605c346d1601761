package sample

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itohio/gomppt/pkg/device"
)

// Pipeline acquires batches from the analog front end.
type Pipeline struct {
	fe      device.FrontEnd
	n       int
	shift   uint
	timeout time.Duration
}

// NewPipeline creates a pipeline that collects n samples per channel. n must
// be a power of two. A zero timeout waits for the batch forever.
func NewPipeline(fe device.FrontEnd, n int, timeout time.Duration) (*Pipeline, error) {
	shift, ok := Shift(n)
	if !ok {
		return nil, fmt.Errorf("samples per channel must be a power of two, got %d", n)
	}
	return &Pipeline{
		fe:      fe,
		n:       n,
		shift:   shift,
		timeout: timeout,
	}, nil
}

// SamplesPerChannel returns the per-channel batch size.
func (p *Pipeline) SamplesPerChannel() int {
	return p.n
}

// Acquire collects one full batch and returns its channel averages.
//
// For every slot the front end is armed, allowed to finish the previous
// conversion and triggered. The caller is then suspended until one completion
// per slot has been delivered, so the averages never see a partial batch.
func (p *Pipeline) Acquire(ctx context.Context) (Averages, error) {
	batch, err := p.AcquireBatch(ctx)
	if err != nil {
		return Averages{}, err
	}
	return Average(batch, p.shift), nil
}

// AcquireBatch collects one full batch of raw interleaved readings.
func (p *Pipeline) AcquireBatch(parent context.Context) (Batch, error) {
	ctx := parent
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	batch := NewBatch(p.n)
	done := p.fe.Completions()
	received := 0

	// A conversion left running by an abandoned batch finishes into that
	// batch's slot; once idle, its event is queued and drained below.
	if err := p.fe.WaitIdle(ctx); err != nil {
		return nil, p.fault(parent, err)
	}

	// Events left over from an abandoned batch.
drain:
	for {
		select {
		case _, ok := <-done:
			if !ok {
				return nil, fmt.Errorf("%w: front end closed", device.ErrHardwareFault)
			}
		default:
			break drain
		}
	}

	for i := 0; i < p.n; i++ {
		p.fe.Arm(batch[2*i : 2*i+2])
		if err := p.fe.WaitIdle(ctx); err != nil {
			return nil, p.fault(parent, err)
		}
		if err := p.fe.Trigger(); err != nil {
			return nil, p.fault(parent, err)
		}
	}

	for received < p.n {
		select {
		case _, ok := <-done:
			if !ok {
				return nil, fmt.Errorf("%w: front end closed after %d of %d conversions", device.ErrHardwareFault, received, p.n)
			}
			if err := p.fe.Err(); err != nil {
				return nil, p.fault(parent, err)
			}
			received++
		case <-ctx.Done():
			return nil, p.fault(parent, ctx.Err())
		}
	}

	return batch, nil
}

// fault classifies an acquisition failure. Cancellation of the caller's
// context is returned as is.
func (p *Pipeline) fault(parent context.Context, err error) error {
	if perr := parent.Err(); perr != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return perr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded) && p.timeout > 0:
		return fmt.Errorf("%w: batch of %d not complete within %v", device.ErrAcquisitionTimeout, p.n, p.timeout)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, device.ErrHardwareFault):
		return err
	default:
		return fmt.Errorf("%w: %w", device.ErrHardwareFault, err)
	}
}
