package mocklog

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// burstCount frames are sent with no pacing to prime the device's
	// receive buffers before realtime pacing starts.
	burstCount = 75
	// batchSize frames share a single sleep so pacing overhead stays low
	// at high sample rates.
	batchSize = 10

	sleepStep = 10 * time.Millisecond
)

// Sleeper abstracts blocking waits so replay pacing is testable.
type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Play streams records to send, pacing against the recorded inter-arrival
// delays divided by speed.
//
// The first burstCount frames go out unpaced. After the burst, pacing is
// measured against a wall-clock anchor taken at end-of-burst rather than
// summed from record zero, so a slow sink never forces the stream
// permanently behind: when the stream is already late, the batch sleep is
// skipped. With realtime=false no sleeps happen at all.
//
// sleeper may be nil for real time.Sleep. Returns the number of frames sent.
func Play(ctx context.Context, records []Record, speed float64, realtime bool, sleeper Sleeper, send func(frame []byte) error) (int, error) {
	if speed <= 0 {
		return 0, fmt.Errorf("mocklog: speed must be > 0, got %v", speed)
	}
	if send == nil {
		return 0, errors.New("mocklog: send callback is nil")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}

	sent := 0

	// Burst.
	for sent < burstCount && sent < len(records) {
		if err := ctx.Err(); err != nil {
			return sent, nil
		}
		if err := send(records[sent].Frame); err != nil {
			return sent, err
		}
		sent++
	}

	anchor := time.Now()
	var scheduled time.Duration

	// Paced batches.
	for sent < len(records) {
		if err := ctx.Err(); err != nil {
			return sent, nil
		}

		end := sent + batchSize
		if end > len(records) {
			end = len(records)
		}

		var batchDelay time.Duration
		for _, rec := range records[sent:end] {
			batchDelay += rec.Delay
		}
		for _, rec := range records[sent:end] {
			if err := ctx.Err(); err != nil {
				return sent, nil
			}
			if err := send(rec.Frame); err != nil {
				return sent, err
			}
			sent++
		}

		if realtime && batchDelay > 0 {
			scheduled += time.Duration(float64(batchDelay) / speed)
			if time.Since(anchor) <= scheduled {
				sleepInterruptible(ctx, sleeper, time.Duration(float64(batchDelay)/speed))
			}
		}
	}

	return sent, nil
}

// sleepInterruptible sleeps in short steps so cancellation takes effect
// promptly even with long batch delays.
func sleepInterruptible(ctx context.Context, sleeper Sleeper, total time.Duration) {
	remaining := total
	for remaining > 0 && ctx.Err() == nil {
		step := remaining
		if step > sleepStep {
			step = sleepStep
		}
		sleeper.Sleep(step)
		remaining -= step
	}
}
