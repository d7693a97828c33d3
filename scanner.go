// scanner using gqrx remote control
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// wait times
var waitSettle = 500 * time.Millisecond
var waitDwell = 3000 * time.Millisecond

// scan defaults
const (
	defaultStep                 int64   = 50000
	defaultFineStep             int64   = 10000
	defaultSquelchIncrement     float64 = 5
	defaultStepOvershoot        float64 = 1.15
	defaultMaxRefineSteps               = 50
	defaultMaxConsecutiveErrors         = 5
)

// gqrx frequencies are entered in MHz with five decimal digits
const mhzScale = 1e5

var ErrInvalidRange = errors.New("invalid scan range")

// Receiver is the part of the gqrx remote control the scanner drives.
type Receiver interface {
	SetFrequency(ctx context.Context, frequency int64) (string, error)
	SetMode(ctx context.Context, mode Mode) (string, error)
	SetSquelch(ctx context.Context, squelch float64) (string, error)
	Level(ctx context.Context) (float64, error)
}

type ScanRange struct {
	Min  int64
	Max  int64
	Step int64
	Mode Mode
	// Laps is the number of sweeps before the scan returns; 0 never returns.
	Laps int
}

type Discovery struct {
	Frequency int64
	Level     float64
	Squelch   float64
	Time      time.Time
}

func MHzToReceiverUnits(mhz float64) int64 {
	return int64(math.Round(mhz * mhzScale))
}

func ReceiverUnitsToMHz(frequency int64) float64 {
	return float64(frequency) / mhzScale
}

func NewScanRange(minMHz float64, maxMHz float64, mode Mode, step int64) (ScanRange, error) {
	for _, mhz := range []float64{minMHz, maxMHz} {
		if math.IsNaN(mhz) || math.IsInf(mhz, 0) {
			return ScanRange{}, fmt.Errorf("%w: frequency %v is not a number", ErrInvalidRange, mhz)
		}
	}
	scanRange := ScanRange{
		Min:  MHzToReceiverUnits(minMHz),
		Max:  MHzToReceiverUnits(maxMHz),
		Step: step,
		Mode: mode,
	}
	return scanRange, scanRange.Validate()
}

func (r ScanRange) Validate() error {
	if r.Min < 0 {
		return fmt.Errorf("%w: min frequency %d is negative", ErrInvalidRange, r.Min)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%w: min frequency %d is greater than max frequency %d", ErrInvalidRange, r.Min, r.Max)
	}
	if r.Step <= 0 {
		return fmt.Errorf("%w: step %d must be positive", ErrInvalidRange, r.Step)
	}
	if r.Laps < 0 {
		return fmt.Errorf("%w: laps %d must not be negative", ErrInvalidRange, r.Laps)
	}
	return nil
}

// Scanner sweeps a ScanRange on a Receiver, reporting frequencies whose level
// reaches the squelch threshold.
type Scanner struct {
	Receiver Receiver
	Squelch  float64

	SettleTime time.Duration
	DwellTime  time.Duration

	// peak search
	FineStep         int64
	SquelchIncrement float64
	StepOvershoot    float64
	MaxRefineSteps   int
	// ResetStep restores the configured step before every peak search;
	// otherwise step corrections accumulate across discoveries.
	ResetStep        bool

	// MaxConsecutiveErrors failed steps are skipped before the scan gives up.
	MaxConsecutiveErrors int

	OnDiscovery func(Discovery)
	OnTune      func(frequency int64, level float64)
	// Hold is called before every step; a non-nil error ends the scan.
	Hold        func(ctx context.Context) error

	log   *zap.SugaredLogger
	sleep sleepFunc
	now   func() time.Time
}

func NewScanner(receiver Receiver, squelch float64, log *zap.SugaredLogger) *Scanner {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scanner{
		Receiver:             receiver,
		Squelch:              squelch,
		SettleTime:           waitSettle,
		DwellTime:            waitDwell,
		FineStep:             defaultFineStep,
		SquelchIncrement:     defaultSquelchIncrement,
		StepOvershoot:        defaultStepOvershoot,
		MaxRefineSteps:       defaultMaxRefineSteps,
		ResetStep:            true,
		MaxConsecutiveErrors: defaultMaxConsecutiveErrors,
		log:                  log,
		sleep:                sleepContext,
		now:                  time.Now,
	}
}

type cursor struct {
	scanRange ScanRange
	frequency int64
	step      int64
	lap       int
	failures  int
}

// wrap moves the cursor back to the start of the range once it went past the end
func (c *cursor) wrap() (wrapped bool) {
	if c.frequency > c.scanRange.Max {
		c.frequency = c.scanRange.Min
		c.lap++
		wrapped = true
	}
	return
}

type stepFunc func(ctx context.Context, c *cursor) error

// Scan tunes every step of the range and reports each frequency whose level
// reaches the squelch, then dwells there before moving on.
func (s *Scanner) Scan(ctx context.Context, scanRange ScanRange) error {
	return s.run(ctx, scanRange, s.linearStep)
}

// PeakScan is like Scan but climbs through a detected signal in fine steps,
// raising the squelch each time, and reports only the strongest frequency.
func (s *Scanner) PeakScan(ctx context.Context, scanRange ScanRange) error {
	if s.FineStep <= 0 {
		return fmt.Errorf("%w: fine step %d must be positive", ErrInvalidRange, s.FineStep)
	}
	return s.run(ctx, scanRange, s.peakStep)
}

func (s *Scanner) run(ctx context.Context, scanRange ScanRange, step stepFunc) (err error) {
	err = scanRange.Validate()
	if err != nil {
		return
	}
	_, err = s.Receiver.SetMode(ctx, scanRange.Mode)
	if err != nil {
		return fmt.Errorf("set mode %s: %w", scanRange.Mode, err)
	}
	s.log.Infow("scan started",
		"min", scanRange.Min,
		"max", scanRange.Max,
		"step", scanRange.Step,
		"mode", scanRange.Mode.String(),
		"squelch", s.Squelch)

	c := &cursor{
		scanRange: scanRange,
		frequency: scanRange.Min,
		step:      scanRange.Step,
	}
	for {
		if c.wrap() {
			s.log.Debugw("scan wrapped", "lap", c.lap)
			if scanRange.Laps > 0 && c.lap >= scanRange.Laps {
				return nil
			}
		}
		if s.Hold != nil {
			err = s.Hold(ctx)
			if err != nil {
				return
			}
		}
		err = ctx.Err()
		if err != nil {
			return
		}

		err = step(ctx, c)
		if err == nil {
			c.failures = 0
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.failures++
		if c.failures > s.MaxConsecutiveErrors {
			return fmt.Errorf("scan aborted after %d failed steps: %w", c.failures, err)
		}
		s.log.Warnw("scan step failed", "next", c.frequency, "failures", c.failures, "error", err)
	}
}

// linearStep always leaves the cursor on the next frequency, also on error
func (s *Scanner) linearStep(ctx context.Context, c *cursor) error {
	frequency := c.frequency
	c.frequency += c.scanRange.Step

	level, err := s.measure(ctx, frequency, s.Squelch)
	if err != nil {
		return err
	}
	if level >= s.Squelch {
		s.report(frequency, level, s.Squelch)
		return s.sleep(ctx, s.DwellTime)
	}
	return nil
}

func (s *Scanner) peakStep(ctx context.Context, c *cursor) error {
	if s.ResetStep {
		c.step = c.scanRange.Step
	}
	start := c.frequency
	frequency := start
	squelch := s.Squelch

	level, err := s.measure(ctx, frequency, squelch)
	if err != nil {
		c.frequency = start + c.step
		return err
	}

	var found bool
	var peak int64
	var peakLevel, peakSquelch float64
	for refine := 0; level >= squelch; refine++ {
		found = true
		peak, peakLevel, peakSquelch = frequency, level, squelch
		if refine >= s.MaxRefineSteps {
			s.log.Debugw("peak search stopped", "frequency", frequency, "steps", refine)
			break
		}
		next := frequency + s.FineStep
		if next > c.scanRange.Max {
			break
		}
		frequency = next
		squelch += s.SquelchIncrement
		level, err = s.measure(ctx, frequency, squelch)
		if err != nil {
			c.frequency = start + c.step
			return err
		}
	}

	if found {
		s.report(peak, peakLevel, peakSquelch)
		if peak != frequency {
			c.step += int64(math.Round(float64(peak-frequency) * s.StepOvershoot))
			c.step = max(c.step, s.FineStep)
		}
	}
	c.frequency = frequency + c.step
	return nil
}

func (s *Scanner) measure(ctx context.Context, frequency int64, squelch float64) (level float64, err error) {
	_, err = s.Receiver.SetFrequency(ctx, frequency)
	if err != nil {
		return
	}
	_, err = s.Receiver.SetSquelch(ctx, squelch)
	if err != nil {
		return
	}
	err = s.sleep(ctx, s.SettleTime)
	if err != nil {
		return
	}
	level, err = s.Receiver.Level(ctx)
	if err != nil {
		return
	}
	if s.OnTune != nil {
		s.OnTune(frequency, level)
	}
	return
}

func (s *Scanner) report(frequency int64, level float64, squelch float64) {
	s.log.Debugw("found", "frequency", frequency, "level", level, "squelch", squelch)
	if s.OnDiscovery != nil {
		s.OnDiscovery(Discovery{
			Frequency: frequency,
			Level:     level,
			Squelch:   squelch,
			Time:      s.now(),
		})
	}
}
