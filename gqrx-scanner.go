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
	"os"
	"os/signal"
	"syscall"

	"github.com/eiannone/keyboard"
	"go.uber.org/zap"
)

func main() {
	parseArgs()

	interactive := isTerminal(os.Stdout)
	log, err := newLogger(verboseLog, quietLog, interactive)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error creating logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	settings := defaultSettings()
	var scans []Scan
	if configFile != "" {
		settings, scans, err = readConfigFile(configFile)
		if err != nil {
			log.Fatalw("error reading configuration file", "file", configFile, "error", err)
		}
	}
	argScans, err := applyArgs(&settings)
	if err != nil {
		log.Fatalw("invalid arguments", "error", err)
	}
	scans = append(scans, argScans...)
	if err = checkModes(settings, scans); err != nil {
		log.Fatalw("invalid scan mode", "error", err)
	}
	if len(scans) == 0 {
		log.Fatal("no scan configured")
	}

	var labels Labels
	if labelFile != "" {
		labels, err = readLabelFile(labelFile)
		if err != nil {
			log.Fatalw("error reading label file", "file", labelFile, "error", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	commands := newUserCommands()
	if interactive && isTerminal(os.Stdin) {
		if err = keyboard.Open(); err != nil {
			log.Fatalw("error opening keyboard", "error", err)
		}
		defer keyboard.Close()
		go commands.getKeyPresses(log)
		log.Info("keys: space pause/resume, n next scan, q quit")
	}

	client := NewClient(settings.Host, settings.Port, settings.Squelch, log)
	status := newStatusLog(os.Stdout, interactive && !verboseLog, labels, defaultStep/2)

	scanner := newScanner(client, settings, log)
	scanner.OnDiscovery = status.reportDiscovery
	scanner.OnTune = status.reportTune
	scanner.Hold = commands.hold

	err = runScans(ctx, scanner, scans, settings, log)
	if err != nil {
		log.Errorw("scan error", "error", err)
		return
	}
}

func newScanner(receiver Receiver, settings Settings, log *zap.SugaredLogger) *Scanner {
	scanner := NewScanner(receiver, settings.Squelch, log)
	scanner.SettleTime = settings.SettleTime
	scanner.DwellTime = settings.DwellTime
	scanner.FineStep = settings.FineStep
	scanner.SquelchIncrement = settings.SquelchIncrement
	scanner.StepOvershoot = settings.StepOvershoot
	scanner.MaxRefineSteps = settings.MaxRefineSteps
	scanner.ResetStep = settings.ResetStep
	scanner.MaxConsecutiveErrors = settings.MaxErrors
	return scanner
}

// runScans cycles through the scans until the user quits; a scan with no
// laps limit only ends on a user command
func runScans(ctx context.Context, scanner *Scanner, scans []Scan, settings Settings, log *zap.SugaredLogger) (err error) {
	for {
		for idx := range scans {
			scan := &scans[idx]
			scanner.Squelch = settings.Squelch
			if scan.SquelchSet {
				scanner.Squelch = scan.Squelch
			}
			if scan.Peak {
				err = scanner.PeakScan(ctx, scan.Range)
			} else {
				err = scanner.Scan(ctx, scan.Range)
			}
			if err != nil {
				if errors.Is(err, ErrUserCommandTerminate) || errors.Is(err, context.Canceled) {
					err = nil
					return
				} else if errors.Is(err, ErrUserCommandNextScan) {
					log.Infow("next scan")
					err = nil
					continue
				} else {
					return
				}
			}
		}
		if err = ctx.Err(); err != nil {
			return nil
		}
	}
}
