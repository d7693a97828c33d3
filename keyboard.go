// scanner using gqrx remote control
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/eiannone/keyboard"
	"go.uber.org/zap"
)

var waitPaused = 100 * time.Millisecond

// custom errors to pass user commands
var ErrUserCommandNextScan = errors.New("user command nextscan")
var ErrUserCommandTerminate = errors.New("user command terminate")

type userCommands struct {
	togglePause atomic.Bool
	nextScan    atomic.Bool
	terminate   atomic.Bool

	sleep sleepFunc
}

func newUserCommands() *userCommands {
	return &userCommands{sleep: sleepContext}
}

func (u *userCommands) getKeyPresses(log *zap.SugaredLogger) {
	for {
		char, key, err := keyboard.GetKey()
		if err != nil {
			log.Errorw("keyboard", "error", err)
			u.terminate.Store(true)
			break
		}
		if key == keyboard.KeyCtrlC || char == 'q' || char == 'Q' {
			u.terminate.Store(true)
			break
		} else if key == keyboard.KeySpace {
			u.togglePause.Store(true)
		} else if char == 'n' || char == 'N' {
			u.nextScan.Store(true)
		}
	}
}

// hold is called by the scanner before every step; it blocks while the scan
// is paused
func (u *userCommands) hold(ctx context.Context) error {
	paused := false
	for {
		if u.terminate.Swap(false) {
			return ErrUserCommandTerminate
		}
		if u.nextScan.Swap(false) {
			return ErrUserCommandNextScan
		}
		if u.togglePause.Swap(false) {
			paused = !paused
		}
		if !paused {
			return nil
		}
		if err := u.sleep(ctx, waitPaused); err != nil {
			return err
		}
	}
}
