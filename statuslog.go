// scanner using gqrx remote control
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/crypto/ssh/terminal"
)

var statusLogInterval = 150 * time.Millisecond

var eraseLine = fmt.Sprintf("\r%c[2K", 0x1b)

type statusLogStruct struct {
	mutex sync.Mutex
	out   io.Writer

	// status line is only drawn on a terminal
	interactive bool
	cols        int
	lastUpdate  time.Time
	lineShown   bool

	labels         Labels
	labelTolerance int64
	foundColor     *color.Color
	now            func() time.Time
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newStatusLog(out *os.File, interactive bool, labels Labels, labelTolerance int64) *statusLogStruct {
	s := newStatusLogWriter(out, interactive, labels, labelTolerance)
	if interactive {
		if cols, _, err := terminal.GetSize(int(out.Fd())); err == nil {
			s.cols = cols
		}
	}
	return s
}

func newStatusLogWriter(out io.Writer, interactive bool, labels Labels, labelTolerance int64) *statusLogStruct {
	return &statusLogStruct{
		out:            out,
		interactive:    interactive,
		labels:         labels,
		labelTolerance: labelTolerance,
		foundColor:     color.New(color.FgHiGreen, color.Bold),
		now:            time.Now,
	}
}

// reportTune redraws the status line with the frequency just measured
func (s *statusLogStruct) reportTune(frequency int64, level float64) {
	if !s.interactive {
		return
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	if now.Sub(s.lastUpdate) < statusLogInterval {
		return
	}
	s.lastUpdate = now

	line := fmt.Sprintf("scanning f=%d (%.5fMHz) pwr=%.1fdB", frequency, ReceiverUnitsToMHz(frequency), level)
	if s.cols > 0 && len(line) > s.cols-1 {
		line = line[:s.cols-1]
	}
	fmt.Fprint(s.out, eraseLine+line)
	s.lineShown = true
}

// reportDiscovery prints one line per discovery
func (s *statusLogStruct) reportDiscovery(discovery Discovery) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.lineShown {
		fmt.Fprint(s.out, eraseLine)
		s.lineShown = false
	}
	s.foundColor.Fprintln(s.out, formatDiscovery(discovery, s.labels, s.labelTolerance))
}

func formatDiscovery(discovery Discovery, labels Labels, labelTolerance int64) string {
	var fields []string
	fields = append(fields, discovery.Time.Format("2006/01/02 15:04:05"))
	fields = append(fields, "found")
	fields = append(fields, fmt.Sprintf("f=%d", discovery.Frequency))
	fields = append(fields, fmt.Sprintf("(%.5fMHz)", ReceiverUnitsToMHz(discovery.Frequency)))
	if label, ok := labels.Lookup(discovery.Frequency, labelTolerance); ok {
		fields = append(fields, fmt.Sprintf("l=%s", label))
	}
	fields = append(fields, fmt.Sprintf("pwr=%.1fdB", discovery.Level))
	fields = append(fields, fmt.Sprintf("sql=%.1fdB", discovery.Squelch))
	return strings.Join(fields, " ")
}
