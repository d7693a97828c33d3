// scanner using gqrx remote control
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pborman/getopt"
)

var (
	verboseLog   bool
	quietLog     bool
	hostArg      string
	portArg      uint16
	squelchArg   string
	configFile   string
	labelFile    string
	modeArg      string
	minArg       string
	maxArg       string
	stepArg      int64
	peakArg      bool
	lapsArg      int
	strictModeOn bool
)

func getAboutStr() string {
	return "gqrx-scanner - scan frequency ranges through the gqrx remote control interface"
}

func parseArgs() {
	h := getopt.BoolLong("help", 'h', "display help")
	v := getopt.BoolLong("verbose", 'v', "Enable verbose (debug) logging")
	q := getopt.BoolLong("quiet", 'q', "Only log errors")
	H := getopt.StringLong("host", 'H', "", "gqrx remote control host (default "+defaultHost+")")
	p := getopt.Uint16Long("port", 'p', 0, fmt.Sprintf("gqrx remote control port (default %d)", defaultPort))
	s := getopt.StringLong("squelch", 's', "", fmt.Sprintf("Squelch threshold in dBFS (default %g)", defaultSquelch))
	c := getopt.StringLong("conf", 'c', "", "Scanner configuration file")
	l := getopt.StringLong("labels", 'l', "", "CSV file with frequency labels")
	m := getopt.StringLong("mode", 'm', "WFM_ST", "Demodulator mode")
	minFreq := getopt.StringLong("min", 0, "", "Scan start frequency in MHz")
	maxFreq := getopt.StringLong("max", 0, "", "Scan end frequency in MHz")
	S := getopt.Int64Long("step", 'S', defaultStep, "Scan step in receiver units")
	P := getopt.BoolLong("peak", 'P', "Seek the peak of every detected signal")
	n := getopt.IntLong("laps", 'n', 0, "Sweeps before moving to the next scan, 0 for endless")
	x := getopt.BoolLong("strict", 'x', "Reject demodulator modes gqrx does not document")

	getopt.Parse()

	if *h || (*q && *v) || (*c == "" && (*minFreq == "" || *maxFreq == "")) {
		fmt.Println(getAboutStr())
		getopt.Usage()
		os.Exit(1)
	}

	if *s != "" {
		if _, err := strconv.ParseFloat(*s, 64); err != nil {
			fmt.Println("invalid squelch: can't parse", *s)
			os.Exit(1)
		}
	}

	verboseLog = *v
	quietLog = *q
	hostArg = *H
	portArg = *p
	squelchArg = *s
	configFile = *c
	labelFile = *l
	modeArg = *m
	minArg = *minFreq
	maxArg = *maxFreq
	stepArg = *S
	peakArg = *P
	lapsArg = *n
	strictModeOn = *x
}

// applyArgs lets the command line override the configuration file
func applyArgs(settings *Settings) (scans []Scan, err error) {
	if hostArg != "" {
		settings.Host = hostArg
	}
	if portArg != 0 {
		settings.Port = int(portArg)
	}
	if squelchArg != "" {
		settings.Squelch, err = strconv.ParseFloat(squelchArg, 64)
		if err != nil {
			return
		}
	}
	if strictModeOn {
		settings.StrictMode = true
	}
	if minArg == "" || maxArg == "" {
		return
	}

	var minMHz, maxMHz float64
	minMHz, err = strconv.ParseFloat(minArg, 64)
	if err != nil {
		err = fmt.Errorf("invalid min frequency %q: %w", minArg, err)
		return
	}
	maxMHz, err = strconv.ParseFloat(maxArg, 64)
	if err != nil {
		err = fmt.Errorf("invalid max frequency %q: %w", maxArg, err)
		return
	}
	mode, err := settings.parseMode(modeArg)
	if err != nil {
		return
	}
	scanRange, err := NewScanRange(minMHz, maxMHz, mode, stepArg)
	if err != nil {
		return
	}
	scanRange.Laps = lapsArg
	err = scanRange.Validate()
	if err != nil {
		return
	}
	scans = append(scans, Scan{
		Range: scanRange,
		Peak:  peakArg,
	})
	return
}
