// scanner using gqrx remote control
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"strings"
)

// Mode is a gqrx demodulator mode. Names gqrx does not know yet are kept
// verbatim in Name and passed through to the receiver unchanged.
type Mode struct {
	Kind DemodulatorMode
	Name string
}

type DemodulatorMode int

const (
	DemodulatorUnknown DemodulatorMode = iota
	DemodulatorOff
	DemodulatorRaw
	DemodulatorAM
	DemodulatorFM
	DemodulatorWFM
	DemodulatorWFMStereo
	DemodulatorLSB
	DemodulatorUSB
	DemodulatorCW
	DemodulatorCWL
	DemodulatorCWU
)

func (dm DemodulatorMode) String() string {
	switch dm {
	case DemodulatorUnknown:
		return "UNKNOWN"
	case DemodulatorOff:
		return "OFF"
	case DemodulatorRaw:
		return "RAW"
	case DemodulatorAM:
		return "AM"
	case DemodulatorFM:
		return "FM"
	case DemodulatorWFM:
		return "WFM"
	case DemodulatorWFMStereo:
		return "WFM_ST"
	case DemodulatorLSB:
		return "LSB"
	case DemodulatorUSB:
		return "USB"
	case DemodulatorCW:
		return "CW"
	case DemodulatorCWL:
		return "CWL"
	case DemodulatorCWU:
		return "CWU"
	default:
		return fmt.Sprintf("invalid demodulator mode: %d", int(dm))
	}
}

// ParseModeStrict accepts only the modes gqrx documents.
func ParseModeStrict(modeString string) (Mode, error) {
	var kind DemodulatorMode
	switch strings.ToUpper(strings.TrimSpace(modeString)) {
	case "OFF":
		kind = DemodulatorOff
	case "RAW":
		kind = DemodulatorRaw
	case "AM":
		kind = DemodulatorAM
	case "FM":
		kind = DemodulatorFM
	case "WFM":
		kind = DemodulatorWFM
	case "WFM_ST":
		kind = DemodulatorWFMStereo
	case "LSB":
		kind = DemodulatorLSB
	case "USB":
		kind = DemodulatorUSB
	case "CW":
		kind = DemodulatorCW
	case "CWL":
		kind = DemodulatorCWL
	case "CWU":
		kind = DemodulatorCWU
	default:
		return Mode{Name: modeString}, fmt.Errorf("invalid demodulator mode: %s", modeString)
	}
	return Mode{Kind: kind, Name: kind.String()}, nil
}

// ParseMode never fails: unknown names become a passthrough mode.
func ParseMode(modeString string) Mode {
	mode, err := ParseModeStrict(modeString)
	if err != nil {
		return Mode{Kind: DemodulatorUnknown, Name: strings.TrimSpace(modeString)}
	}
	return mode
}

func (m Mode) Known() bool {
	return m.Kind != DemodulatorUnknown
}

func (m Mode) String() string {
	if m.Kind == DemodulatorUnknown {
		return m.Name
	}
	return m.Kind.String()
}
