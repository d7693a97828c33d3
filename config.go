// scanner using gqrx remote control
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"math"
	"time"

	"gopkg.in/ini.v1"
)

type Settings struct {
	Host             string
	Port             int
	Squelch          float64
	SettleTime       time.Duration
	DwellTime        time.Duration
	FineStep         int64
	SquelchIncrement float64
	StepOvershoot    float64
	MaxRefineSteps   int
	ResetStep        bool
	MaxErrors        int
	StrictMode       bool
}

type Scan struct {
	Range      ScanRange
	Peak       bool
	// Squelch overrides the default squelch when SquelchSet
	Squelch    float64
	SquelchSet bool
}

func defaultSettings() Settings {
	return Settings{
		Host:             defaultHost,
		Port:             defaultPort,
		Squelch:          defaultSquelch,
		SettleTime:       waitSettle,
		DwellTime:        waitDwell,
		FineStep:         defaultFineStep,
		SquelchIncrement: defaultSquelchIncrement,
		StepOvershoot:    defaultStepOvershoot,
		MaxRefineSteps:   defaultMaxRefineSteps,
		ResetStep:        true,
		MaxErrors:        defaultMaxConsecutiveErrors,
	}
}

func (settings Settings) parseMode(modeString string) (Mode, error) {
	if settings.StrictMode {
		return ParseModeStrict(modeString)
	}
	return ParseMode(modeString), nil
}

// checkModes rejects scans whose mode gqrx does not document when strict
// mode is on; the command line may turn it on after the file was read
func checkModes(settings Settings, scans []Scan) error {
	if !settings.StrictMode {
		return nil
	}
	for _, scan := range scans {
		if _, err := ParseModeStrict(scan.Range.Mode.String()); err != nil {
			return err
		}
	}
	return nil
}

// readConfigFile loads a configuration file
func readConfigFile(configFile string) (settings Settings, scans []Scan, err error) {
	return readConfig(configFile)
}

// readConfig loads the configuration from a file name or raw bytes
func readConfig(source interface{}) (settings Settings, scans []Scan, err error) {
	settings = defaultSettings()

	config, err := ini.LoadSources(
		ini.LoadOptions{
			AllowNonUniqueSections: true,
		},
		source,
	)
	if err != nil {
		return
	}
	config.BlockMode = false
	defaultSection, err := config.GetSection("")
	if err != nil {
		return
	}

	err = readSettings(&settings, defaultSection)
	if err != nil {
		return
	}

	// scans may also come from the command line
	if !config.HasSection("scan") {
		return
	}
	scanSections, err := config.SectionsByName("scan")
	if err != nil {
		return
	}

	for _, section := range scanSections {
		var scan Scan
		scan, err = readScanSection(settings, section, defaultSection)
		if err != nil {
			return
		}
		scans = append(scans, scan)
	}
	return
}

func readSettings(settings *Settings, section *ini.Section) (err error) {
	host, ok, err := getStringConfigSetting("host", section, section)
	if err != nil {
		return
	}
	if ok {
		settings.Host = host
	}
	port, ok, err := getUint32ConfigSetting("port", section, section)
	if err != nil {
		return
	}
	if ok {
		if port == 0 || port > 65535 {
			err = fmt.Errorf("invalid port %d", port)
			return
		}
		settings.Port = int(port)
	}
	squelch, ok, err := getFloat64ConfigSetting("squelch", section, section)
	if err != nil {
		return
	}
	if ok {
		settings.Squelch = squelch
	}
	settleTimeMs, ok, err := getUint32ConfigSetting("settle time", section, section)
	if err != nil {
		return
	}
	if ok {
		settings.SettleTime = time.Duration(settleTimeMs) * time.Millisecond
	}
	dwellTimeMs, ok, err := getUint32ConfigSetting("dwell time", section, section)
	if err != nil {
		return
	}
	if ok {
		settings.DwellTime = time.Duration(dwellTimeMs) * time.Millisecond
	}
	fineStep, ok, err := getUint32ConfigSetting("fine step", section, section)
	if err != nil {
		return
	}
	if ok {
		if fineStep == 0 {
			err = fmt.Errorf("fine step must not be 0")
			return
		}
		settings.FineStep = int64(fineStep)
	}
	squelchIncrement, ok, err := getFloat64ConfigSetting("squelch increment", section, section)
	if err != nil {
		return
	}
	if ok {
		settings.SquelchIncrement = squelchIncrement
	}
	stepOvershoot, ok, err := getFloat64ConfigSetting("step overshoot", section, section)
	if err != nil {
		return
	}
	if ok {
		settings.StepOvershoot = stepOvershoot
	}
	maxRefineSteps, ok, err := getUint32ConfigSetting("max refine steps", section, section)
	if err != nil {
		return
	}
	if ok {
		settings.MaxRefineSteps = int(maxRefineSteps)
	}
	resetStep, ok, err := getBoolConfigSetting("reset step", section, section)
	if err != nil {
		return
	}
	if ok {
		settings.ResetStep = resetStep
	}
	maxErrors, ok, err := getUint32ConfigSetting("max errors", section, section)
	if err != nil {
		return
	}
	if ok {
		settings.MaxErrors = int(maxErrors)
	}
	strictMode, ok, err := getBoolConfigSetting("strict mode", section, section)
	if err != nil {
		return
	}
	if ok {
		settings.StrictMode = strictMode
	}
	return
}

func readScanSection(settings Settings, section *ini.Section, defaultSection *ini.Section) (scan Scan, err error) {
	if !section.HasKey("range") {
		err = fmt.Errorf("scan section should have a 'range' setting")
		return
	}
	freqRangeValues, err := section.Key("range").StrictFloat64s(",")
	if err != nil {
		err = fmt.Errorf("invalid range setting: %w", err)
		return
	}
	if len(freqRangeValues) != 2 {
		err = fmt.Errorf("range setting must have exactly two values")
		return
	}

	step := defaultStep
	stepUint, ok, err := getUint32ConfigSetting("step", section, defaultSection)
	if err != nil {
		return
	}
	if ok {
		step = int64(stepUint)
	}

	modeString, ok, err := getStringConfigSetting("mode", section, defaultSection)
	if err != nil {
		return
	}
	if !ok {
		err = fmt.Errorf("scan section should have a 'mode' setting")
		return
	}
	mode, err := settings.parseMode(modeString)
	if err != nil {
		return
	}

	scan.Range, err = NewScanRange(freqRangeValues[0], freqRangeValues[1], mode, step)
	if err != nil {
		return
	}

	laps, ok, err := getUint32ConfigSetting("laps", section, defaultSection)
	if err != nil {
		return
	}
	if ok {
		scan.Range.Laps = int(laps)
	}

	scan.Peak, _, err = getBoolConfigSetting("peak", section, defaultSection)
	if err != nil {
		return
	}

	// the default section squelch may still be overridden on the command line
	scan.Squelch, scan.SquelchSet, err = getFloat64ConfigSetting("squelch", section, section)
	return
}

// config file
func getStringConfigSetting(setting string, section *ini.Section, defaultSection *ini.Section) (value string, ok bool, err error) {
	if section.HasKey(setting) {
		value = section.Key(setting).String()
		ok = true
	} else if defaultSection.HasKey(setting) {
		value = defaultSection.Key(setting).String()
		ok = true
	}
	return
}

func getUint32ConfigSetting(setting string, section *ini.Section, defaultSection *ini.Section) (value uint32, ok bool, err error) {
	var valueUint uint
	if section.HasKey(setting) {
		valueUint, err = section.Key(setting).Uint()
		ok = true
	} else if defaultSection.HasKey(setting) {
		valueUint, err = defaultSection.Key(setting).Uint()
		ok = true
	}
	if err != nil {
		err = fmt.Errorf("invalid %s setting: %w", setting, err)
		return
	}
	if valueUint > math.MaxUint32 {
		err = fmt.Errorf("invalid %s setting: %d is out of range", setting, valueUint)
		return
	}
	value = uint32(valueUint)
	return
}

func getFloat64ConfigSetting(setting string, section *ini.Section, defaultSection *ini.Section) (value float64, ok bool, err error) {
	if section.HasKey(setting) {
		value, err = section.Key(setting).Float64()
		ok = true
	} else if defaultSection.HasKey(setting) {
		value, err = defaultSection.Key(setting).Float64()
		ok = true
	}
	if err != nil {
		err = fmt.Errorf("invalid %s setting: %w", setting, err)
	}
	return
}

func getBoolConfigSetting(setting string, section *ini.Section, defaultSection *ini.Section) (value bool, ok bool, err error) {
	if section.HasKey(setting) {
		value, err = section.Key(setting).Bool()
		ok = true
	} else if defaultSection.HasKey(setting) {
		value, err = defaultSection.Key(setting).Bool()
		ok = true
	}
	if err != nil {
		err = fmt.Errorf("invalid %s setting: %w", setting, err)
	}
	return
}
