// scanner using gqrx remote control
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Labels maps frequencies in receiver units to station names.
type Labels map[int64]string

func readLabelFile(labelFile string) (labels Labels, err error) {
	var file *os.File
	file, err = os.Open(labelFile)
	if err != nil {
		return
	}
	defer file.Close()
	return readLabels(file)
}

func readLabels(r io.Reader) (labels Labels, err error) {
	labels = make(Labels)

	reader := csv.NewReader(r)
	reader.Comment = '#'

	for {
		var record []string
		record, err = reader.Read()
		if err == io.EOF {
			err = nil
			break
		}
		if err != nil {
			return
		}
		if len(record) != 2 {
			err = fmt.Errorf("invalid label record: %v", record)
			return
		}
		var key int64
		key, err = strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil {
			return
		}
		label := strings.TrimSpace(record[1])
		currentLabel, ok := labels[key]
		if ok {
			labels[key] = currentLabel + "|" + label
		} else {
			labels[key] = label
		}
	}
	return
}

// Lookup returns the label closest to frequency, at most tolerance away.
func (labels Labels) Lookup(frequency int64, tolerance int64) (label string, ok bool) {
	if label, ok = labels[frequency]; ok {
		return
	}
	best := tolerance + 1
	for key, value := range labels {
		distance := max(key-frequency, frequency-key)
		if distance < best || (distance == best && value < label) {
			best = distance
			label = value
			ok = true
		}
	}
	return
}
