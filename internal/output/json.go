// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package output provides machine-readable output for the ghbatch CLI.
//
// Commands run with --json print a single document with JSON. The upload
// command additionally streams one compact object per line through an
// EventWriter so that wrappers can follow batches as they are committed:
//
//	events := output.NewEventWriter(os.Stdout)
//	sched.OnBatch = func(r upload.BatchReport) {
//	    _ = events.Emit("batch", r)
//	}
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// JSON writes data as indented JSON to stdout.
func JSON(data any) error {
	return JSONTo(os.Stdout, data)
}

// JSONTo writes data as indented JSON to w.
func JSONTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// JSONCompactTo writes data as a single line of JSON to w.
func JSONCompactTo(w io.Writer, data any) error {
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// Event is one line of an event stream.
type Event struct {
	Event string    `json:"event"`
	Time  time.Time `json:"time"`
	Data  any       `json:"data,omitempty"`
}

// EventWriter emits newline-delimited JSON events. It is safe for
// concurrent use.
type EventWriter struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewEventWriter returns an EventWriter that writes to w.
func NewEventWriter(w io.Writer) *EventWriter {
	return &EventWriter{w: w, now: time.Now}
}

// Emit writes a single event line.
func (e *EventWriter) Emit(name string, data any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return JSONCompactTo(e.w, Event{Event: name, Time: e.now().UTC(), Data: data})
}
