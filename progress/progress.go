// elImpute: a high-performance tool for calling and imputing genotypes.
// Copyright (c) 2024 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elimpute/blob/master/LICENSE.txt>.

// Package progress provides the run handle that is passed explicitly
// through all stages of a computation. It carries the logger, a run
// identifier, and counters that may be incremented concurrently.
package progress

import (
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// A Run is created at the start of a computation and discarded at its
// end. All methods may be called on a nil *Run, in which case they do
// nothing.
type Run struct {
	ID     uuid.UUID
	Logger *log.Logger

	start    time.Time
	done     int64
	total    int64
	zeroWgts int64
}

// New creates a run handle that logs to the given logger. If logger is
// nil, log messages are discarded.
func New(logger *log.Logger) *Run {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Run{
		ID:     uuid.New(),
		Logger: logger,
		start:  time.Now(),
	}
}

// Printf logs a message on the run's logger.
func (r *Run) Printf(format string, v ...interface{}) {
	if r == nil {
		return
	}
	r.Logger.Printf(format, v...)
}

// Println logs a message on the run's logger.
func (r *Run) Println(v ...interface{}) {
	if r == nil {
		return
	}
	r.Logger.Println(v...)
}

// Start resets the progress counter for a new stage of total steps.
func (r *Run) Start(stage string, total int) {
	if r == nil {
		return
	}
	atomic.StoreInt64(&r.done, 0)
	atomic.StoreInt64(&r.total, int64(total))
	r.Logger.Printf("%v: %v steps", stage, total)
}

// Step records n completed steps. It is safe to call concurrently.
func (r *Run) Step(n int) {
	if r == nil {
		return
	}
	atomic.AddInt64(&r.done, int64(n))
}

// Progress returns the number of completed steps and the total of the
// current stage.
func (r *Run) Progress() (done, total int64) {
	if r == nil {
		return 0, 0
	}
	return atomic.LoadInt64(&r.done), atomic.LoadInt64(&r.total)
}

// ZeroWeight records that an imputation found no informative neighbor.
func (r *Run) ZeroWeight() {
	if r == nil {
		return
	}
	atomic.AddInt64(&r.zeroWgts, 1)
}

// ZeroWeights returns the number of imputations that found no
// informative neighbor.
func (r *Run) ZeroWeights() int64 {
	if r == nil {
		return 0
	}
	return atomic.LoadInt64(&r.zeroWgts)
}

// Finish logs the elapsed time of the run.
func (r *Run) Finish() {
	if r == nil {
		return
	}
	r.Logger.Printf("run %v finished, elapsed time: %v", r.ID, time.Since(r.start))
}
