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

package correlation

import (
	"math"
	"sync"
)

// A TopQueue retains the entries with the highest values seen so far,
// up to a fixed capacity, in descending order of value. On equal values
// the entry with the lower index ranks higher, so the retained entries
// do not depend on the order in which they are added. NaN values are
// never retained.
//
// Add may be called concurrently.
type TopQueue struct {
	mutex   sync.Mutex
	entries []int
	values  []float64
	size    int
}

// NewTopQueue returns an empty TopQueue with the given capacity.
func NewTopQueue(top int) *TopQueue {
	return &TopQueue{
		entries: make([]int, top),
		values:  make([]float64, top),
	}
}

// ranksBefore reports whether entry with value ranks before position i.
func (q *TopQueue) ranksBefore(entry int, value float64, i int) bool {
	return value > q.values[i] || (value == q.values[i] && entry < q.entries[i])
}

// Add inserts entry with the given value if the queue is not full or if
// it ranks before the current minimum, which is then evicted. It reports
// whether the entry was inserted.
func (q *TopQueue) Add(entry int, value float64) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	capacity := len(q.values)
	if capacity == 0 || math.IsNaN(value) {
		return false
	}
	if q.size == capacity && !q.ranksBefore(entry, value, capacity-1) {
		return false
	}
	i := 0
	for i < q.size && !q.ranksBefore(entry, value, i) {
		i++
	}
	end := q.size
	if end == capacity {
		end--
	}
	copy(q.entries[i+1:end+1], q.entries[i:end])
	copy(q.values[i+1:end+1], q.values[i:end])
	q.entries[i] = entry
	q.values[i] = value
	if q.size < capacity {
		q.size++
	}
	return true
}

// Entries returns the retained entries in descending order of value.
func (q *TopQueue) Entries() []int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return append([]int(nil), q.entries[:q.size]...)
}

// Values returns the values of the retained entries, aligned with
// Entries.
func (q *TopQueue) Values() []float64 {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return append([]float64(nil), q.values[:q.size]...)
}
