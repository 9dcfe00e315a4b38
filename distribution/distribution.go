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

// Package distribution implements immutable frequency distributions over
// discrete values.
package distribution

import (
	"log"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"

	"github.com/exascience/elimpute/internal"
)

// Distribution is an immutable multiset of discrete values.
type Distribution[V comparable] struct {
	counts map[V]int
	total  int
}

// New creates a distribution from a map of value counts. Entries with a
// count of zero or less are ignored.
func New[V comparable](counts map[V]int) *Distribution[V] {
	d := &Distribution[V]{counts: make(map[V]int, len(counts))}
	for v, n := range counts {
		if n > 0 {
			d.counts[v] = n
			d.total += n
		}
	}
	return d
}

// FromValues creates a distribution from a list of observed values.
func FromValues[V comparable](values []V) *Distribution[V] {
	counts := make(map[V]int)
	for _, v := range values {
		counts[v]++
	}
	return New(counts)
}

// Count returns how often v occurs.
func (d *Distribution[V]) Count(v V) int {
	return d.counts[v]
}

// Total returns the number of observations.
func (d *Distribution[V]) Total() int {
	return d.total
}

// Proportion returns the fraction of observations equal to v, or 0 for
// an empty distribution.
func (d *Distribution[V]) Proportion(v V) float64 {
	if d.total == 0 {
		return 0
	}
	return float64(d.counts[v]) / float64(d.total)
}

// Values returns the distinct values in unspecified order.
func (d *Distribution[V]) Values() []V {
	result := make([]V, 0, len(d.counts))
	for v := range d.counts {
		result = append(result, v)
	}
	return result
}

// Comparable is a distribution over ordered values. It additionally
// supports slicing by value range and sampling.
type Comparable[V constraints.Ordered] struct {
	Distribution[V]
	values []V // sorted ascending
}

// NewComparable creates a comparable distribution from value counts.
func NewComparable[V constraints.Ordered](counts map[V]int) *Comparable[V] {
	c := &Comparable[V]{Distribution: *New(counts)}
	c.values = c.Distribution.Values()
	slices.Sort(c.values)
	return c
}

// Values returns the distinct values in ascending order.
func (c *Comparable[V]) Values() []V {
	return append([]V(nil), c.values...)
}

// LimitTo returns the distribution restricted to values in the closed
// range [lower, upper].
func (c *Comparable[V]) LimitTo(lower, upper V) *Comparable[V] {
	counts := make(map[V]int)
	for _, v := range c.values {
		if v >= lower && v <= upper {
			counts[v] = c.counts[v]
		}
	}
	return NewComparable(counts)
}

// Sample draws a value with probability proportional to its count.
func (c *Comparable[V]) Sample(rnd *internal.Rand) V {
	if c.total == 0 {
		log.Panic("cannot sample from an empty distribution")
	}
	r := rnd.Intn(c.total)
	for _, v := range c.values {
		if r -= c.counts[v]; r < 0 {
			return v
		}
	}
	log.Panic("distribution counts are inconsistent")
	var v V
	return v
}
