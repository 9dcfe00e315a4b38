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

// Package accuracy masks known genotypes down to low read depths and
// scores predictions for the masked genotypes against the truth.
package accuracy

import (
	"log"
	"sort"

	"github.com/exascience/pargo/parallel"

	"github.com/exascience/elimpute/correlation"
	"github.com/exascience/elimpute/genotype"
)

type counts struct {
	correct, total int
}

func (c *counts) add(correct bool) {
	c.total++
	if correct {
		c.correct++
	}
}

func (c *counts) merge(other counts) {
	c.correct += other.correct
	c.total += other.total
}

func (c counts) accuracy() float64 {
	if c.total == 0 {
		return -1
	}
	return float64(c.correct) / float64(c.total)
}

type depthGenotype struct {
	depth    int
	genotype genotype.Call
}

// Stats aggregates correct and total counts of predictions, bucketed by
// read depth, by true genotype, and by both. A Stats value is read-only
// once it is returned by NewStats.
type Stats struct {
	overall         counts
	byGenotype      [genotype.NofClasses]counts
	byDepth         map[int]counts
	byDepthGenotype map[depthGenotype]counts
	table           correlation.Table
	missing         int
}

func newStats() *Stats {
	return &Stats{
		byDepth:         make(map[int]counts),
		byDepthGenotype: make(map[depthGenotype]counts),
	}
}

func (s *Stats) add(truth, predicted genotype.Call, depth int) {
	if !truth.Valid() {
		log.Panicf("true genotype %v is not a valid genotype", truth)
	}
	correct := truth == predicted
	s.overall.add(correct)
	s.byGenotype[truth].add(correct)
	c := s.byDepth[depth]
	c.add(correct)
	s.byDepth[depth] = c
	key := depthGenotype{depth, truth}
	c = s.byDepthGenotype[key]
	c.add(correct)
	s.byDepthGenotype[key] = c
	if predicted == genotype.Missing {
		s.missing++
	} else {
		s.table[truth][predicted]++
	}
}

func (s *Stats) merge(other *Stats) {
	s.overall.merge(other.overall)
	for g := range s.byGenotype {
		s.byGenotype[g].merge(other.byGenotype[g])
	}
	for d, c := range other.byDepth {
		own := s.byDepth[d]
		own.merge(c)
		s.byDepth[d] = own
	}
	for k, c := range other.byDepthGenotype {
		own := s.byDepthGenotype[k]
		own.merge(c)
		s.byDepthGenotype[k] = own
	}
	s.table.Merge(other.table)
	s.missing += other.missing
}

// NewStats scores the predicted calls against the true calls. truth and
// predicted must be aligned, and depths holds the read depth used for
// each prediction.
func NewStats(truth, predicted []genotype.SingleCall, depths []int) *Stats {
	genotype.CheckAligned(truth, predicted)
	if len(depths) != len(truth) {
		log.Panicf("%v depths for %v genotypes", len(depths), len(truth))
	}
	return parallel.RangeReduce(0, len(truth), 0, func(low, high int) interface{} {
		s := newStats()
		for i := low; i < high; i++ {
			s.add(truth[i].Call, predicted[i].Call, depths[i])
		}
		return s
	}, func(x, y interface{}) interface{} {
		s := x.(*Stats)
		s.merge(y.(*Stats))
		return s
	}).(*Stats)
}

// Accuracy returns the overall fraction of correct predictions, or -1 if
// there are none.
func (s *Stats) Accuracy() float64 {
	return s.overall.accuracy()
}

// Correct returns the number of correct predictions.
func (s *Stats) Correct() int {
	return s.overall.correct
}

// Total returns the number of predictions.
func (s *Stats) Total() int {
	return s.overall.total
}

// Missing returns the number of predictions without a call.
func (s *Stats) Missing() int {
	return s.missing
}

// DepthAccuracy returns the accuracy for genotypes at the given depth,
// or -1 if there are none.
func (s *Stats) DepthAccuracy(depth int) float64 {
	return s.byDepth[depth].accuracy()
}

// DepthCounts returns the correct and total counts at the given depth.
func (s *Stats) DepthCounts(depth int) (correct, total int) {
	c := s.byDepth[depth]
	return c.correct, c.total
}

// GenotypeAccuracy returns the accuracy for genotypes whose true class
// is g, or -1 if there are none.
func (s *Stats) GenotypeAccuracy(g genotype.Call) float64 {
	if !g.Valid() {
		return -1
	}
	return s.byGenotype[g].accuracy()
}

// GenotypeCounts returns the correct and total counts for true class g.
func (s *Stats) GenotypeCounts(g genotype.Call) (correct, total int) {
	if !g.Valid() {
		return 0, 0
	}
	c := s.byGenotype[g]
	return c.correct, c.total
}

// DepthGenotypeAccuracy returns the accuracy for genotypes at the given
// depth whose true class is g, or -1 if there are none.
func (s *Stats) DepthGenotypeAccuracy(depth int, g genotype.Call) float64 {
	return s.byDepthGenotype[depthGenotype{depth, g}].accuracy()
}

// DepthGenotypeCounts returns the correct and total counts at the given
// depth for true class g.
func (s *Stats) DepthGenotypeCounts(depth int, g genotype.Call) (correct, total int) {
	c := s.byDepthGenotype[depthGenotype{depth, g}]
	return c.correct, c.total
}

// Depths returns the depths with at least one prediction, in ascending
// order.
func (s *Stats) Depths() []int {
	result := make([]int, 0, len(s.byDepth))
	for d := range s.byDepth {
		result = append(result, d)
	}
	sort.Ints(result)
	return result
}

// Correlation returns the squared Pearson correlation between the true
// and the predicted dosages. Predictions without a call are left out.
func (s *Stats) Correlation() float64 {
	return s.table.Pearson()
}
