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

package tune

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exascience/elimpute/accuracy"
	"github.com/exascience/elimpute/caller"
	"github.com/exascience/elimpute/combine"
	"github.com/exascience/elimpute/correlation"
	"github.com/exascience/elimpute/distribution"
	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/impute"
	"github.com/exascience/elimpute/internal"
	"github.com/exascience/elimpute/optimize"
	"github.com/exascience/elimpute/progress"
)

// blockReads returns deep read counts for samples that carry one latent
// genotype per block of SNPs.
func blockReads(rnd *internal.Rand, samples, blocks, blockSize int) genotype.ReadMatrix {
	reads := make(genotype.ReadMatrix, samples)
	for s := range reads {
		reads[s] = make([]genotype.ReadCounts, blocks*blockSize)
		for b := 0; b < blocks; b++ {
			g := int32(rnd.Intn(3))
			for i := 0; i < blockSize; i++ {
				depth := 30 + int32(rnd.Intn(10))
				alt := depth * g / 2
				reads[s][b*blockSize+i] = genotype.ReadCounts{depth - alt, alt}
			}
		}
	}
	return reads
}

func settings(t *testing.T) Settings {
	mask, err := accuracy.NewMask(accuracy.MaskConfig{Number: 150, MinDepth: 20, Method: "all"},
		distribution.NewComparable(map[int]int{0: 3, 1: 5, 2: 5, 3: 2}))
	require.NoError(t, err)
	imp, err := impute.New(impute.Config{K: 5, L: 5, KnownDepth: 8, ZeroWeight: "caller"})
	require.NoError(t, err)
	return Settings{
		Caller:            caller.LogBinomial{Error: 0.01, Bias: 0.5},
		Similarity:        correlation.Pearson{},
		Imputer:           imp,
		Combiner:          combine.MaxDepth{MaxDepth: 8, Weight: 0.5},
		Mask:              mask,
		ImputerOptimizer:  optimize.Descent{Min: []int{1, 1}, Max: []int{20, 20}, Step: 4},
		CombinerOptimizer: optimize.Grid{Min: 0, Max: 1, Interval: 0.25},
		Objective:         Accuracy,
		MaxL:              20,
	}
}

func TestParseObjective(t *testing.T) {
	for _, name := range []string{"accuracy", "correlation"} {
		o, err := ParseObjective(name)
		if err != nil || o.String() != name {
			t.Errorf("ParseObjective %v failed", name)
		}
	}
	if _, err := ParseObjective("f1"); err == nil {
		t.Error("ParseObjective unknown failed")
	}
}

func TestPrepare(t *testing.T) {
	rnd := internal.NewRand(31)
	reads := blockReads(rnd, 40, 3, 8)
	s := settings(t)
	called := caller.CallMatrix(nil, s.Caller, reads)
	d, err := Prepare(nil, s.Caller, s.Similarity, reads, called, s.Mask, rnd, 10)
	require.NoError(t, err)
	if len(d.Masked) != 150 || len(d.Truth) != 150 || len(d.Called) != 150 {
		t.Error("Prepare sizes failed")
	}
	for i, m := range d.Masked {
		if d.Truth[i].Pos() != m.Position || !d.Truth[i].Call.Valid() {
			t.Error("Prepare truth failed")
		}
		if d.Reads[m.Sample][m.SNP] != m.Masked || reads[m.Sample][m.SNP] != m.Original {
			t.Error("Prepare reads failed")
		}
		if d.Called[i].Probability != s.Caller.CallSingle(m.Masked) {
			t.Error("Prepare calls failed")
		}
		if d.Neighbours[m.SNP] == nil {
			t.Error("Prepare neighbours failed")
		}
		if m.Masked.Depth() == 0 && d.Calls[m.Sample][m.SNP] != genotype.Missing {
			t.Error("Prepare hard calls failed")
		}
	}
	// list mode must agree with matrix mode on the masked reads
	probs := make(genotype.ProbabilityMatrix, len(called))
	for i, row := range called {
		probs[i] = append([]genotype.Probability(nil), row...)
	}
	for _, p := range d.Called {
		probs[p.Sample][p.SNP] = p.Probability
	}
	imputed := d.Impute(nil, s.Imputer)
	matrix := s.Imputer.ImputeMatrixWith(nil, d.Calls, d.Neighbours, probs, d.Reads)
	for _, p := range imputed {
		if p.Probability != matrix[p.Sample][p.SNP] {
			t.Error("list and matrix imputation differ at", p.Position)
		}
	}
}

func TestOptimize(t *testing.T) {
	rnd := internal.NewRand(37)
	reads := blockReads(rnd, 50, 4, 6)
	s := settings(t)
	called := caller.CallMatrix(nil, s.Caller, reads)
	d, err := Prepare(nil, s.Caller, s.Similarity, reads, called, s.Mask, rnd, 20)
	require.NoError(t, err)
	start := s.Objective.Score(d.Score(d.Impute(nil, s.Imputer)))
	imp, score := OptimizeImputer(nil, d, s.Imputer, s.ImputerOptimizer, s.Objective)
	if score < start {
		t.Error("OptimizeImputer made things worse")
	}
	if imp.K < 1 || imp.K > 20 || imp.L < 1 || imp.L > 20 || imp.KnownDepth != s.Imputer.KnownDepth {
		t.Error("OptimizeImputer parameters failed")
	}
	if score <= 1.0/3 {
		t.Errorf("imputation accuracy %v no better than guessing", score)
	}
	imputed := d.Impute(nil, imp)
	comb, combined := OptimizeCombiner(nil, d, imputed, s.Combiner, s.CombinerOptimizer, s.Objective)
	if comb.MaxDepth != s.Combiner.MaxDepth || comb.Weight < 0 || comb.Weight > 1 {
		t.Error("OptimizeCombiner parameters failed")
	}
	// weight 1 reproduces the imputed probabilities
	if combined < score {
		t.Error("OptimizeCombiner made things worse")
	}
}

func TestValidate(t *testing.T) {
	reads := blockReads(internal.NewRand(41), 50, 4, 6)
	run := progress.New(nil)
	result, err := Validate(run, settings(t), reads, internal.NewRand(43))
	require.NoError(t, err)
	for _, s := range []*accuracy.Stats{result.CalledStats, result.ImputedStats, result.CombinedStats} {
		if s.Total() != 150 {
			t.Error("Validate totals failed")
		}
	}
	if result.ImputedStats.Accuracy() <= 1.0/3 || result.CombinedStats.Accuracy() <= 1.0/3 {
		t.Error("Validate accuracy failed")
	}
	if result.Imputer.KnownDepth != 8 || result.Combiner.MaxDepth != 8 {
		t.Error("Validate changed untuned parameters")
	}
}

func TestMaskReproducible(t *testing.T) {
	reads := blockReads(internal.NewRand(47), 20, 2, 5)
	s := settings(t)
	called := caller.CallMatrix(nil, s.Caller, reads)
	d1, err := Prepare(nil, s.Caller, s.Similarity, reads, called, s.Mask, internal.NewRand(5), 4)
	require.NoError(t, err)
	d2, err := Prepare(nil, s.Caller, s.Similarity, reads, called, s.Mask, internal.NewRand(5), 4)
	require.NoError(t, err)
	require.Equal(t, d1.Masked, d2.Masked)
	require.Equal(t, d1.Truth, d2.Truth)
}

func TestValidateNoEligible(t *testing.T) {
	reads := genotype.ReadMatrix{{{1, 1}, {2, 0}}, {{0, 1}, {3, 3}}}
	if _, err := Validate(nil, settings(t), reads, internal.NewRand(1)); err == nil {
		t.Error("Validate without eligible genotypes failed")
	}
}
