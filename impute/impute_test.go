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

package impute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/elimpute/caller"
	"github.com/exascience/elimpute/correlation"
	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/internal"
	"github.com/exascience/elimpute/progress"
)

const m = genotype.Missing

// snp 0 and snp 1 are in perfect LD, snp 2 is monomorphic
var (
	smallCalls = genotype.CallMatrix{
		{0, 0, 1},
		{0, 0, 1},
		{2, 2, 1},
		{2, m, 1},
	}
	smallNeighbours = correlation.Matrix{{1, 2}, {0, 2}, {0, 1}}
)

func TestNew(t *testing.T) {
	imp, err := New(Config{K: 5, L: 20, KnownDepth: 8, ZeroWeight: "caller"})
	require.NoError(t, err)
	if imp.Config() != (Config{K: 5, L: 20, KnownDepth: 8, ZeroWeight: "caller"}) {
		t.Error("Config failed")
	}
	if _, err := New(Config{K: 0, L: 20, ZeroWeight: "caller"}); err == nil {
		t.Error("New with invalid k failed")
	}
	if _, err := New(Config{K: 5, L: 20, KnownDepth: 0, ZeroWeight: "caller"}); err == nil {
		t.Error("New with zero knowndepth failed")
	}
	if _, err := New(Config{K: 5, L: 20, KnownDepth: 8, ZeroWeight: "ignore"}); err == nil {
		t.Error("New with invalid policy failed")
	}
	other := imp.WithKL(3, 4)
	if other.K != 3 || other.L != 4 || imp.K != 5 || other.KnownDepth != 8 {
		t.Error("WithKL failed")
	}
}

func TestImputeSingle(t *testing.T) {
	pos := genotype.Position{Sample: 3, SNP: 1}
	imp := &Imputer{K: 1, L: 1, KnownDepth: 8}
	if p := imp.ImputeSingle(nil, smallCalls, smallNeighbours, pos, genotype.ReadCounts{}, genotype.Uniform, false); p != genotype.OneHot(genotype.HomAlt) {
		t.Error("ImputeSingle with k=1 failed", p)
	}
	imp.K = 3
	p := imp.ImputeSingle(nil, smallCalls, smallNeighbours, pos, genotype.ReadCounts{}, genotype.Uniform, false)
	assert.InDelta(t, 0.4, p[genotype.HomRef], 1e-12)
	assert.InDelta(t, 0, p[genotype.Het], 1e-12)
	assert.InDelta(t, 0.6, p[genotype.HomAlt], 1e-12)
	assert.InDelta(t, 1, p.Sum(), 1e-12)
}

func TestKnownDepth(t *testing.T) {
	imp := &Imputer{K: 1, L: 1, KnownDepth: 8}
	pos := genotype.Position{Sample: 0, SNP: 2}
	if p := imp.ImputeSingle(nil, smallCalls, smallNeighbours, pos, genotype.ReadCounts{4, 4}, genotype.Uniform, false); p != genotype.OneHot(genotype.Het) {
		t.Error("known genotype failed")
	}
	pos.SNP = 0
	if p := imp.ImputeSingle(nil, smallCalls, smallNeighbours, pos, genotype.ReadCounts{10, 0}, genotype.Uniform, true); p != genotype.OneHot(genotype.HomRef) {
		t.Error("forced imputation failed", p)
	}
}

func TestZeroWeight(t *testing.T) {
	calls := genotype.CallMatrix{{0, m}, {1, m}, {2, m}}
	neighbours := correlation.Matrix{{1}, {0}}
	called := genotype.Probability{0.7, 0.2, 0.1}
	pos := genotype.Position{Sample: 1, SNP: 1}
	run := progress.New(nil)
	imp := &Imputer{K: 2, L: 1, KnownDepth: 8, ZeroWeight: ZeroWeightCaller}
	if imp.ImputeSingle(run, calls, neighbours, pos, genotype.ReadCounts{}, called, false) != called {
		t.Error("caller zero-weight policy failed")
	}
	imp.ZeroWeight = ZeroWeightUniform
	if imp.ImputeSingle(run, calls, neighbours, pos, genotype.ReadCounts{}, called, false) != genotype.Uniform {
		t.Error("uniform zero-weight policy failed")
	}
	if run.ZeroWeights() != 2 {
		t.Error("zero-weight count failed")
	}
	imp.ZeroWeight = ZeroWeightPanic
	defer func() {
		if recover() == nil {
			t.Error("panic zero-weight policy failed")
		}
	}()
	imp.ImputeSingle(run, calls, neighbours, pos, genotype.ReadCounts{}, called, false)
}

func TestNoOverlap(t *testing.T) {
	// sample 1 shares no called feature with sample 0, but still has a
	// call at the imputed SNP
	calls := genotype.CallMatrix{{0, m}, {m, 2}}
	imp := &Imputer{K: 1, L: 1, KnownDepth: 8}
	p := imp.ImputeSingle(nil, calls, correlation.Matrix{{1}, {0}}, genotype.Position{Sample: 0, SNP: 1}, genotype.ReadCounts{}, genotype.Uniform, false)
	if p != genotype.OneHot(genotype.HomAlt) {
		t.Error("no overlap failed", p)
	}
	if !(noOverlapDistance < selfDistance) {
		t.Error("distance sentinels failed")
	}
}

// ldData returns reads for samples that carry one latent genotype per
// block of SNPs, with a fraction of the genotypes without reads.
func ldData(rnd *internal.Rand, samples, blocks, blockSize int, missing float64) (genotype.ReadMatrix, genotype.CallMatrix) {
	reads := make(genotype.ReadMatrix, samples)
	truth := make(genotype.CallMatrix, samples)
	for s := range reads {
		reads[s] = make([]genotype.ReadCounts, blocks*blockSize)
		truth[s] = make([]genotype.Call, blocks*blockSize)
		for b := 0; b < blocks; b++ {
			g := genotype.Call(rnd.Intn(3))
			for i := 0; i < blockSize; i++ {
				snp := b*blockSize + i
				truth[s][snp] = g
				if rnd.Float64() < missing {
					continue
				}
				alt := int32(5 * g)
				reads[s][snp] = genotype.ReadCounts{10 - alt, alt}
			}
		}
	}
	return reads, truth
}

func TestImputeMatrix(t *testing.T) {
	reads, truth := ldData(internal.NewRand(3), 60, 4, 10, 0.1)
	called := caller.CallMatrix(nil, caller.LogBinomial{Error: 0.01, Bias: 0.5}, reads)
	imp := &Imputer{K: 5, L: 5, KnownDepth: 1, ZeroWeight: ZeroWeightUniform}
	imputed := imp.ImputeMatrix(nil, correlation.Pearson{}, called, reads)
	var correct, total int
	for s, row := range reads {
		for snp, r := range row {
			best, _ := imputed[s][snp].Best()
			if r.Depth() > 0 {
				if best != truth[s][snp] {
					t.Error("known genotype changed at", s, snp)
				}
				continue
			}
			total++
			if best == truth[s][snp] {
				correct++
			}
		}
	}
	require.NotZero(t, total)
	if acc := float64(correct) / float64(total); acc < 0.8 {
		t.Errorf("imputation accuracy %v too low", acc)
	}
}

func TestImputeList(t *testing.T) {
	reads, _ := ldData(internal.NewRand(5), 30, 3, 6, 0.2)
	called := caller.CallMatrix(nil, caller.LogBinomial{Error: 0.01, Bias: 0.5}, reads)
	calls := genotype.Calls(called, reads, 1, 0)
	neighbours := correlation.TopN(nil, correlation.Pearson{}, calls.BySNP(), 4)
	imp := &Imputer{K: 3, L: 4, KnownDepth: 1, ZeroWeight: ZeroWeightCaller}
	matrix := imp.ImputeMatrixWith(nil, calls, neighbours, called, reads)
	var positions []genotype.Position
	for s, row := range reads {
		for snp := range row {
			positions = append(positions, genotype.Position{Sample: s, SNP: snp})
		}
	}
	list := imp.ImputeList(nil, calls, neighbours, reads.List(positions), called.List(positions))
	for i, p := range list {
		if p.Pos() != positions[i] || p.Probability != matrix[p.Sample][p.SNP] {
			t.Error("ImputeList failed at", p.Position)
		}
	}
}

func TestTargets(t *testing.T) {
	imp := &Imputer{K: 1, L: 1, KnownDepth: 4}
	targets := imp.Targets(genotype.ReadMatrix{{{4, 0}, {1, 1}, {9, 0}}, {{2, 2}, {5, 0}, {0, 3}}})
	if targets.Test(0) || !targets.Test(1) || !targets.Test(2) {
		t.Error("Targets failed")
	}
}

func TestTargetsWithoutReads(t *testing.T) {
	reads := genotype.ReadMatrix{
		{{10, 0}, {10, 0}, {0, 10}, {0, 0}},
		{{10, 0}, {10, 0}, {0, 10}, {10, 0}},
		{{0, 10}, {0, 10}, {10, 0}, {0, 10}},
	}
	imp := &Imputer{K: 2, L: 2, KnownDepth: 0, ZeroWeight: ZeroWeightUniform}
	targets := imp.Targets(reads)
	if targets.Count() != 1 || !targets.Test(3) {
		t.Error("Targets for genotypes without reads failed")
	}
	called := caller.CallMatrix(nil, caller.LogBinomial{Error: 0.01, Bias: 0.5}, reads)
	calls := genotype.Calls(called, reads, 1, 0)
	neighbours := correlation.TopN(nil, correlation.Pearson{}, calls.BySNP(), 2)
	imputed := imp.ImputeMatrix(nil, correlation.Pearson{}, called, reads)
	assert.Equal(t, imp.ImputeMatrixWith(nil, calls, neighbours, called, reads), imputed)
	// sample 1 agrees with sample 0 on the SNPs in LD with SNP 3
	assert.InDelta(t, 1/1.2, imputed[0][3][genotype.HomRef], 1e-12)
	assert.InDelta(t, 0.2/1.2, imputed[0][3][genotype.HomAlt], 1e-12)
}
