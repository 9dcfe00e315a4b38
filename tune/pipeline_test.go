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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/elimpute/caller"
	"github.com/exascience/elimpute/combine"
	"github.com/exascience/elimpute/correlation"
	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/impute"
	"github.com/exascience/elimpute/progress"
)

// 3 samples, 4 SNPs: SNP 0, 1 and 3 are in LD, SNP 2 is heterozygous in
// every sample.
var pipelineReads = genotype.ReadMatrix{
	{{10, 0}, {10, 0}, {5, 5}, {0, 0}},
	{{0, 10}, {0, 10}, {5, 5}, {0, 10}},
	{{10, 0}, {0, 0}, {5, 5}, {10, 0}},
}

const monomorphicSNP = 2

func checkSums(t *testing.T, name string, probs genotype.ProbabilityMatrix) {
	for s, row := range probs {
		for snp, p := range row {
			assert.InDelta(t, 1, p.Sum(), 1e-9, "%v probability at sample %v, snp %v", name, s, snp)
		}
	}
}

func TestPipeline(t *testing.T) {
	run := progress.New(nil)
	c, err := caller.New(caller.Config{Method: "log-binomial", Error: 0.01, Bias: 0.5})
	require.NoError(t, err)
	sim, err := correlation.New("pearson")
	require.NoError(t, err)
	imp, err := impute.New(impute.Config{K: 2, L: 3, KnownDepth: 8, ZeroWeight: "uniform"})
	require.NoError(t, err)
	comb, err := combine.New(combine.Config{Method: "max-depth", MaxDepth: 8, Weight: 0.5})
	require.NoError(t, err)

	called := caller.CallMatrix(run, c, pipelineReads)
	calls := genotype.Calls(called, pipelineReads, 1, 0)
	bySNP := calls.BySNP()
	for snp, row := range correlation.TopN(run, sim, bySNP, 3) {
		for _, other := range row {
			if (snp == monomorphicSNP || other == monomorphicSNP) && sim.Calculate(bySNP[snp], bySNP[other]) > 0 {
				t.Error("monomorphic SNP with positive similarity for snp", snp)
			}
		}
	}
	if sim.Calculate(bySNP[0], bySNP[monomorphicSNP]) != 0 {
		t.Error("monomorphic similarity failed")
	}

	imputed := imp.ImputeMatrix(run, sim, called, pipelineReads)
	combined := combine.CombineMatrix(comb, called, imputed, pipelineReads)
	checkSums(t, "called", called)
	checkSums(t, "imputed", imputed)
	checkSums(t, "combined", combined)

	if best, _ := imputed[0][3].Best(); best != genotype.HomRef {
		t.Error("imputation of sample 0 failed", imputed[0][3])
	}
	if best, _ := imputed[2][1].Best(); best != genotype.HomRef {
		t.Error("imputation of sample 2 failed", imputed[2][1])
	}
	if combined[1][0] != called[1][0] {
		t.Error("deep genotype changed by combining")
	}
}
