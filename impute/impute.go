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

// Package impute implements LD-k-NN genotype imputation. A genotype is
// imputed from the calls of the samples that are most similar to its
// own sample, where similarity is measured only on the SNPs in highest
// linkage disequilibrium with the genotype's SNP.
package impute

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/exascience/pargo/parallel"

	"github.com/exascience/elimpute/correlation"
	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/progress"
)

// ZeroWeightPolicy determines the result of an imputation where none of
// the candidate neighbours has a call at the imputed SNP, so that the
// neighbour weights sum to zero.
type ZeroWeightPolicy int

// The available zero-weight policies.
const (
	// ZeroWeightCaller returns the caller's probability for the genotype.
	ZeroWeightCaller ZeroWeightPolicy = iota
	// ZeroWeightUniform returns the uniform distribution.
	ZeroWeightUniform
	// ZeroWeightPanic treats the situation as a fatal error.
	ZeroWeightPanic
)

var zeroWeightPolicies = map[string]ZeroWeightPolicy{
	"caller":  ZeroWeightCaller,
	"uniform": ZeroWeightUniform,
	"panic":   ZeroWeightPanic,
}

// ParseZeroWeightPolicy returns the policy with the given name.
func ParseZeroWeightPolicy(name string) (ZeroWeightPolicy, error) {
	if policy, ok := zeroWeightPolicies[name]; ok {
		return policy, nil
	}
	return 0, fmt.Errorf("unknown zero-weight policy %q", name)
}

func (policy ZeroWeightPolicy) String() string {
	for name, p := range zeroWeightPolicies {
		if p == policy {
			return name
		}
	}
	return fmt.Sprintf("ZeroWeightPolicy(%d)", int(policy))
}

// Distance sentinels. A sample compared with itself is strictly further
// away than a sample that shares no called SNP with it.
var (
	selfDistance      = math.MaxFloat64
	noOverlapDistance = math.Nextafter(math.MaxFloat64, 0)
)

// Config holds the imputer parameters as they appear in configuration
// files.
type Config struct {
	K          int    `yaml:"k"`
	L          int    `yaml:"l"`
	KnownDepth int    `yaml:"knowndepth"`
	ZeroWeight string `yaml:"zeroweight"`
}

// Imputer is an LD-k-NN imputer. K is the number of neighbours with a
// call that are averaged, L the number of most similar SNPs used to
// compute distances between samples, and genotypes with at least
// KnownDepth reads are not imputed.
type Imputer struct {
	K, L, KnownDepth int
	ZeroWeight       ZeroWeightPolicy
}

// New creates an imputer from its configuration.
func New(cfg Config) (*Imputer, error) {
	if cfg.K < 1 || cfg.L < 1 {
		return nil, fmt.Errorf("imputer k (%v) and l (%v) must be at least 1", cfg.K, cfg.L)
	}
	if cfg.KnownDepth < 1 {
		return nil, fmt.Errorf("imputer knowndepth %v must be at least 1", cfg.KnownDepth)
	}
	policy, err := ParseZeroWeightPolicy(cfg.ZeroWeight)
	if err != nil {
		return nil, err
	}
	return &Imputer{K: cfg.K, L: cfg.L, KnownDepth: cfg.KnownDepth, ZeroWeight: policy}, nil
}

// Config returns the configuration that recreates imp.
func (imp *Imputer) Config() Config {
	return Config{K: imp.K, L: imp.L, KnownDepth: imp.KnownDepth, ZeroWeight: imp.ZeroWeight.String()}
}

// WithKL returns a copy of imp with different K and L.
func (imp *Imputer) WithKL(k, l int) *Imputer {
	result := *imp
	result.K, result.L = k, l
	return &result
}

// workspace holds per-goroutine buffers.
type workspace struct {
	distances []float64
	order     []int
}

func newWorkspace(samples int) *workspace {
	return &workspace{
		distances: make([]float64, samples),
		order:     make([]int, samples),
	}
}

func abs(c genotype.Call) int {
	if c < 0 {
		return -int(c)
	}
	return int(c)
}

func (ws *workspace) computeDistances(calls genotype.CallMatrix, sample int, features []int) {
	own := calls[sample]
	for i, other := range calls {
		if i == sample {
			ws.distances[i] = selfDistance
			continue
		}
		var sum, count int
		for _, snp := range features {
			if a, b := own[snp], other[snp]; a != genotype.Missing && b != genotype.Missing {
				sum += abs(a - b)
				count++
			}
		}
		if count == 0 {
			ws.distances[i] = noOverlapDistance
		} else {
			ws.distances[i] = float64(sum)*float64(len(features))/float64(count) + 1
		}
	}
}

// impute computes the k-NN probability of the genotype at (sample, snp)
// and reports whether any neighbour contributed.
func (imp *Imputer) impute(ws *workspace, calls genotype.CallMatrix, features []int, sample, snp int) (p genotype.Probability, ok bool) {
	ws.computeDistances(calls, sample, features)
	for i := range ws.order {
		ws.order[i] = i
	}
	sort.SliceStable(ws.order, func(i, j int) bool {
		return ws.distances[ws.order[i]] < ws.distances[ws.order[j]]
	})
	var total float64
	used := 0
	for _, i := range ws.order {
		if used >= imp.K {
			break
		}
		if i == sample {
			continue
		}
		c := calls[i][snp]
		if c == genotype.Missing {
			continue
		}
		w := 1 / ws.distances[i]
		p[c] += w
		total += w
		used++
	}
	if total == 0 {
		return p, false
	}
	for c := range p {
		p[c] /= total
	}
	return p, true
}

func (imp *Imputer) single(run *progress.Run, ws *workspace, calls genotype.CallMatrix, neighbours correlation.Matrix, pos genotype.Position, reads genotype.ReadCounts, called genotype.Probability, force bool) genotype.Probability {
	if !force && reads.Depth() >= imp.KnownDepth {
		if c := calls[pos.Sample][pos.SNP]; c != genotype.Missing {
			return genotype.OneHot(c)
		}
	}
	features := neighbours.Top(pos.SNP, imp.L)
	if p, ok := imp.impute(ws, calls, features, pos.Sample, pos.SNP); ok {
		return p
	}
	run.ZeroWeight()
	switch imp.ZeroWeight {
	case ZeroWeightCaller:
		return called
	case ZeroWeightUniform:
		return genotype.Uniform
	default:
		log.Panicf("no informative neighbour for genotype %v", pos)
		return called
	}
}

// ImputeSingle imputes the genotype at pos. Unless force is set, a
// genotype with at least KnownDepth reads and a call keeps that call.
func (imp *Imputer) ImputeSingle(run *progress.Run, calls genotype.CallMatrix, neighbours correlation.Matrix, pos genotype.Position, reads genotype.ReadCounts, called genotype.Probability, force bool) genotype.Probability {
	return imp.single(run, newWorkspace(len(calls)), calls, neighbours, pos, reads, called, force)
}

// Targets returns the set of SNPs that have at least one genotype that
// is imputed: one with fewer than KnownDepth reads or without reads.
func (imp *Imputer) Targets(reads genotype.ReadMatrix) *bitset.BitSet {
	_, snps := reads.Dims()
	targets := bitset.New(uint(snps))
	for _, row := range reads {
		for snp, r := range row {
			if depth := r.Depth(); depth < imp.KnownDepth || depth == 0 {
				targets.Set(uint(snp))
			}
		}
	}
	return targets
}

// ImputeMatrix imputes every genotype of the matrix with fewer than
// KnownDepth reads. The hard calls used for similarities and distances
// are derived from the called probabilities, and are missing for
// genotypes without reads.
func (imp *Imputer) ImputeMatrix(run *progress.Run, sim correlation.Similarity, called genotype.ProbabilityMatrix, reads genotype.ReadMatrix) genotype.ProbabilityMatrix {
	calls := genotype.Calls(called, reads, 1, 0)
	neighbours := correlation.Neighbours(run, sim, calls.BySNP(), imp.L, imp.Targets(reads))
	return imp.ImputeMatrixWith(run, calls, neighbours, called, reads)
}

// ImputeMatrixWith is ImputeMatrix with precomputed calls and
// neighbours.
func (imp *Imputer) ImputeMatrixWith(run *progress.Run, calls genotype.CallMatrix, neighbours correlation.Matrix, called genotype.ProbabilityMatrix, reads genotype.ReadMatrix) genotype.ProbabilityMatrix {
	samples, snps := reads.Dims()
	result := make(genotype.ProbabilityMatrix, samples)
	run.Start("imputing genotypes", samples*snps)
	parallel.Range(0, samples, 0, func(low, high int) {
		ws := newWorkspace(samples)
		for sample := low; sample < high; sample++ {
			row := make([]genotype.Probability, snps)
			for snp := range row {
				pos := genotype.Position{Sample: sample, SNP: snp}
				row[snp] = imp.single(run, ws, calls, neighbours, pos, reads[sample][snp], called[sample][snp], false)
			}
			result[sample] = row
			run.Step(snps)
		}
	})
	return result
}

// ImputeList imputes the genotypes of a list against precomputed calls
// and neighbours. reads and called must be aligned. Each genotype is
// imputed exactly as ImputeMatrixWith would for the same inputs.
func (imp *Imputer) ImputeList(run *progress.Run, calls genotype.CallMatrix, neighbours correlation.Matrix, reads []genotype.SingleReads, called []genotype.SingleProbability) []genotype.SingleProbability {
	genotype.CheckAligned(reads, called)
	result := make([]genotype.SingleProbability, len(reads))
	parallel.Range(0, len(reads), 0, func(low, high int) {
		ws := newWorkspace(len(calls))
		for i := low; i < high; i++ {
			r := reads[i]
			result[i] = genotype.SingleProbability{
				Position:    r.Position,
				Probability: imp.single(run, ws, calls, neighbours, r.Position, r.Reads, called[i].Probability, false),
			}
		}
	})
	return result
}
