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

// Package tune prepares masked data sets and optimizes the imputer and
// combiner parameters on them.
package tune

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/exascience/pargo/parallel"

	"github.com/exascience/elimpute/accuracy"
	"github.com/exascience/elimpute/caller"
	"github.com/exascience/elimpute/combine"
	"github.com/exascience/elimpute/correlation"
	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/impute"
	"github.com/exascience/elimpute/internal"
	"github.com/exascience/elimpute/optimize"
	"github.com/exascience/elimpute/progress"
)

// Objective selects the score that is maximized.
type Objective int

// The available objectives.
const (
	Accuracy Objective = iota
	Correlation
)

// ParseObjective returns the objective with the given name.
func ParseObjective(name string) (Objective, error) {
	switch name {
	case "accuracy":
		return Accuracy, nil
	case "correlation":
		return Correlation, nil
	default:
		return 0, fmt.Errorf("unknown objective %q", name)
	}
}

func (o Objective) String() string {
	if o == Correlation {
		return "correlation"
	}
	return "accuracy"
}

// Score returns the objective value of the given statistics.
func (o Objective) Score(s *accuracy.Stats) float64 {
	if o == Correlation {
		return s.Correlation()
	}
	return s.Accuracy()
}

// Data is a masked data set, with everything the imputer needs for the
// masked genotypes computed once.
type Data struct {
	Masked      []genotype.Masked
	Reads       genotype.ReadMatrix
	MaskedReads []genotype.SingleReads
	Truth       []genotype.SingleCall
	Called      []genotype.SingleProbability
	Calls       genotype.CallMatrix
	Neighbours  correlation.Matrix
	depths      []int
}

// Prepare masks reads and precomputes the calls and the neighbour lists
// of up to maxL SNPs for the SNPs with masked genotypes. called holds
// the caller's probabilities for the unmasked reads; the true calls are
// derived from them.
func Prepare(run *progress.Run, c caller.Caller, sim correlation.Similarity, reads genotype.ReadMatrix, called genotype.ProbabilityMatrix, mask *accuracy.Mask, rnd *internal.Rand, maxL int) (*Data, error) {
	originalCalls := genotype.Calls(called, reads, 1, 0)
	masked, maskedReads, err := mask.Apply(rnd, reads, genotype.MAF(originalCalls))
	if err != nil {
		return nil, err
	}
	run.Printf("masked %v genotypes", len(masked))
	d := &Data{
		Masked:      masked,
		Reads:       maskedReads,
		MaskedReads: accuracy.MaskedReads(masked),
		Truth:       make([]genotype.SingleCall, len(masked)),
		depths:      make([]int, len(masked)),
	}
	parallel.Do(
		func() {
			for i, m := range masked {
				d.Truth[i] = genotype.SingleCall{Position: m.Position, Call: originalCalls[m.Sample][m.SNP]}
				d.depths[i] = m.Masked.Depth()
			}
		},
		func() {
			d.Called = caller.CallList(c, d.MaskedReads)
		},
	)
	probs := make(genotype.ProbabilityMatrix, len(called))
	for sample, row := range called {
		probs[sample] = append([]genotype.Probability(nil), row...)
	}
	_, snps := reads.Dims()
	targets := bitset.New(uint(snps))
	for _, p := range d.Called {
		probs[p.Sample][p.SNP] = p.Probability
		targets.Set(uint(p.SNP))
	}
	d.Calls = genotype.Calls(probs, maskedReads, 1, 0)
	d.Neighbours = correlation.Neighbours(run, sim, d.Calls.BySNP(), maxL, targets)
	return d, nil
}

// Impute imputes the masked genotypes.
func (d *Data) Impute(run *progress.Run, imp *impute.Imputer) []genotype.SingleProbability {
	return imp.ImputeList(run, d.Calls, d.Neighbours, d.MaskedReads, d.Called)
}

// Score compares the hard calls of the predictions for the masked
// genotypes against the truth.
func (d *Data) Score(predictions []genotype.SingleProbability) *accuracy.Stats {
	predicted := genotype.ListCalls(predictions, d.MaskedReads, 0, 0)
	return accuracy.NewStats(d.Truth, predicted, d.depths)
}

// OptimizeImputer searches K and L of imp, starting from its current
// values, and returns the tuned imputer with its score.
func OptimizeImputer(run *progress.Run, d *Data, imp *impute.Imputer, opt optimize.IntegerOptimizer, obj Objective) (*impute.Imputer, float64) {
	x, fx := opt.Optimize(func(x []int) float64 {
		score := obj.Score(d.Score(d.Impute(run, imp.WithKL(x[0], x[1]))))
		run.Printf("imputer k=%v l=%v: %v %v", x[0], x[1], obj, score)
		return score
	}, []int{imp.K, imp.L})
	return imp.WithKL(x[0], x[1]), fx
}

// OptimizeCombiner searches the weight of comb for the given imputed
// probabilities of the masked genotypes, and returns the tuned combiner
// with its score.
func OptimizeCombiner(run *progress.Run, d *Data, imputed []genotype.SingleProbability, comb combine.MaxDepth, opt optimize.DoubleOptimizer, obj Objective) (combine.MaxDepth, float64) {
	w, fw := opt.Optimize(func(w float64) float64 {
		c := comb
		c.Weight = w
		score := obj.Score(d.Score(combine.CombineList(c, d.Called, imputed, d.MaskedReads)))
		run.Printf("combiner weight=%.4f: %v %v", w, obj, score)
		return score
	})
	comb.Weight = w
	return comb, fw
}

// Settings holds the components of a validation run.
type Settings struct {
	Caller            caller.Caller
	Similarity        correlation.Similarity
	Imputer           *impute.Imputer
	Combiner          combine.MaxDepth
	Mask              *accuracy.Mask
	ImputerOptimizer  optimize.IntegerOptimizer
	CombinerOptimizer optimize.DoubleOptimizer
	Objective         Objective
	MaxL              int
}

// Result holds the tuned components and the statistics measured on an
// independent mask.
type Result struct {
	Imputer       *impute.Imputer
	Combiner      combine.MaxDepth
	CalledStats   *accuracy.Stats
	ImputedStats  *accuracy.Stats
	CombinedStats *accuracy.Stats
}

// Validate tunes the imputer and the combiner on one mask of reads, and
// then measures the tuned components on a second, independently drawn
// mask.
func Validate(run *progress.Run, s Settings, reads genotype.ReadMatrix, rnd *internal.Rand) (*Result, error) {
	called := caller.CallMatrix(run, s.Caller, reads)
	maxL := s.MaxL
	if maxL < s.Imputer.L {
		maxL = s.Imputer.L
	}

	run.Println("preparing tuning mask")
	tuning, err := Prepare(run, s.Caller, s.Similarity, reads, called, s.Mask, rnd, maxL)
	if err != nil {
		return nil, err
	}
	imp, score := OptimizeImputer(run, tuning, s.Imputer, s.ImputerOptimizer, s.Objective)
	run.Printf("tuned imputer k=%v l=%v (%v %v)", imp.K, imp.L, s.Objective, score)
	comb, score := OptimizeCombiner(run, tuning, tuning.Impute(run, imp), s.Combiner, s.CombinerOptimizer, s.Objective)
	run.Printf("tuned combiner weight=%v (%v %v)", comb.Weight, s.Objective, score)

	run.Println("preparing evaluation mask")
	eval, err := Prepare(run, s.Caller, s.Similarity, reads, called, s.Mask, rnd, imp.L)
	if err != nil {
		return nil, err
	}
	imputed := eval.Impute(run, imp)
	result := &Result{
		Imputer:       imp,
		Combiner:      comb,
		CalledStats:   eval.Score(eval.Called),
		ImputedStats:  eval.Score(imputed),
		CombinedStats: eval.Score(combine.CombineList(comb, eval.Called, imputed, eval.MaskedReads)),
	}
	run.Printf("called accuracy %v, imputed accuracy %v, combined accuracy %v, combined correlation %v",
		result.CalledStats.Accuracy(), result.ImputedStats.Accuracy(), result.CombinedStats.Accuracy(), result.CombinedStats.Correlation())
	return result, nil
}
