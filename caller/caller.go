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

// Package caller converts allele read counts into genotype probabilities.
package caller

import (
	"fmt"
	"log"
	"math"

	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/progress"
)

// A Caller computes the genotype probability of a single genotype from
// its read counts. Implementations must be safe for concurrent use.
type Caller interface {
	CallSingle(reads genotype.ReadCounts) genotype.Probability
}

// Config selects and parameterizes a caller.
type Config struct {
	Method string  `yaml:"method"`
	Error  float64 `yaml:"error"`
	Bias   float64 `yaml:"bias"`
}

var constructors = map[string]func(cfg Config) Caller{
	"binomial": func(cfg Config) Caller {
		return Binomial{Error: cfg.Error, Bias: 0.5}
	},
	"biased-binomial": func(cfg Config) Caller {
		return Binomial{Error: cfg.Error, Bias: cfg.Bias}
	},
	"log-binomial": func(cfg Config) Caller {
		return LogBinomial{Error: cfg.Error, Bias: cfg.Bias}
	},
}

// New returns the caller registered under cfg.Method.
func New(cfg Config) (Caller, error) {
	cons, ok := constructors[cfg.Method]
	if !ok {
		return nil, fmt.Errorf("unknown caller method %q", cfg.Method)
	}
	if cfg.Error < 0 || cfg.Error >= 0.5 {
		return nil, fmt.Errorf("caller error rate %v out of range [0, 0.5)", cfg.Error)
	}
	if cfg.Bias <= 0 || cfg.Bias >= 1 {
		return nil, fmt.Errorf("caller bias %v out of range (0, 1)", cfg.Bias)
	}
	return cons(cfg), nil
}

// Binomial models allele read counts as binomial draws. Error is the
// sequencing error rate, and Bias the probability that a read of a
// heterozygote shows the reference allele. This form underflows for
// large depths, in which case it defers to LogBinomial.
type Binomial struct {
	Error, Bias float64
}

// CallSingle implements Caller.
func (c Binomial) CallSingle(reads genotype.ReadCounts) (p genotype.Probability) {
	reads.Check()
	n := reads.Depth()
	if n == 0 {
		return genotype.Uniform
	}
	alt := float64(reads.Alt())
	for i, altProb := range [genotype.NofClasses]float64{c.Error, 1 - c.Bias, 1 - c.Error} {
		p[i] = distuv.Binomial{N: float64(n), P: altProb}.Prob(alt)
	}
	sum := floats.Sum(p[:])
	if sum == 0 || math.IsNaN(sum) {
		return LogBinomial(c).CallSingle(reads)
	}
	floats.Scale(1/sum, p[:])
	return p
}

// LogBinomial is the same model as Binomial, computed from
// log-likelihoods with the maximum subtracted before exponentiating.
type LogBinomial struct {
	Error, Bias float64
}

func logTerm(count int, prob float64) float64 {
	if count == 0 {
		return 0
	}
	return float64(count) * math.Log(prob)
}

// CallSingle implements Caller.
func (c LogBinomial) CallSingle(reads genotype.ReadCounts) (p genotype.Probability) {
	reads.Check()
	if reads.Depth() == 0 {
		return genotype.Uniform
	}
	ref, alt := reads.Ref(), reads.Alt()
	ll := [genotype.NofClasses]float64{
		logTerm(ref, 1-c.Error) + logTerm(alt, c.Error),
		logTerm(ref, c.Bias) + logTerm(alt, 1-c.Bias),
		logTerm(ref, c.Error) + logTerm(alt, 1-c.Error),
	}
	max := floats.Max(ll[:])
	if math.IsInf(max, -1) {
		log.Panicf("reads %v impossible under every genotype with error rate %v", reads, c.Error)
	}
	for i, l := range ll {
		p[i] = math.Exp(l - max)
	}
	floats.Scale(1/floats.Sum(p[:]), p[:])
	return p
}

// CallMatrix calls every genotype of the read matrix in parallel.
func CallMatrix(run *progress.Run, c Caller, reads genotype.ReadMatrix) genotype.ProbabilityMatrix {
	samples, snps := reads.Dims()
	run.Start("calling genotypes", samples*snps)
	result := make(genotype.ProbabilityMatrix, samples)
	parallel.Range(0, samples, 0, func(low, high int) {
		for sample := low; sample < high; sample++ {
			rrow := reads[sample]
			row := make([]genotype.Probability, len(rrow))
			for snp, r := range rrow {
				row[snp] = c.CallSingle(r)
			}
			result[sample] = row
			run.Step(len(rrow))
		}
	})
	return result
}

// CallList calls every genotype of the list in parallel. The result is
// aligned with the input.
func CallList(c Caller, reads []genotype.SingleReads) []genotype.SingleProbability {
	result := make([]genotype.SingleProbability, len(reads))
	parallel.Range(0, len(reads), 0, func(low, high int) {
		for i := low; i < high; i++ {
			result[i] = genotype.SingleProbability{
				Position:    reads[i].Position,
				Probability: c.CallSingle(reads[i].Reads),
			}
		}
	})
	return result
}
