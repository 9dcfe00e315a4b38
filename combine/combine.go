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

// Package combine blends called and imputed genotype probabilities.
package combine

import (
	"fmt"
	"log"

	"github.com/exascience/pargo/parallel"

	"github.com/exascience/elimpute/genotype"
)

// A Combiner blends the caller's and the imputer's probability for a
// single genotype, given its read counts.
type Combiner interface {
	Combine(called, imputed genotype.Probability, reads genotype.ReadCounts) genotype.Probability
}

// Config selects and parameterizes a combiner.
type Config struct {
	Method   string  `yaml:"method"`
	MaxDepth int     `yaml:"maxdepth"`
	Weight   float64 `yaml:"weight"`
}

var constructors = map[string]func(cfg Config) Combiner{
	"max-depth": func(cfg Config) Combiner {
		return MaxDepth{MaxDepth: cfg.MaxDepth, Weight: cfg.Weight}
	},
}

// New returns the combiner registered under cfg.Method.
func New(cfg Config) (Combiner, error) {
	cons, ok := constructors[cfg.Method]
	if !ok {
		return nil, fmt.Errorf("unknown combiner method %q", cfg.Method)
	}
	if cfg.Weight < 0 || cfg.Weight > 1 {
		return nil, fmt.Errorf("combiner weight %v out of range [0, 1]", cfg.Weight)
	}
	return cons(cfg), nil
}

// MaxDepth uses the called probability unchanged for genotypes with at
// least MaxDepth reads. Below that, the result is
// Weight*imputed + (1-Weight)*called.
type MaxDepth struct {
	MaxDepth int
	Weight   float64
}

// Combine implements Combiner.
func (c MaxDepth) Combine(called, imputed genotype.Probability, reads genotype.ReadCounts) (p genotype.Probability) {
	if reads.Depth() >= c.MaxDepth {
		return called
	}
	for i := range p {
		p[i] = c.Weight*imputed[i] + (1-c.Weight)*called[i]
	}
	return p
}

// Config returns the configuration that recreates c.
func (c MaxDepth) Config() Config {
	return Config{Method: "max-depth", MaxDepth: c.MaxDepth, Weight: c.Weight}
}

// CombineMatrix combines whole matrices in parallel.
func CombineMatrix(c Combiner, called, imputed genotype.ProbabilityMatrix, reads genotype.ReadMatrix) genotype.ProbabilityMatrix {
	samples, snps := reads.Dims()
	if len(called) != samples || len(imputed) != samples {
		log.Panicf("matrices differ in number of samples: %v, %v, %v", len(called), len(imputed), samples)
	}
	result := make(genotype.ProbabilityMatrix, samples)
	parallel.Range(0, samples, 0, func(low, high int) {
		for sample := low; sample < high; sample++ {
			row := make([]genotype.Probability, snps)
			for snp := range row {
				row[snp] = c.Combine(called[sample][snp], imputed[sample][snp], reads[sample][snp])
			}
			result[sample] = row
		}
	})
	return result
}

// CombineList combines aligned lists.
func CombineList(c Combiner, called, imputed []genotype.SingleProbability, reads []genotype.SingleReads) []genotype.SingleProbability {
	genotype.CheckAligned(called, imputed)
	genotype.CheckAligned(called, reads)
	result := make([]genotype.SingleProbability, len(called))
	parallel.Range(0, len(called), 0, func(low, high int) {
		for i := low; i < high; i++ {
			result[i] = genotype.SingleProbability{
				Position:    called[i].Position,
				Probability: c.Combine(called[i].Probability, imputed[i].Probability, reads[i].Reads),
			}
		}
	})
	return result
}
