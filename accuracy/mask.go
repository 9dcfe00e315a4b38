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

package accuracy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bitset"

	"github.com/exascience/elimpute/distribution"
	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/internal"
)

// Method determines how genotypes are selected for masking.
type Method int

// The available selection methods.
const (
	// All selects uniformly among all eligible genotypes. The selected
	// positions are distinct.
	All Method = iota
	// BySNP repeatedly selects a random SNP, then an eligible sample in it.
	BySNP
	// BySample repeatedly selects a random sample, then an eligible SNP in it.
	BySample
)

var methods = map[string]Method{
	"all":       All,
	"by-snp":    BySNP,
	"by-sample": BySample,
}

// ParseMethod returns the masking method with the given name.
func ParseMethod(name string) (Method, error) {
	if m, ok := methods[name]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("unknown masking method %q", name)
}

func (m Method) String() string {
	for name, method := range methods {
		if method == m {
			return name
		}
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// MaskConfig holds the masking parameters as they appear in
// configuration files.
type MaskConfig struct {
	Number   int    `yaml:"number"`
	MinDepth int    `yaml:"mindepth"`
	Method   string `yaml:"method"`
}

// A Mask selects Number genotypes with more than MinDepth reads and
// reduces each of them to a depth drawn from Depths, restricted to at
// most MinDepth.
type Mask struct {
	Number, MinDepth int
	Method           Method
	Depths           *distribution.Comparable[int]
}

// NewMask creates a mask from its configuration and the distribution
// of target depths.
func NewMask(cfg MaskConfig, depths *distribution.Comparable[int]) (*Mask, error) {
	if cfg.Number < 1 {
		return nil, fmt.Errorf("mask number %v must be at least 1", cfg.Number)
	}
	if cfg.MinDepth < 0 {
		return nil, fmt.Errorf("mask mindepth %v is negative", cfg.MinDepth)
	}
	method, err := ParseMethod(cfg.Method)
	if err != nil {
		return nil, err
	}
	return &Mask{Number: cfg.Number, MinDepth: cfg.MinDepth, Method: method, Depths: depths}, nil
}

// ErrNoEligibleGenotypes is returned when no genotype has more reads
// than the mask's MinDepth.
var ErrNoEligibleGenotypes = errors.New("no genotype has enough reads to be masked")

// ErrNoTargetDepths is returned when the depth distribution has no
// values in [0, MinDepth].
var ErrNoTargetDepths = errors.New("no target depth available for masking")

// reduce randomly discards reads, one at a time and weighted by the
// remaining count of each allele, until target reads remain.
func reduce(rnd *internal.Rand, reads genotype.ReadCounts, target int) genotype.ReadCounts {
	for reads.Depth() > target {
		if rnd.Intn(reads.Depth()) < reads.Ref() {
			reads[0]--
		} else {
			reads[1]--
		}
	}
	return reads
}

func (m *Mask) selectAll(rnd *internal.Rand, reads genotype.ReadMatrix, eligible []genotype.Position, number int) []genotype.Position {
	_, snps := reads.Dims()
	seen := bitset.New(uint(len(reads) * snps))
	result := make([]genotype.Position, 0, number)
	for len(result) < number {
		p := eligible[rnd.Intn(len(eligible))]
		index := uint(p.Sample*snps + p.SNP)
		if seen.Test(index) {
			continue
		}
		seen.Set(index)
		result = append(result, p)
	}
	return result
}

func selectGrouped(rnd *internal.Rand, eligible []genotype.Position, number int, key func(genotype.Position) int) []genotype.Position {
	groups := make(map[int][]genotype.Position)
	var keys []int
	for _, p := range eligible {
		k := key(p)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], p)
	}
	sort.Ints(keys)
	result := make([]genotype.Position, 0, number)
	for len(result) < number && len(keys) > 0 {
		ki := rnd.Intn(len(keys))
		k := keys[ki]
		group := groups[k]
		gi := rnd.Intn(len(group))
		result = append(result, group[gi])
		group[gi] = group[len(group)-1]
		group = group[:len(group)-1]
		if len(group) == 0 {
			keys[ki] = keys[len(keys)-1]
			keys = keys[:len(keys)-1]
		}
		groups[k] = group
	}
	return result
}

// Apply masks genotypes of reads. maf holds the minor allele frequency
// of every SNP. It returns the masked genotypes, sorted by sample and
// SNP, and a new read matrix in which they are masked. reads is not
// modified.
//
// If fewer than Number genotypes are eligible, all of them are masked.
func (m *Mask) Apply(rnd *internal.Rand, reads genotype.ReadMatrix, maf []float64) ([]genotype.Masked, genotype.ReadMatrix, error) {
	targets := m.Depths.LimitTo(0, m.MinDepth)
	if targets.Total() == 0 {
		return nil, nil, ErrNoTargetDepths
	}
	var eligible []genotype.Position
	for sample, row := range reads {
		for snp, r := range row {
			if r.Depth() > m.MinDepth {
				eligible = append(eligible, genotype.Position{Sample: sample, SNP: snp})
			}
		}
	}
	if len(eligible) == 0 {
		return nil, nil, ErrNoEligibleGenotypes
	}
	number := m.Number
	if number > len(eligible) {
		number = len(eligible)
	}
	var selected []genotype.Position
	switch m.Method {
	case All:
		selected = m.selectAll(rnd, reads, eligible, number)
	case BySNP:
		selected = selectGrouped(rnd, eligible, number, func(p genotype.Position) int { return p.SNP })
	case BySample:
		selected = selectGrouped(rnd, eligible, number, func(p genotype.Position) int { return p.Sample })
	default:
		return nil, nil, fmt.Errorf("invalid masking method %v", m.Method)
	}
	sort.Slice(selected, func(i, j int) bool {
		if selected[i].Sample != selected[j].Sample {
			return selected[i].Sample < selected[j].Sample
		}
		return selected[i].SNP < selected[j].SNP
	})
	masked := reads.Clone()
	result := make([]genotype.Masked, len(selected))
	for i, p := range selected {
		original := reads[p.Sample][p.SNP]
		reduced := reduce(rnd, original, targets.Sample(rnd))
		masked[p.Sample][p.SNP] = reduced
		result[i] = genotype.Masked{
			Position: p,
			Original: original,
			Masked:   reduced,
			MAF:      maf[p.SNP],
		}
	}
	return result, masked, nil
}

// MaskedReads returns the masked read counts of the masked genotypes.
func MaskedReads(masked []genotype.Masked) []genotype.SingleReads {
	result := make([]genotype.SingleReads, len(masked))
	for i, m := range masked {
		result[i] = genotype.SingleReads{Position: m.Position, Reads: m.Masked}
	}
	return result
}

// OriginalReads returns the original read counts of the masked genotypes.
func OriginalReads(masked []genotype.Masked) []genotype.SingleReads {
	result := make([]genotype.SingleReads, len(masked))
	for i, m := range masked {
		result[i] = genotype.SingleReads{Position: m.Position, Reads: m.Original}
	}
	return result
}
