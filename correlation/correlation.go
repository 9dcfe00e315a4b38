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

// Package correlation computes linkage-disequilibrium based similarities
// between SNPs from hard genotype calls, and ranks for every SNP the
// SNPs most similar to it.
package correlation

import (
	"fmt"
	"math"

	"github.com/exascience/elimpute/genotype"
)

// A Similarity computes a symmetric similarity in [0, 1] between the
// calls of two SNPs over the same samples. Implementations must be safe
// for concurrent use.
type Similarity interface {
	Calculate(a, b []genotype.Call) float64
}

var constructors = map[string]func() Similarity{
	"pearson": func() Similarity { return Pearson{} },
	"em-ld":   func() Similarity { return EMLD{MaxIterations: 1000, Tolerance: 1e-10} },
}

// New returns the similarity registered under the given name.
func New(method string) (Similarity, error) {
	cons, ok := constructors[method]
	if !ok {
		return nil, fmt.Errorf("unknown similarity method %q", method)
	}
	return cons(), nil
}

// Table is a contingency table of paired hard calls, indexed by the
// call of the first and the call of the second SNP.
type Table [genotype.NofClasses][genotype.NofClasses]int

// NewTable counts the paired calls of a and b. Pairs where either call
// is missing are left out.
func NewTable(a, b []genotype.Call) (t Table) {
	for i, ca := range a {
		if cb := b[i]; ca != genotype.Missing && cb != genotype.Missing {
			t[ca][cb]++
		}
	}
	return
}

// Merge adds the counts of other to t.
func (t *Table) Merge(other Table) {
	for i := range t {
		for j := range t[i] {
			t[i][j] += other[i][j]
		}
	}
}

// Total returns the number of pairs in the table.
func (t *Table) Total() (c int) {
	for i := range t {
		for j := range t[i] {
			c += t[i][j]
		}
	}
	return
}

// Pearson returns the squared Pearson correlation of the dosages
// recorded in the table. Only pairs where both calls are present are
// counted.
//
// If either dosage has zero variance the result is 0.
func (t *Table) Pearson() float64 {
	var c, sa, sb, saa, sbb, sab float64
	for i := range t {
		for j := range t[i] {
			n := float64(t[i][j])
			if n == 0 {
				continue
			}
			fi, fj := float64(i), float64(j)
			c += n
			sa += n * fi
			sb += n * fj
			saa += n * fi * fi
			sbb += n * fj * fj
			sab += n * fi * fj
		}
	}
	varA := c*saa - sa*sa
	varB := c*sbb - sb*sb
	if varA <= 0 || varB <= 0 {
		return 0
	}
	cov := c*sab - sa*sb
	return cov * cov / (varA * varB)
}

// Pearson is the default similarity: the squared Pearson correlation of
// the genotype dosages.
type Pearson struct{}

// Calculate implements Similarity.
func (Pearson) Calculate(a, b []genotype.Call) float64 {
	t := NewTable(a, b)
	return t.Pearson()
}

// EMLD estimates the r² linkage disequilibrium statistic from
// haplotype frequencies. Phase of double heterozygotes is resolved by
// expectation maximization.
type EMLD struct {
	MaxIterations int
	Tolerance     float64
}

// Calculate implements Similarity.
func (em EMLD) Calculate(a, b []genotype.Call) float64 {
	t := NewTable(a, b)
	return em.R2(&t)
}

// R2 estimates r² from a contingency table.
func (em EMLD) R2(t *Table) float64 {
	total := t.Total()
	if total == 0 {
		return 0
	}
	// haplotype counts: alt-alt, alt-ref, ref-alt, ref-ref
	var known [4]float64
	add := func(h int, n int) { known[h] += float64(n) }
	add(3, 2*t[0][0])
	add(3, t[0][1])
	add(2, t[0][1])
	add(2, 2*t[0][2])
	add(1, t[1][0])
	add(3, t[1][0])
	add(0, t[1][2])
	add(2, t[1][2])
	add(1, 2*t[2][0])
	add(0, t[2][1])
	add(1, t[2][1])
	add(0, 2*t[2][2])
	doubleHets := float64(t[1][1])
	haplotypes := float64(2 * total)

	p := [4]float64{0.25, 0.25, 0.25, 0.25}
	for iteration := 0; iteration < em.MaxIterations; iteration++ {
		cis, trans := p[0]*p[3], p[1]*p[2]
		f := 0.5
		if cis+trans > 0 {
			f = cis / (cis + trans)
		}
		next := [4]float64{
			(known[0] + doubleHets*f) / haplotypes,
			(known[1] + doubleHets*(1-f)) / haplotypes,
			(known[2] + doubleHets*(1-f)) / haplotypes,
			(known[3] + doubleHets*f) / haplotypes,
		}
		delta := 0.0
		for i := range p {
			delta += math.Abs(next[i] - p[i])
		}
		p = next
		if delta < em.Tolerance {
			break
		}
	}
	pa, pb := p[0]+p[1], p[0]+p[2]
	denominator := pa * (1 - pa) * pb * (1 - pb)
	if denominator <= 0 {
		return 0
	}
	d := p[0] - pa*pb
	return d * d / denominator
}
