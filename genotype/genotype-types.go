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

package genotype

import (
	"fmt"
	"log"
)

// Genotype classes. Classes are dosages of the alternative allele.
const (
	HomRef  Call = 0
	Het     Call = 1
	HomAlt  Call = 2
	Missing Call = -1
)

// NofClasses is the fixed number of genotype classes of a biallelic
// diploid site.
const NofClasses = 3

type (
	// ReadCounts holds the reference and alternative allele read counts
	// backing a single genotype observation.
	ReadCounts [2]int32

	// Probability is a distribution over the three genotype classes.
	Probability [NofClasses]float64

	// Call is a hard genotype call in {0, 1, 2}, or Missing.
	Call int8

	// Position identifies a single genotype by sample and SNP index.
	Position struct {
		Sample, SNP int
	}

	// Positioned is implemented by all per-genotype records.
	Positioned interface {
		Pos() Position
	}

	// SingleReads is the read counts of a single genotype.
	SingleReads struct {
		Position
		Reads ReadCounts
	}

	// SingleProbability is the genotype probability of a single
	// genotype.
	SingleProbability struct {
		Position
		Probability Probability
	}

	// SingleCall is the hard call of a single genotype.
	SingleCall struct {
		Position
		Call Call
	}

	// Masked describes a genotype whose read depth was artificially
	// reduced. Original holds the reads before masking, Masked the reads
	// after masking, and MAF the minor allele frequency of its SNP at
	// masking time.
	Masked struct {
		Position
		Original, Masked ReadCounts
		MAF              float64
	}

	// ReadMatrix is indexed by [sample][SNP].
	ReadMatrix [][]ReadCounts

	// ProbabilityMatrix is indexed by [sample][SNP].
	ProbabilityMatrix [][]Probability

	// CallMatrix is indexed by [sample][SNP].
	CallMatrix [][]Call
)

// Ref returns the reference allele count.
func (r ReadCounts) Ref() int {
	return int(r[0])
}

// Alt returns the alternative allele count.
func (r ReadCounts) Alt() int {
	return int(r[1])
}

// Depth returns the total number of reads.
func (r ReadCounts) Depth() int {
	return int(r[0]) + int(r[1])
}

// Check panics if one of the counts is negative.
func (r ReadCounts) Check() {
	if r[0] < 0 || r[1] < 0 {
		log.Panicf("negative read count %v", r)
	}
}

func (r ReadCounts) String() string {
	return fmt.Sprintf("%d,%d", r[0], r[1])
}

// Pos implements Positioned.
func (p Position) Pos() Position {
	return p
}

func (p Position) String() string {
	return fmt.Sprintf("(sample %d, snp %d)", p.Sample, p.SNP)
}

// Uniform is the distribution used when there is no information about a
// genotype.
var Uniform = Probability{1.0 / 3.0, 1.0 / 3.0, 1.0 / 3.0}

// OneHot returns the probability that puts all mass on the given call.
func OneHot(c Call) (p Probability) {
	p[c] = 1
	return
}

// Sum returns the total mass of p.
func (p Probability) Sum() float64 {
	return p[0] + p[1] + p[2]
}

// Best returns the most probable class and its probability. Ties are
// resolved in favor of the lower class.
func (p Probability) Best() (Call, float64) {
	best := HomRef
	for c := Het; c <= HomAlt; c++ {
		if p[c] > p[best] {
			best = c
		}
	}
	return best, p[best]
}

// Valid reports whether c is one of the three genotype classes.
func (c Call) Valid() bool {
	return c >= HomRef && c <= HomAlt
}

func (c Call) String() string {
	switch c {
	case HomRef:
		return "0/0"
	case Het:
		return "0/1"
	case HomAlt:
		return "1/1"
	case Missing:
		return "./."
	default:
		return fmt.Sprintf("invalid genotype %d", int8(c))
	}
}

// Dims returns the number of samples and the number of SNPs of the
// given matrix. All rows must have the same length.
func (m ReadMatrix) Dims() (samples, snps int) {
	samples = len(m)
	if samples > 0 {
		snps = len(m[0])
	}
	for i, row := range m {
		if len(row) != snps {
			log.Panicf("read matrix row %v has %v SNPs, expected %v", i, len(row), snps)
		}
	}
	return
}

// Clone returns a deep copy of the read matrix.
func (m ReadMatrix) Clone() ReadMatrix {
	result := make(ReadMatrix, len(m))
	for i, row := range m {
		result[i] = append([]ReadCounts(nil), row...)
	}
	return result
}

// List returns the read counts at the given positions.
func (m ReadMatrix) List(positions []Position) []SingleReads {
	result := make([]SingleReads, len(positions))
	for i, p := range positions {
		result[i] = SingleReads{Position: p, Reads: m[p.Sample][p.SNP]}
	}
	return result
}

// List returns the probabilities at the given positions.
func (m ProbabilityMatrix) List(positions []Position) []SingleProbability {
	result := make([]SingleProbability, len(positions))
	for i, p := range positions {
		result[i] = SingleProbability{Position: p, Probability: m[p.Sample][p.SNP]}
	}
	return result
}

// BySNP returns the transposed call matrix, indexed by [SNP][sample].
func (m CallMatrix) BySNP() [][]Call {
	if len(m) == 0 {
		return nil
	}
	result := make([][]Call, len(m[0]))
	for snp := range result {
		column := make([]Call, len(m))
		for sample, row := range m {
			column[sample] = row[snp]
		}
		result[snp] = column
	}
	return result
}

// Positions returns the positions of the given records.
func Positions[T Positioned](records []T) []Position {
	result := make([]Position, len(records))
	for i, r := range records {
		result[i] = r.Pos()
	}
	return result
}

// CheckAligned panics unless a and b hold identical positions in
// identical order.
func CheckAligned[A, B Positioned](a []A, b []B) {
	if len(a) != len(b) {
		log.Panicf("position lists are not aligned: lengths %v and %v", len(a), len(b))
	}
	for i := range a {
		if pa, pb := a[i].Pos(), b[i].Pos(); pa != pb {
			log.Panicf("position lists are not aligned at index %v: %v and %v", i, pa, pb)
		}
	}
}
