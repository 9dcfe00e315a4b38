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
	"github.com/exascience/pargo/parallel"

	"github.com/exascience/elimpute/distribution"
)

// HardCall returns the most probable genotype class of p, or Missing
// when the depth is below minDepth or the best probability is below
// minProb.
func HardCall(p Probability, depth, minDepth int, minProb float64) Call {
	if depth < minDepth {
		return Missing
	}
	c, prob := p.Best()
	if prob < minProb {
		return Missing
	}
	return c
}

// Calls computes the hard calls for a whole probability matrix. Cells
// with fewer than minDepth reads, or whose best probability is below
// minProb, are Missing.
func Calls(probs ProbabilityMatrix, reads ReadMatrix, minDepth int, minProb float64) CallMatrix {
	result := make(CallMatrix, len(probs))
	parallel.Range(0, len(probs), 0, func(low, high int) {
		for sample := low; sample < high; sample++ {
			prow, rrow := probs[sample], reads[sample]
			row := make([]Call, len(prow))
			for snp, p := range prow {
				row[snp] = HardCall(p, rrow[snp].Depth(), minDepth, minProb)
			}
			result[sample] = row
		}
	})
	return result
}

// ListCalls computes the hard calls for a list of probabilities, using
// the aligned list of reads for the depth threshold.
func ListCalls(probs []SingleProbability, reads []SingleReads, minDepth int, minProb float64) []SingleCall {
	CheckAligned(probs, reads)
	result := make([]SingleCall, len(probs))
	for i, p := range probs {
		result[i] = SingleCall{
			Position: p.Position,
			Call:     HardCall(p.Probability, reads[i].Reads.Depth(), minDepth, minProb),
		}
	}
	return result
}

// MAF computes the minor allele frequency of every SNP from the hard
// calls. SNPs without any call have frequency 0.
func MAF(calls CallMatrix) []float64 {
	if len(calls) == 0 {
		return nil
	}
	snps := len(calls[0])
	result := make([]float64, snps)
	parallel.Range(0, snps, 0, func(low, high int) {
		for snp := low; snp < high; snp++ {
			var alt, total int
			for _, row := range calls {
				if c := row[snp]; c != Missing {
					alt += int(c)
					total += 2
				}
			}
			if total == 0 {
				continue
			}
			f := float64(alt) / float64(total)
			if f > 0.5 {
				f = 1 - f
			}
			result[snp] = f
		}
	})
	return result
}

// DepthDistribution returns the distribution of read depths over all
// genotypes of the matrix.
func DepthDistribution(reads ReadMatrix) *distribution.Comparable[int] {
	counts := parallel.RangeReduce(0, len(reads), 0, func(low, high int) interface{} {
		counts := make(map[int]int)
		for _, row := range reads[low:high] {
			for _, r := range row {
				counts[r.Depth()]++
			}
		}
		return counts
	}, func(x, y interface{}) interface{} {
		left, right := x.(map[int]int), y.(map[int]int)
		for depth, n := range right {
			left[depth] += n
		}
		return left
	}).(map[int]int)
	return distribution.NewComparable(counts)
}
