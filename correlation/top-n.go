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

package correlation

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/exascience/pargo/parallel"

	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/progress"
)

// Matrix maps a SNP index to the indices of the SNPs most similar to
// it, in descending order of similarity. Rows that were not computed
// are nil.
type Matrix [][]int

// Top returns at most l of the SNPs most similar to snp.
func (m Matrix) Top(snp, l int) []int {
	row := m[snp]
	if l < len(row) {
		return row[:l]
	}
	return row
}

// TopN returns for every row of data the indices of up to n other rows
// most similar to it. Every unordered pair of rows is compared once,
// and the similarity is fed to the queues of both rows.
//
// Rows are processed in parallel. Ties are broken by row index in the
// queues, so the result does not depend on scheduling.
func TopN(run *progress.Run, sim Similarity, data [][]genotype.Call, n int) Matrix {
	rows := len(data)
	queues := make([]*TopQueue, rows)
	for i := range queues {
		queues[i] = NewTopQueue(n)
	}
	run.Start("computing similarities", rows*(rows-1)/2)
	process := func(i int) {
		a := data[i]
		for j := i + 1; j < rows; j++ {
			s := sim.Calculate(a, data[j])
			queues[i].Add(j, s)
			queues[j].Add(i, s)
		}
		run.Step(rows - i - 1)
	}
	// pair short rows with long rows for an even load per batch
	parallel.Range(0, (rows+1)/2, 0, func(low, high int) {
		for i := low; i < high; i++ {
			process(i)
			if other := rows - 1 - i; other != i {
				process(other)
			}
		}
	})
	result := make(Matrix, rows)
	for i, q := range queues {
		result[i] = q.Entries()
	}
	return result
}

// LimitedTopN is TopN restricted to the given target rows. Each target
// is compared against all other rows, with the lower row as the first
// argument of the similarity as in TopN, so both agree on every target
// row. Rows that are not targets are nil in the result.
func LimitedTopN(run *progress.Run, sim Similarity, data [][]genotype.Call, n int, targets []int) Matrix {
	rows := len(data)
	result := make(Matrix, rows)
	run.Start("computing limited similarities", len(targets)*(rows-1))
	parallel.Range(0, len(targets), 0, func(low, high int) {
		for _, t := range targets[low:high] {
			q := NewTopQueue(n)
			a := data[t]
			for j, b := range data {
				switch {
				case j < t:
					q.Add(j, sim.Calculate(b, a))
				case j > t:
					q.Add(j, sim.Calculate(a, b))
				}
			}
			result[t] = q.Entries()
			run.Step(rows - 1)
		}
	})
	return result
}

// Neighbours computes the similarity matrix for the rows in targets,
// or for all rows if targets is nil. When the targets are less than
// half of all rows, only their rows are computed with LimitedTopN.
func Neighbours(run *progress.Run, sim Similarity, data [][]genotype.Call, n int, targets *bitset.BitSet) Matrix {
	if targets == nil || 2*targets.Count() >= uint(len(data)) {
		return TopN(run, sim, data, n)
	}
	indices := make([]int, 0, targets.Count())
	for i, ok := targets.NextSet(0); ok; i, ok = targets.NextSet(i + 1) {
		indices = append(indices, int(i))
	}
	return LimitedTopN(run, sim, data, n, indices)
}
