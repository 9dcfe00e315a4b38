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

package distribution

import (
	"testing"

	"github.com/exascience/elimpute/internal"
)

func TestDistribution(t *testing.T) {
	d := FromValues([]string{"a", "b", "a", "c", "a"})
	if d.Total() != 5 {
		t.Error("Total failed")
	}
	if d.Count("a") != 3 || d.Count("z") != 0 {
		t.Error("Count failed")
	}
	if d.Proportion("b") != 0.2 {
		t.Error("Proportion failed")
	}
	if len(d.Values()) != 3 {
		t.Error("Values failed")
	}
	if New(map[int]int{1: 0, 2: -1}).Total() != 0 {
		t.Error("New with empty counts failed")
	}
	if New(map[int]int{}).Proportion(1) != 0 {
		t.Error("empty Proportion failed")
	}
}

func TestComparable(t *testing.T) {
	c := NewComparable(map[int]int{5: 1, 1: 2, 3: 3, 40: 4})
	values := c.Values()
	for i, v := range []int{1, 3, 5, 40} {
		if values[i] != v {
			t.Error("sorted Values failed")
		}
	}
	limited := c.LimitTo(2, 5)
	if limited.Total() != 4 || limited.Count(1) != 0 || limited.Count(3) != 3 || limited.Count(5) != 1 {
		t.Error("LimitTo failed")
	}
	if c.LimitTo(6, 39).Total() != 0 {
		t.Error("empty LimitTo failed")
	}
}

func TestSample(t *testing.T) {
	c := NewComparable(map[int]int{0: 1, 10: 3})
	rnd := internal.NewRand(42)
	counts := make(map[int]int)
	const n = 20000
	for i := 0; i < n; i++ {
		counts[c.Sample(rnd)]++
	}
	if len(counts) != 2 {
		t.Error("Sample values failed")
	}
	if p := float64(counts[10]) / n; p < 0.72 || p > 0.78 {
		t.Errorf("Sample proportion %v failed", p)
	}
	single := NewComparable(map[string]int{"x": 7})
	if single.Sample(rnd) != "x" {
		t.Error("single value Sample failed")
	}
}

func TestSampleEmpty(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("empty Sample failed")
		}
	}()
	NewComparable(map[int]int{}).Sample(internal.NewRand(1))
}
