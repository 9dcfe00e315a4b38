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

package optimize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	if _, err := NewDouble(DoubleConfig{Method: "grid", Min: 0, Max: 1, Interval: 0.05}); err != nil {
		t.Error("NewDouble grid failed")
	}
	if _, err := NewDouble(DoubleConfig{Method: "grid", Min: 0, Max: 1}); err == nil {
		t.Error("NewDouble grid interval failed")
	}
	if _, err := NewDouble(DoubleConfig{Method: "golden", Min: 1, Max: 0, Tolerance: 1e-3}); err == nil {
		t.Error("NewDouble empty range failed")
	}
	if _, err := NewDouble(DoubleConfig{Method: "newton"}); err == nil {
		t.Error("NewDouble unknown failed")
	}
	if _, err := NewInteger(IntegerConfig{Method: "descent", Step: 8, Min: []int{1, 1}, Max: []int{100, 500}}); err != nil {
		t.Error("NewInteger failed")
	}
	if _, err := NewInteger(IntegerConfig{Method: "descent", Step: 0}); err == nil {
		t.Error("NewInteger step failed")
	}
	if _, err := NewInteger(IntegerConfig{Method: "descent", Step: 1, Min: []int{1}, Max: []int{1, 2}}); err == nil {
		t.Error("NewInteger bounds failed")
	}
}

func TestGrid(t *testing.T) {
	var evaluated []float64
	x, fx := Grid{Min: 0, Max: 1, Interval: 0.3}.Optimize(func(x float64) float64 {
		evaluated = append(evaluated, x)
		return -(x - 0.65) * (x - 0.65)
	})
	if len(evaluated) != 5 || evaluated[4] != 1 {
		t.Error("Grid points failed", evaluated)
	}
	assert.InDelta(t, 0.6, x, 1e-12)
	assert.InDelta(t, -0.0025, fx, 1e-12)
	x, _ = Grid{Min: 0, Max: 1, Interval: 0.25}.Optimize(func(float64) float64 { return 1 })
	if x != 0 {
		t.Error("Grid tie failed")
	}
	x, _ = Grid{Min: 0.5, Max: 0.5, Interval: 0.1}.Optimize(func(x float64) float64 { return x })
	if x != 0.5 {
		t.Error("Grid single point failed")
	}
}

func TestGolden(t *testing.T) {
	x, fx := Golden{Min: 0, Max: 1, Tolerance: 1e-6}.Optimize(func(x float64) float64 {
		return -math.Abs(x - 0.3)
	})
	assert.InDelta(t, 0.3, x, 1e-5)
	assert.InDelta(t, 0, fx, 1e-5)
	x, _ = Golden{Min: 0, Max: 1, Tolerance: 1e-4}.Optimize(func(x float64) float64 { return x })
	assert.InDelta(t, 1, x, 1e-3)
}

func TestDescent(t *testing.T) {
	seen := make(map[[2]int]bool)
	f := func(x []int) float64 {
		key := [2]int{x[0], x[1]}
		if seen[key] {
			t.Error("Descent evaluated a point twice", x)
		}
		seen[key] = true
		dk, dl := float64(x[0]-5), float64(x[1]-20)
		return -dk*dk - dl*dl
	}
	x, fx := Descent{Min: []int{1, 1}, Max: []int{100, 500}, Step: 8}.Optimize(f, []int{90, 400})
	assert.Equal(t, []int{5, 20}, x)
	if fx != 0 {
		t.Error("Descent value failed")
	}
	seen = make(map[[2]int]bool)
	x, _ = Descent{Min: []int{1, 1}, Max: []int{100, 500}, Step: 8}.Optimize(f, []int{5, 20})
	assert.Equal(t, []int{5, 20}, x)
	// the start point, then its neighbours for steps 8, 4, 2 and 1,
	// except (-3, 20)
	if len(seen) != 16 {
		t.Error("Descent evaluations failed", len(seen))
	}
}

func TestDescentBounds(t *testing.T) {
	x, _ := Descent{Min: []int{1}, Max: []int{10}, Step: 4}.Optimize(func(x []int) float64 {
		if x[0] < 1 || x[0] > 10 {
			t.Error("Descent left its bounds")
		}
		return float64(x[0])
	}, []int{-3})
	assert.Equal(t, []int{10}, x)
	x, _ = Descent{Step: 2}.Optimize(func(x []int) float64 {
		return -math.Abs(float64(x[0] + 7))
	}, []int{0})
	assert.Equal(t, []int{-7}, x)
}
