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

// Package optimize implements generic numeric searches that maximize a
// scalar objective.
package optimize

import (
	"fmt"
	"log"
	"math"
)

// A DoubleOptimizer maximizes an objective over a real-valued
// parameter.
type DoubleOptimizer interface {
	Optimize(f func(float64) float64) (x, fx float64)
}

// An IntegerOptimizer maximizes an objective over a vector of integer
// parameters, starting from the given vector.
type IntegerOptimizer interface {
	Optimize(f func([]int) float64, start []int) (x []int, fx float64)
}

// DoubleConfig selects and parameterizes a DoubleOptimizer.
type DoubleConfig struct {
	Method    string  `yaml:"method"`
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
	Interval  float64 `yaml:"interval,omitempty"`
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// IntegerConfig selects and parameterizes an IntegerOptimizer.
type IntegerConfig struct {
	Method string `yaml:"method"`
	Step   int    `yaml:"step"`
	Min    []int  `yaml:"min"`
	Max    []int  `yaml:"max"`
}

var doubleOptimizers = map[string]func(cfg DoubleConfig) (DoubleOptimizer, error){
	"grid": func(cfg DoubleConfig) (DoubleOptimizer, error) {
		if cfg.Interval <= 0 {
			return nil, fmt.Errorf("grid interval %v must be positive", cfg.Interval)
		}
		return Grid{Min: cfg.Min, Max: cfg.Max, Interval: cfg.Interval}, nil
	},
	"golden": func(cfg DoubleConfig) (DoubleOptimizer, error) {
		if cfg.Tolerance <= 0 {
			return nil, fmt.Errorf("golden section tolerance %v must be positive", cfg.Tolerance)
		}
		return Golden{Min: cfg.Min, Max: cfg.Max, Tolerance: cfg.Tolerance}, nil
	},
}

var integerOptimizers = map[string]func(cfg IntegerConfig) (IntegerOptimizer, error){
	"descent": func(cfg IntegerConfig) (IntegerOptimizer, error) {
		if cfg.Step < 1 {
			return nil, fmt.Errorf("descent step %v must be at least 1", cfg.Step)
		}
		return Descent{Min: cfg.Min, Max: cfg.Max, Step: cfg.Step}, nil
	},
}

// NewDouble returns the DoubleOptimizer registered under cfg.Method.
func NewDouble(cfg DoubleConfig) (DoubleOptimizer, error) {
	cons, ok := doubleOptimizers[cfg.Method]
	if !ok {
		return nil, fmt.Errorf("unknown double optimizer %q", cfg.Method)
	}
	if cfg.Min > cfg.Max {
		return nil, fmt.Errorf("optimizer range [%v, %v] is empty", cfg.Min, cfg.Max)
	}
	return cons(cfg)
}

// NewInteger returns the IntegerOptimizer registered under cfg.Method.
func NewInteger(cfg IntegerConfig) (IntegerOptimizer, error) {
	cons, ok := integerOptimizers[cfg.Method]
	if !ok {
		return nil, fmt.Errorf("unknown integer optimizer %q", cfg.Method)
	}
	if len(cfg.Min) != len(cfg.Max) {
		return nil, fmt.Errorf("optimizer bounds %v and %v differ in length", cfg.Min, cfg.Max)
	}
	for i := range cfg.Min {
		if cfg.Min[i] > cfg.Max[i] {
			return nil, fmt.Errorf("optimizer range [%v, %v] is empty", cfg.Min[i], cfg.Max[i])
		}
	}
	return cons(cfg)
}

// Grid evaluates the objective at Min, Min+Interval, Min+2*Interval, ...
// up to but excluding Max, and at Max itself, and returns the best
// point. The earliest point wins ties.
type Grid struct {
	Min, Max, Interval float64
}

// Optimize implements DoubleOptimizer.
func (g Grid) Optimize(f func(float64) float64) (x, fx float64) {
	if g.Interval <= 0 {
		log.Panicf("grid interval %v must be positive", g.Interval)
	}
	x, fx = math.NaN(), math.Inf(-1)
	try := func(v float64) {
		if fv := f(v); fv > fx || math.IsNaN(x) {
			x, fx = v, fv
		}
	}
	for i := 0; ; i++ {
		v := g.Min + float64(i)*g.Interval
		if v >= g.Max-g.Interval*1e-9 {
			break
		}
		try(v)
	}
	try(g.Max)
	return
}

var invPhi = (math.Sqrt(5) - 1) / 2

// Golden performs a golden-section search on [Min, Max] until the
// bracket is narrower than Tolerance. The objective is assumed to be
// unimodal on the range.
type Golden struct {
	Min, Max, Tolerance float64
}

// Optimize implements DoubleOptimizer.
func (g Golden) Optimize(f func(float64) float64) (x, fx float64) {
	if g.Tolerance <= 0 {
		log.Panicf("golden section tolerance %v must be positive", g.Tolerance)
	}
	a, b := g.Min, g.Max
	c, d := b-invPhi*(b-a), a+invPhi*(b-a)
	fc, fd := f(c), f(d)
	for b-a > g.Tolerance {
		if fc > fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			fc = f(c)
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			fd = f(d)
		}
	}
	x = (a + b) / 2
	return x, f(x)
}

// Descent is a coordinate grid descent over integer vectors. At each
// round it tries moving every coordinate by plus and minus the current
// step, and moves to the best strict improvement. Without improvement
// the step is halved. The search ends when the step reaches 0.
//
// Min and Max bound the coordinates; nil means unbounded.
type Descent struct {
	Min, Max []int
	Step     int
}

func (d Descent) inBounds(x []int) bool {
	for i, v := range x {
		if d.Min != nil && v < d.Min[i] {
			return false
		}
		if d.Max != nil && v > d.Max[i] {
			return false
		}
	}
	return true
}

// Optimize implements IntegerOptimizer. Each point is evaluated at most
// once.
func (d Descent) Optimize(f func([]int) float64, start []int) (x []int, fx float64) {
	if (d.Min != nil && len(d.Min) != len(start)) || (d.Max != nil && len(d.Max) != len(start)) {
		log.Panicf("bounds %v, %v do not match start %v", d.Min, d.Max, start)
	}
	x = append([]int(nil), start...)
	for i := range x {
		if d.Min != nil && x[i] < d.Min[i] {
			x[i] = d.Min[i]
		}
		if d.Max != nil && x[i] > d.Max[i] {
			x[i] = d.Max[i]
		}
	}
	cache := make(map[string]float64)
	eval := func(v []int) float64 {
		key := fmt.Sprint(v)
		if fv, ok := cache[key]; ok {
			return fv
		}
		fv := f(v)
		cache[key] = fv
		return fv
	}
	fx = eval(x)
	for step := d.Step; step > 0; {
		var best []int
		bestValue := fx
		for i := range x {
			for _, delta := range [2]int{step, -step} {
				candidate := append([]int(nil), x...)
				candidate[i] += delta
				if !d.inBounds(candidate) {
					continue
				}
				if v := eval(candidate); v > bestValue {
					best, bestValue = candidate, v
				}
			}
		}
		if best == nil {
			step /= 2
		} else {
			x, fx = best, bestValue
		}
	}
	return x, fx
}
