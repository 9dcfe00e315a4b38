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

// Package config reads and writes the YAML parameter files of elimpute.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/exascience/elimpute/accuracy"
	"github.com/exascience/elimpute/caller"
	"github.com/exascience/elimpute/combine"
	"github.com/exascience/elimpute/correlation"
	"github.com/exascience/elimpute/distribution"
	"github.com/exascience/elimpute/impute"
	"github.com/exascience/elimpute/optimize"
	"github.com/exascience/elimpute/tune"
)

// Optimize holds the optimizer section of a configuration file.
type Optimize struct {
	Objective string                 `yaml:"objective"`
	Imputer   optimize.IntegerConfig `yaml:"imputer"`
	Combiner  optimize.DoubleConfig  `yaml:"combiner"`
}

// Config is the contents of a configuration file.
type Config struct {
	Seed       int64               `yaml:"seed"`
	Similarity string              `yaml:"similarity"`
	Caller     caller.Config       `yaml:"caller"`
	Imputer    impute.Config       `yaml:"imputer"`
	Combiner   combine.Config      `yaml:"combiner"`
	Mask       accuracy.MaskConfig `yaml:"mask"`
	Optimize   Optimize            `yaml:"optimize"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Seed:       1,
		Similarity: "pearson",
		Caller:     caller.Config{Method: "log-binomial", Error: 0.01, Bias: 0.5},
		Imputer:    impute.Config{K: 5, L: 20, KnownDepth: 8, ZeroWeight: "caller"},
		Combiner:   combine.Config{Method: "max-depth", MaxDepth: 8, Weight: 0.5},
		Mask:       accuracy.MaskConfig{Number: 10000, MinDepth: 30, Method: "all"},
		Optimize: Optimize{
			Objective: "accuracy",
			Imputer:   optimize.IntegerConfig{Method: "descent", Step: 8, Min: []int{1, 1}, Max: []int{100, 500}},
			Combiner:  optimize.DoubleConfig{Method: "grid", Min: 0, Max: 1, Interval: 0.05, Tolerance: 1e-3},
		},
	}
}

// Parse reads a configuration from YAML. Fields that are not present
// keep their default values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads a configuration file. An empty filename yields the default
// configuration.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open the config file: %w", err)
	}
	return Parse(data)
}

// Write stores the configuration as a YAML file.
func (cfg *Config) Write(filename string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0666)
}

// Validate checks that every component of the configuration can be
// constructed.
func (cfg *Config) Validate() error {
	if _, err := cfg.Settings(distribution.NewComparable(map[int]int{})); err != nil {
		return err
	}
	return nil
}

// NewCaller constructs the configured caller.
func (cfg *Config) NewCaller() (caller.Caller, error) {
	return caller.New(cfg.Caller)
}

// Settings constructs all components of a validation run. depths is the
// distribution masked genotypes draw their target depths from.
func (cfg *Config) Settings(depths *distribution.Comparable[int]) (s tune.Settings, err error) {
	if s.Caller, err = caller.New(cfg.Caller); err != nil {
		return
	}
	if s.Similarity, err = correlation.New(cfg.Similarity); err != nil {
		return
	}
	if s.Imputer, err = impute.New(cfg.Imputer); err != nil {
		return
	}
	comb, err := combine.New(cfg.Combiner)
	if err != nil {
		return
	}
	maxDepth, ok := comb.(combine.MaxDepth)
	if !ok {
		err = fmt.Errorf("combiner %q cannot be tuned", cfg.Combiner.Method)
		return
	}
	s.Combiner = maxDepth
	if s.Mask, err = accuracy.NewMask(cfg.Mask, depths); err != nil {
		return
	}
	if len(cfg.Optimize.Imputer.Min) != 2 || len(cfg.Optimize.Imputer.Max) != 2 {
		err = fmt.Errorf("imputer optimizer bounds must have two values (k and l)")
		return
	}
	if s.ImputerOptimizer, err = optimize.NewInteger(cfg.Optimize.Imputer); err != nil {
		return
	}
	if s.CombinerOptimizer, err = optimize.NewDouble(cfg.Optimize.Combiner); err != nil {
		return
	}
	if s.Objective, err = tune.ParseObjective(cfg.Optimize.Objective); err != nil {
		return
	}
	s.MaxL = cfg.Optimize.Imputer.Max[1]
	return s, nil
}

// Tuned returns a copy of cfg with the tuned imputer and combiner
// parameters of result.
func (cfg *Config) Tuned(result *tune.Result) *Config {
	tuned := *cfg
	tuned.Imputer = result.Imputer.Config()
	tuned.Combiner = result.Combiner.Config()
	return &tuned
}
