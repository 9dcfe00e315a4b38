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

package cmd

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/exascience/elimpute/caller"
	"github.com/exascience/elimpute/combine"
	"github.com/exascience/elimpute/config"
	"github.com/exascience/elimpute/correlation"
	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/impute"
	"github.com/exascience/elimpute/output"
	"github.com/exascience/elimpute/progress"
	"github.com/exascience/elimpute/readcounts"
)

// ImputeHelp is the help string for this command.
const ImputeHelp = "\nimpute parameters:\n" +
	"elimpute impute readcounts-file arrow-output-file\n" +
	"[--config yaml-file]\n" +
	"[--chunk-size nr]\n" +
	"[--nr-of-threads nr]\n" +
	"[--timed]\n" +
	"[--profile prefix]\n" +
	"[--log-path path]\n"

// Impute implements the elimpute impute command.
func Impute() error {
	var (
		configFile  string
		chunkSize   int
		nrOfThreads int
		timed       bool
		profile     string
		logPath     string
	)

	var flags flag.FlagSet

	flags.StringVar(&configFile, "config", "", "read parameters from the given YAML file")
	flags.IntVar(&chunkSize, "chunk-size", 1024, "number of SNPs per record batch of the output file")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 4, ImputeHelp)

	input := getFilename(os.Args[2], ImputeHelp)
	outputFile := getFilename(os.Args[3], ImputeHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}
	if !checkCreate("", outputFile) {
		sanityChecksFailed = true
	}
	if configFile != "" && !checkExist("--config", configFile) {
		sanityChecksFailed = true
	}
	if profile != "" && !checkCreate("--profile", profile) {
		sanityChecksFailed = true
	}
	if chunkSize < 1 {
		sanityChecksFailed = true
		log.Println("Error: Invalid chunk-size: ", chunkSize)
	}
	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, ImputeHelp)
		os.Exit(1)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	c, err := caller.New(cfg.Caller)
	if err != nil {
		return err
	}
	sim, err := correlation.New(cfg.Similarity)
	if err != nil {
		return err
	}
	imp, err := impute.New(cfg.Imputer)
	if err != nil {
		return err
	}
	comb, err := combine.New(cfg.Combiner)
	if err != nil {
		return err
	}

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " impute ", input, " ", outputFile)
	if configFile != "" {
		fmt.Fprint(&command, " --config ", configFile)
	}
	fmt.Fprint(&command, " --chunk-size ", chunkSize)
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
		fmt.Fprint(&command, " --nr-of-threads ", nrOfThreads)
	}
	if timed {
		fmt.Fprint(&command, " --timed")
	}
	if profile != "" {
		fmt.Fprint(&command, " --profile ", profile)
	}
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	// executing command

	log.Println("Executing command:\n", command.String())

	run := progress.New(log.Default())
	defer run.Finish()

	var (
		data                     *readcounts.Data
		called, imputed, results genotype.ProbabilityMatrix
	)

	if err := timedRun(timed, profile, "Reading read counts.", 1, func() (err error) {
		data, err = readcounts.Read(input)
		if err == nil {
			log.Printf("Read %v SNPs for %v samples.", len(data.SNPs), len(data.Samples))
		}
		return
	}); err != nil {
		return err
	}

	if err := timedRun(timed, profile, "Calling genotypes.", 2, func() error {
		called = caller.CallMatrix(run, c, data.Reads)
		return nil
	}); err != nil {
		return err
	}

	if err := timedRun(timed, profile, "Imputing genotypes.", 3, func() error {
		imputed = imp.ImputeMatrix(run, sim, called, data.Reads)
		if n := run.ZeroWeights(); n > 0 {
			log.Printf("%v genotypes without neighbour calls, resolved with the %v policy.", n, imp.ZeroWeight)
		}
		return nil
	}); err != nil {
		return err
	}

	if err := timedRun(timed, profile, "Combining genotypes.", 4, func() error {
		results = combine.CombineMatrix(comb, called, imputed, data.Reads)
		return nil
	}); err != nil {
		return err
	}

	return timedRun(timed, profile, "Writing output.", 5, func() error {
		return output.WriteProbabilities(outputFile, data.SNPs, data.Samples, results, chunkSize)
	})
}
