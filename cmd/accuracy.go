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

	"github.com/exascience/elimpute/accuracy"
	"github.com/exascience/elimpute/config"
	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/internal"
	"github.com/exascience/elimpute/output"
	"github.com/exascience/elimpute/progress"
	"github.com/exascience/elimpute/readcounts"
	"github.com/exascience/elimpute/tune"
)

// AccuracyHelp is the help string for this command.
const AccuracyHelp = "\naccuracy parameters:\n" +
	"elimpute accuracy readcounts-file\n" +
	"[--config yaml-file]\n" +
	"[--tuned-config yaml-file]\n" +
	"[--report tsv-file]\n" +
	"[--seed nr]\n" +
	"[--nr-of-threads nr]\n" +
	"[--timed]\n" +
	"[--profile prefix]\n" +
	"[--log-path path]\n"

func logStats(name string, s *accuracy.Stats) {
	log.Printf("%v: accuracy %.4f (%v/%v correct, %v without call), r2 %.4f", name, s.Accuracy(), s.Correct(), s.Total(), s.Missing(), s.Correlation())
}

// Accuracy implements the elimpute accuracy command.
func Accuracy() error {
	var (
		configFile, tunedConfigFile string
		reportFile                  string
		seed                        int64
		nrOfThreads                 int
		timed                       bool
		profile                     string
		logPath                     string
	)

	var flags flag.FlagSet

	flags.StringVar(&configFile, "config", "", "read parameters from the given YAML file")
	flags.StringVar(&tunedConfigFile, "tuned-config", "", "write the tuned parameters to the given YAML file")
	flags.StringVar(&reportFile, "report", "", "write accuracy tables to the given file")
	flags.Int64Var(&seed, "seed", 0, "seed of the random masks, overrides the configuration")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 3, AccuracyHelp)

	input := getFilename(os.Args[2], AccuracyHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}
	if configFile != "" && !checkExist("--config", configFile) {
		sanityChecksFailed = true
	}
	if tunedConfigFile != "" && !checkCreate("--tuned-config", tunedConfigFile) {
		sanityChecksFailed = true
	}
	if reportFile != "" && !checkCreate("--report", reportFile) {
		sanityChecksFailed = true
	}
	if profile != "" && !checkCreate("--profile", profile) {
		sanityChecksFailed = true
	}
	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, AccuracyHelp)
		os.Exit(1)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " accuracy ", input)
	if configFile != "" {
		fmt.Fprint(&command, " --config ", configFile)
	}
	if tunedConfigFile != "" {
		fmt.Fprint(&command, " --tuned-config ", tunedConfigFile)
	}
	if reportFile != "" {
		fmt.Fprint(&command, " --report ", reportFile)
	}
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			cfg.Seed = seed
		}
	})
	fmt.Fprint(&command, " --seed ", cfg.Seed)
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
		data   *readcounts.Data
		result *tune.Result
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

	if err := timedRun(timed, profile, "Tuning and validating.", 2, func() error {
		settings, err := cfg.Settings(genotype.DepthDistribution(data.Reads))
		if err != nil {
			return err
		}
		result, err = tune.Validate(run, settings, data.Reads, internal.NewRand(cfg.Seed))
		return err
	}); err != nil {
		return err
	}

	log.Printf("Tuned imputer: k=%v l=%v, tuned combiner: weight=%v", result.Imputer.K, result.Imputer.L, result.Combiner.Weight)
	logStats("called", result.CalledStats)
	logStats("imputed", result.ImputedStats)
	logStats("combined", result.CombinedStats)

	return timedRun(timed, profile, "Writing output.", 3, func() error {
		if reportFile != "" {
			if err := output.WriteAccuracy(reportFile, []output.Stage{
				{Name: "called", Stats: result.CalledStats},
				{Name: "imputed", Stats: result.ImputedStats},
				{Name: "combined", Stats: result.CombinedStats},
			}); err != nil {
				return err
			}
		}
		if tunedConfigFile != "" {
			return cfg.Tuned(result).Write(tunedConfigFile)
		}
		return nil
	})
}
