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

package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/exascience/elimpute/accuracy"
	"github.com/exascience/elimpute/genotype"
)

// ReportHeader is the header line of accuracy reports.
const ReportHeader = "stage\tdepth\tgenotype\tcorrect\ttotal\taccuracy\n"

// Stage holds the statistics of one step of the pipeline, such as "called" or
// "imputed".
type Stage struct {
	Name  string
	Stats *accuracy.Stats
}

func writeLine(out *bufio.Writer, stage, depth, g string, correct, total int, acc float64) error {
	_, err := fmt.Fprintf(out, "%v\t%v\t%v\t%v\t%v\t%.6f\n", stage, depth, g, correct, total, acc)
	return err
}

// FormatAccuracy writes the overall, per depth, per genotype and per
// depth and genotype counts of every stage as a tab-separated table. "*"
// marks a bucket that spans all depths or all genotypes, and an empty
// bucket has accuracy -1.
func FormatAccuracy(writer io.Writer, stages []Stage) error {
	out := bufio.NewWriter(writer)
	if _, err := out.WriteString(ReportHeader); err != nil {
		return err
	}
	for _, stage := range stages {
		s := stage.Stats
		if err := writeLine(out, stage.Name, "*", "*", s.Correct(), s.Total(), s.Accuracy()); err != nil {
			return err
		}
		for g := genotype.HomRef; g <= genotype.HomAlt; g++ {
			correct, total := s.GenotypeCounts(g)
			if err := writeLine(out, stage.Name, "*", g.String(), correct, total, s.GenotypeAccuracy(g)); err != nil {
				return err
			}
		}
		for _, depth := range s.Depths() {
			d := fmt.Sprint(depth)
			correct, total := s.DepthCounts(depth)
			if err := writeLine(out, stage.Name, d, "*", correct, total, s.DepthAccuracy(depth)); err != nil {
				return err
			}
			for g := genotype.HomRef; g <= genotype.HomAlt; g++ {
				correct, total := s.DepthGenotypeCounts(depth, g)
				if total == 0 {
					continue
				}
				if err := writeLine(out, stage.Name, d, g.String(), correct, total, s.DepthGenotypeAccuracy(depth, g)); err != nil {
					return err
				}
			}
		}
	}
	return out.Flush()
}

// WriteAccuracy stores an accuracy report in a file.
func WriteAccuracy(filename string, stages []Stage) (err error) {
	pathname, err := filepath.Abs(filename)
	if err != nil {
		return err
	}
	output, err := os.Create(pathname)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := output.Close(); nerr != nil {
			if err == nil {
				err = nerr
			}
		}
	}()
	return FormatAccuracy(output, stages)
}
