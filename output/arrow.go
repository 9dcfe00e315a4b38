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

// Package output writes genotype probabilities and accuracy reports.
package output

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"github.com/exascience/elimpute/genotype"
)

// Column names of the probability files.
var ProbabilityFields = []string{"snp", "sample", "p0", "p1", "p2", "call"}

var probabilitySchema = arrow.NewSchema([]arrow.Field{
	{Name: "snp", Type: arrow.BinaryTypes.String},
	{Name: "sample", Type: arrow.BinaryTypes.String},
	{Name: "p0", Type: arrow.PrimitiveTypes.Float64},
	{Name: "p1", Type: arrow.PrimitiveTypes.Float64},
	{Name: "p2", Type: arrow.PrimitiveTypes.Float64},
	{Name: "call", Type: arrow.PrimitiveTypes.Int8},
}, nil)

// ArrowWriter writes one row per genotype into an Arrow IPC file,
// flushing a record batch every chunkSize rows.
type ArrowWriter struct {
	file           *os.File
	writer         *ipc.FileWriter
	snp, sample    *array.StringBuilder
	probs          [genotype.NofClasses]*array.Float64Builder
	call           *array.Int8Builder
	chunkSize      int
	numRowsInChunk int
}

// NewArrowWriter creates the file and writes the schema.
func NewArrowWriter(filePath string, chunkSize int) (*ArrowWriter, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("invalid chunk size %v", chunkSize)
	}
	pool := memory.NewGoAllocator()
	file, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}
	writer, err := ipc.NewFileWriter(file, ipc.WithSchema(probabilitySchema), ipc.WithAllocator(pool))
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	aw := &ArrowWriter{
		file:      file,
		writer:    writer,
		snp:       array.NewStringBuilder(pool),
		sample:    array.NewStringBuilder(pool),
		call:      array.NewInt8Builder(pool),
		chunkSize: chunkSize,
	}
	for i := range aw.probs {
		aw.probs[i] = array.NewFloat64Builder(pool)
	}
	return aw, nil
}

// Write appends a single row.
func (aw *ArrowWriter) Write(snp, sample string, p genotype.Probability, call genotype.Call) error {
	aw.snp.Append(snp)
	aw.sample.Append(sample)
	for i, v := range p {
		aw.probs[i].Append(v)
	}
	aw.call.Append(int8(call))
	aw.numRowsInChunk++
	if aw.numRowsInChunk == aw.chunkSize {
		return aw.writeChunk()
	}
	return nil
}

func (aw *ArrowWriter) writeChunk() error {
	cols := []arrow.Array{aw.snp.NewArray(), aw.sample.NewArray()}
	for _, b := range aw.probs {
		cols = append(cols, b.NewArray())
	}
	cols = append(cols, aw.call.NewArray())
	defer func() {
		for _, col := range cols {
			col.Release()
		}
	}()
	record := array.NewRecord(probabilitySchema, cols, int64(aw.numRowsInChunk))
	defer record.Release()
	if err := aw.writer.Write(record); err != nil {
		return err
	}
	aw.numRowsInChunk = 0
	return nil
}

// Close flushes the remaining rows and closes the file.
func (aw *ArrowWriter) Close() error {
	if aw.numRowsInChunk > 0 {
		if err := aw.writeChunk(); err != nil {
			_ = aw.file.Close()
			return err
		}
	}
	aw.snp.Release()
	aw.sample.Release()
	for _, b := range aw.probs {
		b.Release()
	}
	aw.call.Release()
	if err := aw.writer.Close(); err != nil {
		_ = aw.file.Close()
		return err
	}
	return aw.file.Close()
}

// WriteProbabilities stores probs in an Arrow IPC file, SNP by SNP, with
// chunkSNPs SNPs per record batch. Calls are hard calls without
// thresholds.
func WriteProbabilities(filePath string, snps, samples []string, probs genotype.ProbabilityMatrix, chunkSNPs int) (err error) {
	if len(probs) != len(samples) {
		return fmt.Errorf("%v samples for %v probability rows", len(samples), len(probs))
	}
	chunkSize := chunkSNPs * len(samples)
	if chunkSize < 1 {
		chunkSize = 1
	}
	aw, err := NewArrowWriter(filePath, chunkSize)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := aw.Close(); nerr != nil && err == nil {
			err = nerr
		}
	}()
	for snp, id := range snps {
		for sample, name := range samples {
			p := probs[sample][snp]
			c, _ := p.Best()
			if err = aw.Write(id, name, p, c); err != nil {
				return err
			}
		}
	}
	return nil
}
