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

// Package readcounts reads and writes tab-separated allele read count
// files.
//
// A read count file starts with a header line "#SNP" followed by one
// tab-separated column per sample. Every further line holds a SNP
// identifier followed by one "ref,alt" pair per sample. An empty field or
// "." stands for no reads. Files may be gzip-compressed.
package readcounts

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/exascience/pargo/parallel"
	"github.com/exascience/pargo/pipeline"
	"github.com/klauspost/compress/gzip"

	"github.com/exascience/elimpute/genotype"
)

// HeaderPrefix is the first field of the header line.
const HeaderPrefix = "#SNP"

// Data is the contents of a read count file. Reads is indexed by sample,
// then SNP.
type Data struct {
	SNPs    []string
	Samples []string
	Reads   genotype.ReadMatrix
}

var gzipMagic = []byte{0x1f, 0x8b}

type snpRow struct {
	id     string
	counts []genotype.ReadCounts
}

func parseCounts(field string) (r genotype.ReadCounts, err error) {
	if field == "" || field == "." {
		return
	}
	comma := strings.IndexByte(field, ',')
	if comma < 0 {
		return r, fmt.Errorf("invalid read counts %q", field)
	}
	ref, err := strconv.ParseInt(field[:comma], 10, 32)
	if err != nil {
		return r, err
	}
	alt, err := strconv.ParseInt(field[comma+1:], 10, 32)
	if err != nil {
		return r, err
	}
	if ref < 0 || alt < 0 {
		return r, fmt.Errorf("negative read counts %q", field)
	}
	r[0], r[1] = int32(ref), int32(alt)
	return r, nil
}

func parseRow(line string, samples int) (row snpRow, err error) {
	fields := strings.Split(strings.TrimRight(line, "\r"), "\t")
	if len(fields) != samples+1 {
		return row, fmt.Errorf("line %q has %v fields, expected %v", line, len(fields), samples+1)
	}
	row.id = fields[0]
	row.counts = make([]genotype.ReadCounts, samples)
	for i, field := range fields[1:] {
		if row.counts[i], err = parseCounts(field); err != nil {
			return row, fmt.Errorf("%v, in SNP %v", err, row.id)
		}
	}
	return row, nil
}

// Parse reads a read count table from reader. Compressed input is
// detected automatically.
func Parse(reader io.Reader) (*Data, error) {
	buffered := bufio.NewReader(reader)
	if magic, err := buffered.Peek(2); err == nil && bytes.Equal(magic, gzipMagic) {
		zr, err := gzip.NewReader(buffered)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		buffered = bufio.NewReader(zr)
	}
	header, err := buffered.ReadString('\n')
	if err != nil && (err != io.EOF || header == "") {
		return nil, fmt.Errorf("missing header line: %w", err)
	}
	fields := strings.Split(strings.TrimRight(header, "\r\n"), "\t")
	if fields[0] != HeaderPrefix {
		return nil, fmt.Errorf("invalid header line %q", header)
	}
	data := &Data{Samples: fields[1:]}
	samples := len(data.Samples)
	var rows []snpRow

	var p pipeline.Pipeline
	p.Source(pipeline.NewScanner(buffered))
	p.Add(pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
		lines := data.([]string)
		result := make([]snpRow, 0, len(lines))
		for _, line := range lines {
			if line == "" {
				continue
			}
			row, err := parseRow(line, samples)
			if err != nil {
				p.SetErr(err)
				return result
			}
			result = append(result, row)
		}
		return result
	})))
	p.Add(pipeline.Ord(pipeline.Receive(func(_ int, data interface{}) interface{} {
		rows = append(rows, data.([]snpRow)...)
		return data
	})))
	p.Run()
	if err := p.Err(); err != nil {
		return nil, err
	}

	data.SNPs = make([]string, len(rows))
	for i, row := range rows {
		data.SNPs[i] = row.id
	}
	data.Reads = make(genotype.ReadMatrix, samples)
	parallel.Range(0, samples, 0, func(low, high int) {
		for sample := low; sample < high; sample++ {
			reads := make([]genotype.ReadCounts, len(rows))
			for snp, row := range rows {
				reads[snp] = row.counts[sample]
			}
			data.Reads[sample] = reads
		}
	})
	return data, nil
}

// Read loads a read count file.
func Read(filename string) (data *Data, err error) {
	pathname, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}
	in, err := os.Open(pathname)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := in.Close(); nerr != nil {
			if err == nil {
				data, err = nil, nerr
			}
		}
	}()
	return Parse(in)
}

// Format writes data as a read count table.
func (data *Data) Format(writer io.Writer) error {
	out := bufio.NewWriter(writer)
	buf := append([]byte(nil), HeaderPrefix...)
	for _, sample := range data.Samples {
		buf = append(buf, '\t')
		buf = append(buf, sample...)
	}
	buf = append(buf, '\n')
	if _, err := out.Write(buf); err != nil {
		return err
	}
	for snp, id := range data.SNPs {
		buf = append(buf[:0], id...)
		for _, row := range data.Reads {
			buf = append(buf, '\t')
			buf = strconv.AppendInt(buf, int64(row[snp].Ref()), 10)
			buf = append(buf, ',')
			buf = strconv.AppendInt(buf, int64(row[snp].Alt()), 10)
		}
		buf = append(buf, '\n')
		if _, err := out.Write(buf); err != nil {
			return err
		}
	}
	return out.Flush()
}

// Write stores data in a read count file. Filenames ending in .gz are
// compressed.
func (data *Data) Write(filename string) (err error) {
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
	if filepath.Ext(pathname) != ".gz" {
		return data.Format(output)
	}
	zw := gzip.NewWriter(output)
	if err = data.Format(zw); err != nil {
		return err
	}
	return zw.Close()
}
