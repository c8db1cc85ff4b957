// Copyright 2017 The Prometheus Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/tsdbkit/chunkenc/blockcodec"
	"github.com/tsdbkit/chunkenc/tsdb/chunkenc"
)

// runEncode reads "timestamp value" lines from in, appends them to a single
// XORChunk, optionally compresses and frames the result with blockcodec, and
// writes the bytes to out.
func runEncode(logger log.Logger, m *metrics, inPath, outPath string, format blockcodec.Format) error {
	r, closeIn, err := openInput(inPath)
	if err != nil {
		return err
	}
	defer closeIn()

	w, closeOut, err := openOutput(outPath)
	if err != nil {
		return err
	}
	defer closeOut()

	c := chunkenc.NewXORChunk()
	app, err := c.Appender()
	if err != nil {
		return errors.Wrap(err, "creating appender")
	}

	n, err := appendSampleLines(app, r)
	if err != nil {
		return err
	}
	m.samplesEncoded.Add(float64(n))
	m.chunkBytes.Observe(float64(len(c.Bytes())))

	payload := c.Bytes()
	if format != blockcodec.FormatNone {
		payload, err = blockcodec.Encode(format, payload)
		if err != nil {
			return errors.Wrap(err, "framing chunk")
		}
	}

	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "writing chunk")
	}

	level.Info(logger).Log("msg", "encoded chunk", "samples", n, "bytes", len(payload), "compress", format)

	return nil
}

// appendSampleLines parses "timestamp value" lines from r and appends each
// to app, returning the number of samples appended.
func appendSampleLines(app chunkenc.Appender, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	n := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return n, errors.Errorf("malformed sample line %q: want \"timestamp value\"", line)
		}

		t, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return n, errors.Wrapf(err, "parsing timestamp %q", fields[0])
		}

		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return n, errors.Wrapf(err, "parsing value %q", fields[1])
		}

		if err := app.Append(t, v); err != nil {
			return n, errors.Wrapf(err, "appending sample %d", n)
		}
		n++
	}

	return n, errors.Wrap(scanner.Err(), "scanning input")
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening %s", path)
	}

	return f, func() { f.Close() }, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "creating %s", path)
	}

	return f, func() { f.Close() }, nil
}
