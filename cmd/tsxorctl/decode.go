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
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/tsdbkit/chunkenc/blockcodec"
	"github.com/tsdbkit/chunkenc/tsdb/chunkenc"
)

// runDecode reads a chunk written by runEncode from in (reversing any
// blockcodec framing) and writes its samples as "timestamp value" lines to
// out.
func runDecode(logger log.Logger, m *metrics, inPath, outPath string, format blockcodec.Format) error {
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

	raw, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading input")
	}

	if format != blockcodec.FormatNone {
		raw, err = blockcodec.Decode(raw)
		if err != nil {
			return errors.Wrap(err, "unframing chunk")
		}
	}

	c, err := chunkenc.NewXORChunkFromBytes(raw)
	if err != nil {
		return errors.Wrap(err, "parsing chunk")
	}

	it := c.Iterator(nil)
	n := 0
	for it.Next() {
		t, v := it.At()
		if _, err := fmt.Fprintf(w, "%d %s\n", t, formatValue(v)); err != nil {
			return errors.Wrap(err, "writing sample")
		}
		n++
	}
	if err := it.Err(); err != nil {
		return errors.Wrap(err, "decoding chunk")
	}

	m.samplesDecoded.Add(float64(n))
	level.Info(logger).Log("msg", "decoded chunk", "samples", n)

	return nil
}

func formatValue(v float64) string {
	return fmt.Sprintf("%g", v)
}
