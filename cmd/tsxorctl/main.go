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

// Command tsxorctl encodes newline-delimited (timestamp, value) samples into
// a chunkenc.XORChunk and decodes them back, optionally compressing the
// chunk bytes with blockcodec along the way.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tsdbkit/chunkenc/blockcodec"
)

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	if err := run(logger, os.Args[1:]); err != nil {
		level.Error(logger).Log("msg", "tsxorctl failed", "err", err)
		os.Exit(1)
	}
}

func run(logger log.Logger, args []string) error {
	app := kingpin.New("tsxorctl", "Encode and decode Gorilla-style time-series chunks.")
	app.Version("tsxorctl (unreleased)")

	m := newMetrics()

	encodeCmd := app.Command("encode", "Read \"timestamp value\" lines and write one encoded chunk.")
	encodeIn := encodeCmd.Flag("in", "Input file (default stdin).").Default("-").String()
	encodeOut := encodeCmd.Flag("out", "Output file (default stdout).").Default("-").String()
	encodeCompress := encodeCmd.Flag("compress", "Secondary compression: none, lz4, s2, zstd.").Default("none").Enum("none", "lz4", "s2", "zstd")
	encodeListen := encodeCmd.Flag("listen-address", "If set, also serve Prometheus metrics on this address for the lifetime of the process.").String()

	decodeCmd := app.Command("decode", "Read an encoded chunk and write \"timestamp value\" lines.")
	decodeIn := decodeCmd.Flag("in", "Input file (default stdin).").Default("-").String()
	decodeOut := decodeCmd.Flag("out", "Output file (default stdout).").Default("-").String()
	decodeCompress := decodeCmd.Flag("compress", "Secondary compression the input was framed with: none, lz4, s2, zstd.").Default("none").Enum("none", "lz4", "s2", "zstd")

	cmd, err := app.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing arguments")
	}

	switch cmd {
	case encodeCmd.FullCommand():
		if *encodeListen != "" {
			serveMetrics(logger, *encodeListen)
		}
		return runEncode(logger, m, *encodeIn, *encodeOut, parseFormat(*encodeCompress))
	case decodeCmd.FullCommand():
		return runDecode(logger, m, *decodeIn, *decodeOut, parseFormat(*decodeCompress))
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parseFormat(s string) blockcodec.Format {
	switch s {
	case "lz4":
		return blockcodec.FormatLZ4
	case "s2":
		return blockcodec.FormatS2
	case "zstd":
		return blockcodec.FormatZstd
	default:
		return blockcodec.FormatNone
	}
}

// metrics are the Prometheus collectors this tool registers; exercising
// client_golang is the point, not the values themselves.
type metrics struct {
	samplesEncoded prometheus.Counter
	samplesDecoded prometheus.Counter
	chunkBytes     prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		samplesEncoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tsxorctl",
			Name:      "samples_encoded_total",
			Help:      "Number of samples appended to chunks by tsxorctl encode.",
		}),
		samplesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tsxorctl",
			Name:      "samples_decoded_total",
			Help:      "Number of samples read from chunks by tsxorctl decode.",
		}),
		chunkBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tsxorctl",
			Name:      "chunk_bytes",
			Help:      "Size in bytes of chunks written by tsxorctl encode, before any secondary compression.",
			Buckets:   prometheus.ExponentialBuckets(16, 2, 12),
		}),
	}

	prometheus.MustRegister(m.samplesEncoded, m.samplesDecoded, m.chunkBytes)

	return m
}

func serveMetrics(logger log.Logger, addr string) {
	go func() {
		mux := promhttp.Handler()
		level.Info(logger).Log("msg", "serving metrics", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			level.Error(logger).Log("msg", "metrics server exited", "err", err)
		}
	}()
}
