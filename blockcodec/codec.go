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

// Package blockcodec compresses finalized chunkenc.XORChunk bytes before
// they leave the process, and frames them with a self-describing,
// corruption-detecting envelope.
package blockcodec

import "fmt"

// Format identifies the compression algorithm a Codec implements.
type Format byte

const (
	// FormatNone stores the payload unmodified.
	FormatNone Format = iota
	// FormatLZ4 compresses with github.com/pierrec/lz4/v4.
	FormatLZ4
	// FormatS2 compresses with github.com/klauspost/compress/s2.
	FormatS2
	// FormatZstd compresses with github.com/klauspost/compress/zstd.
	FormatZstd
)

func (f Format) String() string {
	switch f {
	case FormatNone:
		return "none"
	case FormatLZ4:
		return "lz4"
	case FormatS2:
		return "s2"
	case FormatZstd:
		return "zstd"
	default:
		return "<unknown>"
	}
}

// Compressor compresses a byte buffer.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor decompresses a byte buffer produced by the matching Compressor.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines Compressor and Decompressor for one algorithm.
type Codec interface {
	Compressor
	Decompressor
}

var registry = map[Format]Codec{
	FormatNone: NoOpCodec{},
	FormatLZ4:  LZ4Codec{},
	FormatS2:   S2Codec{},
	FormatZstd: NewZstdCodec(),
}

// CodecFor returns the built-in Codec for f.
func CodecFor(f Format) (Codec, error) {
	c, ok := registry[f]
	if !ok {
		return nil, fmt.Errorf("blockcodec: unknown format %d", f)
	}

	return c, nil
}
