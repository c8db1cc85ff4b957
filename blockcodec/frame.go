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

package blockcodec

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// frameMagic opens every Frame, so a reader can fail fast on data that was
// never written by this package instead of trying to decompress garbage.
const frameMagic = uint32(0x7854534b) // "xTSK"

// frameVersion is bumped if the envelope layout below ever changes shape.
const frameVersion = byte(1)

// Frame is the on-wire envelope wrapped around a compressed chunkenc.XORChunk
// buffer: magic, version, codec, an xxhash64 checksum of the compressed
// payload, the payload's uncompressed length, then the payload itself.
//
//	[magic uint32][version byte][format byte][checksum uint64][rawLen varint][payload]
type Frame struct {
	Format Format
	RawLen int
	Data   []byte // compressed payload
}

// Encode compresses raw with the Codec for format and wraps the result in a
// Frame, returning the serialized bytes.
func Encode(format Format, raw []byte) ([]byte, error) {
	codec, err := CodecFor(format)
	if err != nil {
		return nil, err
	}

	compressed, err := codec.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("blockcodec: compress: %w", err)
	}

	checksum := xxhash.Sum64(compressed)

	header := make([]byte, 4+1+1+8+binary.MaxVarintLen64)
	binary.BigEndian.PutUint32(header[0:4], frameMagic)
	header[4] = frameVersion
	header[5] = byte(format)
	binary.BigEndian.PutUint64(header[6:14], checksum)
	n := binary.PutUvarint(header[14:], uint64(len(raw)))

	out := make([]byte, 0, 14+n+len(compressed))
	out = append(out, header[:14+n]...)
	out = append(out, compressed...)

	return out, nil
}

// Decode parses a Frame from data, verifies its checksum, and returns the
// decompressed payload.
func Decode(data []byte) ([]byte, error) {
	f, err := ParseFrame(data)
	if err != nil {
		return nil, err
	}

	codec, err := CodecFor(f.Format)
	if err != nil {
		return nil, err
	}

	if into, ok := codec.(interface {
		DecompressInto(data []byte, rawLen int) ([]byte, error)
	}); ok {
		return into.DecompressInto(f.Data, f.RawLen)
	}

	raw, err := codec.Decompress(f.Data)
	if err != nil {
		return nil, fmt.Errorf("blockcodec: decompress: %w", err)
	}
	if len(raw) != f.RawLen {
		return nil, fmt.Errorf("blockcodec: decompressed length %d does not match frame rawLen %d", len(raw), f.RawLen)
	}

	return raw, nil
}

// ParseFrame validates and unpacks a Frame's header without decompressing
// its payload, checking the stored checksum against the compressed bytes.
func ParseFrame(data []byte) (Frame, error) {
	if len(data) < 14 {
		return Frame{}, fmt.Errorf("blockcodec: frame too short: %d bytes", len(data))
	}

	magic := binary.BigEndian.Uint32(data[0:4])
	if magic != frameMagic {
		return Frame{}, fmt.Errorf("blockcodec: bad frame magic %#x", magic)
	}

	version := data[4]
	if version != frameVersion {
		return Frame{}, fmt.Errorf("blockcodec: unsupported frame version %d", version)
	}

	format := Format(data[5])
	checksum := binary.BigEndian.Uint64(data[6:14])

	rawLen, n := binary.Uvarint(data[14:])
	if n <= 0 {
		return Frame{}, fmt.Errorf("blockcodec: invalid frame rawLen varint")
	}

	payload := data[14+n:]
	if got := xxhash.Sum64(payload); got != checksum {
		return Frame{}, fmt.Errorf("blockcodec: checksum mismatch: frame %#x, computed %#x", checksum, got)
	}

	return Frame{
		Format: format,
		RawLen: int(rawLen),
		Data:   payload,
	}, nil
}
