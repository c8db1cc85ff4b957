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
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ZstdCodec compresses with klauspost/compress/zstd. Encoders and decoders
// are expensive to warm up, so ZstdCodec pools them rather than creating one
// per call.
type ZstdCodec struct {
	encoders *sync.Pool
	decoders *sync.Pool
}

var _ Codec = ZstdCodec{}

// NewZstdCodec builds a ZstdCodec with its own encoder/decoder pools.
func NewZstdCodec() ZstdCodec {
	return ZstdCodec{
		encoders: &sync.Pool{
			New: func() any {
				enc, err := zstd.NewWriter(nil,
					zstd.WithEncoderLevel(zstd.SpeedDefault),
					zstd.WithEncoderCRC(false),
				)
				if err != nil {
					panic(fmt.Sprintf("blockcodec: failed to create zstd encoder: %v", err))
				}
				return enc
			},
		},
		decoders: &sync.Pool{
			New: func() any {
				dec, err := zstd.NewReader(nil,
					zstd.WithDecoderConcurrency(1),
					zstd.WithDecoderLowmem(false),
				)
				if err != nil {
					panic(fmt.Sprintf("blockcodec: failed to create zstd decoder: %v", err))
				}
				return dec
			},
		},
	}
}

func (c ZstdCodec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	enc := c.encoders.Get().(*zstd.Encoder)
	defer c.encoders.Put(enc)

	return enc.EncodeAll(data, nil), nil
}

func (c ZstdCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dec := c.decoders.Get().(*zstd.Decoder)
	defer c.decoders.Put(dec)

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("blockcodec: zstd decompression failed: %w", err)
	}

	return out, nil
}
