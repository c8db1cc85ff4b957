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

// Package chunkenc implements a Gorilla-style, append-only chunk codec for
// (timestamp, value) time-series samples: delta-of-delta encoding for
// timestamps and XOR encoding for float64 values, both bit-packed into a
// single byte buffer.
package chunkenc

import (
	"errors"
	"sync"
)

// Encoding identifies the byte encoding used to pack samples into a chunk.
type Encoding uint8

const (
	// EncNone is the zero value of Encoding and names no encoding; XORChunk
	// never reports it, not even when empty.
	EncNone Encoding = iota
	// EncXOR marks a Gorilla delta-of-delta/XOR encoded chunk.
	EncXOR
)

func (e Encoding) String() string {
	switch e {
	case EncNone:
		return "none"
	case EncXOR:
		return "XOR"
	default:
		return "<unknown>"
	}
}

// MaxSamplesPerChunk is the largest sample count a chunk's 16-bit header can
// represent. Appending beyond this returns ErrAppendOverflow.
const MaxSamplesPerChunk = 65535

// chunkCompactCapacityThreshold is the slack, in bytes, a chunk's backing
// array may carry beyond its live length before Compact reallocates it.
const chunkCompactCapacityThreshold = 32

var (
	// ErrAppendOverflow is returned by Appender.Append when the chunk
	// already holds MaxSamplesPerChunk samples.
	ErrAppendOverflow = errors.New("chunkenc: chunk already holds the maximum number of samples")
)

// Chunk holds a sequence of encoded (timestamp, value) samples.
type Chunk interface {
	// Bytes returns the underlying encoded buffer (header + body).
	Bytes() []byte
	// Encoding reports the byte encoding used by this chunk.
	Encoding() Encoding
	// NumSamples returns the number of samples currently held.
	NumSamples() int
	// Compact reallocates the backing buffer to its exact length if the
	// reserved capacity exceeds it by more than chunkCompactCapacityThreshold.
	Compact()
	// Appender returns an Appender that resumes this chunk, replaying the
	// existing body to rebuild encoder state.
	Appender() (Appender, error)
	// Iterator returns a new Iterator positioned before the first sample.
	// If it is non-nil and of a compatible concrete type, it may be reset
	// and reused instead of allocating a new one.
	Iterator(it Iterator) Iterator
}

// Appender appends new samples to the chunk it was obtained from.
//
// An Appender exclusively owns the chunk for its lifetime: no other
// Appender or Iterator may run concurrently against the same chunk while
// one is live. Timestamps passed to Append must be non-decreasing; this is
// a precondition, not a checked invariant.
type Appender interface {
	// Append adds a sample. t must be >= the timestamp of the previously
	// appended sample. Returns ErrAppendOverflow if the chunk is full.
	Append(t int64, v float64) error
}

// Iterator walks the samples of a chunk in append order.
//
// Multiple Iterators may coexist read-only over the same finalized chunk;
// none of them mutate it.
type Iterator interface {
	// Next advances to the next sample. It returns false at a clean end
	// of iteration (Err() is nil in that case) or after an error (Err()
	// is non-nil, e.g. io.EOF for a body that ended mid-sample).
	Next() bool
	// Seek advances forward until the cursor sits on a sample whose
	// timestamp is >= t, or the iterator is exhausted. It never moves
	// backward. Returns false if it fails to reach such a sample.
	Seek(t int64) bool
	// At returns the sample at the current cursor. Only valid after Next
	// or Seek returned true.
	At() (int64, float64)
	// Err returns the first error encountered, if any.
	Err() error
}

// chunkPool recycles *XORChunk values (and their backing buffers) across
// encode/decode cycles, following the sync.Pool pattern this package's
// sibling histogram encoder and the wider chunk-codec ecosystem already use
// for their byte buffers.
type chunkPool struct {
	pool sync.Pool
}

func newChunkPool() *chunkPool {
	return &chunkPool{
		pool: sync.Pool{
			New: func() any {
				return &XORChunk{b: bstream{stream: make([]byte, 2, 128)}}
			},
		},
	}
}

// Get returns a chunk with a freshly zeroed 2-byte header, ready for a new
// sample sequence.
func (p *chunkPool) Get() *XORChunk {
	c := p.pool.Get().(*XORChunk)
	c.b.stream = c.b.stream[:2]
	c.b.stream[0] = 0
	c.b.stream[1] = 0
	c.b.count = 0

	return c
}

// Put returns a chunk to the pool for reuse. Callers must not retain any
// reference to c or its Bytes() after calling Put.
func (p *chunkPool) Put(c *XORChunk) {
	if c == nil {
		return
	}
	p.pool.Put(c)
}

// ChunkPool is the package-level pool used by NewPooledXORChunk/PutXORChunk.
var ChunkPool = newChunkPool()

// NewPooledXORChunk returns a zeroed *XORChunk borrowed from ChunkPool.
// Return it with PutXORChunk once it is no longer needed.
func NewPooledXORChunk() *XORChunk {
	return ChunkPool.Get()
}

// PutXORChunk returns c to ChunkPool.
func PutXORChunk(c *XORChunk) {
	ChunkPool.Put(c)
}
