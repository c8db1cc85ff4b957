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

// The code in this file was largely written by Damian Gryski as part of
// https://github.com/dgryski/go-tsz.
// It was modified to accommodate reading from byte slices without modifying
// the underlying bytes, which would panic when reading from mmap'd
// read-only byte slices.

package chunkenc

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
)

// XORChunk holds XOR-encoded float64 sample values with delta-of-delta
// encoded int64 timestamps.
//
// Layout: a 2-byte big-endian sample count header followed by the bit-packed
// body. The first sample's timestamp and value are stored near-raw; every
// later sample reuses the dod/XOR machinery below.
type XORChunk struct {
	b bstream
}

var _ Chunk = (*XORChunk)(nil)

// NewXORChunk returns a new, empty XOR chunk.
func NewXORChunk() *XORChunk {
	b := make([]byte, 2, 128)
	return &XORChunk{b: bstream{stream: b, count: 0}}
}

// NewXORChunkFromBytes wraps an already-encoded buffer (as previously
// returned by Bytes) in an XORChunk without copying it, for loading a chunk
// that was persisted or shipped elsewhere. b must be at least 2 bytes (the
// header) and not be modified afterwards while the chunk is in use.
func NewXORChunkFromBytes(b []byte) (*XORChunk, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("chunkenc: chunk buffer too short: %d bytes", len(b))
	}

	return &XORChunk{b: bstream{stream: b, count: 0}}, nil
}

// Encoding implements Chunk.
func (c *XORChunk) Encoding() Encoding {
	return EncXOR
}

// Bytes implements Chunk.
func (c *XORChunk) Bytes() []byte {
	return c.b.bytes()
}

// NumSamples implements Chunk.
func (c *XORChunk) NumSamples() int {
	return int(binary.BigEndian.Uint16(c.Bytes()))
}

// Compact implements Chunk.
func (c *XORChunk) Compact() {
	if l := len(c.b.stream); cap(c.b.stream) > l+chunkCompactCapacityThreshold {
		buf := make([]byte, l)
		copy(buf, c.b.stream)
		c.b.stream = buf
	}
}

// Appender implements Chunk. It replays the existing body through an
// iterator to rebuild encoder state, so appends can resume a chunk that was
// partially built by a previous, now-released Appender.
func (c *XORChunk) Appender() (Appender, error) {
	it := c.iterator(nil)

	for it.Next() {
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	a := &xorAppender{
		b:        &c.b,
		t:        it.t,
		v:        it.val,
		tDelta:   it.tDelta,
		leading:  it.leading,
		trailing: it.trailing,
	}
	if binary.BigEndian.Uint16(a.b.bytes()) == 0 {
		a.leading = 0xff
	}

	return a, nil
}

func (c *XORChunk) iterator(it Iterator) *xorIterator {
	if xorIter, ok := it.(*xorIterator); ok {
		xorIter.Reset(c.b.bytes())
		return xorIter
	}

	b := c.b.bytes()
	it2 := &xorIterator{
		br:       newBReader(b[2:]),
		numTotal: binary.BigEndian.Uint16(b),
		t:        math.MinInt64,
	}

	return it2
}

// Iterator implements Chunk.
func (c *XORChunk) Iterator(it Iterator) Iterator {
	return c.iterator(it)
}

// xorAppender implements Appender for XORChunk.
type xorAppender struct {
	b *bstream

	t      int64
	v      float64
	tDelta uint64

	leading  uint8
	trailing uint8
}

var _ Appender = (*xorAppender)(nil)

// bitRange reports whether x fits the n-bit two's-complement range
// [-(2^(n-1)-1), 2^(n-1)].
func bitRange(x int64, nbits uint8) bool {
	return -((int64(1) << (nbits - 1)) - 1) <= x && x <= int64(1)<<(nbits-1)
}

// Append implements Appender.
func (a *xorAppender) Append(t int64, v float64) error {
	var tDelta uint64
	num := binary.BigEndian.Uint16(a.b.bytes())
	if num == MaxSamplesPerChunk {
		return ErrAppendOverflow
	}

	switch num {
	case 0:
		buf := make([]byte, binary.MaxVarintLen64)
		for _, byt := range buf[:binary.PutVarint(buf, t)] {
			a.b.writeByte(byt)
		}
		a.b.writeBits(math.Float64bits(v), 64)

	case 1:
		tDelta = uint64(t - a.t)

		buf := make([]byte, binary.MaxVarintLen64)
		for _, byt := range buf[:binary.PutUvarint(buf, tDelta)] {
			a.b.writeByte(byt)
		}

		a.writeVDelta(v)

	default:
		tDelta = uint64(t - a.t)
		dod := int64(tDelta - a.tDelta)

		// Gorilla has a max resolution of seconds; the leading/trailing bit
		// patterns below encode the delta-of-delta in progressively wider
		// buckets, narrowest first.
		switch {
		case dod == 0:
			a.b.writeBit(zero)
		case bitRange(dod, 14):
			a.b.writeBits(0b10, 2)
			a.b.writeBits(uint64(dod), 14)
		case bitRange(dod, 17):
			a.b.writeBits(0b110, 3)
			a.b.writeBits(uint64(dod), 17)
		case bitRange(dod, 20):
			a.b.writeBits(0b1110, 4)
			a.b.writeBits(uint64(dod), 20)
		default:
			a.b.writeBits(0b1111, 4)
			a.b.writeBits(uint64(dod), 64)
		}

		a.writeVDelta(v)
	}

	a.t = t
	a.v = v
	binary.BigEndian.PutUint16(a.b.bytes(), num+1)

	a.tDelta = tDelta

	return nil
}

// writeVDelta writes the value-delta block described in the package's
// on-wire format: a 0 bit if the value is unchanged, otherwise a 1 bit
// followed by either a reused leading/trailing window or a freshly encoded
// one, then the significant XOR bits.
func (a *xorAppender) writeVDelta(v float64) {
	vDelta := math.Float64bits(v) ^ math.Float64bits(a.v)

	if vDelta == 0 {
		a.b.writeBit(zero)
		return
	}
	a.b.writeBit(one)

	leading := uint8(bits.LeadingZeros64(vDelta))
	trailing := uint8(bits.TrailingZeros64(vDelta))

	// Clamp leading zeros so it fits the 5-bit field below.
	if leading >= 32 {
		leading = 31
	}

	if a.leading != 0xff && leading >= a.leading && trailing >= a.trailing {
		a.b.writeBit(zero)
		a.b.writeBits(vDelta>>a.trailing, 64-int(a.leading)-int(a.trailing))

		return
	}

	a.leading, a.trailing = leading, trailing

	a.b.writeBit(one)
	a.b.writeBits(uint64(leading), 5)

	// 0 significant bits would mean vDelta == 0, already handled above, so
	// sigbits == 64 is the only value the 6-bit field can't hold directly;
	// encode it as 0 and translate back to 64 on read.
	sigbits := 64 - leading - trailing
	a.b.writeBits(uint64(sigbits), 6)
	a.b.writeBits(vDelta>>trailing, int(sigbits))
}

// xorIterator implements Iterator for XORChunk.
type xorIterator struct {
	br       bstreamReader
	numTotal uint16
	numRead  uint16

	t   int64
	val float64

	leading  uint8
	trailing uint8

	tDelta uint64
	err    error
}

var _ Iterator = (*xorIterator)(nil)

// Seek implements Iterator.
func (it *xorIterator) Seek(t int64) bool {
	if it.err != nil {
		return false
	}

	for t > it.t || it.numRead == 0 {
		if !it.Next() {
			return false
		}
	}

	return true
}

// At implements Iterator.
func (it *xorIterator) At() (int64, float64) {
	return it.t, it.val
}

// Err implements Iterator.
func (it *xorIterator) Err() error {
	return it.err
}

// Reset rebinds the iterator to a new (or the same, truncated) byte buffer
// and clears its cursor state, so it can be reused instead of reallocated.
func (it *xorIterator) Reset(b []byte) {
	it.br = newBReader(b[2:])
	it.numTotal = binary.BigEndian.Uint16(b)

	it.numRead = 0
	it.t = 0
	it.val = 0
	it.leading = 0
	it.trailing = 0
	it.tDelta = 0
	it.err = nil
}

// Next implements Iterator.
func (it *xorIterator) Next() bool {
	if it.err != nil || it.numRead == it.numTotal {
		return false
	}

	if it.numRead == 0 {
		t, err := binary.ReadVarint(&it.br)
		if err != nil {
			it.err = err
			return false
		}

		v, err := it.br.readBits(64)
		if err != nil {
			it.err = err
			return false
		}

		it.t = t
		it.val = math.Float64frombits(v)

		it.numRead++
		return true
	}

	if it.numRead == 1 {
		tDelta, err := binary.ReadUvarint(&it.br)
		if err != nil {
			it.err = err
			return false
		}

		it.tDelta = tDelta
		it.t += int64(it.tDelta)

		return it.readValue()
	}

	var d byte
	// Read the dod prefix bit by bit, stopping at the first 0, accumulating
	// up to 4 bits into d (e.g. 1110 -> 0x0E).
	for i := 0; i < 4; i++ {
		d <<= 1
		bit, err := it.br.readBitFast()
		if err != nil {
			bit, err = it.br.readBit()
		}
		if err != nil {
			it.err = err
			return false
		}
		if bit == zero {
			break
		}
		d |= 1
	}

	var sz uint8
	var dod int64
	switch d {
	case 0x00:
		// dod == 0
	case 0x02:
		sz = 14
	case 0x06:
		sz = 17
	case 0x0e:
		sz = 20
	case 0x0f:
		raw, err := it.br.readBits(64)
		if err != nil {
			it.err = err
			return false
		}
		dod = int64(raw)
	default:
		it.err = fmt.Errorf("chunkenc: invalid dod prefix code %#x", d)
		return false
	}

	if sz != 0 {
		bitsRead, err := it.br.readBitsFast(sz)
		if err != nil {
			bitsRead, err = it.br.readBits(sz)
		}
		if err != nil {
			it.err = err
			return false
		}
		if bitsRead > (uint64(1) << (sz - 1)) {
			bitsRead -= uint64(1) << sz
		}
		dod = int64(bitsRead)
	}

	it.tDelta = uint64(int64(it.tDelta) + dod)
	it.t += int64(it.tDelta)

	return it.readValue()
}

// readValue decodes the value-delta block that follows every sample after
// the first, per writeVDelta's format.
func (it *xorIterator) readValue() bool {
	bit, err := it.br.readBitFast()
	if err != nil {
		bit, err = it.br.readBit()
	}
	if err != nil {
		it.err = err
		return false
	}

	if bit == zero {
		// it.val unchanged.
	} else {
		bit, err := it.br.readBitFast()
		if err != nil {
			bit, err = it.br.readBit()
		}
		if err != nil {
			it.err = err
			return false
		}
		if bit == zero {
			// Reuse it.leading/it.trailing from the previous block.
		} else {
			leadingBits, err := it.br.readBitsFast(5)
			if err != nil {
				leadingBits, err = it.br.readBits(5)
			}
			if err != nil {
				it.err = err
				return false
			}
			it.leading = uint8(leadingBits)

			mbitsRaw, err := it.br.readBitsFast(6)
			if err != nil {
				mbitsRaw, err = it.br.readBits(6)
			}
			if err != nil {
				it.err = err
				return false
			}
			mbits := uint8(mbitsRaw)
			// 0 here is the encoder's escape for 64 significant bits.
			if mbits == 0 {
				mbits = 64
			}
			it.trailing = 64 - it.leading - mbits
		}

		mbits := 64 - it.leading - it.trailing
		bitsRead, err := it.br.readBitsFast(mbits)
		if err != nil {
			bitsRead, err = it.br.readBits(mbits)
		}
		if err != nil {
			it.err = err
			return false
		}

		vbits := math.Float64bits(it.val)
		vbits ^= bitsRead << it.trailing
		it.val = math.Float64frombits(vbits)
	}

	it.numRead++
	return true
}
