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

package chunkenc

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	t int64
	v float64
}

func appendSamples(t *testing.T, c *XORChunk, samples []sample) {
	t.Helper()

	app, err := c.Appender()
	require.NoError(t, err)

	for _, s := range samples {
		require.NoError(t, app.Append(s.t, s.v))
	}
}

func collect(t *testing.T, c *XORChunk) []sample {
	t.Helper()

	it := c.Iterator(nil)
	var got []sample
	for it.Next() {
		ts, v := it.At()
		got = append(got, sample{ts, v})
	}
	require.NoError(t, it.Err())

	return got
}

func requireSamplesEqual(t *testing.T, want, got []sample) {
	t.Helper()

	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].t, got[i].t, "timestamp at index %d", i)
		require.Equal(t, math.Float64bits(want[i].v), math.Float64bits(got[i].v), "value bits at index %d", i)
	}
}

func TestXORChunk_TwoConstantValues(t *testing.T) {
	c := NewXORChunk()
	want := []sample{{1, 2.0}, {2, 3.0}, {3, 4.0}}
	appendSamples(t, c, want)

	got := collect(t, c)
	requireSamplesEqual(t, want, got)

	it := c.Iterator(nil)
	require.True(t, it.Next())
	require.True(t, it.Next())
	require.True(t, it.Next())
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestXORChunk_AllZeroValueDeltas(t *testing.T) {
	c := NewXORChunk()
	want := []sample{{0, 1.0}, {10, 1.0}, {20, 1.0}, {30, 1.0}}
	appendSamples(t, c, want)

	requireSamplesEqual(t, want, collect(t, c))
}

func TestXORChunk_AlternatingSignDod(t *testing.T) {
	c := NewXORChunk()
	want := []sample{{0, 1.0}, {100, 1.0}, {150, 1.0}, {250, 1.0}}
	appendSamples(t, c, want)

	requireSamplesEqual(t, want, collect(t, c))
}

func TestXORChunk_LargeDodFallback(t *testing.T) {
	c := NewXORChunk()
	want := []sample{{0, 1.0}, {1, 1.0}, {1_000_000_000, 1.0}}
	appendSamples(t, c, want)

	requireSamplesEqual(t, want, collect(t, c))
}

func TestXORChunk_ValueWindowReuse(t *testing.T) {
	c := NewXORChunk()
	want := []sample{{0, 1.0}, {1, 1.0000001}, {2, 1.0000002}}
	appendSamples(t, c, want)

	requireSamplesEqual(t, want, collect(t, c))
}

func TestXORChunk_NaNRoundTrip(t *testing.T) {
	c := NewXORChunk()
	want := []sample{{0, math.NaN()}, {1, math.NaN()}, {2, 5.0}, {3, math.NaN()}}
	appendSamples(t, c, want)

	got := collect(t, c)
	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].t, got[i].t)
		require.Equal(t, math.Float64bits(want[i].v), math.Float64bits(got[i].v))
	}
}

func TestXORChunk_HeaderIntegrity(t *testing.T) {
	c := NewXORChunk()
	app, err := c.Appender()
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, app.Append(int64(i), float64(i)))
		require.Equal(t, uint16(i+1), binary.BigEndian.Uint16(c.Bytes()))
	}
}

func TestXORChunk_AppendOverflow(t *testing.T) {
	c := NewXORChunk()
	app, err := c.Appender()
	require.NoError(t, err)

	for i := 0; i < MaxSamplesPerChunk; i++ {
		require.NoError(t, app.Append(int64(i), float64(i)))
	}
	require.Equal(t, MaxSamplesPerChunk, c.NumSamples())

	before := append([]byte(nil), c.Bytes()...)
	err = app.Append(int64(MaxSamplesPerChunk), 0)
	require.ErrorIs(t, err, ErrAppendOverflow)
	require.Equal(t, before, c.Bytes())

	it := c.Iterator(nil)
	n := 0
	for it.Next() {
		n++
	}
	require.NoError(t, it.Err())
	require.Equal(t, MaxSamplesPerChunk, n)
}

func TestXORChunk_ResumableAppend(t *testing.T) {
	all := make([]sample, 0, 40)
	for i := 0; i < 40; i++ {
		all = append(all, sample{t: int64(i * 7), v: math.Sin(float64(i))})
	}

	oneShot := NewXORChunk()
	appendSamples(t, oneShot, all)

	split := NewXORChunk()
	app, err := split.Appender()
	require.NoError(t, err)
	for _, s := range all[:17] {
		require.NoError(t, app.Append(s.t, s.v))
	}

	app2, err := split.Appender()
	require.NoError(t, err)
	for _, s := range all[17:] {
		require.NoError(t, app2.Append(s.t, s.v))
	}

	require.Equal(t, oneShot.Bytes(), split.Bytes())
}

func TestXORChunk_Seek(t *testing.T) {
	c := NewXORChunk()
	var want []sample
	for i := 0; i < 50; i++ {
		want = append(want, sample{t: int64(i * 10), v: float64(i)})
	}
	appendSamples(t, c, want)

	it := c.Iterator(nil)
	require.True(t, it.Seek(205))
	ts, v := it.At()
	require.Equal(t, int64(210), ts)
	require.Equal(t, 21.0, v)

	require.True(t, it.Seek(210))
	ts, _ = it.At()
	require.Equal(t, int64(210), ts)

	require.False(t, it.Seek(10000))
}

func TestXORChunk_EmptyChunk(t *testing.T) {
	c := NewXORChunk()
	require.Equal(t, 0, c.NumSamples())

	it := c.Iterator(nil)
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestXORChunk_TruncatedBodyIsEOF(t *testing.T) {
	c := NewXORChunk()
	want := []sample{{0, 1.0}, {10, 2.0}, {20, 3.0}, {30, 4.0}}
	appendSamples(t, c, want)

	truncated := append([]byte(nil), c.Bytes()[:len(c.Bytes())-1]...)
	tc := &XORChunk{b: bstream{stream: truncated}}

	it := tc.Iterator(nil)
	n := 0
	for it.Next() {
		n++
	}
	require.Error(t, it.Err())
	require.Less(t, n, len(want))
}

func TestXORChunk_Compact(t *testing.T) {
	c := NewXORChunk()
	app, err := c.Appender()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, app.Append(int64(i), float64(i)))
	}

	before := c.Bytes()
	c.Compact()
	require.Equal(t, before, c.Bytes())
	require.LessOrEqual(t, cap(c.b.stream)-len(c.b.stream), chunkCompactCapacityThreshold)
}

func TestXORChunk_EncodingAndPool(t *testing.T) {
	c := NewXORChunk()
	require.Equal(t, EncXOR, c.Encoding())
	require.Equal(t, "XOR", c.Encoding().String())
	require.Equal(t, "none", EncNone.String())

	pooled := NewPooledXORChunk()
	require.Equal(t, 0, pooled.NumSamples())
	PutXORChunk(pooled)
}

func TestNewXORChunkFromBytes(t *testing.T) {
	c := NewXORChunk()
	want := []sample{{0, 1.5}, {5, 2.5}, {10, 2.5}}
	appendSamples(t, c, want)

	reloaded, err := NewXORChunkFromBytes(c.Bytes())
	require.NoError(t, err)
	require.Equal(t, want, collect(t, reloaded))

	_, err = NewXORChunkFromBytes([]byte{0})
	require.Error(t, err)
}

func TestBitRange(t *testing.T) {
	require.True(t, bitRange(0, 14))
	require.True(t, bitRange(-8191, 14))
	require.True(t, bitRange(8192, 14))
	require.False(t, bitRange(-8192, 14))
	require.False(t, bitRange(8193, 14))
}
