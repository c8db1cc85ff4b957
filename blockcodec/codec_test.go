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
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func repeatingPayload(n int) []byte {
	return bytes.Repeat([]byte("gorilla-chunk-payload-"), n)
}

func TestCodecs_RoundTrip(t *testing.T) {
	payload := repeatingPayload(200)

	for _, f := range []Format{FormatNone, FormatLZ4, FormatS2, FormatZstd} {
		f := f
		t.Run(f.String(), func(t *testing.T) {
			codec, err := CodecFor(f)
			require.NoError(t, err)

			compressed, err := codec.Compress(payload)
			require.NoError(t, err)

			got, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.Equal(t, payload, got)
		})
	}
}

func TestCodecs_EmptyInput(t *testing.T) {
	for _, f := range []Format{FormatNone, FormatLZ4, FormatS2, FormatZstd} {
		codec, err := CodecFor(f)
		require.NoError(t, err)

		compressed, err := codec.Compress(nil)
		require.NoError(t, err)

		got, err := codec.Decompress(compressed)
		require.NoError(t, err)
		require.Empty(t, got)
	}
}

func TestCodecFor_UnknownFormat(t *testing.T) {
	_, err := CodecFor(Format(0xFE))
	require.Error(t, err)
}

func TestFormat_String(t *testing.T) {
	require.Equal(t, "none", FormatNone.String())
	require.Equal(t, "lz4", FormatLZ4.String())
	require.Equal(t, "s2", FormatS2.String())
	require.Equal(t, "zstd", FormatZstd.String())
	require.True(t, strings.HasPrefix(Format(99).String(), "<"))
}

func TestLZ4Codec_DecompressInto(t *testing.T) {
	payload := repeatingPayload(500)

	codec := LZ4Codec{}
	compressed, err := codec.Compress(payload)
	require.NoError(t, err)

	got, err := codec.DecompressInto(compressed, len(payload))
	require.NoError(t, err)
	require.Equal(t, payload, got)
}
