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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrame_EncodeDecodeRoundTrip(t *testing.T) {
	raw := repeatingPayload(300)

	for _, f := range []Format{FormatNone, FormatLZ4, FormatS2, FormatZstd} {
		f := f
		t.Run(f.String(), func(t *testing.T) {
			framed, err := Encode(f, raw)
			require.NoError(t, err)

			got, err := Decode(framed)
			require.NoError(t, err)
			require.Equal(t, raw, got)
		})
	}
}

func TestFrame_ParseHeader(t *testing.T) {
	raw := repeatingPayload(10)
	framed, err := Encode(FormatS2, raw)
	require.NoError(t, err)

	f, err := ParseFrame(framed)
	require.NoError(t, err)
	require.Equal(t, FormatS2, f.Format)
	require.Equal(t, len(raw), f.RawLen)
}

func TestFrame_RejectsBadMagic(t *testing.T) {
	framed, err := Encode(FormatNone, repeatingPayload(10))
	require.NoError(t, err)

	corrupt := append([]byte(nil), framed...)
	corrupt[0] ^= 0xFF

	_, err = Decode(corrupt)
	require.Error(t, err)
}

func TestFrame_RejectsChecksumMismatch(t *testing.T) {
	framed, err := Encode(FormatNone, repeatingPayload(10))
	require.NoError(t, err)

	corrupt := append([]byte(nil), framed...)
	corrupt[len(corrupt)-1] ^= 0xFF

	_, err = Decode(corrupt)
	require.Error(t, err)
}

func TestFrame_RejectsTruncated(t *testing.T) {
	framed, err := Encode(FormatNone, repeatingPayload(10))
	require.NoError(t, err)

	_, err = ParseFrame(framed[:5])
	require.Error(t, err)
}

func TestFrame_RejectsUnsupportedVersion(t *testing.T) {
	framed, err := Encode(FormatNone, repeatingPayload(10))
	require.NoError(t, err)

	corrupt := append([]byte(nil), framed...)
	corrupt[4] = 0xFF

	_, err = ParseFrame(corrupt)
	require.Error(t, err)
}
