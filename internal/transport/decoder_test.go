// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

// chunkReader returns one preset chunk per Read.
type chunkReader struct {
	chunks [][]byte
	err    error
}

func newChunkReader(chunks ...string) *chunkReader {
	r := &chunkReader{err: io.EOF}
	for _, c := range chunks {
		r.chunks = append(r.chunks, []byte(c))
	}
	return r
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, r.err
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func collect(t *testing.T, d *Decoder) []string {
	t.Helper()
	var out []string
	for i := 0; i < 1000; i++ {
		text, err := d.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, text)
	}
	t.Fatal("decoder never reached EOF")
	return nil
}

func TestDecoder_FragmentPerChunk(t *testing.T) {
	d := NewDecoder(newChunkReader("Hello", ", ", "world"))
	require.Equal(t, []string{"Hello", ", ", "world"}, collect(t, d))
}

func TestDecoder_SplitMultiByte(t *testing.T) {
	// "é" is C3 A9, split across the chunk boundary
	d := NewDecoder(newChunkReader("ab\xc3", "\xa9c"))
	require.Equal(t, []string{"ab", "éc"}, collect(t, d))
}

func TestDecoder_SplitFourByte(t *testing.T) {
	// U+1F600 is F0 9F 98 80
	d := NewDecoder(newChunkReader("xyz\xf0", "\x9f", "\x98", "\x80!"))
	require.Equal(t, []string{"xyz", "", "", "😀!"}, collect(t, d))
}

func TestDecoder_OneByteReader(t *testing.T) {
	d := NewDecoder(iotest.OneByteReader(strings.NewReader("日本語 ok")))
	require.Equal(t, "日本語 ok", strings.Join(collect(t, d), ""))
}

func TestDecoder_StripsBOM(t *testing.T) {
	d := NewDecoder(newChunkReader("\xef\xbb", "\xbfhi"))
	require.Equal(t, "hi", strings.Join(collect(t, d), ""))
}

func TestDecoder_InvalidBytes(t *testing.T) {
	d := NewDecoder(newChunkReader("a\xffb"))
	require.Equal(t, []string{"a�b"}, collect(t, d))
}

func TestDecoder_TruncatedAtEOF(t *testing.T) {
	d := NewDecoder(newChunkReader("ok!\xe6\x97"))
	frags := collect(t, d)
	require.Equal(t, "ok!", frags[0])

	// The incomplete sequence is flushed as replacement characters at EOF
	joined := strings.Join(frags, "")
	require.True(t, strings.HasPrefix(joined, "ok!\uFFFD"), joined)
	require.NotContains(t, joined, "\xe6")
}

func TestDecoder_DataWithEOF(t *testing.T) {
	d := NewDecoder(iotest.DataErrReader(strings.NewReader("tail")))
	text, err := d.Next()
	require.NoError(t, err)
	require.Equal(t, "tail", text)

	_, err = d.Next()
	require.Equal(t, io.EOF, err)
}

func TestDecoder_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := newChunkReader("partial")
	r.err = boom
	d := NewDecoder(r)

	text, err := d.Next()
	require.NoError(t, err)
	require.Equal(t, "partial", text)

	_, err = d.Next()
	require.True(t, errors.Is(err, ErrStreamRead))
	require.True(t, errors.Is(err, boom))
	require.True(t, IsStreamRead(err))

	// Not restartable
	_, err = d.Next()
	require.Equal(t, io.EOF, err)
}

func TestDecoder_LargeChunk(t *testing.T) {
	payload := strings.Repeat("ünïcødé ", 2000)
	d := NewDecoderSize(strings.NewReader(payload), 1000)
	require.Equal(t, payload, strings.Join(collect(t, d), ""))
}
