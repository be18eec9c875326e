// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport issues generation requests and streams the reply.
package transport

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultChunkSize is the read buffer used per arrived chunk.
const DefaultChunkSize = 4096

// =============================================================================
// INCREMENTAL DECODER
// =============================================================================

// Decoder turns a raw byte stream into text fragments, one per arrived chunk.
//
// A multi-byte sequence split across two reads is held back and completed by
// the next read, so a fragment never contains half a character. Invalid
// bytes decode to U+FFFD and a leading byte order mark is dropped.
//
// A Decoder is bound to one response and is not restartable.
type Decoder struct {
	r       io.Reader
	t       transform.Transformer
	buf     []byte
	dst     []byte
	pending []byte
	done    bool
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return NewDecoderSize(r, DefaultChunkSize)
}

// NewDecoderSize creates a decoder with a custom read size.
func NewDecoderSize(r io.Reader, size int) *Decoder {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Decoder{
		r:   r,
		t:   unicode.UTF8BOM.NewDecoder(),
		buf: make([]byte, size),
	}
}

// Next reads one chunk and returns its decoded text. The text may be empty
// when the chunk held only the start of a multi-byte sequence. Next returns
// io.EOF once the stream is exhausted and every pending byte was flushed.
// Read failures are wrapped with ErrStreamRead.
func (d *Decoder) Next() (string, error) {
	if d.done {
		return "", io.EOF
	}

	n, rerr := d.r.Read(d.buf)
	atEOF := rerr == io.EOF
	if rerr != nil && !atEOF {
		d.done = true
		return "", fmt.Errorf("%w: %w", ErrStreamRead, rerr)
	}

	src := make([]byte, 0, len(d.pending)+n)
	src = append(src, d.pending...)
	src = append(src, d.buf[:n]...)

	text, rest, err := d.decode(src, atEOF)
	if err != nil {
		d.done = true
		return "", fmt.Errorf("%w: %w", ErrStreamRead, err)
	}
	d.pending = rest

	if atEOF {
		d.done = true
		if text == "" {
			return "", io.EOF
		}
	}
	return text, nil
}

// decode runs the transformer over src. Bytes of an incomplete trailing
// sequence are returned as rest when atEOF is false.
func (d *Decoder) decode(src []byte, atEOF bool) (string, []byte, error) {
	if need := len(src)*3 + utf8.UTFMax; cap(d.dst) < need {
		d.dst = make([]byte, need)
	}
	dst := d.dst[:cap(d.dst)]

	var sb strings.Builder
	for {
		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		sb.Write(dst[:nDst])
		src = src[nSrc:]

		switch err {
		case nil:
			return sb.String(), nil, nil
		case transform.ErrShortDst:
			if nDst == 0 && nSrc == 0 {
				dst = make([]byte, len(dst)*2)
				d.dst = dst
			}
		case transform.ErrShortSrc:
			rest := make([]byte, len(src))
			copy(rest, src)
			return sb.String(), rest, nil
		default:
			return sb.String(), nil, err
		}
	}
}
