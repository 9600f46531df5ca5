// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package netsdr

import (
	"encoding/binary"
	"fmt"
	"iter"
)

// DecodeSamples returns a lazy sequence of the samples in a data frame body.
//
// bitWidth must be 8, 16, 24 or 32; anything else fails immediately with
// ErrInvalidSampleWidth. Each chunk of bitWidth/8 bytes is zero-padded to four
// bytes and read as a little-endian int32. Narrow negative samples therefore
// come out positive: the padding is zero, not a sign extension. A trailing
// partial chunk is dropped. The sequence can be ranged over more than once.
func DecodeSamples(bitWidth int, body []byte) (iter.Seq[int32], error) {
	if err := checkSampleWidth(bitWidth); err != nil {
		return nil, err
	}
	size := bitWidth / 8

	return func(yield func(int32) bool) {
		var word [4]byte
		for off := 0; off+size <= len(body); off += size {
			word = [4]byte{}
			copy(word[:], body[off:off+size])
			if !yield(int32(binary.LittleEndian.Uint32(word[:]))) {
				return
			}
		}
	}, nil
}

// MustDecodeSamples is DecodeSamples that panics on an invalid width.
func MustDecodeSamples(bitWidth int, body []byte) iter.Seq[int32] {
	seq, err := DecodeSamples(bitWidth, body)
	if err != nil {
		panic(err)
	}
	return seq
}

// SampleCount returns how many samples DecodeSamples will yield for body
func SampleCount(bitWidth int, body []byte) (int, error) {
	if err := checkSampleWidth(bitWidth); err != nil {
		return 0, err
	}
	return len(body) / (bitWidth / 8), nil
}

func checkSampleWidth(bitWidth int) error {
	if bitWidth < 8 || bitWidth > 32 || bitWidth%8 != 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSampleWidth, bitWidth)
	}
	return nil
}
