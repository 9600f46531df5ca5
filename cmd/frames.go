// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/sdrlink/pkg/netsdr"
)

// frameSplitter cuts the control byte stream back into frames using the
// length in each header. The control client delivers chunks as read, so a
// frame may span chunks and a chunk may hold several frames.
type frameSplitter struct {
	buf []byte
}

// Push appends a chunk and returns every frame completed by it. A header word
// declaring an impossible length is dropped whole and returned in junk.
func (s *frameSplitter) Push(chunk []byte) (frames [][]byte, junk []byte) {
	s.buf = append(s.buf, chunk...)

	for len(s.buf) >= netsdr.HeaderSize {
		// Code and sequence fields are both two bytes
		_, length := netsdr.ParseHeader(binary.LittleEndian.Uint16(s.buf))
		if length < netsdr.HeaderSize+netsdr.CodeSize {
			junk = append(junk, s.buf[:netsdr.HeaderSize]...)
			s.buf = s.buf[netsdr.HeaderSize:]
			continue
		}
		if len(s.buf) < length {
			break
		}

		frame := make([]byte, length)
		copy(frame, s.buf[:length])
		frames = append(frames, frame)
		s.buf = s.buf[length:]
	}

	// Keep the backing array from growing without bound
	if len(s.buf) == 0 {
		s.buf = nil
	}
	return frames, junk
}

// Reset drops any partial frame, used after a reconnect
func (s *frameSplitter) Reset() {
	s.buf = nil
}

var knownItems = []netsdr.ControlItemCode{
	netsdr.ReceiverState,
	netsdr.ReceiverFrequency,
	netsdr.RFFilter,
	netsdr.ADModes,
	netsdr.IQOutputDataSampleRate,
}

// parseControlItem accepts a control item name such as RECEIVER_FREQUENCY
// (case-insensitive) or a numeric code such as 0x0020
func parseControlItem(s string) (netsdr.ControlItemCode, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for _, code := range knownItems {
		if netsdr.FormatControlItemCode(code) == name {
			return code, nil
		}
	}

	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("unknown control item %q", s)
	}
	code := netsdr.ControlItemCode(n)
	if !code.Valid() || code == netsdr.None {
		return 0, fmt.Errorf("unknown control item code 0x%04X", n)
	}
	return code, nil
}
