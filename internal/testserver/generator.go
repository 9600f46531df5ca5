// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package testserver

import (
	"encoding/binary"

	"github.com/Thermoquad/sdrlink/pkg/netsdr"
)

// FrameGenerator produces data frames carrying a 16-bit ramp
type FrameGenerator struct {
	msgType netsdr.MessageType
	samples int
	seq     uint16
	value   uint16
}

// NewFrameGenerator creates a generator of samplesPerFrame 16-bit samples
func NewFrameGenerator(msgType netsdr.MessageType, samplesPerFrame int) *FrameGenerator {
	return &FrameGenerator{msgType: msgType, samples: samplesPerFrame}
}

// Next returns the next frame. Sequence numbers start at 0 and wrap.
func (g *FrameGenerator) Next() ([]byte, error) {
	body := make([]byte, g.samples*2)
	for i := 0; i < g.samples; i++ {
		binary.LittleEndian.PutUint16(body[i*2:], g.value)
		g.value++
	}

	frame, err := netsdr.EncodeDataFrame(g.msgType, g.seq, body)
	if err != nil {
		return nil, err
	}
	g.seq++
	return frame, nil
}
