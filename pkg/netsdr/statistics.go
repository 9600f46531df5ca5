// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package netsdr

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame counts and error rates for one channel consumer.
// It is not safe for concurrent use.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames    uint64
	ControlFrames  uint64
	DataFrames     uint64
	TotalBytes     uint64
	DecodeErrors   uint64
	ShortFrames    uint64
	LengthMismatch uint64
	UnknownItems   uint64
	MissingFields  uint64
	SequenceGaps   uint64
	LostFrames     uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ByteRate  float64 // bytes/sec
	ErrorRate float64 // errors/sec

	lastSeq map[MessageType]uint16
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		lastSeq:        make(map[MessageType]uint16),
	}
}

// Update records one received chunk and the outcome of decoding it
func (s *Statistics) Update(raw []byte, msg *Message, decodeErr error) {
	s.TotalFrames++
	s.TotalBytes += uint64(len(raw))
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		s.DecodeErrors++
		switch {
		case errors.Is(decodeErr, ErrShortFrame):
			s.ShortFrames++
		case errors.Is(decodeErr, ErrLengthMismatch):
			s.LengthMismatch++
		case errors.Is(decodeErr, ErrUnknownControlItem):
			s.UnknownItems++
		case errors.Is(decodeErr, ErrMissingCode), errors.Is(decodeErr, ErrMissingSequence):
			s.MissingFields++
		}
		return
	}

	if msg.Type.IsControl() {
		s.ControlFrames++
		return
	}

	s.DataFrames++
	if s.lastSeq == nil {
		s.lastSeq = make(map[MessageType]uint16)
	}
	if last, ok := s.lastSeq[msg.Type]; ok {
		// uint16 arithmetic wraps with the counter
		if gap := msg.Sequence - last - 1; gap != 0 {
			s.SequenceGaps++
			s.LostFrames += uint64(gap)
		}
	}
	s.lastSeq[msg.Type] = msg.Sequence
}

// CalculateRates calculates frame, byte and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ByteRate = float64(s.TotalBytes) / elapsed
		s.ErrorRate = float64(s.DecodeErrors) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var errorPercent float64
	if s.TotalFrames > 0 {
		errorPercent = float64(s.DecodeErrors) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Control Frames:  %8d\n", s.ControlFrames)
	result += fmt.Sprintf("Data Frames:     %8d\n", s.DataFrames)

	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, errorPercent)
		if s.ShortFrames > 0 {
			result += fmt.Sprintf("  Short Frames:     %5d\n", s.ShortFrames)
		}
		if s.LengthMismatch > 0 {
			result += fmt.Sprintf("  Length Mismatch:  %5d\n", s.LengthMismatch)
		}
		if s.UnknownItems > 0 {
			result += fmt.Sprintf("  Unknown Items:    %5d\n", s.UnknownItems)
		}
		if s.MissingFields > 0 {
			result += fmt.Sprintf("  Missing Fields:   %5d\n", s.MissingFields)
		}
	}
	if s.SequenceGaps > 0 {
		result += fmt.Sprintf("Sequence Gaps:   %8d (%d frames lost)\n", s.SequenceGaps, s.LostFrames)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Byte Rate:       %8.1f bytes/sec\n", s.ByteRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
