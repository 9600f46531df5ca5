// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package netsdr

import (
	"encoding/binary"
	"fmt"
)

// ParseHeader splits a header word into message type and total frame length.
// A data type with a zero length field expands to MaxDataFrameSize.
func ParseHeader(word uint16) (MessageType, int) {
	msgType := MessageType(word >> typeShift)
	length := int(word & lengthMask)
	if msgType.IsData() && length == 0 {
		length = MaxDataFrameSize
	}
	return msgType, length
}

// Decode parses one complete frame. The frame must be exactly as long as its
// header declares. Malformed input returns an error wrapping ErrDecode and
// never panics. The returned Body does not alias frame.
func Decode(frame []byte) (*Message, error) {
	if len(frame) < HeaderSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrShortFrame, len(frame))
	}

	msgType, totalLen := ParseHeader(binary.LittleEndian.Uint16(frame[0:HeaderSize]))
	if len(frame) != totalLen {
		return nil, fmt.Errorf("%w: header says %d, got %d", ErrLengthMismatch, totalLen, len(frame))
	}

	m := &Message{Type: msgType, Code: None}
	offset := HeaderSize
	remaining := totalLen - HeaderSize

	if msgType.IsControl() {
		if remaining < CodeSize {
			return nil, ErrMissingCode
		}
		code := ControlItemCode(binary.LittleEndian.Uint16(frame[offset : offset+CodeSize]))
		if !code.Valid() {
			return nil, fmt.Errorf("%w: 0x%04X", ErrUnknownControlItem, uint16(code))
		}
		m.Code = code
		offset += CodeSize
	} else {
		if remaining < SequenceSize {
			return nil, ErrMissingSequence
		}
		m.Sequence = binary.LittleEndian.Uint16(frame[offset : offset+SequenceSize])
		offset += SequenceSize
	}

	if offset < totalLen {
		m.Body = make([]byte, totalLen-offset)
		copy(m.Body, frame[offset:totalLen])
	}

	return m, nil
}
