// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package netsdr

import (
	"encoding/binary"
	"fmt"
)

// EncodeControlMessage creates a complete wire-formatted frame.
// A code of None omits the code field entirely. The message type is not
// restricted to control types.
func EncodeControlMessage(msgType MessageType, code ControlItemCode, payload []byte) ([]byte, error) {
	codeLen := 0
	if code != None {
		codeLen = CodeSize
	}

	header, err := encodeHeader(msgType, codeLen+len(payload))
	if err != nil {
		return nil, err
	}

	frame := make([]byte, HeaderSize+codeLen+len(payload))
	binary.LittleEndian.PutUint16(frame[0:HeaderSize], header)
	if codeLen > 0 {
		binary.LittleEndian.PutUint16(frame[HeaderSize:HeaderSize+CodeSize], uint16(code))
	}
	copy(frame[HeaderSize+codeLen:], payload)

	return frame, nil
}

// EncodeDataMessage creates a data frame. The payload must already start with
// the 2-byte sequence number.
func EncodeDataMessage(msgType MessageType, payload []byte) ([]byte, error) {
	return EncodeControlMessage(msgType, None, payload)
}

// EncodeDataFrame prepends the little-endian sequence number to samples and
// encodes the result as a data frame.
func EncodeDataFrame(msgType MessageType, seq uint16, samples []byte) ([]byte, error) {
	payload := make([]byte, SequenceSize+len(samples))
	binary.LittleEndian.PutUint16(payload[0:SequenceSize], seq)
	copy(payload[SequenceSize:], samples)
	return EncodeDataMessage(msgType, payload)
}

// MustEncodeControlMessage is EncodeControlMessage for callers that treat an
// oversized frame as a bug. Panics on error.
func MustEncodeControlMessage(msgType MessageType, code ControlItemCode, payload []byte) []byte {
	frame, err := EncodeControlMessage(msgType, code, payload)
	if err != nil {
		panic(fmt.Sprintf("netsdr: encode error: %v", err))
	}
	return frame
}

// MustEncodeDataMessage is EncodeDataMessage that panics on error.
func MustEncodeDataMessage(msgType MessageType, payload []byte) []byte {
	frame, err := EncodeDataMessage(msgType, payload)
	if err != nil {
		panic(fmt.Sprintf("netsdr: encode error: %v", err))
	}
	return frame
}

// encodeHeader builds the header word for a body of bodyLen bytes
func encodeHeader(msgType MessageType, bodyLen int) (uint16, error) {
	totalLen := bodyLen + HeaderSize

	var lengthField int
	switch {
	case msgType.IsData() && totalLen == MaxDataFrameSize:
		lengthField = 0
	case totalLen > MaxControlFrameSize:
		return 0, fmt.Errorf("%w: %d bytes (max %d)", ErrLengthExceeded, totalLen, MaxControlFrameSize)
	default:
		lengthField = totalLen
	}

	return uint16(lengthField) | uint16(msgType&0x07)<<typeShift, nil
}
