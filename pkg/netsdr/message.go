// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package netsdr

import "errors"

// Decode failures. All of them wrap ErrDecode.
var (
	ErrDecode             = errors.New("netsdr: decode failed")
	ErrShortFrame         = decodeError("frame shorter than header")
	ErrLengthMismatch     = decodeError("frame length does not match header")
	ErrMissingCode        = decodeError("control frame has no control item code")
	ErrUnknownControlItem = decodeError("unknown control item code")
	ErrMissingSequence    = decodeError("data frame has no sequence number")
)

// Caller errors
var (
	ErrLengthExceeded     = errors.New("netsdr: frame length exceeds maximum")
	ErrInvalidSampleWidth = errors.New("netsdr: sample width must be a multiple of 8 in [8,32]")
)

type wrappedDecodeError struct {
	msg string
}

func decodeError(msg string) error {
	return &wrappedDecodeError{msg: "netsdr: " + msg}
}

func (e *wrappedDecodeError) Error() string { return e.msg }

func (e *wrappedDecodeError) Unwrap() error { return ErrDecode }

// Message is a decoded frame
type Message struct {
	Type     MessageType
	Code     ControlItemCode // None for data types
	Sequence uint16          // 0 for control types
	Body     []byte
}

// Length returns the total encoded length of the message
func (m *Message) Length() int {
	return HeaderSize + CodeSize + len(m.Body)
}
