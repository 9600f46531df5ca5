// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package netsdr implements the binary framing used on both the control and
// data channels of the receiver.
//
// Every frame starts with a 2-byte little-endian header word: the low 13 bits
// carry the total frame length (header included) and the top 3 bits carry the
// MessageType. Control types follow the header with a 2-byte ControlItemCode,
// data types with a 2-byte sequence number. The rest of the frame is payload.
//
// The package is pure: no I/O, no goroutines, no shared state.
package netsdr

// Frame layout
const (
	HeaderSize   = 2
	CodeSize     = 2
	SequenceSize = 2
)

// Frame size limits
const (
	MaxControlFrameSize = 8191 // largest value the 13-bit length field can hold
	MaxDataFrameSize    = 8194 // encoded as length field 0 on data types
	MaxFrameSize        = MaxDataFrameSize
)

// Header bit layout
const (
	lengthMask = 0x1FFF
	typeShift  = 13
)

// MessageType is the 3-bit message type carried in the top of the header word.
type MessageType uint8

// Message type values. Values >= DataItem0 are data types.
const (
	SetControlItem     MessageType = 0
	CurrentControlItem MessageType = 1
	ControlItemRange   MessageType = 2
	Ack                MessageType = 3
	DataItem0          MessageType = 4
	DataItem1          MessageType = 5
	DataItem2          MessageType = 6
	DataItem3          MessageType = 7
)

// IsData returns true for the four data item types
func (t MessageType) IsData() bool {
	return t >= DataItem0
}

// IsControl returns true for types whose body starts with a ControlItemCode
func (t MessageType) IsControl() bool {
	return t < DataItem0
}

// String returns the message type name
func (t MessageType) String() string {
	return FormatMessageType(t)
}

// ControlItemCode identifies the control item a control frame refers to.
type ControlItemCode uint16

// Control item codes. None means no code field is present.
const (
	None                   ControlItemCode = 0x0000
	ReceiverState          ControlItemCode = 0x0018
	ReceiverFrequency      ControlItemCode = 0x0020
	RFFilter               ControlItemCode = 0x0044
	ADModes                ControlItemCode = 0x008A
	IQOutputDataSampleRate ControlItemCode = 0x00B8
)

// Valid reports whether c is a member of the control item enumeration
func (c ControlItemCode) Valid() bool {
	switch c {
	case None, ReceiverState, ReceiverFrequency, RFFilter, ADModes, IQOutputDataSampleRate:
		return true
	}
	return false
}

// String returns the control item name
func (c ControlItemCode) String() string {
	return FormatControlItemCode(c)
}

// ReceiverState payload values
const (
	ReceiverStateDataComplexIQ = 0x80
	ReceiverStateIdle          = 0x01
	ReceiverStateRun           = 0x02
	CaptureModeContiguous16    = 0x00
)
