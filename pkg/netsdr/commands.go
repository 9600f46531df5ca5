// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package netsdr

// Frame builders for common control requests. These only encode; deciding
// when to send them is up to the caller.

// NewControlItemRequest creates a request for the current value of a control
// item on the given channel.
func NewControlItemRequest(code ControlItemCode, channel uint8) []byte {
	return MustEncodeControlMessage(CurrentControlItem, code, []byte{channel})
}

// NewSetReceiverState creates a frame that starts or stops the receiver with
// contiguous 16-bit complex IQ capture.
func NewSetReceiverState(run bool) []byte {
	state := byte(ReceiverStateIdle)
	if run {
		state = ReceiverStateRun
	}
	payload := []byte{ReceiverStateDataComplexIQ, state, CaptureModeContiguous16, 0x00}
	return MustEncodeControlMessage(SetControlItem, ReceiverState, payload)
}

// NewSetReceiverFrequency creates a frame that tunes a channel to hz.
// Only the low 40 bits of hz are sent.
func NewSetReceiverFrequency(channel uint8, hz uint64) []byte {
	payload := []byte{
		channel,
		byte(hz), byte(hz >> 8), byte(hz >> 16), byte(hz >> 24), byte(hz >> 32),
	}
	return MustEncodeControlMessage(SetControlItem, ReceiverFrequency, payload)
}

// NewSetSampleRate creates a frame that sets the IQ output sample rate
func NewSetSampleRate(channel uint8, hz uint32) []byte {
	payload := []byte{channel, byte(hz), byte(hz >> 8), byte(hz >> 16), byte(hz >> 24)}
	return MustEncodeControlMessage(SetControlItem, IQOutputDataSampleRate, payload)
}
