// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package netsdr

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// FormatMessage formats a decoded frame into a human-readable string
func FormatMessage(m *Message) string {
	if m == nil {
		return "(nil message)\n"
	}

	var result string
	if m.Type.IsControl() {
		result = fmt.Sprintf("%s (%d) item=%s (0x%04X) len=%d\n",
			FormatMessageType(m.Type), m.Type, FormatControlItemCode(m.Code), uint16(m.Code), m.Length())
		result += formatControlPayload(m.Code, m.Body)
	} else {
		result = fmt.Sprintf("%s (%d) seq=%d len=%d\n",
			FormatMessageType(m.Type), m.Type, m.Sequence, m.Length())
		result += fmt.Sprintf("  Payload: %d bytes\n", len(m.Body))
	}

	return result
}

// FormatMessageType returns the human-readable name for a message type
func FormatMessageType(msgType MessageType) string {
	switch msgType {
	// Control types
	case SetControlItem:
		return "SET_CONTROL_ITEM"
	case CurrentControlItem:
		return "CURRENT_CONTROL_ITEM"
	case ControlItemRange:
		return "CONTROL_ITEM_RANGE"
	case Ack:
		return "ACK"

	// Data types
	case DataItem0:
		return "DATA_ITEM_0"
	case DataItem1:
		return "DATA_ITEM_1"
	case DataItem2:
		return "DATA_ITEM_2"
	case DataItem3:
		return "DATA_ITEM_3"

	default:
		return "UNKNOWN"
	}
}

// FormatControlItemCode returns the human-readable name for a control item
func FormatControlItemCode(code ControlItemCode) string {
	switch code {
	case None:
		return "NONE"
	case ReceiverState:
		return "RECEIVER_STATE"
	case ReceiverFrequency:
		return "RECEIVER_FREQUENCY"
	case RFFilter:
		return "RF_FILTER"
	case ADModes:
		return "AD_MODES"
	case IQOutputDataSampleRate:
		return "IQ_OUTPUT_DATA_SAMPLE_RATE"
	default:
		return "UNKNOWN"
	}
}

// FormatHexDump renders bytes as rows of 16 hex pairs
func FormatHexDump(data []byte) string {
	if len(data) == 0 {
		return "  (no payload)\n"
	}

	var b strings.Builder
	b.WriteString("  Payload: ")
	for i, v := range data {
		if i > 0 && i%16 == 0 {
			b.WriteString("\n           ")
		}
		fmt.Fprintf(&b, "%02X ", v)
	}
	b.WriteString("\n")
	return b.String()
}

// formatControlPayload decodes the fields of known control items.
// Short payloads (requests carry only the channel) fall back to a hex dump.
func formatControlPayload(code ControlItemCode, payload []byte) string {
	switch code {
	case ReceiverFrequency:
		// channel, 40-bit frequency in Hz
		if len(payload) >= 6 {
			var word [8]byte
			copy(word[:], payload[1:6])
			hz := binary.LittleEndian.Uint64(word[:])
			return fmt.Sprintf("  Channel: %d, Frequency: %s\n", payload[0], formatHz(hz))
		}

	case IQOutputDataSampleRate:
		// channel, uint32 rate in Hz
		if len(payload) >= 5 {
			hz := binary.LittleEndian.Uint32(payload[1:5])
			return fmt.Sprintf("  Channel: %d, Sample Rate: %s\n", payload[0], formatHz(uint64(hz)))
		}

	case ReceiverState:
		// data type, run/stop, capture mode, fifo count
		if len(payload) >= 4 {
			return fmt.Sprintf("  Data: %s, State: %s, Capture Mode: 0x%02X, FIFO: %d\n",
				formatDataType(payload[0]), formatRunState(payload[1]), payload[2], payload[3])
		}

	case RFFilter, ADModes:
		// channel, mode
		if len(payload) >= 2 {
			return fmt.Sprintf("  Channel: %d, Mode: 0x%02X\n", payload[0], payload[1])
		}
	}

	return FormatHexDump(payload)
}

// formatHz picks a readable unit for a frequency
func formatHz(hz uint64) string {
	switch {
	case hz >= 1_000_000_000:
		return fmt.Sprintf("%.6f GHz", float64(hz)/1e9)
	case hz >= 1_000_000:
		return fmt.Sprintf("%.6f MHz", float64(hz)/1e6)
	case hz >= 1_000:
		return fmt.Sprintf("%.3f kHz", float64(hz)/1e3)
	default:
		return fmt.Sprintf("%d Hz", hz)
	}
}

func formatDataType(v byte) string {
	if v&ReceiverStateDataComplexIQ != 0 {
		return "COMPLEX_IQ"
	}
	return "REAL"
}

func formatRunState(v byte) string {
	switch v {
	case ReceiverStateIdle:
		return "IDLE"
	case ReceiverStateRun:
		return "RUN"
	default:
		return "UNKNOWN"
	}
}
