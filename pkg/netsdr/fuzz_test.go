// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package netsdr

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

var validCodes = []ControlItemCode{ReceiverState, ReceiverFrequency, RFFilter, ADModes, IQOutputDataSampleRate}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

// TestFuzzDecode_RandomBytes feeds random bytes to Decode and checks that it
// only ever returns decode errors
func TestFuzzDecode_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		frame := make([]byte, rng.Intn(64))
		rng.Read(frame)

		m, err := Decode(frame)
		if err != nil {
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("round %d: error %v does not wrap ErrDecode", i, err)
			}
			continue
		}
		if m.Length() != len(frame) {
			t.Fatalf("round %d: decoded length %d, frame %d", i, m.Length(), len(frame))
		}
	}
}

// TestFuzzDecode_SelfConsistentHeader builds frames whose header always matches
// the buffer length so the deeper decode paths are exercised
func TestFuzzDecode_SelfConsistentHeader(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		msgType := MessageType(rng.Intn(8))
		size := 2 + rng.Intn(32)
		frame := make([]byte, size)
		rng.Read(frame)
		frame[0] = byte(size)
		frame[1] = byte(msgType) << 5

		m, err := Decode(frame)
		if err != nil {
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("round %d: unexpected error type %v", i, err)
			}
			continue
		}
		if m.Type != msgType {
			t.Fatalf("round %d: type %v, want %v", i, m.Type, msgType)
		}
	}
}

// ============================================================
// Round Trip Fuzz Tests
// ============================================================

func TestFuzzRoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		payload := make([]byte, rng.Intn(512))
		rng.Read(payload)

		if rng.Intn(2) == 0 {
			msgType := MessageType(rng.Intn(4))
			code := validCodes[rng.Intn(len(validCodes))]
			frame, err := EncodeControlMessage(msgType, code, payload)
			if err != nil {
				t.Fatalf("round %d: encode: %v", i, err)
			}
			m, err := Decode(frame)
			if err != nil {
				t.Fatalf("round %d: decode: %v", i, err)
			}
			if m.Type != msgType || m.Code != code || !bytes.Equal(m.Body, payload) {
				t.Fatalf("round %d: control round trip mismatch", i)
			}
		} else {
			msgType := DataItem0 + MessageType(rng.Intn(4))
			seq := uint16(rng.Intn(1 << 16))
			frame, err := EncodeDataFrame(msgType, seq, payload)
			if err != nil {
				t.Fatalf("round %d: encode: %v", i, err)
			}
			m, err := Decode(frame)
			if err != nil {
				t.Fatalf("round %d: decode: %v", i, err)
			}
			if m.Type != msgType || m.Sequence != seq || !bytes.Equal(m.Body, payload) {
				t.Fatalf("round %d: data round trip mismatch", i)
			}
		}
	}
}
