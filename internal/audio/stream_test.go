package audio

import (
	"encoding/binary"
	"testing"
)

func TestReadConvertsFloatSamplesToStereoPCM(t *testing.T) {
	r := NewRing(8)
	r.Push([]float32{1, -1})

	s := NewStream(r)
	buf := make([]byte, 2*BytesPerSample)
	n, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("Read returned %d bytes, want %d", n, len(buf))
	}

	left := int16(binary.LittleEndian.Uint16(buf[0:2]))
	right := int16(binary.LittleEndian.Uint16(buf[2:4]))
	if left != right {
		t.Error("mono sample should be duplicated to both channels")
	}
	if left != 32767 {
		t.Errorf("first sample = %d, want 32767 for +1.0 input", left)
	}
}

func TestReadOnEmptyRingProducesSilence(t *testing.T) {
	r := NewRing(8)
	s := NewStream(r)

	buf := make([]byte, BytesPerSample)
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("Read returned error: %v", err)
	}

	if binary.LittleEndian.Uint16(buf[0:2]) != 0 {
		t.Error("starved stream should read back as silence, not block or error")
	}
}
