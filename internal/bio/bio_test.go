package bio

import (
	"bytes"
	"io"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	vals := []struct {
		v uint32
		n uint
	}{
		{0x1, 1},
		{0x3, 2},
		{0xA, 4},
		{0xFF, 8},
		{0x3FF, 10},
		{0xFFFF, 16},
	}

	for _, tc := range vals {
		if err := w.WriteBits(tc.v, tc.n); err != nil {
			t.Fatalf("WriteBits(%x, %d): %v", tc.v, tc.n, err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := NewReader(&buf)
	for _, tc := range vals {
		got, err := r.ReadBits(tc.n)
		if err != nil {
			t.Fatalf("ReadBits(%d): %v", tc.n, err)
		}
		if got != tc.v {
			t.Errorf("ReadBits(%d) = %#x, want %#x", tc.n, got, tc.v)
		}
	}
}

func TestSingleBits(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	bits := []int{1, 0, 1, 1, 0, 0, 1, 0, 1, 1}
	for _, b := range bits {
		if err := w.WriteBit(b); err != nil {
			t.Fatalf("WriteBit: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := NewReader(&buf)
	for i, want := range bits {
		got, err := r.ReadBit()
		if err != nil {
			t.Fatalf("ReadBit[%d]: %v", i, err)
		}
		if got != want {
			t.Errorf("ReadBit[%d] = %d, want %d", i, got, want)
		}
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteBits(0b10110, 5)
	w.Flush()

	r := NewReader(&buf)
	peeked, err := r.Peek(3)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if peeked != 0b101 {
		t.Errorf("Peek(3) = %#b, want %#b", peeked, 0b101)
	}
	// Peek must not have advanced the stream.
	got, err := r.ReadBits(5)
	if err != nil {
		t.Fatalf("ReadBits: %v", err)
	}
	if got != 0b10110 {
		t.Errorf("ReadBits(5) after Peek = %#b, want %#b", got, 0b10110)
	}
}

func TestAlignDiscardsPartialByte(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteBits(0xAB, 8)
	w.WriteBits(0xCD, 8)
	w.Flush()

	r := NewReader(&buf)
	r.ReadBits(3)
	r.Align()
	got, err := r.ReadBits(8)
	if err != nil {
		t.Fatalf("ReadBits: %v", err)
	}
	if got != 0xCD {
		t.Errorf("ReadBits after Align = %#x, want %#x", got, 0xCD)
	}
}

func TestReadPastEOF(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteBits(0x1, 1)
	w.Flush()

	// The flushed byte holds the written bit plus 7 zero padding bits;
	// reading all 8 exhausts the stream.
	r := NewReader(&buf)
	r.ReadBits(8)
	if _, err := r.ReadBit(); err != io.EOF {
		t.Errorf("ReadBit past EOF = %v, want io.EOF", err)
	}
}
