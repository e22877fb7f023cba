package entropy

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/cineform/codec/internal/bio"
)

func encodeDecode(t *testing.T, coeffs []int32) []int32 {
	t.Helper()
	var buf bytes.Buffer
	w := bio.NewWriter(&buf)
	if err := NewEncoder(w).EncodeBand(coeffs); err != nil {
		t.Fatalf("EncodeBand: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := bio.NewReader(&buf)
	got, err := NewDecoder(r).DecodeBand(len(coeffs))
	if err != nil {
		t.Fatalf("DecodeBand: %v", err)
	}
	return got
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]int32{
		{},
		{0, 0, 0},
		{1, -1, 2, -2},
		{0, 0, 0, 5, 0, 0, -5, 0, 0, 0},
		{100, -100, 255, -255},
	}
	for i, coeffs := range cases {
		got := encodeDecode(t, coeffs)
		if len(got) != len(coeffs) {
			t.Fatalf("case %d: len(got) = %d, want %d", i, len(got), len(coeffs))
		}
		for j := range coeffs {
			if got[j] != coeffs[j] {
				t.Errorf("case %d: got[%d] = %d, want %d", i, j, got[j], coeffs[j])
			}
		}
	}
}

func TestEncodeDecodeRandom(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	coeffs := make([]int32, 300)
	for i := range coeffs {
		// Bias toward zero, matching the sparse highpass-band distribution
		// the codebook is shaped for.
		if r.Intn(3) != 0 {
			coeffs[i] = 0
			continue
		}
		coeffs[i] = int32(r.Intn(2000) - 1000)
	}

	got := encodeDecode(t, coeffs)
	for i := range coeffs {
		if got[i] != coeffs[i] {
			t.Fatalf("index %d: got %d, want %d", i, got[i], coeffs[i])
		}
	}
}

func TestEncodeDecodeLargeMagnitudeEscape(t *testing.T) {
	coeffs := []int32{30000, -30000, 41, -41, 40, -40}
	got := encodeDecode(t, coeffs)
	for i := range coeffs {
		if got[i] != coeffs[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], coeffs[i])
		}
	}
}

func TestDecodeBandUnderflow(t *testing.T) {
	var buf bytes.Buffer
	w := bio.NewWriter(&buf)
	// Encode 4 coefficients but decode a band that claims only 2: the
	// count is reached before the end marker appears.
	if err := NewEncoder(w).EncodeBand([]int32{1, 2, 3, 4}); err != nil {
		t.Fatalf("EncodeBand: %v", err)
	}
	w.Flush()

	r := bio.NewReader(&buf)
	_, err := NewDecoder(r).DecodeBand(2)
	if err != ErrBandUnderflow {
		t.Errorf("DecodeBand = %v, want ErrBandUnderflow", err)
	}
}

func TestDecodeBandOverflow(t *testing.T) {
	var buf bytes.Buffer
	w := bio.NewWriter(&buf)
	// Encode only 2 coefficients but decode a band that claims 4: the end
	// marker appears before the band is full.
	if err := NewEncoder(w).EncodeBand([]int32{1, 2}); err != nil {
		t.Fatalf("EncodeBand: %v", err)
	}
	w.Flush()

	r := bio.NewReader(&buf)
	_, err := NewDecoder(r).DecodeBand(4)
	if err != ErrBandOverflow {
		t.Errorf("DecodeBand = %v, want ErrBandOverflow", err)
	}
}

func TestCodebookPrefixFree(t *testing.T) {
	// No code word may be a bit-prefix of another: otherwise the FSM table
	// build (which tries the shortest match first via lookup) would be
	// ambiguous.
	for i, a := range codebook {
		for j, b := range codebook {
			if i == j {
				continue
			}
			minLen := a.length
			if b.length < minLen {
				minLen = b.length
			}
			if minLen == 0 {
				continue
			}
			aPrefix := a.code >> (a.length - minLen)
			bPrefix := b.code >> (b.length - minLen)
			if aPrefix == bPrefix && a.length <= b.length && i != j && a.length == minLen {
				t.Fatalf("code %d (len %d) is a prefix of code %d (len %d)", a.code, a.length, b.code, b.length)
			}
		}
	}
}
