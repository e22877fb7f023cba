package cineform

import (
	"bytes"
	"testing"

	"github.com/cineform/codec/internal/bitstream"
)

func TestNewDecoderRejectsBadArguments(t *testing.T) {
	if _, err := NewDecoder(0, 8, PixelFormatBGRA, ResolutionFull); err != ErrInvalidArgument {
		t.Errorf("NewDecoder(width=0) err = %v, want ErrInvalidArgument", err)
	}
	if _, err := NewDecoder(8, 8, PixelFormat("nope"), ResolutionFull); err == nil {
		t.Error("NewDecoder with unsupported pixel format: want error, got nil")
	}
}

func TestParseSampleHeaderRejectsSampleWithoutDimensions(t *testing.T) {
	if _, err := ParseSampleHeader(nil); err == nil {
		t.Error("ParseSampleHeader(nil): want error, got nil")
	}
}

func TestEncodeDecodeSampleRoundTripProducesExpectedGeometry(t *testing.T) {
	width, height := 16, 8
	opts := DefaultOptions(width, height, PixelFormatBGRA)
	opts.EncodedFormat = EncodedRGB444
	opts.Levels = 2

	enc, err := NewEncoder(opts)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	sample, err := enc.EncodeSample(makeTestFrame(width, height), width*4)
	if err != nil {
		t.Fatalf("EncodeSample: %v", err)
	}

	dec, err := NewDecoder(width, height, PixelFormatBGRA, ResolutionFull)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	out, _, _, err := dec.DecodeSample(sample)
	if err != nil {
		t.Fatalf("DecodeSample: %v", err)
	}

	wantLen := width * height * 4
	if len(out) != wantLen {
		t.Errorf("len(out) = %d, want %d", len(out), wantLen)
	}
}

func TestDecodeSampleThumbnailBypassesEntropyCoder(t *testing.T) {
	width, height := 16, 8
	opts := DefaultOptions(width, height, PixelFormatBGRA)
	opts.EncodedFormat = EncodedRGB444
	opts.Levels = 3

	enc, err := NewEncoder(opts)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	sample, err := enc.EncodeSample(makeTestFrame(width, height), width*4)
	if err != nil {
		t.Fatalf("EncodeSample: %v", err)
	}

	// Corrupt every band payload tuple's bytes. A thumbnail decode that
	// genuinely never runs the entropy coder is unaffected; one that
	// still calls engine.DecodeChannel would fail here.
	tuples, err := bitstream.ReadAll(bytes.NewReader(sample))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	for i := range tuples {
		if tuples[i].Tag == bitstream.TagBandPayloadStart {
			for j := range tuples[i].Payload {
				tuples[i].Payload[j] ^= 0xFF
			}
		}
	}
	var corrupted bytes.Buffer
	w := bitstream.NewWriter(&corrupted)
	for _, tp := range tuples {
		if tp.Tag == bitstream.TagSampleEnd {
			if err := w.WriteSampleEnd(); err != nil {
				t.Fatalf("WriteSampleEnd: %v", err)
			}
			continue
		}
		if tp.Payload != nil {
			if err := w.WriteLong(tp.Tag, tp.Payload); err != nil {
				t.Fatalf("WriteLong: %v", err)
			}
			continue
		}
		if err := w.WriteShort(tp.Tag, tp.Value); err != nil {
			t.Fatalf("WriteShort: %v", err)
		}
	}

	dec, err := NewDecoder(width, height, PixelFormatBGRA, ResolutionThumbnail)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	out, _, warn, err := dec.DecodeSample(corrupted.Bytes())
	if err != nil {
		t.Fatalf("DecodeSample: %v", err)
	}
	if warn != nil {
		t.Errorf("unexpected warning from thumbnail decode: %v", warn)
	}

	wantW, wantH := downscaledDims(width, height, opts.Levels)
	wantLen := wantW * wantH * 4
	if len(out) != wantLen {
		t.Errorf("len(out) = %d, want %d (%dx%d thumbnail)", len(out), wantLen, wantW, wantH)
	}
}

func TestDecodeSampleRejectsTruncatedInput(t *testing.T) {
	dec, err := NewDecoder(16, 8, PixelFormatBGRA, ResolutionFull)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if _, _, _, err := dec.DecodeSample([]byte{0, 1, 0, 2}); err == nil {
		t.Error("DecodeSample(truncated): want error, got nil")
	}
}
