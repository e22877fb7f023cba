package cineform

import "testing"

func makeTestFrame(width, height int) []byte {
	pitch := width * 4
	frame := make([]byte, pitch*height)
	for i := range frame {
		frame[i] = byte((i * 37) & 0xFF)
	}
	return frame
}

func TestNewEncoderRejectsBadArguments(t *testing.T) {
	if _, err := NewEncoder(Options{Width: 0, Height: 8, PixelFormat: PixelFormatBGRA}); err != ErrInvalidArgument {
		t.Errorf("NewEncoder(width=0) err = %v, want ErrInvalidArgument", err)
	}
	opts := DefaultOptions(8, 8, PixelFormat("nope"))
	if _, err := NewEncoder(opts); err == nil {
		t.Error("NewEncoder with unsupported pixel format: want error, got nil")
	}
}

func TestEncodeSampleIntraOnlyProducesTerminatedSample(t *testing.T) {
	opts := DefaultOptions(16, 8, PixelFormatBGRA)
	opts.EncodedFormat = EncodedRGB444
	opts.Levels = 2

	enc, err := NewEncoder(opts)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	sample, err := enc.EncodeSample(makeTestFrame(16, 8), 16*4)
	if err != nil {
		t.Fatalf("EncodeSample: %v", err)
	}
	if len(sample) < 4 {
		t.Fatalf("sample too short: %d bytes", len(sample))
	}

	header, err := ParseSampleHeader(sample)
	if err != nil {
		t.Fatalf("ParseSampleHeader: %v", err)
	}
	if header.Width != 16 || header.Height != 8 {
		t.Errorf("header dims = %dx%d, want 16x8", header.Width, header.Height)
	}
	if header.EncodedFormat != EncodedRGB444 {
		t.Errorf("header.EncodedFormat = %v, want EncodedRGB444", header.EncodedFormat)
	}
	if header.ChannelCount != 3 {
		t.Errorf("header.ChannelCount = %d, want 3", header.ChannelCount)
	}
	if header.GOP != GOPIntraOnly {
		t.Errorf("header.GOP = %v, want GOPIntraOnly", header.GOP)
	}
}

func TestEncodeSampleTemporalPairAlternatesFrames(t *testing.T) {
	opts := DefaultOptions(16, 8, PixelFormatBGRA)
	opts.EncodedFormat = EncodedRGB444
	opts.Levels = 2
	opts.GOP = GOPPair

	enc, err := NewEncoder(opts)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	frame := makeTestFrame(16, 8)
	first, err := enc.EncodeSample(frame, 16*4)
	if err != nil {
		t.Fatalf("EncodeSample (frame 0): %v", err)
	}
	second, err := enc.EncodeSample(frame, 16*4)
	if err != nil {
		t.Fatalf("EncodeSample (frame 1): %v", err)
	}
	if len(first) == 0 || len(second) == 0 {
		t.Fatal("expected non-empty samples for both frames of a GOP pair")
	}

	h1, err := ParseSampleHeader(first)
	if err != nil {
		t.Fatalf("ParseSampleHeader(first): %v", err)
	}
	if h1.GOP != GOPPair {
		t.Errorf("first sample GOP = %v, want GOPPair", h1.GOP)
	}
}
