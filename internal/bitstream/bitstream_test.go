package bitstream

import (
	"bytes"
	"io"
	"testing"
)

func TestWriteReadShortAndLongTuples(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.WriteShort(TagFrameWidth, 1920); err != nil {
		t.Fatalf("WriteShort: %v", err)
	}
	if err := w.WriteShort(TagFrameHeight, 1080); err != nil {
		t.Fatalf("WriteShort: %v", err)
	}
	payload := []byte{1, 2, 3, 4, 5, 6, 7} // not 4-byte aligned, must be padded
	if err := w.WriteLong(TagQuantizerVector, payload); err != nil {
		t.Fatalf("WriteLong: %v", err)
	}
	if err := w.WriteSampleEnd(); err != nil {
		t.Fatalf("WriteSampleEnd: %v", err)
	}

	tuples, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(tuples) != 4 {
		t.Fatalf("len(tuples) = %d, want 4", len(tuples))
	}
	if tuples[0].Tag != TagFrameWidth || tuples[0].Value != 1920 {
		t.Errorf("tuples[0] = %+v, want FrameWidth=1920", tuples[0])
	}
	if tuples[1].Tag != TagFrameHeight || tuples[1].Value != 1080 {
		t.Errorf("tuples[1] = %+v, want FrameHeight=1080", tuples[1])
	}
	if tuples[2].Tag != TagQuantizerVector {
		t.Errorf("tuples[2].Tag = %v, want TagQuantizerVector", tuples[2].Tag)
	}
	if len(tuples[2].Payload) != 8 {
		t.Fatalf("payload len = %d, want 8 (padded to 4-byte alignment)", len(tuples[2].Payload))
	}
	if !bytes.Equal(tuples[2].Payload[:7], payload) {
		t.Errorf("payload content = %v, want %v", tuples[2].Payload[:7], payload)
	}
	if tuples[2].Payload[7] != 0 {
		t.Errorf("padding byte = %d, want 0", tuples[2].Payload[7])
	}
	if tuples[3].Tag != TagSampleEnd {
		t.Errorf("tuples[3].Tag = %v, want TagSampleEnd", tuples[3].Tag)
	}
}

func TestUnknownTagIsSkipped(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteShort(TagFrameWidth, 640)
	// An unknown tag using a real tag value this package doesn't reserve,
	// written long-form so its length is self-describing.
	w.WriteLong(Tag(9000), []byte{0xAA, 0xBB, 0xCC, 0xDD})
	w.WriteShort(TagFrameHeight, 480)
	w.WriteSampleEnd()

	tuples, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(tuples) != 4 {
		t.Fatalf("len(tuples) = %d, want 4 (unknown tag preserved as opaque tuple)", len(tuples))
	}
	if tuples[1].Tag != Tag(9000) || len(tuples[1].Payload) != 4 {
		t.Errorf("unknown tuple = %+v, want tag 9000 with a 4-byte payload", tuples[1])
	}
	if tuples[2].Tag != TagFrameHeight || tuples[2].Value != 480 {
		t.Errorf("decode did not resume correctly after unknown tag: %+v", tuples[2])
	}
}

func TestTruncatedSampleMissingEnd(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteShort(TagFrameWidth, 640)
	// No SAMPLE_END written.

	_, err := ReadAll(&buf)
	if err != ErrTruncatedSample {
		t.Errorf("ReadAll = %v, want ErrTruncatedSample", err)
	}
}

func TestTruncatedSampleZeroLength(t *testing.T) {
	_, err := ReadAll(bytes.NewReader(nil))
	if err != ErrTruncatedSample {
		t.Errorf("ReadAll(empty) = %v, want ErrTruncatedSample", err)
	}
}

func TestTruncatedLongFormPayload(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteLong(TagQuantizerVector, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	full := buf.Bytes()
	// Truncate mid-payload.
	truncated := full[:len(full)-4]

	_, err := ReadAll(bytes.NewReader(truncated))
	if err != ErrTruncatedSample {
		t.Errorf("ReadAll(truncated payload) = %v, want ErrTruncatedSample", err)
	}
}

func TestChannelOffsetTag(t *testing.T) {
	if ChannelOffsetTag(0) == ChannelOffsetTag(1) {
		t.Errorf("ChannelOffsetTag must be distinct per channel")
	}
}

func TestReaderNextAfterSampleEndReturnsEOF(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteSampleEnd()

	r := NewReader(&buf)
	tuple, err := r.Next()
	if err != nil || tuple.Tag != TagSampleEnd {
		t.Fatalf("first Next() = %+v, %v", tuple, err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() after SAMPLE_END = %v, want io.EOF", err)
	}
}
