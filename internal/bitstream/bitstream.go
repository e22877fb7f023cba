// Package bitstream frames a CineForm sample as a linear sequence of
// 32-bit tag-value tuples (spec section 4.6): a self-describing wire
// format with no outer length field, so decoders advance tuple-by-tuple
// until SAMPLE_END and must tolerate unknown tags by skipping the
// payload length the tuple itself encodes.
//
// The big-endian word-at-a-time framing mirrors the teacher's JPEG 2000
// marker segments (github.com/mrjoshuak/go-jpeg2000,
// internal/codestream/markers.go), which likewise pairs a fixed-size
// marker code with a length-prefixed payload read through a shared
// byteReader.
package bitstream

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ErrTruncatedSample is returned when a sample ends without SAMPLE_END,
// or is zero-length.
var ErrTruncatedSample = errors.New("bitstream: truncated sample (no SAMPLE_END)")

// ErrUnknownTag names an unrecognized tag. Nothing in this package
// returns it: the package-level Reader always skips unknown tags per the
// parse-resiliency requirement.
var ErrUnknownTag = errors.New("bitstream: unknown tag")

// Tag is a signed 16-bit tuple identifier. The high bit (sign bit) marks
// a long-form tuple.
type Tag int16

const longFormBit = int16(-1) << 15 // 0x8000 as a signed pattern

// IsLongForm reports whether t carries the long-form bit.
func (t Tag) IsLongForm() bool {
	return int16(t)&longFormBit != 0
}

// base clears the long-form bit to recover the base tag identity,
// shared between the short and long encodings of the same tag.
func (t Tag) base() Tag {
	return t &^ Tag(longFormBit)
}

// The closed tag enumeration (spec 4.6). Values are arbitrary but stable
// within this implementation; they are not required to match any
// external reference encoder's numbering, since the spec treats wire
// compatibility with the original reference as out of scope beyond the
// documented framing rules.
const (
	TagSampleType Tag = iota + 1
	TagFrameWidth
	TagFrameHeight
	TagEncodedFormat
	TagChannelCount
	TagLevelCount // decomposition level count, read by the decoder instead of assuming one
	TagPrecision
	TagQuantizerVector
	TagInterlaced
	TagGOPStructure
	TagSubbandIndex
	TagBandEncodingMethod
	TagBandCoeffCount
	TagBandPayloadStart
	TagBandPayloadEnd
	TagThumbnailLowpass
)

// TagChannelOffsetBase through TagChannelOffsetBase+maxChannelOffsets-1
// address up to maxChannelOffsets channels (TagChannelOffsetBase+k for
// channel k), per spec 4.6/4.9 (TAG_CHANNEL_OFFSET_k). Reserved as an
// explicit block, well clear of the single-valued tags above, so that no
// channel offset tag can ever collide with TagMetadataBlock or
// TagSampleEnd.
const (
	TagChannelOffsetBase Tag = 64
	maxChannelOffsets    Tag = 16
	TagMetadataBlock     Tag = TagChannelOffsetBase + maxChannelOffsets
	TagSampleEnd         Tag = 0x7FFF
)

// ChannelOffsetTag returns the tag used to record channel k's LL band
// byte offset, per spec 4.6/4.9 (TAG_CHANNEL_OFFSET_k).
func ChannelOffsetTag(channel int) Tag {
	return TagChannelOffsetBase + Tag(channel)
}

// Tuple is one decoded tag-value(-payload) unit.
type Tuple struct {
	Tag     Tag
	Value   uint16
	Payload []byte // nil for short-form tuples
}

// LongForm reports whether this tuple carries a payload.
func (t Tuple) LongForm() bool {
	return t.Tag.IsLongForm()
}

// Writer serializes tuples to a 4-byte-aligned, big-endian sample.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteShort writes a short-form tuple: a plain 16-bit value, no payload.
func (w *Writer) WriteShort(tag Tag, value uint16) error {
	if w.err != nil {
		return w.err
	}
	var buf [4]byte
	binary.BigEndian.PutUint16(buf[0:2], uint16(tag&^Tag(longFormBit)))
	binary.BigEndian.PutUint16(buf[2:4], value)
	_, w.err = w.w.Write(buf[:])
	return w.err
}

// WriteLong writes a long-form tuple: tag with the high bit set, value =
// payload length / 4 (the caller's payload is padded to a 4-byte
// boundary with zero bytes before the length is computed).
func (w *Writer) WriteLong(tag Tag, payload []byte) error {
	if w.err != nil {
		return w.err
	}
	padded := payload
	if rem := len(payload) % 4; rem != 0 {
		padded = make([]byte, len(payload)+(4-rem))
		copy(padded, payload)
	}
	words := len(padded) / 4
	if words > 0xFFFF {
		return errors.Errorf("bitstream: long-form payload too large (%d words)", words)
	}

	var hdr [4]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(tag|Tag(longFormBit)))
	binary.BigEndian.PutUint16(hdr[2:4], uint16(words))
	if _, err := w.w.Write(hdr[:]); err != nil {
		w.err = err
		return err
	}
	_, w.err = w.w.Write(padded)
	return w.err
}

// WriteSampleEnd writes the terminal SAMPLE_END tuple.
func (w *Writer) WriteSampleEnd() error {
	return w.WriteShort(TagSampleEnd, 0)
}

// Err returns the first error encountered by any Write call.
func (w *Writer) Err() error {
	return w.err
}

// Reader parses a tag-value tuple stream, skipping unknown tags using
// the length their own framing implies (the long-form bit plus the
// value/word-count field), per the parse-resiliency requirement.
type Reader struct {
	r    io.Reader
	done bool
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next reads the next tuple. After SAMPLE_END it returns io.EOF. If the
// underlying stream ends before SAMPLE_END, it returns
// ErrTruncatedSample.
func (r *Reader) Next() (Tuple, error) {
	if r.done {
		return Tuple{}, io.EOF
	}

	var hdr [4]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Tuple{}, ErrTruncatedSample
		}
		return Tuple{}, err
	}

	tag := Tag(int16(binary.BigEndian.Uint16(hdr[0:2])))
	value := binary.BigEndian.Uint16(hdr[2:4])

	if tag.base() == TagSampleEnd {
		r.done = true
		return Tuple{Tag: TagSampleEnd, Value: value}, nil
	}

	if !tag.IsLongForm() {
		return Tuple{Tag: tag, Value: value}, nil
	}

	payload := make([]byte, int(value)*4)
	if len(payload) > 0 {
		if _, err := io.ReadFull(r.r, payload); err != nil {
			return Tuple{}, ErrTruncatedSample
		}
	}
	return Tuple{Tag: tag.base(), Value: value, Payload: payload}, nil
}

// ReadAll parses every tuple up to and including SAMPLE_END, returning
// ErrTruncatedSample if the stream ends first (including the
// zero-length-sample case, where the very first read fails).
func ReadAll(r io.Reader) ([]Tuple, error) {
	reader := NewReader(r)
	var out []Tuple
	for {
		t, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
		out = append(out, t)
		if t.Tag == TagSampleEnd {
			return out, nil
		}
	}
}
