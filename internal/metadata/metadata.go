// Package metadata implements the CineForm metadata store: six scoped
// tag-value blobs (global, per-eye, per-eye diffs, and per-frame local)
// merged into a single view and serialized as length-prefixed typed
// tuples (spec section 4.9).
//
// The scope-as-tagged-union shape follows design note 9's guidance
// directly; the typed-tuple encoding (a FourCC tag, a one-byte type
// code, and a 24-bit big-endian size) follows the teacher's JP2 box
// format (github.com/mrjoshuak/go-jpeg2000, internal/box/box.go), which
// likewise pairs a FourCC type with an explicit length before its
// payload.
package metadata

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Scope identifies one of the six logical metadata tracks.
type Scope int

const (
	Both Scope = iota
	Left
	Right
	DiffLeft
	DiffRight
	Local
)

// String returns the scope's name.
func (s Scope) String() string {
	switch s {
	case Both:
		return "Both"
	case Left:
		return "Left"
	case Right:
		return "Right"
	case DiffLeft:
		return "DiffLeft"
	case DiffRight:
		return "DiffRight"
	case Local:
		return "Local"
	default:
		return "Unknown"
	}
}

// mergeOrder lists scopes from lowest to highest precedence: a later
// scope's tuple overwrites an earlier scope's tuple for the same tag,
// per the "per-frame beats global" merging rule.
var mergeOrder = []Scope{Both, Left, Right, DiffLeft, DiffRight, Local}

// Type is the one-byte type code carried by each tuple, drawn from the
// closed set {c,L,S,B,f,d,G,x,H,h,T}.
type Type byte

const (
	TypeChar     Type = 'c' // ASCII/UTF-8 string
	TypeLong     Type = 'L' // int32
	TypeShort    Type = 'S' // int16
	TypeByte     Type = 'B' // uint8
	TypeFloat    Type = 'f' // float32
	TypeDouble   Type = 'd' // float64
	TypeGUID     Type = 'G' // 16-byte GUID
	TypeBinary   Type = 'x' // opaque blob
	TypeHex      Type = 'H' // uint32 printed as hex by convention
	TypeHalf     Type = 'h' // IEEE 754 half-precision float, stored as 2 bytes
	TypeTimecode Type = 'T' // SMPTE timecode, stored as a packed uint32
)

// Tag is a four-character metadata tuple identifier, e.g. "GUID".
type Tag string

const (
	TagGUID           Tag = "GUID"
	TagTimecode       Tag = "TMCD"
	TagUniqueFrameNum Tag = "UFRM"
)

// ChannelOffsetTag builds the metadata tag that records channel k's LL
// band byte offset for zero-copy thumbnail extraction.
func ChannelOffsetTag(channel int) Tag {
	return Tag(fmt.Sprintf("CO%02d", channel))
}

// Tuple is one typed metadata entry.
type Tuple struct {
	Tag   Tag
	Type  Type
	Value []byte // raw encoded payload; use the Encode*/decode* helpers
}

// ErrBadMetadata is returned when a tuple's declared size does not fit
// the remaining stream, or a tuple cannot be decoded to its declared type.
var ErrBadMetadata = errors.New("metadata: malformed tuple")

// Blob is a flat, ordered collection of tuples for one scope. Later
// entries for the same tag overwrite earlier ones within the blob.
type Blob struct {
	order []Tag
	tags  map[Tag]Tuple
}

// NewBlob creates an empty blob.
func NewBlob() *Blob {
	return &Blob{tags: make(map[Tag]Tuple)}
}

// Set stores or overwrites a tuple.
func (b *Blob) Set(t Tuple) {
	if _, exists := b.tags[t.Tag]; !exists {
		b.order = append(b.order, t.Tag)
	}
	b.tags[t.Tag] = t
}

// SetLong stores a 32-bit integer tuple.
func (b *Blob) SetLong(tag Tag, v int32) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(v))
	b.Set(Tuple{Tag: tag, Type: TypeLong, Value: buf})
}

// SetFloat stores a 32-bit float tuple.
func (b *Blob) SetFloat(tag Tag, v float32) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, math.Float32bits(v))
	b.Set(Tuple{Tag: tag, Type: TypeFloat, Value: buf})
}

// SetString stores a character-string tuple.
func (b *Blob) SetString(tag Tag, v string) {
	b.Set(Tuple{Tag: tag, Type: TypeChar, Value: []byte(v)})
}

// Get returns the tuple for tag, if present.
func (b *Blob) Get(tag Tag) (Tuple, bool) {
	t, ok := b.tags[tag]
	return t, ok
}

// GetLong decodes tag as a 32-bit integer.
func (b *Blob) GetLong(tag Tag) (int32, bool) {
	t, ok := b.Get(tag)
	if !ok || t.Type != TypeLong || len(t.Value) != 4 {
		return 0, false
	}
	return int32(binary.BigEndian.Uint32(t.Value)), true
}

// Tags returns the tags present in the blob, in insertion order.
func (b *Blob) Tags() []Tag {
	out := make([]Tag, len(b.order))
	copy(out, b.order)
	return out
}

// Len reports the number of tuples in the blob.
func (b *Blob) Len() int {
	return len(b.tags)
}

// Clone deep-copies the blob, for the job pool's per-submission metadata
// snapshot (spec 4.8: "captures a deep copy ... so that subsequent
// mutations ... do not affect frames already queued").
func (b *Blob) Clone() *Blob {
	clone := NewBlob()
	for _, tag := range b.order {
		t := b.tags[tag]
		v := make([]byte, len(t.Value))
		copy(v, t.Value)
		clone.Set(Tuple{Tag: t.Tag, Type: t.Type, Value: v})
	}
	return clone
}

// Store holds all six metadata scopes for one clip/session.
type Store struct {
	blobs       map[Scope]*Blob
	nextFrameNo int32
	frameRate   float64
	timecode    float64
}

// NewStore creates a Store with empty blobs for every scope, a timecode
// starting at zero and a unique-frame-number sequence starting at 1. A
// frameRate of zero or less is replaced by 30. frameRate drives the
// pool's auto-incrementing timecode (spec 4.8).
func NewStore(frameRate float64) *Store {
	s := &Store{blobs: make(map[Scope]*Blob), frameRate: frameRate, nextFrameNo: 1}
	for _, scope := range mergeOrder {
		s.blobs[scope] = NewBlob()
	}
	if frameRate <= 0 {
		s.frameRate = 30
	}
	return s
}

// Blob returns the mutable blob for scope.
func (s *Store) Blob(scope Scope) *Blob {
	return s.blobs[scope]
}

// EnsureGUID assigns a random GUID to the Both scope if one is not
// already present, per the "auto-assigned if absent" invariant.
func (s *Store) EnsureGUID() error {
	both := s.blobs[Both]
	if _, ok := both.Get(TagGUID); ok {
		return nil
	}
	var guid [16]byte
	if _, err := rand.Read(guid[:]); err != nil {
		return errors.Wrap(err, "metadata: generating GUID")
	}
	both.Set(Tuple{Tag: TagGUID, Type: TypeGUID, Value: guid[:]})
	return nil
}

// NextFrame advances the auto-incrementing timecode and unique-frame-
// number into the Local scope, unless the caller has already set them
// for this frame.
func (s *Store) NextFrame(local *Blob) {
	if _, ok := local.Get(TagUniqueFrameNum); !ok {
		local.SetLong(TagUniqueFrameNum, s.nextFrameNo)
	}
	if _, ok := local.Get(TagTimecode); !ok {
		local.SetFloat(TagTimecode, float32(s.timecode))
	}
	s.nextFrameNo++
	s.timecode += 1 / s.frameRate
}

// ComputeStereoDiff fills the DiffRight blob with tag-wise "right - left"
// differences for the 32-bit integer (TypeLong) tags both eyes share,
// transmitting a tag only when the difference is non-zero, per spec 4.9.
// Tags of other types are not diffed, and DiffLeft is left empty.
func (s *Store) ComputeStereoDiff() {
	left, right := s.blobs[Left], s.blobs[Right]
	diff := NewBlob()
	for _, tag := range right.Tags() {
		rt, _ := right.Get(tag)
		lt, ok := left.Get(tag)
		if !ok || lt.Type != rt.Type {
			continue
		}
		switch rt.Type {
		case TypeLong:
			lv, _ := left.GetLong(tag)
			rv, _ := right.GetLong(tag)
			if d := rv - lv; d != 0 {
				diff.SetLong(tag, d)
			}
		}
	}
	s.blobs[DiffRight] = diff
	s.blobs[DiffLeft] = NewBlob() // left-relative diff is the negation; not stored
}

// Merge flattens all six scopes into one blob using the fixed precedence
// order Both < Left/Right < DiffLeft/DiffRight < Local: a later scope's
// tuple for the same tag overwrites an earlier one.
func (s *Store) Merge() *Blob {
	merged := NewBlob()
	for _, scope := range mergeOrder {
		for _, tag := range s.blobs[scope].Tags() {
			t, _ := s.blobs[scope].Get(tag)
			merged.Set(t)
		}
	}
	return merged
}

// Encode serializes blob as a sequence of {tag(4) type(1) size(3 big-
// endian) payload} tuples.
func Encode(w io.Writer, blob *Blob) error {
	for _, tag := range blob.Tags() {
		t, _ := blob.Get(tag)
		if len(tag) != 4 {
			return errors.Errorf("metadata: tag %q must be 4 characters", tag)
		}
		if len(t.Value) > 1<<24-1 {
			return errors.Errorf("metadata: tuple %q too large (%d bytes)", tag, len(t.Value))
		}
		var hdr [5]byte
		copy(hdr[0:4], []byte(tag))
		hdr[4] = byte(t.Type)
		if _, err := w.Write(hdr[:]); err != nil {
			return err
		}
		var size [3]byte
		size[0] = byte(len(t.Value) >> 16)
		size[1] = byte(len(t.Value) >> 8)
		size[2] = byte(len(t.Value))
		if _, err := w.Write(size[:]); err != nil {
			return err
		}
		if _, err := w.Write(t.Value); err != nil {
			return err
		}
	}
	return nil
}

// Decode parses a stream of typed tuples written by Encode. Parse errors
// never prevent image decode (spec 4.7); callers treat a non-nil error
// as "stop here, keep what was already decoded" rather than fatal.
func Decode(r io.Reader) (*Blob, error) {
	blob := NewBlob()
	for {
		var hdr [5]byte
		_, err := io.ReadFull(r, hdr[:])
		if err == io.EOF {
			return blob, nil
		}
		if err != nil {
			return blob, errors.Wrap(ErrBadMetadata, err.Error())
		}
		tag := Tag(hdr[0:4])
		typ := Type(hdr[4])

		var size [3]byte
		if _, err := io.ReadFull(r, size[:]); err != nil {
			return blob, errors.Wrap(ErrBadMetadata, err.Error())
		}
		n := int(size[0])<<16 | int(size[1])<<8 | int(size[2])

		payload := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(r, payload); err != nil {
				return blob, errors.Wrap(ErrBadMetadata, err.Error())
			}
		}
		blob.Set(Tuple{Tag: tag, Type: typ, Value: payload})
	}
}
