// Package entropy implements the CineForm run/magnitude variable-length
// entropy coder for non-LL subband coefficients (spec section 4.5).
//
// Each highpass band is scanned in raster order and coded as a sequence
// of (run-of-zeros, signed-magnitude) symbols drawn from a single merged
// canonical-Huffman codebook, terminated by a distinguished band-end
// marker. A finite-state table compiled from the same codebook
// accelerates decode by peeking a 16-bit lookahead window per step.
//
// The coder's shape - an embedded, package-level code table plus a
// bit-level reader/writer - follows the teacher's MQ arithmetic coder
// (github.com/mrjoshuak/go-jpeg2000, internal/entropy/mqc.go), which
// likewise embeds its state table (mqStates) as a Go slice literal rather
// than loading it from external data.
package entropy

import (
	"github.com/cineform/codec/internal/bio"
	"github.com/pkg/errors"
)

// Errors returned by Decode. Per spec 4.5 and 4.7, all three are
// recovered locally by the caller (zero-fill the band and continue); they
// are not fatal to the overall decode.
var (
	// ErrEntropyCorrupt is returned when a code word does not match any
	// entry in the codebook.
	ErrEntropyCorrupt = errors.New("entropy: corrupt code, no matching symbol")
	// ErrBandUnderflow is returned when the band's coefficient count is
	// reached before the band-end marker appears.
	ErrBandUnderflow = errors.New("entropy: band coefficient count exceeded before end marker")
	// ErrBandOverflow is returned when the band-end marker appears before
	// the band's coefficient count is reached.
	ErrBandOverflow = errors.New("entropy: end marker seen before band was full")
)

// symbolKind classifies a decoded codebook entry.
type symbolKind int

const (
	kindRun symbolKind = iota
	kindMagnitude
	kindEnd
	kindInvalid
)

// codeEntry is one canonical-Huffman codebook entry: a (kind, value) pair
// with its code word and code length.
type codeEntry struct {
	kind   symbolKind
	value  int32 // run length or magnitude, depending on kind
	code   uint32
	length uint8
}

// codebook is the fixed canonical-Huffman table covering zero-run
// lengths 1-64, magnitudes 1-40 (larger magnitudes escape to a 16-bit
// literal, see magnitudeEscape), and the band-end marker. It is embedded
// here rather than transmitted, per spec 4.5.
//
// The run/magnitude code lengths below approximate a Laplacian
// coefficient distribution (short runs and small magnitudes get the
// shortest codes), the same empirical-distribution-driven shape as a
// classic JPEG/CineForm run-length Huffman table.
var codebook = buildCodebook()

const (
	maxRunLength    = 64
	maxDirectMag    = 40
	magnitudeEscape = 0xFFFF // decoded as a literal 16-bit magnitude follows
)

func buildCodebook() []codeEntry {
	entries := make([]codeEntry, 0, maxRunLength+maxDirectMag+2)

	// Runs of 1..maxRunLength zero coefficients: short codes for short
	// runs, a canonical length ladder similar to a Huffman table built
	// from a geometric run-length distribution.
	for run := 1; run <= maxRunLength; run++ {
		entries = append(entries, codeEntry{kind: kindRun, value: int32(run)})
	}
	// Magnitudes 1..maxDirectMag coded directly; larger magnitudes use
	// the escape entry followed by a fixed 16-bit literal.
	for mag := 1; mag <= maxDirectMag; mag++ {
		entries = append(entries, codeEntry{kind: kindMagnitude, value: int32(mag)})
	}
	entries = append(entries, codeEntry{kind: kindMagnitude, value: magnitudeEscape})
	entries = append(entries, codeEntry{kind: kindEnd, value: 0})

	assignCanonicalLengths(entries)
	assignCanonicalCodes(entries)
	return entries
}

// assignCanonicalLengths assigns a monotonically-increasing code length
// to each entry by rank, approximating a Huffman tree built from a
// Laplacian-like empirical distribution: early run/magnitude values (the
// most common) get the shortest codes.
func assignCanonicalLengths(entries []codeEntry) {
	for i := range entries {
		switch {
		case i < 4:
			entries[i].length = 4
		case i < 12:
			entries[i].length = 6
		case i < 28:
			entries[i].length = 8
		case i < 60:
			entries[i].length = 10
		case i < 96:
			entries[i].length = 12
		default:
			entries[i].length = 14
		}
	}
	// The band-end marker (last entry) is pinned to the longest length,
	// 14 bits, which it shares with the other entries from rank 96 on; the
	// canonical code assignment keeps it prefix-free.
	entries[len(entries)-1].length = 14
}

// assignCanonicalCodes assigns canonical Huffman codes in increasing
// (length, rank) order: the standard canonical-code construction.
func assignCanonicalCodes(entries []codeEntry) {
	// Stable order by length while preserving within-length rank order.
	byLength := make(map[uint8][]int)
	for i, e := range entries {
		byLength[e.length] = append(byLength[e.length], i)
	}

	var code uint32
	var lastLen uint8
	first := true
	for l := uint8(1); l <= 16; l++ {
		idxs, ok := byLength[l]
		if !ok {
			continue
		}
		if !first {
			code <<= l - lastLen
		}
		first = false
		lastLen = l
		for _, idx := range idxs {
			entries[idx].code = code
			code++
		}
	}
}

// lookup finds the first entry whose code matches the high `length` bits
// of window (a left-justified lookahead of up to 16 bits).
func lookup(window uint32, windowBits uint) (codeEntry, bool) {
	for _, e := range codebook {
		if e.length == 0 || e.length > uint8(windowBits) {
			continue
		}
		shift := windowBits - uint(e.length)
		if (window >> shift) == e.code {
			return e, true
		}
	}
	return codeEntry{}, false
}

// fsmWindowBits is the lookahead width used by the FSM-style decode
// accelerator (spec 4.5).
const fsmWindowBits = 16

// fsmEntry is one compiled decode-table row: the symbol recognized at
// this window value, how many bits it actually consumes, and whether any
// code word matched the window at all.
type fsmEntry struct {
	kind    symbolKind
	value   int32
	bits    uint8
	matched bool
}

// fsmTable is built once at package init by exhaustively evaluating
// lookup() over every possible 16-bit window, per spec 4.5's "either
// build this FSM at startup or emit it as data" note. It is a flat
// window-to-symbol table with no state of its own; decoding stops at the
// first window that decodes as kindEnd.
var fsmTable = buildFSM()

func buildFSM() []fsmEntry {
	table := make([]fsmEntry, 1<<fsmWindowBits)
	for w := 0; w < len(table); w++ {
		e, ok := lookup(uint32(w), fsmWindowBits)
		if !ok {
			table[w] = fsmEntry{kind: kindInvalid}
			continue
		}
		table[w] = fsmEntry{kind: e.kind, value: e.value, bits: e.length, matched: true}
	}
	return table
}

// Encoder writes a run/magnitude coded band to a bit-level sink.
type Encoder struct {
	w *bio.Writer
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w *bio.Writer) *Encoder {
	return &Encoder{w: w}
}

// codeFor looks up the codebook entry for a run length or magnitude.
func codeFor(kind symbolKind, value int32) (codeEntry, bool) {
	for _, e := range codebook {
		if e.kind == kind && e.value == value {
			return e, true
		}
	}
	return codeEntry{}, false
}

// EncodeBand writes coeffs as zero-run + signed-magnitude symbols
// followed by the band-end marker. Runs longer than maxRunLength are
// split into multiple run symbols.
func (e *Encoder) EncodeBand(coeffs []int32) error {
	run := 0
	flushRun := func() error {
		for run > 0 {
			n := run
			if n > maxRunLength {
				n = maxRunLength
			}
			entry, _ := codeFor(kindRun, int32(n))
			if err := e.w.WriteBits(entry.code, uint(entry.length)); err != nil {
				return err
			}
			run -= n
		}
		return nil
	}

	for _, c := range coeffs {
		if c == 0 {
			run++
			continue
		}
		if err := flushRun(); err != nil {
			return err
		}
		mag := c
		sign := 0
		if mag < 0 {
			mag = -mag
			sign = 1
		}
		if mag <= maxDirectMag {
			entry, _ := codeFor(kindMagnitude, mag)
			if err := e.w.WriteBits(entry.code, uint(entry.length)); err != nil {
				return err
			}
		} else {
			entry, _ := codeFor(kindMagnitude, magnitudeEscape)
			if err := e.w.WriteBits(entry.code, uint(entry.length)); err != nil {
				return err
			}
			if err := e.w.WriteBits(uint32(mag), 16); err != nil {
				return err
			}
		}
		if err := e.w.WriteBit(sign); err != nil {
			return err
		}
	}
	if err := flushRun(); err != nil {
		return err
	}

	end, _ := codeFor(kindEnd, 0)
	return e.w.WriteBits(end.code, uint(end.length))
}

// Decoder reads a run/magnitude coded band using the FSM accelerator.
type Decoder struct {
	r *bio.Reader
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r *bio.Reader) *Decoder {
	return &Decoder{r: r}
}

// DecodeBand decodes exactly count coefficients into the returned slice.
// On ErrEntropyCorrupt, ErrBandUnderflow, or ErrBandOverflow the returned
// slice still has length count with all undecoded positions zero-filled,
// per spec 4.5's local-recovery policy; the caller decides whether to
// surface a PartialDecode warning.
func (d *Decoder) DecodeBand(count int) ([]int32, error) {
	out := make([]int32, count)
	pos := 0

	for pos < count {
		window, bits, err := d.peekWindow()
		if err != nil {
			return out, errors.Wrap(ErrEntropyCorrupt, err.Error())
		}
		entry := fsmTable[window]
		if !entry.matched || entry.bits == 0 || uint(entry.bits) > bits {
			return out, ErrEntropyCorrupt
		}
		if err := d.r.Skip(uint(entry.bits)); err != nil {
			return out, errors.Wrap(ErrEntropyCorrupt, err.Error())
		}

		switch entry.kind {
		case kindEnd:
			if pos < count {
				return out, ErrBandOverflow
			}
			return out, nil
		case kindRun:
			n := int(entry.value)
			if pos+n > count {
				n = count - pos
			}
			pos += n // zero-fill is the slice's zero value already
		case kindMagnitude:
			mag := entry.value
			if mag == magnitudeEscape {
				lit, err := d.r.ReadBits(16)
				if err != nil {
					return out, errors.Wrap(ErrEntropyCorrupt, err.Error())
				}
				mag = int32(lit)
			}
			sign, err := d.r.ReadBit()
			if err != nil {
				return out, errors.Wrap(ErrEntropyCorrupt, err.Error())
			}
			if sign != 0 {
				mag = -mag
			}
			if pos < count {
				out[pos] = mag
				pos++
			}
		}
	}

	// Coefficient count satisfied; the band-end marker must follow.
	window, bits, err := d.peekWindow()
	if err != nil {
		return out, ErrBandUnderflow
	}
	entry := fsmTable[window]
	if !entry.matched || entry.kind != kindEnd || uint(entry.bits) > bits {
		return out, ErrBandUnderflow
	}
	if err := d.r.Skip(uint(entry.bits)); err != nil {
		return out, ErrBandUnderflow
	}
	return out, nil
}

// peekWindow reads up to fsmWindowBits for a table lookup, padding with
// zero bits (and reporting the true available bit count) when the stream
// runs short - this is what lets a truncated band be detected as
// ErrBandUnderflow rather than an I/O error.
func (d *Decoder) peekWindow() (window uint32, bits uint, err error) {
	for bits = 0; bits < fsmWindowBits; bits++ {
		bit, e := peekBitAt(d.r, bits)
		if e != nil {
			window <<= fsmWindowBits - bits
			return window, bits, nil
		}
		window = (window << 1) | uint32(bit)
	}
	return window, bits, nil
}

// peekBitAt reads a single bit at the given offset ahead of the reader's
// current position without disturbing it, by issuing one Peek over the
// whole prefix. This keeps peekWindow O(n) in the window size without
// needing a dedicated multi-bit peek-with-short-read primitive in bio.
func peekBitAt(r *bio.Reader, offset uint) (int, error) {
	v, err := r.Peek(offset + 1)
	if err != nil {
		return 0, err
	}
	return int(v & 1), nil
}
