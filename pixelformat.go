package cineform

// Pixel packers (spec section 4.1): pure functions converting one row of
// an externally-formatted pixel buffer into three (or four, with alpha)
// planar 16-bit channel rows, and back. No color conversion happens
// here; 8-bit components are left-shifted by 8, 10-bit by 6, and 16-bit
// components are copied as-is.
//
// The closed-tag-dispatch shape (a PixelFormat enum selecting a row-pitch
// formula and a component layout) is grounded on the teacher's Format
// enum and per-format handling in jpeg2000.go (github.com/mrjoshuak/go-jpeg2000),
// generalized here from JP2/J2K container formats to CineForm's pixel
// layouts.

import "github.com/pkg/errors"

// PixelFormat is a closed four-character pixel layout tag.
type PixelFormat string

const (
	PixelFormat2vuy PixelFormat = "2vuy" // UYVY 4:2:2, 8-bit
	PixelFormatYUY2 PixelFormat = "YUY2" // YUYV 4:2:2, 8-bit
	PixelFormatV210 PixelFormat = "v210" // 10-bit 4:2:2, 6 pixels per 16 bytes
	PixelFormatR210 PixelFormat = "r210" // 10-bit RGB, big-endian 32-bit word
	PixelFormatDPX0 PixelFormat = "DPX0" // 10-bit RGB, big-endian 32-bit word
	PixelFormatAR10 PixelFormat = "AR10" // 10-bit RGB + alpha, little-endian
	PixelFormatAB10 PixelFormat = "AB10" // 10-bit BGR + alpha, little-endian
	PixelFormatRG30 PixelFormat = "RG30" // 10-bit RGB, little-endian 32-bit word
	PixelFormatYU64 PixelFormat = "YU64" // 16-bit 4:2:2
	PixelFormatBYR2 PixelFormat = "BYR2" // planar 16-bit Bayer, 8-bit source
	PixelFormatBYR4 PixelFormat = "BYR4" // planar 16-bit Bayer, 16-bit source
	PixelFormatB64A PixelFormat = "b64a" // 16-bit ARGB, big-endian
	PixelFormatBGRA PixelFormat = "BGRA" // 8-bit BGRA, bottom-up
	PixelFormatBGRa PixelFormat = "BGRa" // 8-bit BGRA, top-down
	PixelFormatRGBA PixelFormat = "RGBA" // 8-bit RGBA, top-down
	PixelFormatRG48 PixelFormat = "RG48" // 16-bit RGB
	PixelFormatWP13 PixelFormat = "WP13" // 13-bit-in-16 RGB
	PixelFormatW13A PixelFormat = "W13A" // 13-bit-in-16 RGBA
)

// ErrUnsupportedPixelFormat is returned by Unpack/Pack for a tag not in
// the closed set above.
var ErrUnsupportedPixelFormat = errors.New("cineform: unsupported pixel format")

// FormatInfo describes the static properties of a pixel format.
type FormatInfo struct {
	Channels  int
	BitDepth  int
	HasAlpha  bool
	BottomUp  bool
	Name      string
}

var formatInfo = map[PixelFormat]FormatInfo{
	PixelFormat2vuy: {3, 8, false, false, "2vuy"},
	PixelFormatYUY2: {3, 8, false, false, "YUY2"},
	PixelFormatV210: {3, 10, false, false, "v210"},
	PixelFormatR210: {3, 10, false, false, "r210"},
	PixelFormatDPX0: {3, 10, false, false, "DPX0"},
	PixelFormatAR10: {4, 10, true, false, "AR10"},
	PixelFormatAB10: {4, 10, true, false, "AB10"},
	PixelFormatRG30: {3, 10, false, false, "RG30"},
	PixelFormatYU64: {3, 16, false, false, "YU64"},
	PixelFormatBYR2: {4, 8, false, false, "BYR2"},
	PixelFormatBYR4: {4, 16, false, false, "BYR4"},
	PixelFormatB64A: {4, 16, true, false, "b64a"},
	PixelFormatBGRA: {4, 8, true, true, "BGRA"},
	PixelFormatBGRa: {4, 8, true, false, "BGRa"},
	PixelFormatRGBA: {4, 8, true, false, "RGBA"},
	PixelFormatRG48: {3, 16, false, false, "RG48"},
	PixelFormatWP13: {3, 13, false, false, "WP13"},
	PixelFormatW13A: {4, 13, true, false, "W13A"},
}

// Info returns the static properties of a pixel format, or an error if it
// is not in the closed set.
func Info(pf PixelFormat) (FormatInfo, error) {
	fi, ok := formatInfo[pf]
	if !ok {
		return FormatInfo{}, errors.Wrapf(ErrUnsupportedPixelFormat, "%q", pf)
	}
	return fi, nil
}

// Row holds up to four planar 16-bit channel rows unpacked from one row
// of external pixel data. Unused channels have length 0.
type Row struct {
	C0, C1, C2, C3 []int16
}

// Unpack converts one row of width pixels of the given external pixel
// format into planar 16-bit channel rows. width must be positive.
func Unpack(pf PixelFormat, width int, src []byte) (Row, error) {
	if width <= 0 {
		return Row{}, errors.New("cineform: width must be positive")
	}
	switch pf {
	case PixelFormat2vuy, PixelFormatYUY2:
		return unpack422_8(pf, width, src)
	case PixelFormatYU64:
		return unpack422_16(width, src)
	case PixelFormatV210:
		return unpackV210(width, src)
	case PixelFormatR210:
		return unpackBE32_10(width, src, [3]int{29, 19, 9})
	case PixelFormatDPX0:
		return unpackBE32_10(width, src, [3]int{31, 21, 11})
	case PixelFormatRG30:
		return unpackLE32_10(width, src, [3]int{9, 19, 29}) // R,G,B
	case PixelFormatAR10:
		return unpackLE32_10A(width, src, [3]int{9, 19, 29})
	case PixelFormatAB10:
		return unpackLE32_10A(width, src, [3]int{29, 19, 9})
	case PixelFormatB64A:
		return unpackB64A(width, src)
	case PixelFormatBGRA, PixelFormatBGRa:
		return unpack8(width, src, [4]int{2, 1, 0, 3}, true)
	case PixelFormatRGBA:
		return unpack8(width, src, [4]int{0, 1, 2, 3}, true)
	case PixelFormatRG48:
		return unpack16(width, src, 3, false)
	case PixelFormatBYR4:
		return unpack16(width, src, 4, false)
	case PixelFormatBYR2:
		return unpack8(width, src, [4]int{0, 1, 2, 3}, false)
	case PixelFormatWP13:
		return unpack16shift(width, src, 3, false, 3)
	case PixelFormatW13A:
		return unpack16shift(width, src, 4, true, 3)
	default:
		return Row{}, errors.Wrapf(ErrUnsupportedPixelFormat, "%q", pf)
	}
}

func unpack422_8(pf PixelFormat, width int, src []byte) (Row, error) {
	half := (width + 1) / 2
	y := make([]int16, width)
	u := make([]int16, half)
	v := make([]int16, half)
	// 2vuy = UYVY, YUY2 = YUYV.
	yOff, uOff, vOff := 1, 0, 2
	if pf == PixelFormatYUY2 {
		yOff, uOff, vOff = 0, 1, 3
	}
	for i := 0; i < half; i++ {
		base := i * 4
		if base+3 >= len(src) {
			break
		}
		u[i] = int16(src[base+uOff]) << 8
		v[i] = int16(src[base+vOff]) << 8
		y[2*i] = int16(src[base+yOff]) << 8
		if 2*i+1 < width {
			y[2*i+1] = int16(src[base+yOff+2]) << 8
		}
	}
	return Row{C0: y, C1: u, C2: v}, nil
}

func unpack422_16(width int, src []byte) (Row, error) {
	half := (width + 1) / 2
	y := make([]int16, width)
	u := make([]int16, half)
	v := make([]int16, half)
	for i := 0; i < half; i++ {
		base := i * 8
		if base+7 >= len(src) {
			break
		}
		u[i] = be16(src[base:])
		y[2*i] = be16(src[base+2:])
		v[i] = be16(src[base+4:])
		if 2*i+1 < width {
			y[2*i+1] = be16(src[base+6:])
		}
	}
	return Row{C0: y, C1: u, C2: v}, nil
}

func be16(b []byte) int16 {
	return int16(uint16(b[0])<<8 | uint16(b[1]))
}

// unpackV210 unpacks v210's six-pixels-per-16-bytes little-endian 10-bit
// packing into 4:2:2 planar rows.
func unpackV210(width int, src []byte) (Row, error) {
	half := (width + 1) / 2
	y := make([]int16, width)
	u := make([]int16, half)
	v := make([]int16, half)

	groupsOf6 := (width + 5) / 6
	yi, ci := 0, 0
	for g := 0; g < groupsOf6; g++ {
		base := g * 16
		if base+15 >= len(src) {
			break
		}
		words := [4]uint32{
			le32(src[base:]),
			le32(src[base+4:]),
			le32(src[base+8:]),
			le32(src[base+12:]),
		}
		// Each word packs three 10-bit components at bits 9:0, 19:10, 29:20
		// in the repeating order U Y V Y U Y V Y ... across the group.
		comps := make([]int32, 0, 12)
		for _, w := range words {
			comps = append(comps, int32(w&0x3FF), int32((w>>10)&0x3FF), int32((w>>20)&0x3FF))
		}
		// comps = [U0 Y0 V0  Y1 U1 Y2  V1 Y3 U2  Y4 V2 Y5]
		for _, s := range v210Seq {
			if len(comps) == 0 {
				break
			}
			val := int16(comps[0] << 6)
			comps = comps[1:]
			if s.isY {
				if yi < width {
					y[yi] = val
					yi++
				}
			} else if s.plane == 0 {
				if ci < half {
					u[ci] = val
				}
			} else {
				if ci < half {
					v[ci] = val
					ci++
				}
			}
		}
	}
	return Row{C0: y, C1: u, C2: v}, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// unpackBE32_10 unpacks a big-endian 32-bit 10-bit-per-component RGB
// format; bitPos gives the low bit of R, G, B in that order.
func unpackBE32_10(width int, src []byte, bitPos [3]int) (Row, error) {
	r := make([]int16, width)
	g := make([]int16, width)
	b := make([]int16, width)
	for i := 0; i < width; i++ {
		base := i * 4
		if base+3 >= len(src) {
			break
		}
		w := uint32(src[base])<<24 | uint32(src[base+1])<<16 | uint32(src[base+2])<<8 | uint32(src[base+3])
		r[i] = int16(((w >> uint(bitPos[0])) & 0x3FF) << 6)
		g[i] = int16(((w >> uint(bitPos[1])) & 0x3FF) << 6)
		b[i] = int16(((w >> uint(bitPos[2])) & 0x3FF) << 6)
	}
	return Row{C0: r, C1: g, C2: b}, nil
}

// unpackLE32_10 unpacks a little-endian 32-bit 10-bit-per-component RGB
// format (RG30); bitPos gives the low bit of R, G, B.
func unpackLE32_10(width int, src []byte, bitPos [3]int) (Row, error) {
	r := make([]int16, width)
	g := make([]int16, width)
	b := make([]int16, width)
	for i := 0; i < width; i++ {
		base := i * 4
		if base+3 >= len(src) {
			break
		}
		w := le32(src[base:])
		r[i] = int16(((w >> uint(bitPos[0])) & 0x3FF) << 6)
		g[i] = int16(((w >> uint(bitPos[1])) & 0x3FF) << 6)
		b[i] = int16(((w >> uint(bitPos[2])) & 0x3FF) << 6)
	}
	return Row{C0: r, C1: g, C2: b}, nil
}

// unpackLE32_10A unpacks AR10/AB10: the same 10-bit packing as RG30 but
// with two high alpha bits carried separately at bits 31:30.
func unpackLE32_10A(width int, src []byte, bitPos [3]int) (Row, error) {
	r := make([]int16, width)
	g := make([]int16, width)
	b := make([]int16, width)
	a := make([]int16, width)
	for i := 0; i < width; i++ {
		base := i * 4
		if base+3 >= len(src) {
			break
		}
		w := le32(src[base:])
		r[i] = int16(((w >> uint(bitPos[0])) & 0x3FF) << 6)
		g[i] = int16(((w >> uint(bitPos[1])) & 0x3FF) << 6)
		b[i] = int16(((w >> uint(bitPos[2])) & 0x3FF) << 6)
		a[i] = int16(((w >> 30) & 0x3) << 14)
	}
	return Row{C0: r, C1: g, C2: b, C3: a}, nil
}

func unpackB64A(width int, src []byte) (Row, error) {
	a := make([]int16, width)
	r := make([]int16, width)
	g := make([]int16, width)
	b := make([]int16, width)
	for i := 0; i < width; i++ {
		base := i * 8
		if base+7 >= len(src) {
			break
		}
		a[i] = be16(src[base:])
		r[i] = be16(src[base+2:])
		g[i] = be16(src[base+4:])
		b[i] = be16(src[base+6:])
	}
	return Row{C0: r, C1: g, C2: b, C3: a}, nil
}

// unpack8 unpacks an 8-bit-per-component chunky format, left-shifted by
// 8. order gives the byte offset of each of up to 4 channels per pixel;
// the unused 4th slot is ignored when hasAlpha is false.
func unpack8(width int, src []byte, order [4]int, hasAlpha bool) (Row, error) {
	stride := 3
	if hasAlpha {
		stride = 4
	}
	c0 := make([]int16, width)
	c1 := make([]int16, width)
	c2 := make([]int16, width)
	var c3 []int16
	if hasAlpha {
		c3 = make([]int16, width)
	}
	for i := 0; i < width; i++ {
		base := i * stride
		if base+stride-1 >= len(src) {
			break
		}
		c0[i] = int16(src[base+order[0]]) << 8
		c1[i] = int16(src[base+order[1]]) << 8
		c2[i] = int16(src[base+order[2]]) << 8
		if hasAlpha {
			c3[i] = int16(src[base+order[3]]) << 8
		}
	}
	return Row{C0: c0, C1: c1, C2: c2, C3: c3}, nil
}

// unpack16 unpacks a 16-bit-per-component chunky format, copied as-is.
func unpack16(width int, src []byte, channels int, hasAlpha bool) (Row, error) {
	rows := make([][]int16, channels)
	for c := range rows {
		rows[c] = make([]int16, width)
	}
	for i := 0; i < width; i++ {
		for c := 0; c < channels; c++ {
			base := (i*channels + c) * 2
			if base+1 >= len(src) {
				continue
			}
			rows[c][i] = be16(src[base:])
		}
	}
	r := Row{C0: rows[0], C1: rows[1], C2: rows[2]}
	if channels > 3 {
		r.C3 = rows[3]
	}
	return r, nil
}

// unpack16shift unpacks a packed-precision 16-bit format (WP13/W13A),
// whose words carry 13 significant bits with 3 bits of headroom, by
// left-shifting each component to the full 16-bit range the same way a
// 10-bit source is shifted by 6.
func unpack16shift(width int, src []byte, channels int, hasAlpha bool, headroomBits int) (Row, error) {
	r, err := unpack16(width, src, channels, hasAlpha)
	if err != nil {
		return r, err
	}
	shiftRow := func(row []int16) {
		for i := range row {
			row[i] = int16(int32(row[i]) << uint(headroomBits))
		}
	}
	shiftRow(r.C0)
	shiftRow(r.C1)
	shiftRow(r.C2)
	shiftRow(r.C3)
	return r, nil
}

// Pack is the inverse of Unpack: it serializes planar 16-bit channel
// rows back into one row of external pixel data in the given format.
// Pack(pf, width, Unpack(pf, width, src)) must reproduce src exactly for
// every lossless format, per spec 8's round-trip invariant; for 10-bit
// formats the two low padding bits must come back zero.
func Pack(pf PixelFormat, width int, row Row) ([]byte, error) {
	switch pf {
	case PixelFormat2vuy, PixelFormatYUY2:
		return pack422_8(pf, width, row), nil
	case PixelFormatYU64:
		return pack422_16(width, row), nil
	case PixelFormatV210:
		return packV210(width, row), nil
	case PixelFormatR210:
		return packBE32_10(width, row, [3]int{29, 19, 9}), nil
	case PixelFormatDPX0:
		return packBE32_10(width, row, [3]int{31, 21, 11}), nil
	case PixelFormatRG30:
		return packLE32_10(width, row, [3]int{9, 19, 29}), nil
	case PixelFormatAR10:
		return packLE32_10A(width, row, [3]int{9, 19, 29}), nil
	case PixelFormatAB10:
		return packLE32_10A(width, row, [3]int{29, 19, 9}), nil
	case PixelFormatB64A:
		return packB64A(width, row), nil
	case PixelFormatBGRA, PixelFormatBGRa:
		return pack8(width, row, [4]int{2, 1, 0, 3}, true), nil
	case PixelFormatRGBA:
		return pack8(width, row, [4]int{0, 1, 2, 3}, true), nil
	case PixelFormatRG48:
		return pack16(width, row, 3), nil
	case PixelFormatBYR4:
		return pack16(width, row, 4), nil
	case PixelFormatBYR2:
		return pack8(width, row, [4]int{0, 1, 2, 3}, false), nil
	case PixelFormatWP13:
		return packWithShift(width, row, 3, 3), nil
	case PixelFormatW13A:
		return packWithShift(width, row, 4, 3), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedPixelFormat, "%q", pf)
	}
}

func putBE16(b []byte, v int16) {
	b[0] = byte(uint16(v) >> 8)
	b[1] = byte(uint16(v))
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func pack422_8(pf PixelFormat, width int, row Row) []byte {
	half := (width + 1) / 2
	out := make([]byte, half*4)
	yOff, uOff, vOff := 1, 0, 2
	if pf == PixelFormatYUY2 {
		yOff, uOff, vOff = 0, 1, 3
	}
	for i := 0; i < half; i++ {
		base := i * 4
		out[base+uOff] = byte(uint16(row.C1[i]) >> 8)
		out[base+vOff] = byte(uint16(row.C2[i]) >> 8)
		out[base+yOff] = byte(uint16(row.C0[2*i]) >> 8)
		if 2*i+1 < width {
			out[base+yOff+2] = byte(uint16(row.C0[2*i+1]) >> 8)
		}
	}
	return out
}

func pack422_16(width int, row Row) []byte {
	half := (width + 1) / 2
	out := make([]byte, half*8)
	for i := 0; i < half; i++ {
		base := i * 8
		putBE16(out[base:], row.C1[i])
		putBE16(out[base+2:], row.C0[2*i])
		putBE16(out[base+4:], row.C2[i])
		if 2*i+1 < width {
			putBE16(out[base+6:], row.C0[2*i+1])
		}
	}
	return out
}

// v210Seq describes, in wire order, which plane each of the 12 10-bit
// component slots in one v210 group belongs to: U, Y, or V. isY selects
// the luma plane (consuming one sample from y per slot); otherwise plane
// selects chroma (0=U, 1=V), with U/V slots sharing one sample per pair
// of luma samples. Shared between unpackV210 and packV210 so the two
// can never drift out of sync.
var v210Seq = []struct {
	isY   bool
	plane int
}{{false, 0}, {true, -1}, {false, 1}, {true, -1}, {false, 0}, {true, -1},
	{false, 1}, {true, -1}, {false, 0}, {true, -1}, {false, 1}, {true, -1}}

// packV210 is the inverse of unpackV210: it re-quantizes each 16-bit
// channel sample back to 10 bits (dropping the 6 low bits an unpack
// shifted in) and re-packs six pixels per 16-byte group.
func packV210(width int, row Row) []byte {
	groupsOf6 := (width + 5) / 6
	out := make([]byte, groupsOf6*16)
	yi, ci := 0, 0
	quant := func(v int16) uint32 {
		return uint32(uint16(v)>>6) & 0x3FF
	}
	for g := 0; g < groupsOf6; g++ {
		base := g * 16
		comps := make([]uint32, 0, 12)
		for _, s := range v210Seq {
			switch {
			case s.isY:
				var v int16
				if yi < len(row.C0) {
					v = row.C0[yi]
				}
				yi++
				comps = append(comps, quant(v))
			case s.plane == 0:
				var v int16
				if ci < len(row.C1) {
					v = row.C1[ci]
				}
				comps = append(comps, quant(v))
			default:
				var v int16
				if ci < len(row.C2) {
					v = row.C2[ci]
				}
				ci++
				comps = append(comps, quant(v))
			}
		}
		for w := 0; w < 4; w++ {
			word := comps[w*3] | comps[w*3+1]<<10 | comps[w*3+2]<<20
			putLE32(out[base+w*4:], word)
		}
	}
	return out
}

func packBE32_10(width int, row Row, bitPos [3]int) []byte {
	out := make([]byte, width*4)
	for i := 0; i < width; i++ {
		base := i * 4
		r := uint32(uint16(row.C0[i])>>6) & 0x3FF
		g := uint32(uint16(row.C1[i])>>6) & 0x3FF
		b := uint32(uint16(row.C2[i])>>6) & 0x3FF
		word := r<<uint(bitPos[0]) | g<<uint(bitPos[1]) | b<<uint(bitPos[2])
		out[base] = byte(word >> 24)
		out[base+1] = byte(word >> 16)
		out[base+2] = byte(word >> 8)
		out[base+3] = byte(word)
	}
	return out
}

func packLE32_10(width int, row Row, bitPos [3]int) []byte {
	out := make([]byte, width*4)
	for i := 0; i < width; i++ {
		r := uint32(uint16(row.C0[i])>>6) & 0x3FF
		g := uint32(uint16(row.C1[i])>>6) & 0x3FF
		b := uint32(uint16(row.C2[i])>>6) & 0x3FF
		word := r<<uint(bitPos[0]) | g<<uint(bitPos[1]) | b<<uint(bitPos[2])
		putLE32(out[i*4:], word)
	}
	return out
}

func packLE32_10A(width int, row Row, bitPos [3]int) []byte {
	out := make([]byte, width*4)
	for i := 0; i < width; i++ {
		r := uint32(uint16(row.C0[i])>>6) & 0x3FF
		g := uint32(uint16(row.C1[i])>>6) & 0x3FF
		b := uint32(uint16(row.C2[i])>>6) & 0x3FF
		a := uint32(uint16(row.C3[i]) >> 14 & 0x3)
		word := r<<uint(bitPos[0]) | g<<uint(bitPos[1]) | b<<uint(bitPos[2]) | a<<30
		putLE32(out[i*4:], word)
	}
	return out
}

func packB64A(width int, row Row) []byte {
	out := make([]byte, width*8)
	for i := 0; i < width; i++ {
		base := i * 8
		putBE16(out[base:], row.C3[i])
		putBE16(out[base+2:], row.C0[i])
		putBE16(out[base+4:], row.C1[i])
		putBE16(out[base+6:], row.C2[i])
	}
	return out
}

func pack8(width int, row Row, order [4]int, hasAlpha bool) []byte {
	stride := 3
	if hasAlpha {
		stride = 4
	}
	out := make([]byte, width*stride)
	for i := 0; i < width; i++ {
		base := i * stride
		out[base+order[0]] = byte(uint16(row.C0[i]) >> 8)
		out[base+order[1]] = byte(uint16(row.C1[i]) >> 8)
		out[base+order[2]] = byte(uint16(row.C2[i]) >> 8)
		if hasAlpha {
			out[base+order[3]] = byte(uint16(row.C3[i]) >> 8)
		}
	}
	return out
}

func pack16(width int, row Row, channels int) []byte {
	out := make([]byte, width*channels*2)
	rows := [][]int16{row.C0, row.C1, row.C2, row.C3}
	for i := 0; i < width; i++ {
		for c := 0; c < channels; c++ {
			putBE16(out[(i*channels+c)*2:], rows[c][i])
		}
	}
	return out
}

// packWithShift is the inverse of unpack16shift: it right-shifts each
// channel back down to its packed headroom before writing 16-bit words.
func packWithShift(width int, row Row, channels, headroomBits int) []byte {
	rows := [][]int16{row.C0, row.C1, row.C2, row.C3}
	shifted := make([][]int16, channels)
	for c := 0; c < channels; c++ {
		shifted[c] = make([]int16, width)
		for i := 0; i < width; i++ {
			shifted[c][i] = int16(int32(rows[c][i]) >> uint(headroomBits))
		}
	}
	r := Row{C0: shifted[0], C1: shifted[1]}
	if channels > 2 {
		r.C2 = shifted[2]
	}
	if channels > 3 {
		r.C3 = shifted[3]
	}
	return pack16(width, r, channels)
}
