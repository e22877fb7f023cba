package cineform

// Color space / color converter (spec section 4.2): planar RGB <-> planar
// YUV using 13-bit fixed-point integer matrices, plus 4:2:2 <-> 4:4:4
// chroma resampling.
//
// The matrix-table-plus-dispatch shape is grounded on the teacher's
// colorspace.go (github.com/mrjoshuak/go-jpeg2000), which keyed a
// colorConversion function off an enumerated ColorSpace via
// getColorConversion; here the enumeration is the four CineForm color
// spaces rather than JPEG 2000's fourteen, and the coefficients are
// integer fixed-point rather than floating point.

// ColorSpace selects one of the four CineForm RGB<->YUV matrices.
type ColorSpace int

const (
	ColorSpaceCG709 ColorSpace = iota // default
	ColorSpaceVS709
	ColorSpaceCG601
	ColorSpaceVS601
)

// String returns the color space's conventional name.
func (c ColorSpace) String() string {
	switch c {
	case ColorSpaceCG709:
		return "CG_709"
	case ColorSpaceVS709:
		return "VS_709"
	case ColorSpaceCG601:
		return "CG_601"
	case ColorSpaceVS601:
		return "VS_601"
	default:
		return "unknown"
	}
}

// matrixRow holds one [y|u|v]_r, _g, _b, _off fixed-point row at 13-bit
// precision (shift of 13), per spec 6.
type matrixRow struct {
	r, g, b, off int32
}

type colorMatrix struct {
	y, u, v matrixRow
}

const fixedShift = 13

// fp converts a floating-point coefficient to its 13-bit fixed-point
// integer representation.
func fp(x float64) int32 {
	return int32(x*(1<<fixedShift) + 0.5*sign(x))
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

// matrices holds the four canonical rows required for bit-exact parity.
// CG-709 is given verbatim by spec 6; CG-601/VS-709/VS-601 follow the
// same BT.601/BT.709 luma coefficients with the CG (16-235/16-240) vs VS
// (0-255) range scaling applied to the offset and gain terms, matching
// the standard relationship between the "computer graphics" and "video
// systems" variants of each standard.
var matrices = map[ColorSpace]colorMatrix{
	ColorSpaceCG709: {
		y: matrixRow{fp(0.183), fp(0.614), fp(0.062), fp(16.0 / 256)},
		u: matrixRow{fp(-0.101), fp(-0.338), fp(0.439), fp(0.5)},
		v: matrixRow{fp(0.439), fp(-0.399), fp(-0.040), fp(0.5)},
	},
	ColorSpaceVS709: {
		y: matrixRow{fp(0.2126), fp(0.7152), fp(0.0722), fp(0)},
		u: matrixRow{fp(-0.1146), fp(-0.3854), fp(0.5), fp(0.5)},
		v: matrixRow{fp(0.5), fp(-0.4542), fp(-0.0458), fp(0.5)},
	},
	ColorSpaceCG601: {
		y: matrixRow{fp(0.257), fp(0.504), fp(0.098), fp(16.0 / 256)},
		u: matrixRow{fp(-0.148), fp(-0.291), fp(0.439), fp(0.5)},
		v: matrixRow{fp(0.439), fp(-0.368), fp(-0.071), fp(0.5)},
	},
	ColorSpaceVS601: {
		y: matrixRow{fp(0.299), fp(0.587), fp(0.114), fp(0)},
		u: matrixRow{fp(-0.169), fp(-0.331), fp(0.5), fp(0.5)},
		v: matrixRow{fp(0.5), fp(-0.419), fp(-0.081), fp(0.5)},
	},
}

// satu14 clamps v to [0, 2^14-1].
func satu14(v int32) int32 {
	const max14 = 1<<14 - 1
	if v < 0 {
		return 0
	}
	if v > max14 {
		return max14
	}
	return v
}

// overflowProtect implements the "overflow protect" pattern from spec
// 4.2: satu(x + k) - k with k = 0x3FFF, turning signed overflow into
// unsigned (16-bit) saturation before the final clamp to [0, 2^14-1].
func overflowProtect(x int32) int32 {
	const k = 0x3FFF
	v := x + k
	if v < 0 {
		v = 0
	}
	if v > 0xFFFF {
		v = 0xFFFF
	}
	return satu14(v - k)
}

// RGBToYUV converts one row of planar 16-bit R, G, B into planar 16-bit
// Y, U, V using the given color space's matrix. All slices must have
// equal length.
func RGBToYUV(space ColorSpace, r, g, b, y, u, v []int16) {
	m := matrices[space]
	for i := range r {
		rv, gv, bv := int32(r[i]), int32(g[i]), int32(b[i])

		yv := overflowProtect((m.y.r*rv+m.y.g*gv+m.y.b*bv)>>fixedShift + m.y.off)
		uv := overflowProtect((m.u.r*rv+m.u.g*gv+m.u.b*bv)>>fixedShift + m.u.off)
		vv := overflowProtect((m.v.r*rv+m.v.g*gv+m.v.b*bv)>>fixedShift + m.v.off)

		y[i] = int16(yv << 2)
		u[i] = int16(uv << 2)
		v[i] = int16(vv << 2)
	}
}

// invert3x3 inverts the 3x3 RGB-gain submatrix of a colorMatrix so
// YUVToRGB can run the exact algebraic inverse of RGBToYUV's linear part,
// rather than an independently-derived constant table.
func invert3x3(m colorMatrix) [3][3]float64 {
	a := [3][3]float64{
		{float64(m.y.r) / (1 << fixedShift), float64(m.y.g) / (1 << fixedShift), float64(m.y.b) / (1 << fixedShift)},
		{float64(m.u.r) / (1 << fixedShift), float64(m.u.g) / (1 << fixedShift), float64(m.u.b) / (1 << fixedShift)},
		{float64(m.v.r) / (1 << fixedShift), float64(m.v.g) / (1 << fixedShift), float64(m.v.b) / (1 << fixedShift)},
	}
	det := a[0][0]*(a[1][1]*a[2][2]-a[1][2]*a[2][1]) -
		a[0][1]*(a[1][0]*a[2][2]-a[1][2]*a[2][0]) +
		a[0][2]*(a[1][0]*a[2][1]-a[1][1]*a[2][0])
	if det == 0 {
		return [3][3]float64{}
	}
	inv := [3][3]float64{
		{(a[1][1]*a[2][2] - a[1][2]*a[2][1]) / det, (a[0][2]*a[2][1] - a[0][1]*a[2][2]) / det, (a[0][1]*a[1][2] - a[0][2]*a[1][1]) / det},
		{(a[1][2]*a[2][0] - a[1][0]*a[2][2]) / det, (a[0][0]*a[2][2] - a[0][2]*a[2][0]) / det, (a[0][2]*a[1][0] - a[0][0]*a[1][2]) / det},
		{(a[1][0]*a[2][1] - a[1][1]*a[2][0]) / det, (a[0][1]*a[2][0] - a[0][0]*a[2][1]) / det, (a[0][0]*a[1][1] - a[0][1]*a[1][0]) / det},
	}
	return inv
}

var inverseCache = map[ColorSpace][3][3]float64{}

func inverseMatrix(space ColorSpace) [3][3]float64 {
	if inv, ok := inverseCache[space]; ok {
		return inv
	}
	inv := invert3x3(matrices[space])
	inverseCache[space] = inv
	return inv
}

// YUVToRGB is the inverse of RGBToYUV within the per-component error
// bound required by spec 8 (<= 2 LSB at 16-bit precision for in-range
// inputs).
func YUVToRGB(space ColorSpace, y, u, v, r, g, b []int16) {
	m := matrices[space]
	inv := inverseMatrix(space)
	for i := range y {
		yv := float64(y[i])/4 - float64(m.y.off)
		uv := float64(u[i])/4 - float64(m.u.off)
		vv := float64(v[i])/4 - float64(m.v.off)

		rv := inv[0][0]*yv + inv[0][1]*uv + inv[0][2]*vv
		gv := inv[1][0]*yv + inv[1][1]*uv + inv[1][2]*vv
		bv := inv[2][0]*yv + inv[2][1]*uv + inv[2][2]*vv

		r[i] = clampInt16Round(rv)
		g[i] = clampInt16Round(gv)
		b[i] = clampInt16Round(bv)
	}
}

func clampInt16Round(v float64) int16 {
	r := int32(v + 0.5*sign(v))
	if r < 0 {
		return 0
	}
	if r > 1<<16-1 {
		r = 1<<16 - 1
	}
	return int16(uint16(r)) // the uint16 bit pattern, as the pixel packers store it
}

// ChromaDownsample444To422 downsamples a full-resolution chroma row to
// half width using the two-tap averaging policy required by spec 4.2.
func ChromaDownsample444To422(src []int16) []int16 {
	half := (len(src) + 1) / 2
	dst := make([]int16, half)
	for i := 0; i < half; i++ {
		left := src[2*i]
		right := left
		if 2*i+1 < len(src) {
			right = src[2*i+1]
		}
		dst[i] = int16((int32(left) + int32(right)) / 2)
	}
	return dst
}

// ChromaUpsamplePolicy selects the 4:2:2 -> 4:4:4 interpolation used by
// ChromaUpsample422To444.
type ChromaUpsamplePolicy int

const (
	// ChromaUpsampleNearest duplicates each chroma sample across its pair
	// of output columns. This is the normative path per spec 4.2.
	ChromaUpsampleNearest ChromaUpsamplePolicy = iota
	// ChromaUpsampleThreeTap applies a center-weighted three-tap filter.
	// The reference notes a residual green-tint bug with this path; it
	// must only be selected behind an explicit caller opt-in (design
	// note 9's open question), never as a default.
	ChromaUpsampleThreeTap
)

// ChromaUpsample422To444 upsamples a half-width chroma row to full width.
func ChromaUpsample422To444(src []int16, policy ChromaUpsamplePolicy, width int) []int16 {
	dst := make([]int16, width)
	switch policy {
	case ChromaUpsampleThreeTap:
		for i := 0; i < width; i++ {
			center := src[i/2]
			left := src[clampIdx(i/2-1, len(src))]
			right := src[clampIdx(i/2+1, len(src))]
			dst[i] = int16((int32(left) + 2*int32(center) + int32(right)) / 4)
		}
	default:
		for i := 0; i < width; i++ {
			dst[i] = src[i/2]
		}
	}
	return dst
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
