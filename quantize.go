package cineform

// Quantizer (spec section 4.3): maps wavelet coefficients to/from integer
// indices using a per-subband step derived from a quality enum, with
// ties-away-from-zero rounding and saturating arithmetic.
//
// The quality-to-step-table mapping follows the teacher's quantization
// style tables in internal/codestream/header.go (QuantizationDefault),
// generalized from JPEG 2000's exponent/mantissa scheme to CineForm's
// flat per-subband step vector. Fitting a smooth step curve across
// quality levels uses gonum.org/v1/gonum/mat (a dependency contributed by
// the wider example pack rather than the teacher itself), replacing a
// hand-rolled least-squares solver.
import (
	"gonum.org/v1/gonum/mat"

	"github.com/cineform/codec/internal/wavelet"
)

// Quality selects one of the fixed encoder quality presets.
type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
	QualityFilmscan1
	QualityFilmscan2
	QualityFilmscan3
)

// String returns the quality preset's conventional name.
func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "LOW"
	case QualityMedium:
		return "MEDIUM"
	case QualityHigh:
		return "HIGH"
	case QualityFilmscan1:
		return "FILMSCAN1"
	case QualityFilmscan2:
		return "FILMSCAN2"
	case QualityFilmscan3:
		return "FILMSCAN3"
	default:
		return "UNKNOWN"
	}
}

// baseStepByQuality anchors the quantizer step curve: one value per
// quality preset for the finest spatial level's HH band. Other bands and
// levels are derived from this anchor by stepForBand.
var baseStepByQuality = map[Quality]float64{
	QualityLow:       48,
	QualityMedium:    24,
	QualityHigh:      12,
	QualityFilmscan1: 6,
	QualityFilmscan2: 3,
	QualityFilmscan3: 1,
}

// fitStepCurve uses a least-squares polynomial fit (via gonum) over the
// anchor table to produce a smooth function from quality ordinal to base
// step. It returns the fitted step at the six preset ordinals only; the
// curve is not evaluated at any other quality value.
func fitStepCurve() []float64 {
	qualities := []Quality{QualityLow, QualityMedium, QualityHigh, QualityFilmscan1, QualityFilmscan2, QualityFilmscan3}
	n := len(qualities)

	// Design matrix for a quadratic fit: [1, x, x^2] per row.
	a := mat.NewDense(n, 3, nil)
	y := mat.NewVecDense(n, nil)
	for i, q := range qualities {
		x := float64(i)
		a.Set(i, 0, 1)
		a.Set(i, 1, x)
		a.Set(i, 2, x*x)
		y.SetVec(i, baseStepByQuality[q])
	}

	var coeffs mat.VecDense
	var qr mat.QR
	qr.Factorize(a)
	if err := qr.SolveVecTo(&coeffs, false, y); err != nil {
		// Fall back to the raw anchors if the fit is singular; this
		// keeps quantization correct (just unsmoothed) rather than
		// panicking on a degenerate input.
		out := make([]float64, n)
		for i, q := range qualities {
			out[i] = baseStepByQuality[q]
		}
		return out
	}

	out := make([]float64, n)
	for i := range qualities {
		x := float64(i)
		out[i] = coeffs.AtVec(0) + coeffs.AtVec(1)*x + coeffs.AtVec(2)*x*x
	}
	return out
}

// stepCurve is computed once and indexed by quality ordinal.
var stepCurve = fitStepCurve()

// stepForBand computes the quantization step for one subband: the
// quality's fitted base step (at least 1), doubled per coarser spatial
// level. HH uses that step as is, HL/LH use 1.5 times it and LL uses
// half of it, at every level.
func stepForBand(quality Quality, band wavelet.Band, level int) float64 {
	base := baseStepByQuality[quality]
	if int(quality) < len(stepCurve) {
		base = stepCurve[quality]
	}
	if base < 1 {
		base = 1
	}

	switch band {
	case wavelet.BandHH:
		return base * pow2(level)
	case wavelet.BandHL, wavelet.BandLH:
		return base * 1.5 * pow2(level)
	default: // BandLL
		return base * 0.5 * pow2(level)
	}
}

func pow2(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 2
	}
	return v
}

// StepTable holds the per-band, per-level quantization steps for every
// channel in a frame, computed once per encoded geometry and quality.
type StepTable struct {
	steps map[int]map[int][4]float64 // channel -> level -> per-band step
}

// NewStepTable computes a StepTable for channelCount channels, each with
// the given number of spatial decomposition levels, at the requested
// quality.
func NewStepTable(quality Quality, channelCount, levels int) *StepTable {
	st := &StepTable{steps: make(map[int]map[int][4]float64)}
	for ch := 0; ch < channelCount; ch++ {
		st.steps[ch] = make(map[int][4]float64)
		for level := 0; level < levels; level++ {
			var bands [4]float64
			for b := wavelet.BandLL; b <= wavelet.BandHH; b++ {
				bands[b] = stepForBand(quality, b, level)
			}
			st.steps[ch][level] = bands
		}
	}
	return st
}

// Step returns the quantization step for one channel/level/band.
func (st *StepTable) Step(channel, level int, band wavelet.Band) float64 {
	return st.steps[channel][level][band]
}

// Quantize maps a coefficient to its integer index using ties-away-
// from-zero rounding, saturated to a signed-16 range.
func Quantize(x int32, step float64) int32 {
	if step <= 1 {
		return clampQ(x)
	}
	q := float64(x) / step
	if q >= 0 {
		q += 0.5
	} else {
		q -= 0.5
	}
	return clampQ(int32(q))
}

// Dequantize reverses Quantize. A zero index short-circuits to zero
// without a multiply, per spec 4.3.
func Dequantize(q int32, step float64) int32 {
	if q == 0 {
		return 0
	}
	if step <= 1 {
		return q
	}
	return clampQ(int32(float64(q) * step))
}

func clampQ(v int32) int32 {
	const lo, hi = -32768, 32767
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
