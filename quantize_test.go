package cineform

import (
	"testing"

	"github.com/cineform/codec/internal/wavelet"
)

func TestQuantizeDequantizeZeroShortCircuits(t *testing.T) {
	if got := Dequantize(0, 48); got != 0 {
		t.Errorf("Dequantize(0, 48) = %d, want 0", got)
	}
}

func TestQuantizeTiesAwayFromZero(t *testing.T) {
	// step = 10: 5 should round up to 1, -5 should round down to -1.
	if got := Quantize(5, 10); got != 1 {
		t.Errorf("Quantize(5, 10) = %d, want 1", got)
	}
	if got := Quantize(-5, 10); got != -1 {
		t.Errorf("Quantize(-5, 10) = %d, want -1", got)
	}
}

func TestQuantizeDequantizeApproximatelyInvertible(t *testing.T) {
	step := 16.0
	for _, x := range []int32{0, 15, 16, 17, -100, 1000, -1000} {
		q := Quantize(x, step)
		recovered := Dequantize(q, step)
		diff := recovered - x
		if diff < 0 {
			diff = -diff
		}
		if float64(diff) > step {
			t.Errorf("Quantize/Dequantize(%d, step=%v) = %d, error exceeds one step", x, step, recovered)
		}
	}
}

func TestQuantizeSaturates(t *testing.T) {
	if got := Quantize(1<<20, 1); got != 32767 {
		t.Errorf("Quantize(2^20, 1) = %d, want saturated to 32767", got)
	}
	if got := Quantize(-(1 << 20), 1); got != -32768 {
		t.Errorf("Quantize(-2^20, 1) = %d, want saturated to -32768", got)
	}
}

func TestStepTableMonotonicAcrossQuality(t *testing.T) {
	st := NewStepTable(QualityLow, 1, 3)
	lowStep := st.Step(0, 0, wavelet.BandHH)

	st2 := NewStepTable(QualityFilmscan3, 1, 3)
	highQualityStep := st2.Step(0, 0, wavelet.BandHH)

	if !(highQualityStep < lowStep) {
		t.Errorf("FILMSCAN3 step (%v) should be smaller than LOW step (%v)", highQualityStep, lowStep)
	}
}

func TestStepTableCoarserLevelsUseLargerSteps(t *testing.T) {
	st := NewStepTable(QualityMedium, 1, 3)
	level0 := st.Step(0, 0, wavelet.BandHH)
	level2 := st.Step(0, 2, wavelet.BandHH)
	if !(level2 > level0) {
		t.Errorf("coarser level step (%v) should exceed finer level step (%v)", level2, level0)
	}
}

func TestStepTablePerChannelIndependence(t *testing.T) {
	st := NewStepTable(QualityHigh, 3, 2)
	for ch := 0; ch < 3; ch++ {
		if st.Step(ch, 0, wavelet.BandLL) <= 0 {
			t.Errorf("channel %d LL step should be positive", ch)
		}
	}
}
