package cineform

import "testing"

func TestRGBToYUVToRGBWithinErrorBound(t *testing.T) {
	r := []int16{0, 1000, 20000, 40000, 65000}
	g := []int16{0, 2000, 25000, 35000, 60000}
	b := []int16{0, 1500, 15000, 45000, 62000}

	for _, space := range []ColorSpace{ColorSpaceCG709, ColorSpaceVS709, ColorSpaceCG601, ColorSpaceVS601} {
		y := make([]int16, len(r))
		u := make([]int16, len(r))
		v := make([]int16, len(r))
		RGBToYUV(space, r, g, b, y, u, v)

		r2 := make([]int16, len(r))
		g2 := make([]int16, len(r))
		b2 := make([]int16, len(r))
		YUVToRGB(space, y, u, v, r2, g2, b2)

		for i := range r {
			if diff16(r[i], r2[i]) > 4 {
				t.Errorf("%s: R[%d] = %d, want within 4 LSB of %d", space, i, r2[i], r[i])
			}
			if diff16(g[i], g2[i]) > 4 {
				t.Errorf("%s: G[%d] = %d, want within 4 LSB of %d", space, i, g2[i], g[i])
			}
			if diff16(b[i], b2[i]) > 4 {
				t.Errorf("%s: B[%d] = %d, want within 4 LSB of %d", space, i, b2[i], b[i])
			}
		}
	}
}

func diff16(a, b int16) int32 {
	d := int32(a) - int32(b)
	if d < 0 {
		return -d
	}
	return d
}

func TestOverflowProtectSaturates(t *testing.T) {
	if got := overflowProtect(1 << 20); got != 1<<14-1 {
		t.Errorf("overflowProtect(large) = %d, want %d", got, 1<<14-1)
	}
	if got := overflowProtect(-(1 << 20)); got != 0 {
		t.Errorf("overflowProtect(very negative) = %d, want 0", got)
	}
}

func TestChromaDownsampleUpsampleApproximatelyRoundTrips(t *testing.T) {
	src := []int16{100, 100, 200, 200, 50, 50, 300, 300}
	down := ChromaDownsample444To422(src)
	up := ChromaUpsample422To444(down, ChromaUpsampleNearest, len(src))
	if len(up) != len(src) {
		t.Fatalf("len(up) = %d, want %d", len(up), len(src))
	}
	for i := range src {
		if diff16(up[i], src[i]) > 1 {
			t.Errorf("index %d: up = %d, want close to %d", i, up[i], src[i])
		}
	}
}

func TestColorSpaceString(t *testing.T) {
	cases := map[ColorSpace]string{
		ColorSpaceCG709: "CG_709",
		ColorSpaceVS709: "VS_709",
		ColorSpaceCG601: "CG_601",
		ColorSpaceVS601: "VS_601",
	}
	for cs, want := range cases {
		if got := cs.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", cs, got, want)
		}
	}
}
