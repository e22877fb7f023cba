// Package engine orchestrates the per-channel wavelet/quantize/entropy
// pipeline shared by the encoder and decoder (spec section 4.7). It owns
// no knowledge of pixel formats or color spaces - those stay in the
// cineform package - so that this package can be exercised independently
// of the public API, the way the teacher's internal/tcd package drives
// internal/dwt and internal/entropy without depending on the top-level
// jpeg2000 package.
//
// Grounded on github.com/mrjoshuak/go-jpeg2000, internal/tcd/tcd.go: the
// Tile/TileComponent/Resolution/Band/Precinct/CodeBlock nesting there
// becomes, here, a flat per-channel wavelet.Tree walked band by band.
package engine

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/cineform/codec/internal/bio"
	"github.com/cineform/codec/internal/bitstream"
	"github.com/cineform/codec/internal/entropy"
	"github.com/cineform/codec/internal/wavelet"
)

// StepFunc supplies the quantization step for a given decomposition
// level and band; the cineform package's StepTable satisfies this shape
// without engine needing to import it.
type StepFunc func(level int, band wavelet.Band) float64

// Warning is a non-fatal condition surfaced alongside a successful
// decode, per spec 4.7's "PartialDecode warning" requirement.
type Warning struct {
	Channel int
	Level   int
	Band    wavelet.Band
	Err     error
}

// EncodeChannel runs the forward spatial DWT over data (width x height,
// row-major), recursed to tree's level count, quantizes every band with
// step, and writes a leading channel-count tuple followed by, for every
// coded band (the coarsest LL included), two short-form header tuples
// (subband index and coefficient count) and one long-form payload tuple,
// in the required deepest-LL-outward order. The finest level's LL band is never coded directly: it exists
// only as the input to the next decomposition level, except at the
// coarsest level, where it is coded as the thumbnail/lowpass band.
func EncodeChannel(w *bitstream.Writer, channel int, data []int32, width, height int, tree *wavelet.Tree, step StepFunc) error {
	levels := tree.Levels()

	// Spatial transform: decompose in place, mirroring wavelet.DecomposeMultiLevel,
	// but band-by-band so each level's coefficients can be copied into the
	// tree's own buffers for independent quantization.
	w2, h2 := width, height
	cur := data
	for level := 0; level < levels; level++ {
		wavelet.Forward2D(cur, w2, h2)
		node := tree.Node(wavelet.WaveletID(level))
		fillNodeBands(node, cur, w2, h2)
		w2 = (w2 + 1) / 2
		h2 = (h2 + 1) / 2
		cur = node.Bands[wavelet.BandLL]
	}

	if err := w.WriteShort(bitstream.TagChannelCount, uint16(channel)); err != nil {
		return err
	}

	for level := levels - 1; level >= 0; level-- {
		node := tree.Node(wavelet.WaveletID(level))
		order := []wavelet.Band{wavelet.BandHL, wavelet.BandLH, wavelet.BandHH}
		if level == levels-1 {
			// The coarsest LL is coded once, as the thumbnail/lowpass band.
			order = append([]wavelet.Band{wavelet.BandLL}, order...)
		}
		for _, band := range order {
			if err := encodeBand(w, level, band, node, step); err != nil {
				return err
			}
			node.States[band] = wavelet.StateValid
		}
	}
	return nil
}

func fillNodeBands(node *wavelet.Node, data []int32, width, height int) {
	ll, hl, lh, hh := wavelet.SubbandBounds(width, height, 0)
	copyRect(node.Bands[wavelet.BandLL], data, width, ll)
	copyRect(node.Bands[wavelet.BandHL], data, width, hl)
	copyRect(node.Bands[wavelet.BandLH], data, width, lh)
	copyRect(node.Bands[wavelet.BandHH], data, width, hh)
}

func copyRect(dst []int32, src []int32, srcStride int, b wavelet.Bounds) {
	w := b.X1 - b.X0
	i := 0
	for y := b.Y0; y < b.Y1; y++ {
		row := src[y*srcStride+b.X0 : y*srcStride+b.X1]
		copy(dst[i:i+w], row)
		i += w
	}
}

func encodeBand(w *bitstream.Writer, level int, band wavelet.Band, node *wavelet.Node, step StepFunc) error {
	coeffs := node.Bands[band]
	quantized := make([]int32, len(coeffs))
	s := step(level, band)
	for i, c := range coeffs {
		quantized[i] = quantizeCoeff(c, s)
	}

	var buf bytes.Buffer
	bw := bio.NewWriter(&buf)
	if err := entropy.NewEncoder(bw).EncodeBand(quantized); err != nil {
		return errors.Wrap(err, "engine: encoding band")
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	if err := w.WriteShort(bitstream.TagSubbandIndex, uint16(level)<<2|uint16(band)); err != nil {
		return err
	}
	if err := w.WriteShort(bitstream.TagBandCoeffCount, uint16(len(coeffs))); err != nil {
		return err
	}
	return w.WriteLong(bitstream.TagBandPayloadStart, buf.Bytes())
}

// quantizeCoeff mirrors the root package's Quantize, duplicated here in
// terms engine already owns (ties-away-from-zero, signed-16 saturation)
// so engine has no dependency on the cineform package.
func quantizeCoeff(x int32, step float64) int32 {
	if step <= 1 {
		return clamp16(x)
	}
	q := float64(x) / step
	if q >= 0 {
		q += 0.5
	} else {
		q -= 0.5
	}
	return clamp16(int32(q))
}

func dequantizeCoeff(q int32, step float64) int32 {
	if q == 0 {
		return 0
	}
	if step <= 1 {
		return q
	}
	return clamp16(int32(float64(q) * step))
}

func clamp16(v int32) int32 {
	const lo, hi = -32768, 32767
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DecodeChannel reads a channel's bands back from tuples, dequantizes,
// and runs the inverse spatial DWT, writing the reconstructed plane into
// out (width x height, row-major). levelLimit restricts reconstruction
// to the requested decoded resolution (spec 4.7's half/quarter/thumbnail
// paths): a limit of 0 reconstructs full resolution, 1 stops one level
// short (half res), and so on. Band decode failures are recovered by
// zero-filling and reported as warnings rather than failing the call.
func DecodeChannel(tuples []bitstream.Tuple, channel int, width, height, levelLimit int, tree *wavelet.Tree, step StepFunc) (out []int32, warnings []Warning, err error) {
	levels := tree.Levels()
	idx := 0
	nextTuple := func() (bitstream.Tuple, bool) {
		if idx >= len(tuples) {
			return bitstream.Tuple{}, false
		}
		t := tuples[idx]
		idx++
		return t, true
	}

	for level := levels - 1; level >= 0; level-- {
		node := tree.Node(wavelet.WaveletID(level))
		order := []wavelet.Band{wavelet.BandHL, wavelet.BandLH, wavelet.BandHH}
		if level == levels-1 {
			order = append([]wavelet.Band{wavelet.BandLL}, order...)
		}
		for _, band := range order {
			subbandTag, ok := nextTuple()
			if !ok || subbandTag.Tag != bitstream.TagSubbandIndex {
				return nil, warnings, errors.New("engine: expected subband index tuple")
			}
			countTag, ok := nextTuple()
			if !ok || countTag.Tag != bitstream.TagBandCoeffCount {
				return nil, warnings, errors.New("engine: expected band coefficient count tuple")
			}
			payloadTag, ok := nextTuple()
			if !ok {
				return nil, warnings, errors.New("engine: expected band payload tuple")
			}

			count := int(countTag.Value)
			coeffs, decodeErr := entropy.NewDecoder(bio.NewReader(bytes.NewReader(payloadTag.Payload))).DecodeBand(count)
			if decodeErr != nil {
				warnings = append(warnings, Warning{Channel: channel, Level: level, Band: band, Err: decodeErr})
			}
			s := step(level, band)
			for i := range coeffs {
				coeffs[i] = dequantizeCoeff(coeffs[i], s)
			}
			node.Bands[band] = coeffs
			node.States[band] = wavelet.StateDecoded
		}
	}

	cur := tree.Node(wavelet.WaveletID(levels - 1)).Bands[wavelet.BandLL]

	for level := levels - 1; level >= levelLimit; level-- {
		node := tree.Node(wavelet.WaveletID(level))
		plane := assembleBands(node)
		wavelet.Inverse2D(plane, node.Width, node.Height)
		if level > 0 {
			// feeds the LL of the next (finer) level
			parent := tree.Node(wavelet.WaveletID(level - 1))
			parent.Bands[wavelet.BandLL] = plane
		} else {
			cur = plane
		}
	}
	// When levelLimit stops short of level 0 (half/quarter resolution), the
	// reconstructed plane the loop produces lands in the parent node's LL
	// slot rather than in cur, since the level==0 branch above never runs.
	if levelLimit > 0 && levelLimit < levels {
		cur = tree.Node(wavelet.WaveletID(levelLimit - 1)).Bands[wavelet.BandLL]
	}
	return cur, warnings, nil
}

func assembleBands(node *wavelet.Node) []int32 {
	plane := make([]int32, node.Width*node.Height)
	ll, hl, lh, hh := wavelet.SubbandBounds(node.Width, node.Height, 0)
	pasteRect(plane, node.Width, node.Bands[wavelet.BandLL], ll)
	pasteRect(plane, node.Width, node.Bands[wavelet.BandHL], hl)
	pasteRect(plane, node.Width, node.Bands[wavelet.BandLH], lh)
	pasteRect(plane, node.Width, node.Bands[wavelet.BandHH], hh)
	return plane
}

func pasteRect(dst []int32, dstStride int, src []int32, b wavelet.Bounds) {
	w := b.X1 - b.X0
	i := 0
	for y := b.Y0; y < b.Y1; y++ {
		copy(dst[y*dstStride+b.X0:y*dstStride+b.X1], src[i:i+w])
		i += w
	}
}
