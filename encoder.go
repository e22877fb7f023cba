package cineform

// Encoder owns per-channel transform state and scratch arenas and drives
// the pack -> color-convert -> DWT -> quantize -> entropy-encode ->
// metadata -> SAMPLE_END pipeline for one frame (spec 4.7's encoder
// sequence). The orchestration shape (a struct holding per-channel state
// plus an EncodeSample method that runs a fixed sequence of private steps)
// follows the teacher's encoder.go (github.com/mrjoshuak/go-jpeg2000).
import (
	"bytes"
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/cineform/codec/internal/bitstream"
	"github.com/cineform/codec/internal/engine"
	"github.com/cineform/codec/internal/metadata"
	"github.com/cineform/codec/internal/wavelet"
)

// Encoder encodes successive frames of a fixed geometry into CineForm
// samples. It is not safe for concurrent use by multiple goroutines;
// callers needing parallelism should use a Pool (internal/pool) instead.
type Encoder struct {
	opts  Options
	steps *StepTable
	log   *zap.Logger

	trees        []*wavelet.Tree
	channelCount int

	gopPhase    int      // 0 or 1 within the current GOP
	bufferedF0  []int32  // previous frame's channels, cached for temporal pairing
	bufferedW   int
	bufferedH   int

	store *metadata.Store
}

// NewEncoder creates an Encoder for the given options, allocating
// per-channel transform trees sized from opts.Width/Height. The
// dimensions are fixed for the Encoder's lifetime; there is no call that
// reinitializes these arenas.
func NewEncoder(opts Options) (*Encoder, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, ErrInvalidArgument
	}
	if _, err := Info(opts.PixelFormat); err != nil {
		return nil, err
	}
	if opts.Levels < 2 || opts.Levels > 3 {
		opts.Levels = 3
	}

	e := &Encoder{
		opts:  opts,
		log:   opts.logger(),
		store: metadata.NewStore(30),
	}
	e.allocate()
	return e, nil
}

func (e *Encoder) allocate() {
	e.channelCount = channelCountForFormat(e.opts.EncodedFormat)
	e.trees = make([]*wavelet.Tree, e.channelCount)
	for c := 0; c < e.channelCount; c++ {
		w, h := e.opts.Width, e.opts.Height
		if c > 0 && e.opts.EncodedFormat == EncodedYUV422 && !e.opts.ChromaFullRes {
			w = (w + 1) / 2
		}
		e.trees[c] = wavelet.NewTree(w, h, e.opts.Levels)
	}
	e.steps = NewStepTable(e.opts.Quality, e.channelCount, e.opts.Levels)
}

func channelCountForFormat(f EncodedFormat) int {
	switch f {
	case EncodedRGBA4444, EncodedYUVA4444:
		return 4
	default:
		return 3
	}
}

// AttachMetadata replaces the encoder's metadata store with md.
func (e *Encoder) AttachMetadata(md *metadata.Store) {
	e.store = md
}

// Metadata returns the encoder's metadata store for direct mutation.
func (e *Encoder) Metadata() *metadata.Store {
	return e.store
}

// EncodeSample packs, transforms, quantizes, and entropy-codes one
// frame, returning a complete tag-value sample.
func (e *Encoder) EncodeSample(frame []byte, pitch int) ([]byte, error) {
	planes, err := e.packAndConvert(frame, pitch)
	if err != nil {
		return nil, err
	}

	if e.opts.GOP == GOPPair {
		if e.gopPhase == 0 {
			e.bufferedF0 = flattenPlanes(planes)
			e.bufferedW, e.bufferedH = e.opts.Width, e.opts.Height
			e.gopPhase = 1
			return e.encodeIntraSample(planes, true)
		}
		e.gopPhase = 0
		return e.encodeTemporalPair(planes)
	}

	return e.encodeIntraSample(planes, true)
}

func flattenPlanes(planes [][]int32) []int32 {
	var total int
	for _, p := range planes {
		total += len(p)
	}
	out := make([]int32, 0, total)
	for _, p := range planes {
		out = append(out, p...)
	}
	return out
}

func (e *Encoder) encodeIntraSample(planes [][]int32, keyFrame bool) ([]byte, error) {
	var buf bytes.Buffer
	w := bitstream.NewWriter(&buf)
	if err := e.writeHeader(w); err != nil {
		return nil, err
	}

	for c, plane := range planes {
		width, height := e.trees[c].Node(0).Width, e.trees[c].Node(0).Height
		step := func(level int, band wavelet.Band) float64 {
			return e.steps.Step(c, level, band)
		}
		if err := engine.EncodeChannel(w, c, plane, width, height, e.trees[c], step); err != nil {
			return nil, err
		}
	}

	if err := e.writeThumbnailOffsets(w, &buf); err != nil {
		return nil, err
	}

	if err := e.writeMetadata(w); err != nil {
		return nil, err
	}
	if err := w.WriteSampleEnd(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeTemporalPair applies the frame-pair temporal transform to the
// buffered previous frame and the current frame, then codes the
// highpass frame like a still frame (spec 4.4/4.7).
func (e *Encoder) encodeTemporalPair(planes [][]int32) ([]byte, error) {
	cur := flattenPlanes(planes)
	lowpass, highpass := wavelet.TemporalForward(e.bufferedF0, cur)

	hpPlanes := splitPlanes(highpass, planes)
	_ = lowpass // the lowpass frame is discarded: this sample carries only the highpass frame

	return e.encodeIntraSample(hpPlanes, false)
}

func splitPlanes(flat []int32, like [][]int32) [][]int32 {
	out := make([][]int32, len(like))
	offset := 0
	for i, p := range like {
		out[i] = flat[offset : offset+len(p)]
		offset += len(p)
	}
	return out
}

func (e *Encoder) writeHeader(w *bitstream.Writer) error {
	if err := w.WriteShort(bitstream.TagFrameWidth, uint16(e.opts.Width)); err != nil {
		return err
	}
	if err := w.WriteShort(bitstream.TagFrameHeight, uint16(e.opts.Height)); err != nil {
		return err
	}
	if err := w.WriteShort(bitstream.TagEncodedFormat, uint16(e.opts.EncodedFormat)); err != nil {
		return err
	}
	if err := w.WriteShort(bitstream.TagChannelCount, uint16(e.channelCount)); err != nil {
		return err
	}
	if err := w.WriteShort(bitstream.TagLevelCount, uint16(e.opts.Levels)); err != nil {
		return err
	}
	if err := w.WriteShort(bitstream.TagGOPStructure, uint16(e.opts.GOP)); err != nil {
		return err
	}
	return nil
}

// writeThumbnailOffsets emits each channel's coarsest-level LL band as a
// raw (unquantized, unencoded) TagThumbnailLowpass payload, plus a
// ChannelOffsetTag recording the byte offset where that payload begins -
// the zero-copy path spec 4.6/4.7 requires for thumbnail decode, which
// must not invoke the entropy coder.
func (e *Encoder) writeThumbnailOffsets(w *bitstream.Writer, buf *bytes.Buffer) error {
	levels := e.opts.Levels
	for c := range e.trees {
		ll := e.trees[c].Node(wavelet.WaveletID(levels - 1)).Bands[wavelet.BandLL]
		payload := make([]byte, len(ll)*2)
		for i, v := range ll {
			binary.BigEndian.PutUint16(payload[i*2:i*2+2], uint16(int16(clampQ(v))))
		}
		offset := uint32(buf.Len())
		if err := w.WriteLong(bitstream.TagThumbnailLowpass, payload); err != nil {
			return err
		}
		var offBuf [4]byte
		binary.BigEndian.PutUint32(offBuf[:], offset)
		if err := w.WriteLong(bitstream.ChannelOffsetTag(c), offBuf[:]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeMetadata(w *bitstream.Writer) error {
	if err := e.store.EnsureGUID(); err != nil {
		return err
	}
	merged := e.store.Merge()
	var buf bytes.Buffer
	if err := metadata.Encode(&buf, merged); err != nil {
		return err
	}
	if buf.Len() == 0 {
		return nil
	}
	return w.WriteLong(bitstream.TagMetadataBlock, buf.Bytes())
}

// packAndConvert runs the pixel-packer and color-converter stages,
// producing one int32 plane per channel.
func (e *Encoder) packAndConvert(frame []byte, pitch int) ([][]int32, error) {
	width, height := e.opts.Width, e.opts.Height
	planes := make([][]int32, e.channelCount)
	for c := range planes {
		w, h := width, height
		if c > 0 && e.channelCount >= 3 && e.opts.EncodedFormat == EncodedYUV422 && !e.opts.ChromaFullRes {
			w = (w + 1) / 2
		}
		planes[c] = make([]int32, w*h)
	}

	for y := 0; y < height; y++ {
		rowStart := y * pitch
		rowEnd := rowStart + pitch
		if rowEnd > len(frame) {
			rowEnd = len(frame)
		}
		row, err := Unpack(e.opts.PixelFormat, width, frame[rowStart:rowEnd])
		if err != nil {
			return nil, err
		}

		needsColorConvert := e.opts.EncodedFormat == EncodedYUV422 || e.opts.EncodedFormat == EncodedYUVA4444
		var y0, u0, v0 []int16
		if needsColorConvert {
			y0 = make([]int16, width)
			u0 = make([]int16, width)
			v0 = make([]int16, width)
			RGBToYUV(e.opts.ColorSpace, row.C0, row.C1, row.C2, y0, u0, v0)
		} else {
			y0, u0, v0 = row.C0, row.C1, row.C2
		}

		widenInto(planes[0], y0, y, width)
		if e.channelCount >= 3 {
			if needsColorConvert && !e.opts.ChromaFullRes {
				u0 = ChromaDownsample444To422(u0)
				v0 = ChromaDownsample444To422(v0)
			}
			widenInto(planes[1], u0, y, len(u0))
			widenInto(planes[2], v0, y, len(v0))
		}
		if e.channelCount == 4 && row.C3 != nil {
			widenInto(planes[3], row.C3, y, width)
		}
	}
	return planes, nil
}

func widenInto(plane []int32, row []int16, y, rowWidth int) {
	base := y * rowWidth
	for i, v := range row {
		if base+i >= len(plane) {
			break
		}
		plane[base+i] = int32(v)
	}
}
