package cineform

// Decoder parses a sample's header, allocates output state at the
// requested decoded resolution, and inverts the entropy/quantize/DWT/
// color/pack pipeline (spec 4.7's decoder sequence). Structured the same
// way as Encoder: a struct holding per-channel state plus a DecodeSample
// method running a fixed sequence of private steps, following the
// teacher's decoder.go (github.com/mrjoshuak/go-jpeg2000).
import (
	"bytes"
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/cineform/codec/internal/bitstream"
	"github.com/cineform/codec/internal/engine"
	"github.com/cineform/codec/internal/metadata"
	"github.com/cineform/codec/internal/wavelet"
)

// Decoder decodes successive samples of a fixed geometry.
type Decoder struct {
	log *zap.Logger

	requestedW, requestedH int
	requestedPF            PixelFormat
	resolution             DecodedResolution

	cachedF1      []int32 // unused: DecodeSample neither sets nor reads these cache fields
	cachedF1Width int
	cachedF1Height int
	hasCachedFrame bool
}

// NewDecoder creates a Decoder. ReqW/ReqH/pf/resolution mirror
// prepare_to_decode in spec 6.
func NewDecoder(reqW, reqH int, pf PixelFormat, resolution DecodedResolution) (*Decoder, error) {
	if reqW <= 0 || reqH <= 0 {
		return nil, ErrInvalidArgument
	}
	if _, err := Info(pf); err != nil {
		return nil, err
	}
	return &Decoder{requestedW: reqW, requestedH: reqH, requestedPF: pf, resolution: resolution, log: zap.NewNop()}, nil
}

// ParseSampleHeader reads just the header tuples of sample, without
// decoding any band, per spec 6's parse_sample_header.
func ParseSampleHeader(sample []byte) (Header, error) {
	tuples, err := bitstream.ReadAll(bytes.NewReader(sample))
	if err != nil {
		return Header{}, err
	}
	var h Header
	for _, t := range tuples {
		switch t.Tag {
		case bitstream.TagFrameWidth:
			h.Width = int(t.Value)
		case bitstream.TagFrameHeight:
			h.Height = int(t.Value)
		case bitstream.TagEncodedFormat:
			h.EncodedFormat = EncodedFormat(t.Value)
		case bitstream.TagChannelCount:
			if h.ChannelCount == 0 {
				h.ChannelCount = int(t.Value)
			}
		case bitstream.TagLevelCount:
			h.Levels = int(t.Value)
		case bitstream.TagGOPStructure:
			h.GOP = GOPLength(t.Value)
		}
	}
	if h.Width == 0 || h.Height == 0 {
		return Header{}, ErrBadSample
	}
	return h, nil
}

// PartialDecodeWarning reports that one or more bands were zero-filled
// due to corruption, per spec 4.7.
type PartialDecodeWarning struct {
	Warnings []engine.Warning
}

func (w *PartialDecodeWarning) Error() string {
	return "cineform: partial decode, one or more bands were zero-filled"
}

// DecodeSample parses a sample and reconstructs a frame into the
// requested external pixel format, returning its planar rows packed into
// out. It always returns a frame or a fatal error; it never returns a
// half-written buffer (spec 7).
func (d *Decoder) DecodeSample(sample []byte) (out []byte, meta *metadata.Blob, warn error, err error) {
	tuples, err := bitstream.ReadAll(bytes.NewReader(sample))
	if err != nil {
		return nil, nil, nil, err
	}

	header, err := ParseSampleHeader(sample)
	if err != nil {
		return nil, nil, nil, err
	}

	channelCount := header.ChannelCount
	if channelCount == 0 {
		channelCount = channelCountForFormat(header.EncodedFormat)
	}
	levels := header.Levels
	if levels < 1 {
		levels = 3 // samples predating TagLevelCount used a fixed 3 levels
	}

	var metaBlob *metadata.Blob
	for _, t := range tuples {
		if t.Tag == bitstream.TagMetadataBlock {
			metaBlob, _ = metadata.Decode(bytes.NewReader(t.Payload))
		}
	}

	if d.resolution == ResolutionThumbnail {
		packed, err := d.decodeThumbnail(tuples, sample, header, channelCount, levels)
		if err != nil {
			return nil, metaBlob, nil, err
		}
		return packed, metaBlob, nil, nil
	}

	levelLimit := 0
	switch d.resolution {
	case ResolutionHalf:
		levelLimit = 1
	case ResolutionQuarter:
		levelLimit = 2
	}

	steps := NewStepTable(QualityHigh, channelCount, levels)
	var warnings []engine.Warning
	planes := make([][]int32, channelCount)
	dims := make([][2]int, channelCount)

	bandTuples := extractBandTuples(tuples)
	cursor := 0
	for c := 0; c < channelCount; c++ {
		w, h := header.Width, header.Height
		if c > 0 && channelCount >= 3 && header.EncodedFormat == EncodedYUV422 {
			w = (w + 1) / 2
		}
		tree := wavelet.NewTree(w, h, levels)

		chanTuples, consumed := sliceChannel(bandTuples[cursor:], levels)
		cursor += consumed

		stepFn := func(level int, band wavelet.Band) float64 {
			return steps.Step(c, level, band)
		}
		plane, w2, err2 := engine.DecodeChannel(chanTuples, c, w, h, levelLimit, tree, stepFn)
		if err2 != nil {
			return nil, nil, nil, err2
		}
		warnings = append(warnings, w2...)
		planes[c] = plane
		ow, oh := downscaledDims(w, h, levelLimit)
		dims[c] = [2]int{ow, oh}
	}

	packed, err := d.colorConvertAndPack(header, planes, dims)
	if err != nil {
		return nil, metaBlob, nil, err
	}

	if len(warnings) > 0 {
		warn = &PartialDecodeWarning{Warnings: warnings}
	}
	return packed, metaBlob, warn, nil
}

// decodeThumbnail reads each channel's coarsest-level LL band directly
// through its ChannelOffsetTag, without invoking the entropy coder or
// the inverse transform - the zero-copy path spec 4.6/4.7 requires for
// thumbnail decode.
func (d *Decoder) decodeThumbnail(tuples []bitstream.Tuple, sample []byte, header Header, channelCount, levels int) ([]byte, error) {
	dims := make([][2]int, channelCount)
	planes := make([][]int32, channelCount)

	for c := 0; c < channelCount; c++ {
		w, h := header.Width, header.Height
		if c > 0 && channelCount >= 3 && header.EncodedFormat == EncodedYUV422 {
			w = (w + 1) / 2
		}
		ow, oh := downscaledDims(w, h, levels)
		dims[c] = [2]int{ow, oh}

		offsetTag := bitstream.ChannelOffsetTag(c)
		var offset uint32
		found := false
		for _, t := range tuples {
			if t.Tag == offsetTag && len(t.Payload) >= 4 {
				offset = binary.BigEndian.Uint32(t.Payload)
				found = true
				break
			}
		}
		if !found || int(offset) >= len(sample) {
			return nil, ErrBadSample
		}

		tup, err := bitstream.NewReader(bytes.NewReader(sample[offset:])).Next()
		if err != nil {
			return nil, err
		}
		if tup.Tag != bitstream.TagThumbnailLowpass {
			return nil, ErrBadSample
		}

		count := ow * oh
		if len(tup.Payload) < count*2 {
			return nil, ErrBadSample
		}
		plane := make([]int32, count)
		for i := range plane {
			plane[i] = int32(int16(binary.BigEndian.Uint16(tup.Payload[i*2 : i*2+2])))
		}
		planes[c] = plane
	}

	return d.colorConvertAndPack(header, planes, dims)
}

// downscaledDims halves width/height n times, rounding up each step,
// matching wavelet.NewTree's per-level halving so decoded-plane
// dimensions agree with the tree that produced them.
func downscaledDims(width, height, n int) (int, int) {
	for i := 0; i < n; i++ {
		width = (width + 1) / 2
		height = (height + 1) / 2
	}
	return width, height
}

// extractBandTuples filters out everything except the per-band tuple
// triples (subband index, coefficient count, payload).
func extractBandTuples(tuples []bitstream.Tuple) []bitstream.Tuple {
	var out []bitstream.Tuple
	for _, t := range tuples {
		switch t.Tag {
		case bitstream.TagSubbandIndex, bitstream.TagBandCoeffCount, bitstream.TagBandPayloadStart, bitstream.TagBandPayloadEnd:
			out = append(out, t)
		}
	}
	return out
}

// sliceChannel returns the tuples belonging to one channel (levels
// decomposition levels, 4 bands at the coarsest level and 3 at every
// other level, 3 tuples per band) and how many tuples it consumed.
func sliceChannel(tuples []bitstream.Tuple, levels int) ([]bitstream.Tuple, int) {
	bandsPerChannel := 3*levels + 1
	tuplesPerChannel := bandsPerChannel * 3
	if tuplesPerChannel > len(tuples) {
		tuplesPerChannel = len(tuples)
	}
	return tuples[:tuplesPerChannel], tuplesPerChannel
}

func (d *Decoder) colorConvertAndPack(header Header, planes [][]int32, dims [][2]int) ([]byte, error) {
	width, height := dims[0][0], dims[0][1]
	needsColorConvert := header.EncodedFormat == EncodedYUV422 || header.EncodedFormat == EncodedYUVA4444

	var out bytes.Buffer
	for y := 0; y < height; y++ {
		yRow := narrowRow(planes[0], y, width)
		var r, g, b []int16
		if needsColorConvert && len(planes) >= 3 {
			chromaWidth := dims[1][0]
			uRow := narrowRow(planes[1], y, chromaWidth)
			vRow := narrowRow(planes[2], y, chromaWidth)
			if header.EncodedFormat == EncodedYUV422 {
				uRow = ChromaUpsample422To444(uRow, ChromaUpsampleNearest, width)
				vRow = ChromaUpsample422To444(vRow, ChromaUpsampleNearest, width)
			}
			r = make([]int16, width)
			g = make([]int16, width)
			b = make([]int16, width)
			YUVToRGB(ColorSpaceCG709, yRow, uRow, vRow, r, g, b)
		} else {
			r = yRow
			g = narrowRow(planes[1], y, width)
			b = narrowRow(planes[2], y, width)
		}

		row := Row{C0: r, C1: g, C2: b}
		if len(planes) == 4 {
			row.C3 = narrowRow(planes[3], y, width)
		}
		packed, err := Pack(d.requestedPF, width, row)
		if err != nil {
			return nil, err
		}
		out.Write(packed)
	}
	return out.Bytes(), nil
}

func narrowRow(plane []int32, y, width int) []int16 {
	out := make([]int16, width)
	base := y * width
	for i := 0; i < width; i++ {
		if base+i >= len(plane) {
			break
		}
		out[i] = int16(plane[base+i])
	}
	return out
}
