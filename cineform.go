// Package cineform implements the CineForm codec core: pixel packing,
// color conversion, quantization, a lifting wavelet transform (4-tap
// predict, 2-tap update), run/magnitude entropy coding, the tag-value bitstream
// container, the metadata store, and the per-frame encoder/decoder
// engine, plus a concurrent job pool for ordered parallel encoding.
//
// The package surface (open_encoder/open_decoder, prepare,
// attach_metadata, encode_sample/decode_sample) follows the teacher's
// top-level jpeg2000.go (github.com/mrjoshuak/go-jpeg2000): a small set
// of named types plus constructor-and-method functions, rather than a
// single monolithic Codec interface.
package cineform

import (
	"go.uber.org/zap"

	"github.com/cineform/codec/internal/metadata"
)

// EncodedFormat is a closed tag set of internal channel layouts.
type EncodedFormat int

const (
	EncodedYUV422 EncodedFormat = iota
	EncodedRGB444
	EncodedRGBA4444
	EncodedBayer
	EncodedYUVA4444
)

// String returns the encoded format's conventional name.
func (f EncodedFormat) String() string {
	switch f {
	case EncodedYUV422:
		return "YUV_422"
	case EncodedRGB444:
		return "RGB_444"
	case EncodedRGBA4444:
		return "RGBA_4444"
	case EncodedBayer:
		return "BAYER"
	case EncodedYUVA4444:
		return "YUVA_4444"
	default:
		return "unknown"
	}
}

// DecodedResolution selects how much of a sample to reconstruct, per
// spec 4.7: half/quarter skip inverse-transform levels, and thumbnail
// reads only the LL offsets without invoking the entropy coder.
type DecodedResolution int

const (
	ResolutionFull DecodedResolution = iota
	ResolutionHalf
	ResolutionQuarter
	ResolutionThumbnail
)

// ErrKind is one of the fixed error kinds from spec 6. Where this
// package reports one of these kinds it returns the sentinel itself,
// unwrapped. Other errors (ErrUnsupportedPixelFormat, and errors from the
// bitstream and engine packages) are not ErrKind values.
type ErrKind struct{ name string }

func (e *ErrKind) Error() string { return e.name }

var (
	ErrInvalidArgument     = &ErrKind{"cineform: invalid argument"}
	ErrOutOfMemory         = &ErrKind{"cineform: out of memory"}
	ErrBadFormat           = &ErrKind{"cineform: bad format"}
	ErrBadSample           = &ErrKind{"cineform: bad sample"}
	ErrInternal            = &ErrKind{"cineform: internal error"}
	ErrEncodingNotStarted  = &ErrKind{"cineform: encoding not started"}
	ErrDecodeBufferSize    = &ErrKind{"cineform: decode buffer too small"}
	ErrLicensing           = &ErrKind{"cineform: licensing error"}
	ErrUnknownTag          = &ErrKind{"cineform: unknown tag"}
	ErrBadMetadata         = &ErrKind{"cineform: bad metadata"}
	ErrThreadCreateFailed  = &ErrKind{"cineform: thread create failed"}
	ErrThreadWaitFailed    = &ErrKind{"cineform: thread wait failed"}
)

// GOPLength selects the temporal transform mode: 1 (intra-only) or 2
// (one temporal lowpass/highpass pair per GOP). Larger GOPs are not
// supported, per spec 1's "only an optional 2-frame temporal transform"
// non-goal.
type GOPLength int

const (
	GOPIntraOnly GOPLength = 1
	GOPPair      GOPLength = 2
)

// Options configures an Encoder, mirroring the teacher's Options struct
// and DefaultOptions constructor.
type Options struct {
	Width, Height int
	PixelFormat   PixelFormat
	EncodedFormat EncodedFormat
	ColorSpace    ColorSpace
	Quality       Quality
	GOP           GOPLength
	Levels        int // spatial decomposition levels, 2-3 per spec 4.4
	ChromaFullRes bool
	Logger        *zap.Logger
}

// DefaultOptions returns an Options with CineForm's conventional
// defaults: CG-709 color, 3 spatial levels, intra-only GOP.
func DefaultOptions(width, height int, pf PixelFormat) Options {
	return Options{
		Width:         width,
		Height:        height,
		PixelFormat:   pf,
		EncodedFormat: EncodedYUV422,
		ColorSpace:    ColorSpaceCG709,
		Quality:       QualityHigh,
		GOP:           GOPIntraOnly,
		Levels:        3,
		ChromaFullRes: false,
		Logger:        zap.NewNop(),
	}
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Header describes a parsed sample's geometry, independent of pixel
// format - the result of parse_sample_header in spec 6.
type Header struct {
	Width, Height int
	EncodedFormat EncodedFormat
	ColorSpace    ColorSpace
	ChannelCount  int
	GOP           GOPLength
	Levels        int // spatial decomposition levels the sample was encoded with
}

// Metadata exposes the six-scope metadata store to callers of Encoder
// and the Pool (attach_metadata in spec 6).
type Metadata = metadata.Store

// NewMetadata creates an empty Metadata store ticking at frameRate
// frames per second for timecode auto-increment.
func NewMetadata(frameRate float64) *Metadata {
	return metadata.NewStore(frameRate)
}
