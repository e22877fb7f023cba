package engine

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/cineform/codec/internal/bitstream"
	"github.com/cineform/codec/internal/wavelet"
)

func lossless(level int, band wavelet.Band) float64 { return 1 }

func TestEncodeDecodeChannelRoundTripLossless(t *testing.T) {
	const width, height = 16, 16
	r := rand.New(rand.NewSource(7))
	data := make([]int32, width*height)
	for i := range data {
		data[i] = int32(r.Intn(200) - 100)
	}
	orig := make([]int32, len(data))
	copy(orig, data)

	encodeTree := wavelet.NewTree(width, height, 2)
	var buf bytes.Buffer
	w := bitstream.NewWriter(&buf)
	if err := EncodeChannel(w, 0, data, width, height, encodeTree, lossless); err != nil {
		t.Fatalf("EncodeChannel: %v", err)
	}
	if err := w.WriteSampleEnd(); err != nil {
		t.Fatalf("WriteSampleEnd: %v", err)
	}

	tuples, err := bitstream.ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	// Drop the leading channel-count tuple and trailing SAMPLE_END; what
	// remains is the per-band tuple stream DecodeChannel expects.
	bandTuples := tuples[1 : len(tuples)-1]

	decodeTree := wavelet.NewTree(width, height, 2)
	out, warnings, err := DecodeChannel(bandTuples, 0, width, height, 0, decodeTree, lossless)
	if err != nil {
		t.Fatalf("DecodeChannel: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", warnings)
	}
	if len(out) != len(orig) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(orig))
	}
	for i := range orig {
		if out[i] != orig[i] {
			t.Fatalf("out[%d] = %d, want %d", i, out[i], orig[i])
		}
	}
}

func TestEncodeChannelOrdersDeepestLLOutward(t *testing.T) {
	const width, height = 8, 8
	data := make([]int32, width*height)
	tree := wavelet.NewTree(width, height, 2)

	var buf bytes.Buffer
	w := bitstream.NewWriter(&buf)
	if err := EncodeChannel(w, 0, data, width, height, tree, lossless); err != nil {
		t.Fatalf("EncodeChannel: %v", err)
	}
	w.WriteSampleEnd()

	tuples, err := bitstream.ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	// The first subband tuple (after the channel-count header) must carry
	// the coarsest level, since subbands are serialized deepest-LL-outward.
	var firstSubband *bitstream.Tuple
	for i := range tuples {
		if tuples[i].Tag == bitstream.TagSubbandIndex {
			firstSubband = &tuples[i]
			break
		}
	}
	if firstSubband == nil {
		t.Fatal("no subband-index tuple found")
	}
	level := firstSubband.Value >> 2
	if int(level) != tree.Levels()-1 {
		t.Errorf("first coded subband level = %d, want coarsest level %d", level, tree.Levels()-1)
	}
}
