// Command cfhdinfo parses a CineForm sample's header tuples and prints
// its geometry, mirroring the teacher's thin example-program layer
// (github.com/mrjoshuak/go-jpeg2000 ships no dedicated info command, but
// original_source/Example/TestCFHD.cpp plays the same role: a minimal
// driver over the public API for inspection rather than production use).
package main

import (
	"fmt"
	"os"

	"github.com/cineform/codec"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: cfhdinfo <sample-file>")
		os.Exit(2)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "cfhdinfo: %v\n", err)
		os.Exit(1)
	}

	header, err := cineform.ParseSampleHeader(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cfhdinfo: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("dimensions:     %dx%d\n", header.Width, header.Height)
	fmt.Printf("encoded format: %s\n", header.EncodedFormat)
	fmt.Printf("channel count:  %d\n", header.ChannelCount)
	fmt.Printf("levels:         %d\n", header.Levels)
	fmt.Printf("GOP:            %d\n", header.GOP)
}
