//go:build !tinygo

// mkprog assembles a user program source file into a flat binary image
// suitable for loading into a batch window.
package main

import (
	"flag"
	"fmt"
	"os"

	"ember/asm"
)

func main() {
	var (
		inPath  = flag.String("in", "", "Input assembly source.")
		outPath = flag.String("out", "", "Output flat binary.")
		origin  = flag.Uint("org", 0x80400000, "Load address the image is linked for.")
	)
	flag.Parse()

	if *inPath == "" || *outPath == "" {
		fatalf("usage: mkprog -in prog.s -out prog.bin [-org 0x80400000]")
	}

	src, err := os.ReadFile(*inPath)
	if err != nil {
		fatalf("read: %v", err)
	}

	img, err := asm.Assemble(string(src), uint32(*origin))
	if err != nil {
		fatalf("%v", err)
	}

	if err := os.WriteFile(*outPath, img, 0o644); err != nil {
		fatalf("write: %v", err)
	}
	fmt.Printf("%s: %d bytes at 0x%08x\n", *outPath, len(img), uint32(*origin))
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}
