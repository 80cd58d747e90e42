// Package hal is the only contact point between the kernel and the outside
// world: diagnostics, the console display, and a time base.
package hal

import "errors"

var ErrNotImplemented = errors.New("not implemented")

// Logger writes newline-delimited diagnostic lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a pixel buffer plus a "present" hook. The console terminal
// renders into it.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the framebuffer, if the platform has one.
type Display interface {
	Framebuffer() Framebuffer
}

// Time provides a base tick stream (1ms per tick on host).
type Time interface {
	Ticks() <-chan uint64
}

// HAL bundles the platform services the batch system runs on.
type HAL interface {
	Logger() Logger
	Display() Display
	Time() Time
}
