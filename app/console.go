package app

import (
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"

	"ember/hal"
)

// console carries user program output to whatever the platform offers: a
// terminal rendered on the framebuffer when there is a display, and the
// diagnostic logger line-by-line either way.
type console struct {
	term  *tinyterm.Terminal
	dirty bool

	log  hal.Logger
	line []byte
}

func newConsole(disp hal.Display, log hal.Logger) *console {
	c := &console{log: log}
	if disp == nil {
		return c
	}
	fb := disp.Framebuffer()
	if fb == nil {
		return c
	}

	fb.ClearRGB(0, 0, 0)
	c.term = tinyterm.NewTerminal(newFBDisplay(fb))
	c.term.Configure(&tinyterm.Config{
		Font:              &proggy.TinySZ8pt7b,
		FontHeight:        10,
		FontOffset:        6,
		UseSoftwareScroll: true,
	})
	return c
}

func (c *console) Write(p []byte) (int, error) {
	if c.term != nil {
		c.term.Write(p)
		c.dirty = true
	}
	if c.log != nil {
		c.mirror(p)
	}
	return len(p), nil
}

// mirror buffers bytes into whole lines for the logger.
func (c *console) mirror(p []byte) {
	for _, b := range p {
		if b == '\n' {
			c.log.WriteLineBytes(c.line)
			c.line = c.line[:0]
			continue
		}
		c.line = append(c.line, b)
	}
}

// flush pushes pending terminal output to the display and drains any
// unterminated logger line.
func (c *console) flush() {
	if c.term != nil && c.dirty {
		c.term.Display()
		c.dirty = false
	}
	if c.log != nil && len(c.line) > 0 {
		c.log.WriteLineBytes(c.line)
		c.line = c.line[:0]
	}
}
