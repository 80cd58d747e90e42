//go:build tinygo

package hal

import "time"

// New returns the TinyGo HAL: serial diagnostics, no display (the console
// falls back to the logger), and a software 1ms tick stream.
func New() HAL {
	t := &tinygoTime{ch: make(chan uint64, 64)}
	go t.run()
	return &tinygoHAL{t: t}
}

type tinygoHAL struct {
	t *tinygoTime
}

func (h *tinygoHAL) Logger() Logger   { return serialLogger{} }
func (h *tinygoHAL) Display() Display { return noDisplay{} }
func (h *tinygoHAL) Time() Time       { return h.t }

type serialLogger struct{}

func (serialLogger) WriteLineString(s string) { println(s) }
func (serialLogger) WriteLineBytes(b []byte)  { println(string(b)) }

type noDisplay struct{}

func (noDisplay) Framebuffer() Framebuffer { return nil }

type tinygoTime struct {
	ch  chan uint64
	seq uint64
}

func (t *tinygoTime) Ticks() <-chan uint64 { return t.ch }

func (t *tinygoTime) run() {
	for {
		time.Sleep(time.Millisecond)
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
		}
	}
}
