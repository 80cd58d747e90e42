package hal

import "testing"

func TestRGB565RoundTrip(t *testing.T) {
	cases := []struct{ r, g, b uint8 }{
		{0, 0, 0},
		{255, 255, 255},
		{255, 0, 0},
		{0, 255, 0},
		{0, 0, 255},
	}
	for _, c := range cases {
		r, g, b := rgb888From565(rgb565(c.r, c.g, c.b))
		if r != c.r || g != c.g || b != c.b {
			t.Errorf("(%d,%d,%d) round-tripped to (%d,%d,%d)", c.r, c.g, c.b, r, g, b)
		}
	}
}

func TestRGB565Packing(t *testing.T) {
	if got := rgb565(255, 0, 0); got != 0xF800 {
		t.Errorf("red = %#04x, want 0xf800", got)
	}
	if got := rgb565(0, 255, 0); got != 0x07E0 {
		t.Errorf("green = %#04x, want 0x07e0", got)
	}
	if got := rgb565(0, 0, 255); got != 0x001F {
		t.Errorf("blue = %#04x, want 0x001f", got)
	}
}
