package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

var iconOnce struct {
	sync.Once
	data []byte
}

// iconBytes renders the 16x16 tray icon at runtime: a dashed selection frame,
// the same motif the capture overlay draws.
func iconBytes() []byte {
	iconOnce.Do(func() {
		const size = 16
		img := image.NewRGBA(image.Rect(0, 0, size, size))
		frame := color.RGBA{R: 0x00, G: 0x78, B: 0xD4, A: 0xFF}
		fill := color.RGBA{R: 0x00, G: 0x78, B: 0xD4, A: 0x30}

		for y := 3; y < 13; y++ {
			for x := 2; x < 14; x++ {
				img.SetRGBA(x, y, fill)
			}
		}
		for x := 2; x < 14; x++ {
			if x%2 == 0 {
				img.SetRGBA(x, 3, frame)
				img.SetRGBA(x, 12, frame)
			}
		}
		for y := 3; y < 13; y++ {
			if y%2 == 1 {
				img.SetRGBA(2, y, frame)
				img.SetRGBA(13, y, frame)
			}
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err == nil {
			iconOnce.data = buf.Bytes()
		}
	})
	return iconOnce.data
}
