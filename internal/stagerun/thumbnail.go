package stagerun

import (
	"image"

	"github.com/nfnt/resize"
)

// Thumbnail shrinks img to fit within maxW×maxH preserving aspect ratio.
// Images already inside the box are returned unchanged.
func Thumbnail(img image.Image, maxW, maxH int) image.Image {
	if maxW <= 0 || maxH <= 0 {
		return img
	}
	return resize.Thumbnail(uint(maxW), uint(maxH), img, resize.Lanczos3)
}
