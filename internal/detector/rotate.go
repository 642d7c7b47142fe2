package detector

import (
	"image"

	"github.com/disintegration/imaging"
)

// QuarterTurns converts a frame orientation in degrees into the number of
// counter-clockwise quarter turns that bring the frame upright, in [0, 3].
// Orientation is expected to be a multiple of 90; other values truncate.
func QuarterTurns(rotationDegrees int) int {
	k := (-rotationDegrees / 90) % 4
	if k < 0 {
		k += 4
	}
	return k
}

// Rotate applies QuarterTurns(rotationDegrees) counter-clockwise quarter
// turns to img. The input is returned unchanged when no turn is needed.
func Rotate(img image.Image, rotationDegrees int) image.Image {
	switch QuarterTurns(rotationDegrees) {
	case 1:
		return imaging.Rotate90(img)
	case 2:
		return imaging.Rotate180(img)
	case 3:
		return imaging.Rotate270(img)
	default:
		return img
	}
}
