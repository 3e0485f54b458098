package quality

import (
	"image"
	"image/color"

	"gonum.org/v1/gonum/stat"
)

// DefaultFloor is the sharpness a crop must exceed to become a golden frame.
const DefaultFloor = 50.0

// Laplacian scores crops by the variance of their 3×3 Laplacian response.
type Laplacian struct{}

// Score implements the tracking scorer contract.
func (Laplacian) Score(img image.Image) float64 {
	return Score(img)
}

// Score returns the population variance of the Laplacian of img's BT.601
// luma, using reflect-101 borders. Empty or nil crops score 0.
func Score(img image.Image) float64 {
	if img == nil {
		return 0
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return 0
	}

	gray := luma(img)
	response := make([]float64, 0, w*h)
	for y := 0; y < h; y++ {
		up := reflect101(y-1, h)
		down := reflect101(y+1, h)
		for x := 0; x < w; x++ {
			left := reflect101(x-1, w)
			right := reflect101(x+1, w)
			center := gray[y*w+x]
			lap := gray[up*w+x] + gray[down*w+x] + gray[y*w+left] + gray[y*w+right] - 4*center
			response = append(response, lap)
		}
	}
	return stat.PopVariance(response, nil)
}

// Trustworthy reports whether score clears floor. Golden-frame selection and
// the local-read shortcut both gate on it, each with its own floor.
func Trustworthy(score, floor float64) bool {
	return score > floor
}

func luma(img image.Image) []float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA64Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA64)
			r := float64(c.R >> 8)
			g := float64(c.G >> 8)
			b := float64(c.B >> 8)
			out[y*w+x] = 0.299*r + 0.587*g + 0.114*b
		}
	}
	return out
}

// reflect101 mirrors an out-of-range index without repeating the edge pixel
// (gfedcb|abcdefgh|gfedcba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}
