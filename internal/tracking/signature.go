package tracking

import (
	"encoding/json"
	"image"
	"math"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"
)

const (
	signatureSize = 64
	signatureBins = 8
)

// Signature is the colour fingerprint of a crop: an 8-bin hue histogram
// followed by an 8-bin saturation histogram, each min-max normalised.
type Signature struct {
	Hue        []float64 `json:"h"`
	Saturation []float64 `json:"s"`
}

// ComputeSignature resizes crop to 64×64 and returns its JSON encoded
// signature. It returns "" for an empty crop.
func ComputeSignature(crop image.Image) string {
	sig, ok := signatureOf(crop)
	if !ok {
		return ""
	}
	data, err := json.Marshal(sig)
	if err != nil {
		return ""
	}
	return string(data)
}

func signatureOf(crop image.Image) (Signature, bool) {
	if crop == nil || crop.Bounds().Empty() {
		return Signature{}, false
	}
	small := image.NewRGBA(image.Rect(0, 0, signatureSize, signatureSize))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), crop, crop.Bounds(), draw.Src, nil)

	hue := make([]float64, signatureBins)
	sat := make([]float64, signatureBins)
	for i := 0; i < len(small.Pix); i += 4 {
		h, s := hueSaturation(small.Pix[i], small.Pix[i+1], small.Pix[i+2])
		hue[bin(h/360)]++
		sat[bin(s)]++
	}
	return Signature{Hue: minMax(hue), Saturation: minMax(sat)}, true
}

func bin(fraction float64) int {
	idx := int(fraction * signatureBins)
	if idx >= signatureBins {
		idx = signatureBins - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// hueSaturation converts 8-bit RGB to HSV hue in [0,360) and saturation in [0,1].
func hueSaturation(r8, g8, b8 uint8) (float64, float64) {
	r := float64(r8) / 255
	g := float64(g8) / 255
	b := float64(b8) / 255
	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	delta := hi - lo
	if hi == 0 || delta == 0 {
		return 0, 0
	}
	var h float64
	switch hi {
	case r:
		h = 60 * math.Mod((g-b)/delta, 6)
	case g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, delta / hi
}

func minMax(values []float64) []float64 {
	lo := floats.Min(values)
	hi := floats.Max(values)
	out := make([]float64, len(values))
	if hi == lo {
		return out
	}
	copy(out, values)
	floats.AddConst(-lo, out)
	floats.Scale(1/(hi-lo), out)
	return out
}
