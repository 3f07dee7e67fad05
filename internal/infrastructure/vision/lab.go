package vision

import "math"

// Преобразования sRGB ↔ CIE L*a*b* в 8-битной шкале OpenCV:
// L·255/100, a+128, b+128.

const (
	whiteX   = 0.950456
	whiteZ   = 1.088754
	labDelta = 0.008856
)

func srgbToLinear(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

func linearToSRGB(v float64) float64 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}

func labF(t float64) float64 {
	if t > labDelta {
		return math.Cbrt(t)
	}
	return 7.787*t + 16.0/116
}

func labFInv(t float64) float64 {
	if c := t * t * t; c > labDelta {
		return c
	}
	return (t - 16.0/116) / 7.787
}

// rgbToLab8 переводит 8-битный RGB в 8-битный Lab.
func rgbToLab8(r, g, b uint8) (uint8, uint8, uint8) {
	rl := srgbToLinear(float64(r) / 255)
	gl := srgbToLinear(float64(g) / 255)
	bl := srgbToLinear(float64(b) / 255)

	x := (0.412453*rl + 0.357580*gl + 0.180423*bl) / whiteX
	y := 0.212671*rl + 0.715160*gl + 0.072169*bl
	z := (0.019334*rl + 0.119193*gl + 0.950227*bl) / whiteZ

	var l float64
	if y > labDelta {
		l = 116*math.Cbrt(y) - 16
	} else {
		l = 903.3 * y
	}
	fy := labF(y)
	a := 500 * (labF(x) - fy)
	bb := 200 * (fy - labF(z))

	return saturate(l * 255 / 100), saturate(a + 128), saturate(bb + 128)
}

// lab8ToRGB обратное к rgbToLab8.
func lab8ToRGB(l8, a8, b8 uint8) (uint8, uint8, uint8) {
	l := float64(l8) * 100 / 255
	a := float64(a8) - 128
	b := float64(b8) - 128

	fy := (l + 16) / 116
	var y float64
	if l <= 8 {
		y = l / 903.3
		fy = 7.787*y + 16.0/116
	} else {
		y = fy * fy * fy
	}
	x := labFInv(fy+a/500) * whiteX
	z := labFInv(fy-b/200) * whiteZ

	r := 3.240479*x - 1.53715*y - 0.498535*z
	g := -0.969256*x + 1.875991*y + 0.041556*z
	bl := 0.055648*x - 0.204043*y + 1.057311*z

	return saturate(255 * linearToSRGB(clamp01(r))),
		saturate(255 * linearToSRGB(clamp01(g))),
		saturate(255 * linearToSRGB(clamp01(bl)))
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

// saturate округляет и обрезает до [0,255], как saturate_cast в OpenCV.
func saturate(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
