package vision

import (
	"image/color"
	"math"
)

// jetLUT палитра «jet»: синий → голубой → зелёный → жёлтый → красный.
var jetLUT = func() [256]color.RGBA {
	var lut [256]color.RGBA
	for i := range lut {
		v := float64(i) / 255
		lut[i] = color.RGBA{
			R: saturate(255 * clamp01(1.5-math.Abs(4*v-3))),
			G: saturate(255 * clamp01(1.5-math.Abs(4*v-2))),
			B: saturate(255 * clamp01(1.5-math.Abs(4*v-1))),
			A: 0xff,
		}
	}
	return lut
}()

// Jet цвет для 8-битной важности.
func Jet(v uint8) color.RGBA {
	return jetLUT[v]
}
