package vision

import (
	"fmt"
	"image"
)

// EnhanceOptions параметры нормализации контраста и резкости.
type EnhanceOptions struct {
	ClipLimit     float64 // порог CLAHE
	TileGrid      int     // сетка плиток CLAHE, TileGrid×TileGrid
	SharpenWeight float64 // доля резкого изображения в смеси
}

// DefaultEnhanceOptions значения, на которых обучалась модель.
func DefaultEnhanceOptions() EnhanceOptions {
	return EnhanceOptions{ClipLimit: 2.0, TileGrid: 8, SharpenWeight: 0.7}
}

// Validate проверяет диапазоны параметров.
func (o EnhanceOptions) Validate() error {
	if o.ClipLimit < 0 {
		return fmt.Errorf("clip limit must be non-negative, got %v", o.ClipLimit)
	}
	if o.TileGrid < 1 {
		return fmt.Errorf("tile grid must be positive, got %d", o.TileGrid)
	}
	if o.SharpenWeight < 0 || o.SharpenWeight > 1 {
		return fmt.Errorf("sharpen weight must be in [0,1], got %v", o.SharpenWeight)
	}
	return nil
}

// sharpenKernel фильтр повышения резкости 3×3.
var sharpenKernel = [3][3]int{
	{-1, -1, -1},
	{-1, 9, -1},
	{-1, -1, -1},
}

// Enhancer выравнивает контраст по светлоте (Lab + CLAHE) и добавляет резкость.
type Enhancer struct {
	opts EnhanceOptions
}

// NewEnhancer создаёт улучшатель на чистом Go.
func NewEnhancer(opts EnhanceOptions) *Enhancer {
	return &Enhancer{opts: opts}
}

// Enhance возвращает новое изображение, вход не меняется.
func (e *Enhancer) Enhance(img image.Image) (*image.RGBA, error) {
	if err := checkColor(img); err != nil {
		return nil, err
	}
	src := toRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	n := w * h

	light := make([]uint8, n)
	chromaA := make([]uint8, n)
	chromaB := make([]uint8, n)
	for i := 0; i < n; i++ {
		p := src.Pix[i*4 : i*4+3]
		light[i], chromaA[i], chromaB[i] = rgbToLab8(p[0], p[1], p[2])
	}
	light = clahe(light, w, h, e.opts.ClipLimit, e.opts.TileGrid)

	equalized := image.NewRGBA(src.Rect)
	for i := 0; i < n; i++ {
		p := equalized.Pix[i*4 : i*4+4]
		p[0], p[1], p[2] = lab8ToRGB(light[i], chromaA[i], chromaB[i])
		p[3] = 0xff
	}

	return e.sharpen(equalized), nil
}

// sharpen свёртка с sharpenKernel (reflect-101) и смешивание с исходником.
func (e *Enhancer) sharpen(src *image.RGBA) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	sw := e.opts.SharpenWeight
	out := image.NewRGBA(src.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := src.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				acc := 0
				for ky := -1; ky <= 1; ky++ {
					yy := reflect101(y+ky, h)
					for kx := -1; kx <= 1; kx++ {
						xx := reflect101(x+kx, w)
						acc += sharpenKernel[ky+1][kx+1] * int(src.Pix[src.PixOffset(xx, yy)+c])
					}
				}
				sharp := saturate(float64(acc))
				out.Pix[o+c] = saturate(sw*float64(sharp) + (1-sw)*float64(src.Pix[o+c]))
			}
			out.Pix[o+3] = 0xff
		}
	}
	return out
}
