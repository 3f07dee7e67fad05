package vision

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// ViewCount число видов TTA.
const ViewCount = 4

// AugmentOptions угол поворота для видов 3 и 4.
type AugmentOptions struct {
	RotationDegrees float64
}

// DefaultAugmentOptions поворот на ±5°.
func DefaultAugmentOptions() AugmentOptions {
	return AugmentOptions{RotationDegrees: 5}
}

// Validate угол должен быть в (0, 45].
func (o AugmentOptions) Validate() error {
	if o.RotationDegrees <= 0 || o.RotationDegrees > 45 {
		return fmt.Errorf("rotation must be in (0,45] degrees, got %v", o.RotationDegrees)
	}
	return nil
}

// Augmenter детерминированные геометрические виды для TTA.
type Augmenter struct {
	opts AugmentOptions
}

// NewAugmenter создаёт генератор видов.
func NewAugmenter(opts AugmentOptions) *Augmenter {
	return &Augmenter{opts: opts}
}

// Views возвращает ровно 4 вида в фиксированном порядке: исходный,
// зеркальный по горизонтали, поворот +угол и −угол против часовой стрелки.
func (a *Augmenter) Views(img image.Image) ([]*image.RGBA, error) {
	if err := checkColor(img); err != nil {
		return nil, err
	}
	src := toRGBA(img)
	return []*image.RGBA{
		src,
		FlipHorizontal(src),
		Rotate(src, a.opts.RotationDegrees),
		Rotate(src, -a.opts.RotationDegrees),
	}, nil
}

// FlipHorizontal зеркалит изображение слева направо.
func FlipHorizontal(src *image.RGBA) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s := src.PixOffset(src.Rect.Min.X+x, src.Rect.Min.Y+y)
			d := out.PixOffset(w-1-x, y)
			copy(out.Pix[d:d+4], src.Pix[s:s+4])
		}
	}
	return out
}

// Rotate поворачивает вокруг центра на degrees против часовой стрелки
// без расширения холста. Выпавшие пиксели чёрные, выборка ближайшая.
func Rotate(src *image.RGBA, degrees float64) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	theta := degrees * math.Pi / 180
	sin, cos := math.Sincos(theta)
	cx, cy := float64(w)/2, float64(h)/2
	s2d := f64.Aff3{
		cos, sin, cx - cx*cos - cy*sin,
		-sin, cos, cy + cx*sin - cy*cos,
	}
	draw.NearestNeighbor.Transform(out, s2d, src, src.Bounds(), draw.Src, nil)
	return out
}
