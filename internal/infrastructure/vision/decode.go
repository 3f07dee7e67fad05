package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"leaf-doctor/internal/domain/entity"
)

// Decoder превращает байты загрузки в непрозрачное RGB-изображение.
type Decoder struct{}

// Decode декодирует JPEG/PNG/GIF/WebP/BMP/TIFF. Альфа-канал отбрасывается
// наложением на чёрный фон, серые снимки расширяются до трёх каналов.
func (Decoder) Decode(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", entity.ErrInvalidImage)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidImage, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: zero-size image", entity.ErrInvalidImage)
	}

	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out, nil
}

// toRGBA копия в *image.RGBA с началом координат в (0,0).
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// checkColor отклоняет пустые и одноканальные изображения.
func checkColor(img image.Image) error {
	if img == nil || img.Bounds().Empty() {
		return fmt.Errorf("%w: zero-size image", entity.ErrInvalidImage)
	}
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model, color.AlphaModel, color.Alpha16Model:
		return fmt.Errorf("%w: single-channel image", entity.ErrInvalidImage)
	}
	return nil
}
