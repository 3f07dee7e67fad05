package vision

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"

	"leaf-doctor/internal/domain/entity"
)

// Статистики ImageNet, на которых нормализовались обучающие данные.
var (
	imageNetMean = [3]float64{0.485, 0.456, 0.406}
	imageNetStd  = [3]float64{0.229, 0.224, 0.225}
)

// Preprocessor приводит RGB-изображение к тензору 1×3×224×224.
type Preprocessor struct {
	size uint
}

// NewPreprocessor создаёт препроцессор для входа entity.InputSize.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{size: entity.InputSize}
}

// Preprocess: билинейный resize, [0,1], (v-mean)/std по каналам, батч 1.
func (p *Preprocessor) Preprocess(img image.Image) (*entity.Tensor, error) {
	if err := checkColor(img); err != nil {
		return nil, err
	}
	resized := toRGBA(resize.Resize(p.size, p.size, img, resize.Bilinear))
	side := int(p.size)
	if resized.Rect.Dx() != side || resized.Rect.Dy() != side {
		return nil, fmt.Errorf("resize produced %dx%d, want %dx%d", resized.Rect.Dx(), resized.Rect.Dy(), side, side)
	}

	t := entity.NewTensor(3, side, side)
	for c := 0; c < 3; c++ {
		plane := t.Plane(c)
		for i := range plane {
			v := float64(resized.Pix[i*4+c]) / 255
			plane[i] = (v - imageNetMean[c]) / imageNetStd[c]
		}
	}
	return t, nil
}
