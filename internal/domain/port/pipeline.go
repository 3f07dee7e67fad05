package port

import (
	"context"
	"image"

	"leaf-doctor/internal/domain/entity"
)

// ImageDecoder декодирует загруженные байты в RGB.
type ImageDecoder interface {
	// Decode возвращает entity.ErrInvalidImage для пустых и битых данных
	Decode(data []byte) (*image.RGBA, error)
}

// ImageEnhancer нормализует контраст и резкость.
type ImageEnhancer interface {
	Enhance(img image.Image) (*image.RGBA, error)
}

// Augmenter строит фиксированный набор видов для TTA.
type Augmenter interface {
	Views(img image.Image) ([]*image.RGBA, error)
}

// Preprocessor переводит изображение во входной тензор классификатора.
type Preprocessor interface {
	Preprocess(img image.Image) (*entity.Tensor, error)
}

// Classifier замороженная сеть: тензор → логиты по entity.Labels.
type Classifier interface {
	Logits(ctx context.Context, input *entity.Tensor) ([]float64, error)
}

// SaliencyEngine карта важности для выбранного класса.
type SaliencyEngine interface {
	// Map возвращает entity.ErrSaliencyUnavailable, если карту построить нельзя
	Map(ctx context.Context, input *entity.Tensor, classIdx int) (*entity.SaliencyMap, error)
}

// HeatmapRenderer накладывает карту на фото и сохраняет результат.
type HeatmapRenderer interface {
	// Render возвращает entity.ErrRenderFailure при ошибке записи
	Render(m *entity.SaliencyMap, original image.Image) (*entity.Overlay, error)
}
