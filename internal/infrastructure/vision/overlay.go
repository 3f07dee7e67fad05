package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"leaf-doctor/internal/domain/entity"
)

// BlendOptions веса смешивания исходного фото и тепловой карты.
type BlendOptions struct {
	ImageWeight float64
	HeatWeight  float64
}

// DefaultBlendOptions 0.6 фото / 0.4 карта.
func DefaultBlendOptions() BlendOptions {
	return BlendOptions{ImageWeight: 0.6, HeatWeight: 0.4}
}

// Validate веса неотрицательны и в сумме не больше 1.
func (o BlendOptions) Validate() error {
	if o.ImageWeight < 0 || o.HeatWeight < 0 || o.ImageWeight+o.HeatWeight > 1+1e-9 {
		return fmt.Errorf("blend weights %v/%v must be non-negative with sum <= 1", o.ImageWeight, o.HeatWeight)
	}
	return nil
}

// overlayFile единственный файл наложения. Каждый запрос перезаписывает
// его атомарно (временный файл + rename), читатели не видят половину PNG.
type overlayFile struct {
	mu   sync.Mutex
	path string
}

func (f *overlayFile) write(img image.Image) (*entity.Overlay, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encode png: %v", entity.ErrRenderFailure, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrRenderFailure, err)
	}
	tmp, err := os.CreateTemp(dir, ".heatmap-*.png")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrRenderFailure, err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(buf.Bytes())
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: write overlay: %v", entity.ErrRenderFailure, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrRenderFailure, err)
	}
	return &entity.Overlay{Path: f.path, PNG: buf.Bytes()}, nil
}
