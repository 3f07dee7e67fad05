package vision

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"leaf-doctor/internal/domain/entity"
)

// Renderer накладывает карту Grad-CAM на исходное фото и пишет PNG.
type Renderer struct {
	blend BlendOptions
	file  *overlayFile
}

// NewRenderer рендерер на чистом Go, результат пишется в path.
func NewRenderer(blend BlendOptions, path string) *Renderer {
	return &Renderer{blend: blend, file: &overlayFile{path: path}}
}

// Render растягивает карту билинейно до размера фото, раскрашивает jet и смешивает.
func (r *Renderer) Render(m *entity.SaliencyMap, original image.Image) (*entity.Overlay, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := checkColor(original); err != nil {
		return nil, err
	}
	base := toRGBA(original)

	heat := ScaleSaliency(m, base.Rect.Dx(), base.Rect.Dy())
	out := image.NewRGBA(base.Rect)
	for i := 0; i < len(heat.Pix)/2; i++ {
		v := float64(uint16(heat.Pix[2*i])<<8|uint16(heat.Pix[2*i+1])) / 0xffff
		c := Jet(uint8(255 * v))
		p := base.Pix[i*4 : i*4+3]
		q := out.Pix[i*4 : i*4+4]
		q[0] = saturate(r.blend.ImageWeight*float64(p[0]) + r.blend.HeatWeight*float64(c.R))
		q[1] = saturate(r.blend.ImageWeight*float64(p[1]) + r.blend.HeatWeight*float64(c.G))
		q[2] = saturate(r.blend.ImageWeight*float64(p[2]) + r.blend.HeatWeight*float64(c.B))
		q[3] = 0xff
	}
	return r.file.write(out)
}

// ScaleSaliency переводит карту в Gray16 и растягивает до w×h билинейно.
func ScaleSaliency(m *entity.SaliencyMap, w, h int) *image.Gray16 {
	small := image.NewGray16(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Values {
		u := uint16(math.Round(clamp01(v) * 0xffff))
		small.Pix[2*i] = uint8(u >> 8)
		small.Pix[2*i+1] = uint8(u)
	}
	out := image.NewGray16(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(out, out.Bounds(), small, small.Bounds(), draw.Src, nil)
	return out
}
