//go:build gocv
// +build gocv

package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"leaf-doctor/internal/domain/entity"
	"leaf-doctor/internal/domain/port"
)

// Backend имя реализации обработки изображений в этой сборке.
const Backend = "gocv"

// NewDefaultEnhancer в сборке с тегом gocv использует OpenCV.
func NewDefaultEnhancer(opts EnhanceOptions) port.ImageEnhancer {
	return NewCVEnhancer(opts)
}

// NewDefaultRenderer в сборке с тегом gocv использует OpenCV.
func NewDefaultRenderer(blend BlendOptions, path string) port.HeatmapRenderer {
	return NewCVRenderer(blend, path)
}

// CVEnhancer та же обработка, что Enhancer, но через OpenCV.
// Внутри Mat хранит BGR; на входе и выходе RGB image.Image.
type CVEnhancer struct {
	opts EnhanceOptions
}

// NewCVEnhancer создаёт улучшатель на OpenCV.
func NewCVEnhancer(opts EnhanceOptions) *CVEnhancer {
	return &CVEnhancer{opts: opts}
}

// Enhance Lab + CLAHE по L, затем filter2D и AddWeighted.
func (e *CVEnhancer) Enhance(img image.Image) (*image.RGBA, error) {
	if err := checkColor(img); err != nil {
		return nil, err
	}
	bgr, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidImage, err)
	}
	defer bgr.Close()
	if bgr.Empty() {
		return nil, fmt.Errorf("%w: empty image", entity.ErrInvalidImage)
	}

	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(bgr, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	for i := range channels {
		defer channels[i].Close()
	}
	if len(channels) < 3 {
		return nil, fmt.Errorf("%w: invalid lab channels", entity.ErrInvalidImage)
	}

	clahe := gocv.NewCLAHEWithParams(e.opts.ClipLimit, image.Pt(e.opts.TileGrid, e.opts.TileGrid))
	defer clahe.Close()
	light := gocv.NewMat()
	defer light.Close()
	clahe.Apply(channels[0], &light)

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge([]gocv.Mat{light, channels[1], channels[2]}, &merged)

	equalized := gocv.NewMat()
	defer equalized.Close()
	gocv.CvtColor(merged, &equalized, gocv.ColorLabToBGR)

	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	defer kernel.Close()
	for y := range sharpenKernel {
		for x, v := range sharpenKernel[y] {
			kernel.SetFloatAt(y, x, float32(v))
		}
	}
	sharp := gocv.NewMat()
	defer sharp.Close()
	gocv.Filter2D(equalized, &sharp, -1, kernel, image.Pt(-1, -1), 0, gocv.BorderDefault)

	blended := gocv.NewMat()
	defer blended.Close()
	gocv.AddWeighted(sharp, e.opts.SharpenWeight, equalized, 1-e.opts.SharpenWeight, 0, &blended)

	out, err := blended.ToImage()
	if err != nil {
		return nil, err
	}
	return toRGBA(out), nil
}

// CVRenderer рендерер наложения через OpenCV: Resize, ApplyColorMap, AddWeighted.
type CVRenderer struct {
	blend BlendOptions
	file  *overlayFile
}

// NewCVRenderer создаёт рендерер на OpenCV.
func NewCVRenderer(blend BlendOptions, path string) *CVRenderer {
	return &CVRenderer{blend: blend, file: &overlayFile{path: path}}
}

func (r *CVRenderer) Render(m *entity.SaliencyMap, original image.Image) (*entity.Overlay, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	base, err := gocv.ImageToMatRGB(original)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidImage, err)
	}
	defer base.Close()
	if base.Empty() {
		return nil, fmt.Errorf("%w: empty image", entity.ErrRenderFailure)
	}

	cam := gocv.NewMatWithSize(m.Height, m.Width, gocv.MatTypeCV32F)
	defer cam.Close()
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			cam.SetFloatAt(y, x, float32(m.At(x, y)))
		}
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(cam, &resized, image.Pt(base.Cols(), base.Rows()), 0, 0, gocv.InterpolationLinear)

	scaled := gocv.NewMat()
	defer scaled.Close()
	resized.ConvertToWithParams(&scaled, gocv.MatTypeCV8U, 255, 0)

	heat := gocv.NewMat()
	defer heat.Close()
	gocv.ApplyColorMap(scaled, &heat, gocv.ColormapJet)

	overlay := gocv.NewMat()
	defer overlay.Close()
	gocv.AddWeighted(base, r.blend.ImageWeight, heat, r.blend.HeatWeight, 0, &overlay)

	img, err := overlay.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrRenderFailure, err)
	}
	return r.file.write(img)
}
