package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"leaf-doctor/internal/domain/entity"
)

func filled(w, h int, fill func(x, y int) color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, fill(x, y))
		}
	}
	return img
}

func gradient(x, y int) color.RGBA {
	return color.RGBA{R: uint8(x * 3), G: uint8(y * 5), B: uint8(x ^ y), A: 0xff}
}

func uniform(c color.RGBA) func(int, int) color.RGBA {
	return func(int, int) color.RGBA { return c }
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecoder_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"garbage", []byte("GIF89a but not really")},
		{"truncated png", encode(t, filled(8, 8, gradient))[:20]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decoder{}.Decode(tt.data)
			require.Nil(t, img)
			require.ErrorIs(t, err, entity.ErrInvalidImage)
		})
	}
}

func TestDecoder_GrayExpandsToRGB(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 4, 3))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i * 20)
	}

	img, err := Decoder{}.Decode(encode(t, gray))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 4, 3), img.Rect)
	for i := range gray.Pix {
		p := img.Pix[i*4 : i*4+4]
		require.Equal(t, []uint8{gray.Pix[i], gray.Pix[i], gray.Pix[i], 0xff}, []uint8(p))
	}
}

func TestDecoder_TransparentBecomesBlack(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 5, 5))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i] = 0xff
	}

	img, err := Decoder{}.Decode(encode(t, src))
	require.NoError(t, err)
	for i := 0; i < len(img.Pix); i += 4 {
		require.Equal(t, []uint8{0, 0, 0, 0xff}, []uint8(img.Pix[i:i+4]))
	}
}

func TestDecoder_JPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, filled(33, 17, gradient), nil))

	img, err := Decoder{}.Decode(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 33, img.Rect.Dx())
	require.Equal(t, 17, img.Rect.Dy())
}

func TestEnhancer_DeterministicAndPure(t *testing.T) {
	src := filled(40, 30, gradient)
	before := append([]uint8(nil), src.Pix...)
	e := NewEnhancer(DefaultEnhanceOptions())

	first, err := e.Enhance(src)
	require.NoError(t, err)
	second, err := e.Enhance(src)
	require.NoError(t, err)

	require.Equal(t, src.Rect, first.Rect)
	require.Equal(t, first.Pix, second.Pix)
	require.Equal(t, before, src.Pix)
	for i := 3; i < len(first.Pix); i += 4 {
		require.Equal(t, uint8(0xff), first.Pix[i])
	}
}

func TestEnhancer_UniformStaysUniform(t *testing.T) {
	out, err := NewEnhancer(DefaultEnhanceOptions()).Enhance(filled(24, 24, uniform(color.RGBA{R: 90, G: 140, B: 60, A: 0xff})))
	require.NoError(t, err)
	first := out.Pix[:4]
	for i := 0; i < len(out.Pix); i += 4 {
		require.Equal(t, first, out.Pix[i:i+4])
	}
}

func TestEnhancer_Rejects(t *testing.T) {
	e := NewEnhancer(DefaultEnhanceOptions())
	tests := []struct {
		name string
		img  image.Image
	}{
		{"gray", image.NewGray(image.Rect(0, 0, 8, 8))},
		{"alpha", image.NewAlpha(image.Rect(0, 0, 8, 8))},
		{"empty", image.NewRGBA(image.Rect(0, 0, 0, 0))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Enhance(tt.img)
			require.ErrorIs(t, err, entity.ErrInvalidImage)
		})
	}
}

func TestEnhanceOptions_Validate(t *testing.T) {
	require.NoError(t, DefaultEnhanceOptions().Validate())
	require.Error(t, EnhanceOptions{ClipLimit: -1, TileGrid: 8, SharpenWeight: 0.7}.Validate())
	require.Error(t, EnhanceOptions{ClipLimit: 2, TileGrid: 0, SharpenWeight: 0.7}.Validate())
	require.Error(t, EnhanceOptions{ClipLimit: 2, TileGrid: 8, SharpenWeight: 1.5}.Validate())
}

func TestClipHistogram_PreservesMass(t *testing.T) {
	var hist [256]int
	hist[0] = 784
	clipHistogram(&hist, 6)

	total := 0
	for _, c := range hist {
		total += c
		require.LessOrEqual(t, c, 10)
	}
	require.Equal(t, 784, total)
}

func TestReflect101(t *testing.T) {
	tests := []struct{ i, n, want int }{
		{-1, 5, 1},
		{-2, 5, 2},
		{5, 5, 3},
		{6, 5, 2},
		{2, 5, 2},
		{-3, 1, 0},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, reflect101(tt.i, tt.n), "reflect101(%d, %d)", tt.i, tt.n)
	}
}

func TestLab_RoundTrip(t *testing.T) {
	for _, c := range []color.RGBA{{0, 0, 0, 0xff}, {255, 255, 255, 0xff}, {34, 139, 34, 0xff}, {200, 30, 90, 0xff}} {
		l, a, b := rgbToLab8(c.R, c.G, c.B)
		r, g, bl := lab8ToRGB(l, a, b)
		require.InDelta(t, float64(c.R), float64(r), 4)
		require.InDelta(t, float64(c.G), float64(g), 4)
		require.InDelta(t, float64(c.B), float64(bl), 4)
	}
}

func TestPreprocessor_Shape(t *testing.T) {
	p := NewPreprocessor()
	for _, size := range []image.Point{{7, 5}, {50, 300}, {224, 224}, {1000, 10}} {
		tensor, err := p.Preprocess(filled(size.X, size.Y, gradient))
		require.NoError(t, err)
		require.Equal(t, [4]int{1, 3, entity.InputSize, entity.InputSize}, tensor.Shape)
		for _, v := range tensor.Data {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}
}

func TestPreprocessor_NormalizesBlack(t *testing.T) {
	tensor, err := NewPreprocessor().Preprocess(filled(64, 64, uniform(color.RGBA{A: 0xff})))
	require.NoError(t, err)
	for c := 0; c < 3; c++ {
		want := -imageNetMean[c] / imageNetStd[c]
		for _, v := range tensor.Plane(c) {
			require.InDelta(t, want, v, 1e-9)
		}
	}
}

func TestAugmenter_Views(t *testing.T) {
	src := filled(31, 21, gradient)
	views, err := NewAugmenter(DefaultAugmentOptions()).Views(src)
	require.NoError(t, err)
	require.Len(t, views, ViewCount)

	require.Equal(t, src.Pix, views[0].Pix)
	require.Equal(t, FlipHorizontal(src).Pix, views[1].Pix)
	require.Equal(t, Rotate(src, 5).Pix, views[2].Pix)
	require.Equal(t, Rotate(src, -5).Pix, views[3].Pix)
	for _, v := range views {
		require.Equal(t, src.Rect, v.Rect)
	}
}

func TestAugmenter_MirroredInputSwapsViews(t *testing.T) {
	a := NewAugmenter(DefaultAugmentOptions())
	src := filled(20, 16, gradient)

	views, err := a.Views(src)
	require.NoError(t, err)
	mirrored, err := a.Views(FlipHorizontal(src))
	require.NoError(t, err)

	require.Equal(t, views[0].Pix, mirrored[1].Pix)
	require.Equal(t, views[1].Pix, mirrored[0].Pix)
}

func TestRotate_FillsBlackAndKeepsCenter(t *testing.T) {
	white := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	out := Rotate(filled(100, 100, uniform(white)), 5)

	require.Equal(t, color.RGBA{A: 0xff}, out.RGBAAt(0, 0))
	require.Equal(t, color.RGBA{A: 0xff}, out.RGBAAt(99, 99))
	require.Equal(t, white, out.RGBAAt(50, 50))
}

func TestRotate_ZeroIsIdentity(t *testing.T) {
	src := filled(13, 9, gradient)
	require.Equal(t, src.Pix, Rotate(src, 0).Pix)
}

func TestAugmentOptions_Validate(t *testing.T) {
	require.NoError(t, DefaultAugmentOptions().Validate())
	require.Error(t, AugmentOptions{}.Validate())
	require.Error(t, AugmentOptions{RotationDegrees: 90}.Validate())
}

func TestJet_Endpoints(t *testing.T) {
	cold, hot := Jet(0), Jet(255)
	require.Equal(t, color.RGBA{B: 128, A: 0xff}, cold)
	require.Equal(t, color.RGBA{R: 128, A: 0xff}, hot)
}

func TestScaleSaliency(t *testing.T) {
	m := &entity.SaliencyMap{Width: 2, Height: 2, Values: []float64{1, 1, 1, 1}}
	g := ScaleSaliency(m, 10, 6)
	require.Equal(t, image.Rect(0, 0, 10, 6), g.Rect)
	for i := 0; i < len(g.Pix); i += 2 {
		v := uint16(g.Pix[i])<<8 | uint16(g.Pix[i+1])
		require.GreaterOrEqual(t, v, uint16(0xff00))
	}
}

func TestRenderer_WritesAndOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "static", "temp", "heatmap.png")
	r := NewRenderer(DefaultBlendOptions(), path)
	original := filled(40, 20, uniform(color.RGBA{A: 0xff}))

	cold := &entity.SaliencyMap{Width: 4, Height: 2, Values: make([]float64, 8)}
	overlay, err := r.Render(cold, original)
	require.NoError(t, err)
	require.Equal(t, path, overlay.Path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, overlay.PNG, written)

	img, err := png.Decode(bytes.NewReader(written))
	require.NoError(t, err)
	require.Equal(t, original.Rect, img.Bounds())
	r0, g0, b0, _ := img.At(10, 10).RGBA()
	require.Zero(t, r0)
	require.Zero(t, g0)
	require.Equal(t, uint32(51), b0>>8)

	hot := &entity.SaliencyMap{Width: 4, Height: 2, Values: []float64{1, 1, 1, 1, 1, 1, 1, 1}}
	second, err := r.Render(hot, original)
	require.NoError(t, err)
	written, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, second.PNG, written)
	require.NotEqual(t, overlay.PNG, second.PNG)
}

func TestRenderer_Failures(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	original := filled(8, 8, gradient)
	m := &entity.SaliencyMap{Width: 2, Height: 2, Values: []float64{0, 0.5, 0.5, 1}}

	_, err := NewRenderer(DefaultBlendOptions(), filepath.Join(blocker, "heatmap.png")).Render(m, original)
	require.ErrorIs(t, err, entity.ErrRenderFailure)

	r := NewRenderer(DefaultBlendOptions(), filepath.Join(t.TempDir(), "heatmap.png"))
	_, err = r.Render(&entity.SaliencyMap{Width: 2, Height: 2, Values: []float64{0, 2, 0, 0}}, original)
	require.ErrorIs(t, err, entity.ErrSaliencyUnavailable)
	_, err = r.Render(m, image.NewGray(image.Rect(0, 0, 8, 8)))
	require.ErrorIs(t, err, entity.ErrInvalidImage)
}

func TestBlendOptions_Validate(t *testing.T) {
	require.NoError(t, DefaultBlendOptions().Validate())
	require.Error(t, BlendOptions{ImageWeight: -0.1, HeatWeight: 0.4}.Validate())
}
