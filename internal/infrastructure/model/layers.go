package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"leaf-doctor/internal/domain/entity"
)

// layer звено сети. Backward получает вход и выход прямого прохода,
// поэтому слой не хранит состояния между вызовами.
type layer interface {
	Name() string
	Forward(x *entity.Tensor) (*entity.Tensor, error)
	Backward(x, y, dy *entity.Tensor) (*entity.Tensor, error)
}

// conv2d свёртка через im2col + GEMM. Ядро хранится как out × (in·k·k).
type conv2d struct {
	name   string
	weight *mat.Dense
	bias   []float64
	in     int
	out    int
	kernel int
	stride int
	pad    int
}

func newConv2D(name string, weight, bias *mat.Dense, in, stride int, same bool) (*conv2d, error) {
	out, cols := weight.Dims()
	if in <= 0 || cols%in != 0 {
		return nil, fmt.Errorf("%s: weight has %d columns, not divisible by %d input channels", name, cols, in)
	}
	k := 1
	for k*k < cols/in {
		k++
	}
	if k*k != cols/in {
		return nil, fmt.Errorf("%s: %d columns do not form a square kernel over %d channels", name, cols, in)
	}
	if bias == nil {
		return nil, fmt.Errorf("%s: missing bias", name)
	}
	if r, c := bias.Dims(); r*c != out {
		return nil, fmt.Errorf("%s: bias has %d values, want %d", name, r*c, out)
	}

	c := &conv2d{
		name:   name,
		weight: weight,
		bias:   flatten(bias),
		in:     in,
		out:    out,
		kernel: k,
		stride: k,
	}
	if stride > 0 {
		c.stride = stride
	}
	if same {
		if k%2 == 0 {
			return nil, fmt.Errorf("%s: same padding needs an odd kernel, got %d", name, k)
		}
		c.pad = k / 2
	}
	return c, nil
}

func (c *conv2d) Name() string { return c.name }

func (c *conv2d) outSize(h, w int) (int, int) {
	return (h+2*c.pad-c.kernel)/c.stride + 1, (w+2*c.pad-c.kernel)/c.stride + 1
}

func (c *conv2d) Forward(x *entity.Tensor) (*entity.Tensor, error) {
	if x.Channels() != c.in {
		return nil, fmt.Errorf("%s: input has %d channels, want %d", c.name, x.Channels(), c.in)
	}
	oh, ow := c.outSize(x.Height(), x.Width())
	if oh <= 0 || ow <= 0 {
		return nil, fmt.Errorf("%s: input %dx%d smaller than kernel %d", c.name, x.Height(), x.Width(), c.kernel)
	}

	cols := c.im2col(x, oh, ow)
	y := entity.NewTensor(c.out, oh, ow)
	dst := mat.NewDense(c.out, oh*ow, y.Data)
	dst.Mul(c.weight, cols)
	for o := 0; o < c.out; o++ {
		plane := y.Plane(o)
		for i := range plane {
			plane[i] += c.bias[o]
		}
	}
	return y, nil
}

// Backward градиент по входу: col2im(Wᵀ·dy). Градиенты весов не нужны.
func (c *conv2d) Backward(x, _, dy *entity.Tensor) (*entity.Tensor, error) {
	oh, ow := c.outSize(x.Height(), x.Width())
	if dy.Channels() != c.out || dy.Height() != oh || dy.Width() != ow {
		return nil, fmt.Errorf("%s: gradient shape %v does not match output %dx%dx%d", c.name, dy.Shape, c.out, oh, ow)
	}
	grad := mat.NewDense(c.out, oh*ow, dy.Data)
	var cols mat.Dense
	cols.Mul(c.weight.T(), grad)

	dx := entity.NewTensor(x.Channels(), x.Height(), x.Width())
	c.col2im(&cols, dx, oh, ow)
	return dx, nil
}

func (c *conv2d) im2col(x *entity.Tensor, oh, ow int) *mat.Dense {
	k := c.kernel
	h, w := x.Height(), x.Width()
	cols := mat.NewDense(c.in*k*k, oh*ow, nil)
	raw := cols.RawMatrix()
	for ci := 0; ci < c.in; ci++ {
		plane := x.Plane(ci)
		for ky := 0; ky < k; ky++ {
			for kx := 0; kx < k; kx++ {
				row := raw.Data[((ci*k+ky)*k+kx)*raw.Stride:]
				for oy := 0; oy < oh; oy++ {
					iy := oy*c.stride + ky - c.pad
					if iy < 0 || iy >= h {
						continue
					}
					for ox := 0; ox < ow; ox++ {
						ix := ox*c.stride + kx - c.pad
						if ix < 0 || ix >= w {
							continue
						}
						row[oy*ow+ox] = plane[iy*w+ix]
					}
				}
			}
		}
	}
	return cols
}

func (c *conv2d) col2im(cols *mat.Dense, dx *entity.Tensor, oh, ow int) {
	k := c.kernel
	h, w := dx.Height(), dx.Width()
	raw := cols.RawMatrix()
	for ci := 0; ci < c.in; ci++ {
		plane := dx.Plane(ci)
		for ky := 0; ky < k; ky++ {
			for kx := 0; kx < k; kx++ {
				row := raw.Data[((ci*k+ky)*k+kx)*raw.Stride:]
				for oy := 0; oy < oh; oy++ {
					iy := oy*c.stride + ky - c.pad
					if iy < 0 || iy >= h {
						continue
					}
					for ox := 0; ox < ow; ox++ {
						ix := ox*c.stride + kx - c.pad
						if ix < 0 || ix >= w {
							continue
						}
						plane[iy*w+ix] += row[oy*ow+ox]
					}
				}
			}
		}
	}
}

// residualBlock y = x + ReLU(conv(x)).
type residualBlock struct {
	conv *conv2d
}

func (b *residualBlock) Name() string { return b.conv.name }

func (b *residualBlock) Forward(x *entity.Tensor) (*entity.Tensor, error) {
	z, err := b.conv.Forward(x)
	if err != nil {
		return nil, err
	}
	if !z.SameShape(x) {
		return nil, fmt.Errorf("%s: residual shape mismatch %v vs %v", b.Name(), z.Shape, x.Shape)
	}
	for i, v := range z.Data {
		if v < 0 {
			v = 0
		}
		z.Data[i] = x.Data[i] + v
	}
	return z, nil
}

// Backward маску ReLU восстанавливаем из y - x: ReLU(z) > 0 ⇔ z > 0.
func (b *residualBlock) Backward(x, y, dy *entity.Tensor) (*entity.Tensor, error) {
	dz := dy.Clone()
	for i := range dz.Data {
		if y.Data[i]-x.Data[i] <= 0 {
			dz.Data[i] = 0
		}
	}
	dx, err := b.conv.Backward(x, nil, dz)
	if err != nil {
		return nil, err
	}
	for i := range dx.Data {
		dx.Data[i] += dy.Data[i]
	}
	return dx, nil
}

// linear классификационная голова поверх глобального среднего пула.
type linear struct {
	weight *mat.Dense // classes × features
	bias   []float64
}

func (l *linear) pool(x *entity.Tensor) []float64 {
	features := make([]float64, x.Channels())
	n := float64(x.Height() * x.Width())
	for c := range features {
		var sum float64
		for _, v := range x.Plane(c) {
			sum += v
		}
		features[c] = sum / n
	}
	return features
}

func (l *linear) Forward(x *entity.Tensor) ([]float64, error) {
	classes, in := l.weight.Dims()
	if x.Channels() != in {
		return nil, fmt.Errorf("head: feature map has %d channels, want %d", x.Channels(), in)
	}
	logits := mat.NewVecDense(classes, nil)
	logits.MulVec(l.weight, mat.NewVecDense(in, l.pool(x)))
	out := make([]float64, classes)
	for i := range out {
		out[i] = logits.AtVec(i) + l.bias[i]
	}
	return out, nil
}

// Backward градиент одного логита по карте признаков: W[class, c] / (H·W).
func (l *linear) Backward(x *entity.Tensor, class int) (*entity.Tensor, error) {
	classes, in := l.weight.Dims()
	if class < 0 || class >= classes {
		return nil, fmt.Errorf("head: class %d out of range [0,%d)", class, classes)
	}
	if x.Channels() != in {
		return nil, fmt.Errorf("head: feature map has %d channels, want %d", x.Channels(), in)
	}
	dx := entity.NewTensor(x.Channels(), x.Height(), x.Width())
	n := float64(x.Height() * x.Width())
	for c := 0; c < in; c++ {
		g := l.weight.At(class, c) / n
		plane := dx.Plane(c)
		for i := range plane {
			plane[i] = g
		}
	}
	return dx, nil
}
