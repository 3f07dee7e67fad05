package entity

import (
	"fmt"
	"math"
)

// InputSize сторона входного изображения классификатора.
const InputSize = 224

// Tensor четырёхмерный массив (N, C, H, W) в планарной раскладке, N всегда 1.
type Tensor struct {
	Shape [4]int
	Data  []float64
}

// NewTensor создаёт нулевой тензор 1×C×H×W.
func NewTensor(c, h, w int) *Tensor {
	return &Tensor{
		Shape: [4]int{1, c, h, w},
		Data:  make([]float64, c*h*w),
	}
}

func (t *Tensor) Channels() int { return t.Shape[1] }
func (t *Tensor) Height() int { return t.Shape[2] }
func (t *Tensor) Width() int { return t.Shape[3] }

// Plane срез одного канала без копирования.
func (t *Tensor) Plane(c int) []float64 {
	n := t.Height() * t.Width()
	return t.Data[c*n : (c+1)*n]
}

// Clone глубокая копия.
func (t *Tensor) Clone() *Tensor {
	out := &Tensor{Shape: t.Shape, Data: make([]float64, len(t.Data))}
	copy(out.Data, t.Data)
	return out
}

// SameShape сравнивает формы двух тензоров.
func (t *Tensor) SameShape(o *Tensor) bool {
	return t != nil && o != nil && t.Shape == o.Shape
}

// Validate проверяет согласованность формы и конечность значений.
func (t *Tensor) Validate() error {
	if t == nil {
		return fmt.Errorf("nil tensor")
	}
	if t.Shape[0] != 1 {
		return fmt.Errorf("batch size %d, want 1", t.Shape[0])
	}
	n := 1
	for _, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("non-positive dimension in shape %v", t.Shape)
		}
		n *= d
	}
	if len(t.Data) != n {
		return fmt.Errorf("shape %v needs %d values, got %d", t.Shape, n, len(t.Data))
	}
	for _, v := range t.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("tensor holds non-finite value")
		}
	}
	return nil
}
