package model

import (
	"context"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"leaf-doctor/internal/domain/entity"
)

// Epsilon добавка к максимуму при нормализации карты.
const Epsilon = 1e-7

// Instrumented классификатор, умеющий снять активацию и градиент целевого слоя.
type Instrumented interface {
	Instrument(ctx context.Context, input *entity.Tensor, classIdx int, capture *Capture) error
}

// GradCAM строит карту важности по одному прямому и обратному проходу.
// Прямой проход, обратный проход и очистка слотов идут под одним мьютексом.
type GradCAM struct {
	mu         sync.Mutex
	classifier Instrumented
	capture    Capture
}

// NewGradCAM создаёт движок над инструментированным классификатором.
func NewGradCAM(classifier Instrumented) *GradCAM {
	return &GradCAM{classifier: classifier}
}

// Map карта важности для класса classIdx. Любая ошибка оборачивает ErrSaliencyUnavailable.
func (g *GradCAM) Map(ctx context.Context, input *entity.Tensor, classIdx int) (*entity.SaliencyMap, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	defer g.capture.Reset()

	g.capture.Reset()
	if err := g.classifier.Instrument(ctx, input, classIdx, &g.capture); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrSaliencyUnavailable, err)
	}

	act, grad := g.capture.Activation, g.capture.Gradient
	if act == nil || grad == nil {
		return nil, fmt.Errorf("%w: target layer %q was not captured", entity.ErrSaliencyUnavailable, g.capture.Layer)
	}
	if !act.SameShape(grad) {
		return nil, fmt.Errorf("%w: activation %v and gradient %v differ", entity.ErrSaliencyUnavailable, act.Shape, grad.Shape)
	}
	return camFrom(act, grad)
}

// camFrom ReLU(Σ_c mean(grad_c)·act_c) / (max + Epsilon).
func camFrom(act, grad *entity.Tensor) (*entity.SaliencyMap, error) {
	h, w := act.Height(), act.Width()
	cam := make([]float64, h*w)
	for c := 0; c < act.Channels(); c++ {
		weight := floats.Sum(grad.Plane(c)) / float64(h*w)
		floats.AddScaled(cam, weight, act.Plane(c))
	}

	var peak float64
	for i, v := range cam {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite saliency", entity.ErrSaliencyUnavailable)
		}
		if v < 0 {
			cam[i] = 0
		}
		peak = math.Max(peak, cam[i])
	}
	for i := range cam {
		cam[i] /= peak + Epsilon
	}

	m := &entity.SaliencyMap{Width: w, Height: h, Values: cam}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
