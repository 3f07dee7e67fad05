//go:build onnx
// +build onnx

package model

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"leaf-doctor/internal/domain/entity"
)

// ONNXClassifier прямой проход через onnxruntime. Обратного прохода нет,
// поэтому Grad-CAM для него недоступен и конвейер отдаёт диагноз без карты.
type ONNXClassifier struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewONNXClassifier открывает модель с входом "input" 1×3×224×224 и выходом "output" 1×8.
func NewONNXClassifier(modelPath, sharedLibrary string) (*ONNXClassifier, error) {
	if sharedLibrary != "" {
		ort.SetSharedLibraryPath(sharedLibrary)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("%w: initialize onnx environment: %v", entity.ErrModelUnavailable, err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, InputChannels, entity.InputSize, entity.InputSize))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("%w: create input tensor: %v", entity.ErrModelUnavailable, err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, entity.LabelCount))
	if err != nil {
		input.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("%w: create output tensor: %v", entity.ErrModelUnavailable, err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("%w: create onnx session: %v", entity.ErrModelUnavailable, err)
	}

	return &ONNXClassifier{session: session, input: input, output: output}, nil
}

// Logits сессия держит общие буферы, поэтому вызовы сериализуются.
func (c *ONNXClassifier) Logits(ctx context.Context, t *entity.Tensor) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	dst := c.input.GetData()
	if len(dst) != len(t.Data) {
		return nil, fmt.Errorf("input tensor has %d values, session expects %d", len(t.Data), len(dst))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range t.Data {
		dst[i] = float32(v)
	}
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	out := c.output.GetData()
	logits := make([]float64, len(out))
	for i, v := range out {
		logits[i] = float64(v)
	}
	return logits, nil
}

// Instrument не поддерживается: onnxruntime не даёт градиентов.
func (c *ONNXClassifier) Instrument(context.Context, *entity.Tensor, int, *Capture) error {
	return fmt.Errorf("%w: onnx backend is forward-only", entity.ErrSaliencyUnavailable)
}

// Close освобождает тензоры, сессию и окружение.
func (c *ONNXClassifier) Close() {
	if c.input != nil {
		c.input.Destroy()
	}
	if c.output != nil {
		c.output.Destroy()
	}
	if c.session != nil {
		c.session.Destroy()
	}
	ort.DestroyEnvironment()
}
