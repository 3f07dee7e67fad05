//go:build !onnx
// +build !onnx

package model

import (
	"context"
	"fmt"

	"leaf-doctor/internal/domain/entity"
)

// ONNXClassifier заглушка для сборки без тега onnx.
type ONNXClassifier struct{}

// NewONNXClassifier возвращает ошибку, если сборка без тега onnx.
func NewONNXClassifier(modelPath, sharedLibrary string) (*ONNXClassifier, error) {
	_ = modelPath
	_ = sharedLibrary
	return nil, fmt.Errorf("%w: onnx build tag is not enabled", entity.ErrModelUnavailable)
}

func (c *ONNXClassifier) Logits(context.Context, *entity.Tensor) ([]float64, error) {
	return nil, fmt.Errorf("%w: onnx build tag is not enabled", entity.ErrModelUnavailable)
}

func (c *ONNXClassifier) Instrument(context.Context, *entity.Tensor, int, *Capture) error {
	return fmt.Errorf("%w: onnx build tag is not enabled", entity.ErrSaliencyUnavailable)
}

func (c *ONNXClassifier) Close() {}
