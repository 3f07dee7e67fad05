//go:build !gocv
// +build !gocv

package vision

import "leaf-doctor/internal/domain/port"

// Backend имя реализации обработки изображений в этой сборке.
const Backend = "pure-go"

// NewDefaultEnhancer без тега gocv работает на чистом Go.
func NewDefaultEnhancer(opts EnhanceOptions) port.ImageEnhancer {
	return NewEnhancer(opts)
}

// NewDefaultRenderer без тега gocv работает на чистом Go.
func NewDefaultRenderer(blend BlendOptions, path string) port.HeatmapRenderer {
	return NewRenderer(blend, path)
}
