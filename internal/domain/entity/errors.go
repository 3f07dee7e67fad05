package entity

import "errors"

// Виды ошибок конвейера. Адаптеры различают их через errors.Is.
var (
	ErrInvalidImage        = errors.New("invalid image")
	ErrModelUnavailable    = errors.New("model unavailable")
	ErrSaliencyUnavailable = errors.New("saliency unavailable")
	ErrRenderFailure       = errors.New("heatmap render failure")
)

// ErrorKind возвращает короткое стабильное имя вида ошибки.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidImage):
		return "InvalidImage"
	case errors.Is(err, ErrModelUnavailable):
		return "ModelUnavailable"
	case errors.Is(err, ErrSaliencyUnavailable):
		return "SaliencyUnavailable"
	case errors.Is(err, ErrRenderFailure):
		return "RenderFailure"
	default:
		return "Internal"
	}
}
