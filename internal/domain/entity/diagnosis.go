package entity

import (
	"fmt"
	"math"
)

// SaliencyMap карта важности Grad-CAM, значения в [0,1], построчно.
type SaliencyMap struct {
	Width  int
	Height int
	Values []float64
}

// At значение карты в точке (x, y).
func (m *SaliencyMap) At(x, y int) float64 {
	return m.Values[y*m.Width+x]
}

// Validate проверяет размеры и диапазон значений карты.
func (m *SaliencyMap) Validate() error {
	if m == nil || m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: empty saliency map", ErrSaliencyUnavailable)
	}
	if len(m.Values) != m.Width*m.Height {
		return fmt.Errorf("%w: saliency map has %d values for %dx%d", ErrSaliencyUnavailable, len(m.Values), m.Width, m.Height)
	}
	for _, v := range m.Values {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: saliency value %v outside [0,1]", ErrSaliencyUnavailable, v)
		}
	}
	return nil
}

// Overlay тепловая карта, наложенная на исходное фото.
type Overlay struct {
	Path string // общий путь, перезаписывается каждым запросом
	PNG  []byte // закодированный результат этого запроса
}

// LabelScore вероятность одного класса.
type LabelScore struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Diagnosis итог классификации листа.
type Diagnosis struct {
	RequestID     string
	ClassIndex    int
	Label         string
	Confidence    float64
	Probabilities ProbabilityVector
	Heatmap       *Overlay // nil, если карту построить не удалось
}

// NewDiagnosis собирает диагноз из усреднённого распределения.
func NewDiagnosis(requestID string, probs ProbabilityVector) (*Diagnosis, error) {
	if err := probs.Validate(); err != nil {
		return nil, err
	}
	idx, confidence := probs.Top()
	label, err := Label(idx)
	if err != nil {
		return nil, err
	}
	return &Diagnosis{
		RequestID:     requestID,
		ClassIndex:    idx,
		Label:         label,
		Confidence:    confidence,
		Probabilities: probs,
	}, nil
}

// HeatmapPath путь к наложению или пустая строка.
func (d *Diagnosis) HeatmapPath() string {
	if d.Heatmap == nil {
		return ""
	}
	return d.Heatmap.Path
}

// ConfidencePercent уверенность в процентах с одним знаком.
func (d *Diagnosis) ConfidencePercent() string {
	return fmt.Sprintf("%.1f%%", d.Confidence*100)
}

// Breakdown вероятности всех классов в порядке Labels.
func (d *Diagnosis) Breakdown() []LabelScore {
	scores := make([]LabelScore, len(d.Probabilities))
	for i, p := range d.Probabilities {
		scores[i] = LabelScore{Label: Labels[i], Probability: p}
	}
	return scores
}
