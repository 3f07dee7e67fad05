package entity

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ProbabilityTolerance допуск на сумму вероятностей.
const ProbabilityTolerance = 1e-5

// ProbabilityVector распределение по Labels, индекс i соответствует Labels[i].
type ProbabilityVector []float64

// Softmax переводит логиты в распределение вероятностей.
func Softmax(logits []float64) (ProbabilityVector, error) {
	if len(logits) != LabelCount {
		return nil, fmt.Errorf("softmax: expected %d logits, got %d", LabelCount, len(logits))
	}
	for i, v := range logits {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("softmax: logit %d is not finite", i)
		}
	}

	out := make(ProbabilityVector, len(logits))
	copy(out, logits)
	floats.AddConst(-floats.Max(out), out)
	for i, v := range out {
		out[i] = math.Exp(v)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out, nil
}

// Ensemble усредняет распределения по всем видам TTA поэлементно.
func Ensemble(views []ProbabilityVector) (ProbabilityVector, error) {
	if len(views) == 0 {
		return nil, errors.New("ensemble: no views")
	}

	out := make(ProbabilityVector, LabelCount)
	for i, v := range views {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("ensemble: view %d: %w", i, err)
		}
		floats.Add(out, v)
	}
	floats.Scale(1/float64(len(views)), out)
	return out, nil
}

// Validate проверяет длину, конечность, диапазон [0,1] и сумму.
func (p ProbabilityVector) Validate() error {
	if len(p) != LabelCount {
		return fmt.Errorf("probability vector has %d entries, want %d", len(p), LabelCount)
	}
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			return fmt.Errorf("probability %d = %v outside [0,1]", i, v)
		}
	}
	if sum := floats.Sum(p); math.Abs(sum-1) > ProbabilityTolerance {
		return fmt.Errorf("probabilities sum to %v", sum)
	}
	return nil
}

// Top возвращает индекс максимума и его значение. При равенстве выигрывает меньший индекс.
func (p ProbabilityVector) Top() (int, float64) {
	idx := floats.MaxIdx(p)
	return idx, p[idx]
}
