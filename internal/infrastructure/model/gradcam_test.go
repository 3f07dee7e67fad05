package model

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"leaf-doctor/internal/domain/entity"
)

type stubInstrumented struct {
	act  *entity.Tensor
	grad *entity.Tensor
	err  error
	seen *Capture
}

func (s *stubInstrumented) Instrument(_ context.Context, _ *entity.Tensor, _ int, capture *Capture) error {
	s.seen = capture
	if s.err != nil {
		return s.err
	}
	capture.Layer = "stub"
	capture.Activation = s.act
	capture.Gradient = s.grad
	return nil
}

func TestCamFrom_WeightedSum(t *testing.T) {
	act := entity.NewTensor(2, 1, 3)
	copy(act.Data, []float64{1, 2, 3, 3, 0, -4})
	grad := entity.NewTensor(2, 1, 3)
	copy(grad.Data, []float64{1, 1, 1, -1, -1, -1})

	// weights: c0 = 1, c1 = -1 → cam = [1-3, 2-0, 3+4] = [-2, 2, 7]
	m, err := camFrom(act, grad)
	require.NoError(t, err)
	require.Equal(t, 3, m.Width)
	require.Equal(t, 1, m.Height)
	require.InDelta(t, 0, m.Values[0], 1e-12)
	require.InDelta(t, 2/(7+Epsilon), m.Values[1], 1e-12)
	require.InDelta(t, 7/(7+Epsilon), m.Values[2], 1e-12)
}

func TestCamFrom_AllNegativeIsZero(t *testing.T) {
	act := entity.NewTensor(1, 2, 2)
	copy(act.Data, []float64{1, 2, 3, 4})
	grad := entity.NewTensor(1, 2, 2)
	copy(grad.Data, []float64{-1, -1, -1, -1})

	m, err := camFrom(act, grad)
	require.NoError(t, err)
	for _, v := range m.Values {
		require.Equal(t, 0.0, v)
	}
}

func TestGradCAM_MapOnNetwork(t *testing.T) {
	n, err := NewNetwork(tinyState(), "")
	require.NoError(t, err)
	cam := NewGradCAM(n)

	m, err := cam.Map(context.Background(), randInput(9, 64), 3)
	require.NoError(t, err)
	require.Equal(t, 8, m.Width)
	require.Equal(t, 8, m.Height)
	require.NoError(t, m.Validate())
	require.Nil(t, cam.capture.Activation)
	require.Nil(t, cam.capture.Gradient)
}

func TestGradCAM_Unavailable(t *testing.T) {
	tests := []struct {
		name string
		stub *stubInstrumented
	}{
		{"instrument error", &stubInstrumented{err: errors.New("hook failed")}},
		{"hook never fired", &stubInstrumented{}},
		{"shape mismatch", &stubInstrumented{act: entity.NewTensor(2, 2, 2), grad: entity.NewTensor(2, 3, 3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewGradCAM(tt.stub)
			_, err := cam.Map(context.Background(), randInput(1, 8), 0)
			require.ErrorIs(t, err, entity.ErrSaliencyUnavailable)
			require.Nil(t, tt.stub.seen.Activation)
		})
	}
}

func TestGradCAM_ConcurrentCallsAgree(t *testing.T) {
	n, err := NewNetwork(tinyState(), "")
	require.NoError(t, err)
	cam := NewGradCAM(n)
	in := randInput(11, 32)

	want, err := cam.Map(context.Background(), in, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*entity.SaliencyMap, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cam.Map(context.Background(), in, 1)
		}(i)
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, want.Values, results[i].Values)
	}
}
