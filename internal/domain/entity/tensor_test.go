package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTensor_ShapeAndPlanes(t *testing.T) {
	ts := NewTensor(3, 2, 4)
	require.Equal(t, [4]int{1, 3, 2, 4}, ts.Shape)
	require.Len(t, ts.Data, 24)
	require.NoError(t, ts.Validate())

	ts.Plane(1)[0] = 7
	require.Equal(t, 7.0, ts.Data[8])

	c := ts.Clone()
	c.Data[8] = 1
	require.Equal(t, 7.0, ts.Data[8])
	require.True(t, ts.SameShape(c))
}

func TestTensor_ValidateRejects(t *testing.T) {
	ts := NewTensor(1, 1, 2)
	ts.Data[1] = math.Inf(1)
	require.Error(t, ts.Validate())

	ts = &Tensor{Shape: [4]int{1, 1, 2, 2}, Data: make([]float64, 3)}
	require.Error(t, ts.Validate())

	var nilTensor *Tensor
	require.Error(t, nilTensor.Validate())
}
