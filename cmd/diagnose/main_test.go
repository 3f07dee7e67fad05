package main

import (
	"bytes"
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"leaf-doctor/internal/domain/entity"
	"leaf-doctor/internal/infrastructure/model"
)

func randDense(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64() * 0.1
	}
	return mat.NewDense(r, c, data)
}

func writeWeights(t *testing.T) string {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	path := filepath.Join(t.TempDir(), "weights.zip")
	require.NoError(t, model.SaveWeights(path, map[string]*mat.Dense{
		"stem.weight":              randDense(rng, 4, 3*16*16),
		"stem.bias":                randDense(rng, 1, 4),
		"stages.0.blocks.0.weight": randDense(rng, 4, 4*3*3),
		"stages.0.blocks.0.bias":   randDense(rng, 1, 4),
		"head.weight":              randDense(rng, entity.LabelCount, 4),
		"head.bias":                randDense(rng, 1, entity.LabelCount),
	}))
	return path
}

func TestRun_Report(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), &out, options{modelPath: writeWeights(t), samples: 2, seed: 1})
	require.NoError(t, err)

	report := out.String()
	require.Contains(t, report, "Grad-CAM at stages.0.blocks.0")
	require.Equal(t, 2, strings.Count(report, "Predicted:"))
	require.Equal(t, 2, strings.Count(report, "    Mosaic: "))
	require.Contains(t, report, "First layer: stem.weight")
	require.Contains(t, report, "  head.weight: 8x4")
	require.Contains(t, report, "DIAGNOSTIC COMPLETE")
}

func TestRun_Deterministic(t *testing.T) {
	path := writeWeights(t)
	var a, b bytes.Buffer
	require.NoError(t, run(context.Background(), &a, options{modelPath: path, samples: 3, seed: 42}))
	require.NoError(t, run(context.Background(), &b, options{modelPath: path, samples: 3, seed: 42}))
	require.Equal(t, a.String(), b.String())
}

func TestRun_MissingModel(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), &out, options{modelPath: filepath.Join(t.TempDir(), "none.zip"), samples: 1})
	require.ErrorIs(t, err, entity.ErrModelUnavailable)
}
