package model

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"leaf-doctor/internal/domain/entity"
)

func TestFetch_DownloadsMissingWeights(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.weights")
	require.NoError(t, SaveWeights(src, tinyState()))
	payload, err := os.ReadFile(src)
	require.NoError(t, err)

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "models", "leaf.weights")
	require.NoError(t, Fetch(context.Background(), srv.Client(), dst, srv.URL, zap.NewNop()))
	require.Equal(t, int32(1), atomic.LoadInt32(&hits))

	state, err := LoadWeights(dst)
	require.NoError(t, err)
	require.Len(t, state, len(tinyState()))

	// второй вызов файл не перекачивает
	require.NoError(t, Fetch(context.Background(), srv.Client(), dst, srv.URL, zap.NewNop()))
	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetch_Unavailable(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "leaf.weights")
	err := Fetch(context.Background(), nil, dst, "", zap.NewNop())
	require.ErrorIs(t, err, entity.ErrModelUnavailable)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	err = Fetch(context.Background(), srv.Client(), dst, srv.URL, zap.NewNop())
	require.ErrorIs(t, err, entity.ErrModelUnavailable)
	_, statErr := os.Stat(dst)
	require.True(t, os.IsNotExist(statErr))
}
