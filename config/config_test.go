package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("MODEL_BACKEND", BackendNative)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, 2.0, cfg.Enhance.ClipLimit)
	require.Equal(t, 8, cfg.Enhance.TileGrid)
	require.Equal(t, 0.7, cfg.Enhance.SharpenWeight)
	require.Equal(t, 5.0, cfg.Augment.RotationDegrees)
	require.Equal(t, 0.6, cfg.Heatmap.ImageWeight)
	require.Equal(t, 0.4, cfg.Heatmap.HeatWeight)
	require.Positive(t, cfg.MaxUploadBytes)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("CLAHE_CLIP_LIMIT", "3.5")
	t.Setenv("CLAHE_TILE_GRID", "4")
	t.Setenv("TTA_ROTATION_DEGREES", "10")
	t.Setenv("HEATMAP_PATH", "/tmp/overlay.png")
	t.Setenv("MODEL_TARGET_LAYER", "stages.2.blocks.-1")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr)
	require.Equal(t, 3.5, cfg.Enhance.ClipLimit)
	require.Equal(t, 4, cfg.Enhance.TileGrid)
	require.Equal(t, 10.0, cfg.Augment.RotationDegrees)
	require.Equal(t, "/tmp/overlay.png", cfg.HeatmapPath)
	require.Equal(t, "stages.2.blocks.-1", cfg.TargetLayer)
}

func TestLoad_BadNumber(t *testing.T) {
	t.Setenv("SHARPEN_WEIGHT", "sharp")
	_, err := Load()
	require.ErrorContains(t, err, "SHARPEN_WEIGHT")
}

func TestConfig_Validate(t *testing.T) {
	t.Setenv("MODEL_BACKEND", BackendNative)
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no surface", func(c *Config) { c.TelegramToken, c.HTTPAddr = "", "" }},
		{"no model path", func(c *Config) { c.ModelPath = "" }},
		{"unknown backend", func(c *Config) { c.ModelBackend = "tflite" }},
		{"onnx without library", func(c *Config) { c.ModelBackend, c.ONNXLibrary = BackendONNX, "" }},
		{"bad clip limit", func(c *Config) { c.Enhance.ClipLimit = -1 }},
		{"bad rotation", func(c *Config) { c.Augment.RotationDegrees = 0 }},
		{"bad blend", func(c *Config) { c.Heatmap.HeatWeight = 0.9 }},
		{"bad upload limit", func(c *Config) { c.MaxUploadBytes = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			cfg.HTTPAddr = ":8080"
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
