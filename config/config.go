package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"leaf-doctor/internal/infrastructure/vision"
)

// Бэкенды классификатора.
const (
	BackendNative = "native"
	BackendONNX   = "onnx"
)

const (
	defaultHTTPAddr       = ":8080"
	defaultModelPath      = "models/leaf-doctor.zip"
	defaultHeatmapPath    = "static/temp/heatmap.png"
	defaultLogLevel       = "info"
	defaultMaxUploadBytes = 10 << 20
)

// Config все настройки сервиса. Пустой TelegramToken отключает бота,
// пустой HTTPAddr отключает REST.
type Config struct {
	TelegramToken string
	HTTPAddr      string
	LogLevel      string

	ModelPath        string
	ModelDownloadURL string
	ModelBackend     string
	ONNXLibrary      string
	TargetLayer      string // пусто: последний блок последней стадии

	HeatmapPath    string
	MaxUploadBytes int64

	Enhance vision.EnhanceOptions
	Augment vision.AugmentOptions
	Heatmap vision.BlendOptions
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken:    os.Getenv("TELEGRAM_TOKEN"),
		HTTPAddr:         getEnv("HTTP_ADDR", defaultHTTPAddr),
		LogLevel:         getEnv("LOG_LEVEL", defaultLogLevel),
		ModelPath:        getEnv("MODEL_PATH", defaultModelPath),
		ModelDownloadURL: os.Getenv("MODEL_DOWNLOAD_URL"),
		ModelBackend:     getEnv("MODEL_BACKEND", BackendNative),
		ONNXLibrary:      os.Getenv("ONNXRUNTIME_LIB"),
		TargetLayer:      os.Getenv("MODEL_TARGET_LAYER"),
		HeatmapPath:      getEnv("HEATMAP_PATH", defaultHeatmapPath),
		Enhance:          vision.DefaultEnhanceOptions(),
		Augment:          vision.DefaultAugmentOptions(),
		Heatmap:          vision.DefaultBlendOptions(),
	}

	var err error
	if cfg.MaxUploadBytes, err = getInt("MAX_UPLOAD_BYTES", defaultMaxUploadBytes); err != nil {
		return nil, err
	}
	tileGrid, err := getInt("CLAHE_TILE_GRID", int64(cfg.Enhance.TileGrid))
	if err != nil {
		return nil, err
	}
	cfg.Enhance.TileGrid = int(tileGrid)

	floats := []struct {
		key string
		dst *float64
	}{
		{"CLAHE_CLIP_LIMIT", &cfg.Enhance.ClipLimit},
		{"SHARPEN_WEIGHT", &cfg.Enhance.SharpenWeight},
		{"TTA_ROTATION_DEGREES", &cfg.Augment.RotationDegrees},
		{"HEATMAP_IMAGE_WEIGHT", &cfg.Heatmap.ImageWeight},
		{"HEATMAP_HEAT_WEIGHT", &cfg.Heatmap.HeatWeight},
	}
	for _, f := range floats {
		if *f.dst, err = getFloat(f.key, *f.dst); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate вызывается при старте; ошибка прерывает запуск.
func (c *Config) Validate() error {
	if c.TelegramToken == "" && c.HTTPAddr == "" {
		return errors.New("nothing to serve: set TELEGRAM_TOKEN or HTTP_ADDR")
	}
	if c.ModelPath == "" {
		return errors.New("MODEL_PATH is required")
	}
	switch c.ModelBackend {
	case BackendNative:
	case BackendONNX:
		if c.ONNXLibrary == "" {
			return errors.New("ONNXRUNTIME_LIB is required for the onnx backend")
		}
	default:
		return fmt.Errorf("unknown MODEL_BACKEND %q", c.ModelBackend)
	}
	if c.HeatmapPath == "" {
		return errors.New("HEATMAP_PATH is required")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if err := c.Enhance.Validate(); err != nil {
		return fmt.Errorf("enhance: %w", err)
	}
	if err := c.Augment.Validate(); err != nil {
		return fmt.Errorf("augment: %w", err)
	}
	if err := c.Heatmap.Validate(); err != nil {
		return fmt.Errorf("heatmap: %w", err)
	}
	return nil
}

// getEnv значение переменной или fallback, если она не задана.
// Заданная пустая строка сохраняется: так отключается HTTP_ADDR.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int64) (int64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
