package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"leaf-doctor/internal/domain/entity"
)

var errNoSource = errors.New("weight file missing and no download URL configured")

// Fetch гарантирует наличие файла весов: если его нет и задан url,
// скачивает архив один раз. Без файла и без url возвращает ErrModelUnavailable.
func Fetch(ctx context.Context, client *http.Client, path, url string, logger *zap.Logger) error {
	if _, err := os.Stat(path); err == nil {
		logger.Info("model weights present", zap.String("path", path))
		return nil
	}
	if url == "" {
		return fmt.Errorf("%w: %s: %v", entity.ErrModelUnavailable, path, errNoSource)
	}
	if client == nil {
		client = http.DefaultClient
	}

	logger.Info("downloading model weights", zap.String("url", url), zap.String("path", path))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", entity.ErrModelUnavailable, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: download: %v", entity.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: download: unexpected status %s", entity.ErrModelUnavailable, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrModelUnavailable, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".weights-*")
	if err != nil {
		return fmt.Errorf("%w: %v", entity.ErrModelUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: write weights: %v", entity.ErrModelUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrModelUnavailable, err)
	}
	logger.Info("model weights downloaded", zap.Int64("bytes", size))
	return nil
}
