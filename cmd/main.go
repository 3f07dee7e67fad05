package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"leaf-doctor/config"
	"leaf-doctor/internal/api/rest"
	"leaf-doctor/internal/api/telegram"
	"leaf-doctor/internal/container"
	"leaf-doctor/internal/domain/port"
	"leaf-doctor/internal/infrastructure/model"
	"leaf-doctor/internal/infrastructure/storage"
	"leaf-doctor/internal/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	classifier, saliency, closeModel, err := loadModel(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("model unavailable", zap.Error(err))
	}
	defer closeModel()

	// Создаём хранилище пользователей
	userRepo := storage.NewMemoryUserRepository()

	// Собираем сервисы приложения
	appContainer, err := container.New(cfg, userRepo, classifier, saliency, logger)
	if err != nil {
		logger.Fatal("failed to assemble pipeline", zap.Error(err))
	}

	var wg sync.WaitGroup

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer, cfg.MaxUploadBytes, logger)
		if err != nil {
			logger.Fatal("failed to create bot", zap.Error(err))
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("bot is running")
			if err := bot.Run(ctx); err != nil {
				logger.Error("bot stopped", zap.Error(err))
			}
		}()
	}

	if cfg.HTTPAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		r := gin.New()
		r.Use(gin.Recovery())
		r.MaxMultipartMemory = cfg.MaxUploadBytes
		rest.RegisterRoutes(r, appContainer.DiagnosisService, appContainer.HeatmapPath, cfg.MaxUploadBytes, logger)

		server := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("REST API listening", zap.String("addr", cfg.HTTPAddr))
			if err := serveHTTPServer(ctx, server, shutdownTimeout, logger, nil); err != nil {
				logger.Error("server failed", zap.Error(err))
				stop()
			}
		}()
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

// loadModel готовит классификатор выбранного бэкенда и Grad-CAM над ним.
func loadModel(ctx context.Context, cfg *config.Config, logger *zap.Logger) (port.Classifier, port.SaliencyEngine, func(), error) {
	if err := model.Fetch(ctx, nil, cfg.ModelPath, cfg.ModelDownloadURL, logger); err != nil {
		return nil, nil, nil, err
	}

	if cfg.ModelBackend == config.BackendONNX {
		c, err := model.NewONNXClassifier(cfg.ModelPath, cfg.ONNXLibrary)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Warn("onnx backend has no gradients, heatmaps are disabled")
		return c, model.NewGradCAM(c), c.Close, nil
	}

	n, err := model.Load(cfg.ModelPath, cfg.TargetLayer)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("model loaded",
		zap.String("path", cfg.ModelPath),
		zap.Strings("layers", n.LayerNames()),
		zap.String("target_layer", n.TargetLayer()),
	)
	return n, model.NewGradCAM(n), func() {}, nil
}
