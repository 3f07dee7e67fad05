package container

import (
	"go.uber.org/zap"

	"leaf-doctor/config"
	app "leaf-doctor/internal/application"
	"leaf-doctor/internal/domain/port"
	"leaf-doctor/internal/infrastructure/vision"
)

type Container struct {
	UserService      *app.UserService
	DiagnosisService *app.DiagnosisService
	HeatmapPath      string
}

// New собирает конвейер вокруг загруженной модели. saliency может быть nil:
// тогда диагнозы идут без тепловой карты.
func New(cfg *config.Config, userRepo port.UserRepository, classifier port.Classifier, saliency port.SaliencyEngine, logger *zap.Logger) (*Container, error) {
	userService := app.NewUserService(userRepo)
	diagnosisService, err := app.NewDiagnosisService(app.Pipeline{
		Decoder:      vision.Decoder{},
		Enhancer:     vision.NewDefaultEnhancer(cfg.Enhance),
		Augmenter:    vision.NewAugmenter(cfg.Augment),
		Preprocessor: vision.NewPreprocessor(),
		Classifier:   classifier,
		Saliency:     saliency,
		Renderer:     vision.NewDefaultRenderer(cfg.Heatmap, cfg.HeatmapPath),
	}, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("pipeline assembled",
		zap.String("vision_backend", vision.Backend),
		zap.Bool("saliency", saliency != nil),
		zap.String("heatmap_path", cfg.HeatmapPath),
	)

	return &Container{
		UserService:      userService,
		DiagnosisService: diagnosisService,
		HeatmapPath:      cfg.HeatmapPath,
	}, nil
}
