package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"leaf-doctor/internal/domain/entity"
	"leaf-doctor/internal/domain/port"
	"leaf-doctor/internal/logging"
)

// Pipeline стадии классификации. Saliency и Renderer необязательны:
// без них диагноз возвращается без тепловой карты.
type Pipeline struct {
	Decoder      port.ImageDecoder
	Enhancer     port.ImageEnhancer
	Augmenter    port.Augmenter
	Preprocessor port.Preprocessor
	Classifier   port.Classifier
	Saliency     port.SaliencyEngine
	Renderer     port.HeatmapRenderer
}

// DiagnosisService классифицирует фото листа и объясняет решение.
type DiagnosisService struct {
	p      Pipeline
	logger *zap.Logger
}

// NewDiagnosisService проверяет, что обязательные стадии заданы.
func NewDiagnosisService(p Pipeline, logger *zap.Logger) (*DiagnosisService, error) {
	switch {
	case p.Decoder == nil:
		return nil, errors.New("decoder is not configured")
	case p.Enhancer == nil:
		return nil, errors.New("enhancer is not configured")
	case p.Augmenter == nil:
		return nil, errors.New("augmenter is not configured")
	case p.Preprocessor == nil:
		return nil, errors.New("preprocessor is not configured")
	case p.Classifier == nil:
		return nil, errors.New("classifier is not configured")
	}
	return &DiagnosisService{p: p, logger: logger.Named("diagnosis")}, nil
}

// Classify decode → enhance → 4 вида → softmax → среднее → класс;
// затем Grad-CAM по исходному фото. Ошибки до ансамбля обрывают запрос,
// ошибки карты только логируются.
func (s *DiagnosisService) Classify(ctx context.Context, data []byte) (*entity.Diagnosis, error) {
	requestID := uuid.NewString()
	log := logging.WithOperation(s.logger, "diagnosis.classify", requestID)
	start := time.Now()

	img, err := s.p.Decoder.Decode(data)
	if err != nil {
		log.Warn("image rejected", zap.Int("bytes", len(data)), zap.Error(err))
		return nil, logging.NewOperationError("vision.decode", requestID, err)
	}

	probs, err := s.predict(ctx, requestID, img)
	if err != nil {
		log.Error("classification failed", zap.Error(err))
		return nil, err
	}

	d, err := entity.NewDiagnosis(requestID, probs)
	if err != nil {
		log.Error("invalid ensemble output", zap.Error(err))
		return nil, logging.NewOperationError("ensemble", requestID, err)
	}
	d.Heatmap = s.explain(ctx, log, img, d.ClassIndex)

	log.Info("leaf classified",
		zap.String("label", d.Label),
		zap.Float64("confidence", d.Confidence),
		zap.Bool("heatmap", d.Heatmap != nil),
		zap.Int("width", img.Rect.Dx()),
		zap.Int("height", img.Rect.Dy()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return d, nil
}

// predict усреднённое распределение по видам TTA. Виды идут по очереди.
func (s *DiagnosisService) predict(ctx context.Context, requestID string, img image.Image) (entity.ProbabilityVector, error) {
	enhanced, err := s.p.Enhancer.Enhance(img)
	if err != nil {
		return nil, logging.NewOperationError("vision.enhance", requestID, err)
	}
	views, err := s.p.Augmenter.Views(enhanced)
	if err != nil {
		return nil, logging.NewOperationError("vision.augment", requestID, err)
	}
	if len(views) == 0 {
		return nil, logging.NewOperationError("vision.augment", requestID, errors.New("no views"))
	}

	probs := make([]entity.ProbabilityVector, 0, len(views))
	for i, view := range views {
		if err := ctx.Err(); err != nil {
			return nil, logging.NewOperationError("diagnosis.classify", requestID, err)
		}
		input, err := s.p.Preprocessor.Preprocess(view)
		if err != nil {
			return nil, logging.NewOperationError(fmt.Sprintf("vision.preprocess[%d]", i), requestID, err)
		}
		logits, err := s.p.Classifier.Logits(ctx, input)
		if err != nil {
			return nil, logging.NewOperationError(fmt.Sprintf("model.forward[%d]", i), requestID, err)
		}
		p, err := entity.Softmax(logits)
		if err != nil {
			return nil, logging.NewOperationError(fmt.Sprintf("model.softmax[%d]", i), requestID, err)
		}
		probs = append(probs, p)
	}

	avg, err := entity.Ensemble(probs)
	if err != nil {
		return nil, logging.NewOperationError("ensemble", requestID, err)
	}
	return avg, nil
}

// explain тепловая карта для класса classIdx или nil. Паника внутри
// Grad-CAM считается SaliencyUnavailable и не роняет запрос.
func (s *DiagnosisService) explain(ctx context.Context, log *zap.Logger, img image.Image, classIdx int) (overlay *entity.Overlay) {
	if s.p.Saliency == nil || s.p.Renderer == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("heatmap skipped",
				zap.String("kind", entity.ErrorKind(entity.ErrSaliencyUnavailable)),
				zap.Any("panic", r))
			overlay = nil
		}
	}()

	input, err := s.p.Preprocessor.Preprocess(img)
	if err != nil {
		log.Warn("heatmap skipped", zap.String("kind", entity.ErrorKind(entity.ErrSaliencyUnavailable)), zap.Error(err))
		return nil
	}
	m, err := s.p.Saliency.Map(ctx, input, classIdx)
	if err != nil {
		log.Warn("heatmap skipped", zap.String("kind", entity.ErrorKind(err)), zap.Error(err))
		return nil
	}
	overlay, err = s.p.Renderer.Render(m, img)
	if err != nil {
		log.Warn("heatmap skipped", zap.String("kind", entity.ErrorKind(err)), zap.Error(err))
		return nil
	}
	return overlay
}
