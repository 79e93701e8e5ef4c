package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/analytics"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/mapper"
	"github.com/straye-as/funnel-api/internal/repository"
	"github.com/straye-as/funnel-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrUnsupportedMedia is returned for stage media that is not image, audio, video or PDF
var ErrUnsupportedMedia = errors.New("unsupported media type")

// StageCacheInvalidator is implemented by the cached stage registry
type StageCacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type StageService struct {
	stageRepo *repository.StageRepository
	registry  analytics.StageRegistry
	cache     StageCacheInvalidator
	storage   storage.Storage
	logger    *zap.Logger
}

// NewStageService wires the stage service. registry serves reads and may be a cache
// in front of stageRepo; cache may be nil.
func NewStageService(stageRepo *repository.StageRepository, registry analytics.StageRegistry, cache StageCacheInvalidator, store storage.Storage, logger *zap.Logger) *StageService {
	return &StageService{stageRepo: stageRepo, registry: registry, cache: cache, storage: store, logger: logger}
}

func (s *StageService) List(ctx context.Context, funnelType *domain.FunnelType) ([]domain.StageDTO, error) {
	if funnelType != nil && !funnelType.IsValid() {
		return nil, fmt.Errorf("%w: unknown funnel type %q", ErrInvalidInput, *funnelType)
	}
	stages, err := s.registry.ListStages(ctx, funnelType)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	dtos := make([]domain.StageDTO, len(stages))
	for i := range stages {
		dtos[i] = mapper.ToStageDTO(&stages[i])
	}
	return dtos, nil
}

func (s *StageService) GetByID(ctx context.Context, id uuid.UUID) (*domain.StageDTO, error) {
	stage, err := s.stageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrStageNotFound, "failed to get stage")
	}
	dto := mapper.ToStageDTO(stage)
	return &dto, nil
}

func (s *StageService) Create(ctx context.Context, req *domain.CreateStageRequest) (*domain.StageDTO, error) {
	existing, err := s.registry.ListStages(ctx, &req.FunnelType)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	for _, st := range existing {
		if st.StageNumber == req.StageNumber {
			return nil, fmt.Errorf("%w: %s stage %d already exists", ErrConflict, req.FunnelType, req.StageNumber)
		}
	}

	stage := &domain.Stage{FunnelType: req.FunnelType, StageNumber: req.StageNumber, Name: req.Name}
	if err := s.stageRepo.Create(ctx, stage); err != nil {
		return nil, fmt.Errorf("failed to create stage: %w", err)
	}
	s.invalidate(ctx)

	dto := mapper.ToStageDTO(stage)
	return &dto, nil
}

func (s *StageService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateStageRequest) (*domain.StageDTO, error) {
	stage, err := s.stageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrStageNotFound, "failed to get stage")
	}
	stage.Name = req.Name
	if err := s.stageRepo.Update(ctx, stage); err != nil {
		return nil, fmt.Errorf("failed to update stage: %w", err)
	}
	s.invalidate(ctx)

	dto := mapper.ToStageDTO(stage)
	return &dto, nil
}

// UpdateScript replaces the script text and keeps any attached media
func (s *StageService) UpdateScript(ctx context.Context, id uuid.UUID, req *domain.UpdateStageScriptRequest) (*domain.StageScriptDTO, error) {
	script, err := s.loadScript(ctx, id)
	if err != nil {
		return nil, err
	}
	script.Content = req.Content
	if err := s.stageRepo.UpsertScript(ctx, script); err != nil {
		return nil, fmt.Errorf("failed to save stage script: %w", err)
	}
	dto := mapper.ToStageScriptDTO(script)
	return &dto, nil
}

// UploadMedia stores a media file for the stage and replaces any previous one
func (s *StageService) UploadMedia(ctx context.Context, id uuid.UUID, filename, contentType string, data io.Reader) (*domain.StageScriptDTO, error) {
	if !isAllowedMedia(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, contentType)
	}
	script, err := s.loadScript(ctx, id)
	if err != nil {
		return nil, err
	}

	key := storage.MediaKey(id, filename)
	size, err := s.storage.Put(ctx, key, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store media: %w", err)
	}

	previous := script.MediaPath
	script.MediaPath = key
	script.MediaType = contentType
	if err := s.stageRepo.UpsertScript(ctx, script); err != nil {
		_ = s.storage.Delete(ctx, key)
		return nil, fmt.Errorf("failed to save stage script: %w", err)
	}
	if previous != "" {
		if err := s.storage.Delete(ctx, previous); err != nil {
			s.logger.Warn("failed to delete replaced stage media", zap.String("key", previous), zap.Error(err))
		}
	}

	s.logger.Info("stage media uploaded",
		zap.String("stage_id", id.String()),
		zap.String("key", key),
		zap.Int64("size", size),
	)
	dto := mapper.ToStageScriptDTO(script)
	return &dto, nil
}

// OpenMedia streams the stage's media. The caller closes the reader.
func (s *StageService) OpenMedia(ctx context.Context, id uuid.UUID) (io.ReadCloser, string, error) {
	script, err := s.stageRepo.GetScript(ctx, id)
	if err != nil {
		return nil, "", notFound(err, ErrStageNotFound, "failed to get stage script")
	}
	if script.MediaPath == "" {
		return nil, "", fmt.Errorf("stage media: %w", ErrNotFound)
	}
	rc, err := s.storage.Open(ctx, script.MediaPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", fmt.Errorf("stage media: %w", ErrNotFound)
		}
		return nil, "", err
	}
	return rc, script.MediaType, nil
}

func (s *StageService) loadScript(ctx context.Context, id uuid.UUID) (*domain.StageScript, error) {
	if _, err := s.stageRepo.GetByID(ctx, id); err != nil {
		return nil, notFound(err, ErrStageNotFound, "failed to get stage")
	}
	script, err := s.stageRepo.GetScript(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.StageScript{StageID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stage script: %w", err)
	}
	return script, nil
}

func (s *StageService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("failed to invalidate stage cache", zap.Error(err))
	}
}

func isAllowedMedia(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch {
	case strings.HasPrefix(ct, "image/"), strings.HasPrefix(ct, "video/"), strings.HasPrefix(ct, "audio/"):
		return true
	case ct == "application/pdf":
		return true
	}
	return false
}
