package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/domain"
	"gorm.io/gorm"
)

type StageRepository struct {
	db *gorm.DB
}

func NewStageRepository(db *gorm.DB) *StageRepository {
	return &StageRepository{db: db}
}

func (r *StageRepository) Create(ctx context.Context, stage *domain.Stage) error {
	return r.db.WithContext(ctx).Create(stage).Error
}

func (r *StageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Stage, error) {
	var stage domain.Stage
	err := r.db.WithContext(ctx).Preload("Script").Where("id = ?", id).First(&stage).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func (r *StageRepository) Update(ctx context.Context, stage *domain.Stage) error {
	return r.db.WithContext(ctx).Omit("Script").Save(stage).Error
}

// ListStages returns stages ordered by funnel type then stage number.
// A nil funnelType lists both pipelines.
func (r *StageRepository) ListStages(ctx context.Context, funnelType *domain.FunnelType) ([]domain.Stage, error) {
	var stages []domain.Stage
	query := r.db.WithContext(ctx).Model(&domain.Stage{})
	if funnelType != nil {
		query = query.Where("funnel_type = ?", *funnelType)
	}
	err := query.Order("funnel_type ASC, stage_number ASC").Find(&stages).Error
	return stages, err
}

// FirstStage returns the lowest-numbered stage of a pipeline
func (r *StageRepository) FirstStage(ctx context.Context, tx *gorm.DB, funnelType domain.FunnelType) (*domain.Stage, error) {
	var stage domain.Stage
	err := conn(ctx, r.db, tx).
		Where("funnel_type = ?", funnelType).
		Order("stage_number ASC").
		First(&stage).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// GetScript returns the stage script, or gorm.ErrRecordNotFound when none exists
func (r *StageRepository) GetScript(ctx context.Context, stageID uuid.UUID) (*domain.StageScript, error) {
	var script domain.StageScript
	err := r.db.WithContext(ctx).Where("stage_id = ?", stageID).First(&script).Error
	if err != nil {
		return nil, err
	}
	return &script, nil
}

// UpsertScript creates or replaces the script row for script.StageID
func (r *StageRepository) UpsertScript(ctx context.Context, script *domain.StageScript) error {
	existing, err := r.GetScript(ctx, script.StageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(script).Error
	}
	if err != nil {
		return err
	}
	script.ID = existing.ID
	script.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Save(script).Error
}
