package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/analytics"
	"github.com/straye-as/funnel-api/internal/domain"
	"gorm.io/gorm"
)

type LeadActivityRepository struct {
	db *gorm.DB
}

func NewLeadActivityRepository(db *gorm.DB) *LeadActivityRepository {
	return &LeadActivityRepository{db: db}
}

func (r *LeadActivityRepository) Create(ctx context.Context, activity *domain.LeadActivity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

// ListByLead returns a page of a lead's activities, newest first
func (r *LeadActivityRepository) ListByLead(ctx context.Context, leadID uuid.UUID, page, pageSize int) ([]domain.LeadActivity, int64, error) {
	var activities []domain.LeadActivity
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.LeadActivity{}).Where("lead_id = ?", leadID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	_, pageSize, offset := pageOffset(page, pageSize)
	err := query.Order("occurred_at DESC").Offset(offset).Limit(pageSize).Find(&activities).Error
	return activities, total, err
}

// QueryActivityTimes returns occurred_at for every activity in scope inside [From, To]
func (r *LeadActivityRepository) QueryActivityTimes(ctx context.Context, q analytics.ActivityQuery) ([]time.Time, error) {
	var times []time.Time
	query := r.db.WithContext(ctx).
		Model(&domain.LeadActivity{}).
		Joins("JOIN leads ON leads.id = lead_activities.lead_id").
		Where("lead_activities.occurred_at >= ? AND lead_activities.occurred_at <= ?", q.From, q.To)
	query = applyScope(query, q.Scope, "leads.brand_id", "leads.funnel_id")
	err := query.Order("lead_activities.occurred_at ASC").Pluck("lead_activities.occurred_at", &times).Error
	return times, err
}
