package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/analytics"
	"github.com/straye-as/funnel-api/internal/domain"
	"gorm.io/gorm"
)

// LeadStageHistoryRepository is the append-only stage ledger. It has no update or
// delete methods.
type LeadStageHistoryRepository struct {
	db *gorm.DB
}

func NewLeadStageHistoryRepository(db *gorm.DB) *LeadStageHistoryRepository {
	return &LeadStageHistoryRepository{db: db}
}

// Append inserts one ledger row, inside tx when one is given
func (r *LeadStageHistoryRepository) Append(ctx context.Context, tx *gorm.DB, entry *domain.LeadStageHistory) error {
	return conn(ctx, r.db, tx).Create(entry).Error
}

// Latest returns the most recent ledger row for a lead
func (r *LeadStageHistoryRepository) Latest(ctx context.Context, tx *gorm.DB, leadID uuid.UUID) (*domain.LeadStageHistory, error) {
	var entry domain.LeadStageHistory
	err := conn(ctx, r.db, tx).
		Where("lead_id = ?", leadID).
		Order("moved_at DESC").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByLead returns a lead's ledger in chronological order
func (r *LeadStageHistoryRepository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.LeadStageHistory, error) {
	var entries []domain.LeadStageHistory
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("moved_at ASC").
		Find(&entries).Error
	return entries, err
}

// QueryTransitions returns ledger rows for leads in scope.
// Rows are returned for every lead that has at least one move inside [From, To],
// including that lead's earlier and later rows, so stage exits and leakage origins
// can be resolved. Ordered by lead then moved_at.
func (r *LeadStageHistoryRepository) QueryTransitions(ctx context.Context, q analytics.TransitionQuery) ([]domain.LeadStageHistory, error) {
	active := r.db.WithContext(ctx).
		Model(&domain.LeadStageHistory{}).
		Select("DISTINCT lead_stage_history.lead_id").
		Joins("JOIN leads ON leads.id = lead_stage_history.lead_id").
		Where("lead_stage_history.moved_at >= ? AND lead_stage_history.moved_at <= ?", q.From, q.To)
	active = applyScope(active, q.Scope, "leads.brand_id", "leads.funnel_id")

	var entries []domain.LeadStageHistory
	err := r.db.WithContext(ctx).
		Where("lead_id IN (?)", active).
		Order("lead_id ASC, moved_at ASC").
		Find(&entries).Error
	return entries, err
}
