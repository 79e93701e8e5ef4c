package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/straye-as/funnel-api/internal/analytics"
	"github.com/straye-as/funnel-api/internal/auth"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/repository"
	"github.com/straye-as/funnel-api/internal/service"
	"github.com/straye-as/funnel-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var base = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func newLeadService(db *gorm.DB, now time.Time) *service.LeadService {
	return service.NewLeadService(
		repository.NewLeadRepository(db),
		repository.NewLeadStageHistoryRepository(db),
		repository.NewStageRepository(db),
		repository.NewFunnelRepository(db),
		repository.NewBrandRepository(db),
		zap.NewNop(),
		db,
	).WithClock(func() time.Time { return now })
}

func TestLeadService_CreatePlacesLeadOnFirstStage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	stages := testutil.CreateTestStages(t, db, domain.FunnelTypeFollowUp, 3)
	brand := testutil.CreateTestBrand(t, db, "Acme", nil)
	funnel := testutil.CreateTestFunnel(t, db, brand.ID, "Main", true)
	user := testutil.CreateTestProfile(t, db, "sales@acme.test", domain.RoleSales)

	ctx := auth.WithUserContext(context.Background(), &auth.UserContext{UserID: user.ID, AuthMethod: "jwt"})
	svc := newLeadService(db, base)

	lead, err := svc.Create(ctx, &domain.CreateLeadRequest{BrandID: brand.ID, Phone: "+4791234567"})
	require.NoError(t, err)

	assert.Equal(t, stages[0].ID, lead.CurrentStageID)
	assert.Equal(t, domain.FunnelTypeFollowUp, lead.CurrentFunnel)
	assert.Equal(t, &funnel.ID, lead.FunnelID)
	assert.Equal(t, domain.LeadStatusActive, lead.Status)

	history, err := svc.History(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].FromStageID)
	assert.Equal(t, stages[0].ID, history[0].ToStageID)
	assert.Equal(t, &user.ID, history[0].MovedBy)
	assert.Equal(t, "2025-03-03T09:00:00Z", history[0].MovedAt)

	stored, err := repository.NewFunnelRepository(db).GetByID(ctx, funnel.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalLeadsCount)
}

func TestLeadService_CreateRequiresStages(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestStages(t, db, domain.FunnelTypeFollowUp, 2)
	brand := testutil.CreateTestBrand(t, db, "Acme", nil)
	svc := newLeadService(db, base)

	_, err := svc.Create(context.Background(), &domain.CreateLeadRequest{
		BrandID:    brand.ID,
		Phone:      "+4791234567",
		FunnelType: domain.FunnelTypeBroadcast,
	})
	assert.True(t, errors.Is(err, service.ErrNoStages))

	var count int64
	require.NoError(t, db.Model(&domain.Lead{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLeadService_MoveStage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	follow := testutil.CreateTestStages(t, db, domain.FunnelTypeFollowUp, 3)
	broadcast := testutil.CreateTestStages(t, db, domain.FunnelTypeBroadcast, 1)
	brand := testutil.CreateTestBrand(t, db, "Acme", nil)
	ctx := context.Background()

	lead, err := newLeadService(db, base).Create(ctx, &domain.CreateLeadRequest{BrandID: brand.ID, Phone: "+4791234567"})
	require.NoError(t, err)

	moved, err := newLeadService(db, base.Add(26*time.Hour)).MoveStage(ctx, lead.ID, &domain.MoveLeadStageRequest{
		StageID: broadcast[0].ID,
		Reason:  "no answer",
	})
	require.NoError(t, err)
	assert.Equal(t, broadcast[0].ID, moved.CurrentStageID)
	assert.Equal(t, domain.FunnelTypeBroadcast, moved.CurrentFunnel)

	history, err := newLeadService(db, base).History(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, &follow[0].ID, history[1].FromStageID)
	assert.Equal(t, broadcast[0].ID, history[1].ToStageID)
	require.NotNil(t, history[1].FromFunnel)
	assert.Equal(t, domain.FunnelTypeFollowUp, *history[1].FromFunnel)
	assert.Equal(t, "no answer", history[1].Reason)
	assert.Equal(t, "2025-03-04T11:00:00Z", history[1].MovedAt)
}

func TestLeadService_MoveStageToSameStage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	stages := testutil.CreateTestStages(t, db, domain.FunnelTypeFollowUp, 2)
	brand := testutil.CreateTestBrand(t, db, "Acme", nil)
	ctx := context.Background()
	svc := newLeadService(db, base)

	lead, err := svc.Create(ctx, &domain.CreateLeadRequest{BrandID: brand.ID, Phone: "+4791234567"})
	require.NoError(t, err)

	_, err = svc.MoveStage(ctx, lead.ID, &domain.MoveLeadStageRequest{StageID: stages[0].ID})
	assert.True(t, errors.Is(err, service.ErrSameStage))

	history, err := svc.History(ctx, lead.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLeadService_MoveStageNeverGoesBackInTime(t *testing.T) {
	db := testutil.SetupTestDB(t)
	stages := testutil.CreateTestStages(t, db, domain.FunnelTypeFollowUp, 3)
	brand := testutil.CreateTestBrand(t, db, "Acme", nil)
	ctx := context.Background()

	lead, err := newLeadService(db, base).Create(ctx, &domain.CreateLeadRequest{BrandID: brand.ID, Phone: "+4791234567"})
	require.NoError(t, err)

	// Clock skew: the server clock is an hour behind the last ledger row for both moves
	skewed := newLeadService(db, base.Add(-time.Hour))
	_, err = skewed.MoveStage(ctx, lead.ID, &domain.MoveLeadStageRequest{StageID: stages[1].ID})
	require.NoError(t, err)
	moved, err := skewed.MoveStage(ctx, lead.ID, &domain.MoveLeadStageRequest{StageID: stages[2].ID})
	require.NoError(t, err)
	assert.Equal(t, stages[2].ID, moved.CurrentStageID)

	rows, err := repository.NewLeadStageHistoryRepository(db).ListByLead(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i := 1; i < len(rows); i++ {
		assert.True(t, rows[i].MovedAt.After(rows[i-1].MovedAt), "row %d must be later than row %d", i, i-1)
		assert.False(t, rows[i].MovedAt.Before(base))
	}
	assert.Equal(t, stages[0].ID, rows[0].ToStageID)
	assert.Equal(t, stages[1].ID, rows[1].ToStageID)
	assert.Equal(t, stages[2].ID, rows[2].ToStageID)

	// Reversed input still yields the visit the lead is actually in
	reversed := []domain.LeadStageHistory{rows[2], rows[1], rows[0]}
	velocity := analytics.ComputeVelocity(stages, reversed,
		analytics.Window{From: base.Add(-2 * time.Hour), To: base.Add(time.Hour)},
		analytics.VelocityOptions{IncludeInProgress: true})
	require.Len(t, velocity, 3)
	assert.Equal(t, 1, velocity[1].Visits)
	assert.Equal(t, 0, velocity[1].InProgress)
	assert.Equal(t, 1, velocity[2].InProgress)
}

func TestLeadService_FailedLedgerWriteKeepsPointer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	stages := testutil.CreateTestStages(t, db, domain.FunnelTypeFollowUp, 2)
	brand := testutil.CreateTestBrand(t, db, "Acme", nil)
	lead := testutil.CreateTestLead(t, db, brand.ID, stages[0], base)
	ctx := context.Background()

	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_ledger", func(tx *gorm.DB) {
		if tx.Statement.Table == "lead_stage_history" {
			_ = tx.AddError(errors.New("ledger unavailable"))
		}
	}))

	_, err := newLeadService(db, base.Add(time.Hour)).MoveStage(ctx, lead.ID, &domain.MoveLeadStageRequest{StageID: stages[1].ID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger unavailable")

	stored, err := repository.NewLeadRepository(db).GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, stages[0].ID, stored.CurrentStageID)
}

func TestLeadService_UnknownLeadAndStage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	stages := testutil.CreateTestStages(t, db, domain.FunnelTypeFollowUp, 2)
	brand := testutil.CreateTestBrand(t, db, "Acme", nil)
	lead := testutil.CreateTestLead(t, db, brand.ID, stages[0], base)
	svc := newLeadService(db, base)
	ctx := context.Background()

	_, err := svc.MoveStage(ctx, lead.ID, &domain.MoveLeadStageRequest{StageID: brand.ID})
	assert.True(t, errors.Is(err, service.ErrStageNotFound))

	_, err = svc.MoveStage(ctx, brand.ID, &domain.MoveLeadStageRequest{StageID: stages[1].ID})
	assert.True(t, errors.Is(err, service.ErrLeadNotFound))
	assert.True(t, errors.Is(err, service.ErrNotFound))

	_, err = svc.UpdateStatus(ctx, lead.ID, &domain.UpdateLeadStatusRequest{Status: "won"})
	assert.True(t, errors.Is(err, service.ErrInvalidInput))

	updated, err := svc.UpdateStatus(ctx, lead.ID, &domain.UpdateLeadStatusRequest{Status: domain.LeadStatusDeal})
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusDeal, updated.Status)
}

func TestActivityService_CreateAndList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	stages := testutil.CreateTestStages(t, db, domain.FunnelTypeFollowUp, 1)
	brand := testutil.CreateTestBrand(t, db, "Acme", nil)
	lead := testutil.CreateTestLead(t, db, brand.ID, stages[0], base)
	ctx := context.Background()

	svc := service.NewActivityService(repository.NewLeadActivityRepository(db), repository.NewLeadRepository(db), zap.NewNop())

	at := "2025-03-03T10:15:00+01:00"
	created, err := svc.Create(ctx, lead.ID, &domain.CreateActivityRequest{Type: domain.ActivityTypeCall, Title: "Intro call", OccurredAt: &at})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-03T09:15:00Z", created.OccurredAt)

	bad := "tomorrow"
	_, err = svc.Create(ctx, lead.ID, &domain.CreateActivityRequest{Type: domain.ActivityTypeNote, Title: "x", OccurredAt: &bad})
	assert.True(t, errors.Is(err, service.ErrInvalidInput))

	_, err = svc.Create(ctx, brand.ID, &domain.CreateActivityRequest{Type: domain.ActivityTypeNote, Title: "x"})
	assert.True(t, errors.Is(err, service.ErrLeadNotFound))

	page, err := svc.ListByLead(ctx, lead.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.TotalPages)
}
