package repository_test

import (
	"context"
	"testing"

	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/repository"
	"github.com/straye-as/funnel-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestFunnelRepository_SetDefaultKeepsOneDefault(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewFunnelRepository(db)
	ctx := context.Background()

	brand := testutil.CreateTestBrand(t, db, "Acme", nil)
	other := testutil.CreateTestBrand(t, db, "Other", nil)
	first := testutil.CreateTestFunnel(t, db, brand.ID, "Inbound", true)
	second := testutil.CreateTestFunnel(t, db, brand.ID, "Outbound", false)
	foreign := testutil.CreateTestFunnel(t, db, other.ID, "Foreign", true)

	err := db.Transaction(func(tx *gorm.DB) error {
		return repo.SetDefault(ctx, tx, brand.ID, second.ID)
	})
	require.NoError(t, err)

	funnels, err := repo.ListByBrand(ctx, brand.ID)
	require.NoError(t, err)
	require.Len(t, funnels, 2)
	assert.Equal(t, second.ID, funnels[0].ID)
	assert.True(t, funnels[0].IsDefault)
	assert.False(t, funnels[1].IsDefault)
	assert.Equal(t, first.ID, funnels[1].ID)

	def, err := repo.GetDefault(ctx, nil, other.ID)
	require.NoError(t, err)
	assert.Equal(t, foreign.ID, def.ID)

	// A funnel of another brand cannot become this brand's default
	err = repo.SetDefault(ctx, nil, brand.ID, foreign.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFunnelRepository_IncrementLeadCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewFunnelRepository(db)
	ctx := context.Background()

	brand := testutil.CreateTestBrand(t, db, "Acme", nil)
	funnel := testutil.CreateTestFunnel(t, db, brand.ID, "Inbound", true)

	require.NoError(t, repo.IncrementLeadCount(ctx, nil, funnel.ID))
	require.NoError(t, repo.IncrementLeadCount(ctx, nil, funnel.ID))

	got, err := repo.GetByID(ctx, funnel.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalLeadsCount)
	require.NotNil(t, got.Brand)
	assert.Equal(t, "Acme", got.Brand.Name)
}

func TestStageRepository_ListAndScript(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewStageRepository(db)
	ctx := context.Background()

	broadcast := testutil.CreateTestStages(t, db, domain.FunnelTypeBroadcast, 2)
	followUp := testutil.CreateTestStages(t, db, domain.FunnelTypeFollowUp, 3)

	all, err := repo.ListStages(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, domain.FunnelTypeBroadcast, all[0].FunnelType)
	assert.Equal(t, 1, all[0].StageNumber)
	assert.Equal(t, 3, all[4].StageNumber)

	ft := domain.FunnelTypeFollowUp
	only, err := repo.ListStages(ctx, &ft)
	require.NoError(t, err)
	assert.Len(t, only, 3)

	first, err := repo.FirstStage(ctx, nil, domain.FunnelTypeFollowUp)
	require.NoError(t, err)
	assert.Equal(t, followUp[0].ID, first.ID)

	require.NoError(t, repo.UpsertScript(ctx, &domain.StageScript{StageID: broadcast[0].ID, Content: "Hello"}))
	require.NoError(t, repo.UpsertScript(ctx, &domain.StageScript{StageID: broadcast[0].ID, Content: "Hi again", MediaPath: "stage-media/a.png"}))

	stage, err := repo.GetByID(ctx, broadcast[0].ID)
	require.NoError(t, err)
	require.NotNil(t, stage.Script)
	assert.Equal(t, "Hi again", stage.Script.Content)
	assert.Equal(t, "stage-media/a.png", stage.Script.MediaPath)

	var count int64
	require.NoError(t, db.Model(&domain.StageScript{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
