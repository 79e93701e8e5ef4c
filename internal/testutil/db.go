// Package testutil holds fixtures shared by repository, service and handler tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/database"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a private in-memory SQLite database with the full schema migrated
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps the in-memory database alive and serializes transactions
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// CreateTestBrand inserts an active brand
func CreateTestBrand(t *testing.T, db *gorm.DB, name string, ownerID *uuid.UUID) *domain.Brand {
	t.Helper()
	brand := &domain.Brand{Name: name, Color: "#336699", IsActive: true, OwnerID: ownerID}
	require.NoError(t, db.Create(brand).Error)
	return brand
}

// CreateTestFunnel inserts an active funnel for a brand
func CreateTestFunnel(t *testing.T, db *gorm.DB, brandID uuid.UUID, name string, isDefault bool) *domain.Funnel {
	t.Helper()
	funnel := &domain.Funnel{BrandID: brandID, Name: name, IsActive: true, IsDefault: isDefault}
	require.NoError(t, db.Create(funnel).Error)
	return funnel
}

// CreateTestStages inserts count ordered stages for a pipeline, numbered from 1
func CreateTestStages(t *testing.T, db *gorm.DB, funnelType domain.FunnelType, count int) []domain.Stage {
	t.Helper()
	stages := make([]domain.Stage, 0, count)
	for i := 1; i <= count; i++ {
		stage := domain.Stage{FunnelType: funnelType, StageNumber: i, Name: fmt.Sprintf("%s %d", funnelType, i)}
		require.NoError(t, db.Create(&stage).Error)
		stages = append(stages, stage)
	}
	return stages
}

// CreateTestProfile inserts an active profile with the given role
func CreateTestProfile(t *testing.T, db *gorm.DB, email string, role domain.UserRole) *domain.Profile {
	t.Helper()
	profile := &domain.Profile{Email: email, FullName: email, Role: role, IsActive: true}
	require.NoError(t, db.Create(profile).Error)
	return profile
}

// CreateTestLead inserts a lead directly on a stage together with its first ledger row
func CreateTestLead(t *testing.T, db *gorm.DB, brandID uuid.UUID, stage domain.Stage, createdAt time.Time) *domain.Lead {
	t.Helper()
	lead := &domain.Lead{
		BrandID:        brandID,
		Phone:          "+4790000000",
		CurrentStageID: stage.ID,
		CurrentFunnel:  stage.FunnelType,
		Status:         domain.LeadStatusActive,
	}
	lead.CreatedAt = createdAt
	lead.UpdatedAt = createdAt
	require.NoError(t, db.Create(lead).Error)

	entry := &domain.LeadStageHistory{
		LeadID:    lead.ID,
		ToStageID: stage.ID,
		ToFunnel:  stage.FunnelType,
		Reason:    "created",
		MovedAt:   createdAt,
	}
	require.NoError(t, db.Create(entry).Error)
	return lead
}
