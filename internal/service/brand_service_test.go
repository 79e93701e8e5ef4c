package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
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

func newBrandService(db *gorm.DB) *service.BrandService {
	return service.NewBrandService(repository.NewBrandRepository(db), repository.NewProfileRepository(db), zap.NewNop())
}

func asUser(id uuid.UUID) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{UserID: id, AuthMethod: "jwt"})
}

func TestBrandService_CreateSetsOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	owner := testutil.CreateTestProfile(t, db, "owner@straye.io", domain.RoleSales)
	svc := newBrandService(db)

	brand, err := svc.Create(asUser(owner.ID), &domain.CreateBrandRequest{Name: "Acme"})
	require.NoError(t, err)

	require.NotNil(t, brand.OwnerID)
	assert.Equal(t, owner.ID, *brand.OwnerID)
	assert.True(t, brand.IsActive)
	assert.NotEmpty(t, brand.Color)
}

func TestBrandService_Deactivate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	owner := testutil.CreateTestProfile(t, db, "owner@straye.io", domain.RoleSales)
	other := testutil.CreateTestProfile(t, db, "other@straye.io", domain.RoleManager)
	admin := testutil.CreateTestProfile(t, db, "admin@straye.io", domain.RoleAdmin)
	svc := newBrandService(db)

	t.Run("other user is refused", func(t *testing.T) {
		brand := testutil.CreateTestBrand(t, db, "Acme", &owner.ID)
		err := svc.Deactivate(asUser(other.ID), brand.ID)
		assert.True(t, errors.Is(err, service.ErrForbidden))

		got, err := svc.GetByID(context.Background(), brand.ID)
		require.NoError(t, err)
		assert.True(t, got.IsActive)
	})

	t.Run("owner", func(t *testing.T) {
		brand := testutil.CreateTestBrand(t, db, "Beta", &owner.ID)
		require.NoError(t, svc.Deactivate(asUser(owner.ID), brand.ID))

		got, err := svc.GetByID(context.Background(), brand.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	})

	t.Run("admin", func(t *testing.T) {
		brand := testutil.CreateTestBrand(t, db, "Gamma", &owner.ID)
		require.NoError(t, svc.Deactivate(asUser(admin.ID), brand.ID))
	})

	t.Run("no caller", func(t *testing.T) {
		brand := testutil.CreateTestBrand(t, db, "Delta", &owner.ID)
		err := svc.Deactivate(context.Background(), brand.ID)
		assert.True(t, errors.Is(err, service.ErrForbidden))
	})

	t.Run("unknown brand", func(t *testing.T) {
		err := svc.Deactivate(asUser(admin.ID), uuid.New())
		assert.True(t, errors.Is(err, service.ErrBrandNotFound))
		assert.True(t, errors.Is(err, service.ErrNotFound))
	})
}

func TestBrandService_ListHidesInactive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	owner := testutil.CreateTestProfile(t, db, "owner@straye.io", domain.RoleSales)
	svc := newBrandService(db)

	testutil.CreateTestBrand(t, db, "Active", nil)
	gone := testutil.CreateTestBrand(t, db, "Gone", &owner.ID)
	require.NoError(t, svc.Deactivate(asUser(owner.ID), gone.ID))

	active, err := svc.List(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Active", active[0].Name)

	all, err := svc.List(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
