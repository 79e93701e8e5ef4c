package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/straye-as/funnel-api/internal/auth"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/repository"
	"github.com/straye-as/funnel-api/internal/service"
	"github.com/straye-as/funnel-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newAdminService(db *gorm.DB) *service.AdminService {
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db), zap.NewNop())
	return service.NewAdminService(repository.NewProfileRepository(db), audit, zap.NewNop(), db).
		WithBcryptCost(bcrypt.MinCost)
}

func principalFor(p *domain.Profile) *auth.Principal {
	return &auth.Principal{UserID: p.ID, Email: p.Email, Role: p.Role}
}

func auditCount(t *testing.T, db *gorm.DB, action domain.AuditAction) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&domain.AuditLog{}).Where("action = ?", action).Count(&n).Error)
	return n
}

func TestAdminService_AdminCannotDeleteSelf(t *testing.T) {
	db := testutil.SetupTestDB(t)
	admin := testutil.CreateTestProfile(t, db, "admin@acme.test", domain.RoleAdmin)
	svc := newAdminService(db)

	err := svc.DeleteUser(context.Background(), principalFor(admin), admin.ID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrSelfDeletion))
	assert.True(t, service.IsPolicyError(err))
	assert.False(t, errors.Is(err, service.ErrForbidden))

	_, err = repository.NewProfileRepository(db).GetByID(context.Background(), admin.ID)
	assert.NoError(t, err)
	assert.Zero(t, auditCount(t, db, domain.AuditActionDelete))
}

func TestAdminService_NonAdminRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	sales := testutil.CreateTestProfile(t, db, "sales@acme.test", domain.RoleSales)
	victim := testutil.CreateTestProfile(t, db, "other@acme.test", domain.RoleViewer)
	svc := newAdminService(db)
	ctx := context.Background()
	actor := principalFor(sales)

	_, err := svc.ListUsers(ctx, actor)
	assert.True(t, errors.Is(err, service.ErrForbidden))

	err = svc.DeleteUser(ctx, actor, victim.ID)
	assert.True(t, errors.Is(err, service.ErrForbidden))
	assert.False(t, service.IsPolicyError(err))

	// Even a self-delete from a non-admin is an authorization failure first
	err = svc.DeleteUser(ctx, actor, sales.ID)
	assert.True(t, errors.Is(err, service.ErrForbidden))

	_, err = svc.CreateUser(ctx, nil, &domain.CreateUserRequest{Email: "x@acme.test", Password: "password1", Role: domain.RoleViewer})
	assert.True(t, errors.Is(err, service.ErrForbidden))
}

func TestAdminService_UserLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	admin := testutil.CreateTestProfile(t, db, "admin@acme.test", domain.RoleAdmin)
	svc := newAdminService(db)
	ctx := context.Background()
	actor := principalFor(admin)

	created, err := svc.CreateUser(ctx, actor, &domain.CreateUserRequest{
		Email:    "New.Seller@Acme.test",
		Password: "correct horse",
		FullName: "New Seller",
		Role:     domain.RoleSales,
	})
	require.NoError(t, err)
	assert.Equal(t, "new.seller@acme.test", created.Email)
	assert.True(t, created.IsActive)

	stored, err := repository.NewProfileRepository(db).GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct horse")))

	_, err = svc.CreateUser(ctx, actor, &domain.CreateUserRequest{Email: "new.seller@acme.test", Password: "whatever1", Role: domain.RoleSales})
	assert.True(t, errors.Is(err, service.ErrEmailTaken))

	role := domain.RoleManager
	inactive := false
	updated, err := svc.UpdateUser(ctx, actor, created.ID, &domain.UpdateUserRequest{Role: &role, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, updated.Role)
	assert.False(t, updated.IsActive)

	require.NoError(t, svc.DeleteUser(ctx, actor, created.ID))
	err = svc.DeleteUser(ctx, actor, created.ID)
	assert.True(t, errors.Is(err, service.ErrUserNotFound))

	users, err := svc.ListUsers(ctx, actor)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, admin.ID, users[0].ID)

	assert.Equal(t, int64(1), auditCount(t, db, domain.AuditActionCreate))
	assert.Equal(t, int64(1), auditCount(t, db, domain.AuditActionUpdate))
	assert.Equal(t, int64(1), auditCount(t, db, domain.AuditActionDelete))

	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db), zap.NewNop())
	page, err := audit.List(ctx, actor, &repository.AuditLogFilter{EntityID: &created.ID}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
}
