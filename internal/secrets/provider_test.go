package secrets_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/straye-as/funnel-api/internal/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingBackend struct {
	values map[string]string
	calls  int
}

func (b *countingBackend) GetSecret(_ context.Context, name string) (string, error) {
	b.calls++
	v, ok := b.values[name]
	if !ok {
		return "", secrets.ErrSecretNotFound
	}
	return v, nil
}

func TestResolveSource(t *testing.T) {
	assert.Equal(t, secrets.SourceEnvironment, secrets.ResolveSource(secrets.SourceAuto, "development"))
	assert.Equal(t, secrets.SourceEnvironment, secrets.ResolveSource(secrets.SourceAuto, ""))
	assert.Equal(t, secrets.SourceVault, secrets.ResolveSource(secrets.SourceAuto, "production"))
	assert.Equal(t, secrets.SourceVault, secrets.ResolveSource(secrets.SourceVault, "development"))
}

func TestProvider_EnvironmentSource(t *testing.T) {
	t.Setenv("FUNNEL_TEST_SECRET", "s3cret")
	p := secrets.NewProviderWithBackend(&secrets.ProviderConfig{Source: secrets.SourceEnvironment}, nil, zap.NewNop())

	v, err := p.GetSecret(context.Background(), "FUNNEL_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	_, err = p.GetSecret(context.Background(), "FUNNEL_TEST_MISSING")
	assert.True(t, errors.Is(err, secrets.ErrSecretNotFound))
	assert.False(t, p.IsVaultEnabled())
}

func TestProvider_VaultSourceCaches(t *testing.T) {
	backend := &countingBackend{values: map[string]string{"redis-url": "redis://cache:6379"}}
	p := secrets.NewProviderWithBackend(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		CacheEnabled: true,
		CacheTTL:     time.Minute,
	}, backend, zap.NewNop())

	for i := 0; i < 3; i++ {
		v, err := p.GetSecret(context.Background(), "redis-url")
		require.NoError(t, err)
		assert.Equal(t, "redis://cache:6379", v)
	}
	assert.Equal(t, 1, backend.calls)

	p.ClearCache()
	_, err := p.GetSecret(context.Background(), "redis-url")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.calls)
}

func TestProvider_EnvOverridesVault(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	backend := &countingBackend{values: map[string]string{"funnel-jwt-secret": "from-vault"}}
	p := secrets.NewProviderWithBackend(&secrets.ProviderConfig{Source: secrets.SourceVault}, backend, zap.NewNop())

	v, err := p.GetSecretOrEnv(context.Background(), "funnel-jwt-secret", "JWT_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
	assert.Zero(t, backend.calls)
}
