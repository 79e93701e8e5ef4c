package warehouse_test

import (
	"context"
	"testing"

	"github.com/straye-as/funnel-api/internal/config"
	"github.com/straye-as/funnel-api/internal/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClient_DisabledOrIncomplete(t *testing.T) {
	logger := zap.NewNop()

	for name, cfg := range map[string]*config.WarehouseConfig{
		"nil":              nil,
		"disabled":         {Enabled: false, URL: "dw:1433/db", User: "u", Password: "p"},
		"missing url":      {Enabled: true, User: "u", Password: "p"},
		"missing user":     {Enabled: true, URL: "dw:1433/db", Password: "p"},
		"missing password": {Enabled: true, URL: "dw:1433/db", User: "u"},
	} {
		t.Run(name, func(t *testing.T) {
			client, err := warehouse.NewClient(cfg, logger)
			require.NoError(t, err)
			assert.Nil(t, client)
			assert.False(t, client.IsEnabled())
			assert.NoError(t, client.Close())
			assert.Equal(t, "disabled", client.HealthCheck(context.Background()).Status)
		})
	}
}

func TestNewLedgerMirror_RequiresClient(t *testing.T) {
	_, err := warehouse.NewLedgerMirror(nil, "dbo.lead_stage_history", zap.NewNop())
	assert.Error(t, err)
}
