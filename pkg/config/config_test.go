package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatflowers/fplcoach/pkg/apperr"
	"github.com/fatflowers/fplcoach/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestNew_ReadsYAMLAndDefaults(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.yaml")
	yaml := `
env: prod
server:
  port: 9000
prices:
  - id: premium_monthly
    provider_id: stripe
    provider_price_id: price_premium
    plan: Premium
  - id: elite_monthly
    provider_id: stripe
    provider_price_id: price_elite
    plan: Elite
`
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o600))
	t.Setenv("APP_CONFIG_FILE", file)

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, EnvProd, cfg.Env)
	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, 45*time.Second, cfg.AI.Timeout)
	require.Len(t, cfg.Prices, 2)

	plan, err := cfg.GetPlanByProviderPriceID(types.PaymentProviderStripe, "price_elite")
	require.NoError(t, err)
	require.Equal(t, types.PlanElite, plan)

	require.Equal(t, "price_premium", cfg.GetPriceByPlan(types.PaymentProviderStripe, types.PlanPremium).ProviderPriceID)
	require.Nil(t, cfg.GetPriceByPlan(types.PaymentProviderStripe, types.PlanVIP))
}

func TestGetPlanByProviderPriceID_Unknown(t *testing.T) {
	cfg := &Config{}
	_, err := cfg.GetPlanByProviderPriceID(types.PaymentProviderStripe, "price_nope")
	require.True(t, errors.Is(err, apperr.ErrUnrecognizedPrice))
}
