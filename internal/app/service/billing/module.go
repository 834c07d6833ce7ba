package billing

import (
	"go.uber.org/fx"

	"github.com/fatflowers/fplcoach/internal/platform/stripe_billing"
)

var Module = fx.Options(
	fx.Provide(
		stripe_billing.New,
		func(c *stripe_billing.Client) Provider { return c },
		NewService,
	),
)
