package chat

import (
	"go.uber.org/fx"

	"github.com/fatflowers/fplcoach/internal/platform/assistant"
)

var Module = fx.Options(
	fx.Provide(
		NewService,
		func(c *assistant.Client) Assistant { return c },
	),
)
