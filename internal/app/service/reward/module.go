package reward

import (
	"go.uber.org/fx"

	"github.com/fatflowers/fplcoach/internal/app/service/notifier"
)

var Module = fx.Options(
	fx.Provide(
		NewService,
		func(n *notifier.Service) Publisher { return n },
	),
)
