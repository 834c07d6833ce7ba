package account

import (
	"go.uber.org/fx"

	"github.com/fatflowers/fplcoach/pkg/config"
)

func newTokenIssuer(cfg *config.Config) *TokenIssuer {
	return NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
}

var Module = fx.Options(
	fx.Provide(
		newTokenIssuer,
		NewService,
	),
)
