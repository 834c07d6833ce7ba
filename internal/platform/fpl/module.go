package fpl

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/fplcoach/internal/platform/cache"
	cfgpkg "github.com/fatflowers/fplcoach/pkg/config"
)

func newSource(cfg *cfgpkg.Config, store *cache.Cache, log *zap.SugaredLogger) Source {
	return NewCachedSource(NewClient(cfg), store, cfg.FPL.SnapshotTTL, log)
}

var Module = fx.Options(
	fx.Provide(newSource),
)
