package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/fplcoach/internal/app/api/server"
	"github.com/fatflowers/fplcoach/internal/app/service/account"
	"github.com/fatflowers/fplcoach/internal/app/service/billing"
	"github.com/fatflowers/fplcoach/internal/app/service/chat"
	"github.com/fatflowers/fplcoach/internal/app/service/notifier"
	"github.com/fatflowers/fplcoach/internal/app/service/quota"
	"github.com/fatflowers/fplcoach/internal/app/service/reward"
	"github.com/fatflowers/fplcoach/internal/app/service/statistics"
	"github.com/fatflowers/fplcoach/internal/app/service/subscription"
	"github.com/fatflowers/fplcoach/internal/platform/assistant"
	"github.com/fatflowers/fplcoach/internal/platform/cache"
	"github.com/fatflowers/fplcoach/internal/platform/db"
	"github.com/fatflowers/fplcoach/internal/platform/fpl"
	"github.com/fatflowers/fplcoach/internal/platform/mail"
	"github.com/fatflowers/fplcoach/pkg/config"
	"github.com/fatflowers/fplcoach/pkg/logger"
	"github.com/fatflowers/fplcoach/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	db.Module,
	cache.Module,
	mail.Module,
	fpl.Module,
	assistant.Module,
	server.Module,
	subscription.Module,
	quota.Module,
	notifier.Module,
	reward.Module,
	billing.Module,
	chat.Module,
	account.Module,
	statistics.Module,
)
