package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/fplcoach/docs"
	"github.com/fatflowers/fplcoach/internal/app/api/handlers"
	mw "github.com/fatflowers/fplcoach/internal/app/api/middleware"
	"github.com/fatflowers/fplcoach/internal/app/service/account"
	"github.com/fatflowers/fplcoach/internal/app/service/billing"
	"github.com/fatflowers/fplcoach/internal/app/service/chat"
	"github.com/fatflowers/fplcoach/internal/app/service/reward"
	"github.com/fatflowers/fplcoach/internal/app/service/statistics"
	cfgpkg "github.com/fatflowers/fplcoach/pkg/config"
	metrics "github.com/fatflowers/fplcoach/pkg/metrics"
)

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.Server.CORSOrigins))
	// Add request tracing middleware only; request logger & access log are attached per group in mountAPI
	r.Use(mw.TraceMiddleware())
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || lo.Contains(origins, "*") {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = origins
	}
	return cors.New(conf)
}

// apiDeps are the services behind the HTTP surface.
type apiDeps struct {
	DB       handlers.Pinger
	Tokens   mw.TokenParser
	Accounts handlers.AccountService
	Chat     handlers.ChatService
	Rewards  handlers.RewardService
	Billing  handlers.BillingService
	Stats    handlers.StatisticsService
}

type routeParams struct {
	fx.In

	Engine   *gin.Engine
	DB       *gorm.DB
	Log      *zap.SugaredLogger
	Cfg      *cfgpkg.Config
	Tokens   *account.TokenIssuer
	Accounts *account.Service
	Chat     *chat.Service
	Rewards  *reward.Service
	Billing  *billing.Service
	Stats    *statistics.Service
}

func registerRoutes(p routeParams) {
	// Prometheus metrics
	if p.Cfg != nil {
		prom := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return "unmatched"
			},
			Logger: p.Log,
		})
		prom.SetListenAddress(p.Cfg.MetricsAddr)
		prom.Use(p.Engine)

		p.Log.Infow("metrics started", "addr", p.Cfg.MetricsAddr)
	}

	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	p.Engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	deps := apiDeps{
		Tokens:   p.Tokens,
		Accounts: p.Accounts,
		Chat:     p.Chat,
		Rewards:  p.Rewards,
		Billing:  p.Billing,
		Stats:    p.Stats,
	}
	if sqlDB, err := p.DB.DB(); err == nil {
		deps.DB = sqlDB
	}
	mountAPI(p.Engine, p.Log, deps)
}

func mountAPI(r *gin.Engine, log *zap.SugaredLogger, d apiDeps) {
	logged := []gin.HandlerFunc{mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log)}

	// Public group: request logger + access log
	pub := r.Group("/", logged...)
	handlers.RegisterHealthRoutes(pub, d.DB, log)

	apiV1 := r.Group("/api/v1", logged...)
	handlers.RegisterAuthRoutes(apiV1.Group("/auth"), d.Accounts, log)
	handlers.RegisterPublicRewardRoutes(apiV1, d.Rewards, log)

	// Authenticated user APIs
	user := apiV1.Group("", mw.AuthMiddleware(d.Tokens, log))
	handlers.RegisterAccountRoutes(user, d.Accounts, log)
	handlers.RegisterChatRoutes(user, d.Chat, log)
	handlers.RegisterRewardRoutes(user, d.Rewards, log)
	handlers.RegisterBillingRoutes(user, d.Billing, log)

	// Admin APIs
	admin := apiV1.Group("/admin", mw.AuthMiddleware(d.Tokens, log), mw.RequireAdmin())
	handlers.RegisterAdminRoutes(admin, d.Rewards, d.Billing, d.Stats, log)

	// Provider webhooks
	webhooks := r.Group("/api/v2/billing/webhook", logged...)
	handlers.RegisterBillingWebhookRoutes(webhooks, d.Billing, log)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
