package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/battleevent/api/rest"
	"github.com/kasuganosora/battleevent/api/sse"
	"github.com/kasuganosora/battleevent/api/ws"
	"github.com/kasuganosora/battleevent/arena"
	"github.com/kasuganosora/battleevent/battlelog"
	"github.com/kasuganosora/battleevent/cache"
	"github.com/kasuganosora/battleevent/config"
	dbadapter "github.com/kasuganosora/battleevent/db"
	"github.com/kasuganosora/battleevent/game/state"
	"github.com/kasuganosora/battleevent/logging"
	mw "github.com/kasuganosora/battleevent/middleware"
	"github.com/kasuganosora/battleevent/model"
	"github.com/kasuganosora/battleevent/resource"
	"github.com/kasuganosora/battleevent/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Security.AdminJWTSecret == "" {
		logger.Warn("security.admin_jwt_secret is not set; battle endpoints are disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		logger.Fatal("db open", zap.Error(err))
	}
	if err := model.AutoMigrate(db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Battle log ----
	logs := battlelog.New(db, logger)
	defer logs.Stop(context.Background())

	// ---- Cache / PubSub ----
	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	pubsub, err := cache.NewPubSub(cfg.Cache)
	if err != nil {
		logger.Fatal("pubsub", zap.Error(err))
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Resources ----
	res := resource.NewLoader(cfg.RPGMaker.DataPath)
	if err := res.Load(); err != nil {
		logger.Fatal("resource load", zap.String("path", cfg.RPGMaker.DataPath), zap.Error(err))
	}
	logger.Info("database loaded",
		zap.Int("troops", len(res.Troops)),
		zap.Int("common_events", len(res.CommonEvents)))

	// ---- Game state ----
	gameState := state.New(db, cfg.Battle.StateFlushInterval, logger)
	if err := gameState.LoadFromDB(); err != nil {
		logger.Warn("failed to load game state from DB", zap.Error(err))
	}
	defer gameState.Stop()

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	if cfg.Battle.LogRetention > 0 && cfg.Battle.LogPruneInterval > 0 {
		sched.AddTicker("battlelog_prune", cfg.Battle.LogPruneInterval, func(ctx context.Context) error {
			n, err := logs.Prune(ctx, time.Now().Add(-cfg.Battle.LogRetention))
			if n > 0 {
				logger.Info("battle logs pruned", zap.Int64("rows", n))
			}
			return err
		})
	}

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(ctx, rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	r.GET("/health", apirest.Health)

	runner := arena.New(arena.Deps{
		Res:    res,
		State:  gameState,
		Battle: cfg.Battle,
		Logs:   logs,
		Cache:  c,
		PubSub: pubsub,
		Logger: logger,
	})
	troopH := apirest.NewTroopHandler(runner, logger)
	sseH := sse.NewHandler(pubsub, cfg.Security, logger)
	wsH := ws.NewHandler(runner, cfg.Security, cfg.Battle, logger)

	api := r.Group("/api")
	{
		api.GET("/troops/:id", troopH.Detail)
		api.GET("/battles/:id", troopH.GetBattle)

		adminG := api.Group("", mw.IPWhitelist(cfg.Security.AdminIPs))
		adminG.POST("/troops/:id/battles", mw.AdminAuth(cfg.Security), troopH.RunBattle)
		adminG.GET("/battles/:id/stream", sseH.ServeBattle)
	}
	r.GET("/ws/battle", mw.IPWhitelist(cfg.Security.AdminIPs), wsH.ServeWS)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("Server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server", zap.Error(err))
	}
}
