package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"watchparty-service/internal/audit"
	"watchparty-service/internal/bus"
	"watchparty-service/internal/config"
	"watchparty-service/internal/handlers"
	"watchparty-service/internal/middleware"
	"watchparty-service/internal/observability"
	"watchparty-service/internal/party"
	"watchparty-service/internal/registry"
	"watchparty-service/internal/store"
	"watchparty-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.AppEnv)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, "watchparty-service", cfg.AppEnv, cfg.OTLPEndpoint, cfg.TracingEnabled)
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		logger.Fatal("redis unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	cancel()

	partyStore := store.NewRedisStore(rdb, cfg.PartyIdleTTL, cfg.EndedRetention)

	var eventBus bus.EventBus
	var amqpBus *bus.AMQPBus
	if cfg.AMQPURL != "" {
		amqpBus, err = bus.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Fatal("amqp bus setup failed", zap.Error(err))
		}
		eventBus = amqpBus
	} else {
		logger.Warn("amqp disabled, using in-process bus; cross-instance fan-out is off")
		eventBus = bus.NewLocal().Node()
	}

	recorder := audit.Nop()
	var trail *audit.Trail
	if cfg.AuditDSN != "" {
		trail, err = audit.Open(cfg.AuditDSN, logger)
		if err != nil {
			logger.Warn("audit trail disabled", zap.Error(err))
		} else {
			recorder = trail
		}
	}

	reg := registry.New()
	svc := party.NewService(partyStore, eventBus, recorder, logger)
	relay := party.NewRouter(eventBus, recorder, logger)
	gateway := ws.NewGateway(reg, svc, relay, eventBus, logger)
	partyHandler := handlers.NewPartyHandler(svc)

	healthChecks := map[string]handlers.Check{
		"redis": partyStore.Ping,
	}
	if amqpBus != nil {
		healthChecks["bus"] = func(context.Context) error { return amqpBus.Ping() }
	}
	if trail != nil {
		healthChecks["audit_db"] = func(context.Context) error { return trail.Ping() }
	}
	health := handlers.NewHealthHandler(healthChecks)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("watchparty-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.POST("/parties", partyHandler.InitParty)
	router.POST("/parties/:party_id/join", partyHandler.JoinParty)
	router.POST("/parties/:party_id/leave", partyHandler.LeaveParty)
	router.GET("/parties/:party_id", partyHandler.GetParty)
	router.DELETE("/parties/:party_id", partyHandler.DeleteParty)

	identity := middleware.Identity()
	router.GET("/ws/party/:party_id/control", identity, gateway.HandleControl)
	router.GET("/ws/party/:party_id/chat", identity, gateway.HandleChat)

	router.GET("/health", health.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, reg, cfg.DebugEndpoints)

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	go func() {
		logger.Info("watch party service listening", zap.String("addr", cfg.Addr()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("bus close failed", zap.Error(err))
	}
	if trail != nil {
		if err := trail.Close(); err != nil {
			logger.Error("audit close failed", zap.Error(err))
		}
	}
	if err := rdb.Close(); err != nil {
		logger.Error("redis close failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown failed", zap.Error(err))
	}
}

func newLogger(appEnv string) *zap.Logger {
	if appEnv == "production" {
		logger, _ := zap.NewProduction()
		return logger
	}
	logger, _ := zap.NewDevelopment()
	return logger
}
