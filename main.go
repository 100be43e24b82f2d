package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hospitaldata/explorer/internal/auth"
	"github.com/hospitaldata/explorer/internal/config"
	"github.com/hospitaldata/explorer/internal/database"
	"github.com/hospitaldata/explorer/internal/explorer/handler"
	"github.com/hospitaldata/explorer/internal/explorer/service"
	"github.com/hospitaldata/explorer/internal/storage"
	"github.com/hospitaldata/explorer/pkg/logger"
	"github.com/hospitaldata/explorer/pkg/metrics"
	"github.com/hospitaldata/explorer/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v keycloak=%v minio=%v collections=%d",
		cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Keycloak.URL != "", cfg.MinIO.Endpoint != "", len(cfg.Catalog.Collections))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// Lightweight CORS for the dev UI and API clients.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})
	r.Use(gin.Logger(), gin.Recovery())

	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			_ = rdb.Close()
			rdb = nil
		} else {
			logger.Infof("connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
			defer rdb.Close()
		}
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
		logger.Infof("rate limiter enabled: rps=%.1f burst=%d redis=%v", cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.UseRedis && rdb != nil)
	}

	// One client for the process lifetime; the driver pools connections.
	var client *mongo.Client
	var svc service.Service
	if cfg.MongoDB.URI != "" {
		client, err = database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			logger.Warnf("%v", err)
		}
	}
	if client != nil {
		defer func() { _ = client.Disconnect(context.Background()) }()
		svc = service.NewMongoService(client.Database(cfg.MongoDB.Database), cfg.Catalog)
		logger.Infof("using MongoDB database %q", cfg.MongoDB.Database)
	} else {
		svc = service.NewMemoryService(cfg.Catalog)
		logger.Warn("MongoDB unavailable, serving from an in-memory store")
	}

	opts := handler.Options{ExportExpiry: cfg.MinIO.URLExpiry}
	verifier := auth.FromConfig(ctx, cfg)
	if verifier != nil {
		opts.Auth = middleware.AuthMiddleware(verifier)
	} else {
		logger.Warn("no token verifier configured, mutating routes are open")
	}
	if cfg.MinIO.Endpoint != "" {
		st, err := storage.NewExportStore(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("result export disabled: %v", err)
		} else {
			opts.Exporter = st
			logger.Infof("result export enabled: bucket=%s", cfg.MinIO.Bucket)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when the configured dependencies are reachable
	r.GET("/ready", func(c *gin.Context) {
		deps := map[string]bool{}
		ready := true

		if cfg.MongoDB.URI != "" {
			ok := false
			if client != nil {
				pctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
				ok = client.Ping(pctx, nil) == nil
				cancel()
			}
			deps["mongo"] = ok
			ready = ready && ok
		}
		if cfg.Keycloak.URL != "" {
			deps["oidc"] = verifier != nil
			ready = ready && verifier != nil
		}
		if cfg.Redis.Host != "" && cfg.RateLimit.UseRedis {
			deps["redis"] = rdb != nil
			ready = ready && rdb != nil
		}

		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterSwagger(r)
	handler.RegisterExplorerRoutes(r, svc, opts)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting hospital data explorer on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}
