package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/oksasatya/healthcare-storefront/config"
	"github.com/oksasatya/healthcare-storefront/internal/application"
	"github.com/oksasatya/healthcare-storefront/internal/container"
	"github.com/oksasatya/healthcare-storefront/internal/infrastructure/audit"
	"github.com/oksasatya/healthcare-storefront/internal/infrastructure/cache"
	"github.com/oksasatya/healthcare-storefront/internal/infrastructure/metrics"
	pginfra "github.com/oksasatya/healthcare-storefront/internal/infrastructure/postgres"
	"github.com/oksasatya/healthcare-storefront/internal/interface/middleware"
	"github.com/oksasatya/healthcare-storefront/internal/router"
	"github.com/oksasatya/healthcare-storefront/pkg/helpers"
	"github.com/oksasatya/healthcare-storefront/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// Initialize Postgres pool
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	// Run migrations using database/sql with pgx stdlib
	if err := runMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migration failed: %v", err)
	}

	// Redis
	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Caches
	users, tokens := buildCaches(cfg, rdb, logger)

	// JWT
	jwtManager := helpers.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	// GCS is optional; document upload is only routed when a bucket is configured
	if cfg.GCSBucket != "" {
		gcsClient, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
		if err != nil {
			log.Fatalf("failed to init GCS client: %v", err)
		}
		defer func() { _ = gcsClient.Close() }()
		container.SetGCS(gcsClient)
	}

	// RabbitMQ publisher for outgoing email
	if cfg.MailSendEnabled && cfg.RabbitMQURL != "" {
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			logger.WithError(err).Warn("rabbitmq unavailable; emails will not be queued")
		} else {
			defer pub.Close()
			container.SetRabbitPub(pub)
		}
	}

	// Audit trail: Elasticsearch when reachable, logrus otherwise
	var sink audit.Sink = audit.LogSink{Logger: logger}
	var esSink *audit.ESSink
	if addrs := cfg.ESAddrs(); len(addrs) > 0 {
		es, err := helpers.NewESClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err == nil {
			err = helpers.EnsureIndex(ctx, es, cfg.ESAuditIndex, audit.IndexMapping)
		}
		if err != nil {
			logger.WithError(err).Warn("elasticsearch unavailable; audit events go to the log")
		} else {
			container.SetES(es)
			esSink = audit.NewESSink(es, cfg.ESAuditIndex, 1024, logger)
			esSink.Start()
			sink = esSink
		}
	}

	// Credential migration workers
	migrator := application.NewMigrator(pginfra.NewUserRepository(pool), users, logger,
		cfg.MigrationWorkers, cfg.MigrationQueueSize, cfg.MigrationTimeout)
	migrator.Audit = sink
	migrator.Metrics = m
	migrator.Start(ctx)
	go func() {
		for f := range migrator.Failures() {
			logger.WithFields(logrus.Fields{"user_id": f.UserID, "from": string(f.From)}).
				WithError(f.Err).Debug("credential migration failure observed")
		}
	}()

	// Provide infra singletons to container for registry auto-wiring
	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetPGPool(pool)
	container.SetRedis(rdb)
	container.SetJWT(jwtManager)
	container.SetCaches(users, tokens)
	container.SetMigrator(migrator)
	container.SetAudit(sink)
	container.SetMetrics(reg, m)

	// Gin engine and global middleware
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	r.Use(middleware.Metrics(m))
	// CORS
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOrigins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled || cfg.Env == "development" {
		r.Use(gin.Logger())
	}

	// Registry: auto-register modules using container
	registry := router.NewRegistry(r)
	router.InitModules(registry)
	registry.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	if err := migrator.Shutdown(ctxShutdown); err != nil {
		logger.WithError(err).Warn("credential migrations still pending at shutdown")
	}
	if esSink != nil {
		if err := esSink.Close(ctxShutdown); err != nil {
			logger.WithError(err).Warn("audit events dropped at shutdown")
		}
	}
	logger.Info("server exited properly")
}

func buildCaches(cfg *config.Config, rdb *redis.Client, logger *logrus.Logger) (cache.UserCache, cache.TokenCache) {
	tokenTTL := cfg.EffectiveTokenCacheTTL()
	if cfg.CacheBackend == "redis" {
		return cache.NewRedisUserCache(rdb, cfg.UserCacheTTL, logger),
			cache.NewRedisTokenCache(rdb, tokenTTL, logger)
	}
	return cache.NewMemoryUserCache(cfg.UserCacheSize, cfg.UserCacheTTL),
		cache.NewMemoryTokenCache(cfg.TokenCacheSize, tokenTTL)
}

func runMigrations(dsn string, migrationsDir string, logger *logrus.Logger) error {
	// Open sql DB via pgx stdlib
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationsDir), "postgres", driver)
	if err != nil {
		return err
	}
	logger.Info("running migrations...")
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to run")
		return nil
	}
	return err
}
