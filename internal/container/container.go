package container

import (
	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/healthcare-storefront/config"
	"github.com/oksasatya/healthcare-storefront/internal/application"
	"github.com/oksasatya/healthcare-storefront/internal/infrastructure/audit"
	"github.com/oksasatya/healthcare-storefront/internal/infrastructure/cache"
	"github.com/oksasatya/healthcare-storefront/internal/infrastructure/metrics"
	"github.com/oksasatya/healthcare-storefront/pkg/helpers"
)

// app-level container to share constructed components across packages
// Router can auto-wire modules from these singletons.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	pgPool      *pgxpool.Pool
	redisClient *redis.Client
	gcsClient   *storage.Client

	jwtManager *helpers.JWTManager

	rabbitPub *helpers.RabbitPublisher
	esClient  *elasticsearch.Client

	userCache  cache.UserCache
	tokenCache cache.TokenCache
	migrator   *application.Migrator
	auditSink  audit.Sink

	registry   *prometheus.Registry
	appMetrics *metrics.Metrics
)

func SetConfig(c *config.Config)   { cfg = c }
func GetConfig() *config.Config    { return cfg }
func SetLogger(l *logrus.Logger)   { logger = l }
func GetLogger() *logrus.Logger    { return logger }
func SetPGPool(p *pgxpool.Pool)    { pgPool = p }
func GetPGPool() *pgxpool.Pool     { return pgPool }
func SetRedis(r *redis.Client)     { redisClient = r }
func GetRedis() *redis.Client      { return redisClient }
func SetGCS(s *storage.Client)     { gcsClient = s }
func GetGCS() *storage.Client      { return gcsClient }
func SetJWT(m *helpers.JWTManager) { jwtManager = m }
func GetJWT() *helpers.JWTManager {
	if jwtManager != nil {
		return jwtManager
	}
	return helpers.DefaultJWT()
}

func SetRabbitPub(p *helpers.RabbitPublisher) { rabbitPub = p }
func GetRabbitPub() *helpers.RabbitPublisher  { return rabbitPub }
func SetES(c *elasticsearch.Client)           { esClient = c }
func GetES() *elasticsearch.Client            { return esClient }

func SetCaches(u cache.UserCache, t cache.TokenCache) { userCache, tokenCache = u, t }
func GetUserCache() cache.UserCache                   { return userCache }
func GetTokenCache() cache.TokenCache                 { return tokenCache }

func SetMigrator(m *application.Migrator) { migrator = m }
func GetMigrator() *application.Migrator  { return migrator }

// GetAudit never returns nil; without a configured sink events go to the log.
func GetAudit() audit.Sink {
	if auditSink != nil {
		return auditSink
	}
	return audit.LogSink{Logger: logger}
}
func SetAudit(s audit.Sink) { auditSink = s }

func SetMetrics(reg *prometheus.Registry, m *metrics.Metrics) { registry, appMetrics = reg, m }
func GetRegistry() *prometheus.Registry                      { return registry }
func GetMetrics() *metrics.Metrics                           { return appMetrics }
