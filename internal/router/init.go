package router

import (
	"github.com/oksasatya/healthcare-storefront/internal/application"
	"github.com/oksasatya/healthcare-storefront/internal/container"
	repouser "github.com/oksasatya/healthcare-storefront/internal/domain/repository"
	pginfra "github.com/oksasatya/healthcare-storefront/internal/infrastructure/postgres"
	handlers "github.com/oksasatya/healthcare-storefront/internal/interface/http"
	"github.com/oksasatya/healthcare-storefront/internal/router/modules"
)

type UserModuleDeps struct {
	Repo     repouser.UserRepository
	Auth     *application.AuthService
	Accounts *application.AccountService
	Handler  *handlers.UserHandler
}

func buildUserDeps() UserModuleDeps {
	cfg := container.GetConfig()
	repo := pginfra.NewUserRepository(container.GetPGPool())

	auth := application.NewAuthService(
		repo,
		container.GetUserCache(),
		container.GetTokenCache(),
		container.GetJWT(),
		container.GetMigrator(),
		container.GetLogger(),
	)
	auth.Audit = container.GetAudit()
	auth.Metrics = container.GetMetrics()
	auth.TokenTTL = cfg.TokenTTL
	auth.StoreTimeout = cfg.StoreTimeout
	auth.SignerTimeout = cfg.SignerTimeout

	var pub application.EmailPublisher
	if p := container.GetRabbitPub(); p != nil {
		pub = p
	}
	accounts := application.NewAccountService(
		repo,
		container.GetUserCache(),
		container.GetRedis(),
		pub,
		cfg,
		container.GetLogger(),
	)
	accounts.Audit = container.GetAudit()
	accounts.StoreTimeout = cfg.StoreTimeout

	handler := handlers.NewUserHandler(
		auth,
		accounts,
		container.GetLogger(),
		cfg.CookieDomain,
		cfg.CookieSecure,
	)

	return UserModuleDeps{
		Repo:     repo,
		Auth:     auth,
		Accounts: accounts,
		Handler:  handler,
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	userDeps := buildUserDeps()

	r.Add(modules.New(userDeps.Handler, container.GetJWT()))
	r.Add(modules.NewAuthModule(handlers.NewAuthHandler(userDeps.Accounts, logger)))

	if gcs := container.GetGCS(); gcs != nil && cfg.GCSBucket != "" {
		docs := application.NewDocumentService(application.GCSUploader(gcs), cfg.GCSBucket, cfg.GCSDocumentsPrefix, logger)
		r.Add(modules.NewDocumentModule(handlers.NewDocumentHandler(docs, logger), container.GetJWT()))
	}

	if cfg.MetricsEnabled && container.GetRegistry() != nil {
		r.AddRoot(modules.NewDebugModule(container.GetRegistry()))
	}
}
