package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/healthcare-storefront/internal/domain/credential"
	"github.com/oksasatya/healthcare-storefront/internal/domain/entity"
	repo "github.com/oksasatya/healthcare-storefront/internal/domain/repository"
	"github.com/oksasatya/healthcare-storefront/internal/infrastructure/audit"
	"github.com/oksasatya/healthcare-storefront/internal/infrastructure/cache"
	"github.com/oksasatya/healthcare-storefront/internal/infrastructure/metrics"
	"github.com/oksasatya/healthcare-storefront/pkg/helpers"
)

// Signer issues a token binding the claims for ttl. A zero ttl means the
// signer's default validity.
type Signer interface {
	Sign(ctx context.Context, claims helpers.Claims, ttl time.Duration) (string, time.Time, error)
}

// MigrationScheduler accepts a credential rewrite without waiting for it.
type MigrationScheduler interface {
	Schedule(task MigrationTask) bool
}

const (
	DefaultStoreTimeout  = 3 * time.Second
	DefaultSignerTimeout = time.Second
)

// orDefault treats a non-positive timeout as unset.
func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

type LoginInput struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
	RequestID string
}

type LoginUser struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	IsCalendarLinked bool   `json:"isCalendarLinked"`
}

type LoginResult struct {
	Token            string
	ExpiresAt        time.Time
	User             LoginUser
	PasswordMigrated bool
}

// AuthService runs the login flow: user lookup through the user cache,
// credential verification under whichever scheme is stored, token issue
// through the token cache, and a background rewrite of non-canonical
// credentials.
type AuthService struct {
	Repo       repo.UserRepository
	Users      cache.UserCache
	Tokens     cache.TokenCache
	Signer     Signer
	Migrations MigrationScheduler
	Logger     *logrus.Logger

	Audit   audit.Sink
	Metrics *metrics.Metrics

	TokenTTL      time.Duration
	StoreTimeout  time.Duration
	SignerTimeout time.Duration
}

func NewAuthService(r repo.UserRepository, users cache.UserCache, tokens cache.TokenCache, signer Signer, migrations MigrationScheduler, logger *logrus.Logger) *AuthService {
	return &AuthService{
		Repo:          r,
		Users:         users,
		Tokens:        tokens,
		Signer:        signer,
		Migrations:    migrations,
		Logger:        logger,
		StoreTimeout:  DefaultStoreTimeout,
		SignerTimeout: DefaultSignerTimeout,
	}
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (res *LoginResult, err error) {
	start := time.Now()
	ev := audit.Event{Type: audit.EventLogin, IP: in.IP, UserAgent: in.UserAgent, RequestID: in.RequestID}
	defer func() {
		ev.Outcome = loginOutcome(err)
		if res != nil {
			ev.PasswordMigrated = res.PasswordMigrated
		}
		s.Metrics.Login(ev.Outcome, time.Since(start))
		if s.Audit != nil {
			s.Audit.Record(ev)
		}
	}()

	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, ErrValidation
	}
	ev.Email = email

	u, err := s.lookupUser(ctx, email)
	if err != nil {
		return nil, err
	}
	ev.UserID = u.ID
	if !u.IsActive() {
		return nil, ErrInvalidCredentials
	}

	outcome := credential.Verify(in.Password, u.PasswordHash, u.PasswordSalt)
	ev.Scheme = outcome.Scheme.String()
	if !outcome.Matched {
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.issueToken(ctx, u.ID, email)
	if err != nil {
		return nil, err
	}

	migrated := false
	if outcome.NeedsMigration() && s.Migrations != nil {
		migrated = s.Migrations.Schedule(MigrationTask{
			UserID:       u.ID,
			Email:        email,
			Secret:       in.Password,
			From:         outcome.Scheme,
			ObservedHash: u.PasswordHash,
		})
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: exp,
		User: LoginUser{
			ID:               u.ID,
			Email:            u.Email,
			FirstName:        u.FirstName,
			LastName:         u.LastName,
			IsCalendarLinked: u.IsCalendarLinked(),
		},
		PasswordMigrated: migrated,
	}, nil
}

// lookupUser reads through the user cache. Deleted and unknown accounts are
// indistinguishable from a wrong password. The fill is skipped when the entry
// was invalidated while the store read was in flight.
func (s *AuthService) lookupUser(ctx context.Context, email string) (*entity.User, error) {
	var (
		gen   uint64
		genOK bool
	)
	if s.Users != nil {
		u, ok := s.Users.Get(ctx, email)
		s.Metrics.CacheLookup("user", ok)
		if ok {
			return u, nil
		}
		gen, genOK = s.Users.Generation(ctx, email)
	}

	fctx, cancel := context.WithTimeout(ctx, orDefault(s.StoreTimeout, DefaultStoreTimeout))
	defer cancel()
	u, err := s.Repo.FindByNormalizedEmail(fctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logError(err, "user lookup failed")
		return nil, fmt.Errorf("%w: user store: %v", ErrDependency, err)
	}
	if u.Status == entity.StatusDeleted {
		return nil, ErrInvalidCredentials
	}
	if genOK {
		s.Users.PutIfGeneration(ctx, email, u, gen)
	}
	return u, nil
}

// issueToken is only reached after the credential check has passed.
func (s *AuthService) issueToken(ctx context.Context, userID, email string) (string, time.Time, error) {
	if s.Tokens != nil {
		tok, exp, ok := s.Tokens.Get(ctx, userID, email)
		s.Metrics.CacheLookup("token", ok)
		if ok {
			return tok, exp, nil
		}
	}

	sctx, cancel := context.WithTimeout(ctx, orDefault(s.SignerTimeout, DefaultSignerTimeout))
	defer cancel()
	tok, exp, err := s.Signer.Sign(sctx, helpers.Claims{UserID: userID, Email: email}, s.TokenTTL)
	if err != nil {
		s.logError(err, "token signing failed")
		return "", time.Time{}, fmt.Errorf("%w: signer: %v", ErrDependency, err)
	}
	if s.Tokens != nil {
		s.Tokens.Put(ctx, userID, email, tok, exp)
	}
	return tok, exp, nil
}

func (s *AuthService) logError(err error, msg string) {
	if s.Logger != nil {
		s.Logger.WithError(err).Error(msg)
	}
}

func loginOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "dependency_error"
	}
}
