package application

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/healthcare-storefront/config"
	"github.com/oksasatya/healthcare-storefront/internal/domain/credential"
	"github.com/oksasatya/healthcare-storefront/internal/domain/entity"
	repo "github.com/oksasatya/healthcare-storefront/internal/domain/repository"
	"github.com/oksasatya/healthcare-storefront/internal/infrastructure/audit"
	"github.com/oksasatya/healthcare-storefront/internal/infrastructure/cache"
	"github.com/oksasatya/healthcare-storefront/pkg/helpers"
	"github.com/oksasatya/healthcare-storefront/pkg/mailer"
	tpl "github.com/oksasatya/healthcare-storefront/pkg/mailer/templates"
)

// EmailPublisher puts an email job on the outgoing queue.
type EmailPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

const DefaultResetTTL = 30 * time.Minute

func keyResetToken(t string) string { return "pwd:reset:token:" + t }

// resetTicket is stored under the reset token. Hash pins the credential the
// ticket was issued against; any password change in between voids it.
type resetTicket struct {
	UserID   string    `json:"uid"`
	Hash     string    `json:"h"`
	IssuedAt time.Time `json:"iat"`
}

// AccountService owns every write to an account outside the login path.
// Each write that touches a credential or profile evicts the user cache
// entry for that email.
type AccountService struct {
	Repo     repo.UserRepository
	Users    cache.UserCache
	RDB      *redis.Client
	Pub      EmailPublisher
	Cfg      *config.Config
	Logger   *logrus.Logger
	Audit    audit.Sink
	ResetTTL time.Duration

	// StoreTimeout bounds each user store call.
	StoreTimeout time.Duration
}

func NewAccountService(r repo.UserRepository, users cache.UserCache, rdb *redis.Client, pub EmailPublisher, cfg *config.Config, logger *logrus.Logger) *AccountService {
	return &AccountService{
		Repo:         r,
		Users:        users,
		RDB:          rdb,
		Pub:          pub,
		Cfg:          cfg,
		Logger:       logger,
		ResetTTL:     DefaultResetTTL,
		StoreTimeout: DefaultStoreTimeout,
	}
}

func (s *AccountService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, orDefault(s.StoreTimeout, DefaultStoreTimeout))
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register always stores the canonical scheme.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, ErrValidation
	}
	hash, salt, err := credential.HashCanonical(in.Password)
	if err != nil {
		return nil, err
	}
	u := &entity.User{
		Email:          email,
		PasswordHash:   hash,
		PasswordSalt:   salt,
		PasswordScheme: credential.Canonical.String(),
		Status:         entity.StatusActive,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
	}
	sctx, cancel := s.storeCtx(ctx)
	err = s.Repo.Create(sctx, u)
	cancel()
	if err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: create user: %v", ErrDependency, err)
	}
	s.invalidate(ctx, email)
	s.record(audit.Event{Type: audit.EventRegister, Outcome: "success", UserID: u.ID, Email: email})
	return u, nil
}

func (s *AccountService) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	u, err := s.Repo.GetByID(sctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: get user: %v", ErrDependency, err)
	}
	return u, nil
}

type UpdateProfileInput struct {
	FirstName string
	LastName  string
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*entity.User, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	changes := map[string]string{}
	if v := strings.TrimSpace(in.FirstName); v != "" && v != u.FirstName {
		u.FirstName = v
		changes["First name"] = v
	}
	if v := strings.TrimSpace(in.LastName); v != "" && v != u.LastName {
		u.LastName = v
		changes["Last name"] = v
	}
	if len(changes) == 0 {
		return u, nil
	}
	sctx, cancel := s.storeCtx(ctx)
	err = s.Repo.UpdateProfile(sctx, u)
	cancel()
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: update profile: %v", ErrDependency, err)
	}
	s.invalidate(ctx, u.Email)
	s.enqueue(ctx, u.Email, tpl.NewProfileUpdatedData(s.Cfg, u.FirstName, u.Email, changes, tpl.WithTime(time.Now())))
	return u, nil
}

// ChangePassword verifies current under whatever scheme is stored and writes
// next in the canonical scheme.
func (s *AccountService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" || next == "" {
		return ErrValidation
	}
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if !credential.Verify(current, u.PasswordHash, u.PasswordSalt).Matched {
		s.record(audit.Event{Type: audit.EventPasswordChanged, Outcome: "invalid_credentials", UserID: u.ID})
		return ErrInvalidCredentials
	}
	if err := s.writeCanonical(ctx, u, next, u.PasswordHash); err != nil {
		if errors.Is(err, repo.ErrCredentialChanged) {
			return ErrInvalidCredentials
		}
		return err
	}
	s.record(audit.Event{Type: audit.EventPasswordChanged, Outcome: "success", UserID: u.ID, Email: u.Email})
	s.enqueue(ctx, u.Email, tpl.NewPasswordChangedData(s.Cfg, u.FirstName, u.Email, tpl.WithTime(time.Now())))
	return nil
}

// InitPasswordReset issues a single-use reset token for a known account and
// queues the reset email. Unknown emails succeed silently.
func (s *AccountService) InitPasswordReset(ctx context.Context, email, ip, userAgent string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrValidation
	}
	if s.RDB == nil {
		return fmt.Errorf("%w: reset store not configured", ErrDependency)
	}
	sctx, cancel := s.storeCtx(ctx)
	u, err := s.Repo.FindByNormalizedEmail(sctx, email)
	cancel()
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.record(audit.Event{Type: audit.EventPasswordReset, Outcome: "unknown_email", IP: ip})
			return nil
		}
		return fmt.Errorf("%w: find user: %v", ErrDependency, err)
	}
	if !u.IsActive() {
		return nil
	}
	tok, err := genToken(32)
	if err != nil {
		return err
	}
	ticket := resetTicket{UserID: u.ID, Hash: u.PasswordHash, IssuedAt: time.Now().UTC()}
	if err := helpers.RedisSetJSON(ctx, s.RDB, keyResetToken(tok), ticket, s.ResetTTL); err != nil {
		return fmt.Errorf("%w: store reset token: %v", ErrDependency, err)
	}
	link := tok
	if s.Cfg != nil && s.Cfg.ResetPasswordURL != "" {
		link = s.Cfg.ResetPasswordURL + "?token=" + tok
	}
	s.record(audit.Event{Type: audit.EventPasswordReset, Outcome: "issued", UserID: u.ID, IP: ip, UserAgent: userAgent})
	s.enqueue(ctx, u.Email, tpl.NewForgotPasswordData(s.Cfg, u.FirstName, u.Email, u.Email,
		tpl.WithTime(time.Now()),
		tpl.WithResetURL(link),
		tpl.WithExpiresIn(s.ResetTTL),
		tpl.WithIP(ip),
		tpl.WithUserAgent(userAgent),
	))
	return nil
}

// ConfirmPasswordReset consumes token and stores next in the canonical scheme.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, token, next string) error {
	if token == "" || next == "" {
		return ErrValidation
	}
	if s.RDB == nil {
		return fmt.Errorf("%w: reset store not configured", ErrDependency)
	}
	var ticket resetTicket
	ok, err := helpers.RedisTakeJSON(ctx, s.RDB, keyResetToken(token), &ticket)
	if err != nil {
		return fmt.Errorf("%w: read reset token: %v", ErrDependency, err)
	}
	if !ok || ticket.UserID == "" || ticket.Hash == "" {
		return ErrInvalidResetToken
	}
	u, err := s.GetProfile(ctx, ticket.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if err := s.writeCanonical(ctx, u, next, ticket.Hash); err != nil {
		if errors.Is(err, repo.ErrCredentialChanged) {
			return ErrInvalidResetToken
		}
		return err
	}
	s.record(audit.Event{Type: audit.EventPasswordReset, Outcome: "success", UserID: u.ID, Email: u.Email})
	s.enqueue(ctx, u.Email, tpl.NewPasswordChangedData(s.Cfg, u.FirstName, u.Email, tpl.WithTime(time.Now())))
	return nil
}

// NotifyLogin queues the new-login email for a successful login.
func (s *AccountService) NotifyLogin(ctx context.Context, res *LoginResult, ip, userAgent string) {
	if res == nil {
		return
	}
	s.enqueue(ctx, res.User.Email, tpl.NewLoginNotificationData(s.Cfg, res.User.FirstName, res.User.Email, res.User.Email,
		tpl.WithTime(time.Now()),
		tpl.WithIP(ip),
		tpl.WithUserAgent(userAgent),
	))
}

func (s *AccountService) writeCanonical(ctx context.Context, u *entity.User, secret, expectedHash string) error {
	hash, salt, err := credential.HashCanonical(secret)
	if err != nil {
		return err
	}
	sctx, cancel := s.storeCtx(ctx)
	err = s.Repo.UpdateCredential(sctx, u.ID, entity.CredentialUpdate{
		Hash:         hash,
		Salt:         salt,
		Scheme:       credential.Canonical.String(),
		ExpectedHash: expectedHash,
	})
	cancel()
	// the cached copy is stale whatever the outcome
	s.invalidate(ctx, u.Email)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrCredentialChanged):
		return err
	case errors.Is(err, repo.ErrNotFound):
		return ErrUserNotFound
	default:
		return fmt.Errorf("%w: update credential: %v", ErrDependency, err)
	}
}

func (s *AccountService) invalidate(ctx context.Context, email string) {
	if s.Users != nil {
		s.Users.Invalidate(ctx, email)
	}
}

func (s *AccountService) enqueue(ctx context.Context, to string, data map[string]any) {
	if s.Pub == nil || s.Cfg == nil || !s.Cfg.MailSendEnabled {
		return
	}
	job := mailer.NewTemplateJob(to, tpl.Universal, data)
	if err := s.Pub.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("template", data["Type"]).Warn("enqueue email failed")
	}
}

func (s *AccountService) record(ev audit.Event) {
	if s.Audit != nil {
		s.Audit.Record(ev)
	}
}

func genToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
