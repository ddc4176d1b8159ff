package templates

import (
	"context"
	"strings"
	"time"

	"github.com/oksasatya/healthcare-storefront/config"
)

const displayLayout = "02 January 2006, 15:04"

// Option adjusts one email before it is queued.
type Option func(*EmailData)

func WithIP(ip string) Option        { return func(d *EmailData) { d.IP = ip } }
func WithUserAgent(ua string) Option { return func(d *EmailData) { d.UserAgent = ua } }
func WithResetURL(url string) Option { return func(d *EmailData) { d.ResetURL = url } }

func WithRecipient(addr string) Option {
	return func(d *EmailData) {
		if s := strings.TrimSpace(addr); s != "" {
			d.RecipientEmail = s
		}
	}
}

// WithTime stamps when the action happened, in UTC. The worker re-renders
// Time in the recipient's zone when it can resolve one.
func WithTime(t time.Time) Option {
	return func(d *EmailData) {
		d.TimeAt = t.UTC()
		d.Time = d.TimeAt.Format(displayLayout)
	}
}

func WithExpiresAt(t time.Time) Option {
	return func(d *EmailData) {
		d.ExpiresAt = t.UTC()
		d.ExpiresAtText = d.ExpiresAt.Format(displayLayout)
	}
}

func WithExpiresIn(dur time.Duration) Option { return WithExpiresAt(time.Now().Add(dur)) }

func WithChanges(ch map[string]string) Option {
	return func(d *EmailData) { d.Changes = ch }
}

func WithLocation(loc string) Option {
	return func(d *EmailData) {
		if s := strings.TrimSpace(loc); s != "" {
			d.Location = s
		}
	}
}

func WithGeo(g Geo) Option { return WithLocation(FormatGeo(g)) }

// WithGeoFromIP resolves ip through r. Lookup failures leave Location alone.
func WithGeoFromIP(ctx context.Context, r GeoResolver, ip string) Option {
	return func(d *EmailData) {
		if r == nil || strings.TrimSpace(ip) == "" {
			return
		}
		if g, err := r.Lookup(ctx, ip); err == nil {
			WithGeo(g)(d)
		}
	}
}

// BrandFrom copies the sender identity out of cfg.
func BrandFrom(cfg *config.Config) Brand {
	if cfg == nil {
		return Brand{}
	}
	return Brand{
		CompanyName:    cfg.CompanyName,
		CompanyAddress: cfg.CompanyAddress,
		AppName:        cfg.AppName,
		LogoURL:        cfg.LogoURL,
		SupportURL:     cfg.SupportURL,
		PrivacyURL:     cfg.PrivacyURL,
		UnsubscribeURL: cfg.UnsubscribeURL,
	}
}

// Compose builds the data for one email of kind addressed to email: brand
// from cfg, the kind's subject and headline, then opts in order.
func Compose(cfg *config.Config, kind Kind, name, email string, opts ...Option) EmailData {
	d := EmailData{
		Kind:           kind,
		Headline:       kind.Headline(),
		SecurityNotice: kind.Security(),
		Name:           name,
		Email:          email,
		RecipientEmail: email,
		Brand:          BrandFrom(cfg),
	}
	if cfg != nil {
		d.ResetURL = cfg.ResetPasswordURL
	}
	for _, opt := range opts {
		opt(&d)
	}
	d.Subject = kind.Subject(d.AppName)
	return d
}

func NewLoginNotificationData(cfg *config.Config, name, email, recipient string, opts ...Option) map[string]any {
	return Compose(cfg, LoginNotification, name, email, append([]Option{WithRecipient(recipient)}, opts...)...).Map()
}

// NewForgotPasswordData expects WithResetURL carrying the token link.
func NewForgotPasswordData(cfg *config.Config, name, email, recipient string, opts ...Option) map[string]any {
	return Compose(cfg, ForgotPassword, name, email, append([]Option{WithRecipient(recipient)}, opts...)...).Map()
}

func NewPasswordChangedData(cfg *config.Config, name, email string, opts ...Option) map[string]any {
	return Compose(cfg, PasswordChanged, name, email, opts...).Map()
}

func NewProfileUpdatedData(cfg *config.Config, name, email string, changes map[string]string, opts ...Option) map[string]any {
	return Compose(cfg, ProfileUpdated, name, email, append([]Option{WithChanges(changes)}, opts...)...).Map()
}
