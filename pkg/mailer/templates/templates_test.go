package templates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/healthcare-storefront/config"
)

func TestRender_Universal(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		subject string
		body    string
	}{
		{
			name:    "login notification",
			data:    NewLoginNotificationData(nil, "Jane", "jane@example.com", "jane@example.com", WithIP("10.0.0.1"), WithTime(time.Now())),
			subject: "New login to your account",
			body:    "10.0.0.1",
		},
		{
			name:    "forgot password",
			data:    NewForgotPasswordData(nil, "Jane", "jane@example.com", "jane@example.com", WithResetURL("https://x.test/reset?token=abc"), WithExpiresIn(time.Hour)),
			subject: "Reset your password",
			body:    "https://x.test/reset?token=abc",
		},
		{
			name:    "password changed",
			data:    NewPasswordChangedData(nil, "Jane", "jane@example.com", WithTime(time.Now())),
			subject: "Your password was changed",
			body:    "jane@example.com",
		},
		{
			name:    "profile updated",
			data:    NewProfileUpdatedData(nil, "Jane", "jane@example.com", map[string]string{"First name": "Janet"}),
			subject: "Your profile was updated",
			body:    "First name: Janet",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, text, html, err := Render(Universal, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.subject, subject)
			assert.Contains(t, text, tt.body)
			assert.Contains(t, html, "Hi Jane")
		})
	}
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind(" Forgot_Password ")
	assert.True(t, ok)
	assert.Equal(t, ForgotPassword, k)

	k, ok = ParseKind("newsletter")
	assert.False(t, ok)
	assert.Equal(t, "Notification", k.Subject("Apotek"))
}

func TestCompose(t *testing.T) {
	cfg := &config.Config{AppName: "Apotek", CompanyName: "Apotek Sehat", SupportURL: "https://help.test", ResetPasswordURL: "https://shop.test/reset"}
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	d := Compose(cfg, LoginNotification, "Jane", "jane@example.com", WithRecipient("ops@example.com"), WithTime(at), WithIP("203.0.113.7"))
	assert.Equal(t, "New login to your Apotek", d.Subject)
	assert.Equal(t, LoginNotification.Headline(), d.Headline)
	assert.True(t, d.SecurityNotice)
	assert.Equal(t, "ops@example.com", d.RecipientEmail)
	assert.Equal(t, "Apotek Sehat", d.CompanyName)
	assert.Equal(t, "https://shop.test/reset", d.ResetURL)
	assert.Equal(t, "01 May 2024, 10:00", d.Time)

	m := d.Map()
	assert.Equal(t, "login_notification", m["Type"])
	assert.Equal(t, "203.0.113.7", m["IP"])
	assert.Equal(t, "Apotek Sehat", m["CompanyName"], "embedded fields stay flat on the wire")

	p := Compose(nil, ProfileUpdated, "Jane", "jane@example.com")
	assert.False(t, p.SecurityNotice)
	assert.Equal(t, "jane@example.com", p.RecipientEmail)
}

func TestRender_SecurityNotice(t *testing.T) {
	_, text, html, err := Render(Universal, NewPasswordChangedData(nil, "Jane", "jane@example.com"))
	require.NoError(t, err)
	assert.Contains(t, text, "If this was not you")
	assert.Contains(t, html, "If this was not you")

	_, text, _, err = Render(Universal, NewProfileUpdatedData(nil, "Jane", "jane@example.com", map[string]string{"Last name": "Roe"}))
	require.NoError(t, err)
	assert.NotContains(t, text, "If this was not you")
}

func TestRender_DataWithoutSubjectRendersEmptySubject(t *testing.T) {
	subject, _, _, err := Render(Universal, map[string]any{"Type": "forgot_password", "Name": "Jane"})
	require.NoError(t, err)
	assert.Empty(t, subject)
}

func TestFormatGeo(t *testing.T) {
	assert.Equal(t, "Jakarta, DKI, Indonesia", FormatGeo(Geo{City: "Jakarta", Region: "DKI", Country: "Indonesia"}))
	assert.Equal(t, "Indonesia", FormatGeo(Geo{Country: " Indonesia "}))
}

type countingGeo struct {
	calls int
	err   error
}

func (c *countingGeo) Lookup(context.Context, string) (Geo, error) {
	c.calls++
	if c.err != nil {
		return Geo{}, c.err
	}
	return Geo{City: "Surabaya"}, nil
}

func TestCachedResolver(t *testing.T) {
	next := &countingGeo{}
	r := NewCachedResolver(next, 8, time.Minute)

	for i := 0; i < 3; i++ {
		g, err := r.Lookup(context.Background(), "203.0.113.9")
		require.NoError(t, err)
		assert.Equal(t, "Surabaya", g.City)
	}
	assert.Equal(t, 1, next.calls)

	failing := &countingGeo{err: errors.New("rate limited")}
	r = NewCachedResolver(failing, 8, time.Minute)
	_, _ = r.Lookup(context.Background(), "203.0.113.9")
	_, _ = r.Lookup(context.Background(), "203.0.113.9")
	assert.Equal(t, 2, failing.calls, "failures are retried")
}

func TestIPAPIResolver_SkipsPrivateAddresses(t *testing.T) {
	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.10", "::1"} {
		_, err := IPAPIResolver{}.Lookup(context.Background(), ip)
		assert.ErrorIs(t, err, ErrNoGeo, ip)
	}
	_, err := IPAPIResolver{}.Lookup(context.Background(), "not-an-ip")
	assert.Error(t, err)
}
