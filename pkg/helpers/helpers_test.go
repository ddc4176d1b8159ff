package helpers

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/healthcare-storefront/pkg/mailer"
	mailtpl "github.com/oksasatya/healthcare-storefront/pkg/mailer/templates"
)

type fixedGeo struct {
	geo mailtpl.Geo
	err error
}

func (f fixedGeo) Lookup(context.Context, string) (mailtpl.Geo, error) { return f.geo, f.err }

func TestMapLegacyToUniversal(t *testing.T) {
	job := mailer.EmailJob{To: "jane@example.com", Template: "forgot_password"}
	MapLegacyToUniversal(&job)
	EnsureRecipientAndEmail(&job)

	assert.Equal(t, mailtpl.Universal, job.Template)
	assert.Equal(t, "forgot_password", job.Data["Type"])
	assert.Equal(t, "jane@example.com", job.Data["Email"])
	assert.Equal(t, "jane@example.com", job.Data["RecipientEmail"])
	assert.Equal(t, "Reset your password", SubjectForUniversal(job.Data))
}

func TestMapLegacyToUniversal_LeavesUnknownTemplates(t *testing.T) {
	job := mailer.EmailJob{Template: "newsletter"}
	MapLegacyToUniversal(&job)
	assert.Equal(t, "newsletter", job.Template)
}

func TestEnrichWithGeo(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	geo := fixedGeo{geo: mailtpl.Geo{City: "Jakarta", Country: "Indonesia", Timezone: "Asia/Jakarta"}}

	data := map[string]any{"IP": "203.0.113.7", "TimeAt": at.Format(time.RFC3339), "ExpiresAt": "0001-01-01T00:00:00Z"}
	EnrichWithGeo(context.Background(), geo, data)
	assert.Equal(t, "01 May 2024, 17:00 WIB", data["Time"])
	assert.Equal(t, "Jakarta, Indonesia", data["Location"])
	assert.NotContains(t, data, "ExpiresAtText")

	kept := map[string]any{"IP": "203.0.113.7", "Location": "Bandung"}
	EnrichWithGeo(context.Background(), geo, kept)
	assert.Equal(t, "Bandung", kept["Location"])

	untouched := map[string]any{"IP": "203.0.113.7", "TimeAt": at.Format(time.RFC3339)}
	EnrichWithGeo(context.Background(), fixedGeo{err: errors.New("lookup failed")}, untouched)
	assert.NotContains(t, untouched, "Time")
	assert.NotContains(t, untouched, "Location")
}

func TestRedisJSONHelpers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	type ticket struct {
		UserID string `json:"uid"`
	}
	require.NoError(t, RedisSetJSON(ctx, rdb, "k", ticket{UserID: "u-1"}, time.Minute))

	var got ticket
	ok, err := RedisGetJSON(ctx, rdb, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u-1", got.UserID)

	ok, err = RedisTakeJSON(ctx, rdb, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = RedisTakeJSON(ctx, rdb, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok, "taken values are gone")

	require.NoError(t, RedisSetJSON(ctx, rdb, "a", 1, 0))
	require.NoError(t, RedisDel(ctx, rdb, "a", "missing"))
	assert.False(t, mr.Exists("a"))
	assert.NoError(t, RedisDel(ctx, rdb))
}

func TestLogError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	LogError(logger, "send failed", errors.New("boom"), nil)

	assert.Equal(t, "send failed", hook.LastEntry().Message)
	assert.Equal(t, "boom", hook.LastEntry().Data["error"])
}
