package helpers

import (
	"context"
	"fmt"
	"strings"
	"time"

	mailtpl "github.com/oksasatya/healthcare-storefront/pkg/mailer/templates"
)

const emailTimeLayout = "02 January 2006, 15:04 MST"

// EnrichWithGeo resolves data["IP"] once and uses the result to fill a
// missing Location and to render TimeAt/ExpiresAt in the recipient's zone.
// Nothing changes when the lookup fails.
func EnrichWithGeo(ctx context.Context, resolver mailtpl.GeoResolver, data map[string]any) {
	ip := strings.TrimSpace(stringOf(data["IP"]))
	if ip == "" || resolver == nil {
		return
	}
	g, err := resolver.Lookup(ctx, ip)
	if err != nil {
		return
	}
	if stringOf(data["Location"]) == "" {
		if loc := mailtpl.FormatGeo(g); loc != "" {
			data["Location"] = loc
		}
	}

	if strings.TrimSpace(g.Timezone) == "" {
		return
	}
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return
	}
	if t, ok := parseTimeAny(data["ExpiresAt"]); ok {
		data["ExpiresAtText"] = t.In(loc).Format(emailTimeLayout)
	}
	if t, ok := parseTimeAny(data["TimeAt"]); ok {
		data["Time"] = t.In(loc).Format(emailTimeLayout)
	}
}

func stringOf(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func parseTimeAny(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t, !t.IsZero()
	}
	s := stringOf(v)
	for _, l := range []string{time.RFC3339Nano, "2006-01-02 15:04:05 -0700 MST", "2006-01-02 15:04:05 -0700"} {
		if t, err := time.Parse(l, s); err == nil {
			return t, !t.IsZero()
		}
	}
	return time.Time{}, false
}
