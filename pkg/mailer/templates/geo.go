package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrNoGeo is returned for addresses that cannot be located, such as
// loopback or private ranges.
var ErrNoGeo = errors.New("geo: address not routable")

// Geo is the coarse location of a login or reset request.
type Geo struct {
	City     string
	Region   string
	Country  string
	Timezone string
}

type GeoResolver interface {
	Lookup(ctx context.Context, ip string) (Geo, error)
}

// FormatGeo renders "City, Region, Country", skipping empty parts.
func FormatGeo(g Geo) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{g.City, g.Region, g.Country} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// IPAPIResolver looks addresses up on ip-api.com.
type IPAPIResolver struct {
	Client *http.Client
}

func (r IPAPIResolver) Lookup(ctx context.Context, ip string) (Geo, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return Geo{}, fmt.Errorf("geo: bad ip %q: %w", ip, err)
	}
	if !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return Geo{}, ErrNoGeo
	}
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}

	url := fmt.Sprintf("http://ip-api.com/json/%s?fields=status,message,country,regionName,city,timezone", addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Geo{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return Geo{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Geo{}, fmt.Errorf("geo lookup: status %d", resp.StatusCode)
	}

	var body struct {
		Status     string `json:"status"`
		Message    string `json:"message"`
		Country    string `json:"country"`
		RegionName string `json:"regionName"`
		City       string `json:"city"`
		Timezone   string `json:"timezone"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Geo{}, err
	}
	if !strings.EqualFold(body.Status, "success") {
		return Geo{}, fmt.Errorf("geo lookup failed: %s", body.Message)
	}
	return Geo{City: body.City, Region: body.RegionName, Country: body.Country, Timezone: body.Timezone}, nil
}

// CachedResolver memoizes successful lookups for ttl. Failures are not
// cached.
type CachedResolver struct {
	next  GeoResolver
	cache *expirable.LRU[string, Geo]
}

func NewCachedResolver(next GeoResolver, size int, ttl time.Duration) *CachedResolver {
	if size <= 0 {
		size = 1024
	}
	return &CachedResolver{next: next, cache: expirable.NewLRU[string, Geo](size, nil, ttl)}
}

func (r *CachedResolver) Lookup(ctx context.Context, ip string) (Geo, error) {
	ip = strings.TrimSpace(ip)
	if g, ok := r.cache.Get(ip); ok {
		return g, nil
	}
	g, err := r.next.Lookup(ctx, ip)
	if err != nil {
		return Geo{}, err
	}
	r.cache.Add(ip, g)
	return g, nil
}
