package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/AnshRaj112/coursely-backend/pkg/logger"
)

const (
	LocationUnknown      = "Unknown"
	LocationLocalNetwork = "Local network"
)

// Geolocator resolves an IP address to a display location. It never fails; lookups
// that cannot be answered return LocationUnknown.
type Geolocator interface {
	Locate(ctx context.Context, ip string) string
}

// GeoService queries an ip-api.com compatible endpoint and caches answers in Redis.
type GeoService struct {
	baseURL string
	client  *http.Client
	cache   *CacheService
	ttl     time.Duration
	log     *logger.Logger
}

func NewGeoService(baseURL string, cache *CacheService, ttl time.Duration, log *logger.Logger) *GeoService {
	return &GeoService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 3 * time.Second},
		cache:   cache,
		ttl:     ttl,
		log:     log.Component("geo"),
	}
}

type ipAPIResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	City       string `json:"city"`
	RegionName string `json:"regionName"`
	Country    string `json:"country"`
}

func (g *GeoService) Locate(ctx context.Context, ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return LocationUnknown
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() || parsed.IsUnspecified() {
		return LocationLocalNetwork
	}

	key := CacheKey("geo", parsed.String())
	if g.cache != nil {
		var cached string
		if found, err := g.cache.Get(ctx, key, &cached); err == nil && found {
			return cached
		}
	}

	location, err := g.lookup(ctx, parsed.String())
	if err != nil {
		g.log.Debug().Err(err).Str("ip", parsed.String()).Msg("geolocation lookup failed")
		return LocationUnknown
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, key, location, g.ttl); err != nil {
			g.log.Warn().Err(err).Msg("failed to cache geolocation")
		}
	}
	return location
}

func (g *GeoService) lookup(ctx context.Context, ip string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/"+ip, nil)
	if err != nil {
		return "", err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geolocation endpoint returned %d", resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Status != "success" {
		return "", fmt.Errorf("geolocation failed: %s", body.Message)
	}

	var parts []string
	for _, p := range []string{body.City, body.RegionName, body.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return LocationUnknown, nil
	}
	return strings.Join(parts, ", "), nil
}
