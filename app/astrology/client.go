package astrology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-donations/config"
	"golang.org/x/sync/singleflight"
)

const (
	defaultBaseURL = "https://api.prokerala.com"
	refreshEarly   = 30 * time.Second
	maxBodyBytes   = 1 << 20

	lahiriAyanamsa = "1"
)

var (
	ErrNotConfigured = errors.New("astrology provider not configured")
	ErrUpstream      = errors.New("astrology provider error")
)

// tokenCache holds one OAuth access token. Concurrent misses share a single fetch.
type tokenCache struct {
	mu        sync.Mutex
	value     string
	expiresAt time.Time
	group     singleflight.Group
	now       func() time.Time
}

func (c *tokenCache) get(ctx context.Context, fetch func(context.Context) (string, time.Duration, error)) (string, error) {
	c.mu.Lock()
	if c.value != "" && c.now().Before(c.expiresAt.Add(-refreshEarly)) {
		token := c.value
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("token", func() (interface{}, error) {
		token, ttl, err := fetch(ctx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.value = token
		c.expiresAt = c.now().Add(ttl)
		c.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *tokenCache) invalidate() {
	c.mu.Lock()
	c.value = ""
	c.mu.Unlock()
}

// BirthDetails locates a birth in time and space. TZ is the UTC offset in
// hours, so India is 5.5.
type BirthDetails struct {
	DOB string
	TOB string
	Lat float64
	Lon float64
	TZ  float64
}

// Datetime renders the birth moment as ISO 8601 with its offset.
func (b BirthDetails) Datetime() string {
	sign := '+'
	offset := b.TZ
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	minutes := int(math.Round(offset * 60))
	return fmt.Sprintf("%sT%s:00%c%02d:%02d", b.DOB, b.TOB, sign, minutes/60, minutes%60)
}

func (b BirthDetails) Coordinates() string {
	return strconv.FormatFloat(b.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(b.Lon, 'f', -1, 64)
}

// Client proxies Prokerala astrology lookups.
type Client struct {
	cfg        config.AstrologyConfig
	httpClient *http.Client
	tokens     *tokenCache
}

func NewClient(cfg config.AstrologyConfig) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     &tokenCache{now: time.Now},
	}
}

func (c *Client) Enabled() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

func (c *Client) Kundali(ctx context.Context, b BirthDetails) (json.RawMessage, error) {
	return c.get(ctx, "/v2/astrology/kundli", birthParams(b))
}

// Matching compares two charts. Prokerala names the sides girl and boy; the
// first person is sent as the girl.
func (c *Client) Matching(ctx context.Context, first, second BirthDetails) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("girl_dob", first.Datetime())
	params.Set("girl_coordinates", first.Coordinates())
	params.Set("boy_dob", second.Datetime())
	params.Set("boy_coordinates", second.Coordinates())
	params.Set("ayanamsa", lahiriAyanamsa)
	params.Set("la", "en")
	return c.get(ctx, "/v2/astrology/kundli-matching", params)
}

func (c *Client) KaalSarpDosha(ctx context.Context, b BirthDetails) (json.RawMessage, error) {
	return c.get(ctx, "/v2/astrology/kalsarp-dosha", birthParams(b))
}

func (c *Client) SadeSati(ctx context.Context, b BirthDetails) (json.RawMessage, error) {
	return c.get(ctx, "/v2/astrology/sade-sati", birthParams(b))
}

func (c *Client) MangalDosha(ctx context.Context, b BirthDetails) (json.RawMessage, error) {
	return c.get(ctx, "/v2/astrology/mangal-dosha", birthParams(b))
}

func birthParams(b BirthDetails) url.Values {
	params := url.Values{}
	params.Set("datetime", b.Datetime())
	params.Set("coordinates", b.Coordinates())
	params.Set("ayanamsa", lahiriAyanamsa)
	params.Set("la", "en")
	return params
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	token, err := c.tokens.get(ctx, c.fetchToken)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.invalidate()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	return json.RawMessage(body), nil
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: token: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("%w: token status %d", ErrUpstream, resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&out); err != nil {
		return "", 0, fmt.Errorf("%w: token: %v", ErrUpstream, err)
	}
	if out.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: empty token", ErrUpstream)
	}
	if out.ExpiresIn <= 0 {
		out.ExpiresIn = 3600
	}
	return out.AccessToken, time.Duration(out.ExpiresIn) * time.Second, nil
}
