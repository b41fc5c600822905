package geo

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	Endpoint  string
	UserAgent string
	Timeout   time.Duration
	Client    *http.Client
}

func New(endpoint, userAgent string, timeout time.Duration) *Client {
	return &Client{
		Endpoint:  endpoint,
		UserAgent: userAgent,
		Timeout:   timeout,
		Client:    http.DefaultClient,
	}
}

// lookupResponse covers the field names used by the common free IP
// geolocation services.
type lookupResponse struct {
	CountryCode    string `json:"country_code"`
	CountryCodeAlt string `json:"countryCode"`
	Country        string `json:"country"`
	Error          bool   `json:"error"`
	Reason         string `json:"reason"`
}

// Lookup returns the upper-cased ISO 3166-1 alpha-2 code of the country the
// service places this process in.
func (c *Client) Lookup(ctx context.Context) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create geolocation request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach geolocation service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("geolocation http %d: %s", resp.StatusCode, raw)
	}

	var out lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode geolocation response: %w", err)
	}
	if out.Error {
		return "", fmt.Errorf("geolocation service error: %s", cmp.Or(out.Reason, "unknown"))
	}

	code := strings.ToUpper(strings.TrimSpace(cmp.Or(out.CountryCode, out.CountryCodeAlt, out.Country)))
	if !isAlpha2(code) {
		return "", fmt.Errorf("geolocation response has no country code: %q", code)
	}

	return code, nil
}

func isAlpha2(code string) bool {
	if len(code) != 2 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}
