package mymemory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"blaulicht/internal/services"
)

const (
	defaultBaseURL     = "https://api.mymemory.translated.net/get"
	defaultHTTPTimeout = 20 * time.Second
	// MaxQueryBytes is the largest q parameter MyMemory accepts.
	MaxQueryBytes = 500
	quotaWarning  = "MYMEMORY WARNING"
)

// Config captures the MyMemory settings.
type Config struct {
	BaseURL        string
	SourceLang     string
	TargetLang     string
	Email          string
	UserAgent      string
	TimeoutSeconds int
}

// Client calls the MyMemory translation endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a MyMemory client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			SourceLang:     strings.TrimSpace(cfg.SourceLang),
			TargetLang:     strings.TrimSpace(cfg.TargetLang),
			Email:          strings.TrimSpace(cfg.Email),
			UserAgent:      strings.TrimSpace(cfg.UserAgent),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.SourceLang == "" {
		client.cfg.SourceLang = "de-DE"
	}
	if client.cfg.TargetLang == "" {
		client.cfg.TargetLang = "en-GB"
	}
	return client
}

type response struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	// responseStatus arrives as a number or a numeric string.
	ResponseStatus json.RawMessage `json:"responseStatus"`
	ResponseDetail string          `json:"responseDetails"`
	QuotaFinished  *bool           `json:"quotaFinished"`
	Matches        []struct {
		Translation string `json:"translation"`
	} `json:"matches"`
}

func (r response) status() int {
	raw := strings.Trim(strings.TrimSpace(string(r.ResponseStatus)), `"`)
	code, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return code
}

// Translate translates one text. Quota exhaustion matches
// services.ErrQuotaExceeded; other failures match services.ErrTransient.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if len(text) > MaxQueryBytes {
		return "", services.Wrap(services.ErrValidation, "mymemory", "translate",
			fmt.Sprintf("text is %d bytes, limit %d", len(text), MaxQueryBytes), services.ErrTransient)
	}

	endpoint, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "mymemory", "build url", c.cfg.BaseURL, err)
	}
	query := endpoint.Query()
	query.Set("q", text)
	query.Set("langpair", c.cfg.SourceLang+"|"+c.cfg.TargetLang)
	if c.cfg.Email != "" {
		query.Set("de", c.cfg.Email)
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "mymemory", "new request", "", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrTransient, "mymemory", "request", "", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "mymemory", "read body", "", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", services.Wrap(services.ErrQuotaExceeded, "mymemory", "translate", "http 429", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrTransient, "mymemory", "translate",
			fmt.Sprintf("http %d: %s", resp.StatusCode, snippet(body)), nil)
	}

	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", services.Wrap(services.ErrTransient, "mymemory", "decode response", snippet(body), err)
	}
	translated := strings.TrimSpace(parsed.ResponseData.TranslatedText)
	switch {
	case parsed.status() == http.StatusTooManyRequests,
		parsed.QuotaFinished != nil && *parsed.QuotaFinished,
		strings.Contains(strings.ToUpper(translated), quotaWarning):
		return "", services.Wrap(services.ErrQuotaExceeded, "mymemory", "translate", firstNonEmpty(parsed.ResponseDetail, translated), nil)
	case parsed.status() != 0 && parsed.status() != http.StatusOK:
		return "", services.Wrap(services.ErrTransient, "mymemory", "translate",
			fmt.Sprintf("status %d: %s", parsed.status(), parsed.ResponseDetail), nil)
	}
	if translated == "" {
		for _, match := range parsed.Matches {
			if t := strings.TrimSpace(match.Translation); t != "" {
				translated = t
				break
			}
		}
	}
	if translated == "" {
		return "", services.Wrap(services.ErrTransient, "mymemory", "translate", "empty translation", nil)
	}
	return translated, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func snippet(body []byte) string {
	clean := strings.Join(strings.Fields(string(body)), " ")
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
