package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"blaulicht/internal/logging"
	"blaulicht/internal/report"
	"blaulicht/internal/services"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxBodyBytes       = 4 << 20
	locationPrefix     = "Ereignisort: "
	// genericNotice marks pages that show an unrelated archive notice in place
	// of the report text.
	genericNotice = "Durchsuchungsbeschlüsse bei drei Polizeibeamten"
)

var (
	listItemSelector = cascadia.MustCompile("ul.list--tablelist > li")
	dateSelector     = cascadia.MustCompile(".cell.nowrap.date")
	linkSelector     = cascadia.MustCompile(".cell.text a")
	locationSelector = cascadia.MustCompile(".category")
	// Report text sits in the page body; the emergency box repeats hotline
	// notices in the same markup.
	descriptionSelector = cascadia.MustCompile("div.text:not(.emergency-box) > div.textile")
)

// Config holds the archive layout and crawl settings.
type Config struct {
	BaseURL        string
	ArchivePath    string
	PageParam      string
	UserAgent      string
	TimeoutSeconds int
	MinDelay       time.Duration
	MaxDelay       time.Duration
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

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSleeper overrides how polite delays are performed (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// Client lists and fetches reports from the Berlin police press archive.
type Client struct {
	cfg        Config
	base       *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	sleep      func(context.Context, time.Duration) error
}

// NewClient constructs an archive client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "source", "new client", fmt.Sprintf("invalid base url %q", cfg.BaseURL), err)
	}
	if strings.Count(cfg.ArchivePath, "%d") != 1 {
		return nil, services.Wrap(services.ErrConfiguration, "source", "new client", "archive path needs one %d", nil)
	}
	if cfg.PageParam == "" {
		cfg.PageParam = "page_at_1_0"
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg:        cfg,
		base:       base,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNop(),
		sleep:      services.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "source")
	return c, nil
}

// PageURL returns the archive listing URL for year and 1-based page.
func (c *Client) PageURL(year, page int) string {
	ref := &url.URL{Path: fmt.Sprintf(c.cfg.ArchivePath, year)}
	u := c.base.ResolveReference(ref)
	q := u.Query()
	q.Set(c.cfg.PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// ListPage returns the reports on one archive page, newest first. An empty
// slice means the archive has no more pages for the year.
func (c *Client) ListPage(ctx context.Context, year, page int) ([]report.Report, error) {
	pageURL := c.PageURL(year, page)
	doc, err := c.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	items := listItemSelector.MatchAll(doc)
	reports := make([]report.Report, 0, len(items))
	for i, li := range items {
		r, missing := c.parseItem(li)
		if missing != "" {
			logging.WarnWithContext(c.logger, "skipping archive item", "list_item_skipped",
				logging.Int("year", year),
				logging.Int("page", page),
				logging.Int("item", i),
				logging.String("missing", missing),
				logging.String(logging.FieldErrorHint, "archive markup may have changed"),
				logging.String(logging.FieldImpact, "report not collected"),
			)
			continue
		}
		reports = append(reports, r)
	}
	c.logger.Debug("archive page listed",
		logging.Int("year", year),
		logging.Int("page", page),
		logging.Int("items", len(items)),
		logging.Int("reports", len(reports)),
	)
	return reports, nil
}

// parseItem returns the report or the name of the first missing part.
func (c *Client) parseItem(li *html.Node) (report.Report, string) {
	dateNode := dateSelector.MatchFirst(li)
	if dateNode == nil {
		return report.Report{}, "date"
	}
	date := textContent(dateNode, " ")
	if date == "" {
		return report.Report{}, "date"
	}
	anchor := linkSelector.MatchFirst(li)
	if anchor == nil {
		return report.Report{}, "link"
	}
	href := strings.TrimSpace(getAttr(anchor, "href"))
	title := textContent(anchor, " ")
	if href == "" {
		return report.Report{}, "link"
	}
	if title == "" {
		return report.Report{}, "title"
	}
	ref, err := url.Parse(href)
	if err != nil {
		return report.Report{}, "link"
	}
	var location string
	if node := locationSelector.MatchFirst(li); node != nil {
		location = strings.TrimSpace(strings.TrimPrefix(textContent(node, " "), locationPrefix))
	}
	return report.Report{
		Date:     date,
		Title:    title,
		Link:     c.base.ResolveReference(ref).String(),
		Location: location,
	}, ""
}

// FetchDescription returns the report text from a report page. It returns ""
// when the page has no report text and report.WarningPlaceholder when the page
// only shows the archive's generic notice.
func (c *Client) FetchDescription(ctx context.Context, link string) (string, error) {
	doc, err := c.fetch(ctx, link)
	if err != nil {
		return "", err
	}
	div := descriptionSelector.MatchFirst(doc)
	if div == nil {
		return "", nil
	}
	text := textContent(div, "\n")
	if strings.Contains(text, genericNotice) {
		return report.WarningPlaceholder, nil
	}
	return text, nil
}

// Compute fetches the description of r.
func (c *Client) Compute(ctx context.Context, r report.Report) (string, error) {
	if strings.TrimSpace(r.Link) == "" {
		return "", services.Wrap(services.ErrValidation, "source", "fetch description", "row has no link", nil)
	}
	return c.FetchDescription(ctx, r.Link)
}

// Pause waits a random polite delay between page fetches.
func (c *Client) Pause(ctx context.Context) error {
	delay := c.cfg.MinDelay
	if spread := c.cfg.MaxDelay - c.cfg.MinDelay; spread > 0 {
		delay += rand.N(spread)
	}
	return c.sleep(ctx, delay)
}

func (c *Client) fetch(ctx context.Context, target string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "source", "new request", target, err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrTransient, "source", "fetch", target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, services.Wrap(services.ErrNotFound, "source", "fetch", target, services.ErrTransient)
	case resp.StatusCode != http.StatusOK:
		return nil, services.Wrap(services.ErrTransient, "source", "fetch", fmt.Sprintf("%s: http %d", target, resp.StatusCode), nil)
	}
	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "source", "parse html", target, err)
	}
	return doc, nil
}
