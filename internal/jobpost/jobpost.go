// Package jobpost downloads job postings and reduces them to plain text.
package jobpost

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/spigell/hr-screener/internal/logger"
)

const (
	DefaultTimeout = 10 * time.Second

	userAgent       = "spigell/hr-screener"
	contentEncoding = "gzip"
	accept          = "text/html,application/xhtml+xml;q=0.9,text/plain;q=0.8"
	// Larger pages are truncated, job descriptions never get close.
	maxBodySize = 5 << 20
)

var (
	ErrInvalidURL = errors.New("invalid job posting url")
	ErrEmptyPage  = errors.New("job posting has no text")
)

type Posting struct {
	URL       string
	Title     string
	Text      string
	FetchedAt time.Time
}

// FetchError is returned for every failed fetch. StatusCode is zero when no
// response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch failure: %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch failure: %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Timeout reports whether the fetch failed because the deadline passed.
func (e *FetchError) Timeout() bool {
	var netErr interface{ Timeout() bool }
	return errors.Is(e.Err, context.DeadlineExceeded) || (errors.As(e.Err, &netErr) && netErr.Timeout())
}

type Client struct {
	HTTPClient *http.Client
	UserAgent  string

	limiter *HostLimiter
	logger  *zap.Logger
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.HTTPClient.Timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.UserAgent = ua
		}
	}
}

// WithRateLimit limits requests per host. Non-positive rates disable limiting.
func WithRateLimit(reqPerSec float64, burst int) Option {
	return func(c *Client) {
		if reqPerSec <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = NewHostLimiter(reqPerSec, burst)
	}
}

func New(l *zap.Logger, opts ...Option) *Client {
	c := &Client{
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		UserAgent: userAgent,
		logger:    logger.OrNop(l),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Fetch(ctx context.Context, rawURL string) (*Posting, error) {
	rawURL = strings.TrimSpace(rawURL)

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &FetchError{URL: rawURL, Err: ErrInvalidURL}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, u.Host); err != nil {
			return nil, &FetchError{URL: rawURL, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Encoding", contentEncoding)

	c.logger.Debug("make request", zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("bad status: %s", resp.Status)}
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
		}
		defer gz.Close()
		body = gz
	}

	title, text, err := parse(io.LimitReader(body, maxBodySize), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}

	if text == "" {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: ErrEmptyPage}
	}

	c.logger.Debug("job posting fetched",
		zap.String("url", rawURL),
		zap.String("title", title),
		zap.Int("text_length", len(text)),
	)

	return &Posting{
		URL:       rawURL,
		Title:     title,
		Text:      text,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func parse(r io.Reader, contentType string) (string, string, error) {
	if strings.HasPrefix(strings.ToLower(contentType), "text/plain") {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", "", err
		}
		return "", CleanText(string(data)), nil
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, template, svg").Remove()

	title := CleanText(doc.Find("title").First().Text())

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var b strings.Builder
	for _, n := range root.Nodes {
		collectText(n, &b)
	}

	return title, CleanText(b.String()), nil
}

// Block elements are padded with spaces so words from adjacent blocks stay apart.
var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "br": true, "tr": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true, "ul": true, "ol": true,
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		b.WriteString(" ")
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}

	if block {
		b.WriteString(" ")
	}
}

// CleanText collapses all whitespace runs, including non-breaking spaces, to single spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Static serves a fixed job description instead of downloading one.
type Static struct {
	Title string
	Text  string
}

func (s Static) Fetch(_ context.Context, rawURL string) (*Posting, error) {
	text := CleanText(s.Text)
	if text == "" {
		return nil, &FetchError{URL: rawURL, Err: ErrEmptyPage}
	}

	return &Posting{
		URL:       rawURL,
		Title:     s.Title,
		Text:      text,
		FetchedAt: time.Now().UTC(),
	}, nil
}
