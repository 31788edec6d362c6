package connector

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lenscan/lenscan/internal/model"
	"github.com/lenscan/lenscan/internal/util"
)

// Page is one fetched document inside a webscrape payload.
type Page struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}

// PagesPayload is the webscrape payload envelope.
type PagesPayload struct {
	Pages []Page `json:"pages"`
}

// PagesContentType identifies a webscrape payload envelope.
const PagesContentType = "application/vnd.lenscan.pages+json"

// Webscrape fetches seed URLs over HTTP, honouring robots.txt, and wraps
// the fetched documents in a pages envelope. Seed templates substitute
// "{query}" with the URL-escaped query.
type Webscrape struct {
	id         string
	seeds      []string
	httpClient *http.Client
	robots     *util.RobotsChecker
	userAgent  string
	maxBytes   int64
}

// NewWebscrape creates a scraping connector from HTTP configuration and
// seed URL templates.
func NewWebscrape(id string, seeds []string, cfg model.HTTPConfig) *Webscrape {
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Webscrape{
		id:    id,
		seeds: seeds,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		robots:    util.NewRobotsChecker(cfg.UserAgent, cfg.Timeout),
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
	}
}

// ID implements Connector.
func (w *Webscrape) ID() string { return w.id }

// Fetch implements Connector. Disallowed or failed seeds are skipped;
// the call fails only when no seed produced a document.
func (w *Webscrape) Fetch(ctx context.Context, query string) (*Payload, error) {
	envelope := PagesPayload{}
	var lastErr error

	for _, seed := range w.seeds {
		pageURL := strings.ReplaceAll(seed, "{query}", url.QueryEscape(query))

		allowed, delay, err := w.robots.CanFetch(ctx, pageURL)
		if err != nil || !allowed {
			continue
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				return nil, &Error{ConnectorID: w.id, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		html, err := w.fetchPage(ctx, pageURL)
		if err != nil {
			lastErr = err
			continue
		}
		envelope.Pages = append(envelope.Pages, Page{URL: pageURL, HTML: html})
	}

	if len(envelope.Pages) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no seed URL produced a document")
		}
		if IsTimeout(lastErr) {
			return nil, &TimeoutError{ConnectorID: w.id}
		}
		return nil, &Error{ConnectorID: w.id, Err: lastErr}
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, &Error{ConnectorID: w.id, Err: err}
	}
	return &Payload{ContentType: PagesContentType, Body: body}, nil
}

func (w *Webscrape) fetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", w.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, w.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}
