// Package ledger talks to the external licensing/ledger service:
// batch license lookup, license acquisition, and usage-log submission,
// with an optional TTL cache for lookups and in-memory session
// counters.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/contentgate/contentgate/internal/model"
	"github.com/contentgate/contentgate/internal/token"
)

// ErrMissingAPIURL is returned by New when the ledger endpoint is not
// configured. This is the one fatal configuration error; everything
// else degrades per call.
var ErrMissingAPIURL = errors.New("ledger: api url is required")

// Config holds the ledger endpoint, credential, per-operation timeouts
// and feature toggles.
type Config struct {
	APIURL         string
	APIKey         string
	CheckTimeout   time.Duration
	AcquireTimeout time.Duration
	LogTimeout     time.Duration
	EnableTracking bool
	EnableCache    bool
	CacheTTL       time.Duration
}

func (c *Config) applyDefaults() {
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = 5 * time.Second
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 10 * time.Second
	}
	if c.LogTimeout <= 0 {
		c.LogTimeout = 5 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
}

// Client is a license ledger client. Safe for concurrent use; the
// session counters and lookup cache are guarded internally. Counters
// accumulate for the lifetime of the client and reset only by
// constructing a new one.
type Client struct {
	cfg       Config
	http      *http.Client
	log       zerolog.Logger
	cache     *licenseCache
	track     tracking
	estimator token.Estimator
}

// New builds a ledger client. Returns ErrMissingAPIURL if cfg.APIURL
// is empty.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, ErrMissingAPIURL
	}
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	cfg.applyDefaults()
	c := &Client{
		cfg:  cfg,
		http: &http.Client{},
		log:  logger.With().Str("component", "ledger").Logger(),
	}
	if cfg.EnableCache {
		c.cache = newLicenseCache(cfg.CacheTTL)
	}
	return c, nil
}

// CheckBatch looks up license status for a set of URLs. Lookup failure
// degrades the affected URLs to {license_found:false, action:unknown,
// error:...}; it never fails the whole batch. Cached entries within
// their TTL are served without a network call.
func (c *Client) CheckBatch(ctx context.Context, urls []string) map[string]model.LicenseInfo {
	out := make(map[string]model.LicenseInfo, len(urls))
	var misses []string
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, seen := out[u]; seen {
			continue
		}
		if c.cache != nil {
			if info, ok := c.cache.get(u); ok {
				out[u] = info
				continue
			}
		}
		misses = append(misses, u)
		// Placeholder; overwritten below on success.
		out[u] = model.LicenseInfo{URL: u, Action: model.ActionUnknown}
	}
	if len(misses) == 0 {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CheckTimeout)
	defer cancel()

	var resp struct {
		Licenses []model.LicenseInfo `json:"licenses"`
	}
	err := c.post(ctx, "/licenses/check", map[string]any{"urls": misses}, &resp)
	if err != nil {
		c.log.Warn().Err(err).Int("urls", len(misses)).Msg("license check failed, degrading to unknown")
		for _, u := range misses {
			out[u] = model.LicenseInfo{URL: u, LicenseFound: false, Action: model.ActionUnknown, Error: err.Error()}
		}
		return out
	}

	resolved := make(map[string]model.LicenseInfo, len(resp.Licenses))
	for _, info := range resp.Licenses {
		if info.Action == "" {
			info.Action = model.ActionUnknown
		}
		resolved[info.URL] = info
	}
	for _, u := range misses {
		info, ok := resolved[u]
		if !ok {
			// Ledger had nothing to say about this URL.
			info = model.LicenseInfo{URL: u, LicenseFound: false, Action: model.ActionUnknown}
		}
		out[u] = info
		if c.cache != nil && info.Error == "" {
			c.cache.put(u, info)
		}
	}
	return out
}

// Acquire performs the payment handshake for url and returns the
// ledger's grant. Used by the fetcher when an x402 challenge is seen.
func (c *Client) Acquire(ctx context.Context, url string, stage model.Stage, distribution model.Distribution, estimatedTokens int, method model.PaymentMethod) (*model.LedgerAcquireResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AcquireTimeout)
	defer cancel()

	body := map[string]any{
		"url":              url,
		"stage":            stage,
		"distribution":     distribution,
		"estimated_tokens": estimatedTokens,
		"payment_method":   method,
	}
	var grant model.LedgerAcquireResponse
	if err := c.post(ctx, "/licenses/acquire", body, &grant); err != nil {
		return nil, err
	}
	if grant.LicenseVersionID == 0 {
		return nil, fmt.Errorf("ledger: acquire returned no license grant for %s", url)
	}
	return &grant, nil
}

// LogUsage submits one usage record. Transport errors are logged and
// counted, never returned: usage logging must not abort the caller's
// response path. When tracking is disabled this is a no-op.
func (c *Client) LogUsage(ctx context.Context, url string, tokens int, license *model.LicenseInfo, stage model.Stage, distribution model.Distribution) {
	if !c.cfg.EnableTracking {
		return
	}
	entry := model.UsageLogEntry{
		URL:          url,
		Tokens:       tokens,
		Stage:        stage,
		Distribution: distribution,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	if license != nil {
		entry.LicenseVersionID = license.LicenseVersionID
		entry.LicenseSig = license.LicenseSig
	}

	c.track.totalURLs.Add(1)
	c.track.totalTokens.Add(int64(tokens))
	if license.Granted() {
		c.track.licensed.Add(1)
	} else {
		c.track.unlicensed.Add(1)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.LogTimeout)
	defer cancel()
	if err := c.post(ctx, "/usage/log", entry, nil); err != nil {
		c.track.errors.Add(1)
		c.log.Warn().Err(err).Str("url", url).Int("tokens", tokens).Msg("usage log write failed")
		return
	}
	c.log.Debug().Str("url", url).Int("tokens", tokens).Msg("usage logged")
}

// RecordDenied counts a URL whose content was withheld because the
// license action is deny. No usage record is written for these.
func (c *Client) RecordDenied() {
	if !c.cfg.EnableTracking {
		return
	}
	c.track.denied.Add(1)
}

// SessionSummary returns a snapshot of the accumulated counters.
func (c *Client) SessionSummary() model.LicenseTrackingSummary {
	return c.track.summary(c.cfg.EnableTracking)
}

// EstimateTokens estimates usage units for text.
func (c *Client) EstimateTokens(text string) int {
	return c.estimator.Estimate(text)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ledger returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
