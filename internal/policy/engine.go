package policy

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/contentgate/contentgate/internal/fetcher"
	"github.com/contentgate/contentgate/internal/ledger"
	"github.com/contentgate/contentgate/internal/model"
)

// Item is one candidate document: a URL plus any text the provider
// already returned for it.
type Item struct {
	URL  string
	Text string
}

// Options shape one orchestration pass. Validated upstream at the
// handler boundary.
type Options struct {
	Fetch           bool
	Stage           model.Stage
	Distribution    model.Distribution
	EstimatedTokens int
	MaxChars        int
	PaymentMethod   model.PaymentMethod
}

// Outcome is the per-URL result of an orchestration pass.
type Outcome struct {
	Fetched map[string]*model.LicensedFetchResult
	Blocked map[string]string
}

// Engine drives the per-request licensing loop across a set of URLs.
type Engine struct {
	ledger      *ledger.Client
	fetcher     *fetcher.Fetcher
	maxParallel int
	log         zerolog.Logger
}

// NewEngine builds an orchestration engine. maxParallel bounds
// concurrent fetch-and-acquire cycles across distinct URLs.
func NewEngine(led *ledger.Client, f *fetcher.Fetcher, maxParallel int, logger zerolog.Logger) *Engine {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Engine{
		ledger:      led,
		fetcher:     f,
		maxParallel: maxParallel,
		log:         logger.With().Str("component", "policy").Logger(),
	}
}

// Ledger exposes the engine's ledger client for summary reads.
func (e *Engine) Ledger() *ledger.Client { return e.ledger }

type urlResult struct {
	url     string
	fetched *model.LicensedFetchResult
	blocked string
}

// Process runs the licensing loop over items against a prior batch
// license check. In fetch mode, each distinct URL is fetched at most
// once (so at most one acquisition per URL per request), with blocked
// URLs skipped before any network fetch when the prior license already
// denies them. In non-fetch mode, usage is logged against the
// provider-supplied text under the same deny/zero-token rules.
// Process returns only after every per-URL task has finished, so a
// session summary read after it reflects all logs of this request.
func (e *Engine) Process(ctx context.Context, items []Item, licenses map[string]model.LicenseInfo, opts Options) Outcome {
	out := Outcome{
		Fetched: make(map[string]*model.LicensedFetchResult),
		Blocked: make(map[string]string),
	}

	if !opts.Fetch {
		for _, item := range items {
			if item.URL == "" {
				continue
			}
			prior := lookupLicense(licenses, item.URL)
			if reason := UnavailableReason(prior, nil); reason != "" {
				out.Blocked[item.URL] = reason
				if reason == "license denied" {
					e.ledger.RecordDenied()
				}
				continue
			}
			if prior != nil {
				LogUsageFromContent(ctx, e.ledger, item.URL, item.Text, prior, opts.Stage, opts.Distribution)
			}
		}
		return out
	}

	urls := distinctURLs(items)
	results := make([]urlResult, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxParallel)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			results[i] = e.processURL(gctx, u, lookupLicense(licenses, u), opts)
			return nil
		})
	}
	// Join barrier: no summary read happens before all logs are issued.
	_ = g.Wait()

	for _, r := range results {
		if r.fetched != nil {
			out.Fetched[r.url] = r.fetched
		}
		if r.blocked != "" {
			out.Blocked[r.url] = r.blocked
		}
	}
	return out
}

// processURL is the fetch-mode cycle for one URL: pre-block check on
// the prior license alone, fetch, re-check against the outcome, then
// either withhold content or log usage for delivered content.
func (e *Engine) processURL(ctx context.Context, url string, prior *model.LicenseInfo, opts Options) urlResult {
	if reason := UnavailableReason(prior, nil); reason != "" {
		if reason == "license denied" {
			e.ledger.RecordDenied()
		}
		e.log.Debug().Str("url", url).Str("reason", reason).Msg("skipping fetch for blocked url")
		return urlResult{url: url, blocked: reason}
	}

	fetched := e.fetcher.Fetch(ctx, url, fetcher.Options{
		Ledger:          e.ledger,
		Stage:           opts.Stage,
		Distribution:    opts.Distribution,
		EstimatedTokens: opts.EstimatedTokens,
		MaxChars:        opts.MaxChars,
		PaymentMethod:   opts.PaymentMethod,
	})

	if reason := UnavailableReason(prior, &fetched); reason != "" {
		// Content never leaves the policy layer once blocked.
		fetched.ContentText = ""
		if reason == "license denied" {
			e.ledger.RecordDenied()
		}
		return urlResult{url: url, fetched: &fetched, blocked: reason}
	}

	if fetched.Delivered() && fetched.ContentText != "" {
		usageLicense := BuildUsageLicense(url, prior, &fetched)
		LogUsageFromContent(ctx, e.ledger, url, fetched.ContentText, usageLicense, opts.Stage, opts.Distribution)
	}
	return urlResult{url: url, fetched: &fetched}
}

func lookupLicense(licenses map[string]model.LicenseInfo, url string) *model.LicenseInfo {
	if info, ok := licenses[url]; ok {
		return &info
	}
	return nil
}

func distinctURLs(items []Item) []string {
	seen := make(map[string]struct{}, len(items))
	var urls []string
	for _, item := range items {
		if item.URL == "" {
			continue
		}
		if _, ok := seen[item.URL]; ok {
			continue
		}
		seen[item.URL] = struct{}{}
		urls = append(urls, item.URL)
	}
	return urls
}
