// Package fetcher fetches a single URL's content with x402 paywall
// support: a 402 challenge can be satisfied transparently through the
// ledger's acquire operation, with at most one payment attempt and one
// retried request per call.
package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/contentgate/contentgate/internal/model"
)

// Ledger is the acquisition side of the ledger client, the only part
// the fetcher needs.
type Ledger interface {
	Acquire(ctx context.Context, url string, stage model.Stage, distribution model.Distribution, estimatedTokens int, method model.PaymentMethod) (*model.LedgerAcquireResponse, error)
}

// Options shape one paywall-aware fetch.
type Options struct {
	Ledger          Ledger
	Stage           model.Stage
	Distribution    model.Distribution
	EstimatedTokens int
	MaxChars        int
	PaymentMethod   model.PaymentMethod
}

const defaultMaxChars = 200000

// Fetcher issues bounded plain-HTTP fetches of origin content.
// Calling Fetch twice for the same URL is safe but not deduplicated;
// per-request deduplication belongs to the policy layer.
type Fetcher struct {
	http *http.Client
	log  zerolog.Logger
}

// New returns a Fetcher whose requests are bounded by timeout.
func New(timeout time.Duration, logger zerolog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		http: &http.Client{Timeout: timeout},
		log:  logger.With().Str("component", "fetcher").Logger(),
	}
}

// Fetch runs the paywall-aware state machine for url:
// 2xx delivers content, 401/403 is unauthorized, 402 parses the x402
// challenge and (when a ledger is available) attempts exactly one
// acquisition followed by exactly one retried request. Transport
// errors yield an errored result; nothing here fails the caller.
func (f *Fetcher) Fetch(ctx context.Context, url string, opts Options) model.LicensedFetchResult {
	if opts.MaxChars <= 0 {
		opts.MaxChars = defaultMaxChars
	}
	res := model.LicensedFetchResult{
		State:        model.FetchErrored,
		RequestedURL: url,
	}

	resp, err := f.get(ctx, url, nil)
	if err != nil {
		res.Error = err.Error()
		f.log.Warn().Err(err).Str("url", url).Msg("fetch failed")
		return res
	}
	f.classify(&res, resp, opts)

	if res.State == model.FetchPaymentChallenged && opts.Ledger != nil && opts.PaymentMethod != "" {
		res.PaymentAttempted = true
		grant, err := opts.Ledger.Acquire(ctx, url, opts.Stage, opts.Distribution, opts.EstimatedTokens, opts.PaymentMethod)
		if err != nil {
			res.Error = err.Error()
			f.log.Warn().Err(err).Str("url", url).Msg("license acquisition failed")
			return res
		}
		res.Acquire = &model.AcquireGrant{
			LicensedURL:      grant.LicensedURL,
			Cost:             grant.Cost,
			Currency:         grant.Currency,
			ExpiresAt:        grant.ExpiresAt,
			LicenseVersionID: grant.LicenseVersionID,
			LicenseSig:       grant.LicenseSig,
		}

		// One retry with the granted credential. A second 402 stays
		// payment-challenged; there is no second acquisition.
		retry, err := f.get(ctx, url, map[string]string{
			"X-License-Version-Id": strconv.FormatInt(grant.LicenseVersionID, 10),
			"X-License-Sig":        grant.LicenseSig,
		})
		if err != nil {
			res.State = model.FetchErrored
			res.Error = err.Error()
			return res
		}
		f.classify(&res, retry, opts)
	}
	return res
}

// classify consumes resp and fills res according to the status code.
func (f *Fetcher) classify(res *model.LicensedFetchResult, resp *http.Response, opts Options) {
	defer resp.Body.Close()
	res.Status = resp.StatusCode
	res.FinalURL = resp.Request.URL.String()
	res.ContentType = resp.Header.Get("Content-Type")
	res.Error = ""

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		res.State = model.FetchDelivered
		if isTextual(res.ContentType) {
			res.ContentText = readBody(resp.Body, opts.MaxChars)
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		res.State = model.FetchUnauthorized
		res.ContentText = ""
	case resp.StatusCode == http.StatusPaymentRequired:
		res.State = model.FetchPaymentChallenged
		res.PaymentRequired = true
		res.ContentText = ""
		if res.X402 == nil {
			res.X402 = parseChallenge(resp)
		}
	default:
		res.State = model.FetchErrored
		res.ContentText = ""
		res.Error = "unexpected status " + strconv.Itoa(resp.StatusCode)
	}
}

func (f *Fetcher) get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html, text/plain, application/json;q=0.9, */*;q=0.8")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return f.http.Do(req)
}

// parseChallenge reads x402 terms from a 402 response: JSON body when
// the origin sends one, X-402-* headers otherwise.
func parseChallenge(resp *http.Response) *model.X402Challenge {
	ch := &model.X402Challenge{
		Price:          resp.Header.Get("X-402-Price"),
		PayTo:          resp.Header.Get("X-402-Payto"),
		Stage:          resp.Header.Get("X-402-Stage"),
		Distribution:   resp.Header.Get("X-402-Distribution"),
		FacilitatorURL: resp.Header.Get("X-402-Facilitator-Url"),
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		var body struct {
			Price          string `json:"price"`
			PayTo          string `json:"payto"`
			Stage          string `json:"stage"`
			Distribution   string `json:"distribution"`
			FacilitatorURL string `json:"facilitator_url"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil {
			if body.Price != "" {
				ch.Price = body.Price
			}
			if body.PayTo != "" {
				ch.PayTo = body.PayTo
			}
			if body.Stage != "" {
				ch.Stage = body.Stage
			}
			if body.Distribution != "" {
				ch.Distribution = body.Distribution
			}
			if body.FacilitatorURL != "" {
				ch.FacilitatorURL = body.FacilitatorURL
			}
		}
	}
	return ch
}

// readBody reads at most maxChars bytes of the body.
func readBody(r io.Reader, maxChars int) string {
	b, _ := io.ReadAll(io.LimitReader(r, int64(maxChars)))
	return string(b)
}

func isTextual(contentType string) bool {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "text/"):
		return true
	case strings.Contains(ct, "json"), strings.Contains(ct, "xml"), strings.Contains(ct, "xhtml"):
		return true
	case ct == "":
		// Origins that omit the header still mostly serve text.
		return true
	default:
		return false
	}
}
