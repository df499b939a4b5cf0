// Package handler drives the licensing orchestrator across the
// results of the external search/contents provider and assembles the
// response payload.
package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/contentgate/contentgate/internal/model"
	"github.com/contentgate/contentgate/internal/policy"
	"github.com/contentgate/contentgate/internal/provider"
	"github.com/contentgate/contentgate/internal/response"
)

const (
	defaultSearchType      = "auto"
	defaultLivecrawl       = "fallback"
	defaultContextMaxChars = 10000
)

// Handler handles /search and /contents. Provider failures fail the
// request; every licensing failure degrades to per-URL annotations.
type Handler struct {
	Provider          *provider.Client
	Engine            *policy.Engine
	Validate          *validator.Validate
	Log               zerolog.Logger
	DefaultNumResults int
	DefaultMaxChars   int
}

type searchRequest struct {
	Query                string `json:"query"`
	NumResults           int    `json:"numResults"`
	Livecrawl            string `json:"livecrawl"`
	Type                 string `json:"type"`
	ContextMaxCharacters int    `json:"contextMaxCharacters"`
	LicenseOptions
}

type contentsRequest struct {
	URL           string `json:"url"`
	MaxCharacters int    `json:"maxCharacters"`
	Livecrawl     string `json:"livecrawl"`
	LicenseOptions
}

// licenseDetail is the per-URL annotation attached to the payload when
// the caller asked for license detail or any URL was blocked.
type licenseDetail struct {
	URL         string                     `json:"url"`
	Title       string                     `json:"title,omitempty"`
	Unavailable string                     `json:"unavailable,omitempty"`
	Tokens      int                        `json:"tokens"`
	License     *model.LicenseInfo         `json:"license,omitempty"`
	Fetched     *model.LicensedFetchResult `json:"fetched,omitempty"`
}

type searchPayload struct {
	Context  string                        `json:"context,omitempty"`
	Results  []provider.Result             `json:"results,omitempty"`
	Licenses []licenseDetail               `json:"licenses,omitempty"`
	UsageLog *model.LicenseTrackingSummary `json:"usage_log,omitempty"`
}

type contentsPayload struct {
	RequestID string                        `json:"requestId,omitempty"`
	Results   []provider.Result             `json:"results"`
	Licenses  []licenseDetail               `json:"licenses,omitempty"`
	UsageLog  *model.LicenseTrackingSummary `json:"usage_log,omitempty"`
}

// Search handles POST /search: provider search, batch license check,
// orchestration, payload assembly.
func (h *Handler) Search(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid JSON body", err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return response.BadRequest(c, "missing 'query'", "query is required")
	}
	opts := req.LicenseOptions
	opts.ApplyDefaults()
	if err := h.Validate.Struct(&opts); err != nil {
		return response.BadRequest(c, "invalid license options", err.Error())
	}

	requestID := "web_search-" + uuid.NewString()[:8]
	logger := h.Log.With().Str("request_id", requestID).Str("tool", "web_search").Logger()
	logger.Info().Str("query", req.Query).Bool("fetch", opts.Fetch).Msg("search started")

	numResults := req.NumResults
	if numResults <= 0 {
		numResults = h.DefaultNumResults
	}
	searchType := req.Type
	if searchType == "" {
		searchType = defaultSearchType
	}
	livecrawl := req.Livecrawl
	if livecrawl == "" {
		livecrawl = defaultLivecrawl
	}
	contextMax := req.ContextMaxCharacters
	if contextMax <= 0 {
		contextMax = defaultContextMaxChars
	}

	ctx := c.Request().Context()
	resp, err := h.Provider.Search(ctx, provider.SearchRequest{
		Query:      req.Query,
		Type:       searchType,
		NumResults: numResults,
		Contents: provider.SearchContents{
			Text:      true,
			Context:   &provider.ContextSpec{MaxCharacters: contextMax},
			Livecrawl: livecrawl,
		},
	})
	if err != nil {
		return h.providerError(c, logger, "Search", err)
	}
	if resp == nil || (resp.Context == "" && len(resp.Results) == 0) {
		logger.Warn().Msg("empty response from provider")
		return response.OK(c, searchPayload{}, "No search results found. Please try a different query.")
	}

	items := make([]policy.Item, 0, len(resp.Results))
	urls := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		items = append(items, policy.Item{URL: r.URL, Text: r.Text})
		urls = append(urls, r.URL)
	}

	licenses := h.Engine.Ledger().CheckBatch(ctx, urls)
	outcome := h.Engine.Process(ctx, items, licenses, opts.PolicyOptions())
	hasBlocked := len(outcome.Blocked) > 0

	if !opts.IncludeLicenses && !opts.Fetch && !hasBlocked {
		logger.Info().Int("results", len(resp.Results)).Msg("search complete")
		return response.OK(c, searchPayload{Context: resp.Context}, "")
	}

	payload := searchPayload{
		Results:  sanitizeResults(resp.Results, outcome.Blocked),
		Licenses: h.licenseDetails(resp.Results, licenses, outcome, opts.Fetch),
	}
	if !hasBlocked {
		payload.Context = resp.Context
	}
	summary := h.Engine.Ledger().SessionSummary()
	payload.UsageLog = &summary

	logger.Info().Int("results", len(resp.Results)).Int("blocked", len(outcome.Blocked)).Msg("search complete")
	return response.OK(c, payload, "")
}

// Contents handles POST /contents: document retrieval for one URL with
// the same licensing pass.
func (h *Handler) Contents(c echo.Context) error {
	var req contentsRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid JSON body", err.Error())
	}
	if strings.TrimSpace(req.URL) == "" {
		return response.BadRequest(c, "missing 'url'", "url is required")
	}
	opts := req.LicenseOptions
	opts.ApplyDefaults()
	if err := h.Validate.Struct(&opts); err != nil {
		return response.BadRequest(c, "invalid license options", err.Error())
	}

	requestID := "contents-" + uuid.NewString()[:8]
	logger := h.Log.With().Str("request_id", requestID).Str("tool", "contents").Logger()
	logger.Info().Str("url", req.URL).Bool("fetch", opts.Fetch).Msg("contents started")

	maxChars := req.MaxCharacters
	if maxChars <= 0 {
		maxChars = h.DefaultMaxChars
	}
	livecrawl := req.Livecrawl
	if livecrawl == "" {
		livecrawl = "preferred"
	}

	ctx := c.Request().Context()
	resp, err := h.Provider.Contents(ctx, provider.ContentsRequest{
		IDs: []string{req.URL},
		Contents: provider.DocumentContents{
			Text:      &provider.TextSpec{MaxCharacters: maxChars},
			Livecrawl: livecrawl,
		},
	})
	if err != nil {
		return h.providerError(c, logger, "Contents", err)
	}
	if resp == nil || len(resp.Results) == 0 {
		logger.Warn().Msg("empty response from provider")
		return response.OK(c, contentsPayload{Results: []provider.Result{}}, "No content found for the provided URL.")
	}

	items := make([]policy.Item, 0, len(resp.Results))
	urls := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		u := r.URL
		if u == "" {
			u = req.URL
		}
		items = append(items, policy.Item{URL: u, Text: r.Text})
		urls = append(urls, u)
	}

	licenses := h.Engine.Ledger().CheckBatch(ctx, urls)
	outcome := h.Engine.Process(ctx, items, licenses, opts.PolicyOptions())
	hasBlocked := len(outcome.Blocked) > 0

	payload := contentsPayload{
		RequestID: resp.RequestID,
		Results:   sanitizeResults(resp.Results, outcome.Blocked),
	}
	if opts.IncludeLicenses || opts.Fetch || hasBlocked {
		payload.Licenses = h.licenseDetails(resp.Results, licenses, outcome, opts.Fetch)
		summary := h.Engine.Ledger().SessionSummary()
		payload.UsageLog = &summary
	}

	logger.Info().Int("results", len(resp.Results)).Int("blocked", len(outcome.Blocked)).Msg("contents complete")
	return response.OK(c, payload, "")
}

// UsageSummary handles GET /usage/summary.
func (h *Handler) UsageSummary(c echo.Context) error {
	return response.OK(c, h.Engine.Ledger().SessionSummary(), "")
}

// sanitizeResults empties the text of blocked results so withheld
// content never reaches the caller through the pass-through payload.
func sanitizeResults(results []provider.Result, blocked map[string]string) []provider.Result {
	out := make([]provider.Result, len(results))
	copy(out, results)
	for i := range out {
		if _, isBlocked := blocked[out[i].URL]; isBlocked {
			out[i].Text = ""
		}
	}
	return out
}

func (h *Handler) licenseDetails(results []provider.Result, licenses map[string]model.LicenseInfo, outcome policy.Outcome, fetchMode bool) []licenseDetail {
	details := make([]licenseDetail, 0, len(results))
	for _, r := range results {
		blocked := outcome.Blocked[r.URL]
		fetched := outcome.Fetched[r.URL]

		content := ""
		if blocked == "" {
			if fetched != nil && fetched.ContentText != "" {
				content = fetched.ContentText
			} else {
				content = r.Text
			}
		}

		d := licenseDetail{
			URL:         r.URL,
			Title:       r.Title,
			Unavailable: blocked,
			Tokens:      h.Engine.Ledger().EstimateTokens(content),
		}
		if info, ok := licenses[r.URL]; ok {
			d.License = &info
		}
		if fetchMode {
			d.Fetched = fetched
		}
		details = append(details, d)
	}
	return details
}

func (h *Handler) providerError(c echo.Context, logger zerolog.Logger, op string, err error) error {
	var se *provider.StatusError
	if errors.As(err, &se) {
		logger.Error().Int("status", se.StatusCode).Str("message", se.Message).Msg("provider request failed")
		return response.BadGateway(c, fmt.Sprintf("%s error (%d): %s", op, se.StatusCode, se.Message), se.Message)
	}
	logger.Error().Err(err).Msg("provider request failed")
	return response.BadGateway(c, fmt.Sprintf("%s error: %s", op, err.Error()), err.Error())
}
