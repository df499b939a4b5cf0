// Package policy is the licensing decision layer: it reconciles prior
// license state with fetch outcomes, decides whether content may be
// surfaced, and triggers usage logging exactly once per eligible URL.
package policy

import (
	"context"
	"fmt"

	"github.com/contentgate/contentgate/internal/model"
)

// UsageLedger is the metering side of the ledger client.
type UsageLedger interface {
	LogUsage(ctx context.Context, url string, tokens int, license *model.LicenseInfo, stage model.Stage, distribution model.Distribution)
	EstimateTokens(text string) int
	RecordDenied()
}

// BuildUsageLicense picks the license a usage log should be attributed
// to. A prior license that already carries a grant is authoritative
// and is never overwritten by a later fetch's grant. Without a prior
// grant, a completed acquisition from the fetch yields a fresh allow
// license tagged with the x402 rail. Otherwise the prior license (or
// nil) passes through unchanged.
func BuildUsageLicense(url string, prior *model.LicenseInfo, fetched *model.LicensedFetchResult) *model.LicenseInfo {
	if prior.Granted() {
		return prior
	}
	if fetched != nil && fetched.Acquire != nil && fetched.Acquire.LicenseVersionID != 0 {
		return &model.LicenseInfo{
			URL:              url,
			LicenseFound:     true,
			Action:           model.ActionAllow,
			LicenseVersionID: fetched.Acquire.LicenseVersionID,
			LicenseSig:       fetched.Acquire.LicenseSig,
			LicenseType:      "x402",
		}
	}
	return prior
}

// UnavailableReason classifies why a URL's content is withheld, or
// returns "" when it is available. An explicit deny always wins over
// any fetch status, even a nominally successful one.
func UnavailableReason(license *model.LicenseInfo, fetched *model.LicensedFetchResult) string {
	if license != nil && license.Action == model.ActionDeny {
		return "license denied"
	}
	if fetched != nil {
		switch fetched.Status {
		case 401, 403:
			return fmt.Sprintf("blocked (%d)", fetched.Status)
		case 402:
			return "payment required"
		}
	}
	return ""
}

// LogUsageFromContent writes one usage record for content consumed
// under license. No-op when there is no license, when the license
// denies use, or when the estimator yields zero tokens.
func LogUsageFromContent(ctx context.Context, ledger UsageLedger, url, content string, license *model.LicenseInfo, stage model.Stage, distribution model.Distribution) {
	if license == nil || license.Action == model.ActionDeny {
		return
	}
	tokens := ledger.EstimateTokens(content)
	if tokens == 0 {
		return
	}
	ledger.LogUsage(ctx, url, tokens, license, stage, distribution)
}
