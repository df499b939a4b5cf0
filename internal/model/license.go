package model

// Stage is the lifecycle phase content will be used for. It affects
// pricing and permission on the ledger side.
type Stage string

const (
	StageInfer Stage = "infer"
	StageEmbed Stage = "embed"
	StageTune  Stage = "tune"
	StageTrain Stage = "train"
)

// Distribution is whether the resulting use is private or public.
type Distribution string

const (
	DistributionPrivate Distribution = "private"
	DistributionPublic  Distribution = "public"
)

// Action is the ledger's license decision for a URL.
type Action string

const (
	ActionAllow   Action = "allow"
	ActionDeny    Action = "deny"
	ActionUnknown Action = "unknown"
)

// PaymentMethod is the payment rail used to satisfy an x402 offer.
type PaymentMethod string

const (
	PaymentAccountBalance PaymentMethod = "account_balance"
	PaymentX402           PaymentMethod = "x402"
)

// LicenseInfo is the per-URL license decision returned by the ledger.
// LicenseVersionID is set only when a grant has actually occurred,
// either through a prior license or a completed payment acquisition;
// it is never synthesized without a ledger transaction behind it.
type LicenseInfo struct {
	URL              string       `json:"url"`
	LicenseFound     bool         `json:"license_found"`
	Action           Action       `json:"action"`
	Distribution     Distribution `json:"distribution,omitempty"`
	Price            float64      `json:"price,omitempty"`
	PayTo            string       `json:"payto,omitempty"`
	LicenseVersionID int64        `json:"license_version_id,omitempty"`
	LicenseSig       string       `json:"license_sig,omitempty"`
	LicenseType      string       `json:"license_type,omitempty"`
	Error            string       `json:"error,omitempty"`
}

// Granted reports whether this license carries a completed grant.
func (l *LicenseInfo) Granted() bool {
	return l != nil && l.LicenseVersionID != 0
}

// UsageLogEntry is one append-only metering record submitted to the
// ledger. Never written when tokens is 0 or the governing license's
// action is deny.
type UsageLogEntry struct {
	URL              string       `json:"url"`
	Tokens           int          `json:"tokens"`
	LicenseVersionID int64        `json:"license_version_id,omitempty"`
	LicenseSig       string       `json:"license_sig,omitempty"`
	Stage            Stage        `json:"stage"`
	Distribution     Distribution `json:"distribution"`
	Timestamp        string       `json:"timestamp"`
}

// LedgerAcquireResponse is the ledger's grant on a successful payment.
type LedgerAcquireResponse struct {
	LicensedURL      string       `json:"licensed_url"`
	LicenseVersionID int64        `json:"license_version_id"`
	LicenseSig       string       `json:"license_sig"`
	ExpiresAt        string       `json:"expires_at"`
	Cost             float64      `json:"cost"`
	Currency         string       `json:"currency"`
	Stage            Stage        `json:"stage"`
	Distribution     Distribution `json:"distribution"`
	EstimatedTokens  int          `json:"estimated_tokens"`
	LicenseStatus    string       `json:"license_status"`
	RatePer1KTokens  float64      `json:"rate_per_1k_tokens"`
}

// LicenseTrackingSummary aggregates usage-log activity over the
// lifetime of one ledger client instance.
type LicenseTrackingSummary struct {
	TotalURLs         int64 `json:"total_urls"`
	LicensedContent   int64 `json:"licensed_content"`
	UnlicensedContent int64 `json:"unlicensed_content"`
	DeniedContent     int64 `json:"denied_content"`
	TotalTokens       int64 `json:"total_tokens"`
	TrackingEnabled   bool  `json:"tracking_enabled"`
	Errors            int64 `json:"errors"`
}
