package model

// FetchState tags which terminal state a paywall-aware fetch reached.
type FetchState string

const (
	FetchDelivered         FetchState = "delivered"
	FetchUnauthorized      FetchState = "unauthorized"
	FetchPaymentChallenged FetchState = "payment_challenged"
	FetchErrored           FetchState = "errored"
)

// X402Challenge holds the machine-readable payment terms carried by an
// HTTP 402 response.
type X402Challenge struct {
	Price          string `json:"price,omitempty"`
	PayTo          string `json:"payto,omitempty"`
	Stage          string `json:"stage,omitempty"`
	Distribution   string `json:"distribution,omitempty"`
	FacilitatorURL string `json:"facilitator_url,omitempty"`
}

// AcquireGrant is the subset of the ledger's acquire response attached
// to a fetch result after a successful payment.
type AcquireGrant struct {
	LicensedURL      string  `json:"licensed_url"`
	Cost             float64 `json:"cost"`
	Currency         string  `json:"currency"`
	ExpiresAt        string  `json:"expires_at"`
	LicenseVersionID int64   `json:"license_version_id"`
	LicenseSig       string  `json:"license_sig"`
}

// LicensedFetchResult is the outcome of one paywall-aware fetch.
// State says which branch was reached; the optional fields are only
// populated on the branches they belong to. ContentText must be
// cleared whenever the URL is later classified as blocked, even if
// bytes were received.
type LicensedFetchResult struct {
	State            FetchState     `json:"state"`
	RequestedURL     string         `json:"requested_url"`
	FinalURL         string         `json:"final_url,omitempty"`
	Status           int            `json:"status,omitempty"`
	ContentType      string         `json:"content_type,omitempty"`
	ContentText      string         `json:"content_text,omitempty"`
	PaymentAttempted bool           `json:"payment_attempted"`
	PaymentRequired  bool           `json:"payment_required"`
	X402             *X402Challenge `json:"x402,omitempty"`
	Acquire          *AcquireGrant  `json:"acquire,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// Delivered reports whether the fetch produced usable 2xx content.
func (r *LicensedFetchResult) Delivered() bool {
	return r != nil && r.State == FetchDelivered && r.Status >= 200 && r.Status < 300
}
