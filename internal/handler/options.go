package handler

import (
	"github.com/contentgate/contentgate/internal/model"
	"github.com/contentgate/contentgate/internal/policy"
)

// LicenseOptions is the caller-facing licensing configuration, set
// per call. Defaults are applied before validation; enum values are
// validated once here at the boundary, not inside the policy layer.
type LicenseOptions struct {
	Fetch           bool                `json:"fetch"`
	IncludeLicenses bool                `json:"include_licenses"`
	Stage           model.Stage         `json:"stage" validate:"required,oneof=infer embed tune train"`
	Distribution    model.Distribution  `json:"distribution" validate:"required,oneof=private public"`
	EstimatedTokens int                 `json:"estimated_tokens" validate:"min=0"`
	MaxChars        int                 `json:"max_chars" validate:"min=0"`
	PaymentMethod   model.PaymentMethod `json:"payment_method" validate:"required,oneof=account_balance x402"`
}

// ApplyDefaults fills unset fields with the documented defaults.
func (o *LicenseOptions) ApplyDefaults() {
	if o.Stage == "" {
		o.Stage = model.StageInfer
	}
	if o.Distribution == "" {
		o.Distribution = model.DistributionPrivate
	}
	if o.EstimatedTokens <= 0 {
		o.EstimatedTokens = 1500
	}
	if o.MaxChars <= 0 {
		o.MaxChars = 200000
	}
	if o.PaymentMethod == "" {
		o.PaymentMethod = model.PaymentAccountBalance
	}
}

// PolicyOptions converts validated options to the policy layer's
// shape.
func (o LicenseOptions) PolicyOptions() policy.Options {
	return policy.Options{
		Fetch:           o.Fetch,
		Stage:           o.Stage,
		Distribution:    o.Distribution,
		EstimatedTokens: o.EstimatedTokens,
		MaxChars:        o.MaxChars,
		PaymentMethod:   o.PaymentMethod,
	}
}
