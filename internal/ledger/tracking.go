package ledger

import (
	"sync/atomic"

	"github.com/contentgate/contentgate/internal/model"
)

// tracking holds the session usage counters. Atomics because usage
// logs are written from concurrent per-URL tasks.
type tracking struct {
	totalURLs   atomic.Int64
	licensed    atomic.Int64
	unlicensed  atomic.Int64
	denied      atomic.Int64
	totalTokens atomic.Int64
	errors      atomic.Int64
}

func (t *tracking) summary(enabled bool) model.LicenseTrackingSummary {
	return model.LicenseTrackingSummary{
		TotalURLs:         t.totalURLs.Load(),
		LicensedContent:   t.licensed.Load(),
		UnlicensedContent: t.unlicensed.Load(),
		DeniedContent:     t.denied.Load(),
		TotalTokens:       t.totalTokens.Load(),
		TrackingEnabled:   enabled,
		Errors:            t.errors.Load(),
	}
}
