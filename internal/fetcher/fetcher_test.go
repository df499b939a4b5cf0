package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/contentgate/contentgate/internal/model"
)

type fakeLedger struct {
	calls atomic.Int64
	grant *model.LedgerAcquireResponse
	err   error
}

func (l *fakeLedger) Acquire(ctx context.Context, url string, stage model.Stage, distribution model.Distribution, estimatedTokens int, method model.PaymentMethod) (*model.LedgerAcquireResponse, error) {
	l.calls.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return l.grant, nil
}

func newFetcher() *Fetcher {
	return New(5*time.Second, zerolog.Nop())
}

func TestFetchDelivered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("hello content"))
	}))
	defer srv.Close()

	res := newFetcher().Fetch(context.Background(), srv.URL, Options{MaxChars: 5})
	if res.State != model.FetchDelivered {
		t.Fatalf("expected delivered, got %s (%s)", res.State, res.Error)
	}
	if res.Status != http.StatusOK {
		t.Errorf("status = %d", res.Status)
	}
	if res.ContentText != "hello" {
		t.Errorf("expected truncation to 5 chars, got %q", res.ContentText)
	}
	if res.PaymentRequired || res.PaymentAttempted {
		t.Error("no payment flags expected on plain delivery")
	}
}

func TestFetchUnauthorized(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		res := newFetcher().Fetch(context.Background(), srv.URL, Options{})
		srv.Close()

		if res.State != model.FetchUnauthorized {
			t.Errorf("status %d: expected unauthorized state, got %s", status, res.State)
		}
		if res.Status != status {
			t.Errorf("expected status %d, got %d", status, res.Status)
		}
		if res.ContentText != "" {
			t.Error("no content expected when blocked")
		}
	}
}

func TestFetchPaymentChallengedNoLedger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]string{
			"price":           "$0.01",
			"payto":           "pay@origin.example",
			"facilitator_url": "https://facilitator.example",
		})
	}))
	defer srv.Close()

	res := newFetcher().Fetch(context.Background(), srv.URL, Options{})
	if res.State != model.FetchPaymentChallenged {
		t.Fatalf("expected payment_challenged, got %s", res.State)
	}
	if !res.PaymentRequired || res.PaymentAttempted {
		t.Errorf("expected payment_required without attempt, got %+v", res)
	}
	if res.X402 == nil || res.X402.Price != "$0.01" || res.X402.FacilitatorURL != "https://facilitator.example" {
		t.Errorf("unexpected challenge: %+v", res.X402)
	}
}

func TestFetchPaymentHandshake(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("X-402-Price", "$0.01")
			w.WriteHeader(http.StatusPaymentRequired)
			return
		}
		if r.Header.Get("X-License-Version-Id") != "42" || r.Header.Get("X-License-Sig") != "sig-42" {
			t.Errorf("retry missing license credential headers")
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	led := &fakeLedger{grant: &model.LedgerAcquireResponse{
		LicensedURL:      srv.URL,
		LicenseVersionID: 42,
		LicenseSig:       "sig-42",
		Cost:             0.01,
		Currency:         "USD",
	}}
	res := newFetcher().Fetch(context.Background(), srv.URL, Options{
		Ledger:          led,
		Stage:           model.StageInfer,
		Distribution:    model.DistributionPrivate,
		EstimatedTokens: 1500,
		PaymentMethod:   model.PaymentX402,
	})

	if res.State != model.FetchDelivered {
		t.Fatalf("expected delivered after handshake, got %s (%s)", res.State, res.Error)
	}
	if res.ContentText != "hello" {
		t.Errorf("content = %q", res.ContentText)
	}
	if !res.PaymentAttempted || !res.PaymentRequired {
		t.Error("expected both payment flags set")
	}
	if res.Acquire == nil || res.Acquire.LicenseVersionID != 42 {
		t.Errorf("unexpected grant: %+v", res.Acquire)
	}
	if led.calls.Load() != 1 {
		t.Errorf("expected exactly 1 acquisition, got %d", led.calls.Load())
	}
	if hits.Load() != 2 {
		t.Errorf("expected exactly 2 origin requests, got %d", hits.Load())
	}
}

func TestFetchRepeated402SingleAcquire(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	led := &fakeLedger{grant: &model.LedgerAcquireResponse{LicenseVersionID: 42, LicenseSig: "sig"}}
	res := newFetcher().Fetch(context.Background(), srv.URL, Options{
		Ledger:        led,
		PaymentMethod: model.PaymentAccountBalance,
	})

	if res.State != model.FetchPaymentChallenged {
		t.Fatalf("expected payment_challenged after retried 402, got %s", res.State)
	}
	if led.calls.Load() != 1 {
		t.Errorf("expected exactly 1 acquisition, got %d", led.calls.Load())
	}
}

func TestFetchAcquisitionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	led := &fakeLedger{err: errors.New("insufficient balance")}
	res := newFetcher().Fetch(context.Background(), srv.URL, Options{
		Ledger:        led,
		PaymentMethod: model.PaymentAccountBalance,
	})

	if res.State != model.FetchPaymentChallenged {
		t.Fatalf("expected payment_challenged, got %s", res.State)
	}
	if !res.PaymentAttempted {
		t.Error("expected payment_attempted=true")
	}
	if res.Acquire != nil {
		t.Error("no grant expected on acquisition failure")
	}
	if !strings.Contains(res.Error, "insufficient balance") {
		t.Errorf("expected acquisition error recorded, got %q", res.Error)
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	res := newFetcher().Fetch(context.Background(), srv.URL, Options{})
	if res.State != model.FetchErrored {
		t.Fatalf("expected errored, got %s", res.State)
	}
	if res.Error == "" {
		t.Error("expected error to be populated")
	}
	if res.Status != 0 {
		t.Errorf("expected status 0, got %d", res.Status)
	}
}

func TestFetchNonTextContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}))
	defer srv.Close()

	res := newFetcher().Fetch(context.Background(), srv.URL, Options{})
	if res.State != model.FetchDelivered {
		t.Fatalf("expected delivered, got %s", res.State)
	}
	if res.ContentText != "" {
		t.Error("binary content should not be captured as text")
	}
	if res.ContentType != "image/png" {
		t.Errorf("content_type = %q", res.ContentType)
	}
}
