package server

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/newrelic/go-agent/v3/integrations/nrecho-v4"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/contentgate/contentgate/internal/config"
	"github.com/contentgate/contentgate/internal/fetcher"
	"github.com/contentgate/contentgate/internal/handler"
	"github.com/contentgate/contentgate/internal/ledger"
	"github.com/contentgate/contentgate/internal/policy"
	"github.com/contentgate/contentgate/internal/provider"
	"github.com/contentgate/contentgate/internal/response"
)

// Server holds the Echo app and dependencies.
type Server struct {
	Echo   *echo.Echo
	Config *config.Config
	Ledger *ledger.Client
}

// New builds the Echo server and registers routes. Returns an error
// only for hard configuration problems (a ledger client cannot be
// constructed without an endpoint); everything else degrades at
// request time.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover(), middleware.Logger())

	if cfg.Observability.Active() {
		app, err := newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.Observability.ServiceName),
			newrelic.ConfigLicense(cfg.Observability.LicenseKey),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("new relic agent init failed, continuing without it")
		} else {
			e.Use(nrecho.Middleware(app))
		}
	}

	led, err := ledger.New(ledger.Config{
		APIURL:         cfg.Ledger.APIURL,
		APIKey:         cfg.Ledger.APIKey,
		CheckTimeout:   cfg.Ledger.CheckTimeoutDuration(),
		AcquireTimeout: cfg.Ledger.AcquireTimeoutDuration(),
		LogTimeout:     cfg.Ledger.LogTimeoutDuration(),
		EnableTracking: cfg.Ledger.EnableTracking,
		EnableCache:    cfg.Ledger.EnableCache,
		CacheTTL:       cfg.Ledger.CacheTTLDuration(),
	}, logger)
	if err != nil {
		return nil, err
	}

	prov := provider.New(provider.Config{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.Provider.TimeoutDuration(),
	}, logger)

	f := fetcher.New(cfg.Fetch.TimeoutDuration(), logger)
	engine := policy.NewEngine(led, f, cfg.Fetch.MaxParallel, logger)

	h := &handler.Handler{
		Provider:          prov,
		Engine:            engine,
		Validate:          validator.New(),
		Log:               logger,
		DefaultNumResults: cfg.Provider.DefaultNumResults,
		DefaultMaxChars:   cfg.Provider.DefaultMaxChars,
	}

	e.POST("/search", h.Search)
	e.POST("/contents", h.Contents)
	e.GET("/usage/summary", h.UsageSummary)
	e.GET("/healthz", func(c echo.Context) error {
		return response.OK(c, map[string]string{"status": "ok"}, "")
	})

	return &Server{Echo: e, Config: cfg, Ledger: led}, nil
}

// Start starts the HTTP server. Blocks until the context is cancelled
// or the server fails. On context cancel, Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.Shutdown(context.Background())
	}()
	addr := ":" + s.Config.Server.Port
	err := s.Echo.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
