package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/captcha"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/circuit"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/config"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/extractor"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/fetcher"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/httpx"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/metrics"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/navigator"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/navigator/rodpage"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/pacing"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/pipeline"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/task"
)

// Runner builds a fresh pipeline per run. Runs share the HTTP client and metrics only.
type Runner struct {
	cfg     *config.Config
	client  *http.Client
	solver  captcha.Solver
	metrics metrics.Recorder
}

// NewRunner creates a runner from configuration.
func NewRunner(cfg *config.Config, recorder metrics.Recorder) (*Runner, error) {
	client, err := httpx.NewClient(httpx.ClientConfig{
		Timeout:   cfg.Fetcher.RequestTimeout,
		ProxyURLs: cfg.Fetcher.ProxyURLs,
	})
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}
	if recorder == nil {
		recorder = metrics.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		client:  client,
		solver:  captcha.NewHTTPSolver(cfg.Solver.URL, cfg.Solver.Timeout, cfg.Solver.Attempts),
		metrics: recorder,
	}, nil
}

// Request fills unset bounds of req from the pipeline configuration.
func (r *Runner) Request(req task.Request) task.Request {
	if req.MaxPages <= 0 {
		req.MaxPages = r.cfg.Pipeline.MaxPages
	}
	if req.StartPage <= 0 {
		req.StartPage = r.cfg.Pipeline.StartPage
	}
	if req.Mode == "" {
		req.Mode = r.cfg.Pipeline.Mode
	}
	return req
}

// Run executes one crawl. It matches api.RunFunc.
func (r *Runner) Run(ctx context.Context, req task.Request, log logger.Logger) pipeline.Result {
	req = r.Request(req)

	breaker := circuit.New(circuit.WithStateChange(func(from, to circuit.State, reason string) {
		log.Warn("Circuit state changed",
			logger.String("from", from.String()),
			logger.String("to", to.String()),
			logger.String("reason", reason),
		)
		if to == circuit.StateOpen {
			r.metrics.CircuitOpened()
		}
	}))

	pacer, err := pacing.New(r.cfg.Fetcher.Pacing.Min, r.cfg.Fetcher.Pacing.Max)
	if err != nil {
		return pipeline.Result{Reason: pipeline.ReasonSourceError, Err: fmt.Errorf("fetcher pacing: %w", err)}
	}
	fetch := fetcher.New(r.fetcherConfig(), r.client, pacer, breaker, log, r.metrics)

	source, err := r.openSource(ctx, req.Mode, fetch, log)
	if err != nil {
		log.Error("Failed to open record source", logger.String("mode", req.Mode), logger.Error(err))
		return pipeline.Result{Reason: pipeline.ReasonSourceError, Err: err}
	}
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			log.Warn("Failed to close record source", logger.Error(closeErr))
		}
	}()

	orch := pipeline.New(source, fetch, extractor.New(log), breaker, pipeline.Config{
		MaxPages:       req.MaxPages,
		StartPage:      req.StartPage,
		RescueAttempts: r.cfg.Pipeline.RescueAttempts,
		Workers:        r.cfg.Pipeline.Workers,
		LinkBase:       r.cfg.Source.DetailLinkBase,
	}, log, r.metrics)
	return orch.Run(ctx, req.Criteria)
}

func (r *Runner) fetcherConfig() fetcher.Config {
	return fetcher.Config{
		ListURL:    r.cfg.Source.ListURL,
		DetailURL:  r.cfg.Source.DetailURL,
		ColCode:    r.cfg.Source.ColCode,
		PageSize:   r.cfg.Source.PageSize,
		Origin:     r.cfg.Source.Origin,
		Referer:    r.cfg.Source.Referer,
		UserAgents: r.cfg.Fetcher.UserAgents,
	}
}

func (r *Runner) openSource(
	ctx context.Context,
	mode string,
	lister pipeline.ListFetcher,
	log logger.Logger,
) (pipeline.RecordSource, error) {
	if mode == config.ModeAPI {
		return pipeline.NewAPISource(lister), nil
	}

	nav := r.cfg.Navigator
	settle, err := pacing.New(nav.SettleMin, nav.SettleMax)
	if err != nil {
		return nil, fmt.Errorf("navigator settle: %w", err)
	}
	page, err := rodpage.Launch(ctx, rodpage.Config{
		SearchURL:      r.cfg.Source.SearchURL,
		Headless:       nav.Headless,
		BrowserBin:     nav.BrowserBin,
		ElementTimeout: nav.ElementTimeout,
		Settle:         settle,
	})
	if err != nil {
		return nil, err
	}
	n := navigator.New(page, r.solver, navigator.Config{
		ChallengeAttempts: nav.ChallengeAttempts,
		Settle:            settle,
	}, log, r.metrics)
	return pipeline.NewBrowserSource(n), nil
}
