// Package pipeline drives a crawl run: listing pages, rescue of empty pages,
// bounded detail fan-out and row merging.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/circuit"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/metrics"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/navigator"
)

const (
	defaultMaxPages       = 5
	defaultStartPage      = 1
	defaultRescueAttempts = 5
	defaultWorkers        = 2
)

// Config bounds a run.
type Config struct {
	MaxPages       int
	StartPage      int
	RescueAttempts int
	Workers        int
	LinkBase       string
}

func (c Config) withDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	if c.StartPage <= 0 {
		c.StartPage = defaultStartPage
	}
	if c.RescueAttempts <= 0 {
		c.RescueAttempts = defaultRescueAttempts
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	return c
}

// DetailFetcher retrieves a decoded detail document, or nil.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, recordID string, loc domain.DetailLocator) *domain.DetailPayload
}

// RowExtractor turns detail markup into child rows.
type RowExtractor interface {
	Extract(markup string) []domain.ChildRow
}

// Orchestrator runs one crawl at a time over a record source.
type Orchestrator struct {
	source    RecordSource
	details   DetailFetcher
	extractor RowExtractor
	breaker   *circuit.Breaker
	cfg       Config
	log       logger.Logger
	metrics   metrics.Recorder
}

// New creates an orchestrator. breaker may be nil when the source has none.
func New(
	source RecordSource,
	details DetailFetcher,
	extractor RowExtractor,
	breaker *circuit.Breaker,
	cfg Config,
	log logger.Logger,
	recorder metrics.Recorder,
) *Orchestrator {
	if log == nil {
		log = logger.NewNop()
	}
	if recorder == nil {
		recorder = metrics.NewNop()
	}
	if breaker == nil {
		breaker = circuit.New()
	}
	return &Orchestrator{
		source:    source,
		details:   details,
		extractor: extractor,
		breaker:   breaker,
		cfg:       cfg.withDefaults(),
		log:       log.With(logger.Component("pipeline")),
		metrics:   recorder,
	}
}

// Run crawls up to MaxPages pages starting at StartPage. It never panics on
// source failures; the reason and any error are reported in the Result.
func (o *Orchestrator) Run(ctx context.Context, criteria domain.SearchCriteria) Result {
	criteria = criteria.WithDefaults()
	res := Result{}
	state := domain.PageState{PageIndex: o.cfg.StartPage}
	seen := make(map[string]struct{})

	o.log.Info("Run started",
		logger.String("title", criteria.Title),
		logger.Int("start_page", o.cfg.StartPage),
		logger.Int("max_pages", o.cfg.MaxPages),
	)

	if err := o.source.Search(ctx, criteria); err != nil {
		return o.stop(res, err)
	}
	if o.cfg.StartPage > defaultStartPage {
		if err := o.source.JumpToPage(ctx, o.cfg.StartPage); err != nil {
			return o.stop(res, err)
		}
	}

	for pages := 0; ; {
		if err := ctx.Err(); err != nil {
			return o.stop(res, err)
		}
		if err := o.breaker.Allow(); err != nil {
			return o.stop(res, err)
		}

		records, err := o.pageRecords(ctx, criteria, &state)
		if err != nil {
			return o.stop(res, err)
		}
		pages++
		res.PagesVisited = pages
		o.metrics.PageVisited()
		o.metrics.RecordsFound(len(records))

		if len(records) == 0 {
			if state.PageIndex == o.cfg.StartPage {
				o.log.Info("No data on first page", logger.Int("page", state.PageIndex))
				res.Reason = ReasonNoData
				return res
			}
			o.log.Warn("Page stayed empty, skipping", logger.Int("page", state.PageIndex))
		} else {
			rows, err := o.processPage(ctx, dedupe(records, seen))
			res.Rows = append(res.Rows, rows...)
			state.RecordsSeen += len(records)
			o.metrics.RowsEmitted(len(rows))
			o.log.Info("Page processed",
				logger.Int("page", state.PageIndex),
				logger.Int("records", len(records)),
				logger.Int("rows", len(rows)),
			)
			if err != nil {
				return o.stop(res, err)
			}
		}

		if pages >= o.cfg.MaxPages {
			res.Reason = ReasonMaxPages
			o.finished(res)
			return res
		}

		moved, err := o.source.NextPage(ctx)
		if err != nil {
			return o.stop(res, err)
		}
		if !moved {
			res.Reason = ReasonEndOfPages
			o.finished(res)
			return res
		}
		state.PageIndex++
	}
}

// pageRecords reads the current page, re-searching up to RescueAttempts times
// while it stays empty.
func (o *Orchestrator) pageRecords(
	ctx context.Context,
	criteria domain.SearchCriteria,
	state *domain.PageState,
) ([]domain.ListRecord, error) {
	records, err := o.source.Records(ctx, state.PageIndex)
	if err != nil {
		return nil, err
	}

	for attempt := 1; len(records) == 0 && attempt <= o.cfg.RescueAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		state.AttemptCount = attempt
		o.metrics.RescueAttempt()
		o.log.Warn("Empty page, rescuing",
			logger.Int("page", state.PageIndex),
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", o.cfg.RescueAttempts),
		)

		if err := o.source.Search(ctx, criteria); err != nil {
			return nil, err
		}
		if current := o.source.CurrentPage(ctx); current != state.PageIndex {
			if err := o.source.JumpToPage(ctx, state.PageIndex); err != nil {
				return nil, err
			}
		}
		if records, err = o.source.Records(ctx, state.PageIndex); err != nil {
			return nil, err
		}
	}
	state.AttemptCount = 0
	return records, nil
}

// processPage fans detail work out over Workers goroutines. Rows come back in
// listing order. Records not started before cancellation are dropped, as are
// records whose detail fetch was cut short by it.
func (o *Orchestrator) processPage(ctx context.Context, records []domain.ListRecord) ([]domain.OutputRow, error) {
	results := make([][]domain.OutputRow, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i, rec := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = o.processRecord(gctx, rec)
			return nil
		})
	}
	waitErr := g.Wait()

	var rows []domain.OutputRow
	for _, r := range results {
		rows = append(rows, r...)
	}
	if err := ctx.Err(); err != nil {
		return rows, err
	}
	return rows, waitErr
}

func (o *Orchestrator) processRecord(ctx context.Context, rec domain.ListRecord) []domain.OutputRow {
	var children []domain.ChildRow
	payload := o.details.FetchDetail(ctx, rec.RecordID, rec.Detail)
	if payload != nil {
		children = o.extractor.Extract(payload.Body)
	} else if ctx.Err() != nil {
		// Cut short mid-fetch; the detail was never read.
		o.log.Debug("Detail cancelled, dropping record", logger.String("record_id", rec.RecordID))
		return nil
	}
	if len(children) == 0 {
		o.log.Debug("No detail rows, using placeholder", logger.String("record_id", rec.RecordID))
	}
	return domain.Merge(rec, children, o.cfg.LinkBase)
}

// dedupe drops records already emitted in this run.
func dedupe(records []domain.ListRecord, seen map[string]struct{}) []domain.ListRecord {
	out := records[:0:0]
	for _, rec := range records {
		if rec.RecordID != "" {
			if _, dup := seen[rec.RecordID]; dup {
				continue
			}
			seen[rec.RecordID] = struct{}{}
		}
		out = append(out, rec)
	}
	return out
}

// stop classifies a terminal error.
func (o *Orchestrator) stop(res Result, err error) Result {
	switch {
	case errors.Is(err, navigator.ErrChallengeExhausted):
		res.Reason = ReasonChallengeExhausted
	case errors.Is(err, ErrCircuitOpen), errors.Is(err, circuit.ErrOpen):
		res.Reason = ReasonCircuitOpen
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		res.Reason = ReasonCancelled
	default:
		res.Reason = ReasonSourceError
		err = fmt.Errorf("source: %w", err)
	}
	res.Err = err
	o.log.Error("Run stopped",
		logger.String("reason", string(res.Reason)),
		logger.Int("pages", res.PagesVisited),
		logger.Int("rows", len(res.Rows)),
		logger.Error(err),
	)
	return res
}

func (o *Orchestrator) finished(res Result) {
	o.log.Info("Run finished",
		logger.String("reason", string(res.Reason)),
		logger.Int("pages", res.PagesVisited),
		logger.Int("rows", len(res.Rows)),
	)
}
