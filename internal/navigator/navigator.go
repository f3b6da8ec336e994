// Package navigator drives the portal's search UI through a PageAdapter: it applies
// criteria, solves challenges, reads listing rows and paginates.
package navigator

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/captcha"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/metrics"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/pacing"
)

// ErrChallengeExhausted is returned when the challenge could not be passed within
// the attempt ceiling.
var ErrChallengeExhausted = errors.New("challenge attempts exhausted")

// DefaultChallengeAttempts is the retry ceiling for challenge solving.
const DefaultChallengeAttempts = 5

// minRowCells is the fewest cells a listing row needs to carry a title.
const minRowCells = 3

// Listing row columns.
const (
	colRegion = 1
	colTitle  = 2
	colBuy    = 3
	colType   = 4
	colDate   = 5
)

// Challenge attempt outcomes reported to metrics.
const (
	outcomeAccepted    = "accepted"
	outcomeWrong       = "wrong"
	outcomeSolverError = "solver_error"
)

// Config configures a Navigator.
type Config struct {
	// ChallengeAttempts is the ceiling per search or page transition.
	ChallengeAttempts int
	// Settle is waited between UI actions. Nil disables settling.
	Settle *pacing.Pacer
}

// Navigator owns the browser session exclusively. It is not safe for concurrent use.
type Navigator struct {
	page     PageAdapter
	solver   captcha.Solver
	log      logger.Logger
	metrics  metrics.Recorder
	attempts int
	settle   *pacing.Pacer

	state    State
	opened   bool
	expected int
}

// New creates a Navigator in StateIdle.
func New(page PageAdapter, solver captcha.Solver, cfg Config, log logger.Logger, recorder metrics.Recorder) *Navigator {
	if cfg.ChallengeAttempts <= 0 {
		cfg.ChallengeAttempts = DefaultChallengeAttempts
	}
	if recorder == nil {
		recorder = metrics.NewNop()
	}
	return &Navigator{
		page:     page,
		solver:   solver,
		log:      log.With(logger.Component("navigator")),
		metrics:  recorder,
		attempts: cfg.ChallengeAttempts,
		settle:   cfg.Settle,
		state:    StateIdle,
	}
}

// State returns the current state.
func (n *Navigator) State() State {
	return n.state
}

// Search applies criteria and submits, passing any challenge on the way. It returns
// ErrChallengeExhausted when the ceiling is hit; structural problems only log.
func (n *Navigator) Search(ctx context.Context, criteria domain.SearchCriteria) error {
	n.state = StateSearching
	criteria = criteria.WithDefaults()

	if !n.opened {
		if err := n.page.Open(ctx); err != nil {
			n.log.Warn("Search page did not load cleanly", logger.Error(err))
		}
		n.opened = true
	}

	if err := n.page.SelectIntentionTab(ctx); err != nil {
		n.log.Warn("Intention tab not switched", logger.Error(err))
	}
	if err := n.page.ApplyCriteria(ctx, criteria); err != nil {
		n.log.Warn("Search criteria partially applied", logger.Error(err))
	}

	if err := n.submitUntilAccepted(ctx); err != nil {
		return err
	}
	n.expected = 1
	return nil
}

// submitUntilAccepted solves the challenge when present, submits, and retries on a
// wrong-answer notice up to the ceiling. The absence of that notice is taken as
// acceptance.
func (n *Navigator) submitUntilAccepted(ctx context.Context) error {
	for attempt := 1; attempt <= n.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n.log.Info("Submitting search",
			logger.Int("attempt", attempt), logger.Int("max_attempts", n.attempts))

		challenged := n.page.ChallengeVisible(ctx)
		if challenged {
			n.state = StateChallengePresent
			if err := n.answerChallenge(ctx); err != nil {
				n.metrics.ChallengeAttempt(outcomeSolverError)
				n.log.Warn("Challenge not answered", logger.Int("attempt", attempt), logger.Error(err))
				n.wait(ctx)
				continue
			}
		}

		if err := n.page.Submit(ctx); err != nil {
			n.log.Warn("Search button not found, assuming results are shown", logger.Error(err))
			n.state = StateResultsReady
			return nil
		}
		n.wait(ctx)

		if n.page.WrongAnswerShown(ctx) {
			n.state = StateChallengePresent
			n.metrics.ChallengeAttempt(outcomeWrong)
			n.log.Info("Wrong challenge answer, retrying", logger.Int("attempt", attempt))
			n.wait(ctx)
			continue
		}

		if challenged {
			n.metrics.ChallengeAttempt(outcomeAccepted)
			n.state = StateChallengeSolved
		} else {
			n.state = StateResultsReady
		}
		return nil
	}

	n.log.Warn("Challenge attempts exhausted", logger.Int("max_attempts", n.attempts))
	return fmt.Errorf("%w after %d attempts", ErrChallengeExhausted, n.attempts)
}

// answerChallenge refreshes the image, solves it and types the answer.
func (n *Navigator) answerChallenge(ctx context.Context) error {
	if err := n.page.RefreshChallenge(ctx); err != nil {
		n.log.Debug("Challenge refresh failed", logger.Error(err))
	}
	n.wait(ctx)

	img, err := n.page.ChallengeImage(ctx)
	if err != nil {
		return fmt.Errorf("capture challenge: %w", err)
	}
	answer, err := n.solver.Solve(ctx, img)
	if err != nil {
		return fmt.Errorf("solve challenge: %w", err)
	}
	n.log.Info("Challenge answer obtained", logger.String("answer", answer))

	if err = n.page.EnterChallengeAnswer(ctx, answer); err != nil {
		return fmt.Errorf("enter answer: %w", err)
	}
	n.wait(ctx)
	return nil
}

// ExtractPageRecords reads every visible row of the current page and resolves its
// detail locator. An empty result is valid and ambiguous.
func (n *Navigator) ExtractPageRecords(ctx context.Context) []domain.ListRecord {
	count := n.page.RowCount(ctx)
	n.log.Info("Reading listing rows", logger.Int("rows", count))

	records := make([]domain.ListRecord, 0, count)
	for i := range count {
		if ctx.Err() != nil {
			break
		}
		rec, ok, err := n.readRecord(ctx, i)
		if err != nil {
			n.log.Warn("Listing row skipped", logger.Int("row", i+1), logger.Error(err))
			if errors.Is(err, ErrRowGone) {
				break
			}
			continue
		}
		if ok {
			records = append(records, rec)
			n.log.Info("Record captured", logger.String("title", rec.Title))
		}
	}

	n.state = StateExtracted
	return records
}

func (n *Navigator) readRecord(ctx context.Context, i int) (domain.ListRecord, bool, error) {
	cells, err := n.page.ReadRow(ctx, i)
	if err != nil {
		return domain.ListRecord{}, false, err
	}
	if len(cells) < minRowCells {
		return domain.ListRecord{}, false, nil
	}

	detailURL, err := n.page.OpenDetail(ctx, i)
	if err != nil {
		return domain.ListRecord{}, false, fmt.Errorf("open detail: %w", err)
	}
	if detailURL == "" {
		n.log.Info("Row click did not navigate", logger.Int("row", i+1))
		return domain.ListRecord{}, false, nil
	}

	loc, ok := domain.ParseDetailLocator(detailURL)
	if !ok {
		return domain.ListRecord{}, false, nil
	}

	cell := func(idx int) string {
		if idx < len(cells) {
			return cells[idx]
		}
		return ""
	}
	return domain.ListRecord{
		RecordID:    loc.ID,
		RegionName:  cell(colRegion),
		Title:       cell(colTitle),
		BuyMode:     cell(colBuy),
		ProjectType: cell(colType),
		PublishedAt: cell(colDate),
		Detail:      loc,
	}, true, nil
}

// NextPage advances one page and re-checks for a challenge. false means there is
// no further page. The only error is ErrChallengeExhausted (or ctx's).
func (n *Navigator) NextPage(ctx context.Context) (bool, error) {
	moved, err := n.page.NextPage(ctx)
	if err != nil {
		n.log.Warn("Next page control unusable", logger.Error(err))
		return false, nil
	}
	if !moved {
		return false, nil
	}
	n.expected++
	n.wait(ctx)

	if err = n.recheck(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// JumpToPage navigates to page p and re-checks for a challenge. false means the
// jump input was unusable.
func (n *Navigator) JumpToPage(ctx context.Context, p int) (bool, error) {
	n.log.Info("Jumping to page", logger.Int("page", p))
	if err := n.page.JumpToPage(ctx, p); err != nil {
		n.log.Warn("Page jump failed", logger.Int("page", p), logger.Error(err))
		return false, nil
	}
	n.expected = p
	n.wait(ctx)

	if err := n.recheck(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// recheck passes a challenge raised by a page transition. Resubmitting resets the
// listing, so the navigator jumps back to the expected page afterwards.
func (n *Navigator) recheck(ctx context.Context) error {
	n.state = StateSearching
	if !n.page.ChallengeVisible(ctx) {
		n.state = StateResultsReady
		return nil
	}

	n.log.Info("Challenge raised by page transition", logger.Int("page", n.expected))
	if err := n.submitUntilAccepted(ctx); err != nil {
		return err
	}

	if current := n.page.CurrentPage(ctx); current != 0 && current != n.expected {
		if err := n.page.JumpToPage(ctx, n.expected); err != nil {
			n.log.Warn("Could not return to page after challenge",
				logger.Int("page", n.expected), logger.Error(err))
		}
		n.wait(ctx)
	}
	return nil
}

// CurrentPageNumber returns the page the UI shows, falling back to the page the
// navigator last moved to.
func (n *Navigator) CurrentPageNumber(ctx context.Context) int {
	if p := n.page.CurrentPage(ctx); p > 0 {
		return p
	}
	return n.expected
}

// Close releases the browser session.
func (n *Navigator) Close() error {
	return n.page.Close()
}

func (n *Navigator) wait(ctx context.Context) {
	if n.settle == nil {
		return
	}
	_ = n.settle.Wait(ctx)
}
