package navigator

import (
	"context"
	"errors"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/domain"
)

// ErrRowGone is returned by ReadRow when the listing re-rendered with fewer rows.
var ErrRowGone = errors.New("listing row no longer present")

// ErrElementNotFound is returned when the page lacks an expected element.
var ErrElementNotFound = errors.New("element not found")

// PageAdapter isolates every lookup against the portal's markup. Errors are
// structural: the navigator logs them and carries on.
type PageAdapter interface {
	// Open loads the search page.
	Open(ctx context.Context) error
	// SelectIntentionTab activates the procurement-intention tab.
	SelectIntentionTab(ctx context.Context) error
	// ApplyCriteria fills region, title and date inputs.
	ApplyCriteria(ctx context.Context, criteria domain.SearchCriteria) error

	// ChallengeVisible reports whether a challenge image is displayed.
	ChallengeVisible(ctx context.Context) bool
	// RefreshChallenge requests a new challenge image.
	RefreshChallenge(ctx context.Context) error
	// ChallengeImage captures the current challenge image as PNG.
	ChallengeImage(ctx context.Context) ([]byte, error)
	// EnterChallengeAnswer types answer into the challenge input.
	EnterChallengeAnswer(ctx context.Context, answer string) error
	// Submit clicks the search button.
	Submit(ctx context.Context) error
	// WrongAnswerShown reports whether the page shows a wrong-answer notice.
	WrongAnswerShown(ctx context.Context) bool

	// RowCount returns the number of visible listing rows.
	RowCount(ctx context.Context) int
	// ReadRow returns the trimmed cell texts of visible row i.
	ReadRow(ctx context.Context, i int) ([]string, error)
	// OpenDetail activates row i, returns the detail URL it navigated to and
	// restores the listing. An empty URL means the click did not navigate.
	OpenDetail(ctx context.Context, i int) (string, error)

	// NextPage clicks the next-page control. false means it is absent or disabled.
	NextPage(ctx context.Context) (bool, error)
	// JumpToPage enters n into the page jump input.
	JumpToPage(ctx context.Context, n int) error
	// CurrentPage returns the active page number, or 0 when unknown.
	CurrentPage(ctx context.Context) int

	Close() error
}
