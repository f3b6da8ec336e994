package pipeline

import (
	"context"
	"errors"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/fetcher"
)

// ErrCircuitOpen is returned by a record source once the source has blocked the run.
var ErrCircuitOpen = errors.New("circuit open: source is blocking")

// RecordSource yields listing records page by page. Records returns an error only
// when the run must stop; an empty slice is a valid, ambiguous answer.
type RecordSource interface {
	Search(ctx context.Context, criteria domain.SearchCriteria) error
	Records(ctx context.Context, page int) ([]domain.ListRecord, error)
	CurrentPage(ctx context.Context) int
	JumpToPage(ctx context.Context, page int) error
	NextPage(ctx context.Context) (bool, error)
	Close() error
}

// Browser is the navigator surface the browser source drives.
type Browser interface {
	Search(ctx context.Context, criteria domain.SearchCriteria) error
	ExtractPageRecords(ctx context.Context) []domain.ListRecord
	CurrentPageNumber(ctx context.Context) int
	JumpToPage(ctx context.Context, page int) (bool, error)
	NextPage(ctx context.Context) (bool, error)
	Close() error
}

// BrowserSource reads records through the interactive navigator.
type BrowserSource struct {
	nav Browser
}

// NewBrowserSource wraps a navigator.
func NewBrowserSource(nav Browser) *BrowserSource {
	return &BrowserSource{nav: nav}
}

func (s *BrowserSource) Search(ctx context.Context, criteria domain.SearchCriteria) error {
	return s.nav.Search(ctx, criteria)
}

// Records reads the page the browser currently shows; page is informational.
func (s *BrowserSource) Records(ctx context.Context, _ int) ([]domain.ListRecord, error) {
	return s.nav.ExtractPageRecords(ctx), nil
}

func (s *BrowserSource) CurrentPage(ctx context.Context) int {
	return s.nav.CurrentPageNumber(ctx)
}

func (s *BrowserSource) JumpToPage(ctx context.Context, page int) error {
	_, err := s.nav.JumpToPage(ctx, page)
	return err
}

func (s *BrowserSource) NextPage(ctx context.Context) (bool, error) {
	return s.nav.NextPage(ctx)
}

func (s *BrowserSource) Close() error {
	return s.nav.Close()
}

// ListFetcher is the listing half of the fetcher.
type ListFetcher interface {
	FetchList(ctx context.Context, criteria domain.SearchCriteria, page int) ([]domain.ListRecord, int)
}

// APISource reads records from the JSON listing endpoint. A total of
// fetcher.CircuitOpenPages surfaces as ErrCircuitOpen.
type APISource struct {
	fetcher  ListFetcher
	criteria domain.SearchCriteria
	current  int
	total    int
}

// NewAPISource creates a source positioned before the first page.
func NewAPISource(f ListFetcher) *APISource {
	return &APISource{fetcher: f}
}

// Search records the criteria and resets to page 1.
func (s *APISource) Search(_ context.Context, criteria domain.SearchCriteria) error {
	s.criteria = criteria
	s.current = 1
	return nil
}

func (s *APISource) Records(ctx context.Context, page int) ([]domain.ListRecord, error) {
	records, total := s.fetcher.FetchList(ctx, s.criteria, page)
	if total == fetcher.CircuitOpenPages {
		return nil, ErrCircuitOpen
	}
	if total > 0 {
		s.total = total
	}
	return records, nil
}

func (s *APISource) CurrentPage(context.Context) int {
	return s.current
}

func (s *APISource) JumpToPage(_ context.Context, page int) error {
	s.current = page
	return nil
}

// NextPage advances unless the last known total has been reached.
func (s *APISource) NextPage(context.Context) (bool, error) {
	if s.total > 0 && s.current >= s.total {
		return false, nil
	}
	s.current++
	return true, nil
}

func (s *APISource) Close() error {
	return nil
}
