package pipeline_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/circuit"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/extractor"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/navigator"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linkBase = "http://example.test/detail"

const detailHeader = `<tr><td>序号</td><td>采购项目名称</td><td>采购需求概况</td><td>预算金额(万元)</td>` +
	`<td>拟面向中小企业预留</td><td>预计采购时间</td><td>备注</td></tr>`

// fakeSource scripts Records responses per page. The last response for a page repeats.
type fakeSource struct {
	mu sync.Mutex

	pages     map[int][][]domain.ListRecord
	lastPage  int
	searchErr error
	// searchErrFrom makes Search fail from the nth call onward.
	searchErrFrom int
	recordsErr    map[int]error

	current     int
	searches    int
	recordCalls map[int]int
	jumps       []int
	closed      bool
}

func newFakeSource(lastPage int) *fakeSource {
	return &fakeSource{
		pages:       make(map[int][][]domain.ListRecord),
		recordsErr:  make(map[int]error),
		recordCalls: make(map[int]int),
		lastPage:    lastPage,
	}
}

func (s *fakeSource) script(page int, responses ...[]domain.ListRecord) *fakeSource {
	s.pages[page] = responses
	return s
}

func (s *fakeSource) Search(context.Context, domain.SearchCriteria) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches++
	s.current = 1
	if s.searchErr != nil && s.searches >= s.searchErrFrom {
		return s.searchErr
	}
	return nil
}

func (s *fakeSource) Records(_ context.Context, page int) ([]domain.ListRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordCalls[page]++
	if err := s.recordsErr[page]; err != nil {
		return nil, err
	}
	seq := s.pages[page]
	if len(seq) == 0 {
		return nil, nil
	}
	resp := seq[0]
	if len(seq) > 1 {
		s.pages[page] = seq[1:]
	}
	return resp, nil
}

func (s *fakeSource) CurrentPage(context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *fakeSource) JumpToPage(_ context.Context, page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jumps = append(s.jumps, page)
	s.current = page
	return nil
}

func (s *fakeSource) NextPage(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current >= s.lastPage {
		return false, nil
	}
	s.current++
	return true, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// fakeDetails serves detail markup by record id and tracks concurrency.
type fakeDetails struct {
	mu       sync.Mutex
	locators []domain.DetailLocator
	bodies   map[string]string
	delay    map[string]time.Duration
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (d *fakeDetails) FetchDetail(ctx context.Context, recordID string, loc domain.DetailLocator) *domain.DetailPayload {
	d.calls.Add(1)
	d.mu.Lock()
	d.locators = append(d.locators, loc)
	d.mu.Unlock()
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if wait := d.delay[recordID]; wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil
		}
	}
	body, ok := d.bodies[recordID]
	if !ok {
		return nil
	}
	return &domain.DetailPayload{RecordID: recordID, ColCode: loc.ColCode, Body: body}
}

func record(id string) domain.ListRecord {
	return domain.ListRecord{
		RecordID:    id,
		RegionName:  "济南市",
		Title:       "意向 " + id,
		PublishedAt: "2024-05-01",
		Detail:      domain.DetailLocator{ID: id, ColCode: "2500", OldData: "0"},
	}
}

func records(ids ...string) []domain.ListRecord {
	out := make([]domain.ListRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, record(id))
	}
	return out
}

func table(names ...string) string {
	markup := "<table>" + detailHeader
	for i, n := range names {
		markup += fmt.Sprintf("<tr><td>%d</td><td>%s</td><td>说明</td><td>%d</td><td>是</td><td>2024年5月</td><td></td></tr>",
			i+1, n, (i+1)*10)
	}
	return markup + "</table>"
}

func newOrchestrator(src pipeline.RecordSource, details pipeline.DetailFetcher, cfg pipeline.Config) *pipeline.Orchestrator {
	cfg.LinkBase = linkBase
	return pipeline.New(src, details, extractor.New(nil), nil, cfg, nil, nil)
}

func TestRun_EmptyFirstPageRescuesExactlyFiveTimes(t *testing.T) {
	t.Parallel()

	src := newFakeSource(3)
	details := &fakeDetails{}
	res := newOrchestrator(src, details, pipeline.Config{MaxPages: 3}).Run(context.Background(), domain.SearchCriteria{})

	assert.Equal(t, pipeline.ReasonNoData, res.Reason)
	assert.False(t, res.Failed())
	assert.Empty(t, res.Rows)
	assert.Equal(t, 1+5, src.recordCalls[1])
	assert.Equal(t, 1+5, src.searches)
	assert.Zero(t, src.recordCalls[2])
	assert.Zero(t, details.calls.Load())
}

func TestRun_RescueRecoversPage(t *testing.T) {
	t.Parallel()

	src := newFakeSource(1).script(1, nil, nil, records("a"))
	details := &fakeDetails{bodies: map[string]string{"a": table("办公设备")}}

	res := newOrchestrator(src, details, pipeline.Config{}).Run(context.Background(), domain.SearchCriteria{})

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "办公设备", res.Rows[0].ProjectName)
	assert.Equal(t, 3, src.recordCalls[1])
	assert.Equal(t, pipeline.ReasonEndOfPages, res.Reason)
}

func TestRun_EmptyLaterPageIsSkipped(t *testing.T) {
	t.Parallel()

	src := newFakeSource(5).
		script(1, records("a")).
		script(3, records("c"))
	details := &fakeDetails{bodies: map[string]string{
		"a": table("甲"),
		"c": table("丙"),
	}}

	res := newOrchestrator(src, details, pipeline.Config{MaxPages: 3}).Run(context.Background(), domain.SearchCriteria{})

	require.Len(t, res.Rows, 2)
	assert.Equal(t, "甲", res.Rows[0].ProjectName)
	assert.Equal(t, "丙", res.Rows[1].ProjectName)
	assert.Equal(t, 1+5, src.recordCalls[2])
	assert.Equal(t, 3, res.PagesVisited)
	assert.Equal(t, pipeline.ReasonMaxPages, res.Reason)
	assert.Zero(t, src.recordCalls[4])
}

func TestRun_RescueReturnsToExpectedPage(t *testing.T) {
	t.Parallel()

	src := newFakeSource(2).
		script(1, records("a")).
		script(2, nil, records("b"))
	details := &fakeDetails{}

	res := newOrchestrator(src, details, pipeline.Config{MaxPages: 2}).Run(context.Background(), domain.SearchCriteria{})

	require.Len(t, res.Rows, 2)
	assert.Equal(t, []int{2}, src.jumps)
}

func TestRun_MergesChildrenAndPlaceholdersInOrder(t *testing.T) {
	t.Parallel()

	src := newFakeSource(1).script(1, records("a", "b"))
	details := &fakeDetails{
		bodies: map[string]string{"a": table("设备", "服务", "工程")},
		delay:  map[string]time.Duration{"a": 30 * time.Millisecond},
	}

	res := newOrchestrator(src, details, pipeline.Config{}).Run(context.Background(), domain.SearchCriteria{})

	require.Len(t, res.Rows, 4)
	for i, name := range []string{"设备", "服务", "工程"} {
		assert.Equal(t, "a", res.Rows[i].RecordID)
		assert.Equal(t, name, res.Rows[i].ProjectName)
		assert.Equal(t, "意向 a", res.Rows[i].Title)
		assert.Equal(t, "济南市", res.Rows[i].RegionName)
	}

	placeholder := res.Rows[3]
	assert.Equal(t, "b", placeholder.RecordID)
	assert.Equal(t, "1", placeholder.SubIndex)
	assert.Equal(t, "意向 b", placeholder.ProjectName)
	assert.Equal(t, domain.PlaceholderDescription, placeholder.Description)
	assert.Equal(t, linkBase+"?colCode=2500&id=b&oldData=0", placeholder.Link)
}

func TestRun_BoundsDetailConcurrency(t *testing.T) {
	t.Parallel()

	ids := []string{"r1", "r2", "r3", "r4", "r5", "r6"}
	delay := make(map[string]time.Duration, len(ids))
	for _, id := range ids {
		delay[id] = 10 * time.Millisecond
	}
	src := newFakeSource(1).script(1, records(ids...))
	details := &fakeDetails{delay: delay}

	res := newOrchestrator(src, details, pipeline.Config{Workers: 2}).Run(context.Background(), domain.SearchCriteria{})

	require.Len(t, res.Rows, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, res.Rows[i].RecordID)
	}
	assert.LessOrEqual(t, details.peak.Load(), int32(2))
}

func TestRun_DeduplicatesRecordsAcrossPages(t *testing.T) {
	t.Parallel()

	src := newFakeSource(2).
		script(1, records("a", "b")).
		script(2, records("b", "c"))

	res := newOrchestrator(src, &fakeDetails{}, pipeline.Config{MaxPages: 2}).Run(context.Background(), domain.SearchCriteria{})

	ids := make([]string, 0, len(res.Rows))
	for _, r := range res.Rows {
		ids = append(ids, r.RecordID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestRun_StopsOnChallengeExhausted(t *testing.T) {
	t.Parallel()

	src := newFakeSource(3)
	src.searchErr = fmt.Errorf("search: %w", navigator.ErrChallengeExhausted)
	src.searchErrFrom = 2

	res := newOrchestrator(src, &fakeDetails{}, pipeline.Config{}).Run(context.Background(), domain.SearchCriteria{})

	assert.Equal(t, pipeline.ReasonChallengeExhausted, res.Reason)
	assert.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, navigator.ErrChallengeExhausted)
	assert.Equal(t, 2, src.searches)
}

func TestRun_StopsWhenSourceReportsCircuitOpen(t *testing.T) {
	t.Parallel()

	src := newFakeSource(5).script(1, records("a"))
	src.recordsErr[2] = pipeline.ErrCircuitOpen

	res := newOrchestrator(src, &fakeDetails{}, pipeline.Config{}).Run(context.Background(), domain.SearchCriteria{})

	assert.Equal(t, pipeline.ReasonCircuitOpen, res.Reason)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 1, src.recordCalls[2])
	assert.Zero(t, src.recordCalls[3])
}

func TestRun_OpenBreakerPreventsListing(t *testing.T) {
	t.Parallel()

	breaker := circuit.New()
	breaker.Trip("status 403")
	src := newFakeSource(1).script(1, records("a"))

	res := pipeline.New(src, &fakeDetails{}, extractor.New(nil), breaker, pipeline.Config{}, nil, nil).
		Run(context.Background(), domain.SearchCriteria{})

	assert.Equal(t, pipeline.ReasonCircuitOpen, res.Reason)
	assert.ErrorIs(t, res.Err, circuit.ErrOpen)
	assert.Zero(t, src.recordCalls[1])
}

func TestRun_StartPageJumpsAfterSearch(t *testing.T) {
	t.Parallel()

	src := newFakeSource(5).script(3, records("c"))

	res := newOrchestrator(src, &fakeDetails{}, pipeline.Config{StartPage: 3, MaxPages: 1}).
		Run(context.Background(), domain.SearchCriteria{})

	assert.Equal(t, []int{3}, src.jumps)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, pipeline.ReasonMaxPages, res.Reason)
}

func TestRun_EmptyStartPageIsNoData(t *testing.T) {
	t.Parallel()

	src := newFakeSource(5).script(1, records("a"))

	res := newOrchestrator(src, &fakeDetails{}, pipeline.Config{StartPage: 2}).
		Run(context.Background(), domain.SearchCriteria{})

	assert.Equal(t, pipeline.ReasonNoData, res.Reason)
	assert.Zero(t, src.recordCalls[1])
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := newFakeSource(1).script(1, records("a"))

	res := newOrchestrator(src, &fakeDetails{}, pipeline.Config{}).Run(ctx, domain.SearchCriteria{})

	assert.Equal(t, pipeline.ReasonCancelled, res.Reason)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, res.Rows)
}

func TestRun_CancelledMidPageDropsInFlightRecord(t *testing.T) {
	t.Parallel()

	src := newFakeSource(2).script(1, records("a", "b"))
	details := &fakeDetails{
		bodies: map[string]string{"a": table("设备"), "b": table("服务")},
		delay:  map[string]time.Duration{"b": 5 * time.Second},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(50*time.Millisecond, cancel)

	res := newOrchestrator(src, details, pipeline.Config{Workers: 2}).Run(ctx, domain.SearchCriteria{})

	assert.Equal(t, pipeline.ReasonCancelled, res.Reason)
	assert.ErrorIs(t, res.Err, context.Canceled)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "a", res.Rows[0].RecordID)
	assert.Equal(t, "设备", res.Rows[0].ProjectName)
	for _, row := range res.Rows {
		assert.NotEqual(t, domain.PlaceholderDescription, row.Description)
	}
	assert.Equal(t, int32(2), details.calls.Load())
}

func TestRun_PassesDetailLocator(t *testing.T) {
	t.Parallel()

	legacy := record("old")
	legacy.Detail = domain.DetailLocator{ID: "old", ColCode: "01", OldData: "1"}
	src := newFakeSource(1).script(1, []domain.ListRecord{legacy})
	details := &fakeDetails{}

	res := newOrchestrator(src, details, pipeline.Config{}).Run(context.Background(), domain.SearchCriteria{})

	require.Len(t, res.Rows, 1)
	details.mu.Lock()
	defer details.mu.Unlock()
	assert.Equal(t, []domain.DetailLocator{legacy.Detail}, details.locators)
}
