// Package fetcher retrieves listing pages and detail payloads from the portal's JSON
// endpoints under a run-wide circuit and jittered pacing.
package fetcher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/circuit"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/metrics"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/pacing"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// Status codes used for response routing.
const (
	statusOK           = 200
	statusForbidden    = 403
	statusTooManyReqs  = 429
	statusServerErrLow = 500
)

// CircuitOpenPages is the totalPages sentinel telling the caller to stop the run.
const CircuitOpenPages = -1

// maxResponseBodyBytes limits the size of fetched responses.
const maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB

// dateLen is the length of a bare YYYY-MM-DD date.
const dateLen = 10

var (
	// ErrBlocked is returned for forbidden, rate limited and server error responses.
	ErrBlocked = errors.New("request blocked by source")
	// ErrNoData is returned when a response does not carry the expected payload.
	ErrNoData = errors.New("no data in response")
)

// Config holds the endpoints and request constants.
type Config struct {
	ListURL    string
	DetailURL  string
	ColCode    string
	PageSize   int
	Origin     string
	Referer    string
	UserAgents []string
}

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher is safe for concurrent use by the detail worker pool.
type Fetcher struct {
	cfg     Config
	client  Doer
	pacer   *pacing.Pacer
	breaker *circuit.Breaker
	log     logger.Logger
	metrics metrics.Recorder
}

// New creates a Fetcher. The breaker is shared with the orchestrator of the run.
func New(
	cfg Config,
	client Doer,
	pacer *pacing.Pacer,
	breaker *circuit.Breaker,
	log logger.Logger,
	recorder metrics.Recorder,
) *Fetcher {
	if recorder == nil {
		recorder = metrics.NewNop()
	}
	return &Fetcher{
		cfg:     cfg,
		client:  client,
		pacer:   pacer,
		breaker: breaker,
		log:     log.With(logger.Component("fetcher")),
		metrics: recorder,
	}
}

// Breaker returns the circuit the fetcher trips on blocking responses.
func (f *Fetcher) Breaker() *circuit.Breaker {
	return f.breaker
}

// listRequest is the JSON body of a listing query.
type listRequest struct {
	ColCode     string `json:"colCode"`
	Area        string `json:"area"`
	CurrentPage int    `json:"currentPage"`
	PageSize    int    `json:"pageSize"`
	Title       string `json:"title"`
	ProjectCode string `json:"projectCode"`
	BuyKind     string `json:"buyKind"`
	BuyType     string `json:"buyType"`
	StartTime   string `json:"startTime"`
	OldData     int    `json:"oldData"`
	EndTime     string `json:"endTime"`
	HomePage    int    `json:"homePage"`
	MergeType   int    `json:"mergeType"`
}

type listEnvelope struct {
	Data *struct {
		Data *struct {
			Records []map[string]any `json:"records"`
			Pages   json.Number      `json:"pages"`
		} `json:"data"`
	} `json:"data"`
}

type detailEnvelope struct {
	Data *struct {
		Data *struct {
			Body string `json:"body"`
		} `json:"data"`
	} `json:"data"`
}

// apiRecord mirrors one listing record. Ids arrive as numbers or strings.
type apiRecord struct {
	ID          string `mapstructure:"id"`
	ColCode     string `mapstructure:"colCode"`
	OldData     string `mapstructure:"oldData"`
	Title       string `mapstructure:"title"`
	AreaName    string `mapstructure:"areaName"`
	Date        string `mapstructure:"date"`
	BuyKindCode string `mapstructure:"buyKindCode"`
	ProjectType string `mapstructure:"projectType"`
	UserName    string `mapstructure:"userName"`
}

// FetchList returns the records of page and the total page count. A total of
// CircuitOpenPages means the source is blocking and the circuit is now open; any
// other failure yields no records and a total of 0.
func (f *Fetcher) FetchList(
	ctx context.Context,
	criteria domain.SearchCriteria,
	page int,
) ([]domain.ListRecord, int) {
	if err := f.breaker.Allow(); err != nil {
		f.metrics.FetchResult(metrics.CallList, metrics.OutcomeSkipped)
		return nil, CircuitOpenPages
	}

	criteria = criteria.WithDefaults()
	body := listRequest{
		ColCode:     f.cfg.ColCode,
		Area:        criteria.Region,
		CurrentPage: page,
		PageSize:    f.cfg.PageSize,
		Title:       criteria.Title,
		StartTime:   expandDate(criteria.StartDate, " 00:00:00"),
		EndTime:     expandDate(criteria.EndDate, " 23:59:59"),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		f.log.Error("Failed to encode list request", logger.Error(err))
		return nil, 0
	}

	f.log.Info("Requesting list page",
		logger.Int("page", page),
		logger.String("area", criteria.Region),
		logger.String("title", criteria.Title),
	)

	raw, err := f.do(ctx, http.MethodPost, f.cfg.ListURL, payload)
	if err != nil {
		if errors.Is(err, ErrBlocked) {
			f.breaker.Trip(fmt.Sprintf("list page %d: %v", page, err))
			f.metrics.FetchResult(metrics.CallList, metrics.OutcomeBlocked)
			f.log.Warn("Source is blocking, stopping list and detail calls",
				logger.Int("page", page), logger.Error(err))
			return nil, CircuitOpenPages
		}
		f.metrics.FetchResult(metrics.CallList, metrics.OutcomeError)
		f.log.Warn("List request failed", logger.Int("page", page), logger.Error(err))
		return nil, 0
	}

	records, total, err := decodeList(raw)
	if err != nil {
		f.metrics.FetchResult(metrics.CallList, metrics.OutcomeEmpty)
		f.log.Info("List response carried no records",
			logger.Int("page", page), logger.Error(err))
		return nil, 0
	}

	f.metrics.FetchResult(metrics.CallList, metrics.OutcomeOK)
	return records, total
}

// FetchDetail returns the decoded detail document, or nil when the call was
// blocked, failed or could not be decoded. A blocked detail does not open the
// circuit. Missing locator fields fall back to the defaults.
func (f *Fetcher) FetchDetail(ctx context.Context, recordID string, loc domain.DetailLocator) *domain.DetailPayload {
	if err := f.breaker.Allow(); err != nil {
		f.metrics.FetchResult(metrics.CallDetail, metrics.OutcomeSkipped)
		return nil
	}

	loc = loc.WithDefaults()
	q := url.Values{}
	q.Set("id", recordID)
	q.Set("colCode", loc.ColCode)
	q.Set("oldData", loc.OldData)

	raw, err := f.do(ctx, http.MethodGet, f.cfg.DetailURL+"?"+q.Encode(), nil)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, ErrBlocked) {
			outcome = metrics.OutcomeBlocked
		}
		f.metrics.FetchResult(metrics.CallDetail, outcome)
		f.log.Warn("Detail request failed, skipping",
			logger.String("record_id", recordID), logger.Error(err))
		return nil
	}

	var env detailEnvelope
	if err = json.Unmarshal(raw, &env); err != nil || env.Data == nil || env.Data.Data == nil ||
		env.Data.Data.Body == "" {
		f.metrics.FetchResult(metrics.CallDetail, metrics.OutcomeEmpty)
		f.log.Info("Detail response carried no body", logger.String("record_id", recordID))
		return nil
	}

	body, ok := DecodeBody(env.Data.Data.Body)
	if !ok {
		f.metrics.FetchResult(metrics.CallDetail, metrics.OutcomeError)
		f.log.Warn("Detail body could not be decoded", logger.String("record_id", recordID))
		return nil
	}

	f.metrics.FetchResult(metrics.CallDetail, metrics.OutcomeOK)
	return &domain.DetailPayload{RecordID: recordID, ColCode: loc.ColCode, Body: body}
}

// do paces, sends and reads one request.
func (f *Fetcher) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	if err := f.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("pacing: %w", err)
	}

	var reqBody io.Reader = http.NoBody
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http %s: %w", strings.ToLower(method), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == statusForbidden || resp.StatusCode == statusTooManyReqs:
		return nil, fmt.Errorf("%w: http status %d", ErrBlocked, resp.StatusCode)
	case resp.StatusCode >= statusServerErrLow:
		return nil, fmt.Errorf("%w: server error %d", ErrBlocked, resp.StatusCode)
	case resp.StatusCode != statusOK:
		return nil, fmt.Errorf("%w: unexpected http status %d", ErrNoData, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return raw, nil
}

func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	if f.cfg.Origin != "" {
		req.Header.Set("Origin", f.cfg.Origin)
	}
	if f.cfg.Referer != "" {
		req.Header.Set("Referer", f.cfg.Referer)
	}
	if ua := f.userAgent(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
}

func (f *Fetcher) userAgent() string {
	if len(f.cfg.UserAgents) == 0 {
		return ""
	}
	return f.cfg.UserAgents[rand.IntN(len(f.cfg.UserAgents))]
}

// decodeList unwraps data.data.records and data.data.pages.
func decodeList(raw []byte) ([]domain.ListRecord, int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var env listEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrNoData, err)
	}
	if env.Data == nil || env.Data.Data == nil || len(env.Data.Data.Records) == 0 {
		return nil, 0, ErrNoData
	}

	total := 0
	if env.Data.Data.Pages != "" {
		if n, err := strconv.Atoi(env.Data.Data.Pages.String()); err == nil {
			total = n
		}
	}

	records := make([]domain.ListRecord, 0, len(env.Data.Data.Records))
	for _, rawRec := range env.Data.Data.Records {
		var rec apiRecord
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &rec,
		})
		if err != nil {
			return nil, 0, fmt.Errorf("create record decoder: %w", err)
		}
		if err = decoder.Decode(rawRec); err != nil || rec.ID == "" {
			continue
		}
		records = append(records, rec.toDomain())
	}
	if len(records) == 0 {
		return nil, 0, ErrNoData
	}
	return records, total, nil
}

func (r apiRecord) toDomain() domain.ListRecord {
	loc := domain.DetailLocator{ID: r.ID, ColCode: r.ColCode, OldData: r.OldData}.WithDefaults()
	return domain.ListRecord{
		RecordID:    r.ID,
		RegionName:  r.AreaName,
		Title:       r.Title,
		PublishedAt: r.Date,
		Detail:      loc,
		BuyMode:     r.BuyKindCode,
		ProjectType: r.ProjectType,
		Publisher:   r.UserName,
	}
}

// DecodeBody base64-decodes a detail body as UTF-8, falling back to GB18030.
func DecodeBody(encoded string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", false
	}
	if utf8.Valid(raw) {
		return string(raw), true
	}

	decoded, err := simplifiedchinese.GB18030.NewDecoder().Bytes(raw)
	if err != nil || bytes.ContainsRune(decoded, utf8.RuneError) {
		return "", false
	}
	return string(decoded), true
}

// expandDate appends suffix to a bare YYYY-MM-DD date.
func expandDate(date, suffix string) string {
	if len(date) == dateLen {
		return date + suffix
	}
	return date
}
