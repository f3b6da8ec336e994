// Package domain holds the record types that flow through the extraction pipeline.
package domain

import (
	"net/url"
	"strings"
)

// DefaultRegion is the province-level area code of the portal.
const DefaultRegion = "370000"

// Locator defaults applied when a detail reference omits them.
const (
	DefaultLocatorColCode = "01"
	DefaultLocatorOldData = "0"
)

// PlaceholderDescription marks a row synthesized for a record whose detail had no table.
const PlaceholderDescription = "详情页未解析到表格"

// SearchCriteria is immutable for the duration of a run.
type SearchCriteria struct {
	Title string `json:"title"`
	// StartDate and EndDate are YYYY-MM-DD; both empty means no date filter.
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Region    string `json:"region"`
}

// HasDateRange reports whether either bound of the date range is set.
func (c SearchCriteria) HasDateRange() bool {
	return c.StartDate != "" || c.EndDate != ""
}

// WithDefaults fills the region when unset.
func (c SearchCriteria) WithDefaults() SearchCriteria {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	return c
}

// DetailLocator identifies the detail payload of a record.
type DetailLocator struct {
	ID      string `json:"id"`
	ColCode string `json:"col_code"`
	OldData string `json:"old_data"`
}

// ParseDetailLocator reads id, colCode and oldData from a detail URL. ok is false
// when the URL carries no id.
func ParseDetailLocator(rawURL string) (DetailLocator, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DetailLocator{}, false
	}
	q := u.Query()
	loc := DetailLocator{
		ID:      strings.TrimSpace(q.Get("id")),
		ColCode: q.Get("colCode"),
		OldData: q.Get("oldData"),
	}
	if loc.ID == "" {
		return DetailLocator{}, false
	}
	return loc.WithDefaults(), true
}

// WithDefaults fills colCode and oldData when absent.
func (l DetailLocator) WithDefaults() DetailLocator {
	if l.ColCode == "" {
		l.ColCode = DefaultLocatorColCode
	}
	if l.OldData == "" {
		l.OldData = DefaultLocatorOldData
	}
	return l
}

// Link renders the public detail page URL under base.
func (l DetailLocator) Link(base string) string {
	q := url.Values{}
	q.Set("id", l.ID)
	q.Set("colCode", l.ColCode)
	q.Set("oldData", l.OldData)
	return base + "?" + q.Encode()
}

// ListRecord is one listing entry. RecordID is unique within a run only.
type ListRecord struct {
	RecordID    string        `json:"record_id"`
	RegionName  string        `json:"region_name"`
	Title       string        `json:"title"`
	PublishedAt string        `json:"published_at"`
	Detail      DetailLocator `json:"detail"`
	BuyMode     string        `json:"buy_mode,omitempty"`
	ProjectType string        `json:"project_type,omitempty"`
	Publisher   string        `json:"publisher,omitempty"`
}

// DetailPayload is a decoded detail document. It is parsed and discarded.
type DetailPayload struct {
	RecordID string
	ColCode  string
	Body     string
}

// ChildRow is one data row extracted from a detail table.
type ChildRow struct {
	SubIndex       string `json:"sub_index"`
	ProjectName    string `json:"project_name"`
	Description    string `json:"description"`
	BudgetAmount   string `json:"budget_amount"`
	SMEReservation string `json:"sme_reservation"`
	EstimatedTime  string `json:"estimated_time"`
	Remark         string `json:"remark"`
}

// Fingerprint is the deduplication key of a child row.
func (c ChildRow) Fingerprint() string {
	return c.ProjectName + "\x00" + c.BudgetAmount
}

// PlaceholderChild stands in for a record whose detail yielded no rows.
func PlaceholderChild(rec ListRecord) ChildRow {
	return ChildRow{
		SubIndex:    "1",
		ProjectName: rec.Title,
		Description: PlaceholderDescription,
	}
}

// OutputRow joins a record's parent fields with one child row.
type OutputRow struct {
	RegionName  string `json:"region_name"`
	Title       string `json:"title"`
	Publisher   string `json:"publisher,omitempty"`
	PublishedAt string `json:"published_at"`
	Link        string `json:"link"`
	RecordID    string `json:"record_id"`
	ChildRow
}

// Merge expands a record into one output row per child, or a single placeholder
// row when children is empty.
func Merge(rec ListRecord, children []ChildRow, linkBase string) []OutputRow {
	if len(children) == 0 {
		children = []ChildRow{PlaceholderChild(rec)}
	}
	link := rec.Detail.Link(linkBase)
	rows := make([]OutputRow, 0, len(children))
	for _, child := range children {
		rows = append(rows, OutputRow{
			RegionName:  rec.RegionName,
			Title:       rec.Title,
			Publisher:   rec.Publisher,
			PublishedAt: rec.PublishedAt,
			Link:        link,
			RecordID:    rec.RecordID,
			ChildRow:    child,
		})
	}
	return rows
}

// PageState tracks the orchestrator's position. Only the control loop mutates it.
type PageState struct {
	PageIndex    int
	AttemptCount int
	RecordsSeen  int
}
