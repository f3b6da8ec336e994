// Package extractor turns detail markup into normalized child rows.
package extractor

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
	"golang.org/x/net/html"
)

const (
	// headerScanRows is how many leading rows are searched for a header.
	headerScanRows = 6
	// shiftedIndexLen is the length above which a non-numeric sequence cell marks
	// a shifted row.
	shiftedIndexLen = 5
	// minDataCells is the fewest cells a data row may have.
	minDataCells = 2
	// minTableRows is the fewest rows a data table may have.
	minTableRows = 2
	noColumn     = -1
)

// placeholderNames are header labels that must never be read as a project name.
var placeholderNames = map[string]struct{}{
	"采购项目名称": {},
	"项目名称":   {},
	"名称":     {},
}

// columnMap holds the cell index of each semantic field, or noColumn.
type columnMap struct {
	subIndex    int
	projectName int
	description int
	amount      int
	sme         int
	estTime     int
	remark      int
}

func emptyColumnMap() columnMap {
	return columnMap{noColumn, noColumn, noColumn, noColumn, noColumn, noColumn, noColumn}
}

// isHeader reports whether the map has both a sequence and a name column.
func (m columnMap) isHeader() bool {
	return m.subIndex != noColumn && m.projectName != noColumn
}

// mapHeader matches labels against the vocabulary. The first matching label wins
// per cell, in vocabulary order.
func mapHeader(labels []string) columnMap {
	m := emptyColumnMap()
	for i, h := range labels {
		switch {
		case strings.Contains(h, "序号"):
			m.subIndex = i
		case strings.Contains(h, "名称"):
			m.projectName = i
		case strings.Contains(h, "概况"), strings.Contains(h, "需求"):
			m.description = i
		case strings.Contains(h, "金额"):
			m.amount = i
		case strings.Contains(h, "中小企业"):
			m.sme = i
		case strings.Contains(h, "时间"):
			m.estTime = i
		case strings.Contains(h, "备注"):
			m.remark = i
		}
	}
	return m
}

// Extractor parses detail tables. It holds no per-call state and is safe for
// concurrent use.
type Extractor struct {
	log logger.Logger
}

// New creates an Extractor. A nil logger disables debug output.
func New(log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Extractor{log: log}
}

// Extract returns the child rows of every data table in markup, in document order,
// deduplicated on (project name, budget amount).
func (e *Extractor) Extract(markup string) []domain.ChildRow {
	if strings.TrimSpace(markup) == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		e.log.Warn("Failed to parse detail markup", logger.Error(err))
		return nil
	}

	tables := doc.Find("table")
	e.log.Debug("Scanning detail tables", logger.Int("tables", tables.Length()))

	var results []domain.ChildRow
	seen := make(map[string]struct{})

	tables.Each(func(_ int, table *goquery.Selection) {
		for _, row := range e.tableRows(table) {
			fp := row.Fingerprint()
			if _, dup := seen[fp]; dup {
				continue
			}
			seen[fp] = struct{}{}
			results = append(results, row)
		}
	})

	return results
}

// tableRows extracts the rows of one table, or nil if it has no recognizable header.
func (e *Extractor) tableRows(table *goquery.Selection) []domain.ChildRow {
	rows := ownRows(table)
	if len(rows) < minTableRows {
		return nil
	}

	headerIdx := noColumn
	var cols columnMap
	for idx := 0; idx < len(rows) && idx < headerScanRows; idx++ {
		labels := make([]string, 0, rows[idx].Length())
		rows[idx].Each(func(_ int, cell *goquery.Selection) {
			labels = append(labels, cellText(cell, ""))
		})
		if m := mapHeader(labels); m.isHeader() {
			headerIdx = idx
			cols = m
			break
		}
	}
	if headerIdx == noColumn {
		return nil
	}

	var out []domain.ChildRow
	for _, cells := range rows[headerIdx+1:] {
		if cells.Length() < minDataCells {
			continue
		}
		texts := make([]string, 0, cells.Length())
		cells.Each(func(_ int, cell *goquery.Selection) {
			texts = append(texts, normalize(cellText(cell, " ")))
		})

		row := mapRow(texts, cols)
		if _, placeholder := placeholderNames[row.ProjectName]; row.ProjectName == "" || placeholder {
			continue
		}
		out = append(out, row)
	}
	return out
}

// mapRow resolves a data row through the header map, or positionally when the
// sequence cell shows the row has lost its sequence column.
func mapRow(texts []string, cols columnMap) domain.ChildRow {
	at := func(idx int) string {
		if idx >= 0 && idx < len(texts) {
			return texts[idx]
		}
		return ""
	}

	seq := at(cols.subIndex)
	if isShifted(seq) {
		return domain.ChildRow{
			ProjectName:    at(0),
			Description:    at(1),
			BudgetAmount:   at(2),
			SMEReservation: at(3),
			EstimatedTime:  at(4),
			Remark:         at(5),
		}
	}

	return domain.ChildRow{
		SubIndex:       seq,
		ProjectName:    at(cols.projectName),
		Description:    at(cols.description),
		BudgetAmount:   at(cols.amount),
		SMEReservation: at(cols.sme),
		EstimatedTime:  at(cols.estTime),
		Remark:         at(cols.remark),
	}
}

// isShifted reports whether a sequence cell is longer than shiftedIndexLen
// characters and not purely numeric.
func isShifted(seq string) bool {
	return utf8.RuneCountInString(seq) > shiftedIndexLen && !isDigits(seq)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ownRows returns the cells of each row belonging to table itself, skipping rows
// of nested tables. The parser wraps bare rows in tbody, so rows are matched by
// their closest table.
func ownRows(table *goquery.Selection) []*goquery.Selection {
	var rows []*goquery.Selection
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Closest("table").IsSelection(table) {
			rows = append(rows, tr.ChildrenFiltered("td, th"))
		}
	})
	return rows
}

// cellText joins the trimmed, non-empty text nodes under cell with sep.
func cellText(cell *goquery.Selection, sep string) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range cell.Nodes {
		walk(n)
	}
	return strings.Join(parts, sep)
}

// normalize collapses whitespace runs to single spaces and trims.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
