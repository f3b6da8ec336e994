package crawl

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/pipeline"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/task"
)

const (
	titleColumnWidth   = 30
	projectColumnWidth = 30
)

func renderRows(w io.Writer, rows []domain.OutputRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No rows.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: titleColumnWidth},
		{Number: 5, WidthMax: projectColumnWidth},
	})
	t.AppendHeader(table.Row{"#", "Region", "Title", "Sub", "Project", "Budget", "SME", "Expected", "Published"})
	for i, r := range rows {
		t.AppendRow(table.Row{
			i + 1,
			r.RegionName,
			r.Title,
			r.SubIndex,
			r.ProjectName,
			r.BudgetAmount,
			r.SMEReservation,
			r.EstimatedTime,
			r.PublishedAt,
		})
	}
	t.AppendFooter(table.Row{"Total", len(rows)})
	t.Render()
}

func renderSummary(w io.Writer, req task.Request, res pipeline.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Mode", req.Mode},
		{"Title", req.Criteria.Title},
		{"Pages visited", res.PagesVisited},
		{"Rows", len(res.Rows)},
		{"Reason", string(res.Reason)},
	})
	if res.Err != nil {
		t.AppendRow(table.Row{"Error", res.Err.Error()})
	}
	t.Render()
}
