package extractor_test

import (
	"testing"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/extractor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = `<tr><td>序号</td><td>采购项目名称</td><td>采购需求概况</td><td>预算金额(万元)</td>` +
	`<td>拟面向中小企业预留</td><td>预计采购时间</td><td>备注</td></tr>`

func TestExtract_WellFormedTable(t *testing.T) {
	t.Parallel()

	markup := `<html><body><p>意向公开</p><table>` + header +
		`<tr><td>1</td><td>办公设备 采购</td><td>台式机\n 20 台</td><td>12.5</td><td>是</td><td>2024年5月</td><td></td></tr>` +
		`<tr><td>2</td><td>物业服务</td><td>一年</td><td>80</td><td>否</td><td>2024年6月</td><td>续签</td></tr>` +
		`</table></body></html>`

	rows := extractor.New(nil).Extract(markup)

	require.Len(t, rows, 2)
	assert.Equal(t, domain.ChildRow{
		SubIndex:       "1",
		ProjectName:    "办公设备 采购",
		Description:    `台式机\n 20 台`,
		BudgetAmount:   "12.5",
		SMEReservation: "是",
		EstimatedTime:  "2024年5月",
	}, rows[0])
	assert.Equal(t, "续签", rows[1].Remark)
}

func TestExtract_NormalizesWhitespace(t *testing.T) {
	t.Parallel()

	markup := "<table>" + header +
		"<tr><td>1</td><td>  车辆\n\t租赁 <span>服务</span> </td><td>a  \n b</td><td>5</td><td></td><td></td><td></td></tr>" +
		"</table>"

	rows := extractor.New(nil).Extract(markup)

	require.Len(t, rows, 1)
	assert.Equal(t, "车辆 租赁 服务", rows[0].ProjectName)
	assert.Equal(t, "a b", rows[0].Description)
}

func TestExtract_Idempotent(t *testing.T) {
	t.Parallel()

	markup := "<table>" + header +
		"<tr><td>1</td><td>甲</td><td>d</td><td>1</td><td></td><td></td><td></td></tr>" +
		"<tr><td>2</td><td>乙</td><td>d</td><td>2</td><td></td><td></td><td></td></tr>" +
		"</table>"

	ex := extractor.New(nil)
	first := ex.Extract(markup)
	second := ex.Extract(markup)

	require.Len(t, first, 2)
	assert.Equal(t, first, second)
}

func TestExtract_DeduplicatesOnNameAndAmount(t *testing.T) {
	t.Parallel()

	markup := "<table>" + header +
		"<tr><td>1</td><td>绿化养护</td><td>first</td><td>30</td><td></td><td></td><td></td></tr>" +
		"<tr><td>2</td><td>绿化养护</td><td>second</td><td>30</td><td></td><td></td><td></td></tr>" +
		"<tr><td>3</td><td>绿化养护</td><td>third</td><td>40</td><td></td><td></td><td></td></tr>" +
		"</table>" +
		"<table>" + header +
		"<tr><td>1</td><td>绿化养护</td><td>fourth</td><td>30</td><td></td><td></td><td></td></tr>" +
		"</table>"

	rows := extractor.New(nil).Extract(markup)

	require.Len(t, rows, 2)
	assert.Equal(t, "first", rows[0].Description)
	assert.Equal(t, "40", rows[1].BudgetAmount)
}

func TestExtract_ShiftCorrection(t *testing.T) {
	t.Parallel()

	// second data row lost its sequence cell, so its name sits under 序号
	markup := "<table>" + header +
		"<tr><td>1</td><td>正常项目</td><td>desc</td><td>10</td><td>是</td><td>5月</td><td>r</td></tr>" +
		"<tr><td>信息化系统运维服务</td><td>系统运维</td><td>200</td><td>否</td><td>7月</td><td>备注文本</td></tr>" +
		"</table>"

	rows := extractor.New(nil).Extract(markup)

	require.Len(t, rows, 2)
	assert.Equal(t, domain.ChildRow{
		SubIndex:       "",
		ProjectName:    "信息化系统运维服务",
		Description:    "系统运维",
		BudgetAmount:   "200",
		SMEReservation: "否",
		EstimatedTime:  "7月",
		Remark:         "备注文本",
	}, rows[1])
}

func TestExtract_NumericSequenceNeverShifted(t *testing.T) {
	t.Parallel()

	markup := "<table>" + header +
		"<tr><td>123456789</td><td>长序号项目</td><td>d</td><td>9</td><td></td><td></td><td></td></tr>" +
		"<tr><td>12</td><td>短序号项目</td><td>d</td><td>8</td><td></td><td></td><td></td></tr>" +
		"</table>"

	rows := extractor.New(nil).Extract(markup)

	require.Len(t, rows, 2)
	assert.Equal(t, "123456789", rows[0].SubIndex)
	assert.Equal(t, "长序号项目", rows[0].ProjectName)
	assert.Equal(t, "12", rows[1].SubIndex)
}

func TestExtract_ShortTextSequenceNotShifted(t *testing.T) {
	t.Parallel()

	markup := "<table>" + header +
		"<tr><td>一</td><td>项目甲</td><td>d</td><td>1</td><td></td><td></td><td></td></tr>" +
		"</table>"

	rows := extractor.New(nil).Extract(markup)

	require.Len(t, rows, 1)
	assert.Equal(t, "一", rows[0].SubIndex)
	assert.Equal(t, "项目甲", rows[0].ProjectName)
}

func TestExtract_SkipsPlaceholderAndEmptyNames(t *testing.T) {
	t.Parallel()

	markup := "<table>" + header +
		"<tr><td>序号</td><td>项目名称</td><td></td><td></td><td></td><td></td><td></td></tr>" +
		"<tr><td>1</td><td></td><td>no name</td><td>5</td><td></td><td></td><td></td></tr>" +
		"<tr><td>2</td><td>名称</td><td></td><td></td><td></td><td></td><td></td></tr>" +
		"<tr><td>3</td><td>真实项目</td><td></td><td>7</td><td></td><td></td><td></td></tr>" +
		"<tr><td>合计</td></tr>" +
		"</table>"

	rows := extractor.New(nil).Extract(markup)

	require.Len(t, rows, 1)
	assert.Equal(t, "真实项目", rows[0].ProjectName)
}

func TestExtract_HeaderFoundWithinFirstSixRows(t *testing.T) {
	t.Parallel()

	preamble := "<tr><td colspan=\"7\">2024年采购意向</td></tr>"
	markup := "<table>" + preamble + preamble + header +
		"<tr><td>1</td><td>项目</td><td></td><td>3</td><td></td><td></td><td></td></tr>" +
		"</table>"

	rows := extractor.New(nil).Extract(markup)
	require.Len(t, rows, 1)

	late := "<table>" + preamble + preamble + preamble + preamble + preamble + preamble + header +
		"<tr><td>1</td><td>项目</td><td></td><td>3</td><td></td><td></td><td></td></tr>" +
		"</table>"
	assert.Empty(t, extractor.New(nil).Extract(late))
}

func TestExtract_TablesWithoutHeaderSkipped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		markup string
	}{
		{name: "empty", markup: ""},
		{name: "no table", markup: "<p>详情正文</p>"},
		{
			name:   "layout table",
			markup: "<table><tr><td>联系人</td><td>张三</td></tr><tr><td>电话</td><td>123</td></tr></table>",
		},
		{
			name:   "name without sequence",
			markup: "<table><tr><td>项目名称</td><td>金额</td></tr><tr><td>甲</td><td>1</td></tr></table>",
		},
		{name: "single row", markup: "<table>" + header + "</table>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Empty(t, extractor.New(nil).Extract(tt.markup))
		})
	}
}

func TestExtract_NestedTableRowsStayWithTheirTable(t *testing.T) {
	t.Parallel()

	markup := "<table><tr><td><table>" + header +
		"<tr><td>1</td><td>内层项目</td><td></td><td>2</td><td></td><td></td><td></td></tr>" +
		"</table></td></tr><tr><td>outer</td></tr></table>"

	rows := extractor.New(nil).Extract(markup)

	require.Len(t, rows, 1)
	assert.Equal(t, "内层项目", rows[0].ProjectName)
}

func TestExtract_TheadAndTbody(t *testing.T) {
	t.Parallel()

	markup := "<table><thead>" + header + "</thead><tbody>" +
		"<tr><td>1</td><td>项目</td><td></td><td>3</td><td></td><td></td><td></td></tr>" +
		"</tbody></table>"

	rows := extractor.New(nil).Extract(markup)

	require.Len(t, rows, 1)
	assert.Equal(t, "3", rows[0].BudgetAmount)
}
