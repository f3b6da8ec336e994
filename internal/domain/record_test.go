package domain_test

import (
	"testing"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDetailLocator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		rawURL string
		want   domain.DetailLocator
		ok     bool
	}{
		{
			name:   "full query",
			rawURL: "http://www.ccgp-shandong.gov.cn/detail?id=abc&colCode=2500&oldData=1",
			want:   domain.DetailLocator{ID: "abc", ColCode: "2500", OldData: "1"},
			ok:     true,
		},
		{
			name:   "defaults applied",
			rawURL: "http://www.ccgp-shandong.gov.cn/detail?id=abc",
			want:   domain.DetailLocator{ID: "abc", ColCode: "01", OldData: "0"},
			ok:     true,
		},
		{
			name:   "missing id",
			rawURL: "http://www.ccgp-shandong.gov.cn/detail?colCode=2500",
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := domain.ParseDetailLocator(tt.rawURL)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMerge_PlaceholderWhenNoChildren(t *testing.T) {
	t.Parallel()

	rec := domain.ListRecord{
		RecordID:   "b",
		RegionName: "济南市",
		Title:      "采购意向公开B",
		Detail:     domain.DetailLocator{ID: "b", ColCode: "2500", OldData: "0"},
	}

	rows := domain.Merge(rec, nil, "http://host/detail")

	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].SubIndex)
	assert.Equal(t, rec.Title, rows[0].ProjectName)
	assert.Equal(t, domain.PlaceholderDescription, rows[0].Description)
	assert.Empty(t, rows[0].BudgetAmount)
	assert.Equal(t, "http://host/detail?colCode=2500&id=b&oldData=0", rows[0].Link)
}

func TestMerge_OneRowPerChild(t *testing.T) {
	t.Parallel()

	rec := domain.ListRecord{RecordID: "a", Title: "A", RegionName: "青岛市"}
	children := []domain.ChildRow{{ProjectName: "x"}, {ProjectName: "y"}}

	rows := domain.Merge(rec, children, "http://host/detail")

	require.Len(t, rows, 2)
	assert.Equal(t, "x", rows[0].ProjectName)
	assert.Equal(t, "y", rows[1].ProjectName)
	assert.Equal(t, "青岛市", rows[1].RegionName)
}
