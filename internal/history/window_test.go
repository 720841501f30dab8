package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func pages(ns ...int) []PageItem {
	items := make([]PageItem, 0, len(ns))
	for _, n := range ns {
		switch n {
		case -1:
			items = append(items, PageItem{Marker: MarkerEllipsisLeft})
		case -2:
			items = append(items, PageItem{Marker: MarkerEllipsisRight})
		default:
			items = append(items, PageItem{Page: n})
		}
	}
	return items
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name    string
		current int
		total   int
		want    []PageItem
	}{
		{"middle of ten", 5, 10, pages(1, -1, 3, 4, 5, 6, 7, -2, 10)},
		{"first of ten", 1, 10, pages(1, 2, 3, -2, 10)},
		{"last of ten", 10, 10, pages(1, -1, 8, 9, 10)},
		{"no left gap", 4, 10, pages(1, 2, 3, 4, 5, 6, -2, 10)},
		{"no right gap", 7, 10, pages(1, -1, 5, 6, 7, 8, 9, 10)},
		{"single page", 1, 1, pages(1)},
		{"no pages", 1, 0, pages(1)},
		{"two pages", 2, 2, pages(1, 2)},
		{"five pages", 3, 5, pages(1, 2, 3, 4, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Window(tt.current, tt.total, WindowDelta))
		})
	}
}

func TestWindow_Properties(t *testing.T) {
	for total := 0; total <= 30; total++ {
		for current := 1; current <= max(total, 1); current++ {
			items := Window(current, total, WindowDelta)

			assert.Equal(t, 1, items[0].Page)
			if total > 1 {
				assert.Equal(t, total, items[len(items)-1].Page)
			}

			prev := 0
			for i, item := range items {
				if item.IsEllipsis() {
					next := items[i+1].Page
					assert.GreaterOrEqual(t, next-prev, 2, "ellipsis without gap at c=%d t=%d", current, total)
					continue
				}
				assert.GreaterOrEqual(t, item.Page, 1)
				assert.LessOrEqual(t, item.Page, max(total, 1))
				assert.Greater(t, item.Page, prev, "pages not ascending at c=%d t=%d", current, total)
				prev = item.Page
			}
		}
	}
}

func TestPageItem_String(t *testing.T) {
	assert.Equal(t, "3", PageItem{Page: 3}.String())
	assert.Equal(t, "...", PageItem{Marker: MarkerEllipsisLeft}.String())
	assert.Equal(t, "...", PageItem{Marker: MarkerEllipsisRight}.String())
}
