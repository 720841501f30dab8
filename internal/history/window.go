package history

import "strconv"

// WindowDelta is the number of pages shown on each side of the current page
const WindowDelta = 2

// Marker distinguishes page buttons from the two ellipsis positions
type Marker int

const (
	MarkerPage Marker = iota
	MarkerEllipsisLeft
	MarkerEllipsisRight
)

// PageItem is one entry of a pagination window. Page is zero for ellipses.
type PageItem struct {
	Page   int
	Marker Marker
}

// IsEllipsis reports whether the item is a gap marker
func (p PageItem) IsEllipsis() bool {
	return p.Marker != MarkerPage
}

func (p PageItem) String() string {
	switch p.Marker {
	case MarkerEllipsisLeft, MarkerEllipsisRight:
		return "..."
	default:
		return strconv.Itoa(p.Page)
	}
}

// Window returns the page selector for current page c out of t pages.
//
// Page 1 is always present and page t is present when t > 1. Between them
// are pages max(2, c-d)..min(t-1, c+d), with an ellipsis on either side
// when a gap of at least two pages remains.
func Window(c, t, d int) []PageItem {
	if t < 1 {
		t = 1
	}
	if c < 1 {
		c = 1
	}
	if c > t {
		c = t
	}
	if d < 0 {
		d = 0
	}

	items := []PageItem{{Page: 1}}
	if c-d > 2 {
		items = append(items, PageItem{Marker: MarkerEllipsisLeft})
	}
	for i := max(2, c-d); i <= min(t-1, c+d); i++ {
		items = append(items, PageItem{Page: i})
	}
	if c+d < t-1 {
		items = append(items, PageItem{Marker: MarkerEllipsisRight})
	}
	if t > 1 {
		items = append(items, PageItem{Page: t})
	}
	return items
}
