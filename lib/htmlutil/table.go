package htmlutil

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Table is a parsed html table whose columns are addressed by header label
// instead of position. The portal reorders columns between versions without
// notice, so positional access is never safe.
type Table struct {
	headers []string
	rows    []*goquery.Selection
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NewTable reads the header row of a table selection (th cells, falling
// back to the td cells of the first row) and captures the remaining rows.
func NewTable(table *goquery.Selection) *Table {
	t := &Table{}

	headerRow := table.Find("tr").First()
	headerCells := headerRow.Find("th")
	if headerCells.Length() == 0 {
		headerCells = headerRow.Find("td")
	}
	headerCells.Each(func(_ int, cell *goquery.Selection) {
		t.headers = append(t.headers, normalizeHeader(CleanText(cell)))
	})

	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		t.rows = append(t.rows, row)
	})

	return t
}

// FindTableByHeaders scans every table in the document and returns the
// first one whose header labels contain all the given labels (substring
// match, case and whitespace insensitive). Returns nil when no table
// qualifies.
func FindTableByHeaders(doc *goquery.Document, labels ...string) *Table {
	var found *Table
	doc.Find("table").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		t := NewTable(sel)
		if t.HasHeaders(labels...) {
			found = t
			return false
		}
		return true
	})
	return found
}

func (t *Table) HasHeaders(labels ...string) bool {
	for _, label := range labels {
		if t.headerIndex(label) < 0 {
			return false
		}
	}
	return len(t.headers) > 0
}

func (t *Table) headerIndex(label string) int {
	label = normalizeHeader(label)
	// prefer an exact header match so "Q1" does not land on "Q1 Comment"
	for i, h := range t.headers {
		if h == label {
			return i
		}
	}
	for i, h := range t.headers {
		if strings.Contains(h, label) {
			return i
		}
	}
	return -1
}

func (t *Table) Headers() []string {
	return t.headers
}

func (t *Table) Rows() []*goquery.Selection {
	return t.rows
}

// Cell returns the cell of `row` that sits under the header matching
// `label`, or nil when the header is unknown or the row is short.
func (t *Table) Cell(row *goquery.Selection, label string) *goquery.Selection {
	idx := t.headerIndex(label)
	if idx < 0 {
		return nil
	}
	cells := row.Find("td, th")
	if idx >= cells.Length() {
		return nil
	}
	return cells.Eq(idx)
}

// CellText is Cell followed by CleanText, returning "" for absent cells.
func (t *Table) CellText(row *goquery.Selection, label string) string {
	cell := t.Cell(row, label)
	if cell == nil {
		return ""
	}
	return CleanText(cell)
}
