package powerschool

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"schoolportal-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// TermColumns are the grading-period columns the home grid may carry. Not
// every portal version renders all of them.
var TermColumns = []string{"Q1", "Q2", "Q3", "Q4", "S1", "S2", "Y1"}

// GradeField is the record field holding the raw grade cell text for a
// term column, e.g. GradeField("Q1") == "grade_q1".
func GradeField(term string) string {
	return "grade_" + strings.ToLower(term)
}

// ParseHome parses the guardian home page grid: one record per course row
// carrying the course/teacher columns, every term grade cell present, and
// the per-course absence/tardy counts.
func ParseHome(ctx context.Context, markup []byte) ([]Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(markup))
	if err != nil {
		return nil, &ParseError{Page: PageHome, Reason: err.Error()}
	}

	table := htmlutil.FindTableByHeaders(doc, "course")
	if table == nil || !hasAnyTermHeader(table) {
		return nil, &ParseError{Page: PageHome, Reason: "grades grid not found"}
	}

	var records []Record
	for _, row := range table.Rows() {
		course := table.CellText(row, "course")
		if course == "" {
			// spacer and footer rows render without a course cell
			continue
		}

		rec := Record{
			FieldCourse:     courseNameFromCell(table.Cell(row, "course")),
			FieldExpression: table.CellText(row, "exp"),
			FieldTeacher:    table.CellText(row, "teacher"),
			FieldRoom:       table.CellText(row, "room"),
			FieldAbsences:   table.CellText(row, "abs"),
			FieldTardies:    table.CellText(row, "tar"),
		}

		if email := mailtoAddress(row); email != "" {
			rec[FieldTeacherEmail] = email
		}

		for _, term := range TermColumns {
			cell := table.Cell(row, term)
			if cell == nil {
				continue
			}
			rec[GradeField(term)] = htmlutil.CleanText(cell)
		}

		records = append(records, rec)
	}

	if len(records) == 0 {
		slog.WarnContext(ctx, "home grid contained no course rows")
	}
	return records, nil
}

func hasAnyTermHeader(table *htmlutil.Table) bool {
	for _, term := range TermColumns {
		if table.HasHeaders(term) {
			return true
		}
	}
	return table.HasHeaders("grade")
}

// the course cell stacks the course name above teacher detail/email links,
// the name is the text before the first embedded anchor
func courseNameFromCell(cell *goquery.Selection) string {
	if cell == nil {
		return ""
	}
	clone := cell.Clone()
	clone.Find("a").Remove()
	name := htmlutil.CleanText(clone)
	if name == "" {
		name = htmlutil.CleanText(cell)
	}
	return name
}

func mailtoAddress(row *goquery.Selection) string {
	href, ok := row.Find("a[href^='mailto:']").First().Attr("href")
	if !ok {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(href, "mailto:"))
}
