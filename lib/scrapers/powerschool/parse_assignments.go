package powerschool

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"schoolportal-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// ParseAssignments parses the class assignments summary page into one
// record per assignment row. Score and status stay raw strings, the
// normalizer decides what "Missing" in a score cell means.
func ParseAssignments(ctx context.Context, markup []byte) ([]Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(markup))
	if err != nil {
		return nil, &ParseError{Page: PageAssignments, Reason: err.Error()}
	}

	table := htmlutil.FindTableByHeaders(doc, "assignment", "due date")
	if table == nil {
		table = htmlutil.FindTableByHeaders(doc, "assignment", "course")
	}
	if table == nil {
		return nil, &ParseError{Page: PageAssignments, Reason: "assignments table not found"}
	}

	var records []Record
	for _, row := range table.Rows() {
		name := table.CellText(row, "assignment")
		course := table.CellText(row, "course")
		if name == "" && course == "" {
			continue
		}
		if name == "" {
			slog.WarnContext(ctx, "skipping assignment row without a name", "course", course)
			continue
		}

		rec := Record{
			FieldTeacher:    table.CellText(row, "teacher"),
			FieldCourse:     course,
			FieldExpression: table.CellText(row, "exp"),
			FieldTerm:       table.CellText(row, "term"),
			FieldDueDate:    table.CellText(row, "due date"),
			FieldCategory:   table.CellText(row, "category"),
			FieldAssignment: name,
			FieldScore:      table.CellText(row, "score"),
			FieldPercent:    table.CellText(row, "percent"),
			FieldLetter:     table.CellText(row, "grade"),
		}

		if codes := table.Cell(row, "codes"); codes != nil {
			rec[FieldCodes] = statusToken(codes)
		} else if flags := table.Cell(row, "flags"); flags != nil {
			rec[FieldCodes] = statusToken(flags)
		}

		records = append(records, rec)
	}

	return records, nil
}

// statusToken extracts the raw status marker out of a codes cell. The
// portal renders it as an icon alt text, a css class, or plain text
// depending on the page version.
func statusToken(cell *goquery.Selection) string {
	if alt, ok := cell.Find("img[alt]").First().Attr("alt"); ok && alt != "" {
		return alt
	}

	for _, hint := range []string{"missing", "collected", "late", "exempt"} {
		if cell.Find("." + hint).Length() > 0 {
			return hint
		}
		if class, ok := cell.Attr("class"); ok && strings.Contains(strings.ToLower(class), hint) {
			return hint
		}
	}

	return htmlutil.CleanText(cell)
}
