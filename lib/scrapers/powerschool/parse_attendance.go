package powerschool

import (
	"bytes"
	"context"
	"log/slog"

	"schoolportal-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// ParseDailyAttendance parses the daily attendance grid: one record per
// dated cell carrying the raw code, the cell's css classes and an
// optional period marker. The portal has shipped at least three layouts
// for this page, all are handled.
func ParseDailyAttendance(ctx context.Context, markup []byte) ([]Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(markup))
	if err != nil {
		return nil, &ParseError{Page: PageAttendanceDaily, Reason: err.Error()}
	}

	records := parseDatedCells(doc.Find("[data-date]"))
	if records == nil {
		records = parseAttendanceDayDivs(doc)
	}
	if records == nil {
		if table := htmlutil.FindTableByHeaders(doc, "date", "attendance"); table != nil {
			records = parseAttendanceTable(ctx, table)
		}
	}
	if records == nil {
		return nil, &ParseError{Page: PageAttendanceDaily, Reason: "attendance grid not found"}
	}

	return records, nil
}

func parseDatedCells(cells *goquery.Selection) []Record {
	var records []Record
	cells.Each(func(_ int, cell *goquery.Selection) {
		date := cell.AttrOr("data-date", "")
		if date == "" {
			return
		}

		code := htmlutil.CleanText(cell.Find("span.code"))
		if code == "" {
			code = htmlutil.CleanText(cell)
		}

		records = append(records, Record{
			FieldDate:     date,
			FieldCode:     code,
			FieldCSSClass: cell.AttrOr("class", ""),
			FieldPeriod:   cell.AttrOr("data-period", ""),
		})
	})
	return records
}

func parseAttendanceDayDivs(doc *goquery.Document) []Record {
	var records []Record
	doc.Find("div.attendance-day").Each(func(_ int, div *goquery.Selection) {
		date := div.AttrOr("data-date", "")
		if date == "" {
			return
		}

		status := div.Find("span.status")
		rec := Record{
			FieldDate:     date,
			FieldCode:     htmlutil.CleanText(div.Find("span.code")),
			FieldCSSClass: status.AttrOr("class", ""),
			FieldPeriod:   div.AttrOr("data-period", ""),
		}
		if rec[FieldCode] == "" {
			rec[FieldCode] = htmlutil.CleanText(status)
		}
		records = append(records, rec)
	})
	return records
}

func parseAttendanceTable(ctx context.Context, table *htmlutil.Table) []Record {
	var records []Record
	for _, row := range table.Rows() {
		date := table.CellText(row, "date")
		if date == "" {
			slog.WarnContext(ctx, "skipping attendance row without a date")
			continue
		}
		records = append(records, Record{
			FieldDate:   date,
			FieldCode:   table.CellText(row, "attendance"),
			FieldPeriod: table.CellText(row, "period"),
		})
	}
	// distinguish "table with zero data rows" from "no table at all"
	if records == nil {
		records = []Record{}
	}
	return records
}

// ParseAttendanceDashboard parses the per-term attendance aggregates. One
// record per term row; counts stay raw strings.
func ParseAttendanceDashboard(ctx context.Context, markup []byte) ([]Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(markup))
	if err != nil {
		return nil, &ParseError{Page: PageAttendanceDashboard, Reason: err.Error()}
	}

	table := htmlutil.FindTableByHeaders(doc, "term", "absent")
	if table == nil {
		table = htmlutil.FindTableByHeaders(doc, "term", "present")
	}
	if table == nil {
		return nil, &ParseError{Page: PageAttendanceDashboard, Reason: "attendance summary table not found"}
	}

	var records []Record
	for _, row := range table.Rows() {
		term := table.CellText(row, "term")
		if term == "" {
			continue
		}
		records = append(records, Record{
			FieldTerm:           term,
			FieldDaysEnrolled:   table.CellText(row, "enrolled"),
			FieldDaysPresent:    table.CellText(row, "present"),
			FieldDaysAbsent:     table.CellText(row, "absent"),
			FieldAbsentExcused:  table.CellText(row, "excused"),
			FieldTardies:        table.CellText(row, "tard"),
			FieldAttendanceRate: table.CellText(row, "rate"),
		})
	}

	return records, nil
}
