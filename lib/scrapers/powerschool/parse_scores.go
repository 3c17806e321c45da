package powerschool

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"

	"schoolportal-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// CourseScores is the parsed course score detail page: category weights
// plus the full per-assignment breakdown for one course.
type CourseScores struct {
	Course      string
	Teacher     string
	Categories  []Record
	Assignments []Record
}

// ParseCourseScores parses a scores.html page for a single course.
// Either section may be absent on its own (a course with no weighted
// categories still lists assignments); both missing is structural.
func ParseCourseScores(ctx context.Context, markup []byte) (CourseScores, error) {
	out := CourseScores{}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(markup))
	if err != nil {
		return out, &ParseError{Page: PageCourseScores, Reason: err.Error()}
	}

	out.Course = htmlutil.CleanText(doc.Find("h2, .course-name").First())
	out.Teacher = htmlutil.CleanText(doc.Find(".teacher-name").First())

	if table := htmlutil.FindTableByHeaders(doc, "category", "weight"); table != nil {
		for _, row := range table.Rows() {
			category := table.CellText(row, "category")
			if category == "" {
				continue
			}
			out.Categories = append(out.Categories, Record{
				FieldCategory: category,
				FieldWeight:   table.CellText(row, "weight"),
				FieldScore:    table.CellText(row, "points"),
			})
		}
	}

	if table := htmlutil.FindTableByHeaders(doc, "assignment", "score"); table != nil {
		for _, row := range table.Rows() {
			name := table.CellText(row, "assignment")
			if name == "" {
				slog.WarnContext(ctx, "skipping score detail row without an assignment name")
				continue
			}
			rec := Record{
				FieldDueDate:     table.CellText(row, "due date"),
				FieldCategory:    table.CellText(row, "category"),
				FieldAssignment:  name,
				FieldScore:       table.CellText(row, "score"),
				FieldPercent:     table.CellText(row, "percent"),
				FieldLetter:      table.CellText(row, "grade"),
				FieldDescription: table.CellText(row, "description"),
				FieldStandards:   table.CellText(row, "standards"),
			}
			if codes := table.Cell(row, "codes"); codes != nil {
				rec[FieldCodes] = statusToken(codes)
			}
			out.Assignments = append(out.Assignments, rec)
		}
	}

	if out.Categories == nil && out.Assignments == nil {
		return out, &ParseError{Page: PageCourseScores, Reason: "neither weights nor score tables found"}
	}

	return out, nil
}

// ScoreLinks extracts the per-course score page query params off the
// home grid. Each grade cell on the grid links to scores.html with the
// course and term encoded in the query string; duplicates are dropped.
func ScoreLinks(markup []byte) []url.Values {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(markup))
	if err != nil {
		return nil
	}

	seen := map[string]struct{}{}
	var links []url.Values
	doc.Find("a[href*='scores.html']").Each(func(_ int, anchor *goquery.Selection) {
		href := anchor.AttrOr("href", "")
		idx := strings.Index(href, "?")
		if idx < 0 {
			return
		}
		params, err := url.ParseQuery(href[idx+1:])
		if err != nil || len(params) == 0 {
			return
		}
		key := params.Encode()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, params)
	})
	return links
}
