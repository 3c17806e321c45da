package powerschool

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"schoolportal-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// ParseTeacherComments parses the teacher comments page: one record per
// course row with the period expression, course number/name, teacher
// name + email, and the comment text. Rows without comments are kept,
// empty-comment filtering is a caller decision.
func ParseTeacherComments(ctx context.Context, markup []byte) ([]Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(markup))
	if err != nil {
		return nil, &ParseError{Page: PageTeacherComments, Reason: err.Error()}
	}

	table := htmlutil.FindTableByHeaders(doc, "course", "comment")
	if table == nil {
		return nil, &ParseError{Page: PageTeacherComments, Reason: "comments table not found"}
	}

	var records []Record
	for _, row := range table.Rows() {
		course := table.CellText(row, "course")
		if course == "" {
			continue
		}

		name, email := teacherInfo(table.Cell(row, "teacher"))
		if name == "" {
			name = table.CellText(row, "teacher")
		}

		records = append(records, Record{
			FieldExpression:   table.CellText(row, "exp"),
			FieldCourseNumber: table.CellText(row, "course #"),
			FieldCourse:       course,
			FieldTeacher:      name,
			FieldTeacherEmail: email,
			FieldComment:      commentText(table.Cell(row, "comment")),
		})
	}

	if len(records) == 0 {
		slog.WarnContext(ctx, "teacher comments table contained no course rows")
	}
	return records, nil
}

// the teacher cell carries an "Email Teacher, Name" mailto link and
// sometimes an info button titled "Details about Teacher, Name"
func teacherInfo(cell *goquery.Selection) (name, email string) {
	if cell == nil {
		return "", ""
	}

	link := cell.Find("a[href^='mailto:']").First()
	if href, ok := link.Attr("href"); ok {
		email = strings.TrimSpace(strings.TrimPrefix(href, "mailto:"))
		text := htmlutil.CleanText(link)
		if strings.HasPrefix(text, "Email ") {
			name = strings.TrimSpace(strings.TrimPrefix(text, "Email "))
		}
	}

	if name == "" {
		if title, ok := cell.Find("a[title]").First().Attr("title"); ok {
			if strings.Contains(title, "Details about") {
				name = strings.TrimSpace(strings.ReplaceAll(title, "Details about", ""))
			}
		}
	}

	return name, email
}

func commentText(cell *goquery.Selection) string {
	if cell == nil {
		return ""
	}
	if pre := cell.Find("pre"); pre.Length() > 0 {
		return htmlutil.CleanText(pre)
	}
	return htmlutil.CleanText(cell)
}

// StudentNameFromComments pulls the student name out of the page header,
// rendered as "Teacher Comments: LastName, FirstName".
func StudentNameFromComments(markup []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(markup))
	if err != nil {
		return ""
	}
	text := htmlutil.CleanText(doc.Find("h1").First())
	if strings.Contains(text, "Teacher Comments:") {
		return strings.TrimSpace(strings.TrimPrefix(text, "Teacher Comments:"))
	}
	return ""
}
