package powerschool

import (
	"errors"
	"fmt"
)

// PageKey is the logical name of a portal page. Callers fetch pages by
// key, never by raw path, so path drift between portal versions stays
// inside this package.
type PageKey string

const (
	PageHome                PageKey = "home"
	PageAssignments         PageKey = "assignments"
	PageAttendanceDaily     PageKey = "attendance_daily"
	PageAttendanceDashboard PageKey = "attendance_dashboard"
	PageTeacherComments     PageKey = "teacher_comments"
	PageCourseScores        PageKey = "course_scores"
)

var pagePaths = map[PageKey]string{
	PageHome:                "/guardian/home.html",
	PageAssignments:         "/guardian/assignments.html",
	PageAttendanceDaily:     "/guardian/attendance.html",
	PageAttendanceDashboard: "/guardian/attendancedashboard.html",
	PageTeacherComments:     "/guardian/teachercomments.html",
	PageCourseScores:        "/guardian/scores.html",
}

// Record is the loosely typed output of a page parser: raw cell text keyed
// by field name. Type coercion happens downstream in the normalizer so a
// malformed cell never kills a parse.
type Record map[string]string

// Field names shared between parsers and the normalizer.
const (
	FieldCourse       = "course"
	FieldCourseNumber = "course_number"
	FieldExpression   = "expression"
	FieldRoom         = "room"
	FieldTeacher      = "teacher"
	FieldTeacherEmail = "teacher_email"
	FieldTerm         = "term"
	FieldDueDate      = "due_date"
	FieldCategory     = "category"
	FieldAssignment   = "assignment"
	FieldScore        = "score"
	FieldPercent      = "percent"
	FieldLetter       = "letter"
	FieldCodes        = "codes"
	FieldDate         = "date"
	FieldCode         = "code"
	FieldCSSClass     = "css_class"
	FieldPeriod       = "period"
	FieldComment      = "comment"
	FieldAbsences     = "absences"
	FieldTardies      = "tardies"
	FieldWeight       = "weight"
	FieldDescription  = "description"
	FieldStandards    = "standards"
	FieldStudentName  = "student_name"
	FieldGradeLevel   = "grade_level"
	FieldSchool       = "school"

	// attendance dashboard aggregates
	FieldDaysEnrolled   = "days_enrolled"
	FieldDaysPresent    = "days_present"
	FieldDaysAbsent     = "days_absent"
	FieldAbsentExcused  = "absent_excused"
	FieldAttendanceRate = "attendance_rate"
)

var (
	ErrInvalidCredentials = errors.New("portal rejected the credentials")
	ErrPortalUnreachable  = errors.New("portal is unreachable")
	// the portal presented a CAPTCHA or MFA challenge the scraper cannot
	// satisfy; surfaced to the operator, never retried
	ErrChallengeRequired = errors.New("portal requires an interactive challenge")
)

type FetchErrorKind int

const (
	FetchSessionExpired FetchErrorKind = iota
	FetchPageNotFound
	FetchTimeout
	FetchUnexpectedStatus
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchSessionExpired:
		return "session expired"
	case FetchPageNotFound:
		return "page not found"
	case FetchTimeout:
		return "timeout"
	case FetchUnexpectedStatus:
		return "unexpected status"
	}
	return "unknown"
}

type FetchError struct {
	Page   PageKey
	Kind   FetchErrorKind
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.Page, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError signals a structural break: the table or section a parser
// expects is entirely absent. Row-level junk is logged and skipped, it
// never produces a ParseError.
type ParseError struct {
	Page   PageKey
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Page, e.Reason)
}
