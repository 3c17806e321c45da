package sis

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"schoolportal-backend/lib/scrapers/powerschool"
	"schoolportal-backend/lib/textutil"

	"github.com/antzucaro/matchr"
)

// PageData bundles the parsed records of one student's portal pages. Any
// slice may be nil when the corresponding page failed to fetch or parse;
// the normalizer works with whatever survived.
type PageData struct {
	Student             powerschool.Record
	Home                []powerschool.Record
	Assignments         []powerschool.Record
	AttendanceDaily     []powerschool.Record
	AttendanceDashboard []powerschool.Record
	Comments            []powerschool.Record
	Scores              []powerschool.CourseScores
}

// courses whose normalized names are this similar but not equal get a
// near-miss warning, they are never merged automatically
const nearMissThreshold = 0.93

// Normalize coerces the raw page records into typed entities and
// reconciles them against the persisted snapshot, producing the write
// set for this student. Running it twice over the same pages yields a
// batch of pure noops.
func Normalize(ctx context.Context, data PageData, snap *Snapshot) *Batch {
	n := &normalizer{
		snap:    snap,
		batch:   &Batch{},
		courses: map[string]Course{},
	}

	n.batch.Student = studentFromRecord(data.Student)

	n.collectCourses(ctx, data)
	n.reconcileGrades(data.Home)
	n.reconcileAssignments(ctx, data.Assignments)
	n.reconcileScoreDetails(ctx, data.Scores)
	n.reconcileAttendance(ctx, data.AttendanceDaily)
	n.reconcileSummaries(data)
	n.reconcileComments(ctx, data.Comments)

	return n.batch
}

type normalizer struct {
	snap  *Snapshot
	batch *Batch
	// every course seen this run, persisted or fresh, by key
	courses map[string]Course
}

func studentFromRecord(rec powerschool.Record) Student {
	return Student{
		Name:       rec[powerschool.FieldStudentName],
		GradeLevel: rec[powerschool.FieldGradeLevel],
		School:     rec[powerschool.FieldSchool],
	}
}

// collectCourses builds the course set off the home grid and registers
// each against the snapshot. Courses referenced only by other pages are
// added lazily through resolveCourse.
func (n *normalizer) collectCourses(ctx context.Context, data PageData) {
	for _, rec := range data.Home {
		course := Course{
			Name:         rec[powerschool.FieldCourse],
			Expression:   rec[powerschool.FieldExpression],
			Room:         rec[powerschool.FieldRoom],
			TeacherName:  rec[powerschool.FieldTeacher],
			TeacherEmail: rec[powerschool.FieldTeacherEmail],
		}
		if course.Name == "" {
			continue
		}
		n.addCourse(ctx, course)
	}
}

func (n *normalizer) addCourse(ctx context.Context, course Course) string {
	key := course.Key()
	if _, seen := n.courses[key]; seen {
		return key
	}
	n.courses[key] = course

	prev, exists := n.snap.Courses[key]
	switch {
	case !exists:
		n.warnNearMiss(ctx, course)
		n.batch.Courses = append(n.batch.Courses, Change[Course]{Op: OpInsert, Entity: course})
	case prev != course:
		n.batch.Courses = append(n.batch.Courses, Change[Course]{Op: OpUpdate, Entity: course})
	default:
		n.batch.Courses = append(n.batch.Courses, Change[Course]{Op: OpNoop, Entity: course})
	}
	return key
}

// warnNearMiss flags a fresh course whose name is suspiciously close to
// an already persisted one. Likely a renamed course or a typo upstream;
// an operator decides, the pipeline keeps both.
func (n *normalizer) warnNearMiss(ctx context.Context, course Course) {
	name := textutil.NormalizeName(course.Name)
	for _, prev := range n.snap.Courses {
		prevName := textutil.NormalizeName(prev.Name)
		if prevName == name {
			continue
		}
		if matchr.JaroWinkler(name, prevName, true) >= nearMissThreshold {
			slog.WarnContext(ctx, "course name near miss, keeping both",
				"course", course.Name, "existing", prev.Name)
		}
	}
}

// resolveCourse maps a page row back to a course key. Exact composite
// identity first, then the same course without a term, then a unique
// name-only match. Rows for a never-seen course create it on the spot.
func (n *normalizer) resolveCourse(ctx context.Context, name, expression, term string) string {
	if name == "" {
		return ""
	}

	key := textutil.CourseKey(name, expression, term)
	if _, ok := n.courses[key]; ok {
		return key
	}
	if _, ok := n.snap.Courses[key]; ok {
		n.courses[key] = n.snap.Courses[key]
		return key
	}

	if term != "" {
		termless := textutil.CourseKey(name, expression, "")
		if _, ok := n.courses[termless]; ok {
			return termless
		}
		if _, ok := n.snap.Courses[termless]; ok {
			n.courses[termless] = n.snap.Courses[termless]
			return termless
		}
	}

	if match, ok := n.uniqueNameMatch(name); ok {
		return match
	}

	return n.addCourse(ctx, Course{Name: name, Expression: expression, Term: term})
}

func (n *normalizer) uniqueNameMatch(name string) (string, bool) {
	want := textutil.NormalizeName(name)
	match := ""
	for key, course := range n.courses {
		if textutil.NormalizeName(course.Name) == want {
			if match != "" {
				return "", false
			}
			match = key
		}
	}
	for key, course := range n.snap.Courses {
		if _, seen := n.courses[key]; seen {
			continue
		}
		if textutil.NormalizeName(course.Name) == want {
			if match != "" {
				return "", false
			}
			match = key
		}
	}
	return match, match != ""
}

// reconcileGrades turns the term columns of the home grid into grade
// observations. Grades are append-only: a changed value appends a new
// observation, an identical one is a noop.
func (n *normalizer) reconcileGrades(home []powerschool.Record) {
	for _, rec := range home {
		courseKey := textutil.CourseKey(
			rec[powerschool.FieldCourse], rec[powerschool.FieldExpression], "")
		if rec[powerschool.FieldCourse] == "" {
			continue
		}

		for _, term := range powerschool.TermColumns {
			cell, ok := rec[powerschool.GradeField(term)]
			if !ok {
				continue
			}
			letter, percent, ok := parseGradeCell(cell)
			if !ok {
				continue
			}

			grade := Grade{
				CourseKey: courseKey,
				Term:      term,
				Letter:    letter,
				Percent:   percent,
			}
			if points, ok := GpaPoints(letter); ok {
				grade.GpaPoints = &points
			}

			prev, exists := n.snap.Grades[grade.Key()]
			if exists && prev.Letter == grade.Letter && eqFloat(prev.Percent, grade.Percent) {
				n.batch.Grades = append(n.batch.Grades, Change[Grade]{Op: OpNoop, Entity: grade})
				continue
			}
			n.batch.Grades = append(n.batch.Grades, Change[Grade]{Op: OpAppend, Entity: grade})
		}
	}
}

// parseGradeCell splits a grade cell into letter and percent. Cells
// render as "A+ 98", "98", "A" or a placeholder like "--" or "[ i ]";
// placeholders report ok=false.
func parseGradeCell(cell string) (letter string, percent *float64, ok bool) {
	cell = textutil.CollapseSpace(cell)
	if cell == "" || cell == "--" || cell == "-" || strings.HasPrefix(cell, "[") {
		return "", nil, false
	}

	for _, token := range strings.Fields(cell) {
		if value, err := strconv.ParseFloat(strings.TrimSuffix(token, "%"), 64); err == nil {
			percent = &value
			continue
		}
		if letter == "" {
			letter = token
		}
	}

	if letter == "" && percent == nil {
		return "", nil, false
	}
	return letter, percent, true
}

func (n *normalizer) reconcileAssignments(ctx context.Context, recs []powerschool.Record) {
	for _, rec := range recs {
		courseKey := n.resolveCourse(ctx,
			rec[powerschool.FieldCourse],
			rec[powerschool.FieldExpression],
			rec[powerschool.FieldTerm])
		n.reconcileAssignment(ctx, rec, courseKey)
	}
}

// reconcileScoreDetails folds the per-course score pages in: category
// weights plus any assignments the summary page did not list.
func (n *normalizer) reconcileScoreDetails(ctx context.Context, pages []powerschool.CourseScores) {
	for _, page := range pages {
		courseKey := n.resolveCourse(ctx, page.Course, "", "")
		if courseKey == "" {
			continue
		}

		for _, rec := range page.Categories {
			category := Category{
				CourseKey: courseKey,
				Name:      rec[powerschool.FieldCategory],
				Weight:    parseFloat(rec[powerschool.FieldWeight]),
			}
			if category.Name == "" {
				continue
			}
			prev, exists := n.snap.Categories[category.Key()]
			switch {
			case !exists:
				n.batch.Categories = append(n.batch.Categories, Change[Category]{Op: OpInsert, Entity: category})
			case !eqFloat(prev.Weight, category.Weight):
				n.batch.Categories = append(n.batch.Categories, Change[Category]{Op: OpUpdate, Entity: category})
			default:
				n.batch.Categories = append(n.batch.Categories, Change[Category]{Op: OpNoop, Entity: category})
			}
		}

		for _, rec := range page.Assignments {
			n.reconcileAssignment(ctx, rec, courseKey)
		}
	}
}

func (n *normalizer) reconcileAssignment(ctx context.Context, rec powerschool.Record, courseKey string) {
	name := rec[powerschool.FieldAssignment]
	if name == "" {
		return
	}
	if courseKey == "" {
		// cannot attach the row to any course identity, skipping beats guessing
		slog.WarnContext(ctx, "skipping assignment without a resolvable course", "assignment", name)
		return
	}

	score, maxScore, missingScore := parseScoreCell(rec[powerschool.FieldScore])
	raw := rec[powerschool.FieldCodes]
	status := NormalizeAssignmentStatus(raw)
	if status == StatusUnknown && missingScore {
		// a "Missing" marker in the score column with no codes cell
		status = StatusMissing
		raw = rec[powerschool.FieldScore]
	}
	if status == StatusUnknown && raw != "" {
		slog.WarnContext(ctx, "unrecognized assignment status token", "assignment", name, "raw", raw)
	}

	assignment := Assignment{
		CourseKey: courseKey,
		Name:      name,
		DueDate:   rec[powerschool.FieldDueDate],
		Category:  rec[powerschool.FieldCategory],
		Score:     score,
		MaxScore:  maxScore,
		Percent:   parseFloat(rec[powerschool.FieldPercent]),
		Letter:    rec[powerschool.FieldLetter],
		Status:    status,
		RawStatus: raw,
	}

	key := assignment.Key()
	for _, prior := range n.batch.Assignments {
		if prior.Entity.Key() == key {
			// summary page already produced this assignment
			return
		}
	}

	prev, exists := n.snap.Assignments[key]
	switch {
	case !exists:
		n.batch.Assignments = append(n.batch.Assignments, Change[Assignment]{Op: OpInsert, Entity: assignment})
	case !assignmentEqual(prev, assignment):
		n.batch.Assignments = append(n.batch.Assignments, Change[Assignment]{Op: OpUpdate, Entity: assignment})
	default:
		n.batch.Assignments = append(n.batch.Assignments, Change[Assignment]{Op: OpNoop, Entity: assignment})
	}
}

func assignmentEqual(a, b Assignment) bool {
	return a.Category == b.Category &&
		eqFloat(a.Score, b.Score) &&
		eqFloat(a.MaxScore, b.MaxScore) &&
		eqFloat(a.Percent, b.Percent) &&
		a.Letter == b.Letter &&
		a.Status == b.Status &&
		a.RawStatus == b.RawStatus
}

func (n *normalizer) reconcileAttendance(ctx context.Context, recs []powerschool.Record) {
	seen := map[string]struct{}{}
	for _, rec := range recs {
		record := AttendanceRecord{
			Date:   rec[powerschool.FieldDate],
			Period: rec[powerschool.FieldPeriod],
			Status: attendanceStatus(rec),
			Code:   textutil.CollapseSpace(rec[powerschool.FieldCode]),
		}
		if record.Date == "" || record.Code == "" {
			continue
		}
		if record.Status == AttendanceUnknown {
			slog.WarnContext(ctx, "unrecognized attendance code",
				"date", record.Date, "code", record.Code)
		}

		key := record.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if _, exists := n.snap.Attendance[key]; exists {
			n.batch.Attendance = append(n.batch.Attendance, Change[AttendanceRecord]{Op: OpNoop, Entity: record})
			continue
		}
		n.batch.Attendance = append(n.batch.Attendance, Change[AttendanceRecord]{Op: OpAppend, Entity: record})
	}
}

// attendanceStatus classifies a daily cell: the code token first, then
// css class hints for layouts that encode meaning in styling only.
func attendanceStatus(rec powerschool.Record) AttendanceStatus {
	status := NormalizeAttendanceStatus(rec[powerschool.FieldCode])
	if status != AttendanceUnknown {
		return status
	}
	return NormalizeAttendanceStatus(rec[powerschool.FieldCSSClass])
}

func (n *normalizer) reconcileSummaries(data PageData) {
	if len(data.AttendanceDashboard) == 0 {
		if summary, ok := homeSummaryFallback(data.Home); ok {
			n.addSummary(summary)
		}
		return
	}

	for _, rec := range data.AttendanceDashboard {
		summary := AttendanceSummary{
			Term:           rec[powerschool.FieldTerm],
			DaysEnrolled:   parseInt(rec[powerschool.FieldDaysEnrolled]),
			DaysPresent:    parseInt(rec[powerschool.FieldDaysPresent]),
			DaysAbsent:     parseInt(rec[powerschool.FieldDaysAbsent]),
			AbsentExcused:  parseInt(rec[powerschool.FieldAbsentExcused]),
			Tardies:        parseInt(rec[powerschool.FieldTardies]),
			AttendanceRate: parseFloat(rec[powerschool.FieldAttendanceRate]),
		}
		if summary.Term == "" {
			continue
		}
		n.addSummary(summary)
	}
}

func (n *normalizer) addSummary(summary AttendanceSummary) {
	prev, exists := n.snap.Summaries[textutil.NormalizeName(summary.Term)]
	switch {
	case !exists:
		n.batch.Summaries = append(n.batch.Summaries, Change[AttendanceSummary]{Op: OpInsert, Entity: summary})
	case !summaryEqual(prev, summary):
		n.batch.Summaries = append(n.batch.Summaries, Change[AttendanceSummary]{Op: OpUpdate, Entity: summary})
	default:
		n.batch.Summaries = append(n.batch.Summaries, Change[AttendanceSummary]{Op: OpNoop, Entity: summary})
	}
}

// homeSummaryFallback aggregates the per-course absence and tardy counts
// on the home grid into a year-to-date summary when the dashboard page
// did not survive. The counts are period level, not day level.
func homeSummaryFallback(home []powerschool.Record) (AttendanceSummary, bool) {
	var absences, tardies int64
	found := false
	for _, rec := range home {
		if v := parseInt(rec[powerschool.FieldAbsences]); v != nil {
			absences += *v
			found = true
		}
		if v := parseInt(rec[powerschool.FieldTardies]); v != nil {
			tardies += *v
			found = true
		}
	}
	if !found {
		return AttendanceSummary{}, false
	}
	return AttendanceSummary{
		Term:       "YTD",
		DaysAbsent: &absences,
		Tardies:    &tardies,
	}, true
}

func summaryEqual(a, b AttendanceSummary) bool {
	return eqInt(a.DaysEnrolled, b.DaysEnrolled) &&
		eqInt(a.DaysPresent, b.DaysPresent) &&
		eqInt(a.DaysAbsent, b.DaysAbsent) &&
		eqInt(a.AbsentExcused, b.AbsentExcused) &&
		eqInt(a.Tardies, b.Tardies) &&
		eqFloat(a.AttendanceRate, b.AttendanceRate)
}

func (n *normalizer) reconcileComments(ctx context.Context, recs []powerschool.Record) {
	for _, rec := range recs {
		comment := TeacherComment{
			CourseKey: n.resolveCourse(ctx,
				rec[powerschool.FieldCourse],
				rec[powerschool.FieldExpression],
				rec[powerschool.FieldTerm]),
			Term:        rec[powerschool.FieldTerm],
			TeacherName: rec[powerschool.FieldTeacher],
			Comment:     rec[powerschool.FieldComment],
		}
		if comment.Comment == "" || comment.CourseKey == "" {
			continue
		}

		if _, exists := n.snap.Comments[comment.Key()]; exists {
			n.batch.Comments = append(n.batch.Comments, Change[TeacherComment]{Op: OpNoop, Entity: comment})
			continue
		}
		n.batch.Comments = append(n.batch.Comments, Change[TeacherComment]{Op: OpAppend, Entity: comment})
	}
}

// parseScoreCell splits a raw score cell. "45/50" yields both values,
// "45" just the score. "Missing", dashes and blanks yield no score at
// all; missing reports whether the cell carried an explicit missing
// marker rather than being merely empty.
func parseScoreCell(cell string) (score, maxScore *float64, missing bool) {
	cell = textutil.CollapseSpace(cell)
	if strings.EqualFold(cell, "missing") {
		return nil, nil, true
	}
	if cell == "" || cell == "--" || cell == "-" {
		return nil, nil, false
	}

	parts := strings.SplitN(cell, "/", 2)
	score = parseFloat(parts[0])
	if len(parts) == 2 {
		maxScore = parseFloat(parts[1])
	}
	return score, maxScore, false
}

func parseFloat(s string) *float64 {
	s = strings.TrimSuffix(textutil.CollapseSpace(s), "%")
	if s == "" || s == "--" || s == "-" {
		return nil
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &value
}

func parseInt(s string) *int64 {
	s = textutil.CollapseSpace(s)
	if s == "" || s == "--" || s == "-" {
		return nil
	}
	value, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// dashboards sometimes render counts as "3.0"
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			v := int64(f)
			return &v
		}
		return nil
	}
	return &value
}

func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqInt(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
