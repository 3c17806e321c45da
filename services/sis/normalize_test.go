package sis

import (
	"context"
	"testing"

	"schoolportal-backend/lib/scrapers/powerschool"
	"schoolportal-backend/lib/textutil"

	"github.com/stretchr/testify/require"
)

func testPageData() PageData {
	return PageData{
		Student: powerschool.Record{
			powerschool.FieldStudentName: "Rivera, Sofia",
		},
		Home: []powerschool.Record{
			{
				powerschool.FieldCourse:       "Algebra I",
				powerschool.FieldExpression:   "1/6(A-B)",
				powerschool.FieldTeacher:      "Lopez, Rachel",
				powerschool.FieldTeacherEmail: "rlopez@district.org",
				powerschool.FieldRoom:         "214",
				powerschool.GradeField("Q1"):  "A- 91.5",
				powerschool.GradeField("Q2"):  "--",
			},
			{
				powerschool.FieldCourse:      "Algebra I",
				powerschool.FieldExpression:  "7/6(A-B)",
				powerschool.FieldTeacher:     "Chen, Thomas",
				powerschool.GradeField("Q1"): "B 86",
			},
		},
		Assignments: []powerschool.Record{
			{
				powerschool.FieldCourse:     "Algebra I",
				powerschool.FieldExpression: "1/6(A-B)",
				powerschool.FieldAssignment: "Worksheet 4.2",
				powerschool.FieldDueDate:    "03/02/2026",
				powerschool.FieldCategory:   "Homework",
				powerschool.FieldScore:      "45/50",
				powerschool.FieldPercent:    "90%",
				powerschool.FieldLetter:     "A-",
				powerschool.FieldCodes:      "Collected",
			},
			{
				powerschool.FieldCourse:     "Algebra I",
				powerschool.FieldExpression: "1/6(A-B)",
				powerschool.FieldAssignment: "Chapter 4 Test",
				powerschool.FieldDueDate:    "03/05/2026",
				powerschool.FieldCategory:   "Tests",
				powerschool.FieldScore:      "Missing",
			},
		},
		AttendanceDaily: []powerschool.Record{
			{
				powerschool.FieldDate:   "2026-03-02",
				powerschool.FieldPeriod: "1",
				powerschool.FieldCode:   "A",
			},
			{
				powerschool.FieldDate:     "2026-03-03",
				powerschool.FieldCode:     "zz",
				powerschool.FieldCSSClass: "att tardy",
			},
		},
		AttendanceDashboard: []powerschool.Record{
			{
				powerschool.FieldTerm:           "Q1",
				powerschool.FieldDaysEnrolled:   "45",
				powerschool.FieldDaysPresent:    "42",
				powerschool.FieldDaysAbsent:     "3",
				powerschool.FieldTardies:        "2",
				powerschool.FieldAttendanceRate: "93.3%",
			},
		},
		Comments: []powerschool.Record{
			{
				powerschool.FieldCourse:     "Algebra I",
				powerschool.FieldExpression: "1/6(A-B)",
				powerschool.FieldTeacher:    "Lopez, Rachel",
				powerschool.FieldComment:    "Great progress this quarter.",
			},
		},
	}
}

// snapshotFromBatch simulates a persisted state equal to what applying
// the batch would produce.
func snapshotFromBatch(batch *Batch) *Snapshot {
	snap := NewSnapshot()
	snap.StudentId = 1
	for i, c := range batch.Courses {
		snap.Courses[c.Entity.Key()] = c.Entity
		snap.CourseIds[c.Entity.Key()] = int64(i + 1)
	}
	for _, g := range batch.Grades {
		snap.Grades[g.Entity.Key()] = g.Entity
	}
	for _, a := range batch.Assignments {
		snap.Assignments[a.Entity.Key()] = a.Entity
	}
	for _, r := range batch.Attendance {
		snap.Attendance[r.Entity.Key()] = struct{}{}
	}
	for _, s := range batch.Summaries {
		snap.Summaries[textutil.NormalizeName(s.Entity.Term)] = s.Entity
	}
	for _, c := range batch.Comments {
		snap.Comments[c.Entity.Key()] = struct{}{}
	}
	for _, c := range batch.Categories {
		snap.Categories[c.Entity.Key()] = c.Entity
	}
	return snap
}

func TestNormalizeFirstRun(t *testing.T) {
	ctx := context.Background()
	batch := Normalize(ctx, testPageData(), NewSnapshot())

	require.Equal(t, "Rivera, Sofia", batch.Student.Name)

	// duplicate course names stay distinct through the expression
	require.Len(t, batch.Courses, 2)
	for _, c := range batch.Courses {
		require.Equal(t, OpInsert, c.Op)
	}
	require.NotEqual(t, batch.Courses[0].Entity.Key(), batch.Courses[1].Entity.Key())

	// one grade per populated term cell, placeholder cells dropped
	require.Len(t, batch.Grades, 2)
	first := batch.Grades[0]
	require.Equal(t, OpAppend, first.Op)
	require.Equal(t, "Q1", first.Entity.Term)
	require.Equal(t, "A-", first.Entity.Letter)
	require.NotNil(t, first.Entity.Percent)
	require.Equal(t, 91.5, *first.Entity.Percent)
	require.NotNil(t, first.Entity.GpaPoints)
	require.Equal(t, 3.7, *first.Entity.GpaPoints)

	require.Len(t, batch.Assignments, 2)
	collected := batch.Assignments[0].Entity
	require.Equal(t, StatusCollected, collected.Status)
	require.NotNil(t, collected.Score)
	require.Equal(t, 45.0, *collected.Score)
	require.NotNil(t, collected.MaxScore)
	require.Equal(t, 50.0, *collected.MaxScore)

	// a missing marker is an absent score, never a zero
	missing := batch.Assignments[1].Entity
	require.Equal(t, StatusMissing, missing.Status)
	require.Nil(t, missing.Score)
	require.Nil(t, missing.MaxScore)

	require.Len(t, batch.Attendance, 2)
	require.Equal(t, AttendanceAbsent, batch.Attendance[0].Entity.Status)
	// unknown code classified off the css class hint
	require.Equal(t, AttendanceTardy, batch.Attendance[1].Entity.Status)

	require.Len(t, batch.Summaries, 1)
	summary := batch.Summaries[0].Entity
	require.Equal(t, OpInsert, batch.Summaries[0].Op)
	require.NotNil(t, summary.DaysEnrolled)
	require.Equal(t, int64(45), *summary.DaysEnrolled)
	require.NotNil(t, summary.AttendanceRate)
	require.Equal(t, 93.3, *summary.AttendanceRate)

	require.Len(t, batch.Comments, 1)
	require.Equal(t, OpAppend, batch.Comments[0].Op)

	require.True(t, batch.Dirty())
}

func TestNormalizeIdempotent(t *testing.T) {
	ctx := context.Background()
	data := testPageData()

	first := Normalize(ctx, data, NewSnapshot())
	snap := snapshotFromBatch(first)

	second := Normalize(ctx, data, snap)
	require.False(t, second.Dirty(), "re-normalizing identical pages must be all noops")
	for _, g := range second.Grades {
		require.Equal(t, OpNoop, g.Op)
	}
	for _, a := range second.Assignments {
		require.Equal(t, OpNoop, a.Op)
	}
}

func TestNormalizeGradeChangeAppends(t *testing.T) {
	ctx := context.Background()
	data := testPageData()

	snap := snapshotFromBatch(Normalize(ctx, data, NewSnapshot()))

	data.Home[0][powerschool.GradeField("Q1")] = "A 94"
	batch := Normalize(ctx, data, snap)

	var appended []Grade
	for _, g := range batch.Grades {
		if g.Op == OpAppend {
			appended = append(appended, g.Entity)
		}
	}
	require.Len(t, appended, 1)
	require.Equal(t, "A", appended[0].Letter)
	require.Equal(t, 94.0, *appended[0].Percent)
}

func TestNormalizeAssignmentUpdateInPlace(t *testing.T) {
	ctx := context.Background()
	data := testPageData()

	snap := snapshotFromBatch(Normalize(ctx, data, NewSnapshot()))

	// the missing test got graded
	data.Assignments[1][powerschool.FieldScore] = "38/50"
	data.Assignments[1][powerschool.FieldCodes] = "Collected"
	batch := Normalize(ctx, data, snap)

	var updated []Assignment
	for _, a := range batch.Assignments {
		if a.Op == OpUpdate {
			updated = append(updated, a.Entity)
		}
	}
	require.Len(t, updated, 1)
	require.Equal(t, "Chapter 4 Test", updated[0].Name)
	require.Equal(t, StatusCollected, updated[0].Status)
	require.Equal(t, 38.0, *updated[0].Score)
}

func TestNormalizeCommentDuplicateIsNoop(t *testing.T) {
	ctx := context.Background()
	data := testPageData()

	snap := snapshotFromBatch(Normalize(ctx, data, NewSnapshot()))

	batch := Normalize(ctx, data, snap)
	require.Len(t, batch.Comments, 1)
	require.Equal(t, OpNoop, batch.Comments[0].Op)

	// a genuinely new comment appends
	data.Comments = append(data.Comments, powerschool.Record{
		powerschool.FieldCourse:     "Algebra I",
		powerschool.FieldExpression: "1/6(A-B)",
		powerschool.FieldComment:    "Needs to turn in late work.",
	})
	batch = Normalize(ctx, data, snap)
	require.Len(t, batch.Comments, 2)
	require.Equal(t, OpAppend, batch.Comments[1].Op)
}

func TestNormalizeHomeCountsBackfillSummary(t *testing.T) {
	ctx := context.Background()
	data := testPageData()
	data.AttendanceDashboard = nil
	data.Home[0][powerschool.FieldAbsences] = "3"
	data.Home[0][powerschool.FieldTardies] = "1"
	data.Home[1][powerschool.FieldAbsences] = "2"

	batch := Normalize(ctx, data, NewSnapshot())
	require.Len(t, batch.Summaries, 1)
	summary := batch.Summaries[0].Entity
	require.Equal(t, "YTD", summary.Term)
	require.Equal(t, int64(5), *summary.DaysAbsent)
	require.Equal(t, int64(1), *summary.Tardies)
	require.Nil(t, summary.DaysEnrolled)

	// the dashboard page, when it survived, wins outright
	batch = Normalize(ctx, testPageData(), NewSnapshot())
	require.Len(t, batch.Summaries, 1)
	require.Equal(t, "Q1", batch.Summaries[0].Entity.Term)
}

func TestNormalizeAssignmentResolvesCourseWithoutTerm(t *testing.T) {
	ctx := context.Background()
	data := testPageData()
	// the assignments page carries a term column the home grid does not
	data.Assignments[0][powerschool.FieldTerm] = "Q1"

	batch := Normalize(ctx, data, NewSnapshot())
	require.Len(t, batch.Courses, 2, "term-qualified row must not mint a new course")

	homeKey := textutil.CourseKey("Algebra I", "1/6(A-B)", "")
	require.Equal(t, homeKey, batch.Assignments[0].Entity.CourseKey)
}

func TestParseGradeCell(t *testing.T) {
	letter, percent, ok := parseGradeCell("A+ 98")
	require.True(t, ok)
	require.Equal(t, "A+", letter)
	require.Equal(t, 98.0, *percent)

	letter, percent, ok = parseGradeCell("87")
	require.True(t, ok)
	require.Equal(t, "", letter)
	require.Equal(t, 87.0, *percent)

	letter, percent, ok = parseGradeCell("P")
	require.True(t, ok)
	require.Equal(t, "P", letter)
	require.Nil(t, percent)

	for _, cell := range []string{"", "--", "-", "[ i ]"} {
		_, _, ok := parseGradeCell(cell)
		require.False(t, ok, "cell=%q", cell)
	}
}
