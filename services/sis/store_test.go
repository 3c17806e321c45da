package sis

import (
	"context"
	"testing"

	"schoolportal-backend/lib/scrapers/powerschool"
	"schoolportal-backend/lib/testutil"
	"schoolportal-backend/lib/textutil"
	"schoolportal-backend/services/sis/db"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *SqliteStore {
	result, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "sis",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)
	return NewSqliteStore(result.DB)
}

func TestStoreApplyAndSnapshot(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	empty, err := store.Snapshot(ctx, "12345")
	require.NoError(t, err)
	require.Zero(t, empty.StudentId)

	batch := Normalize(ctx, testPageData(), empty)
	batch.Student.ExternalId = "12345"

	stats, err := store.Apply(ctx, empty, batch)
	require.NoError(t, err)
	require.Equal(t, 5, stats.Inserted) // 2 courses + 2 assignments + 1 summary
	require.Equal(t, 5, stats.Appended) // 2 grades + 2 attendance + 1 comment
	require.Equal(t, 0, stats.Noops)

	snap, err := store.Snapshot(ctx, "12345")
	require.NoError(t, err)
	require.NotZero(t, snap.StudentId)
	require.Len(t, snap.Courses, 2)
	require.Len(t, snap.Grades, 2)
	require.Len(t, snap.Assignments, 2)
	require.Len(t, snap.Attendance, 2)
	require.Len(t, snap.Summaries, 1)
	require.Len(t, snap.Comments, 1)

	// the course round-trips without loss
	key := textutil.CourseKey("Algebra I", "1/6(A-B)", "")
	want := Course{
		Name:         "Algebra I",
		Expression:   "1/6(A-B)",
		Room:         "214",
		TeacherName:  "Lopez, Rachel",
		TeacherEmail: "rlopez@district.org",
	}
	require.Empty(t, cmp.Diff(want, snap.Courses[key]))
}

func TestStoreApplyIdempotent(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	data := testPageData()
	first := Normalize(ctx, data, NewSnapshot())
	first.Student.ExternalId = "12345"
	_, err := store.Apply(ctx, NewSnapshot(), first)
	require.NoError(t, err)

	snap, err := store.Snapshot(ctx, "12345")
	require.NoError(t, err)

	second := Normalize(ctx, data, snap)
	second.Student.ExternalId = "12345"
	require.False(t, second.Dirty())

	stats, err := store.Apply(ctx, snap, second)
	require.NoError(t, err)
	require.Zero(t, stats.Inserted)
	require.Zero(t, stats.Updated)
	require.Zero(t, stats.Appended)
}

func TestStoreGradeHistoryGrows(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	data := testPageData()
	first := Normalize(ctx, data, NewSnapshot())
	first.Student.ExternalId = "12345"
	_, err := store.Apply(ctx, NewSnapshot(), first)
	require.NoError(t, err)

	snap, err := store.Snapshot(ctx, "12345")
	require.NoError(t, err)

	data.Home[0][powerschool.GradeField("Q1")] = "A 94"
	second := Normalize(ctx, data, snap)
	second.Student.ExternalId = "12345"
	stats, err := store.Apply(ctx, snap, second)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Appended)

	// the old observation stays on the stream
	grades, err := store.queries.ListGradesByStudent(ctx, snap.StudentId)
	require.NoError(t, err)
	require.Len(t, grades, 3)

	// but the snapshot reflects only the latest
	after, err := store.Snapshot(ctx, "12345")
	require.NoError(t, err)
	updated := Normalize(ctx, data, after)
	require.False(t, updated.Dirty())
}

func TestStoreAttendanceStatusChangeAppends(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	data := testPageData()
	first := Normalize(ctx, data, NewSnapshot())
	first.Student.ExternalId = "12345"
	_, err := store.Apply(ctx, NewSnapshot(), first)
	require.NoError(t, err)

	snap, err := store.Snapshot(ctx, "12345")
	require.NoError(t, err)

	// the absence got reclassified as a tardy after review
	data.AttendanceDaily[0][powerschool.FieldCode] = "T"
	second := Normalize(ctx, data, snap)
	second.Student.ExternalId = "12345"
	stats, err := store.Apply(ctx, snap, second)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Appended)

	// both observations stay on the stream
	records, err := store.queries.ListAttendanceRecords(ctx, snap.StudentId)
	require.NoError(t, err)
	var day []string
	for _, r := range records {
		if r.Date == "2026-03-02" && r.Period == "1" {
			day = append(day, r.Status)
		}
	}
	require.ElementsMatch(t, []string{"absent", "tardy"}, day)
}

func TestStoreGradePercentOnlyChangeAppends(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	data := testPageData()
	first := Normalize(ctx, data, NewSnapshot())
	first.Student.ExternalId = "12345"
	_, err := store.Apply(ctx, NewSnapshot(), first)
	require.NoError(t, err)

	snap, err := store.Snapshot(ctx, "12345")
	require.NoError(t, err)

	// same letter, the percent moved within the same scrape window
	data.Home[0][powerschool.GradeField("Q1")] = "A- 92"
	second := Normalize(ctx, data, snap)
	second.Student.ExternalId = "12345"
	stats, err := store.Apply(ctx, snap, second)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Appended)

	grades, err := store.queries.ListGradesByStudent(ctx, snap.StudentId)
	require.NoError(t, err)
	require.Len(t, grades, 3)
}

func TestStoreRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	studentId := testutil.RandomString(t, 8)
	runId, err := store.BeginRun(ctx, studentId)
	require.NoError(t, err)

	run, err := store.Run(ctx, runId)
	require.NoError(t, err)
	require.Equal(t, string(RunRunning), run.Status)
	require.False(t, run.CompletedAt.Valid)

	err = store.CompleteRun(ctx, runId, RunPartiallyCompleted, 4, 1,
		[]string{"fetch teacher_comments: timeout"})
	require.NoError(t, err)

	run, err = store.Run(ctx, runId)
	require.NoError(t, err)
	require.Equal(t, string(RunPartiallyCompleted), run.Status)
	require.Equal(t, int64(4), run.PagesOk)
	require.Equal(t, int64(1), run.PagesFailed)
	require.Contains(t, run.Errors, "timeout")
	require.True(t, run.CompletedAt.Valid)

	runs, err := store.RecentRuns(ctx, studentId, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}
