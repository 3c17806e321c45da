package sis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"schoolportal-backend/lib/textutil"
	"schoolportal-backend/lib/timezone"
	"schoolportal-backend/services/sis/db"

	"go.opentelemetry.io/otel/codes"
)

// RunStatus is the terminal state of a scrape run.
type RunStatus string

const (
	RunRunning            RunStatus = "running"
	RunCompleted          RunStatus = "completed"
	RunPartiallyCompleted RunStatus = "partially_completed"
	RunFailed             RunStatus = "failed"
)

// ApplyStats counts what a batch actually did to the store.
type ApplyStats struct {
	Inserted int
	Updated  int
	Appended int
	Noops    int
}

// Store is the persistence port the pipeline writes through. Apply is
// atomic per student: either the whole batch lands or none of it does.
type Store interface {
	Snapshot(ctx context.Context, studentExternalId string) (*Snapshot, error)
	Apply(ctx context.Context, snap *Snapshot, batch *Batch) (ApplyStats, error)
	BeginRun(ctx context.Context, studentExternalId string) (int64, error)
	CompleteRun(ctx context.Context, runId int64, status RunStatus, pagesOk, pagesFailed int, errs []string) error
	Run(ctx context.Context, runId int64) (db.ScrapeRun, error)
	RecentRuns(ctx context.Context, studentExternalId string, limit int64) ([]db.ScrapeRun, error)
}

type SqliteStore struct {
	queries *db.Queries
	sql     *sql.DB
}

var _ Store = (*SqliteStore)(nil)

func NewSqliteStore(database *sql.DB) *SqliteStore {
	return &SqliteStore{
		queries: db.New(database),
		sql:     database,
	}
}

// Snapshot loads everything persisted for a student, keyed the way the
// normalizer keys fresh observations. A student never seen before gets
// an empty snapshot with StudentId 0.
func (s *SqliteStore) Snapshot(ctx context.Context, studentExternalId string) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "store.Snapshot")
	defer span.End()

	snap := NewSnapshot()

	student, err := s.queries.GetStudentByExternalId(ctx, studentExternalId)
	if err == sql.ErrNoRows {
		return snap, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load student")
		return nil, err
	}
	snap.StudentId = student.Id

	courses, err := s.queries.ListCoursesByStudent(ctx, student.Id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load courses")
		return nil, err
	}
	courseKeys := map[int64]string{}
	for _, c := range courses {
		course := Course{
			Name:         c.Name,
			Expression:   c.Expression,
			Term:         c.Term,
			Room:         c.Room,
			TeacherName:  c.TeacherName,
			TeacherEmail: c.TeacherEmail,
		}
		key := course.Key()
		snap.Courses[key] = course
		snap.CourseIds[key] = c.Id
		courseKeys[c.Id] = key
	}

	grades, err := s.queries.ListCurrentGrades(ctx, student.Id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load grades")
		return nil, err
	}
	for _, g := range grades {
		grade := Grade{
			CourseKey: courseKeys[g.CourseId],
			Term:      g.Term,
			Letter:    g.Letter,
			Percent:   nullFloat(g.Percent),
			GpaPoints: nullFloat(g.GpaPoints),
		}
		snap.Grades[grade.Key()] = grade
	}

	assignments, err := s.queries.ListAssignmentsByStudent(ctx, student.Id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load assignments")
		return nil, err
	}
	for _, a := range assignments {
		assignment := Assignment{
			CourseKey: courseKeys[a.CourseId],
			Name:      a.Name,
			DueDate:   a.DueDate,
			Category:  a.Category,
			Score:     nullFloat(a.Score),
			MaxScore:  nullFloat(a.MaxScore),
			Percent:   nullFloat(a.Percent),
			Letter:    a.Letter,
			Status:    AssignmentStatus(a.Status),
			RawStatus: a.RawStatus,
		}
		snap.Assignments[assignment.Key()] = assignment
	}

	attendance, err := s.queries.ListAttendanceRecords(ctx, student.Id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load attendance")
		return nil, err
	}
	for _, r := range attendance {
		record := AttendanceRecord{
			Date:   r.Date,
			Period: r.Period,
			Status: AttendanceStatus(r.Status),
			Code:   r.Code,
		}
		snap.Attendance[record.Key()] = struct{}{}
	}

	summaries, err := s.queries.ListAttendanceSummaries(ctx, student.Id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load attendance summaries")
		return nil, err
	}
	for _, row := range summaries {
		snap.Summaries[textutil.NormalizeName(row.Term)] = AttendanceSummary{
			Term:           row.Term,
			DaysEnrolled:   nullInt(row.DaysEnrolled),
			DaysPresent:    nullInt(row.DaysPresent),
			DaysAbsent:     nullInt(row.DaysAbsent),
			AbsentExcused:  nullInt(row.AbsentExcused),
			Tardies:        nullInt(row.Tardies),
			AttendanceRate: nullFloat(row.AttendanceRate),
		}
	}

	comments, err := s.queries.ListTeacherComments(ctx, student.Id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load comments")
		return nil, err
	}
	for _, c := range comments {
		comment := TeacherComment{
			CourseKey: courseKeys[c.CourseId],
			Term:      c.Term,
			Comment:   c.Comment,
		}
		snap.Comments[comment.Key()] = struct{}{}
	}

	categories, err := s.queries.ListCourseCategoriesByStudent(ctx, student.Id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load categories")
		return nil, err
	}
	for _, c := range categories {
		category := Category{
			CourseKey: courseKeys[c.CourseId],
			Name:      c.Name,
			Weight:    nullFloat(c.Weight),
		}
		snap.Categories[category.Key()] = category
	}

	return snap, nil
}

// Apply persists a batch inside a single transaction. Noop changes are
// skipped entirely so an idempotent re-run writes nothing. Course ids
// for untouched courses come from the snapshot the batch was built
// against.
func (s *SqliteStore) Apply(ctx context.Context, snap *Snapshot, batch *Batch) (ApplyStats, error) {
	ctx, span := tracer.Start(ctx, "store.Apply")
	defer span.End()

	stats := ApplyStats{}
	now := timezone.Now().Unix()

	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to begin transaction")
		return stats, err
	}
	defer tx.Rollback()
	qtx := s.queries.WithTx(tx)

	studentId, err := qtx.UpsertStudent(ctx, db.UpsertStudentParams{
		ExternalId: batch.Student.ExternalId,
		Name:       batch.Student.Name,
		GradeLevel: batch.Student.GradeLevel,
		School:     batch.Student.School,
		Now:        now,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert student")
		return stats, err
	}

	courseIds := map[string]int64{}
	for key, id := range snap.CourseIds {
		courseIds[key] = id
	}
	for _, change := range batch.Courses {
		if change.Op == OpNoop {
			stats.Noops++
			continue
		}
		course := change.Entity
		id, err := qtx.UpsertCourse(ctx, db.UpsertCourseParams{
			StudentId:    studentId,
			Name:         course.Name,
			Expression:   course.Expression,
			Term:         course.Term,
			Room:         course.Room,
			TeacherName:  course.TeacherName,
			TeacherEmail: course.TeacherEmail,
			Now:          now,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to upsert course")
			return stats, err
		}
		courseIds[course.Key()] = id
		stats.count(change.Op)
	}

	courseId := func(key string) (int64, error) {
		id, ok := courseIds[key]
		if !ok {
			return 0, fmt.Errorf("batch references unknown course key %q", key)
		}
		return id, nil
	}

	for _, change := range batch.Grades {
		if change.Op == OpNoop {
			stats.Noops++
			continue
		}
		grade := change.Entity
		id, err := courseId(grade.CourseKey)
		if err != nil {
			return stats, err
		}
		err = qtx.InsertGrade(ctx, db.InsertGradeParams{
			CourseId:   id,
			StudentId:  studentId,
			Term:       grade.Term,
			Letter:     grade.Letter,
			Percent:    toNullFloat(grade.Percent),
			GpaPoints:  toNullFloat(grade.GpaPoints),
			ObservedAt: now,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to insert grade")
			return stats, err
		}
		stats.count(change.Op)
	}

	for _, change := range batch.Assignments {
		if change.Op == OpNoop {
			stats.Noops++
			continue
		}
		a := change.Entity
		id, err := courseId(a.CourseKey)
		if err != nil {
			return stats, err
		}
		err = qtx.UpsertAssignment(ctx, db.UpsertAssignmentParams{
			StudentId: studentId,
			CourseId:  id,
			Name:      a.Name,
			DueDate:   a.DueDate,
			Category:  a.Category,
			Score:     toNullFloat(a.Score),
			MaxScore:  toNullFloat(a.MaxScore),
			Percent:   toNullFloat(a.Percent),
			Letter:    a.Letter,
			Status:    string(a.Status),
			RawStatus: a.RawStatus,
			Now:       now,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to upsert assignment")
			return stats, err
		}
		stats.count(change.Op)
	}

	for _, change := range batch.Attendance {
		if change.Op == OpNoop {
			stats.Noops++
			continue
		}
		r := change.Entity
		err = qtx.InsertAttendanceRecord(ctx, db.InsertAttendanceRecordParams{
			StudentId:  studentId,
			Date:       r.Date,
			Period:     r.Period,
			Status:     string(r.Status),
			Code:       r.Code,
			ObservedAt: now,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to insert attendance record")
			return stats, err
		}
		stats.count(change.Op)
	}

	for _, change := range batch.Summaries {
		if change.Op == OpNoop {
			stats.Noops++
			continue
		}
		row := change.Entity
		err = qtx.UpsertAttendanceSummary(ctx, db.UpsertAttendanceSummaryParams{
			StudentId:      studentId,
			Term:           row.Term,
			DaysEnrolled:   toNullInt(row.DaysEnrolled),
			DaysPresent:    toNullInt(row.DaysPresent),
			DaysAbsent:     toNullInt(row.DaysAbsent),
			AbsentExcused:  toNullInt(row.AbsentExcused),
			Tardies:        toNullInt(row.Tardies),
			AttendanceRate: toNullFloat(row.AttendanceRate),
			Now:            now,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to upsert attendance summary")
			return stats, err
		}
		stats.count(change.Op)
	}

	for _, change := range batch.Comments {
		if change.Op == OpNoop {
			stats.Noops++
			continue
		}
		c := change.Entity
		id, err := courseId(c.CourseKey)
		if err != nil {
			return stats, err
		}
		err = qtx.InsertTeacherComment(ctx, db.InsertTeacherCommentParams{
			StudentId:   studentId,
			CourseId:    id,
			Term:        c.Term,
			TeacherName: c.TeacherName,
			Comment:     c.Comment,
			ObservedAt:  now,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to insert comment")
			return stats, err
		}
		stats.count(change.Op)
	}

	for _, change := range batch.Categories {
		if change.Op == OpNoop {
			stats.Noops++
			continue
		}
		c := change.Entity
		id, err := courseId(c.CourseKey)
		if err != nil {
			return stats, err
		}
		err = qtx.UpsertCourseCategory(ctx, db.UpsertCourseCategoryParams{
			CourseId: id,
			Name:     c.Name,
			Weight:   toNullFloat(c.Weight),
			Now:      now,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to upsert category")
			return stats, err
		}
		stats.count(change.Op)
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to commit batch")
		return stats, err
	}
	return stats, nil
}

func (st *ApplyStats) count(op Op) {
	switch op {
	case OpInsert:
		st.Inserted++
	case OpUpdate:
		st.Updated++
	case OpAppend:
		st.Appended++
	default:
		st.Noops++
	}
}

func (s *SqliteStore) BeginRun(ctx context.Context, studentExternalId string) (int64, error) {
	return s.queries.CreateScrapeRun(ctx, studentExternalId, timezone.Now().Unix())
}

func (s *SqliteStore) CompleteRun(
	ctx context.Context, runId int64, status RunStatus,
	pagesOk, pagesFailed int, errs []string,
) error {
	if errs == nil {
		errs = []string{}
	}
	encoded, err := json.Marshal(errs)
	if err != nil {
		return err
	}
	return s.queries.CompleteScrapeRun(ctx, db.CompleteScrapeRunParams{
		Id:          runId,
		CompletedAt: timezone.Now().Unix(),
		Status:      string(status),
		PagesOk:     int64(pagesOk),
		PagesFailed: int64(pagesFailed),
		Errors:      string(encoded),
	})
}

func (s *SqliteStore) Run(ctx context.Context, runId int64) (db.ScrapeRun, error) {
	return s.queries.GetScrapeRun(ctx, runId)
}

func (s *SqliteStore) RecentRuns(ctx context.Context, studentExternalId string, limit int64) ([]db.ScrapeRun, error) {
	return s.queries.ListScrapeRuns(ctx, studentExternalId, limit)
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func toNullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func toNullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
