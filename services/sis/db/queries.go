package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type UpsertStudentParams struct {
	ExternalId string
	Name       string
	GradeLevel string
	School     string
	Now        int64
}

func (q *Queries) UpsertStudent(ctx context.Context, arg UpsertStudentParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO students (external_id, name, grade_level, school, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET
			name = excluded.name,
			grade_level = excluded.grade_level,
			school = excluded.school,
			updated_at = excluded.updated_at
		RETURNING id`,
		arg.ExternalId, arg.Name, arg.GradeLevel, arg.School, arg.Now, arg.Now,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

type Student struct {
	Id         int64
	ExternalId string
	Name       string
	GradeLevel string
	School     string
}

func (q *Queries) GetStudentByExternalId(ctx context.Context, externalId string) (Student, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, external_id, name, grade_level, school
		FROM students WHERE external_id = ?`,
		externalId,
	)
	var s Student
	err := row.Scan(&s.Id, &s.ExternalId, &s.Name, &s.GradeLevel, &s.School)
	return s, err
}

type UpsertCourseParams struct {
	StudentId    int64
	Name         string
	Expression   string
	Term         string
	Room         string
	TeacherName  string
	TeacherEmail string
	Now          int64
}

func (q *Queries) UpsertCourse(ctx context.Context, arg UpsertCourseParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO courses (student_id, name, expression, term, room, teacher_name, teacher_email, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, name, expression, term) DO UPDATE SET
			room = excluded.room,
			teacher_name = excluded.teacher_name,
			teacher_email = excluded.teacher_email,
			updated_at = excluded.updated_at
		RETURNING id`,
		arg.StudentId, arg.Name, arg.Expression, arg.Term, arg.Room,
		arg.TeacherName, arg.TeacherEmail, arg.Now,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

type Course struct {
	Id           int64
	StudentId    int64
	Name         string
	Expression   string
	Term         string
	Room         string
	TeacherName  string
	TeacherEmail string
}

func (q *Queries) ListCoursesByStudent(ctx context.Context, studentId int64) ([]Course, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, student_id, name, expression, term, room, teacher_name, teacher_email
		FROM courses WHERE student_id = ? ORDER BY name, expression, term`,
		studentId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Course
	for rows.Next() {
		var c Course
		err := rows.Scan(&c.Id, &c.StudentId, &c.Name, &c.Expression, &c.Term,
			&c.Room, &c.TeacherName, &c.TeacherEmail)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type InsertGradeParams struct {
	CourseId   int64
	StudentId  int64
	Term       string
	Letter     string
	Percent    sql.NullFloat64
	GpaPoints  sql.NullFloat64
	ObservedAt int64
}

func (q *Queries) InsertGrade(ctx context.Context, arg InsertGradeParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO grades (course_id, student_id, term, letter, percent, gpa_points, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		arg.CourseId, arg.StudentId, arg.Term, arg.Letter, arg.Percent, arg.GpaPoints, arg.ObservedAt,
	)
	return err
}

type Grade struct {
	Id         int64
	CourseId   int64
	StudentId  int64
	Term       string
	Letter     string
	Percent    sql.NullFloat64
	GpaPoints  sql.NullFloat64
	ObservedAt int64
}

// latest observation per (course, term), for snapshot reads; ties on
// observed_at resolve to the row inserted last
func (q *Queries) ListCurrentGrades(ctx context.Context, studentId int64) ([]Grade, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT g.id, g.course_id, g.student_id, g.term, g.letter, g.percent, g.gpa_points, g.observed_at
		FROM grades g
		WHERE g.student_id = ?
			AND g.id = (
				SELECT g2.id FROM grades g2
				WHERE g2.course_id = g.course_id AND g2.term = g.term
				ORDER BY g2.observed_at DESC, g2.id DESC
				LIMIT 1
			)`,
		studentId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGrades(rows)
}

// every observation ever recorded, oldest first
func (q *Queries) ListGradesByStudent(ctx context.Context, studentId int64) ([]Grade, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, course_id, student_id, term, letter, percent, gpa_points, observed_at
		FROM grades WHERE student_id = ?
		ORDER BY course_id, term, observed_at`,
		studentId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGrades(rows)
}

func (q *Queries) ListGradeHistory(ctx context.Context, courseId int64, term string) ([]Grade, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, course_id, student_id, term, letter, percent, gpa_points, observed_at
		FROM grades WHERE course_id = ? AND term = ?
		ORDER BY observed_at`,
		courseId, term,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGrades(rows)
}

func scanGrades(rows *sql.Rows) ([]Grade, error) {
	var out []Grade
	for rows.Next() {
		var g Grade
		err := rows.Scan(&g.Id, &g.CourseId, &g.StudentId, &g.Term, &g.Letter,
			&g.Percent, &g.GpaPoints, &g.ObservedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

type UpsertAssignmentParams struct {
	StudentId int64
	CourseId  int64
	Name      string
	DueDate   string
	Category  string
	Score     sql.NullFloat64
	MaxScore  sql.NullFloat64
	Percent   sql.NullFloat64
	Letter    string
	Status    string
	RawStatus string
	Now       int64
}

func (q *Queries) UpsertAssignment(ctx context.Context, arg UpsertAssignmentParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO assignments (student_id, course_id, name, due_date, category,
			score, max_score, percent, letter, status, raw_status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, course_id, name, due_date) DO UPDATE SET
			category = excluded.category,
			score = excluded.score,
			max_score = excluded.max_score,
			percent = excluded.percent,
			letter = excluded.letter,
			status = excluded.status,
			raw_status = excluded.raw_status,
			updated_at = excluded.updated_at`,
		arg.StudentId, arg.CourseId, arg.Name, arg.DueDate, arg.Category,
		arg.Score, arg.MaxScore, arg.Percent, arg.Letter, arg.Status, arg.RawStatus, arg.Now,
	)
	return err
}

type Assignment struct {
	Id        int64
	StudentId int64
	CourseId  int64
	Name      string
	DueDate   string
	Category  string
	Score     sql.NullFloat64
	MaxScore  sql.NullFloat64
	Percent   sql.NullFloat64
	Letter    string
	Status    string
	RawStatus string
}

func (q *Queries) ListAssignmentsByStudent(ctx context.Context, studentId int64) ([]Assignment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, student_id, course_id, name, due_date, category,
			score, max_score, percent, letter, status, raw_status
		FROM assignments WHERE student_id = ? ORDER BY due_date, name`,
		studentId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		err := rows.Scan(&a.Id, &a.StudentId, &a.CourseId, &a.Name, &a.DueDate, &a.Category,
			&a.Score, &a.MaxScore, &a.Percent, &a.Letter, &a.Status, &a.RawStatus)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type InsertAttendanceRecordParams struct {
	StudentId  int64
	Date       string
	Period     string
	Status     string
	Code       string
	ObservedAt int64
}

func (q *Queries) InsertAttendanceRecord(ctx context.Context, arg InsertAttendanceRecordParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO attendance_records (student_id, date, period, status, code, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		arg.StudentId, arg.Date, arg.Period, arg.Status, arg.Code, arg.ObservedAt,
	)
	return err
}

type AttendanceRecord struct {
	Id         int64
	StudentId  int64
	Date       string
	Period     string
	Status     string
	Code       string
	ObservedAt int64
}

func (q *Queries) ListAttendanceRecords(ctx context.Context, studentId int64) ([]AttendanceRecord, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, student_id, date, period, status, code, observed_at
		FROM attendance_records WHERE student_id = ?
		ORDER BY date, period, observed_at`,
		studentId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AttendanceRecord
	for rows.Next() {
		var r AttendanceRecord
		err := rows.Scan(&r.Id, &r.StudentId, &r.Date, &r.Period, &r.Status, &r.Code, &r.ObservedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type UpsertAttendanceSummaryParams struct {
	StudentId      int64
	Term           string
	DaysEnrolled   sql.NullInt64
	DaysPresent    sql.NullInt64
	DaysAbsent     sql.NullInt64
	AbsentExcused  sql.NullInt64
	Tardies        sql.NullInt64
	AttendanceRate sql.NullFloat64
	Now            int64
}

func (q *Queries) UpsertAttendanceSummary(ctx context.Context, arg UpsertAttendanceSummaryParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO attendance_summaries (student_id, term, days_enrolled, days_present,
			days_absent, absent_excused, tardies, attendance_rate, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, term) DO UPDATE SET
			days_enrolled = excluded.days_enrolled,
			days_present = excluded.days_present,
			days_absent = excluded.days_absent,
			absent_excused = excluded.absent_excused,
			tardies = excluded.tardies,
			attendance_rate = excluded.attendance_rate,
			updated_at = excluded.updated_at`,
		arg.StudentId, arg.Term, arg.DaysEnrolled, arg.DaysPresent,
		arg.DaysAbsent, arg.AbsentExcused, arg.Tardies, arg.AttendanceRate, arg.Now,
	)
	return err
}

type AttendanceSummary struct {
	StudentId      int64
	Term           string
	DaysEnrolled   sql.NullInt64
	DaysPresent    sql.NullInt64
	DaysAbsent     sql.NullInt64
	AbsentExcused  sql.NullInt64
	Tardies        sql.NullInt64
	AttendanceRate sql.NullFloat64
}

func (q *Queries) ListAttendanceSummaries(ctx context.Context, studentId int64) ([]AttendanceSummary, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT student_id, term, days_enrolled, days_present, days_absent,
			absent_excused, tardies, attendance_rate
		FROM attendance_summaries WHERE student_id = ? ORDER BY term`,
		studentId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AttendanceSummary
	for rows.Next() {
		var s AttendanceSummary
		err := rows.Scan(&s.StudentId, &s.Term, &s.DaysEnrolled, &s.DaysPresent,
			&s.DaysAbsent, &s.AbsentExcused, &s.Tardies, &s.AttendanceRate)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type InsertTeacherCommentParams struct {
	StudentId   int64
	CourseId    int64
	Term        string
	TeacherName string
	Comment     string
	ObservedAt  int64
}

func (q *Queries) InsertTeacherComment(ctx context.Context, arg InsertTeacherCommentParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO teacher_comments (student_id, course_id, term, teacher_name, comment, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		arg.StudentId, arg.CourseId, arg.Term, arg.TeacherName, arg.Comment, arg.ObservedAt,
	)
	return err
}

type TeacherComment struct {
	StudentId   int64
	CourseId    int64
	Term        string
	TeacherName string
	Comment     string
	ObservedAt  int64
}

func (q *Queries) ListTeacherComments(ctx context.Context, studentId int64) ([]TeacherComment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT student_id, course_id, term, teacher_name, comment, observed_at
		FROM teacher_comments WHERE student_id = ? ORDER BY course_id, term`,
		studentId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TeacherComment
	for rows.Next() {
		var c TeacherComment
		err := rows.Scan(&c.StudentId, &c.CourseId, &c.Term, &c.TeacherName, &c.Comment, &c.ObservedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type UpsertCourseCategoryParams struct {
	CourseId int64
	Name     string
	Weight   sql.NullFloat64
	Now      int64
}

func (q *Queries) UpsertCourseCategory(ctx context.Context, arg UpsertCourseCategoryParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO course_categories (course_id, name, weight, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (course_id, name) DO UPDATE SET
			weight = excluded.weight,
			updated_at = excluded.updated_at`,
		arg.CourseId, arg.Name, arg.Weight, arg.Now,
	)
	return err
}

type CourseCategory struct {
	CourseId int64
	Name     string
	Weight   sql.NullFloat64
}

func (q *Queries) ListCourseCategoriesByStudent(ctx context.Context, studentId int64) ([]CourseCategory, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT cc.course_id, cc.name, cc.weight
		FROM course_categories cc
		JOIN courses c ON c.id = cc.course_id
		WHERE c.student_id = ?
		ORDER BY cc.course_id, cc.name`,
		studentId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CourseCategory
	for rows.Next() {
		var c CourseCategory
		if err := rows.Scan(&c.CourseId, &c.Name, &c.Weight); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) CreateScrapeRun(ctx context.Context, studentExternalId string, startedAt int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO scrape_runs (student_external_id, started_at, status)
		VALUES (?, ?, 'running')
		RETURNING id`,
		studentExternalId, startedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

type CompleteScrapeRunParams struct {
	Id          int64
	CompletedAt int64
	Status      string
	PagesOk     int64
	PagesFailed int64
	Errors      string
}

func (q *Queries) CompleteScrapeRun(ctx context.Context, arg CompleteScrapeRunParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE scrape_runs
		SET completed_at = ?, status = ?, pages_ok = ?, pages_failed = ?, errors = ?
		WHERE id = ?`,
		arg.CompletedAt, arg.Status, arg.PagesOk, arg.PagesFailed, arg.Errors, arg.Id,
	)
	return err
}

type ScrapeRun struct {
	Id                int64
	StudentExternalId string
	StartedAt         int64
	CompletedAt       sql.NullInt64
	Status            string
	PagesOk           int64
	PagesFailed       int64
	Errors            string
}

func (q *Queries) GetScrapeRun(ctx context.Context, id int64) (ScrapeRun, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, student_external_id, started_at, completed_at, status, pages_ok, pages_failed, errors
		FROM scrape_runs WHERE id = ?`,
		id,
	)
	var r ScrapeRun
	err := row.Scan(&r.Id, &r.StudentExternalId, &r.StartedAt, &r.CompletedAt,
		&r.Status, &r.PagesOk, &r.PagesFailed, &r.Errors)
	return r, err
}

func (q *Queries) ListScrapeRuns(ctx context.Context, studentExternalId string, limit int64) ([]ScrapeRun, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, student_external_id, started_at, completed_at, status, pages_ok, pages_failed, errors
		FROM scrape_runs WHERE student_external_id = ?
		ORDER BY started_at DESC LIMIT ?`,
		studentExternalId, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScrapeRun
	for rows.Next() {
		var r ScrapeRun
		err := rows.Scan(&r.Id, &r.StudentExternalId, &r.StartedAt, &r.CompletedAt,
			&r.Status, &r.PagesOk, &r.PagesFailed, &r.Errors)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
