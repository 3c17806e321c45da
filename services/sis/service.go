package sis

import (
	"context"
	"database/sql"
	"fmt"

	"schoolportal-backend/lib/scrapers/powerschool"
	"schoolportal-backend/lib/textutil"
	"schoolportal-backend/services/sis/db"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("services/sis")

// Config is the sis service block of the deployment config file.
type Config struct {
	// guardian portal base url, e.g. https://ps.district.example.com
	BaseUrl  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`
	// sqlite path or libsql url
	Db string `json:"db"`
	// max students scraped at once, defaults to 2
	Concurrency int `json:"concurrency"`
}

// Service ties the scrape pipeline and the read views together over one
// store.
type Service struct {
	store        *SqliteStore
	orchestrator *Orchestrator
}

func NewService(database *sql.DB, factory GatewayFactory, concurrency int) *Service {
	store := NewSqliteStore(database)
	return &Service{
		store:        store,
		orchestrator: NewOrchestrator(store, factory, concurrency),
	}
}

// NewPortalGatewayFactory builds the production factory: every call
// returns a fresh client, authenticated on its first Login.
func NewPortalGatewayFactory(cfg Config) GatewayFactory {
	return func(ctx context.Context) (Gateway, error) {
		return powerschool.NewClient(ctx, powerschool.ClientOptions{
			BaseUrl:  cfg.BaseUrl,
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}
}

// RunScrape runs the full pipeline for every student on the account.
func (s *Service) RunScrape(ctx context.Context) ([]StudentResult, error) {
	return s.orchestrator.Scrape(ctx)
}

func (s *Service) Store() *SqliteStore {
	return s.store
}

// GradeRow is the current grade of one course for one term, the latest
// observation on the append-only stream.
type GradeRow struct {
	Course    string
	Term      string
	Letter    string
	Percent   *float64
	GpaPoints *float64
}

func (s *Service) CurrentGrades(ctx context.Context, studentExternalId string) ([]GradeRow, error) {
	student, err := s.store.queries.GetStudentByExternalId(ctx, studentExternalId)
	if err != nil {
		return nil, err
	}
	names, err := s.courseNames(ctx, student.Id)
	if err != nil {
		return nil, err
	}

	grades, err := s.store.queries.ListCurrentGrades(ctx, student.Id)
	if err != nil {
		return nil, err
	}
	var rows []GradeRow
	for _, g := range grades {
		rows = append(rows, GradeRow{
			Course:    names[g.CourseId],
			Term:      g.Term,
			Letter:    g.Letter,
			Percent:   nullFloat(g.Percent),
			GpaPoints: nullFloat(g.GpaPoints),
		})
	}
	return rows, nil
}

// GradeObservation is one point on a course's grade history.
type GradeObservation struct {
	Course     string
	Term       string
	Letter     string
	Percent    *float64
	ObservedAt int64
}

// GradeHistory lists every recorded observation for courses matching the
// given name, oldest first. An empty courseName matches everything.
func (s *Service) GradeHistory(ctx context.Context, studentExternalId, courseName string) ([]GradeObservation, error) {
	student, err := s.store.queries.GetStudentByExternalId(ctx, studentExternalId)
	if err != nil {
		return nil, err
	}
	names, err := s.courseNames(ctx, student.Id)
	if err != nil {
		return nil, err
	}

	grades, err := s.store.queries.ListGradesByStudent(ctx, student.Id)
	if err != nil {
		return nil, err
	}

	want := textutil.NormalizeName(courseName)
	var out []GradeObservation
	for _, g := range grades {
		name := names[g.CourseId]
		if want != "" && textutil.NormalizeName(name) != want {
			continue
		}
		out = append(out, GradeObservation{
			Course:     name,
			Term:       g.Term,
			Letter:     g.Letter,
			Percent:    nullFloat(g.Percent),
			ObservedAt: g.ObservedAt,
		})
	}
	return out, nil
}

// MissingAssignmentRow is one assignment currently flagged missing.
type MissingAssignmentRow struct {
	Course     string
	Assignment string
	DueDate    string
	Category   string
}

func (s *Service) MissingAssignments(ctx context.Context, studentExternalId string) ([]MissingAssignmentRow, error) {
	student, err := s.store.queries.GetStudentByExternalId(ctx, studentExternalId)
	if err != nil {
		return nil, err
	}
	names, err := s.courseNames(ctx, student.Id)
	if err != nil {
		return nil, err
	}

	assignments, err := s.store.queries.ListAssignmentsByStudent(ctx, student.Id)
	if err != nil {
		return nil, err
	}
	var rows []MissingAssignmentRow
	for _, a := range assignments {
		if AssignmentStatus(a.Status) != StatusMissing {
			continue
		}
		rows = append(rows, MissingAssignmentRow{
			Course:     names[a.CourseId],
			Assignment: a.Name,
			DueDate:    a.DueDate,
			Category:   a.Category,
		})
	}
	return rows, nil
}

// AttendancePatterns derives weekday histograms and streaks from the
// student's raw attendance stream.
func (s *Service) AttendancePatterns(ctx context.Context, studentExternalId string) (AttendancePatterns, error) {
	student, err := s.store.queries.GetStudentByExternalId(ctx, studentExternalId)
	if err != nil {
		return AttendancePatterns{}, err
	}
	rows, err := s.store.queries.ListAttendanceRecords(ctx, student.Id)
	if err != nil {
		return AttendancePatterns{}, err
	}
	records := make([]AttendanceRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, AttendanceRecord{
			Date:   r.Date,
			Period: r.Period,
			Status: AttendanceStatus(r.Status),
			Code:   r.Code,
		})
	}
	return ComputeAttendancePatterns(records), nil
}

func (s *Service) RecentRuns(ctx context.Context, studentExternalId string, limit int64) ([]db.ScrapeRun, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.RecentRuns(ctx, studentExternalId, limit)
}

func (s *Service) courseNames(ctx context.Context, studentId int64) (map[int64]string, error) {
	courses, err := s.store.queries.ListCoursesByStudent(ctx, studentId)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	names := map[int64]string{}
	for _, c := range courses {
		names[c.Id] = c.Name
	}
	return names, nil
}
