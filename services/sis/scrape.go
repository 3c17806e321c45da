package sis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"schoolportal-backend/lib/scrapers/powerschool"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// Gateway is the portal session surface the orchestrator drives. The
// production implementation is *powerschool.Client; tests substitute a
// canned-page fake.
type Gateway interface {
	Login(ctx context.Context) error
	Students(ctx context.Context) ([]powerschool.StudentTab, error)
	SwitchStudent(ctx context.Context, tab powerschool.StudentTab) error
	FetchPage(ctx context.Context, page powerschool.PageKey, params url.Values) ([]byte, error)
}

var _ Gateway = (*powerschool.Client)(nil)

// GatewayFactory opens a fresh portal session. Each student pipeline gets
// its own session since a Gateway is not safe for concurrent use.
type GatewayFactory func(ctx context.Context) (Gateway, error)

// PageOutcome is the result of fetching and parsing one page.
type PageOutcome struct {
	Page powerschool.PageKey
	Err  error
}

// StudentResult is the outcome of one student's pipeline. Err is set only
// for failures outside page scope (login, snapshot, persistence); page
// level failures live in Pages with the run status downgraded.
type StudentResult struct {
	Student powerschool.StudentTab
	RunId   int64
	Status  RunStatus
	Pages   []PageOutcome
	Stats   ApplyStats
	Err     error
}

func (r StudentResult) pageCounts() (ok, failed int) {
	for _, p := range r.Pages {
		if p.Err == nil {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}

func (r StudentResult) errorStrings() []string {
	var out []string
	for _, p := range r.Pages {
		if p.Err != nil {
			out = append(out, p.Err.Error())
		}
	}
	if r.Err != nil {
		out = append(out, r.Err.Error())
	}
	return out
}

// Orchestrator runs the scrape pipeline for every student on a guardian
// account. Students are independent: one student failing never aborts
// the others, and each gets its own audit run row.
type Orchestrator struct {
	store       Store
	newGateway  GatewayFactory
	concurrency int
}

func NewOrchestrator(store Store, factory GatewayFactory, concurrency int) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		store:       store,
		newGateway:  factory,
		concurrency: concurrency,
	}
}

// the fixed fetch order for every student; course score pages follow,
// discovered from the home grid
var scrapePages = []powerschool.PageKey{
	powerschool.PageHome,
	powerschool.PageAssignments,
	powerschool.PageAttendanceDaily,
	powerschool.PageAttendanceDashboard,
	powerschool.PageTeacherComments,
}

// Scrape discovers the students on the account and runs every pipeline
// with bounded concurrency. The returned error covers account-level
// failures only (unreachable portal, bad credentials, challenge); all
// per-student outcomes are in the results.
func (o *Orchestrator) Scrape(ctx context.Context) ([]StudentResult, error) {
	ctx, span := tracer.Start(ctx, "orchestrator:Scrape")
	defer span.End()

	discovery, err := o.newGateway(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open discovery session")
		return nil, err
	}
	if err := discovery.Login(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return nil, err
	}

	tabs, err := discovery.Students(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "student discovery failed")
		return nil, err
	}
	if len(tabs) == 0 {
		// single-child accounts render no tab bar, the session already
		// points at the only student
		tabs = []powerschool.StudentTab{{ExternalId: "default"}}
	}
	span.SetAttributes(attribute.Int("students", len(tabs)))

	results := make([]StudentResult, len(tabs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.concurrency)
	for i, tab := range tabs {
		i, tab := i, tab
		group.Go(func() error {
			results[i] = o.scrapeStudent(groupCtx, tab)
			return nil
		})
	}
	// goroutines record their outcome in results and never return errors
	_ = group.Wait()

	return results, nil
}

// scrapeStudent runs one student's full pipeline: open a session, fetch
// and parse every page, reconcile against the snapshot, persist the
// batch atomically, and close out the audit run.
func (o *Orchestrator) scrapeStudent(ctx context.Context, tab powerschool.StudentTab) StudentResult {
	ctx, span := tracer.Start(ctx, "orchestrator:scrapeStudent")
	defer span.End()
	span.SetAttributes(attribute.String("student", tab.ExternalId))

	result := StudentResult{Student: tab, Status: RunFailed}

	runId, err := o.store.BeginRun(ctx, tab.ExternalId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open audit run")
		result.Err = err
		return result
	}
	result.RunId = runId

	defer func() {
		ok, failed := result.pageCounts()
		cerr := o.store.CompleteRun(context.WithoutCancel(ctx), runId,
			result.Status, ok, failed, result.errorStrings())
		if cerr != nil {
			slog.ErrorContext(ctx, "failed to close audit run",
				"run", runId, "student", tab.ExternalId, "err", cerr)
		}
	}()

	gateway, err := o.openSession(ctx, tab)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open student session")
		result.Err = err
		return result
	}

	data, pages := o.fetchAll(ctx, gateway)
	result.Pages = pages

	ok, failed := result.pageCounts()
	if ok == 0 {
		span.SetStatus(codes.Error, "every page failed")
		return result
	}

	snap, err := o.store.Snapshot(ctx, tab.ExternalId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load snapshot")
		result.Err = err
		return result
	}

	batch := Normalize(ctx, data, snap)
	batch.Student.ExternalId = tab.ExternalId
	if batch.Student.Name == "" {
		batch.Student.Name = tab.Name
	}

	stats, err := o.store.Apply(ctx, snap, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist batch")
		result.Err = err
		return result
	}
	result.Stats = stats

	if failed > 0 {
		result.Status = RunPartiallyCompleted
	} else {
		result.Status = RunCompleted
	}
	slog.InfoContext(ctx, "student scrape finished",
		"student", tab.ExternalId,
		"status", string(result.Status),
		"pages_ok", ok, "pages_failed", failed,
		"inserted", stats.Inserted, "updated", stats.Updated,
		"appended", stats.Appended, "noops", stats.Noops)
	return result
}

func (o *Orchestrator) openSession(ctx context.Context, tab powerschool.StudentTab) (Gateway, error) {
	gateway, err := o.newGateway(ctx)
	if err != nil {
		return nil, err
	}
	if err := gateway.Login(ctx); err != nil {
		return nil, err
	}
	if tab.Href != "" {
		if err := gateway.SwitchStudent(ctx, tab); err != nil {
			return nil, err
		}
	}
	return gateway, nil
}

// fetchAll fetches and parses every page for the current student. Pages
// fail independently; whatever parsed lands in the returned PageData.
func (o *Orchestrator) fetchAll(ctx context.Context, gateway Gateway) (PageData, []PageOutcome) {
	data := PageData{Student: powerschool.Record{}}
	var outcomes []PageOutcome
	var homeMarkup []byte

	for _, page := range scrapePages {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, PageOutcome{Page: page, Err: err})
			continue
		}

		body, err := gateway.FetchPage(ctx, page, nil)
		if err == nil {
			err = o.parsePage(ctx, page, body, &data)
			if page == powerschool.PageHome && err == nil {
				homeMarkup = body
			}
		}
		if err != nil {
			slog.WarnContext(ctx, "page pipeline failed", "page", string(page), "err", err)
		}
		outcomes = append(outcomes, PageOutcome{Page: page, Err: err})
	}

	for _, params := range powerschool.ScoreLinks(homeMarkup) {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, PageOutcome{Page: powerschool.PageCourseScores, Err: err})
			continue
		}

		body, err := gateway.FetchPage(ctx, powerschool.PageCourseScores, params)
		if err == nil {
			var scores powerschool.CourseScores
			scores, err = powerschool.ParseCourseScores(ctx, body)
			if err == nil {
				data.Scores = append(data.Scores, scores)
			}
		}
		if err != nil {
			slog.WarnContext(ctx, "score page pipeline failed", "params", params.Encode(), "err", err)
		}
		outcomes = append(outcomes, PageOutcome{Page: powerschool.PageCourseScores, Err: err})
	}

	return data, outcomes
}

func (o *Orchestrator) parsePage(
	ctx context.Context, page powerschool.PageKey, body []byte, data *PageData,
) error {
	var err error
	switch page {
	case powerschool.PageHome:
		data.Home, err = powerschool.ParseHome(ctx, body)
	case powerschool.PageAssignments:
		data.Assignments, err = powerschool.ParseAssignments(ctx, body)
	case powerschool.PageAttendanceDaily:
		data.AttendanceDaily, err = powerschool.ParseDailyAttendance(ctx, body)
	case powerschool.PageAttendanceDashboard:
		data.AttendanceDashboard, err = powerschool.ParseAttendanceDashboard(ctx, body)
	case powerschool.PageTeacherComments:
		data.Comments, err = powerschool.ParseTeacherComments(ctx, body)
		if err == nil {
			if name := powerschool.StudentNameFromComments(body); name != "" {
				data.Student[powerschool.FieldStudentName] = name
			}
		}
	default:
		err = fmt.Errorf("no parser for page %s", page)
	}
	return err
}

// IsFatalAccountError reports whether a scrape error concerns the whole
// guardian account rather than a single student or page. Fatal errors
// must not be retried blindly, a challenge in particular needs a human.
func IsFatalAccountError(err error) bool {
	return errors.Is(err, powerschool.ErrInvalidCredentials) ||
		errors.Is(err, powerschool.ErrChallengeRequired)
}
