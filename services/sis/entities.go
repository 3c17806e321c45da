package sis

import (
	"strings"

	"schoolportal-backend/lib/textutil"
)

// Op describes what the reconciler decided to do with one entity when it
// compared the fresh observation against the persisted snapshot.
type Op string

const (
	// new entity, not present in the snapshot
	OpInsert Op = "insert"
	// existing entity whose mutable fields changed
	OpUpdate Op = "update"
	// a new historical fact on an append-only stream
	OpAppend Op = "append"
	// observation identical to what is already stored
	OpNoop Op = "noop"
)

type Change[E any] struct {
	Op     Op
	Entity E
}

// Student is the normalized student identity attached to every batch.
type Student struct {
	ExternalId string
	Name       string
	GradeLevel string
	School     string
}

// Course identity is the (name, expression, term) composite. Two sections
// of the same course differ in expression and stay distinct.
type Course struct {
	Name         string
	Expression   string
	Term         string
	Room         string
	TeacherName  string
	TeacherEmail string
}

func (c Course) Key() string {
	return textutil.CourseKey(c.Name, c.Expression, c.Term)
}

// Grade is one observation of a course grade for a term. Percent and
// GpaPoints are nil when the portal shows no numeric value for the cell.
type Grade struct {
	CourseKey string
	Term      string
	Letter    string
	Percent   *float64
	GpaPoints *float64
}

func (g Grade) Key() string {
	return g.CourseKey + "|" + textutil.NormalizeName(g.Term)
}

// Assignment is the current state of one assignment. Score is nil when
// the portal shows no score at all, including the "Missing" marker; a
// missing assignment is not a zero.
type Assignment struct {
	CourseKey string
	Name      string
	DueDate   string
	Category  string
	Score     *float64
	MaxScore  *float64
	Percent   *float64
	Letter    string
	Status    AssignmentStatus
	RawStatus string
}

func (a Assignment) Key() string {
	return a.CourseKey + "|" + textutil.NormalizeName(a.Name) + "|" + a.DueDate
}

// AttendanceRecord is one observed attendance event. Period is empty for
// daily-granularity records.
type AttendanceRecord struct {
	Date   string
	Period string
	Status AttendanceStatus
	Code   string
}

func (r AttendanceRecord) Key() string {
	return strings.Join([]string{r.Date, r.Period, string(r.Status), r.Code}, "|")
}

// AttendanceSummary is the per-term aggregate off the dashboard page.
// Counters are nil when the dashboard omits the column.
type AttendanceSummary struct {
	Term           string
	DaysEnrolled   *int64
	DaysPresent    *int64
	DaysAbsent     *int64
	AbsentExcused  *int64
	Tardies        *int64
	AttendanceRate *float64
}

type TeacherComment struct {
	CourseKey   string
	Term        string
	TeacherName string
	Comment     string
}

func (c TeacherComment) Key() string {
	return c.CourseKey + "|" + textutil.NormalizeName(c.Term) + "|" + c.Comment
}

type Category struct {
	CourseKey string
	Name      string
	Weight    *float64
}

func (c Category) Key() string {
	return c.CourseKey + "|" + textutil.NormalizeName(c.Name)
}

// Batch is the reconciled write set for one student. Apply persists it
// atomically; a batch carrying only noops leaves the store untouched.
type Batch struct {
	Student     Student
	Courses     []Change[Course]
	Grades      []Change[Grade]
	Assignments []Change[Assignment]
	Attendance  []Change[AttendanceRecord]
	Summaries   []Change[AttendanceSummary]
	Comments    []Change[TeacherComment]
	Categories  []Change[Category]
}

// Dirty reports whether the batch contains any non-noop change.
func (b *Batch) Dirty() bool {
	for _, c := range b.Courses {
		if c.Op != OpNoop {
			return true
		}
	}
	for _, c := range b.Grades {
		if c.Op != OpNoop {
			return true
		}
	}
	for _, c := range b.Assignments {
		if c.Op != OpNoop {
			return true
		}
	}
	for _, c := range b.Attendance {
		if c.Op != OpNoop {
			return true
		}
	}
	for _, c := range b.Summaries {
		if c.Op != OpNoop {
			return true
		}
	}
	for _, c := range b.Comments {
		if c.Op != OpNoop {
			return true
		}
	}
	for _, c := range b.Categories {
		if c.Op != OpNoop {
			return true
		}
	}
	return false
}

// Snapshot is the persisted state of one student, keyed the same way the
// normalizer keys fresh observations so reconciliation is map lookups.
type Snapshot struct {
	StudentId   int64
	CourseIds   map[string]int64
	Courses     map[string]Course
	Grades      map[string]Grade
	Assignments map[string]Assignment
	Attendance  map[string]struct{}
	Summaries   map[string]AttendanceSummary
	Comments    map[string]struct{}
	Categories  map[string]Category
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		CourseIds:   map[string]int64{},
		Courses:     map[string]Course{},
		Grades:      map[string]Grade{},
		Assignments: map[string]Assignment{},
		Attendance:  map[string]struct{}{},
		Summaries:   map[string]AttendanceSummary{},
		Comments:    map[string]struct{}{},
		Categories:  map[string]Category{},
	}
}
