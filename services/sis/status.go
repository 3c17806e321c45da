package sis

import (
	"strings"
)

// AssignmentStatus is the closed set of assignment flag values. Portal
// markers that match nothing fold into StatusUnknown with the raw token
// preserved alongside, so an unrecognized marker never drops a row.
type AssignmentStatus string

const (
	StatusCollected AssignmentStatus = "collected"
	StatusMissing   AssignmentStatus = "missing"
	StatusLate      AssignmentStatus = "late"
	StatusExempt    AssignmentStatus = "exempt"
	StatusUnknown   AssignmentStatus = "unknown"
)

// AttendanceStatus is the closed set of attendance meanings. The portal
// code (single letter or short token) is kept verbatim next to it.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceTardy   AttendanceStatus = "tardy"
	AttendanceExcused AttendanceStatus = "excused"
	AttendanceUnknown AttendanceStatus = "unknown"
)

// NormalizeAssignmentStatus maps a raw portal marker (img alt text, css
// class hint or plain cell text) onto the closed status set. Matching is
// case and whitespace insensitive and tolerates surrounding noise like
// "Missing Assignment".
func NormalizeAssignmentStatus(raw string) AssignmentStatus {
	token := strings.ToLower(strings.TrimSpace(raw))
	if token == "" {
		return StatusUnknown
	}
	switch {
	case strings.Contains(token, "missing"):
		return StatusMissing
	case strings.Contains(token, "late"):
		return StatusLate
	case strings.Contains(token, "exempt"):
		return StatusExempt
	case strings.Contains(token, "collected"), strings.Contains(token, "received"):
		return StatusCollected
	}
	return StatusUnknown
}

// attendance code tables, keyed by the uppercased portal code
var attendanceCodes = map[string]AttendanceStatus{
	"A":  AttendanceAbsent,
	"AB": AttendanceAbsent,
	"U":  AttendanceAbsent,
	"UA": AttendanceAbsent,
	"T":  AttendanceTardy,
	"TA": AttendanceTardy,
	"TE": AttendanceTardy,
	"L":  AttendanceTardy,
	"E":  AttendanceExcused,
	"EA": AttendanceExcused,
	"X":  AttendanceExcused,
	"I":  AttendanceExcused,
	"P":  AttendancePresent,
	"PR": AttendancePresent,
}

// NormalizeAttendanceStatus maps a portal attendance marker onto the
// closed status set. Short tokens are treated as codes and looked up
// exactly; longer tokens fall back to word matching ("Unexcused
// Absence", "tardy-excused").
func NormalizeAttendanceStatus(raw string) AttendanceStatus {
	token := strings.TrimSpace(raw)
	if token == "" {
		return AttendanceUnknown
	}
	if len(token) <= 2 {
		if status, ok := attendanceCodes[strings.ToUpper(token)]; ok {
			return status
		}
		return AttendanceUnknown
	}

	lower := strings.ToLower(token)
	switch {
	case strings.Contains(lower, "excused") && !strings.Contains(lower, "unexcused"):
		return AttendanceExcused
	case strings.Contains(lower, "absen"):
		return AttendanceAbsent
	case strings.Contains(lower, "tardy"), strings.Contains(lower, "late"):
		return AttendanceTardy
	case strings.Contains(lower, "present"):
		return AttendancePresent
	}
	return AttendanceUnknown
}

// letterPoints is the letter-to-GPA mapping. Pass/incomplete/withdrawn
// letters carry no point value and contribute nothing to a GPA.
var letterPoints = map[string]float64{
	"A+": 4.0, "A": 4.0, "A-": 3.7,
	"B+": 3.3, "B": 3.0, "B-": 2.7,
	"C+": 2.3, "C": 2.0, "C-": 1.7,
	"D+": 1.3, "D": 1.0, "D-": 0.7,
	"F": 0.0,
}

// GpaPoints returns the point value for a letter grade, or ok=false for
// letters outside the scale (P, I, W, blank).
func GpaPoints(letter string) (float64, bool) {
	points, ok := letterPoints[strings.ToUpper(strings.TrimSpace(letter))]
	return points, ok
}
