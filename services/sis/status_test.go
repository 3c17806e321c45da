package sis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeAssignmentStatus(t *testing.T) {
	cases := map[string]AssignmentStatus{
		"Missing":            StatusMissing,
		"MISSING":            StatusMissing,
		"missing ":           StatusMissing,
		"Missing Assignment": StatusMissing,
		"Collected":          StatusCollected,
		"received":           StatusCollected,
		"Late":               StatusLate,
		"Exempt":             StatusExempt,
		"Pending-Review":     StatusUnknown,
		"":                   StatusUnknown,
	}
	for raw, want := range cases {
		require.Equal(t, want, NormalizeAssignmentStatus(raw), "raw=%q", raw)
	}
}

func TestNormalizeAttendanceStatus(t *testing.T) {
	cases := map[string]AttendanceStatus{
		"A":                 AttendanceAbsent,
		"UA":                AttendanceAbsent,
		"T":                 AttendanceTardy,
		"L":                 AttendanceTardy,
		"E":                 AttendanceExcused,
		"P":                 AttendancePresent,
		"Unexcused Absence": AttendanceAbsent,
		"Excused Absence":   AttendanceExcused,
		"Tardy":             AttendanceTardy,
		"Present":           AttendancePresent,
		"Z":                 AttendanceUnknown,
		"Field Trip":        AttendanceUnknown,
		"":                  AttendanceUnknown,
	}
	for raw, want := range cases {
		require.Equal(t, want, NormalizeAttendanceStatus(raw), "raw=%q", raw)
	}
}

func TestGpaPoints(t *testing.T) {
	points, ok := GpaPoints("A")
	require.True(t, ok)
	require.Equal(t, 4.0, points)

	points, ok = GpaPoints("b-")
	require.True(t, ok)
	require.Equal(t, 2.7, points)

	// pass and withdrawn letters carry no point value
	for _, letter := range []string{"P", "I", "W", ""} {
		_, ok := GpaPoints(letter)
		require.False(t, ok, "letter=%q", letter)
	}
}
