package sis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestComputeAttendancePatterns(t *testing.T) {
	records := []AttendanceRecord{
		// Monday through Wednesday absences, one streak of three
		{Date: "2026-03-02", Status: AttendanceAbsent, Code: "A"},
		{Date: "2026-03-03", Status: AttendanceAbsent, Code: "A"},
		{Date: "2026-03-04", Status: AttendanceAbsent, Code: "A"},
		// second period on an already-counted day, still one day
		{Date: "2026-03-02", Period: "3", Status: AttendanceAbsent, Code: "UA"},
		// isolated Monday absence two weeks later
		{Date: "2026-03-16", Status: AttendanceAbsent, Code: "A"},
		{Date: "2026-03-10", Status: AttendanceTardy, Code: "T"},
		{Date: "not-a-date", Status: AttendanceAbsent, Code: "A"},
	}

	patterns := ComputeAttendancePatterns(records)
	require.Equal(t, 4, patterns.TotalAbsences)
	require.Equal(t, 1, patterns.TotalTardies)
	require.Equal(t, 3, patterns.LongestAbsenceStreak)
	require.Equal(t, 2, patterns.AbsencesByWeekday[time.Monday])
	require.Equal(t, 1, patterns.AbsencesByWeekday[time.Tuesday])
	require.Equal(t, 1, patterns.TardiesByWeekday[time.Tuesday])
}

func TestLongestStreakBridgesWeekend(t *testing.T) {
	// Friday then Monday counts as consecutive school days
	records := []AttendanceRecord{
		{Date: "2026-03-06", Status: AttendanceAbsent, Code: "A"},
		{Date: "2026-03-09", Status: AttendanceAbsent, Code: "A"},
	}
	patterns := ComputeAttendancePatterns(records)
	require.Equal(t, 2, patterns.LongestAbsenceStreak)
}

func TestComputeAttendancePatternsEmpty(t *testing.T) {
	patterns := ComputeAttendancePatterns(nil)
	require.Equal(t, 0, patterns.LongestAbsenceStreak)
	require.Equal(t, 0, patterns.TotalAbsences)
}
