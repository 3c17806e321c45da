package sis

import (
	"sort"
	"time"

	"schoolportal-backend/lib/timezone"
)

// AttendancePatterns are aggregates derived from the raw attendance
// stream, independent of whatever the portal's own dashboard reports.
type AttendancePatterns struct {
	// absences per weekday, tardies counted separately
	AbsencesByWeekday map[time.Weekday]int
	TardiesByWeekday  map[time.Weekday]int
	// longest run of consecutive recorded absence days
	LongestAbsenceStreak int
	TotalAbsences        int
	TotalTardies         int
}

var attendanceDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
}

func parseAttendanceDate(s string) (time.Time, bool) {
	for _, layout := range attendanceDateLayouts {
		if t, err := time.ParseInLocation(layout, s, timezone.Location); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ComputeAttendancePatterns folds the attendance stream into weekday
// histograms and the longest absence streak. Records whose dates do not
// parse are skipped, multiple periods on one day count as one day.
func ComputeAttendancePatterns(records []AttendanceRecord) AttendancePatterns {
	patterns := AttendancePatterns{
		AbsencesByWeekday: map[time.Weekday]int{},
		TardiesByWeekday:  map[time.Weekday]int{},
	}

	absentDays := map[string]time.Time{}
	tardyDays := map[string]time.Time{}
	for _, rec := range records {
		date, ok := parseAttendanceDate(rec.Date)
		if !ok {
			continue
		}
		switch rec.Status {
		case AttendanceAbsent:
			absentDays[rec.Date] = date
		case AttendanceTardy:
			tardyDays[rec.Date] = date
		}
	}

	days := make([]time.Time, 0, len(absentDays))
	for _, date := range absentDays {
		patterns.AbsencesByWeekday[date.Weekday()]++
		days = append(days, date)
	}
	for _, date := range tardyDays {
		patterns.TardiesByWeekday[date.Weekday()]++
	}
	patterns.TotalAbsences = len(absentDays)
	patterns.TotalTardies = len(tardyDays)
	patterns.LongestAbsenceStreak = longestStreak(days)

	return patterns
}

// longestStreak finds the longest run of school days absent in a row.
// Weekends between two absences do not break a streak.
func longestStreak(days []time.Time) int {
	if len(days) == 0 {
		return 0
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, current := 1, 1
	for i := 1; i < len(days); i++ {
		if consecutiveSchoolDays(days[i-1], days[i]) {
			current++
		} else {
			current = 1
		}
		if current > longest {
			longest = current
		}
	}
	return longest
}

func consecutiveSchoolDays(a, b time.Time) bool {
	gap := int(b.Sub(a).Hours() / 24)
	if gap == 1 {
		return true
	}
	// Friday to Monday
	return gap == 3 && a.Weekday() == time.Friday && b.Weekday() == time.Monday
}
