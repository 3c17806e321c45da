package sis

import (
	"context"
	"testing"
	"time"

	"schoolportal-backend/lib/testutil"
	"schoolportal-backend/services/sis/db"

	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T, portal *fakePortal) *Service {
	result, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "sis",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)
	return NewService(result.DB, portal.factory, 2)
}

func TestServiceEndToEnd(t *testing.T) {
	ctx := context.Background()
	service := setupService(t, twoStudentPortal())

	results, err := service.RunScrape(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	grades, err := service.CurrentGrades(ctx, "1111")
	require.NoError(t, err)
	require.Len(t, grades, 2)
	byCourse := map[string]GradeRow{}
	for _, g := range grades {
		byCourse[g.Course] = g
	}
	algebra := byCourse["Algebra I"]
	require.Equal(t, "A-", algebra.Letter)
	require.NotNil(t, algebra.Percent)
	require.Equal(t, 91.5, *algebra.Percent)
	require.NotNil(t, algebra.GpaPoints)
	require.Equal(t, 3.7, *algebra.GpaPoints)

	missing, err := service.MissingAssignments(ctx, "1111")
	require.NoError(t, err)
	require.Len(t, missing, 1)
	require.Equal(t, "Worksheet 4.2", missing[0].Assignment)
	require.Equal(t, "Algebra I", missing[0].Course)

	patterns, err := service.AttendancePatterns(ctx, "1111")
	require.NoError(t, err)
	require.Equal(t, 1, patterns.TotalAbsences)
	require.Equal(t, 1, patterns.AbsencesByWeekday[time.Monday])

	history, err := service.GradeHistory(ctx, "1111", "algebra i")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "A-", history[0].Letter)

	runs, err := service.RecentRuns(ctx, "1111", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}
