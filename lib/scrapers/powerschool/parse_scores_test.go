package powerschool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const scoresPage = `
<html><body>
<h2>Algebra I</h2>
<table>
<tr><th>Category</th><th>Weight</th><th>Points</th></tr>
<tr><td>Homework</td><td>20%</td><td>95/100</td></tr>
<tr><td>Tests</td><td>60%</td><td>170/200</td></tr>
<tr><td>Participation</td><td>20%</td><td>50/50</td></tr>
</table>
<table>
<tr><th>Due Date</th><th>Category</th><th>Assignment</th><th>Score</th><th>Percent</th><th>Grade</th></tr>
<tr><td>03/02/2026</td><td>Homework</td><td>Worksheet 4.2</td><td>45/50</td><td>90%</td><td>A-</td></tr>
<tr><td>03/05/2026</td><td>Tests</td><td>Chapter 4 Test</td><td>--</td><td></td><td></td></tr>
</table>
</body></html>`

func TestParseCourseScores(t *testing.T) {
	scores, err := ParseCourseScores(context.Background(), []byte(scoresPage))
	require.NoError(t, err)
	require.Equal(t, "Algebra I", scores.Course)

	require.Len(t, scores.Categories, 3)
	require.Equal(t, "Homework", scores.Categories[0][FieldCategory])
	require.Equal(t, "20%", scores.Categories[0][FieldWeight])

	require.Len(t, scores.Assignments, 2)
	require.Equal(t, "Worksheet 4.2", scores.Assignments[0][FieldAssignment])
	require.Equal(t, "45/50", scores.Assignments[0][FieldScore])
	require.Equal(t, "--", scores.Assignments[1][FieldScore])
}

func TestParseCourseScoresAssignmentsOnly(t *testing.T) {
	page := `<html><body><h2>Biology</h2><table>
		<tr><th>Assignment</th><th>Score</th></tr>
		<tr><td>Osmosis Lab</td><td>18/20</td></tr>
	</table></body></html>`
	scores, err := ParseCourseScores(context.Background(), []byte(page))
	require.NoError(t, err)
	require.Nil(t, scores.Categories)
	require.Len(t, scores.Assignments, 1)
}

func TestParseCourseScoresEmpty(t *testing.T) {
	_, err := ParseCourseScores(context.Background(), []byte(`<html><body><h2>Art</h2></body></html>`))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, PageCourseScores, parseErr.Page)
}
