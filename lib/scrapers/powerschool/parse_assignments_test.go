package powerschool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const assignmentsPage = `
<html><body>
<table>
<tr>
	<th>Teacher</th><th>Course</th><th>Exp</th><th>Term</th><th>Due Date</th>
	<th>Category</th><th>Assignment</th><th>Score</th><th>Percent</th><th>Grade</th><th>Codes</th>
</tr>
<tr>
	<td>Lopez, Rachel</td><td>Algebra I</td><td>1/6(A-B)</td><td>Q1</td><td>03/02/2026</td>
	<td>Homework</td><td>Worksheet 4.2</td><td>45/50</td><td>90%</td><td>A-</td>
	<td><img src="collected.gif" alt="Collected"></td>
</tr>
<tr>
	<td>Lopez, Rachel</td><td>Algebra I</td><td>1/6(A-B)</td><td>Q1</td><td>03/05/2026</td>
	<td>Test</td><td>Chapter 4 Test</td><td>Missing</td><td></td><td></td>
	<td></td>
</tr>
<tr>
	<td>Nguyen, Mai</td><td>Biology</td><td>3/6(A)</td><td>Q1</td><td>03/04/2026</td>
	<td>Lab</td><td>Osmosis Lab</td><td>18/20</td><td>90%</td><td>A-</td>
	<td><span class="late"></span></td>
</tr>
<tr>
	<td>Nguyen, Mai</td><td>Biology</td><td>3/6(A)</td><td>Q1</td><td>03/06/2026</td>
	<td>Lab</td><td></td><td></td><td></td><td></td><td></td>
</tr>
</table>
</body></html>`

func TestParseAssignments(t *testing.T) {
	records, err := ParseAssignments(context.Background(), []byte(assignmentsPage))
	require.NoError(t, err)
	// the unnamed row is skipped, not fatal
	require.Len(t, records, 3)

	require.Equal(t, "Worksheet 4.2", records[0][FieldAssignment])
	require.Equal(t, "Algebra I", records[0][FieldCourse])
	require.Equal(t, "1/6(A-B)", records[0][FieldExpression])
	require.Equal(t, "03/02/2026", records[0][FieldDueDate])
	require.Equal(t, "45/50", records[0][FieldScore])
	require.Equal(t, "90%", records[0][FieldPercent])
	require.Equal(t, "A-", records[0][FieldLetter])
	require.Equal(t, "Collected", records[0][FieldCodes])

	// the missing marker stays raw, classification is downstream
	require.Equal(t, "Missing", records[1][FieldScore])
	require.Equal(t, "", records[1][FieldCodes])

	// css class marker on the codes cell
	require.Equal(t, "late", records[2][FieldCodes])
}

func TestParseAssignmentsNoTable(t *testing.T) {
	_, err := ParseAssignments(context.Background(), []byte(`<html><body></body></html>`))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, PageAssignments, parseErr.Page)
}

func TestStatusTokenPrefersImgAlt(t *testing.T) {
	page := `<html><body><table>
		<tr><th>Assignment</th><th>Due Date</th><th>Codes</th></tr>
		<tr><td>Essay</td><td>03/01/2026</td>
			<td class="late"><img alt="Exempt"></td></tr>
	</table></body></html>`
	records, err := ParseAssignments(context.Background(), []byte(page))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Exempt", records[0][FieldCodes])
}
