package powerschool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const commentsPage = `
<html><body>
<h1>Teacher Comments: Rivera, Sofia</h1>
<table>
<tr><th>Exp</th><th>Course #</th><th>Course</th><th>Teacher</th><th>Comment</th></tr>
<tr>
	<td>1/6(A-B)</td><td>MAT101</td><td>Algebra I</td>
	<td><a href="mailto:rlopez@district.org">Email Lopez, Rachel</a></td>
	<td><pre>Great  progress this
quarter.</pre></td>
</tr>
<tr>
	<td>3/6(A)</td><td>SCI210</td><td>Biology</td>
	<td><a title="Details about Nguyen, Mai" href="#">i</a> Nguyen, Mai</td>
	<td></td>
</tr>
</table>
</body></html>`

func TestParseTeacherComments(t *testing.T) {
	records, err := ParseTeacherComments(context.Background(), []byte(commentsPage))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	require.Equal(t, "Algebra I", first[FieldCourse])
	require.Equal(t, "MAT101", first[FieldCourseNumber])
	require.Equal(t, "Lopez, Rachel", first[FieldTeacher])
	require.Equal(t, "rlopez@district.org", first[FieldTeacherEmail])
	require.Equal(t, "Great progress this quarter.", first[FieldComment])

	// teacher name off the info button when there is no mailto
	second := records[1]
	require.Equal(t, "Nguyen, Mai", second[FieldTeacher])
	require.Equal(t, "", second[FieldTeacherEmail])
	require.Equal(t, "", second[FieldComment])
}

func TestParseTeacherCommentsNoTable(t *testing.T) {
	_, err := ParseTeacherComments(context.Background(), []byte(`<html><body></body></html>`))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestStudentNameFromComments(t *testing.T) {
	require.Equal(t, "Rivera, Sofia", StudentNameFromComments([]byte(commentsPage)))
	require.Equal(t, "", StudentNameFromComments([]byte(`<html><h1>Grades</h1></html>`)))
}
