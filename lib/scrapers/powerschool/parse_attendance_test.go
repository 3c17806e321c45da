package powerschool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDailyAttendanceDatedCells(t *testing.T) {
	page := `<html><body><table class="calendar">
		<tr>
			<td data-date="2026-03-02" data-period="1" class="att absent"><span class="code">A</span></td>
			<td data-date="2026-03-03" class="att tardy"><span class="code">T</span></td>
			<td class="att"></td>
		</tr>
	</table></body></html>`

	records, err := ParseDailyAttendance(context.Background(), []byte(page))
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, "2026-03-02", records[0][FieldDate])
	require.Equal(t, "A", records[0][FieldCode])
	require.Equal(t, "1", records[0][FieldPeriod])
	require.Contains(t, records[0][FieldCSSClass], "absent")

	require.Equal(t, "2026-03-03", records[1][FieldDate])
	require.Equal(t, "", records[1][FieldPeriod])
}

func TestParseDailyAttendanceDayDivs(t *testing.T) {
	page := `<html><body>
		<div class="attendance-day" data-date="2026-03-02">
			<span class="status absent"></span>
			<span class="code">UA</span>
		</div>
		<div class="attendance-day" data-date="2026-03-04">
			<span class="status">Tardy</span>
		</div>
	</body></html>`

	records, err := ParseDailyAttendance(context.Background(), []byte(page))
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "UA", records[0][FieldCode])
	// no code span, the status text is the code
	require.Equal(t, "Tardy", records[1][FieldCode])
}

func TestParseDailyAttendanceTable(t *testing.T) {
	page := `<html><body><table>
		<tr><th>Date</th><th>Period</th><th>Attendance</th></tr>
		<tr><td>03/02/2026</td><td>2</td><td>Unexcused Absence</td></tr>
		<tr><td></td><td>3</td><td>A</td></tr>
	</table></body></html>`

	records, err := ParseDailyAttendance(context.Background(), []byte(page))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "03/02/2026", records[0][FieldDate])
	require.Equal(t, "2", records[0][FieldPeriod])
	require.Equal(t, "Unexcused Absence", records[0][FieldCode])
}

func TestParseDailyAttendanceNoGrid(t *testing.T) {
	_, err := ParseDailyAttendance(context.Background(), []byte(`<html><body></body></html>`))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, PageAttendanceDaily, parseErr.Page)
}

func TestParseAttendanceDashboard(t *testing.T) {
	page := `<html><body><table>
		<tr><th>Term</th><th>Enrolled</th><th>Present</th><th>Absent</th><th>Excused</th><th>Tardies</th><th>Rate</th></tr>
		<tr><td>Q1</td><td>45</td><td>42</td><td>3</td><td>1</td><td>2</td><td>93.3%</td></tr>
		<tr><td>Q2</td><td>44</td><td>44</td><td>0</td><td>0</td><td>0</td><td>100%</td></tr>
	</table></body></html>`

	records, err := ParseAttendanceDashboard(context.Background(), []byte(page))
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "Q1", records[0][FieldTerm])
	require.Equal(t, "45", records[0][FieldDaysEnrolled])
	require.Equal(t, "42", records[0][FieldDaysPresent])
	require.Equal(t, "3", records[0][FieldDaysAbsent])
	require.Equal(t, "1", records[0][FieldAbsentExcused])
	require.Equal(t, "2", records[0][FieldTardies])
	require.Equal(t, "93.3%", records[0][FieldAttendanceRate])
}
