package healthdata

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToCSV(t *testing.T) {
	data := []Observation{
		{Date: marchDay(1), Weight: floatPtr(70.5), BodyFat: floatPtr(15.2)},
		{Date: marchDay(2), Weight: floatPtr(70.1)},
		{Date: marchDay(3), BodyFat: floatPtr(15.0)},
	}

	out := ConvertToCSV(data)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, "日付,体重(kg),体脂肪率(%)", lines[0])
	assert.Equal(t, "2024/3/1,70.5,15.2", lines[1])
	assert.Equal(t, "2024/3/2,70.1,", lines[2])
	assert.Equal(t, "2024/3/3,,15.0", lines[3])

	// no trailing newline
	assert.False(t, strings.HasSuffix(out, "\n"))
}

func TestConvertToCSV_Empty(t *testing.T) {
	assert.Equal(t, "", ConvertToCSV(nil))
	assert.Equal(t, "", ConvertToCSV([]Observation{}))
}

func TestConvertToCSV_DatesNotZeroPadded(t *testing.T) {
	data := []Observation{
		{
			Date:   CalendarDay{Year: 2024, Month: time.November, Day: 9},
			Weight: floatPtr(71.0),
		},
	}
	assert.Equal(
		t,
		"日付,体重(kg),体脂肪率(%)\n2024/11/9,71.0,",
		ConvertToCSV(data),
	)
}

func TestConvertToCSV_OneDecimalPlace(t *testing.T) {
	data := []Observation{
		{Date: marchDay(1), Weight: floatPtr(70.456), BodyFat: floatPtr(15)},
	}
	lines := strings.Split(ConvertToCSV(data), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2024/3/1,70.5,15.0", lines[1])
}
