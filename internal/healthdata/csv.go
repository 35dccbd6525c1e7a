package healthdata

import (
	"strconv"
	"strings"
)

// the dashboard is Japanese, so are the CSV headers
const csvHeader = "日付,体重(kg),体脂肪率(%)"

// ConvertToCSV renders observations as the dashboard's export format:
// date in the ja-JP short form (2024/3/1), values to one decimal place,
// absent values as empty cells with their commas kept. Empty input gives
// an empty string, not a lone header row.
func ConvertToCSV(data []Observation) string {
	if len(data) == 0 {
		return ""
	}

	rows := make([]string, 0, len(data)+1)
	rows = append(rows, csvHeader)
	for i := range data {
		rows = append(rows, strings.Join([]string{
			data[i].Date.Time().Format("2006/1/2"),
			formatCsvValue(data[i].Weight),
			formatCsvValue(data[i].BodyFat),
		}, ","))
	}

	return strings.Join(rows, "\n")
}

func formatCsvValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}
