package export

import (
	"strings"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

// Column headers for conflict exports.
const (
	ColumnType     = "Type"
	ColumnDate     = "Date"
	ColumnTime     = "Time"
	ColumnWith     = "Conflicts With"
	ColumnAffected = "Affected"
	ColumnMessage  = "Message"
)

// ConflictDataset flattens conflicts into export rows, one per conflict.
func ConflictDataset(conflicts []models.Conflict) Dataset {
	data := Dataset{
		Headers: []string{ColumnType, ColumnDate, ColumnTime, ColumnWith, ColumnAffected, ColumnMessage},
		Weights: []float64{1, 1.2, 1.2, 3, 2.5, 5},
	}
	for _, c := range conflicts {
		affected := c.SharedFacultyIDs
		if c.Type == models.ConflictTypeStudent {
			affected = c.SharedStudentIDs
		}
		data.Rows = append(data.Rows, map[string]string{
			ColumnType:     string(c.Type),
			ColumnDate:     c.Date.Format(models.DateLayout),
			ColumnTime:     c.Interval.String(),
			ColumnWith:     c.ConflictingAllocationTitle,
			ColumnAffected: strings.Join(affected, " "),
			ColumnMessage:  c.Message,
		})
	}
	return data
}
