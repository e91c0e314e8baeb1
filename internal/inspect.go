package internal

import (
	"bizlink/repositories"

	"github.com/mama165/sdk-go/database"
)

// RecordMapper renders stored records in the badger debug inspector.
func RecordMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	record := repositories.Describe(key, val)
	row.Type = record.Kind
	row.Detail = record.Detail
	if record.ID != "" {
		row.EntityID = record.ID
	}
	if !record.At.IsZero() {
		row.Timestamp = record.At.Format("15:04:05")
	}
	return row
}
