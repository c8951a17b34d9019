package workflow

import (
	"context"
	"errors"

	"blaulicht/internal/gate"
	"blaulicht/internal/partition"
	"blaulicht/internal/report"
	"blaulicht/internal/services"
)

// FieldStatus is the completion of one field in one partition.
type FieldStatus struct {
	Field        report.Field `json:"field"`
	Satisfied    int          `json:"satisfied"`
	Pending      int          `json:"pending"`
	Unrecognized int          `json:"unrecognized,omitempty"`
}

// PartitionStatus summarizes one partition file.
type PartitionStatus struct {
	Partition int           `json:"partition"`
	Exists    bool          `json:"exists"`
	Rows      int           `json:"rows"`
	Newest    string        `json:"newest,omitempty"`
	Fields    []FieldStatus `json:"fields,omitempty"`
}

// Status reports per-partition completion without taking locks or calling
// any computator.
func (m *Manager) Status(ctx context.Context, requested []int) ([]PartitionStatus, error) {
	years, err := m.Years(requested)
	if err != nil {
		return nil, err
	}
	statuses := make([]PartitionStatus, 0, len(years))
	for _, year := range years {
		status := PartitionStatus{Partition: year}
		rows, err := m.store.Load(ctx, partition.Key(year))
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				statuses = append(statuses, status)
				continue
			}
			return statuses, err
		}
		status.Exists = true
		status.Rows = len(rows)
		if len(rows) > 0 {
			status.Newest = rows[0].Date
		}
		for _, list := range gate.BuildAll(rows, report.Fields, m.taxonomy) {
			status.Fields = append(status.Fields, FieldStatus{
				Field:        list.Field,
				Satisfied:    list.Satisfied,
				Pending:      list.Len(),
				Unrecognized: list.Unrecognized,
			})
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
