package enrich

import "blaulicht/internal/report"

// FieldStats summarizes one field worklist in one partition.
type FieldStats struct {
	Satisfied    int `json:"satisfied"`
	Computed     int `json:"computed"`
	Fallback     int `json:"fallback"`
	Pending      int `json:"pending"`
	Unrecognized int `json:"unrecognized"`
}

// Add accumulates other into s.
func (s *FieldStats) Add(other FieldStats) {
	s.Satisfied += other.Satisfied
	s.Computed += other.Computed
	s.Fallback += other.Fallback
	s.Pending += other.Pending
	s.Unrecognized += other.Unrecognized
}

// PartitionResult reports what the driver did with one partition.
type PartitionResult struct {
	Partition int                         `json:"partition"`
	Rows      int                         `json:"rows"`
	Missing   bool                        `json:"missing,omitempty"`
	Saves     int                         `json:"saves"`
	Fields    map[report.Field]FieldStats `json:"fields"`
}

// Result aggregates partition results of one run.
type Result struct {
	Partitions []PartitionResult `json:"partitions"`
}

// Totals sums field stats across partitions.
func (r Result) Totals() map[report.Field]FieldStats {
	totals := make(map[report.Field]FieldStats)
	for _, p := range r.Partitions {
		for field, stats := range p.Fields {
			agg := totals[field]
			agg.Add(stats)
			totals[field] = agg
		}
	}
	return totals
}
