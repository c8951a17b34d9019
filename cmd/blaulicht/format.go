package main

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"blaulicht/internal/enrich"
	"blaulicht/internal/report"
)

func formatInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func formatFields(fields []report.Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

// totalsRows renders per-field counters in field order.
func totalsRows(totals map[report.Field]enrich.FieldStats) [][]string {
	fields := make([]report.Field, 0, len(totals))
	for field := range totals {
		fields = append(fields, field)
	}
	slices.SortFunc(fields, func(a, b report.Field) int {
		return fieldOrder(a) - fieldOrder(b)
	})
	rows := make([][]string, 0, len(fields))
	for _, field := range fields {
		stats := totals[field]
		rows = append(rows, []string{
			string(field),
			strconv.Itoa(stats.Satisfied),
			strconv.Itoa(stats.Computed),
			strconv.Itoa(stats.Fallback),
			strconv.Itoa(stats.Pending),
		})
	}
	return rows
}

var totalsHeaders = []string{"Field", "Satisfied", "Computed", "Fallback", "Pending"}

var totalsAligns = []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight}

func fieldOrder(field report.Field) int {
	if i := slices.Index(report.Fields, field); i >= 0 {
		return i
	}
	return len(report.Fields)
}
