package partition

import "blaulicht/internal/report"

// LinkIndex maps each link to its first row index.
func LinkIndex(rows []report.Report) map[string]int {
	index := make(map[string]int, len(rows))
	for i, row := range rows {
		if row.Link == "" {
			continue
		}
		if _, ok := index[row.Link]; !ok {
			index[row.Link] = i
		}
	}
	return index
}
