package gate

import (
	"strings"

	"blaulicht/internal/report"
)

// Policy decides whether a stored field value still needs computation.
type Policy interface {
	NeedsWork(value string) bool
}

// Recognizer is implemented by policies that check values against a closed
// vocabulary.
type Recognizer interface {
	Recognized(value string) bool
}

// TextPolicy treats blank or whitespace-only text as missing.
type TextPolicy struct{}

// NeedsWork reports whether value is blank.
func (TextPolicy) NeedsWork(value string) bool {
	return strings.TrimSpace(value) == ""
}

// CategoryPolicy treats blank sentinels as missing and preserves every other
// value, including labels outside the taxonomy.
type CategoryPolicy struct {
	valid map[string]struct{}
}

// NewCategoryPolicy builds a policy over the given label set.
func NewCategoryPolicy(labels []string) CategoryPolicy {
	valid := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		valid[label] = struct{}{}
	}
	return CategoryPolicy{valid: valid}
}

// NeedsWork reports whether value is a blank sentinel.
func (CategoryPolicy) NeedsWork(value string) bool {
	return report.IsBlankSentinel(value)
}

// Recognized reports whether value is one of the taxonomy labels.
func (p CategoryPolicy) Recognized(value string) bool {
	_, ok := p.valid[strings.TrimSpace(value)]
	return ok
}

// For returns the policy that guards field.
func For(field report.Field, tax report.Taxonomy) Policy {
	if field == report.FieldCategory {
		return NewCategoryPolicy(tax.Names())
	}
	return TextPolicy{}
}

// Worklist is the static set of rows needing one field, built once before any
// computation in the partition starts.
type Worklist struct {
	Field report.Field
	// Rows holds row indexes in partition order.
	Rows []int
	// Satisfied counts rows whose value already passes the policy.
	Satisfied int
	// Unrecognized counts satisfied values outside a closed vocabulary.
	Unrecognized int
}

// Len returns the number of rows needing work.
func (w Worklist) Len() int {
	return len(w.Rows)
}

// Build evaluates policy once per row.
func Build(rows []report.Report, field report.Field, policy Policy) Worklist {
	list := Worklist{Field: field}
	recognizer, _ := policy.(Recognizer)
	for i, row := range rows {
		value := row.Get(field)
		if policy.NeedsWork(value) {
			list.Rows = append(list.Rows, i)
			continue
		}
		list.Satisfied++
		if recognizer != nil && !recognizer.Recognized(value) {
			list.Unrecognized++
		}
	}
	return list
}

// BuildAll builds worklists for every field in order.
func BuildAll(rows []report.Report, fields []report.Field, tax report.Taxonomy) []Worklist {
	lists := make([]Worklist, 0, len(fields))
	for _, field := range fields {
		lists = append(lists, Build(rows, field, For(field, tax)))
	}
	return lists
}
