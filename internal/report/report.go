package report

import "strings"

// Column names of a persisted partition, in file order.
const (
	ColumnDate        = "date"
	ColumnTitle       = "title"
	ColumnLink        = "link"
	ColumnLocation    = "location"
	ColumnDescription = "description"
	ColumnENTitle     = "en_title"
	ColumnCategory    = "category"
)

// Columns is the fixed partition schema.
var Columns = []string{
	ColumnDate,
	ColumnTitle,
	ColumnLink,
	ColumnLocation,
	ColumnDescription,
	ColumnENTitle,
	ColumnCategory,
}

// Field names an enrichable column.
type Field string

const (
	FieldDescription Field = ColumnDescription
	FieldENTitle     Field = ColumnENTitle
	FieldCategory    Field = ColumnCategory
)

// Fields lists the enrichable fields in dependency order: the classifier
// reads the description, so description runs first.
var Fields = []Field{FieldDescription, FieldENTitle, FieldCategory}

// ParseField resolves a field name, accepting any case and surrounding space.
func ParseField(name string) (Field, bool) {
	switch Field(strings.ToLower(strings.TrimSpace(name))) {
	case FieldDescription:
		return FieldDescription, true
	case FieldENTitle:
		return FieldENTitle, true
	case FieldCategory:
		return FieldCategory, true
	default:
		return "", false
	}
}

// Unset is the canonical marker for a field that has not been computed.
const Unset = ""

// WarningPlaceholder is stored as the description when the report page only
// shows the archive's generic notice instead of real content.
const WarningPlaceholder = "[warning_placeholder]"

// Report is one police press release listing.
type Report struct {
	Date        string `json:"date"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Location    string `json:"location"`
	Description string `json:"description"`
	ENTitle     string `json:"en_title"`
	Category    string `json:"category"`
}

// Get returns the value of an enrichable field.
func (r Report) Get(field Field) string {
	switch field {
	case FieldDescription:
		return r.Description
	case FieldENTitle:
		return r.ENTitle
	case FieldCategory:
		return r.Category
	default:
		return ""
	}
}

// Set writes the value of an enrichable field. Unknown fields are ignored.
func (r *Report) Set(field Field, value string) {
	switch field {
	case FieldDescription:
		r.Description = value
	case FieldENTitle:
		r.ENTitle = value
	case FieldCategory:
		r.Category = value
	}
}

// Record renders the report in Columns order.
func (r Report) Record() []string {
	return []string{r.Date, r.Title, r.Link, r.Location, r.Description, r.ENTitle, r.Category}
}

// FromColumns builds a report from a column-name lookup. Missing columns
// yield Unset.
func FromColumns(lookup func(column string) (string, bool)) Report {
	get := func(column string) string {
		value, ok := lookup(column)
		if !ok {
			return Unset
		}
		return value
	}
	return Report{
		Date:        get(ColumnDate),
		Title:       get(ColumnTitle),
		Link:        get(ColumnLink),
		Location:    get(ColumnLocation),
		Description: get(ColumnDescription),
		ENTitle:     get(ColumnENTitle),
		Category:    get(ColumnCategory),
	}
}
