package roster

import (
	"maps"
	"strings"
)

// Field is a logical column of the roster.
type Field string

const (
	FieldName        Field = "name"
	FieldEmail       Field = "email"
	FieldYearOfStudy Field = "year_of_study"
	FieldBranch      Field = "branch"
)

// Fields lists the logical fields in matching order.
var Fields = []Field{FieldName, FieldEmail, FieldYearOfStudy, FieldBranch}

// AliasTable maps each logical field to the normalized header names that
// may carry it, in priority order.
type AliasTable map[Field][]string

// DefaultAliases is the built-in alias table.
var DefaultAliases = AliasTable{
	FieldName:        {"name", "student_name", "full_name"},
	FieldEmail:       {"email", "email_id", "email_address"},
	FieldYearOfStudy: {"year_of_study", "year", "academic_year"},
	FieldBranch:      {"branch", "department", "course"},
}

// Record is one valid roster row. Index is the position among valid
// records (0-based); Row is the 1-based line in the source, header included.
type Record struct {
	Extra       map[string]string
	Name        string
	Email       string
	YearOfStudy string
	Branch      string
	Index       int
	Row         int
}

// Value returns the value for a layout field name. "year" is accepted as
// an alias of year_of_study; unknown names are looked up in Extra.
func (r Record) Value(field string) string {
	switch strings.ToLower(field) {
	case string(FieldName):
		return r.Name
	case string(FieldEmail):
		return r.Email
	case string(FieldYearOfStudy), "year":
		return r.YearOfStudy
	case string(FieldBranch):
		return r.Branch
	default:
		return r.Extra[NormalizeHeader(field)]
	}
}

// Data returns the record as placeholder values for message templates.
func (r Record) Data() map[string]string {
	data := make(map[string]string, len(r.Extra)+5)
	maps.Copy(data, r.Extra)
	data[string(FieldName)] = r.Name
	data[string(FieldEmail)] = r.Email
	data[string(FieldBranch)] = r.Branch
	data[string(FieldYearOfStudy)] = r.YearOfStudy
	data["year"] = r.YearOfStudy
	return data
}

// Skipped describes a row that was dropped during normalization.
type Skipped struct {
	Reason string `json:"reason"`
	Row    int    `json:"row"`
}

// Result is the outcome of normalizing one input.
type Result struct {
	// Columns maps each logical field to the normalized header that fed it.
	Columns map[Field]string
	Records []Record
	Skipped []Skipped
	// Total counts data rows: len(Records) + len(Skipped).
	Total int
}

// NormalizeHeader lowercases h, trims it and turns spaces and hyphens
// into underscores.
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	h = strings.ToLower(h)
	h = strings.NewReplacer(" ", "_", "-", "_", "\t", "_").Replace(h)
	for strings.Contains(h, "__") {
		h = strings.ReplaceAll(h, "__", "_")
	}
	return h
}
