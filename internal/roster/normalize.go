package roster

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/dmitrymomot/certy/pkg/validator"
)

type options struct {
	aliases  AliasTable
	columns  []Field
	required []Field
}

// Option configures normalization.
type Option func(*options)

// WithRequired sets the fields a row must carry to be kept.
// The default is name and email. Their columns become mandatory too.
func WithRequired(fields ...Field) Option {
	return func(o *options) {
		if len(fields) > 0 {
			o.required = fields
		}
	}
}

// WithRequiredColumns sets the logical fields the header must map.
// The default is every field: name, email, year of study and branch.
func WithRequiredColumns(fields ...Field) Option {
	return func(o *options) {
		if len(fields) > 0 {
			o.columns = fields
		}
	}
}

// WithAliases replaces the alias table.
func WithAliases(t AliasTable) Option {
	return func(o *options) {
		if len(t) > 0 {
			o.aliases = t
		}
	}
}

// Normalize reads the roster at path, choosing the reader by extension.
func Normalize(ctx context.Context, path string, opts ...Option) (*Result, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	defer f.Close()

	return NormalizeReader(ctx, f, format, opts...)
}

// NormalizeReader reads a roster stream of the given format.
func NormalizeReader(ctx context.Context, r io.Reader, format Format, opts ...Option) (*Result, error) {
	o := options{
		aliases:  DefaultAliases,
		columns:  Fields,
		required: []Field{FieldName, FieldEmail},
	}
	for _, opt := range opts {
		opt(&o)
	}

	seq, err := rows(r, format)
	if err != nil {
		return nil, err
	}

	n := &normalizer{opts: o, result: &Result{Columns: map[Field]string{}}}
	line := 0
	for row, err := range seq {
		if err != nil {
			return nil, err
		}
		line++
		if line%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if n.header == nil {
			if isBlank(row) {
				continue
			}
			if err := n.setHeader(row); err != nil {
				return nil, err
			}
			continue
		}
		n.addRow(line, row)
	}

	if n.header == nil {
		return nil, fmt.Errorf("%w: no header row", ErrEmptyInput)
	}
	if n.result.Total == 0 {
		return nil, ErrEmptyInput
	}
	return n.result, nil
}

type normalizer struct {
	result  *Result
	columns map[Field]int
	header  []string
	opts    options
}

func (n *normalizer) setHeader(row []string) error {
	n.header = make([]string, len(row))
	index := make(map[string]int, len(row))
	for i, h := range row {
		key := NormalizeHeader(h)
		if key == "" {
			key = "column_" + strconv.Itoa(i+1)
		}
		n.header[i] = key
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}

	n.columns = make(map[Field]int, len(Fields))
	for _, field := range Fields {
		for _, alias := range n.opts.aliases[field] {
			if i, ok := index[alias]; ok {
				n.columns[field] = i
				n.result.Columns[field] = alias
				break
			}
		}
	}

	for _, field := range slices.Concat(n.opts.columns, n.opts.required) {
		if _, ok := n.columns[field]; !ok {
			return &ValidationError{
				Field:   string(field),
				Message: "no column matches any of " + strings.Join(n.opts.aliases[field], ", "),
				Err:     ErrMissingColumn,
			}
		}
	}
	return nil
}

func (n *normalizer) addRow(line int, row []string) {
	n.result.Total++

	if isBlank(row) {
		n.skip(line, "blank row")
		return
	}

	cell := func(field Field) string {
		i, ok := n.columns[field]
		if !ok || i >= len(row) {
			return ""
		}
		return clean(row[i])
	}

	rec := Record{
		Row:         line,
		Name:        cell(FieldName),
		Email:       cell(FieldEmail),
		YearOfStudy: cell(FieldYearOfStudy),
		Branch:      cell(FieldBranch),
	}

	for _, field := range n.opts.required {
		if rec.Value(string(field)) == "" {
			n.skip(line, "missing "+string(field))
			return
		}
	}
	if rec.Email != "" && !validator.IsEmail(rec.Email) {
		n.skip(line, "invalid email address")
		return
	}

	used := make(map[int]bool, len(n.columns))
	for _, i := range n.columns {
		used[i] = true
	}
	for i, key := range n.header {
		if used[i] || i >= len(row) {
			continue
		}
		if v := clean(row[i]); v != "" {
			if rec.Extra == nil {
				rec.Extra = map[string]string{}
			}
			if _, dup := rec.Extra[key]; !dup {
				rec.Extra[key] = v
			}
		}
	}

	rec.Index = len(n.result.Records)
	n.result.Records = append(n.result.Records, rec)
}

func (n *normalizer) skip(line int, reason string) {
	n.result.Skipped = append(n.result.Skipped, Skipped{Row: line, Reason: reason})
}

// clean trims a cell and collapses inner runs of whitespace.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
