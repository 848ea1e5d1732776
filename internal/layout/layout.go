// Package layout holds certificate field positions and the store that
// persists them as JSON.
package layout

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/dmitrymomot/certy/pkg/validator"
)

// Align controls how text is placed relative to a field's X coordinate.
type Align string

const (
	AlignCenter Align = "center"
	AlignLeft   Align = "left"
	AlignRight  Align = "right"
)

// Well-known field names.
const (
	FieldName        = "name"
	FieldEmail       = "email"
	FieldBranch      = "branch"
	FieldYearOfStudy = "year_of_study"
)

// DefaultTitle is the title text drawn when the title field carries none.
const DefaultTitle = "CERTIFICATE OF COMPLETION"

// Field positions one piece of text on the page. Coordinates are in points
// with the origin at the bottom-left corner.
type Field struct {
	Font  string  `json:"font"`
	Color string  `json:"color"`
	Align Align   `json:"align,omitempty"`
	Text  string  `json:"text,omitempty"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Size  float64 `json:"size"`
}

// Config is the full certificate layout.
type Config struct {
	Fields       map[string]Field `json:"fields"`
	Title        *Field           `json:"title,omitempty"`
	TemplatePath string           `json:"template_path"`
}

// Default returns the built-in layout.
func Default() Config {
	return Config{
		Fields: map[string]Field{
			FieldName:        {X: 300, Y: 450, Font: "Helvetica-Bold", Size: 18, Color: "#000000"},
			FieldBranch:      {X: 300, Y: 420, Font: "Helvetica", Size: 14, Color: "#000000"},
			FieldYearOfStudy: {X: 300, Y: 400, Font: "Helvetica", Size: 14, Color: "#000000"},
		},
		Title:        &Field{X: 300, Y: 500, Font: "Helvetica-Bold", Size: 24, Color: "#000000", Text: DefaultTitle},
		TemplatePath: "template.pdf",
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := Config{
		Fields:       maps.Clone(c.Fields),
		TemplatePath: c.TemplatePath,
	}
	if c.Title != nil {
		title := *c.Title
		out.Title = &title
	}
	return out
}

// FieldFor returns the named field, falling back to the default layout's
// position for well-known fields. ok is false when neither has it.
func (c Config) FieldFor(name string) (Field, bool) {
	if f, ok := c.Fields[name]; ok {
		return f.withDefaults(), true
	}
	if f, ok := Default().Fields[name]; ok {
		return f, true
	}
	return Field{}, false
}

// FieldNames returns the configured field names in sorted order.
func (c Config) FieldNames() []string {
	return slices.Sorted(maps.Keys(c.Fields))
}

// TitleField returns the title field with its text resolved, or false when
// the layout has no title.
func (c Config) TitleField() (Field, bool) {
	if c.Title == nil {
		return Field{}, false
	}
	f := c.Title.withDefaults()
	if strings.TrimSpace(f.Text) == "" {
		f.Text = DefaultTitle
	}
	return f, true
}

func (f Field) withDefaults() Field {
	if f.Align == "" {
		f.Align = AlignCenter
	}
	if f.Color == "" {
		f.Color = "#000000"
	}
	return f
}

// Validate checks every field. It returns validator.ValidationErrors
// keyed by the JSON path of the offending value.
func (c Config) Validate() error {
	var rules []validator.Rule
	for _, name := range c.FieldNames() {
		if strings.TrimSpace(name) == "" {
			rules = append(rules, validator.Custom("fields", "field name must not be empty", "validation.required", func() bool { return false }))
			continue
		}
		rules = append(rules, fieldRules("fields."+name, c.Fields[name])...)
	}
	if c.Title != nil {
		rules = append(rules, fieldRules("title", *c.Title)...)
	}
	return validator.Apply(rules...)
}

func fieldRules(prefix string, f Field) []validator.Rule {
	return []validator.Rule{
		validator.RequiredString(prefix+".font", f.Font),
		validator.PositiveNum(prefix+".size", f.Size),
		validator.RangeNum(prefix+".x", f.X, 0, 14400),
		validator.RangeNum(prefix+".y", f.Y, 0, 14400),
		validator.Custom(prefix+".color", "must be a #RRGGBB hex color", "validation.color", func() bool {
			return f.Color == "" || IsHexColor(f.Color)
		}),
		validator.Custom(prefix+".align", "must be one of center, left, right", "validation.one_of", func() bool {
			switch f.Align {
			case "", AlignCenter, AlignLeft, AlignRight:
				return true
			}
			return false
		}),
	}
}

// IsHexColor reports whether s is a #RRGGBB color.
func IsHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	_, err := colorful.Hex(s)
	return err == nil
}

// RGB parses a #RRGGBB color into 8-bit channels. An empty string is black.
func RGB(s string) (r, g, b int, err error) {
	if s == "" {
		return 0, 0, 0, nil
	}
	if !IsHexColor(s) {
		return 0, 0, 0, fmt.Errorf("layout: invalid color %q", s)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("layout: invalid color %q: %w", s, err)
	}
	r8, g8, b8 := c.RGB255()
	return int(r8), int(g8), int(b8), nil
}
