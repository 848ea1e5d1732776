package mailer

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const fence = "---"

// Template is a message body with optional YAML frontmatter.
// The body is markdown with {placeholder} fields.
type Template struct {
	Metadata map[string]any
	Body     string
}

// Subject returns the frontmatter subject, if any.
// Both "Subject" and "subject" keys are accepted.
func (t *Template) Subject() string {
	for _, k := range []string{"Subject", "subject"} {
		if v, ok := t.Metadata[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ParseTemplate reads an optional frontmatter block, fenced by lines that
// are exactly "---", followed by the markdown body. Content that does not
// open with a fence is all body.
func ParseTemplate(content []byte) (*Template, error) {
	first, rest := cutLine(content)
	if string(first) != fence {
		return &Template{Metadata: map[string]any{}, Body: string(content)}, nil
	}

	var front [][]byte
	for len(rest) > 0 {
		line, next := cutLine(rest)
		if string(line) == fence {
			meta, err := parseFrontmatter(bytes.Join(front, []byte("\n")))
			if err != nil {
				return nil, err
			}
			return &Template{Metadata: meta, Body: string(next)}, nil
		}
		front = append(front, line)
		rest = next
	}
	return nil, fmt.Errorf("%w: closing %q not found", ErrInvalidFrontmatter, fence)
}

func parseFrontmatter(raw []byte) (map[string]any, error) {
	meta := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return meta, nil
	}
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
	}
	return meta, nil
}

// cutLine splits off the first line without its "\n" or "\r\n".
func cutLine(b []byte) (line, rest []byte) {
	line, rest, _ = bytes.Cut(b, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r")), rest
}
