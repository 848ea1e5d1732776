package storage

import (
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Option configures Put operations.
type Option func(*putOptions)

type putOptions struct {
	key             string
	prefix          string
	contentType     string
	validationRules []ValidationRule
}

// WithKey sets the file name part of the key. Combined with WithPrefix.
func WithKey(key string) Option {
	return func(o *putOptions) {
		o.key = key
	}
}

// WithPrefix places the file under prefix, e.g. a task ID.
func WithPrefix(prefix string) Option {
	return func(o *putOptions) {
		o.prefix = prefix
	}
}

// WithContentType overrides content sniffing.
func WithContentType(ct string) Option {
	return func(o *putOptions) {
		o.contentType = ct
	}
}

// WithValidation runs rules against the content before it is stored.
func WithValidation(rules ...ValidationRule) Option {
	return func(o *putOptions) {
		o.validationRules = append(o.validationRules, rules...)
	}
}

func newPutOptions(opts ...Option) *putOptions {
	o := &putOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// buildKey joins prefix and name. A missing name becomes a UUID with an
// extension derived from the content type.
func buildKey(prefix, name, contentType string) (string, error) {
	var parts []string
	for _, seg := range strings.Split(prefix, "/") {
		if s := sanitizePathSegment(seg); s != "" {
			parts = append(parts, s)
		}
	}

	if name == "" {
		ext := ExtFromMIME(contentType)
		if ext == "" {
			ext = ".bin"
		}
		name = uuid.NewString() + ext
	}
	file := sanitizePathSegment(path.Base(name))
	if file == "" || file == "." {
		return "", ErrInvalidKey
	}
	return strings.Join(append(parts, file), "/"), nil
}

// cleanKey validates a key passed to Get/Delete/List.
func cleanKey(key string) (string, error) {
	var parts []string
	for _, seg := range strings.Split(key, "/") {
		if seg == "" {
			continue
		}
		s := sanitizePathSegment(seg)
		if s == "" || s != seg {
			return "", ErrInvalidKey
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "/"), nil
}

var pathSegmentRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// sanitizePathSegment strips traversal sequences and unsafe characters.
func sanitizePathSegment(segment string) string {
	segment = strings.Trim(segment, " /\\")
	segment = strings.ReplaceAll(segment, "..", "")
	segment = pathSegmentRegex.ReplaceAllString(segment, "_")
	if segment == "." {
		return ""
	}
	return segment
}
