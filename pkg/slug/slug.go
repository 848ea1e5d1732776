package slug

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type config struct {
	replace   map[string]string
	separator string
	strip     string
	maxLength int
	lowercase bool
}

// Option configures Make.
type Option func(*config)

// MaxLength limits the slug to n runes. Zero means no limit.
func MaxLength(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.maxLength = n
		}
	}
}

// Separator sets the string placed between words. Defaults to "-".
func Separator(sep string) Option {
	return func(c *config) {
		c.separator = sep
	}
}

// Lowercase controls case conversion. Defaults to true.
func Lowercase(on bool) Option {
	return func(c *config) {
		c.lowercase = on
	}
}

// StripChars removes every character in chars before slugification.
func StripChars(chars string) Option {
	return func(c *config) {
		c.strip += chars
	}
}

// CustomReplace applies literal replacements before slugification.
// Longer keys are applied first.
func CustomReplace(m map[string]string) Option {
	return func(c *config) {
		if c.replace == nil {
			c.replace = make(map[string]string, len(m))
		}
		for k, v := range m {
			c.replace[k] = v
		}
	}
}

// Letters that do not decompose into base + combining mark.
var special = map[rune]string{
	'ß': "ss", 'æ': "ae", 'Æ': "AE", 'ø': "o", 'Ø': "O",
	'đ': "d", 'Đ': "D", 'ł': "l", 'Ł': "L", 'œ': "oe", 'Œ': "OE",
	'þ': "th", 'Þ': "TH", 'ð': "d", 'Ð': "D",
}

// Make converts s into a slug.
func Make(s string, opts ...Option) string {
	cfg := config{separator: "-", lowercase: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(cfg.replace) > 0 {
		keys := make([]string, 0, len(cfg.replace))
		for k := range cfg.replace {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if len(keys[i]) != len(keys[j]) {
				return len(keys[i]) > len(keys[j])
			}
			return keys[i] < keys[j]
		})
		for _, k := range keys {
			s = strings.ReplaceAll(s, k, " "+cfg.replace[k]+" ")
		}
	}
	if cfg.strip != "" {
		s = strings.Map(func(r rune) rune {
			if strings.ContainsRune(cfg.strip, r) {
				return -1
			}
			return r
		}, s)
	}

	s = fold(s)
	if cfg.lowercase {
		s = strings.ToLower(s)
	}

	words := strings.FieldsFunc(s, func(r rune) bool {
		return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	out := strings.Join(words, cfg.separator)

	if cfg.maxLength > 0 {
		out = truncate(out, cfg.maxLength, cfg.separator)
	}
	return out
}

func fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if rep, ok := special[r]; ok {
			b.WriteString(rep)
			continue
		}
		b.WriteRune(r)
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, b.String())
	if err != nil {
		return b.String()
	}
	return folded
}

func truncate(s string, limit int, sep string) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	cut := string(r[:limit])
	// Back off to the previous word boundary unless the cut landed on one.
	if sep != "" && !strings.HasPrefix(string(r[limit:]), sep) {
		if i := strings.LastIndex(cut, sep); i > 0 {
			cut = cut[:i]
		}
	}
	if sep != "" {
		cut = strings.TrimSuffix(cut, sep)
	}
	return cut
}
