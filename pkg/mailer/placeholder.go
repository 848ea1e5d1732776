package mailer

import "strings"

// Expand replaces {key} fields in s with values from data.
// Unknown fields are left as written. Doubled braces ("{{" and "}}")
// produce a literal brace.
func Expand(s string, data map[string]string) string {
	if !strings.ContainsAny(s, "{}") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '{' && i+1 < len(s) && s[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(s) && s[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(s[i+1:], '}')
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			key := s[i+1 : i+1+end]
			if v, ok := data[key]; ok && isFieldName(key) {
				b.WriteString(v)
			} else {
				b.WriteString(s[i : i+end+2])
			}
			i += end + 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isFieldName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
