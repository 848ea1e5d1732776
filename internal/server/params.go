package server

import "strconv"

// QueryInt returns the named query parameter as an int, or def when it is
// missing or malformed.
func QueryInt(c Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// FormInt is QueryInt for form fields.
func FormInt(c Context, name string, def int) int {
	raw := c.Form(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
