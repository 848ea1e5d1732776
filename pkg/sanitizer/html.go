package sanitizer

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	plain = bluemonday.StrictPolicy()
	body  = messagePolicy()
)

// messagePolicy admits what goldmark emits for an email body and nothing
// that can execute: no scripts, no event attributes, no javascript: URLs.
func messagePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowElements(
		"p", "br", "hr", "blockquote",
		"h1", "h2", "h3", "h4",
		"strong", "b", "em", "i",
		"ul", "ol", "li", "code", "pre",
	)
	p.AllowAttrs("href").OnElements("a")
	p.RequireNoFollowOnLinks(true)
	return p
}

// PlainText drops every tag and entity escape. Used for header values
// such as subjects.
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(plain.Sanitize(s)))
}

// MessageHTML keeps basic formatting and links from rendered markdown.
func MessageHTML(s string) string {
	return body.Sanitize(s)
}
