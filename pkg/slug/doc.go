// Package slug generates filesystem- and URL-safe slugs from arbitrary strings
// with Unicode normalization.
//
// Diacritics are folded to their ASCII base letter, everything that is not an
// ASCII letter or digit becomes a separator, and runs of separators collapse:
//
//	slug.Make("Hello, World!")             // "hello-world"
//	slug.Make("Café & Restaurant")         // "cafe-restaurant"
//	slug.Make("José Núñez", slug.Separator("_")) // "jose_nunez"
//
// # Options
//
//	slug.MaxLength(20)                       // rune limit, cut on a word boundary when possible
//	slug.Separator("_")                      // separator between words (default "-")
//	slug.Lowercase(false)                    // keep original case
//	slug.StripChars("()")                    // drop characters before processing
//	slug.CustomReplace(map[string]string{"&": "and"})
//
// Scripts without an ASCII folding (Cyrillic, CJK, ...) are replaced with
// separators, so the result may be empty; callers that need a non-empty name
// should provide their own fallback.
package slug
