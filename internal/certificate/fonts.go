package certificate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-pdf/fpdf"
)

type coreFont struct {
	family string
	style  string
}

// Standard PDF fonts available without embedding.
var coreFonts = map[string]coreFont{
	"helvetica":             {"Helvetica", ""},
	"helvetica-bold":        {"Helvetica", "B"},
	"helvetica-oblique":     {"Helvetica", "I"},
	"helvetica-italic":      {"Helvetica", "I"},
	"helvetica-boldoblique": {"Helvetica", "BI"},
	"helvetica-bolditalic":  {"Helvetica", "BI"},
	"arial":                 {"Helvetica", ""},
	"arial-bold":            {"Helvetica", "B"},
	"arial-italic":          {"Helvetica", "I"},
	"arial-bolditalic":      {"Helvetica", "BI"},
	"times":                 {"Times", ""},
	"times-roman":           {"Times", ""},
	"times-bold":            {"Times", "B"},
	"times-italic":          {"Times", "I"},
	"times-bolditalic":      {"Times", "BI"},
	"courier":               {"Courier", ""},
	"courier-bold":          {"Courier", "B"},
	"courier-oblique":       {"Courier", "I"},
	"courier-italic":        {"Courier", "I"},
	"courier-boldoblique":   {"Courier", "BI"},
	"courier-bolditalic":    {"Courier", "BI"},
	"symbol":                {"Symbol", ""},
	"zapfdingbats":          {"ZapfDingbats", ""},
}

// fontCache holds TrueType font files read from the font directory.
type fontCache struct {
	dir   string
	mu    sync.RWMutex
	files map[string][]byte
}

func newFontCache(dir string) *fontCache {
	return &fontCache{dir: dir, files: make(map[string][]byte)}
}

func (c *fontCache) load(name string) ([]byte, error) {
	c.mu.RLock()
	data, ok := c.files[name]
	c.mu.RUnlock()
	if ok {
		return data, nil
	}

	if c.dir == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: %s", ErrFontUnavailable, name)
	}

	data, err := os.ReadFile(filepath.Join(c.dir, name+".ttf"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s.ttf not found in %s", ErrFontUnavailable, name, c.dir)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFontUnavailable, name, err)
	}

	c.mu.Lock()
	c.files[name] = data
	c.mu.Unlock()
	return data, nil
}

// fontSet tracks the fonts registered with a single document.
type fontSet struct {
	cache     *fontCache
	pdf       *fpdf.Fpdf
	added     map[string]bool
	translate func(string) string
}

func newFontSet(cache *fontCache, pdf *fpdf.Fpdf) *fontSet {
	return &fontSet{
		cache:     cache,
		pdf:       pdf,
		added:     make(map[string]bool),
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

// use selects font at size and returns the text encoder for it. Core fonts
// only cover cp1252, embedded TrueType fonts take UTF-8 as is.
func (s *fontSet) use(font string, size float64) (func(string) string, error) {
	if core, ok := coreFonts[strings.ToLower(font)]; ok {
		s.pdf.SetFont(core.family, core.style, size)
		return s.translate, nil
	}

	if !s.added[font] {
		data, err := s.cache.load(font)
		if err != nil {
			return nil, err
		}
		s.pdf.AddUTF8FontFromBytes(font, "", data)
		if s.pdf.Err() {
			return nil, fmt.Errorf("%w: %s: %v", ErrFontUnavailable, font, s.pdf.Error())
		}
		s.added[font] = true
	}
	s.pdf.SetFont(font, "", size)
	return func(v string) string { return v }, nil
}
