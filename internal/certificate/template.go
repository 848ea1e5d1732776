package certificate

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrymomot/certy/pkg/storage"
)

// TemplateKind is the type of background a certificate is drawn on.
type TemplateKind string

const (
	KindNone TemplateKind = "none"
	KindPDF  TemplateKind = "pdf"
	KindPNG  TemplateKind = "png"
	KindJPEG TemplateKind = "jpg"
)

// Template is a validated certificate background. The zero value renders
// on a blank A4 landscape page.
type Template struct {
	Path string       `json:"path,omitempty"`
	Kind TemplateKind `json:"kind"`

	data []byte
}

// Blank returns the template for a plain A4 landscape page.
func Blank() Template { return Template{Kind: KindNone} }

// ValidateTemplate checks that path exists, is readable and holds a PDF,
// PNG or JPEG matching its extension. An empty path yields Blank.
func ValidateTemplate(path string) (Template, error) {
	if path == "" {
		return Blank(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateMissing, path)
	}
	if err != nil {
		return Template{}, fmt.Errorf("%w: %s: %v", ErrTemplateMissing, path, err)
	}
	if len(data) == 0 {
		return Template{}, fmt.Errorf("%w: %s is empty", ErrTemplateCorrupt, path)
	}

	kind, err := classify(path, data)
	if err != nil {
		return Template{}, err
	}

	return Template{Path: path, Kind: kind, data: data}, nil
}

// ResolveTemplate picks the background for a batch. An explicit path must
// be valid. Otherwise the layout's default path is used when that file
// exists, and a blank page when it does not.
func ResolveTemplate(explicit, fallback string) (Template, error) {
	if explicit != "" {
		return ValidateTemplate(explicit)
	}
	if fallback == "" {
		return Blank(), nil
	}
	if _, err := os.Stat(fallback); errors.Is(err, fs.ErrNotExist) {
		return Blank(), nil
	}
	return ValidateTemplate(fallback)
}

func classify(path string, data []byte) (TemplateKind, error) {
	sniffed := storage.DetectMIMEReader(bytes.NewReader(data))

	var want TemplateKind
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		want = KindPDF
	case ".png":
		want = KindPNG
	case ".jpg", ".jpeg":
		want = KindJPEG
	}

	var got TemplateKind
	switch sniffed {
	case storage.MIMEPDF:
		got = KindPDF
	case storage.MIMEPNG:
		got = KindPNG
	case storage.MIMEJPEG:
		got = KindJPEG
	}

	switch {
	case got == "":
		return "", fmt.Errorf("%w: %s has content type %s", ErrTemplateCorrupt, filepath.Base(path), sniffed)
	case want != "" && want != got:
		return "", fmt.Errorf("%w: %s is %s, not %s", ErrTemplateCorrupt, filepath.Base(path), got, want)
	case got == KindPDF && !bytes.HasPrefix(data, []byte("%PDF-")):
		return "", fmt.Errorf("%w: %s lacks a PDF header", ErrTemplateCorrupt, filepath.Base(path))
	}
	return got, nil
}

// bytes returns the template content, reading it when the template was
// built by hand rather than by ValidateTemplate.
func (t Template) bytes() ([]byte, error) {
	if t.data != nil {
		return t.data, nil
	}
	v, err := ValidateTemplate(t.Path)
	if err != nil {
		return nil, err
	}
	return v.data, nil
}
