package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"sync"

	"github.com/yuin/goldmark"

	"github.com/dmitrymomot/certy/pkg/sanitizer"
)

//go:embed layouts/*.html
var builtinLayouts embed.FS

// DefaultLayout is the layout used when none is configured.
const DefaultLayout = "default.html"

// Renderer turns a Template plus record data into subject, HTML and text.
// Layouts and file templates are looked up in the configured filesystem
// first and in the built-in layouts second.
type Renderer struct {
	fs fs.FS
	md goldmark.Markdown

	// Parsed structure only, never rendered output.
	templateCache map[string]*Template
	layoutCache   map[string]*template.Template
	templateDir   string
	layoutDir     string

	mu sync.RWMutex
}

// RendererConfig configures the renderer.
type RendererConfig struct {
	TemplateDir string // Default: "."
	LayoutDir   string // Default: "layouts"
}

// NewRenderer creates a renderer over filesystem. A nil filesystem
// serves only the built-in layout.
func NewRenderer(filesystem fs.FS) *Renderer {
	return NewRendererWithConfig(filesystem, RendererConfig{})
}

// NewRendererWithConfig creates a renderer with custom directories.
func NewRendererWithConfig(filesystem fs.FS, opts RendererConfig) *Renderer {
	if opts.TemplateDir == "" {
		opts.TemplateDir = "."
	}
	if opts.LayoutDir == "" {
		opts.LayoutDir = "layouts"
	}

	return &Renderer{
		fs:            filesystem,
		templateDir:   opts.TemplateDir,
		layoutDir:     opts.LayoutDir,
		md:            goldmark.New(),
		templateCache: make(map[string]*Template),
		layoutCache:   make(map[string]*template.Template),
	}
}

// RenderResult contains the rendered message parts.
type RenderResult struct {
	Metadata map[string]any
	Subject  string
	HTML     string
	Text     string // expanded markdown, before HTML conversion
}

// Load returns the named template from the filesystem, cached after first use.
func (r *Renderer) Load(name string) (*Template, error) {
	r.mu.RLock()
	if cached, ok := r.templateCache[name]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.templateCache[name]; ok {
		return cached, nil
	}

	if r.fs == nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	content, err := fs.ReadFile(r.fs, path.Join(r.templateDir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateNotFound, name, err)
	}

	parsed, err := ParseTemplate(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRenderFailed, name, err)
	}

	r.templateCache[name] = parsed
	return parsed, nil
}

// Render expands tmpl with data and wraps the HTML in layout.
// subject is used when the template carries no subject of its own.
// An empty layout selects DefaultLayout.
func (r *Renderer) Render(layout string, tmpl *Template, subject string, data map[string]string) (*RenderResult, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("%w: nil template", ErrRenderFailed)
	}
	if layout == "" {
		layout = DefaultLayout
	}

	if s := tmpl.Subject(); s != "" {
		subject = s
	}
	subject = Expand(subject, data)

	body := Expand(tmpl.Body, data)

	var htmlContent bytes.Buffer
	if err := r.md.Convert([]byte(body), &htmlContent); err != nil {
		return nil, fmt.Errorf("%w: failed to convert markdown: %v", ErrRenderFailed, err)
	}

	layoutTmpl, err := r.getLayout(layout)
	if err != nil {
		return nil, err
	}

	var finalHTML bytes.Buffer
	layoutData := map[string]any{
		"Subject":  subject,
		"Content":  template.HTML(sanitizer.MessageHTML(htmlContent.String())),
		"Metadata": tmpl.Metadata,
	}
	if err := layoutTmpl.Execute(&finalHTML, layoutData); err != nil {
		return nil, fmt.Errorf("%w: failed to execute layout: %v", ErrRenderFailed, err)
	}

	return &RenderResult{
		Metadata: tmpl.Metadata,
		Subject:  subject,
		HTML:     finalHTML.String(),
		Text:     body,
	}, nil
}

func (r *Renderer) getLayout(name string) (*template.Template, error) {
	r.mu.RLock()
	if cached, ok := r.layoutCache[name]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.layoutCache[name]; ok {
		return cached, nil
	}

	content, err := r.readLayout(name)
	if err != nil {
		return nil, err
	}

	layoutTmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse layout: %v", ErrRenderFailed, err)
	}

	r.layoutCache[name] = layoutTmpl
	return layoutTmpl, nil
}

func (r *Renderer) readLayout(name string) ([]byte, error) {
	if r.fs != nil {
		if content, err := fs.ReadFile(r.fs, path.Join(r.layoutDir, name)); err == nil {
			return content, nil
		}
	}
	content, err := fs.ReadFile(builtinLayouts, path.Join("layouts", name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLayoutNotFound, name)
	}
	return content, nil
}
