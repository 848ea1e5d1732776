// Package certificate draws one PDF certificate per roster record on top of
// an optional PDF or image background.
package certificate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/go-pdf/fpdf/contrib/gofpdi"

	"github.com/dmitrymomot/certy/internal/layout"
	"github.com/dmitrymomot/certy/internal/roster"
	"github.com/dmitrymomot/certy/pkg/slug"
)

// DocumentDate is stamped into every certificate unless WithDate overrides
// it. A fixed date keeps output byte-identical across runs.
var DocumentDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Blank pages are A4 landscape, in points.
const (
	blankWidth  = 841.89
	blankHeight = 595.28
)

// PreviewRecord is the sample recipient used for layout previews.
var PreviewRecord = roster.Record{
	Name:        "John Doe",
	Email:       "john.doe@example.com",
	Branch:      "Computer Science",
	YearOfStudy: "3rd Year",
}

// Artifact is a certificate written to disk.
type Artifact struct {
	Path     string `json:"path"`
	FileName string `json:"file_name"`
	Record   int    `json:"record"`
	Size     int64  `json:"size"`
}

// Open returns the artifact content for attaching to a message.
func (a Artifact) Open() (io.ReadCloser, error) { return os.Open(a.Path) }

// Renderer produces certificates. It is safe for concurrent use; every
// render gets its own document and template importer.
type Renderer struct {
	fonts     *fontCache
	logger    *slog.Logger
	date      time.Time
	outputDir string
	producer  string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithFontDir sets the directory searched for <font>.ttf files.
func WithFontDir(dir string) Option {
	return func(r *Renderer) { r.fonts = newFontCache(dir) }
}

// WithOutputDir sets where Render writes certificates.
func WithOutputDir(dir string) Option {
	return func(r *Renderer) { r.outputDir = dir }
}

// WithDate overrides the creation date stamped into documents.
func WithDate(t time.Time) Option {
	return func(r *Renderer) {
		if !t.IsZero() {
			r.date = t.UTC()
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRenderer creates a Renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		fonts:     newFontCache("fonts"),
		logger:    slog.Default(),
		date:      DocumentDate,
		outputDir: os.TempDir(),
		producer:  "certy",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OutputDir returns the directory Render writes to.
func (r *Renderer) OutputDir() string { return r.outputDir }

// FileName returns the certificate file name for rec.
func FileName(rec roster.Record) string {
	name := slug.Make(rec.Name, slug.Separator("_"), slug.StripChars("'’"), slug.MaxLength(64))
	if name == "" {
		name = "recipient"
	}
	return "certificate_" + name + "_" + strconv.Itoa(rec.Index+1) + ".pdf"
}

// Render draws the certificate for rec and writes it to the output
// directory.
func (r *Renderer) Render(ctx context.Context, rec roster.Record, cfg layout.Config, tpl Template) (Artifact, error) {
	data, err := r.RenderBytes(ctx, rec, cfg, tpl)
	if err != nil {
		return Artifact{}, err
	}

	name := FileName(rec)
	path := filepath.Join(r.outputDir, name)
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return Artifact{}, &RenderError{Record: rec.Index, Name: rec.Name, Err: fmt.Errorf("%w: %v", ErrWrite, err)}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Artifact{}, &RenderError{Record: rec.Index, Name: rec.Name, Err: fmt.Errorf("%w: %v", ErrWrite, err)}
	}

	r.logger.DebugContext(ctx, "certificate rendered",
		slog.Int("record", rec.Index),
		slog.String("file", name),
		slog.Int("size", len(data)))

	return Artifact{Path: path, FileName: name, Record: rec.Index, Size: int64(len(data))}, nil
}

// Preview renders the layout for PreviewRecord without touching disk.
func (r *Renderer) Preview(ctx context.Context, cfg layout.Config, tpl Template) ([]byte, error) {
	return r.RenderBytes(ctx, PreviewRecord, cfg, tpl)
}

// RenderBytes draws the certificate for rec and returns the PDF.
func (r *Renderer) RenderBytes(ctx context.Context, rec roster.Record, cfg layout.Config, tpl Template) (out []byte, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fail := func(err error) error {
		return &RenderError{Record: rec.Index, Name: rec.Name, Err: err}
	}

	// The PDF importer panics on some malformed input.
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = fail(fmt.Errorf("%w: %v", ErrTemplateCorrupt, p))
		}
	}()

	pdf := r.newDocument(rec)
	imported, err := r.drawBackground(pdf, tpl)
	if err != nil {
		return nil, fail(err)
	}

	_, pageHeight := pdf.GetPageSize()
	fonts := newFontSet(r.fonts, pdf)

	if title, ok := cfg.TitleField(); ok {
		if err := r.drawText(pdf, fonts, title, title.Text, pageHeight); err != nil {
			return nil, fail(err)
		}
	}

	for _, name := range drawnFields(cfg) {
		f, ok := cfg.FieldFor(name)
		if !ok {
			continue
		}
		text := f.Text
		if text == "" {
			text = rec.Value(name)
		}
		if text == "" {
			continue
		}
		if err := r.drawText(pdf, fonts, f, text, pageHeight); err != nil {
			return nil, fail(err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fail(fmt.Errorf("%w: %v", ErrWrite, err))
	}
	out, err = imported.reorder(buf.Bytes())
	if err != nil {
		return nil, fail(fmt.Errorf("%w: %v", ErrWrite, err))
	}
	return out, nil
}

// drawnFields lists the configured fields. The recipient name is always
// drawn, at the default position when the layout omits it.
func drawnFields(cfg layout.Config) []string {
	names := cfg.FieldNames()
	if _, ok := cfg.Fields[layout.FieldName]; !ok {
		names = append([]string{layout.FieldName}, names...)
	}
	return names
}

func (r *Renderer) newDocument(rec roster.Record) *fpdf.Fpdf {
	pdf := fpdf.New("L", "pt", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(r.date)
	pdf.SetModificationDate(r.date)
	pdf.SetProducer(r.producer, true)
	pdf.SetTitle("Certificate: "+rec.Name, true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(true)
	return pdf
}

// drawBackground starts the page. A PDF template also returns the import
// whose objects need reordering once the document is written.
func (r *Renderer) drawBackground(pdf *fpdf.Fpdf, tpl Template) (*pageImport, error) {
	switch tpl.Kind {
	case "", KindNone:
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: blankWidth, Ht: blankHeight})
		return nil, nil
	case KindPDF:
		return importPage(pdf, tpl)
	case KindPNG, KindJPEG:
		return nil, placeImage(pdf, tpl)
	default:
		return nil, fmt.Errorf("%w: unknown template kind %q", ErrTemplateCorrupt, tpl.Kind)
	}
}

// importPage uses the first page of a PDF template as the background and
// sizes the certificate page to match it.
func importPage(pdf *fpdf.Fpdf, tpl Template) (*pageImport, error) {
	data, err := tpl.bytes()
	if err != nil {
		return nil, err
	}

	page := newPageImport(pdf)
	imp := gofpdi.NewImporter()
	var rs io.ReadSeeker = bytes.NewReader(data)
	id := imp.ImportPageFromStream(page, &rs, 1, "/MediaBox")
	if pdf.Err() {
		return nil, fmt.Errorf("%w: %v", ErrTemplateCorrupt, pdf.Error())
	}
	if err := page.flush(); err != nil {
		return nil, err
	}

	box := imp.GetPageSizes()[1]["/MediaBox"]
	w, h := box["w"], box["h"]
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %s has no usable page size", ErrTemplateCorrupt, filepath.Base(tpl.Path))
	}

	pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
	imp.UseImportedTemplate(page, id, 0, 0, w, h)
	if pdf.Err() {
		return nil, fmt.Errorf("%w: %v", ErrTemplateCorrupt, pdf.Error())
	}
	return page, nil
}

// placeImage stretches a raster template over a page of the image's size
// at 72 dpi.
func placeImage(pdf *fpdf.Fpdf, tpl Template) error {
	data, err := tpl.bytes()
	if err != nil {
		return err
	}

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	if tpl.Kind == KindJPEG {
		opts.ImageType = "JPG"
	}

	const name = "background"
	info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if pdf.Err() || info == nil {
		return fmt.Errorf("%w: %v", ErrTemplateCorrupt, pdf.Error())
	}

	w, h := info.Width(), info.Height()
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
	pdf.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")
	if pdf.Err() {
		return fmt.Errorf("%w: %v", ErrTemplateCorrupt, pdf.Error())
	}
	return nil
}

func (r *Renderer) drawText(pdf *fpdf.Fpdf, fonts *fontSet, f layout.Field, text string, pageHeight float64) error {
	font := f.Font
	if font == "" {
		font = "Helvetica"
	}
	encode, err := fonts.use(font, f.Size)
	if err != nil {
		return err
	}

	red, green, blue, err := layout.RGB(f.Color)
	if err != nil {
		r.logger.Warn("invalid field color, using black", slog.String("color", f.Color))
		red, green, blue = 0, 0, 0
	}
	pdf.SetTextColor(red, green, blue)

	text = encode(text)
	x := f.X
	switch f.Align {
	case layout.AlignLeft:
	case layout.AlignRight:
		x -= pdf.GetStringWidth(text)
	default:
		x -= pdf.GetStringWidth(text) / 2
	}

	// Layout coordinates grow upwards from the bottom edge.
	pdf.Text(x, pageHeight-f.Y, text)
	if pdf.Err() {
		return fmt.Errorf("%w: %v", ErrWrite, pdf.Error())
	}
	return nil
}
