package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrymomot/certy/internal/batch"
	"github.com/dmitrymomot/certy/internal/certificate"
	"github.com/dmitrymomot/certy/internal/roster"
	"github.com/dmitrymomot/certy/internal/server"
	"github.com/dmitrymomot/certy/internal/views"
	"github.com/dmitrymomot/certy/pkg/storage"
)

// DefaultMaxUploadBytes caps a whole upload request.
const DefaultMaxUploadBytes = 32 << 20

var (
	rosterExtensions   = []string{".csv", ".xlsx", ".xls"}
	templateExtensions = []string{".pdf", ".png", ".jpg", ".jpeg"}
)

// UploadResponse is returned by POST /upload-files.
type UploadResponse struct {
	Columns  map[roster.Field]string `json:"columns"`
	TaskID   string                  `json:"task_id"`
	Template string                  `json:"template,omitempty"`
	Skipped  []roster.Skipped        `json:"skipped"`
	Total    int                     `json:"total"`
	Valid    int                     `json:"valid"`
}

// UploadHandler accepts a roster and an optional template and registers a
// pending task for them.
type UploadHandler struct {
	svc       *batch.Service
	uploadDir string
	maxBytes  int64
	mail      views.MailDefaults
}

// NewUploadHandler creates the upload handler. Files are stored in a fresh
// directory under uploadDir per upload.
func NewUploadHandler(svc *batch.Service, uploadDir string, maxBytes int64, mail views.MailDefaults) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadHandler{svc: svc, uploadDir: uploadDir, maxBytes: maxBytes, mail: mail}
}

func (h *UploadHandler) Routes(r server.Router) {
	r.POST("/upload-files", h.upload)
}

func (h *UploadHandler) upload(c server.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, h.maxBytes)
	if err := req.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return server.ErrBadRequest("expected a multipart form", server.WithError(err))
	}
	defer req.MultipartForm.RemoveAll()

	rosterFile, rosterHeader, err := c.FormFile("excel_file")
	if err != nil {
		return server.ErrUnprocessable("excel_file is required", server.WithErrorCode("validation_failed"),
			server.WithDetails(map[string]string{"excel_file": "required"}))
	}
	defer rosterFile.Close()
	if err := checkUpload("excel_file", rosterHeader, h.maxBytes, rosterExtensions); err != nil {
		return err
	}

	var (
		tplFile   multipart.File
		tplHeader *multipart.FileHeader
	)
	if f, fh, err := c.FormFile("template_file"); err == nil {
		tplFile, tplHeader = f, fh
		defer tplFile.Close()
		if err := checkUpload("template_file", tplHeader, h.maxBytes, templateExtensions); err != nil {
			return err
		}
	} else if !errors.Is(err, http.ErrMissingFile) {
		return server.ErrBadRequest("cannot read template_file", server.WithError(err))
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	dir, err := os.MkdirTemp(h.uploadDir, "upload-*")
	if err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	keep := false
	defer func() {
		if !keep {
			_ = os.RemoveAll(dir)
		}
	}()

	rosterPath, err := save(dir, "roster", rosterHeader.Filename, rosterFile)
	if err != nil {
		return err
	}
	var tplPath string
	if tplFile != nil {
		if tplPath, err = save(dir, "template", tplHeader.Filename, tplFile); err != nil {
			return err
		}
		if _, err := certificate.ValidateTemplate(tplPath); err != nil {
			return err
		}
	}

	res, err := roster.Normalize(c.Context(), rosterPath)
	if err != nil {
		return err
	}

	task := h.svc.Registry().Create(rosterPath, tplPath)
	keep = true
	c.LogInfo("roster uploaded",
		slog.String("task_id", task.TaskID),
		slog.Int("total", res.Total),
		slog.Int("valid", len(res.Records)),
		slog.Int("skipped", len(res.Skipped)),
	)

	if c.IsHTMX() {
		skipped := make([]batch.RecordStatus, 0, len(res.Skipped))
		for _, s := range res.Skipped {
			skipped = append(skipped, batch.RecordStatus{Row: s.Row, Reason: s.Reason, Outcome: batch.OutcomeSkipped})
		}
		template := ""
		if tplHeader != nil {
			template = tplHeader.Filename
		}
		return c.Render(http.StatusOK, views.Uploaded(views.UploadData{
			TaskID:   task.TaskID,
			Skipped:  skipped,
			Template: template,
			Mail:     h.mail,
			Total:    res.Total,
			Valid:    len(res.Records),
		}))
	}

	resp := UploadResponse{
		TaskID:  task.TaskID,
		Total:   res.Total,
		Valid:   len(res.Records),
		Skipped: res.Skipped,
		Columns: res.Columns,
	}
	if resp.Skipped == nil {
		resp.Skipped = []roster.Skipped{}
	}
	if tplHeader != nil {
		resp.Template = tplHeader.Filename
	}
	return c.JSON(http.StatusOK, resp)
}

func checkUpload(field string, fh *multipart.FileHeader, maxBytes int64, exts []string) error {
	err := storage.ValidateFile(fh, "",
		storage.NotEmpty(),
		storage.MaxSize(maxBytes),
		storage.AllowedExtensions(exts...),
	)
	var fe *storage.FileValidationError
	if errors.As(err, &fe) {
		fe.Field = field
	}
	return err
}

// save copies src to dir/base plus the lowercased extension of name.
// The client's file name is never used as a path.
func save(dir, base, name string, src io.Reader) (string, error) {
	path := filepath.Join(dir, base+strings.ToLower(filepath.Ext(name)))
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}
