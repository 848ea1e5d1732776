package storage_test

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/certy/pkg/storage"
)

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"][0]
}

func TestValidateFile(t *testing.T) {
	t.Parallel()

	t.Run("accepts pdf template", func(t *testing.T) {
		t.Parallel()
		fh := fileHeader(t, "Template.PDF", pdfBytes)
		mime := storage.DetectMIME(fh)
		assert.Equal(t, storage.MIMEPDF, mime)
		assert.NoError(t, storage.ValidateFile(fh, mime,
			storage.NotEmpty(), storage.MaxSize(1<<20),
			storage.AllowedExtensions(".pdf"), storage.AllowedTypes(storage.MIMEPDF, "image/*")))
	})

	t.Run("rejects wrong extension", func(t *testing.T) {
		t.Parallel()
		fh := fileHeader(t, "roster.txt", []byte("name,email\n"))
		err := storage.ValidateFile(fh, storage.DetectMIME(fh), storage.AllowedExtensions(".csv", ".xlsx", ".xls"))
		var fve *storage.FileValidationError
		require.ErrorAs(t, err, &fve)
		assert.Equal(t, storage.ErrCodeInvalidExtension, fve.Code)
	})

	t.Run("rejects oversized", func(t *testing.T) {
		t.Parallel()
		fh := fileHeader(t, "roster.csv", []byte(strings.Repeat("a", 100)))
		err := storage.ValidateFile(fh, "text/plain", storage.MaxSize(10))
		var fve *storage.FileValidationError
		require.ErrorAs(t, err, &fve)
		assert.Equal(t, storage.ErrCodeFileTooLarge, fve.Code)
	})

	t.Run("rejects empty", func(t *testing.T) {
		t.Parallel()
		fh := fileHeader(t, "roster.csv", nil)
		err := storage.ValidateFile(fh, storage.DetectMIME(fh), storage.NotEmpty())
		var fve *storage.FileValidationError
		require.ErrorAs(t, err, &fve)
		assert.Equal(t, storage.ErrCodeEmptyFile, fve.Code)
	})

	t.Run("wildcard types", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, storage.ValidateReader(10, "image/png", storage.AllowedTypes("image/*")))
		assert.Error(t, storage.ValidateReader(10, "imagex/png", storage.AllowedTypes("image/*")))
	})
}

func TestExtFromMIME(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ".pdf", storage.ExtFromMIME("application/pdf"))
	assert.Equal(t, ".csv", storage.ExtFromMIME("text/csv; charset=utf-8"))
	assert.Empty(t, storage.ExtFromMIME("video/mp4"))
}
