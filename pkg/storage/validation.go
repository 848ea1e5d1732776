package storage

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"slices"
	"strings"
)

// FileValidationError represents a file validation failure.
type FileValidationError struct {
	Details map[string]any `json:"details,omitempty"`
	Field   string         `json:"field"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
}

func (e *FileValidationError) Error() string {
	return e.Message
}

const (
	ErrCodeFileTooLarge     = "file_too_large"
	ErrCodeInvalidMIME      = "invalid_mime"
	ErrCodeInvalidExtension = "invalid_extension"
	ErrCodeEmptyFile        = "empty_file"
)

// FileMeta is what validation rules see of a file.
type FileMeta struct {
	Name     string
	MIMEType string
	Size     int64
}

// ValidationRule checks a file before it is accepted.
type ValidationRule interface {
	Validate(m FileMeta) error
}

// ValidationFunc adapts a function to ValidationRule.
type ValidationFunc func(m FileMeta) error

func (f ValidationFunc) Validate(m FileMeta) error { return f(m) }

// ValidateFile runs rules against a multipart upload and returns the first failure.
func ValidateFile(fh *multipart.FileHeader, mimeType string, rules ...ValidationRule) error {
	m := FileMeta{MIMEType: mimeType}
	if fh != nil {
		m.Name, m.Size = fh.Filename, fh.Size
	}
	return validate(m, rules)
}

// ValidateReader runs rules for content without a file name.
func ValidateReader(size int64, mimeType string, rules ...ValidationRule) error {
	return validate(FileMeta{MIMEType: mimeType, Size: size}, rules)
}

func validate(m FileMeta, rules []ValidationRule) error {
	for _, rule := range rules {
		if err := rule.Validate(m); err != nil {
			return err
		}
	}
	return nil
}

// MaxSize rejects files larger than limit bytes.
func MaxSize(limit int64) ValidationRule {
	return ValidationFunc(func(m FileMeta) error {
		if m.Size > limit {
			return &FileValidationError{
				Field:   "file",
				Code:    ErrCodeFileTooLarge,
				Message: fmt.Sprintf("file size %d exceeds limit of %d bytes", m.Size, limit),
				Details: map[string]any{"limit": limit, "got": m.Size},
			}
		}
		return nil
	})
}

// NotEmpty rejects zero-byte files.
func NotEmpty() ValidationRule {
	return ValidationFunc(func(m FileMeta) error {
		if m.Size <= 0 {
			return &FileValidationError{Field: "file", Code: ErrCodeEmptyFile, Message: "file is empty"}
		}
		return nil
	})
}

// AllowedTypes accepts only content types matching patterns ("image/*" allowed).
func AllowedTypes(patterns ...string) ValidationRule {
	return ValidationFunc(func(m FileMeta) error {
		if !matchesMIME(m.MIMEType, patterns) {
			return &FileValidationError{
				Field:   "file",
				Code:    ErrCodeInvalidMIME,
				Message: fmt.Sprintf("file type %q is not allowed", m.MIMEType),
				Details: map[string]any{"type": m.MIMEType, "allowed": patterns},
			}
		}
		return nil
	})
}

// AllowedExtensions accepts only file names ending in one of exts (case-insensitive).
// Files without a name, such as generated content, pass.
func AllowedExtensions(exts ...string) ValidationRule {
	return ValidationFunc(func(m FileMeta) error {
		if m.Name == "" {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(m.Name))
		if !slices.Contains(exts, ext) {
			return &FileValidationError{
				Field:   "file",
				Code:    ErrCodeInvalidExtension,
				Message: fmt.Sprintf("file extension %q is not allowed, expected one of %s", ext, strings.Join(exts, ", ")),
				Details: map[string]any{"extension": ext, "allowed": exts},
			}
		}
		return nil
	})
}
