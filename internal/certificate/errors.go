package certificate

import (
	"errors"
	"fmt"
)

var (
	ErrTemplateMissing = errors.New("certificate: template not found")
	ErrTemplateCorrupt = errors.New("certificate: template is corrupt or unsupported")
	ErrFontUnavailable = errors.New("certificate: font unavailable")
	ErrWrite           = errors.New("certificate: cannot write certificate")
)

// RenderError ties a rendering failure to the record that caused it.
type RenderError struct {
	Err    error
	Name   string
	Record int
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("certificate: record %d (%s): %v", e.Record, e.Name, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
