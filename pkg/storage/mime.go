package storage

import (
	"bufio"
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const (
	MIMEOctetStream = "application/octet-stream"
	MIMEPDF         = "application/pdf"
	MIMEPNG         = "image/png"
	MIMEJPEG        = "image/jpeg"
	MIMEZip         = "application/zip"
	MIMEXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEXLS         = "application/vnd.ms-excel"
	MIMECSV         = "text/csv"

	mimeDetectionBytes = 512
)

var mimeExtensions = map[string]string{
	MIMEPDF:            ".pdf",
	MIMEPNG:            ".png",
	MIMEJPEG:           ".jpg",
	MIMEXLSX:           ".xlsx",
	MIMEXLS:            ".xls",
	MIMECSV:            ".csv",
	"text/plain":       ".txt",
	MIMEZip:            ".zip",
	"application/json": ".json",
}

// DetectMIME sniffs the content type of an uploaded file from its magic bytes.
func DetectMIME(fh *multipart.FileHeader) string {
	if fh == nil {
		return MIMEOctetStream
	}
	f, err := fh.Open()
	if err != nil {
		return MIMEOctetStream
	}
	defer f.Close()
	return DetectMIMEReader(f)
}

// DetectMIMEReader sniffs up to 512 bytes of r.
func DetectMIMEReader(r io.Reader) string {
	buf := make([]byte, mimeDetectionBytes)
	n, err := io.ReadFull(r, buf)
	if n == 0 && err != nil {
		return MIMEOctetStream
	}
	return http.DetectContentType(buf[:n])
}

// ExtFromMIME returns the preferred extension for a content type.
func ExtFromMIME(mimeType string) string {
	return mimeExtensions[normalizeMIME(mimeType)]
}

// sniff detects the content type and returns a reader that replays the
// sniffed bytes.
func sniff(r io.Reader) (string, io.Reader) {
	br := bufio.NewReaderSize(r, mimeDetectionBytes)
	head, _ := br.Peek(mimeDetectionBytes)
	if len(head) == 0 {
		return MIMEOctetStream, br
	}
	return http.DetectContentType(head), br
}

// detectMIMEWithReader returns a seekable reader, buffering r if needed.
func detectMIMEWithReader(r io.Reader) (string, io.ReadSeeker) {
	if rs, ok := r.(io.ReadSeeker); ok {
		buf := make([]byte, mimeDetectionBytes)
		n, _ := io.ReadFull(rs, buf)
		_, _ = rs.Seek(0, io.SeekStart)
		if n > 0 {
			return http.DetectContentType(buf[:n]), rs
		}
		return MIMEOctetStream, rs
	}

	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return MIMEOctetStream, bytes.NewReader(nil)
	}
	return http.DetectContentType(data), bytes.NewReader(data)
}

func normalizeMIME(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return strings.TrimSpace(strings.ToLower(mimeType))
}

// matchesMIME supports exact types and "type/*" wildcards.
func matchesMIME(mimeType string, allowed []string) bool {
	mimeType = normalizeMIME(mimeType)
	for _, pattern := range allowed {
		pattern = strings.TrimSpace(strings.ToLower(pattern))
		if mimeType == pattern {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok && strings.HasSuffix(prefix, "/") &&
			strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}
