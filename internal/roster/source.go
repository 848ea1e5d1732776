package roster

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format identifies a roster file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// FormatFromPath classifies a file by extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// rows yields the raw cells of every row in r.
func rows(r io.Reader, format Format) (iter.Seq2[[]string, error], error) {
	switch format {
	case FormatCSV:
		return csvRows(r), nil
	case FormatXLSX, FormatXLS:
		return sheetRows(r, format)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func csvRows(r io.Reader) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		br := bufio.NewReader(r)
		cr := csv.NewReader(br)
		cr.Comma = sniffDelimiter(br)
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		cr.TrimLeadingSpace = true

		for {
			row, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("%w: %v", ErrRead, err))
				return
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// sniffDelimiter picks ';' or '\t' when the header line uses it and has no commas.
func sniffDelimiter(br *bufio.Reader) rune {
	peek, _ := br.Peek(4096)
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		peek = peek[:i]
	}
	if bytes.IndexByte(peek, ',') >= 0 {
		return ','
	}
	switch {
	case bytes.IndexByte(peek, ';') >= 0:
		return ';'
	case bytes.IndexByte(peek, '\t') >= 0:
		return '\t'
	}
	return ','
}

// sheetRows reads the first worksheet of a workbook.
func sheetRows(r io.Reader, format Format) (iter.Seq2[[]string, error], error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		if format == FormatXLS {
			return nil, fmt.Errorf("%w: legacy .xls workbooks must be saved as .xlsx: %v", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyInput
	}

	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %v", ErrRead, sheets[0], err)
	}

	return func(yield func([]string, error) bool) {
		for _, row := range all {
			if !yield(row, nil) {
				return
			}
		}
	}, nil
}
