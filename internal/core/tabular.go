package core

// tabular.go reads uploaded CSV and XLSX files row by row.
//
// CSV input is decoded through golang.org/x/text: a byte order mark selects
// UTF-8 or UTF-16 and is stripped, and invalid UTF-8 becomes U+FFFD.
// Workbooks are read from their first sheet.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Table iterates the rows of an uploaded file.
type Table interface {
	// Header returns the first non-blank row.
	Header() []string
	// Next returns the next non-blank row, or io.EOF.
	Next() ([]string, error)
	// Line returns the 1-based source line of the last row returned.
	Line() int
	Close() error
}

var zipMagic = []byte("PK\x03\x04")

// OpenTable opens r as CSV or XLSX. The format comes from the file
// extension, falling back to content sniffing when there is none.
func OpenTable(name string, r io.Reader) (Table, error) {
	br := bufio.NewReader(r)

	var t Table
	var err error
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv", ".txt":
		t, err = newCSVTable(br)
	case ".xlsx", ".xlsm":
		t, err = newXLSXTable(br)
	case "":
		head, _ := br.Peek(len(zipMagic))
		if bytes.Equal(head, zipMagic) {
			t, err = newXLSXTable(br)
		} else {
			t, err = newCSVTable(br)
		}
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

type csvTable struct {
	r      *csv.Reader
	header []string
	line   int
}

func newCSVTable(r io.Reader) (*csvTable, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	t := &csvTable{r: cr}
	header, err := t.Next()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, err
	}
	t.header = header
	return t, nil
}

func (t *csvTable) Header() []string { return t.header }
func (t *csvTable) Line() int        { return t.line }
func (t *csvTable) Close() error     { return nil }

func (t *csvTable) Next() ([]string, error) {
	for {
		row, err := t.r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		t.line, _ = t.r.FieldPos(0)
		if !blank(row) {
			return row, nil
		}
	}
}

type xlsxTable struct {
	f      *excelize.File
	rows   *excelize.Rows
	header []string
	line   int
}

func newXLSXTable(r io.Reader) (*xlsxTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid xlsx: %w", err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, errors.New("empty file")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("invalid xlsx: %w", err)
	}

	t := &xlsxTable{f: f, rows: rows}
	header, err := t.Next()
	if err != nil {
		_ = t.Close()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, err
	}
	t.header = header
	return t, nil
}

func (t *xlsxTable) Header() []string { return t.header }
func (t *xlsxTable) Line() int        { return t.line }

func (t *xlsxTable) Next() ([]string, error) {
	for t.rows.Next() {
		t.line++
		row, err := t.rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("invalid xlsx: row %d: %w", t.line, err)
		}
		if !blank(row) {
			return row, nil
		}
	}
	if err := t.rows.Error(); err != nil {
		return nil, fmt.Errorf("invalid xlsx: %w", err)
	}
	return nil, io.EOF
}

func (t *xlsxTable) Close() error {
	return errors.Join(t.rows.Close(), t.f.Close())
}
