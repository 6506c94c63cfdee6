package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/residents/internal/database"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ExportHeader is the fixed column order of every export.
var ExportHeader = []string{
	"Resident ID", "Household ID", "Name", "Gender", "Date of Birth",
	"UID", "Mobile Number", "Health ID",
	"District", "Mandal", "Secretariat", "PHC", "Last Updated",
}

// ExportMeta describes an export for the metadata lines and sheet.
type ExportMeta struct {
	Title       string
	GeneratedAt time.Time
	GeneratedBy string
	Filters     map[string]string
	Records     int64
	Masked      bool
}

// FilterSummary renders filters as "k=v; k=v" in key order, or "none".
func (m ExportMeta) FilterSummary() string {
	if len(m.Filters) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(m.Filters))
	for k := range m.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m.Filters[k]
	}
	return strings.Join(parts, "; ")
}

func (m ExportMeta) uidMode() string {
	if m.Masked {
		return "masked"
	}
	return "unmasked"
}

// lines returns the metadata as label/value pairs.
func (m ExportMeta) lines() [][2]string {
	return [][2]string{
		{"Title", m.Title},
		{"Generated", m.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Generated by", m.GeneratedBy},
		{"Filters", m.FilterSummary()},
		{"Records", strconv.FormatInt(m.Records, 10)},
		{"UID", m.uidMode()},
	}
}

// MaskUID hides all but the last four digits: XXXXXXXX1234.
func MaskUID(uid string) string {
	if uid == "" {
		return ""
	}
	if len(uid) <= 4 {
		return strings.Repeat("X", len(uid))
	}
	return strings.Repeat("X", len(uid)-4) + uid[len(uid)-4:]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// exportRow renders one resident in ExportHeader order.
func exportRow(r database.Resident, masked bool) []string {
	uid := deref(r.UID)
	if masked {
		uid = MaskUID(uid)
	}
	dob := ""
	if r.DateOfBirth != nil {
		dob = r.DateOfBirth.Format("2006-01-02")
	}
	return []string{
		r.ResidentID, r.HouseholdID, r.Name, r.Gender, dob,
		uid, deref(r.MobileNumber), deref(r.HealthID),
		r.District, r.Mandal, r.Secretariat, r.PHC,
		r.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

// rowEncoder writes an export in one format.
type rowEncoder interface {
	Begin(meta ExportMeta) error
	WriteRow(row []string) error
	// EndBatch pushes buffered rows toward the client where the format allows.
	EndBatch() error
	Close() error
	// Abort releases resources of an export that will not be finished.
	Abort()
}

func newEncoder(format string, w io.Writer) (rowEncoder, error) {
	switch format {
	case FormatCSV:
		return newCSVEncoder(w), nil
	case FormatXLSX:
		return newXLSXEncoder(w), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
}

type flusher interface {
	Flush()
}

// csvEncoder writes UTF-8 CSV with a byte order mark, #-prefixed metadata
// lines and RFC 4180 quoting.
type csvEncoder struct {
	w  io.Writer
	cw *csv.Writer
}

func newCSVEncoder(w io.Writer) *csvEncoder {
	return &csvEncoder{w: w, cw: csv.NewWriter(w)}
}

var metaReplacer = strings.NewReplacer("\r", " ", "\n", " ")

func (e *csvEncoder) Begin(meta ExportMeta) error {
	var b strings.Builder
	b.WriteString("\ufeff")
	for _, l := range meta.lines() {
		b.WriteString("# ")
		b.WriteString(l[0])
		b.WriteString(": ")
		b.WriteString(metaReplacer.Replace(l[1]))
		b.WriteString("\n")
	}
	if _, err := io.WriteString(e.w, b.String()); err != nil {
		return err
	}
	return e.cw.Write(ExportHeader)
}

func (e *csvEncoder) WriteRow(row []string) error {
	return e.cw.Write(row)
}

func (e *csvEncoder) EndBatch() error {
	e.cw.Flush()
	if err := e.cw.Error(); err != nil {
		return err
	}
	if f, ok := e.w.(flusher); ok {
		f.Flush()
	}
	return nil
}

func (e *csvEncoder) Close() error {
	return e.EndBatch()
}

func (e *csvEncoder) Abort() {}

// MaxSheetRows is the number of data rows per worksheet; a sheet holds
// excelize.TotalRows rows including its header.
const MaxSheetRows = excelize.TotalRows - 1

// xlsxEncoder streams rows into worksheets named "Residents",
// "Residents 2", ... and adds a "Metadata" sheet. excelize spills rows to
// temporary files, so the workbook reaches w only on Close.
type xlsxEncoder struct {
	w         io.Writer
	f         *excelize.File
	sw        *excelize.StreamWriter
	meta      ExportMeta
	headStyle int

	sheetLimit int // data rows per sheet
	sheets     int
	row        int // rows written to the current sheet, header included
	closed     bool
}

func newXLSXEncoder(w io.Writer) *xlsxEncoder {
	return &xlsxEncoder{w: w, f: excelize.NewFile(), sheetLimit: MaxSheetRows}
}

func sheetName(n int) string {
	if n == 1 {
		return "Residents"
	}
	return "Residents " + strconv.Itoa(n)
}

func (e *xlsxEncoder) Begin(meta ExportMeta) error {
	e.meta = meta
	style, err := e.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	e.headStyle = style

	if err := e.f.SetSheetName("Sheet1", sheetName(1)); err != nil {
		return err
	}
	return e.openSheet(1)
}

func (e *xlsxEncoder) openSheet(n int) error {
	name := sheetName(n)
	if n > 1 {
		if _, err := e.f.NewSheet(name); err != nil {
			return err
		}
	}
	sw, err := e.f.NewStreamWriter(name)
	if err != nil {
		return err
	}
	if err := sw.SetColWidth(1, len(ExportHeader), 18); err != nil {
		return err
	}
	e.sw = sw
	e.sheets = n
	e.row = 0
	return e.setRow(ExportHeader, excelize.RowOpts{StyleID: e.headStyle})
}

func (e *xlsxEncoder) setRow(row []string, opts ...excelize.RowOpts) error {
	e.row++
	cell, err := excelize.CoordinatesToCellName(1, e.row)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	return e.sw.SetRow(cell, values, opts...)
}

func (e *xlsxEncoder) WriteRow(row []string) error {
	if e.row-1 >= e.sheetLimit {
		if err := e.sw.Flush(); err != nil {
			return err
		}
		if err := e.openSheet(e.sheets + 1); err != nil {
			return err
		}
	}
	return e.setRow(row)
}

func (e *xlsxEncoder) EndBatch() error {
	return nil
}

// release closes the workbook and removes its temporary files.
func (e *xlsxEncoder) release() {
	if e.closed {
		return
	}
	e.closed = true
	if err := e.f.Close(); err != nil {
		slog.Warn("close export workbook", "error", err)
	}
}

func (e *xlsxEncoder) Abort() {
	e.release()
}

func (e *xlsxEncoder) Close() error {
	defer e.release()

	if err := e.sw.Flush(); err != nil {
		return err
	}

	const metaSheet = "Metadata"
	if _, err := e.f.NewSheet(metaSheet); err != nil {
		return err
	}
	for i, l := range e.meta.lines() {
		if err := e.f.SetSheetRow(metaSheet, "A"+strconv.Itoa(i+1), &[]interface{}{l[0], l[1]}); err != nil {
			return err
		}
	}
	if err := e.f.SetColWidth(metaSheet, "A", "B", 24); err != nil {
		return err
	}
	e.f.SetActiveSheet(0)

	return e.f.Write(e.w)
}
