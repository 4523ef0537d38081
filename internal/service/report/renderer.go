// Package report renders request statistics as PDF documents and XLSX
// spreadsheets.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fruitcounter/internal/apperr"
	"fruitcounter/internal/logger"
	"fruitcounter/internal/model"
)

const (
	SingleReportPrefix  = "fruit_report_"
	HistoryReportPrefix = "history_report_"

	timestampLayout = "20060102_150405"
	displayLayout   = "2006-01-02 15:04:05"

	summarySheet = "Summary"
	countsSheet  = "Fruit counts"
	historySheet = "History"
)

// HistoryHeader is the first row of every history report.
var HistoryHeader = []string{"Timestamp", "Filename", "Total fruits", "Processing time (s)"}

// Renderer writes report artifacts into a single output directory.
type Renderer struct {
	outputDir string
	logger    *logger.Logger
	now       func() time.Time
}

// NewRenderer creates a Renderer and ensures outputDir exists.
func NewRenderer(outputDir string, logger *logger.Logger) (*Renderer, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}
	return &Renderer{outputDir: outputDir, logger: logger, now: time.Now}, nil
}

// RenderSingle writes a report for one request and returns its path.
func (r *Renderer) RenderSingle(rec model.StatisticsRecord, entry model.HistoryEntry, format Format) (string, error) {
	var write func(io.Writer) error
	switch format {
	case Document:
		write = func(w io.Writer) error { return r.writePDF(w, rec, entry) }
	case Spreadsheet:
		write = func(w io.Writer) error { return writeSingleXLSX(w, rec, entry) }
	default:
		return "", &apperr.UnsupportedFormatError{Format: format.String()}
	}

	path, err := r.create(SingleReportPrefix, format.Extension(), write)
	if err != nil {
		return "", err
	}
	r.logger.Info("Generated %s report %s", format, filepath.Base(path))
	return path, nil
}

// RenderHistory writes one spreadsheet row per entry, in the given order.
// An empty history still yields a valid file with the header row.
func (r *Renderer) RenderHistory(entries []model.HistoryEntry) (string, error) {
	path, err := r.create(HistoryReportPrefix, Spreadsheet.Extension(), func(w io.Writer) error {
		return writeHistoryXLSX(w, entries)
	})
	if err != nil {
		return "", err
	}
	r.logger.Info("Generated history report %s with %d rows", filepath.Base(path), len(entries))
	return path, nil
}

// create opens a new file named prefix+timestamp+ext, appending _N when the
// name is taken, and removes it again if write fails.
func (r *Renderer) create(prefix, ext string, write func(io.Writer) error) (string, error) {
	base := prefix + r.now().Format(timestampLayout)

	var (
		f    *os.File
		path string
		err  error
	)
	for i := 0; ; i++ {
		name := base + ext
		if i > 0 {
			name = base + "_" + strconv.Itoa(i) + ext
		}
		path = filepath.Join(r.outputDir, name)
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create report file: %w", err)
		}
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write report %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close report %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

func (r *Renderer) writePDF(w io.Writer, rec model.StatisticsRecord, entry model.HistoryEntry) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, "Fruit Counting Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 8, "Date: "+r.now().Format(displayLayout), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	rows := [][2]string{
		{"Total fruits", strconv.Itoa(rec.TotalCount)},
		{"Image", tr(filepath.Base(entry.Filename))},
		{"Processing time", fmt.Sprintf("%.2f s", entry.ProcessingTime)},
	}
	title := titleCaser()
	rec.CountsByClass.Each(func(class string, n int) {
		rows = append(rows, [2]string{tr(title.String(class)), strconv.Itoa(n)})
	})

	pdf.SetFillColor(128, 128, 128)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(90, 9, "Metric", "1", 0, "C", true, 0, "")
	pdf.CellFormat(90, 9, "Value", "1", 1, "C", true, 0, "")

	pdf.SetFillColor(245, 245, 220)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 11)
	for _, row := range rows {
		pdf.CellFormat(90, 8, row[0], "1", 0, "C", true, 0, "")
		pdf.CellFormat(90, 8, row[1], "1", 1, "C", true, 0, "")
	}

	return pdf.Output(w)
}

func writeSingleXLSX(w io.Writer, rec model.StatisticsRecord, entry model.HistoryEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return err
	}
	summary := [][]any{
		{"Metric", "Value"},
		{"Total fruits", rec.TotalCount},
		{"Image", filepath.Base(entry.Filename)},
		{"Processing time (s)", fmt.Sprintf("%.2f", entry.ProcessingTime)},
	}
	if err := setRows(f, summarySheet, summary); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 25); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "B", "B", 20); err != nil {
		return err
	}

	if _, err := f.NewSheet(countsSheet); err != nil {
		return err
	}
	counts := [][]any{{"Fruit", "Count"}}
	title := titleCaser()
	rec.CountsByClass.Each(func(class string, n int) {
		counts = append(counts, []any{title.String(class), n})
	})
	if err := setRows(f, countsSheet, counts); err != nil {
		return err
	}
	if err := f.SetColWidth(countsSheet, "A", "A", 20); err != nil {
		return err
	}

	return f.Write(w)
}

func writeHistoryXLSX(w io.Writer, entries []model.HistoryEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), historySheet); err != nil {
		return err
	}

	header := make([]any, len(HistoryHeader))
	for i, h := range HistoryHeader {
		header[i] = h
	}
	rows := [][]any{header}
	for _, e := range entries {
		rows = append(rows, []any{
			e.Timestamp.UTC().Format(displayLayout),
			e.Filename,
			e.TotalCount,
			e.ProcessingTime,
		})
	}
	if err := setRows(f, historySheet, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(historySheet, "A", "B", 22); err != nil {
		return err
	}

	return f.Write(w)
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// titleCaser is built per report; a Caser is not safe for concurrent use.
func titleCaser() cases.Caser {
	return cases.Title(language.English)
}
