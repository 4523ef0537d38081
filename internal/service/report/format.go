package report

import (
	"strings"

	"fruitcounter/internal/apperr"
)

// Format selects the artifact type for a single-request report.
type Format int

const (
	Document Format = iota + 1
	Spreadsheet
)

// ParseFormat accepts the names used by the HTTP and CLI surfaces.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf", "document":
		return Document, nil
	case "excel", "xlsx", "spreadsheet":
		return Spreadsheet, nil
	default:
		return 0, &apperr.UnsupportedFormatError{Format: s}
	}
}

func (f Format) String() string {
	switch f {
	case Document:
		return "pdf"
	case Spreadsheet:
		return "excel"
	default:
		return "unknown"
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	switch f {
	case Document:
		return ".pdf"
	case Spreadsheet:
		return ".xlsx"
	default:
		return ""
	}
}
