package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-catalog-feed/models"
)

// DualWriter fans items out to a CSV file and a JSONL file.
type DualWriter struct {
	csv  *CSVWriter
	json *JSONWriter
}

// NewDualWriter creates both files; a failure closes whatever was opened.
func NewDualWriter(csvFilename, jsonFilename string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("create csv writer: %w", err)
	}

	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("create json writer: %w", err)
	}

	return &DualWriter{csv: csvWriter, json: jsonWriter}, nil
}

// NewWriter opens the writer selected by format ("csv", "json" or "dual").
// For "dual", the JSONL file sits next to filename with a .jsonl extension.
func NewWriter(format, filename string) (OutputWriter, error) {
	switch format {
	case "csv":
		return NewCSVWriter(filename)
	case "json":
		return NewJSONWriter(filename)
	case "dual":
		return NewDualWriter(filename, jsonSibling(filename))
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func jsonSibling(filename string) string {
	if i := strings.LastIndex(filename, "."); i > strings.LastIndex(filename, "/") {
		return filename[:i] + ".jsonl"
	}
	return filename + ".jsonl"
}

// Write appends items to both outputs. Each underlying writer locks itself.
func (dw *DualWriter) Write(items []models.Item) error {
	if err := dw.csv.Write(items); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	if err := dw.json.Write(items); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

// Close closes both writers, reporting every failure.
func (dw *DualWriter) Close() error {
	var errs []error
	if err := dw.csv.Close(); err != nil {
		errs = append(errs, fmt.Errorf("csv: %w", err))
	}
	if err := dw.json.Close(); err != nil {
		errs = append(errs, fmt.Errorf("json: %w", err))
	}
	return errors.Join(errs...)
}

// Validate checks both output files.
func (dw *DualWriter) Validate() error {
	return errors.Join(dw.csv.Validate(), dw.json.Validate())
}
