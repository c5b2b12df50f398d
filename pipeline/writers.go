package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/aluiziolira/go-catalog-feed/models"
)

var csvHeader = []string{"id", "title", "price", "category", "rating_rate", "rating_count", "image", "description"}

// fileSink owns an output file and the buffer in front of it.
type fileSink struct {
	kind string
	file *os.File
	buf  *bufio.Writer
	mu   sync.Mutex
}

func openSink(kind, filename string) (*fileSink, error) {
	if dir := filepath.Dir(filename); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create %s file: %w", kind, err)
	}
	return &fileSink{kind: kind, file: f, buf: bufio.NewWriter(f)}, nil
}

func (s *fileSink) close(flush func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("flush %s writer: %w", s.kind, err)
	}
	return s.file.Close()
}

// validate reports an output file that never received a byte.
func (s *fileSink) validate() error {
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s file: %w", s.kind, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s file %s is empty", s.kind, s.file.Name())
	}
	return nil
}

// CSVWriter writes one row per item below a fixed header.
type CSVWriter struct {
	sink *fileSink
	csv  *csv.Writer
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	sink, err := openSink("csv", filename)
	if err != nil {
		return nil, err
	}
	cw := &CSVWriter{sink: sink, csv: csv.NewWriter(sink.buf)}
	if err := cw.writeRows([][]string{csvHeader}); err != nil {
		sink.file.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return cw, nil
}

// Write appends items to the CSV output.
func (cw *CSVWriter) Write(items []models.Item) error {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, csvRecord(item))
	}

	cw.sink.mu.Lock()
	defer cw.sink.mu.Unlock()
	return cw.writeRows(rows)
}

func (cw *CSVWriter) writeRows(rows [][]string) error {
	if err := cw.csv.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return cw.sink.buf.Flush()
}

func csvRecord(item models.Item) []string {
	return []string{
		strconv.Itoa(item.ID),
		item.Title,
		item.Price.StringFixed(2),
		item.Category,
		strconv.FormatFloat(item.Rating.Rate, 'f', -1, 64),
		strconv.Itoa(item.Rating.Count),
		item.Image,
		item.Description,
	}
}

// Close flushes and closes the file.
func (cw *CSVWriter) Close() error {
	return cw.sink.close(func() error {
		cw.csv.Flush()
		if err := cw.csv.Error(); err != nil {
			return err
		}
		return cw.sink.buf.Flush()
	})
}

// Validate ensures the file has content.
func (cw *CSVWriter) Validate() error {
	return cw.sink.validate()
}

// jsonRecord is the JSONL shape of an item. Prices keep two decimals as a
// string so no float rounding reaches consumers.
type jsonRecord struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Price       string  `json:"price"`
	Category    string  `json:"category"`
	RatingRate  float64 `json:"rating_rate"`
	RatingCount int     `json:"rating_count"`
	Image       string  `json:"image,omitempty"`
	Description string  `json:"description,omitempty"`
}

func newJSONRecord(item models.Item) jsonRecord {
	return jsonRecord{
		ID:          item.ID,
		Title:       item.Title,
		Price:       item.Price.StringFixed(2),
		Category:    item.Category,
		RatingRate:  item.Rating.Rate,
		RatingCount: item.Rating.Count,
		Image:       item.Image,
		Description: item.Description,
	}
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	sink    *fileSink
	encoder *json.Encoder
}

// NewJSONWriter creates filename for JSONL output.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	sink, err := openSink("json", filename)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{sink: sink, encoder: json.NewEncoder(sink.buf)}, nil
}

// Write appends one line per item.
func (jw *JSONWriter) Write(items []models.Item) error {
	jw.sink.mu.Lock()
	defer jw.sink.mu.Unlock()

	for _, item := range items {
		if err := jw.encoder.Encode(newJSONRecord(item)); err != nil {
			return fmt.Errorf("encode item %d: %w", item.ID, err)
		}
	}
	return jw.sink.buf.Flush()
}

// Close flushes and closes the file.
func (jw *JSONWriter) Close() error {
	return jw.sink.close(jw.sink.buf.Flush)
}

// Validate ensures the file has content.
func (jw *JSONWriter) Validate() error {
	return jw.sink.validate()
}
