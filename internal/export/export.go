// Package export writes headlines as JSON, JSON lines or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/newsbrief/newsbrief/internal/types"
)

// Exporter is the interface for all headline writers.
type Exporter interface {
	// Write emits a batch of headlines.
	Write(headlines []types.Headline) error

	// Close flushes pending output. It does not close the underlying writer
	// unless the exporter opened it.
	Close() error

	// Name returns the format identifier.
	Name() string
}

// Formats lists the supported format names.
var Formats = []string{"json", "jsonl", "csv"}

// CSVHeader is the column order of CSV output.
var CSVHeader = []string{"id", "title", "url", "source", "snippet", "image_url"}

// --- JSON ---

// JSONExporter buffers headlines and writes one indented JSON array on Close.
type JSONExporter struct {
	w         io.Writer
	headlines []types.Headline
	mu        sync.Mutex
	logger    *slog.Logger
}

// NewJSONExporter creates a JSON array exporter.
func NewJSONExporter(w io.Writer, logger *slog.Logger) *JSONExporter {
	return &JSONExporter{
		w:         w,
		headlines: make([]types.Headline, 0),
		logger:    logger.With("component", "json_export"),
	}
}

func (e *JSONExporter) Name() string { return "json" }

func (e *JSONExporter) Write(headlines []types.Headline) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.headlines = append(e.headlines, headlines...)
	e.logger.Debug("headlines buffered", "count", len(headlines), "total", len(e.headlines))
	return nil
}

func (e *JSONExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	enc := json.NewEncoder(e.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e.headlines); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	e.logger.Debug("JSON written", "headlines", len(e.headlines))
	return nil
}

// --- JSONL ---

// JSONLExporter streams one headline object per line.
type JSONLExporter struct {
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLExporter creates a newline-delimited JSON exporter.
func NewJSONLExporter(w io.Writer, logger *slog.Logger) *JSONLExporter {
	return &JSONLExporter{
		enc:    json.NewEncoder(w),
		logger: logger.With("component", "jsonl_export"),
	}
}

func (e *JSONLExporter) Name() string { return "jsonl" }

func (e *JSONLExporter) Write(headlines []types.Headline) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, h := range headlines {
		if err := e.enc.Encode(h); err != nil {
			return fmt.Errorf("encode JSONL: %w", err)
		}
		e.count++
	}
	return nil
}

func (e *JSONLExporter) Close() error {
	e.logger.Debug("JSONL written", "headlines", e.count)
	return nil
}

// --- CSV ---

// CSVExporter writes a header row followed by one row per headline.
type CSVExporter struct {
	writer      *csv.Writer
	wroteHeader bool
	mu          sync.Mutex
	count       int
	logger      *slog.Logger
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(w io.Writer, logger *slog.Logger) *CSVExporter {
	return &CSVExporter{
		writer: csv.NewWriter(w),
		logger: logger.With("component", "csv_export"),
	}
}

func (e *CSVExporter) Name() string { return "csv" }

func (e *CSVExporter) Write(headlines []types.Headline) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.header(); err != nil {
		return err
	}
	for _, h := range headlines {
		row := []string{h.ID, h.Title, h.URL, h.SourceName, types.Deref(h.Snippet), types.Deref(h.ImageURL)}
		if err := e.writer.Write(row); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
		e.count++
	}

	e.writer.Flush()
	return e.writer.Error()
}

func (e *CSVExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// An empty export still gets its header row.
	if err := e.header(); err != nil {
		return err
	}
	e.writer.Flush()
	e.logger.Debug("CSV written", "headlines", e.count)
	return e.writer.Error()
}

func (e *CSVExporter) header() error {
	if e.wroteHeader {
		return nil
	}
	e.wroteHeader = true
	if err := e.writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	return nil
}

// New creates the exporter for format writing to w.
func New(format string, w io.Writer, logger *slog.Logger) (Exporter, error) {
	switch format {
	case "json":
		return NewJSONExporter(w, logger), nil
	case "jsonl":
		return NewJSONLExporter(w, logger), nil
	case "csv":
		return NewCSVExporter(w, logger), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// fileExporter closes the file it owns after the wrapped exporter.
type fileExporter struct {
	Exporter
	file *os.File
}

func (f *fileExporter) Close() error {
	err := f.Exporter.Close()
	if cerr := f.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// NewFile creates path (and its directory) and returns an exporter writing
// format into it.
func NewFile(format, path string, logger *slog.Logger) (Exporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	ex, err := New(format, f, logger)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	logger.Info("exporting headlines", "format", format, "path", path)
	return &fileExporter{Exporter: ex, file: f}, nil
}
