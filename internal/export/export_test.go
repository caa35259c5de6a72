package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/newsbrief/newsbrief/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func sampleHeadlines() []types.Headline {
	return []types.Headline{
		{
			ID: "a1", Title: "Floods, and more floods", URL: "https://news.example.com/world/1",
			SourceName: "Example", Snippet: types.StringPtr("Heavy rain."), ImageURL: types.StringPtr("https://img.example.com/1.jpg"),
		},
		{ID: "b2", Title: "Markets rally", URL: "https://news.example.com/business/2", SourceName: "Example"},
	}
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	ex := NewJSONExporter(&buf, testLogger)
	if err := ex.Write(sampleHeadlines()[:1]); err != nil {
		t.Fatal(err)
	}
	if err := ex.Write(sampleHeadlines()[1:]); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatal("JSON exporter wrote before Close")
	}
	if err := ex.Close(); err != nil {
		t.Fatal(err)
	}

	var got []types.Headline
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, buf.String())
	}
	if len(got) != 2 || got[1].Title != "Markets rally" {
		t.Errorf("got %+v", got)
	}
	if !strings.Contains(buf.String(), `"source": "Example"`) {
		t.Errorf("missing source field:\n%s", buf.String())
	}
}

func TestJSONExporterEmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	ex := NewJSONExporter(&buf, testLogger)
	if err := ex.Close(); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty export = %q, want []", buf.String())
	}
}

func TestJSONLExporter(t *testing.T) {
	var buf bytes.Buffer
	ex := NewJSONLExporter(&buf, testLogger)
	if err := ex.Write(sampleHeadlines()); err != nil {
		t.Fatal(err)
	}
	if err := ex.Close(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var h types.Headline
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatal(err)
	}
	if h.ID != "a1" || types.Deref(h.Snippet) != "Heavy rain." {
		t.Errorf("first line = %+v", h)
	}
}

func TestCSVExporter(t *testing.T) {
	var buf bytes.Buffer
	ex := NewCSVExporter(&buf, testLogger)
	if err := ex.Write(sampleHeadlines()); err != nil {
		t.Fatal(err)
	}
	if err := ex.Close(); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(CSVHeader, ",") {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "Floods, and more floods" {
		t.Errorf("title with comma not preserved: %q", rows[1][1])
	}
	if rows[2][4] != "" || rows[2][5] != "" {
		t.Errorf("nil optional fields should be empty, got %q %q", rows[2][4], rows[2][5])
	}
}

func TestCSVExporterEmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	ex := NewCSVExporter(&buf, testLogger)
	if err := ex.Close(); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != strings.Join(CSVHeader, ",") {
		t.Errorf("empty CSV = %q", buf.String())
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New("xml", &bytes.Buffer{}, testLogger); err == nil {
		t.Error("expected error for unsupported format")
	}
	for _, f := range Formats {
		ex, err := New(f, &bytes.Buffer{}, testLogger)
		if err != nil {
			t.Errorf("New(%q): %v", f, err)
			continue
		}
		if ex.Name() != f {
			t.Errorf("Name() = %q, want %q", ex.Name(), f)
		}
	}
}

func TestNewFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "headlines.jsonl")
	ex, err := NewFile("jsonl", path, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if err := ex.Write(sampleHeadlines()); err != nil {
		t.Fatal(err)
	}
	if err := ex.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), "\n") != 2 {
		t.Errorf("file content = %q", data)
	}
}

func TestNewFileUnknownFormatLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headlines.xml")
	if _, err := NewFile("xml", path, testLogger); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file should have been removed, stat err = %v", err)
	}
}
