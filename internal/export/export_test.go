package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/greencampus/internal/metrics"
)

func sampleData() metrics.Snapshot {
	snap := metrics.DefaultSnapshot()
	snap.Waste = metrics.Series{
		{Period: "Week 1", Current: 5, Previous: 0},
	}
	return snap
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

// ============================================================
// CSV
// ============================================================

func TestToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.csv")

	if err := ToCSV(sampleData(), path); err != nil {
		t.Fatalf("ToCSV: %v", err)
	}
	records := readCSV(t, path)

	// header + energy 4+1 + water 4+1 + waste 1+1
	if len(records) != 13 {
		t.Fatalf("expected 13 rows, got %d", len(records))
	}

	expectedHeader := []string{"Category", "Period", "Current", "Previous", "Change (%)", "Unit"}
	for i, h := range expectedHeader {
		if records[0][i] != h {
			t.Fatalf("header[%d] = %q, want %q", i, records[0][i], h)
		}
	}

	row := records[1]
	if row[0] != "Energy" || row[1] != "Week 1" || row[2] != "120" || row[3] != "100" {
		t.Fatalf("unexpected first row %v", row)
	}
	if row[4] != "20.00" {
		t.Fatalf("Change = %q, want 20.00", row[4])
	}
	if row[5] != "kWh" {
		t.Fatalf("Unit = %q, want kWh", row[5])
	}

	total := records[5]
	if total[1] != "Total" || total[2] != "505" || total[3] != "435" || total[4] != "16.09" {
		t.Fatalf("unexpected energy total %v", total)
	}
}

func TestToCSVUndefinedChangeIsBlank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zero.csv")
	if err := ToCSV(sampleData(), path); err != nil {
		t.Fatal(err)
	}
	records := readCSV(t, path)
	waste := records[11]
	if waste[0] != "Waste" || waste[4] != "" {
		t.Fatalf("zero baseline should leave change blank: %v", waste)
	}
	if strings.Contains(strings.Join(waste, ","), "NaN") || strings.Contains(strings.Join(waste, ","), "Inf") {
		t.Fatal("NaN leaked into the export")
	}
}

func TestToCSVEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")

	if err := ToCSV(metrics.Snapshot{}, path); err != nil {
		t.Fatal(err)
	}
	records := readCSV(t, path)
	// header + one total per category
	if len(records) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(records))
	}
}

func TestToCSVBadPath(t *testing.T) {
	if err := ToCSV(metrics.Snapshot{}, "/nonexistent/dir/file.csv"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestToCSVSpecialCharacters(t *testing.T) {
	snap := metrics.Snapshot{Energy: metrics.Series{
		{Period: `Week "1", spring`, Current: 1, Previous: 1},
	}}
	path := filepath.Join(t.TempDir(), "special.csv")

	if err := ToCSV(snap, path); err != nil {
		t.Fatal(err)
	}
	records := readCSV(t, path)
	if records[1][1] != `Week "1", spring` {
		t.Fatalf("period mangled: %q", records[1][1])
	}
}

// ============================================================
// JSON
// ============================================================

func TestToJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.json")

	if err := ToJSON(metrics.DefaultSnapshot(), path); err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var result jsonExport
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if result.GreenScore != 43 {
		t.Fatalf("green_score = %d, want 43", result.GreenScore)
	}
	if result.Rating != "Needs Improvement" {
		t.Fatalf("rating = %q", result.Rating)
	}
	if len(result.Categories) != 3 {
		t.Fatalf("categories = %d, want 3", len(result.Categories))
	}

	energy := result.Categories[0]
	if energy.Category != "energy" || energy.Unit != "kWh" {
		t.Fatalf("unexpected category %+v", energy)
	}
	if energy.CurrentTotal != 505 || energy.PreviousTotal != 435 {
		t.Fatalf("unexpected totals %v / %v", energy.CurrentTotal, energy.PreviousTotal)
	}
	if energy.ChangePercent == nil || *energy.ChangePercent != 16.09 {
		t.Fatalf("unexpected change %v", energy.ChangePercent)
	}
	if len(energy.Records) != 4 || energy.Records[0].Period != "Week 1" {
		t.Fatalf("unexpected records %+v", energy.Records)
	}
}

func TestToJSONUndefinedChangeIsNull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zero.json")
	if err := ToJSON(sampleData(), path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	var result jsonExport
	json.Unmarshal(data, &result)

	waste := result.Categories[2]
	if waste.ChangePercent != nil {
		t.Fatalf("expected null change, got %v", *waste.ChangePercent)
	}
	if waste.Records[0].ChangePercent != nil {
		t.Fatal("expected null row change")
	}
	if !strings.Contains(string(data), `"change_percent": null`) {
		t.Fatal("undefined change should serialize as null")
	}
}

func TestToJSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := ToJSON(metrics.Snapshot{}, path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	var result jsonExport
	json.Unmarshal(data, &result)

	if result.GreenScore != 100 {
		t.Fatalf("empty snapshot should score 100, got %d", result.GreenScore)
	}
	for _, c := range result.Categories {
		if c.Records == nil || len(c.Records) != 0 {
			t.Fatalf("records should be an empty list for %s", c.Category)
		}
	}
}

func TestToJSONBadPath(t *testing.T) {
	if err := ToJSON(metrics.Snapshot{}, "/nonexistent/dir/file.json"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestToJSONPrettyPrinted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pretty.json")
	ToJSON(metrics.Snapshot{}, path)

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "\n") {
		t.Fatal("JSON should be pretty-printed with newlines")
	}
	if !strings.Contains(string(data), "  ") {
		t.Fatal("JSON should be indented with spaces")
	}
}

func TestToJSONValidTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ts.json")
	ToJSON(metrics.DefaultSnapshot(), path)

	data, _ := os.ReadFile(path)
	var result jsonExport
	json.Unmarshal(data, &result)

	if _, err := time.Parse(time.RFC3339, result.ExportedAt); err != nil {
		t.Fatalf("exported_at is not valid RFC3339: %q", result.ExportedAt)
	}
}
