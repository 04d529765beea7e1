package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/ppiankov/coctel/internal/config"
	"github.com/ppiankov/coctel/internal/report"
	"github.com/ppiankov/coctel/internal/store"
)

const pipelineEvents = `{"id":1,"at":"2024-01-03 10:00:00","location":"Lima","position":1,"flag":"si","programs":[{"name":"A","channel":"Latina","medium":"tv"},{"name":"B","channel":"Latina","medium":"tv"}],"topics":["salud"]}
{"id":2,"at":"2024-01-04T09:00:00-05:00","location":"Lima","position":5,"flag":false,"programs":[{"name":"A","channel":"Latina","medium":"TV"}],"topics":["economia"]}

# social
{"id":3,"at":"2024-01-06","location":"Cusco","flag":null,"family":"social","posts":[{"page":"RPP","id":"p1"},{"page":"RPP","id":"p2"}],"topics":["economia"]}
`

func TestPipelineIngestReport(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "coctel.db")
	writeTestConfig(t, tmpDir, dbPath)
	writeTestRegions(t, tmpDir)
	eventsPath := filepath.Join(tmpDir, "events.jsonl")
	if err := os.WriteFile(eventsPath, []byte(pipelineEvents), 0o644); err != nil {
		t.Fatalf("write events: %v", err)
	}

	useConfigDir(t, tmpDir)
	resetReportFlags(t)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	ingestOutput, err := captureStdout(t, func() error {
		return ingestAction(cmd, []string{eventsPath})
	})
	if err != nil {
		t.Fatalf("ingest action: %v", err)
	}
	requireContains(t, ingestOutput, "Ingested 3 events (3 program links, 2 posts).")

	st := openStoreForPipelineTest(t, dbPath)
	stats, err := st.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats after ingest: %v", err)
	}
	if stats.Events != 3 || stats.Programs != 2 || stats.Pages != 1 {
		t.Fatalf("stats after ingest = %+v", stats)
	}
	_ = st.Close()

	// Terminal: event 1 bounces on two programs, event 3 on two posts.
	reportFormat = "terminal"
	terminalOutput, err := captureStdout(t, func() error {
		return reportAction(cmd, []string{"coctel_by_location"})
	})
	if err != nil {
		t.Fatalf("report terminal: %v", err)
	}
	requireContains(t, terminalOutput, "coctel — Con/sin coctel por ubicación")
	requireContains(t, terminalOutput, "66.7")
	requireContains(t, terminalOutput, "33.3")
	requireContains(t, terminalOutput, "100.0")
	requireContains(t, terminalOutput, "Total: 5")

	// JSON: a Saturday belongs to the next Friday's week.
	reportFormat = "json"
	jsonOutput, err := captureStdout(t, func() error {
		return reportAction(cmd, []string{"coctel_by_week"})
	})
	if err != nil {
		t.Fatalf("report json: %v", err)
	}
	var doc struct {
		Report string `json:"report"`
		Rows   []struct {
			Key   map[string]string `json:"key"`
			Count int               `json:"count"`
		} `json:"rows"`
	}
	if err := json.Unmarshal([]byte(jsonOutput), &doc); err != nil {
		t.Fatalf("parse json output: %v\noutput:\n%s", err, jsonOutput)
	}
	weeks := map[string]int{}
	for _, r := range doc.Rows {
		weeks[r.Key["week"]] += r.Count
	}
	if weeks["2024-01-05"] != 3 || weeks["2024-01-12"] != 2 {
		t.Fatalf("weeks = %v", weeks)
	}

	// CSV: ranking keeps every row of the winners, best key first.
	reportFormat = "csv"
	csvOutput, err := captureStdout(t, func() error {
		return reportAction(cmd, []string{"top_topics"})
	})
	if err != nil {
		t.Fatalf("report csv: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(csvOutput)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("csv records = %d, want 4:\n%s", len(records), csvOutput)
	}
	if strings.Join(records[0], ",") != "week,topic,count,%" {
		t.Fatalf("csv header = %v", records[0])
	}
	if records[1][1] != "economia" || records[3][1] != "salud" {
		t.Fatalf("csv order = %v", records)
	}

	// Latest ranking looks at the last week only: salud scores 0 there.
	reportFormat = "markdown"
	reportRank = "latest"
	latestOutput, err := captureStdout(t, func() error {
		return reportAction(cmd, []string{"top_topics"})
	})
	if err != nil {
		t.Fatalf("report latest: %v", err)
	}
	requireContains(t, latestOutput, "# Top topic (latest)")
	requireContains(t, latestOutput, "1. **economia** 2")
	requireContains(t, latestOutput, "2. **salud** 0")
	reportRank = ""

	// Flag filter.
	reportFormat = "markdown"
	reportFlag = "sin"
	markdownOutput, err := captureStdout(t, func() error {
		return reportAction(cmd, []string{"coctel_by_location"})
	})
	if err != nil {
		t.Fatalf("report markdown: %v", err)
	}
	requireContains(t, markdownOutput, "| Lima | sin_coctel | 1 | 100.0 |")
	if strings.Contains(markdownOutput, "Cusco") {
		t.Fatalf("flag filter kept Cusco:\n%s", markdownOutput)
	}
	reportFlag = ""

	// Regions: Lima belongs to no region.
	reportFormat = "terminal"
	regionOutput, err := captureStdout(t, func() error {
		return reportAction(cmd, []string{"coctel_by_region"})
	})
	if err != nil {
		t.Fatalf("report region: %v", err)
	}
	requireContains(t, regionOutput, "Sur")
	if strings.Contains(regionOutput, "Lima") {
		t.Fatalf("unmapped location in region report:\n%s", regionOutput)
	}

	// Empty window.
	reportFrom = "2025-01-01"
	emptyOutput, err := captureStdout(t, func() error {
		return reportAction(cmd, []string{"coctel_by_location"})
	})
	if err != nil {
		t.Fatalf("report empty: %v", err)
	}
	requireContains(t, emptyOutput, "No data.")
	reportFrom = ""

	doctorOutput, err := captureStdout(t, func() error {
		return doctorAction(cmd, nil)
	})
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, doctorOutput)
	}
	requireContains(t, doctorOutput, "regions.yaml (1 regions)")
	requireContains(t, doctorOutput, "unmapped: 1 locations")
	requireContains(t, doctorOutput, "broadcast: 2 events bounce into 3 units (1.50 per event, most 2 on event 1)")
	requireContains(t, doctorOutput, "social: 1 events bounce into 2 units (2.00 per event, most 2 on event 3)")
	requireContains(t, doctorOutput, "All checks passed.")

	pruneDays = 30
	t.Cleanup(func() { pruneDays = 0 })
	pruneOutput, err := captureStdout(t, func() error {
		return pruneAction(cmd, nil)
	})
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	requireContains(t, pruneOutput, "Pruned 3 events older than 30 days.")
}

func TestReportErrors(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestConfig(t, tmpDir, filepath.Join(tmpDir, "coctel.db"))
	useConfigDir(t, tmpDir)
	resetReportFlags(t)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	if err := reportAction(cmd, []string{"nope"}); err == nil || !strings.Contains(err.Error(), "unknown report") {
		t.Errorf("unknown report err = %v", err)
	}

	reportFormat = "xml"
	if err := reportAction(cmd, []string{"coctel_by_week"}); err == nil {
		t.Error("expected error for unknown format")
	}
	reportFormat = "terminal"

	reportRegions = []string{"Atlantida"}
	if err := reportAction(cmd, []string{"coctel_by_week"}); err == nil || !strings.Contains(err.Error(), "unknown region") {
		t.Errorf("unknown region err = %v", err)
	}
	reportRegions = nil

	reportRank = "latest"
	if err := reportAction(cmd, []string{"coctel_by_week"}); err == nil || !strings.Contains(err.Error(), "has no ranking") {
		t.Errorf("rank on unranked report err = %v", err)
	}
	reportRank = "best"
	if err := reportAction(cmd, []string{"top_topics"}); err == nil || !strings.Contains(err.Error(), "unknown ranking mode") {
		t.Errorf("unknown rank mode err = %v", err)
	}
	reportRank = ""

	reportPrecision = 3
	if err := reportAction(cmd, []string{"coctel_by_week"}); err == nil {
		t.Error("expected error for precision out of range")
	}
}

func TestInitCreatesExampleConfig(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "conf")
	useConfigDir(t, tmpDir)

	out, err := captureStdout(t, func() error { return initAction(nil, nil) })
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	requireContains(t, out, "Initialized "+tmpDir+" with 2 config files.")

	// The example files load cleanly.
	if _, err := loadConfig(); err != nil {
		t.Fatalf("load example config: %v", err)
	}

	out, err = captureStdout(t, func() error { return initAction(nil, nil) })
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	requireContains(t, out, "already initialized")
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	useConfigDir(t, t.TempDir())
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Report.Timezone != "America/Lima" {
		t.Errorf("timezone = %q", cfg.Report.Timezone)
	}
}

func TestLoadConfigRegionsWithoutConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestRegions(t, tmpDir)
	useConfigDir(t, tmpDir)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Regions.ByLocation()["Cusco"]; got != "Sur" {
		t.Fatalf("region of Cusco = %q, want Sur (regions %v)", got, cfg.Regions)
	}
	if cfg.Report.Timezone != config.DefaultTimezone {
		t.Errorf("timezone = %q, want default", cfg.Report.Timezone)
	}

	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	q, err := report.Params{Regions: []string{"sur"}}.Query(loc, cfg.Regions)
	if err != nil {
		t.Fatalf("region filter: %v", err)
	}
	if strings.Join(q.Locations, ",") != "Arequipa,Cusco" {
		t.Errorf("locations = %v", q.Locations)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, config.DefaultRegionsFile), []byte("regions:\n  Sur: []\n"), 0o644); err != nil {
		t.Fatalf("rewrite regions: %v", err)
	}
	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error for a region without locations")
	}
}

func useConfigDir(t *testing.T, dir string) {
	t.Helper()
	old := configDir
	t.Cleanup(func() { configDir = old })
	configDir = dir
}

func resetReportFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		reportFrom, reportTo = "", ""
		reportLocations, reportRegions = nil, nil
		reportSource, reportFlag = "", ""
		reportTop, reportPrecision = -1, -1
		reportRank = ""
		reportFormat = "terminal"
		reportAllPositions = false
		noColor = true
	}
	reset()
	t.Cleanup(reset)
}

func writeTestConfig(t *testing.T, dir, dbPath string) {
	t.Helper()

	content := "storage:\n" +
		"  path: \"" + dbPath + "\"\n" +
		"report:\n" +
		"  timezone: \"America/Lima\"\n" +
		"  top_n: 5\n" +
		"  precision: 1\n" +
		"log:\n" +
		"  level: error\n"

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
}

func writeTestRegions(t *testing.T, dir string) {
	t.Helper()

	content := `regions:
  Sur:
    - Cusco
    - Arequipa
`
	path := filepath.Join(dir, "regions.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test regions: %v", err)
	}
}

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("open stdout pipe: %v", err)
	}

	os.Stdout = writer
	runErr := fn()
	_ = writer.Close()
	os.Stdout = oldStdout

	out, readErr := io.ReadAll(reader)
	_ = reader.Close()
	if readErr != nil {
		t.Fatalf("read stdout pipe: %v", readErr)
	}
	return string(out), runErr
}

func openStoreForPipelineTest(t *testing.T, path string) *store.Store {
	t.Helper()

	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()

	if !strings.Contains(got, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, got)
	}
}
