package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/coctel/internal/event"
)

func TestQueryKeyCanonical(t *testing.T) {
	a := Query{Locations: []string{"Lima", "Cusco"}, Sources: event.SourceBroadcast}
	b := Query{Locations: []string{"Cusco", "Lima"}, Sources: event.SourceRadio | event.SourceTV}
	if a.Key() != b.Key() {
		t.Errorf("keys differ:\n%q\n%q", a.Key(), b.Key())
	}
	c := a
	c.Flag = WithFlag
	if a.Key() == c.Key() {
		t.Error("flag filter should change the key")
	}
	if (Query{}).Key() != (Query{Sources: event.AllSources}).Key() {
		t.Error("empty source filter should equal all sources")
	}
}

func TestQueryMatch(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	q := Query{From: from, To: to, Locations: []string{"Lima"}, Flag: WithoutFlag}

	tests := []struct {
		name string
		row  event.Row
		want bool
	}{
		{"match", event.Row{At: from, Location: "Lima"}, true},
		{"before", event.Row{At: from.Add(-time.Second), Location: "Lima"}, false},
		{"upper bound exclusive", event.Row{At: to, Location: "Lima"}, false},
		{"other location", event.Row{At: from, Location: "Cusco"}, false},
		{"flagged", event.Row{At: from, Location: "Lima", Flagged: true}, false},
	}
	for _, tt := range tests {
		if got := q.Match(tt.row); got != tt.want {
			t.Errorf("%s: Match = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRowsSourceClearsUnrequestedTags(t *testing.T) {
	src := Rows{{EventID: 1, Topic: "salud", Actor: "x"}}
	rows, err := src.Rows(context.Background(), Query{Topics: true})
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].Topic != "salud" || rows[0].Actor != "" {
		t.Errorf("row = %+v", rows[0])
	}
}

func TestParseFlagFilter(t *testing.T) {
	tests := []struct {
		in   string
		want FlagFilter
	}{
		{"", AnyFlag},
		{"con", WithFlag},
		{"SIN", WithoutFlag},
		{"con_coctel", WithFlag},
	}
	for _, tt := range tests {
		got, err := ParseFlagFilter(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFlagFilter(%q) = %v, %v", tt.in, got, err)
		}
	}
	if _, err := ParseFlagFilter("maybe"); err == nil {
		t.Error("expected error")
	}
}

type fakeRegions map[string][]string

func (f fakeRegions) Expand(name string) ([]string, bool) {
	locs, ok := f[name]
	return locs, ok
}

func TestParamsQuery(t *testing.T) {
	lima := time.FixedZone("PET", -5*3600)
	regions := fakeRegions{"sur": {"Arequipa", "Cusco"}}

	q, err := Params{
		From:      "2024-01-01",
		To:        "2024-01-31",
		Locations: []string{"Lima", "Cusco"},
		Regions:   []string{"sur"},
		Sources:   "radio,social",
		Flag:      "sin",
	}.Query(lima, regions)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if !q.From.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, lima)) {
		t.Errorf("from = %v", q.From)
	}
	// The upper date is inclusive: the bound is the next midnight.
	if !q.To.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, lima)) {
		t.Errorf("to = %v", q.To)
	}
	if strings.Join(q.Locations, ",") != "Arequipa,Cusco,Lima" {
		t.Errorf("locations = %v", q.Locations)
	}
	if q.Sources != event.SourceRadio|event.SourceSocial {
		t.Errorf("sources = %v", q.Sources)
	}
	if q.Flag != WithoutFlag {
		t.Errorf("flag = %v", q.Flag)
	}
}

func TestParamsQueryRFC3339(t *testing.T) {
	q, err := Params{From: "2024-01-01T10:00:00Z", To: "2024-01-01T12:00:00Z"}.Query(nil, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if q.To.Sub(q.From) != 2*time.Hour {
		t.Errorf("window = %v, want 2h", q.To.Sub(q.From))
	}
}

func TestParamsQueryErrors(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"bad from", Params{From: "yesterday"}},
		{"bad to", Params{To: "2024-13-01"}},
		{"inverted range", Params{From: "2024-02-01", To: "2024-01-01"}},
		{"bad source", Params{Sources: "print"}},
		{"bad flag", Params{Flag: "maybe"}},
		{"unknown region", Params{Regions: []string{"norte"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.p.Query(time.UTC, fakeRegions{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := (Params{Regions: []string{"sur"}}).Query(time.UTC, nil); err == nil {
		t.Error("expected error without region resolver")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" Lima, ,Cusco ,")
	if strings.Join(got, "|") != "Lima|Cusco" {
		t.Errorf("split = %v", got)
	}
	if SplitList("") != nil {
		t.Error("empty input should give nil")
	}
}
