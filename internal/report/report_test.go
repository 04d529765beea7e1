package report

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ppiankov/coctel/internal/aggregate"
	"github.com/ppiankov/coctel/internal/bucket"
	"github.com/ppiankov/coctel/internal/event"
	"github.com/ppiankov/coctel/internal/position"
	"github.com/ppiankov/coctel/internal/rank"
)

var lima = time.FixedZone("PET", -5*3600)

func ent(e event.Entity) *event.Entity { return &e }

func at(day int) time.Time {
	return time.Date(2024, 1, day, 12, 0, 0, 0, lima)
}

func testRunner(rows []event.Row) *Runner {
	return &Runner{
		Source: Rows(rows),
		Keyer:  aggregate.Keyer{Bucketer: bucket.New(lima), Regions: map[string]string{"Lima": "Centro"}},
		Logger: log.New(io.Discard),
	}
}

// scenarioRows is two events: event 1 on programs A and B, event 2 on A.
func scenarioRows() []event.Row {
	return []event.Row{
		{EventID: 1, At: at(1), Location: "Lima", Position: position.Favor, Flagged: true, Family: event.Broadcast,
			Entity: ent(event.Program("A", "Latina", event.TV))},
		{EventID: 1, At: at(1), Location: "Lima", Position: position.Favor, Flagged: true, Family: event.Broadcast,
			Entity: ent(event.Program("B", "Latina", event.TV))},
		{EventID: 2, At: at(1), Location: "Lima", Position: position.PotentialContra, Flagged: false, Family: event.Broadcast,
			Entity: ent(event.Program("A", "Latina", event.TV))},
	}
}

func TestRunScenarioLocationFlag(t *testing.T) {
	spec := Spec{
		Name:    "scenario",
		Dims:    []aggregate.Dimension{aggregate.Location, aggregate.Flag},
		Percent: aggregate.OfTotal(),
	}
	res, err := testRunner(scenarioRows()).Run(context.Background(), Query{}, spec)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	flagged, _ := res.Table.Lookup("Lima", event.FlaggedLabel)
	unflagged, _ := res.Table.Lookup("Lima", event.UnflaggedLabel)
	if flagged.Count != 2 || unflagged.Count != 1 {
		t.Fatalf("counts = %d/%d, want 2/1", flagged.Count, unflagged.Count)
	}
	if aggregate.Round(flagged.Percent, 1) != 66.7 || aggregate.Round(unflagged.Percent, 1) != 33.3 {
		t.Errorf("percent = %v/%v", flagged.Percent, unflagged.Percent)
	}
}

func TestRunBounceWithJoinDuplicates(t *testing.T) {
	rows := scenarioRows()
	// Topic join fan-out duplicates every program link.
	rows = append(rows, rows...)
	spec := Spec{Name: "weekly", Dims: []aggregate.Dimension{aggregate.Week}}

	res, err := testRunner(rows).Run(context.Background(), Query{}, spec)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Table.Count("2024-01-05"); got != 3 {
		t.Errorf("week count = %d, want 3", got)
	}
}

func TestRunCrossProductTopics(t *testing.T) {
	var rows []event.Row
	for _, p := range []string{"A", "B"} {
		for _, topic := range []string{"salud", "economia"} {
			rows = append(rows, event.Row{
				EventID: 1, At: at(2), Location: "Lima", Family: event.Broadcast,
				Entity: ent(event.Program(p, "RPP", event.Radio)), Topic: topic, Actor: "x",
			}, event.Row{
				EventID: 1, At: at(2), Location: "Lima", Family: event.Broadcast,
				Entity: ent(event.Program(p, "RPP", event.Radio)), Topic: topic, Actor: "y",
			})
		}
	}
	spec := Spec{Name: "topics", Dims: []aggregate.Dimension{aggregate.Program, aggregate.Topic}}

	res, err := testRunner(rows).Run(context.Background(), Query{}, spec)
	if err != nil {
		t.Fatal(err)
	}
	if res.Table.Total() != 4 || len(res.Table.Rows) != 4 {
		t.Errorf("total = %d over %d rows, want 4 over 4", res.Table.Total(), len(res.Table.Rows))
	}

	// Without topic in the key the fan-out collapses back to one unit per program.
	spec = Spec{Name: "programs", Dims: []aggregate.Dimension{aggregate.Program}}
	res, err = testRunner(rows).Run(context.Background(), Query{}, spec)
	if err != nil {
		t.Fatal(err)
	}
	if res.Table.Total() != 2 {
		t.Errorf("program total = %d, want 2", res.Table.Total())
	}
}

func TestRunCombinesFamiliesFromRawCounts(t *testing.T) {
	rows := scenarioRows()
	rows = append(rows,
		event.Row{EventID: 1, At: at(1), Location: "Lima", Flagged: true, Family: event.Broadcast,
			Entity: ent(event.Post("Latina Noticias", "p1"))},
		event.Row{EventID: 3, At: at(3), Location: "Lima", Flagged: false, Family: event.Social,
			Entity: ent(event.Post("RPP", "p2"))},
		event.Row{EventID: 3, At: at(3), Location: "Lima", Flagged: false, Family: event.Social,
			Entity: ent(event.Post("RPP", "p3"))},
	)
	spec, _ := Lookup("coctel_by_location")

	res, err := testRunner(rows).Run(context.Background(), Query{}, spec)
	if err != nil {
		t.Fatal(err)
	}
	// Broadcast: 2 flagged, 1 unflagged. Social: 1 flagged, 2 unflagged.
	flagged, _ := res.Table.Lookup("Lima", event.FlaggedLabel)
	if flagged.Count != 3 || flagged.Percent != 50 {
		t.Errorf("flagged = %+v, want 3 at 50%%", flagged)
	}

	broadcastOnly, err := testRunner(rows).Run(context.Background(), Query{Sources: event.SourceBroadcast}, spec)
	if err != nil {
		t.Fatal(err)
	}
	if broadcastOnly.Table.Total() != 3 {
		t.Errorf("broadcast total = %d, want 3", broadcastOnly.Table.Total())
	}
}

func TestCoctelByProgramCollapsesByName(t *testing.T) {
	rows := []event.Row{
		{EventID: 1, At: at(1), Location: "Lima", Flagged: true, Family: event.Broadcast,
			Entity: ent(event.Program("Noticiero", "Latina", event.TV))},
		{EventID: 1, At: at(1), Location: "Lima", Flagged: true, Family: event.Broadcast,
			Entity: ent(event.Program("Noticiero", "ATV", event.TV))},
		{EventID: 1, At: at(1), Location: "Lima", Flagged: true, Family: event.Social,
			Entity: ent(event.Post("Latina", "p1"))},
	}
	spec, ok := Lookup("coctel_by_program")
	if !ok {
		t.Fatal("coctel_by_program missing from catalog")
	}
	res, err := testRunner(rows).Run(context.Background(), Query{}, spec)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Table.Count("Noticiero", event.FlaggedLabel); got != 1 {
		t.Errorf("Noticiero = %d, want 1", got)
	}

	// The same rows counted per channel bounce.
	res, err = testRunner(rows).Run(context.Background(), Query{}, Spec{
		Name: "by_channel", Dims: []aggregate.Dimension{aggregate.Channel},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Table.Total() != 3 {
		t.Errorf("channel total = %d, want 3", res.Table.Total())
	}
}

func TestUniqueEventsCountsOncePerEventAcrossFamilies(t *testing.T) {
	rows := []event.Row{
		{EventID: 1, At: at(1), Location: "Lima", Flagged: true, Family: event.Broadcast,
			Entity: ent(event.Program("La Rotativa", "RPP", event.Radio))},
		{EventID: 1, At: at(1), Location: "Lima", Flagged: true, Family: event.Social,
			Entity: ent(event.Post("RPP", "p1"))},
		{EventID: 1, At: at(1), Location: "Lima", Flagged: true, Family: event.Social,
			Entity: ent(event.Post("RPP", "p2"))},
		{EventID: 2, At: at(2), Location: "Lima", Flagged: false, Family: event.Social,
			Entity: ent(event.Post("RPP", "p3"))},
	}
	spec, ok := Lookup("unique_events_by_week")
	if !ok {
		t.Fatal("unique_events_by_week missing from catalog")
	}

	res, err := testRunner(rows).Run(context.Background(), Query{}, spec)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Table.Count("2024-01-05", event.FlaggedLabel); got != 1 {
		t.Errorf("flagged = %d, want 1", got)
	}
	if res.Table.Total() != 2 {
		t.Errorf("total = %d, want 2", res.Table.Total())
	}

	// Social only still sees event 1 through its posts.
	social, err := testRunner(rows).Run(context.Background(), Query{Sources: event.SourceSocial}, spec)
	if err != nil {
		t.Fatal(err)
	}
	if social.Table.Total() != 2 {
		t.Errorf("social total = %d, want 2", social.Table.Total())
	}
}

func TestRunTopTopics(t *testing.T) {
	var rows []event.Row
	add := func(id int64, day int, topic string) {
		rows = append(rows, event.Row{
			EventID: id, At: at(day), Location: "Lima", Family: event.Broadcast,
			Entity: ent(event.Program("A", "RPP", event.Radio)), Topic: topic,
		})
	}
	add(1, 1, "salud")
	add(2, 1, "salud")
	add(3, 8, "economia")
	add(4, 8, "seguridad")
	add(5, 9, "seguridad")
	add(6, 9, "educacion")

	spec, _ := Lookup("top_topics")
	spec = spec.WithTop(2)
	res, err := testRunner(rows).Run(context.Background(), Query{}, spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Ranking) != 2 || res.Ranking[0].Key != "salud" || res.Ranking[1].Key != "seguridad" {
		t.Errorf("ranking = %+v", res.Ranking)
	}
	for _, r := range res.Table.Rows {
		topic := res.Table.Value(r, aggregate.Topic)
		if topic != "salud" && topic != "seguridad" {
			t.Errorf("unexpected topic %q in ranked table", topic)
		}
	}
}

type failingSource struct{}

func (failingSource) Rows(context.Context, Query) ([]event.Row, error) {
	return nil, errors.New("db locked")
}

func TestRunSourceFailureReturnsEmptyTable(t *testing.T) {
	r := &Runner{Source: failingSource{}, Logger: log.New(io.Discard)}
	spec, _ := Lookup("coctel_by_week")
	res, err := r.Run(context.Background(), Query{}, spec)
	if err == nil {
		t.Fatal("expected error")
	}
	if !res.Table.Empty() || len(res.Table.Dims) != 2 {
		t.Errorf("result table = %+v", res.Table)
	}
}

func TestRunDisjointSourcesIsEmpty(t *testing.T) {
	spec, _ := Lookup("coctel_by_program")
	res, err := testRunner(scenarioRows()).Run(context.Background(), Query{Sources: event.SourceSocial}, spec)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Table.Empty() {
		t.Errorf("expected empty table, got %+v", res.Table.Rows)
	}
}

func TestRunEmptyInput(t *testing.T) {
	for _, spec := range Catalog() {
		res, err := testRunner(nil).Run(context.Background(), Query{}, spec)
		if err != nil {
			t.Errorf("%s: %v", spec.Name, err)
			continue
		}
		if !res.Table.Empty() || len(res.Ranking) != 0 {
			t.Errorf("%s: expected empty result", spec.Name)
		}
	}
}

func TestCatalogValid(t *testing.T) {
	specs := Catalog()
	if len(specs) == 0 {
		t.Fatal("empty catalog")
	}
	for i, s := range specs {
		if err := s.Validate(); err != nil {
			t.Errorf("%s: %v", s.Name, err)
		}
		if s.Title == "" {
			t.Errorf("%s: missing title", s.Name)
		}
		if i > 0 && specs[i-1].Name >= s.Name {
			t.Errorf("catalog not sorted at %s", s.Name)
		}
	}

	// Catalog values must not be shared between calls.
	a, _ := Lookup("top_topics")
	a.Top.N = 99
	b, _ := Lookup("top_topics")
	if b.Top.N == 99 {
		t.Error("catalog spec mutated through a previous lookup")
	}
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
	}{
		{"no name", Spec{Dims: []aggregate.Dimension{aggregate.Week}}},
		{"no dims", Spec{Name: "x"}},
		{"unknown dim", Spec{Name: "x", Dims: []aggregate.Dimension{"colour"}}},
		{"repeated dim", Spec{Name: "x", Dims: []aggregate.Dimension{aggregate.Week, aggregate.Week}}},
		{"percent outside key", Spec{Name: "x", Dims: []aggregate.Dimension{aggregate.Week}, Percent: aggregate.Within(aggregate.Location)}},
	}
	for _, tt := range tests {
		if err := tt.spec.Validate(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestSpecWithRankMode(t *testing.T) {
	spec, _ := Lookup("top_topics")
	latest, err := spec.WithRankMode(rank.Latest)
	if err != nil {
		t.Fatalf("WithRankMode: %v", err)
	}
	if latest.Top.Mode != rank.Latest {
		t.Errorf("mode = %s, want latest", latest.Top.Mode)
	}
	if spec.Top.Mode != rank.Cumulative {
		t.Error("catalog spec mutated through WithRankMode")
	}

	unranked, _ := Lookup("coctel_by_week")
	if _, err := unranked.WithRankMode(rank.Latest); err == nil {
		t.Error("expected error ranking an unranked report")
	}
}
