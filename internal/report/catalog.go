package report

import (
	"sort"

	"github.com/ppiankov/coctel/internal/aggregate"
	"github.com/ppiankov/coctel/internal/dedup"
	"github.com/ppiankov/coctel/internal/event"
	"github.com/ppiankov/coctel/internal/rank"
)

// DefaultTopN is the ranking size of catalog reports.
const DefaultTopN = 5

// Catalog returns the built-in reports, sorted by name. Each call returns
// fresh values.
func Catalog() []Spec {
	specs := []Spec{
		{
			Name:    "coctel_by_location",
			Title:   "Con/sin coctel por ubicación",
			Dims:    []aggregate.Dimension{aggregate.Location, aggregate.Flag},
			Percent: aggregate.Within(aggregate.Location),
		},
		{
			Name:    "coctel_by_region",
			Title:   "Con/sin coctel por macro-región",
			Dims:    []aggregate.Dimension{aggregate.Region, aggregate.Flag},
			Percent: aggregate.Within(aggregate.Region),
		},
		{
			Name:    "coctel_by_week",
			Title:   "Con/sin coctel por semana",
			Dims:    []aggregate.Dimension{aggregate.Week, aggregate.Flag},
			Percent: aggregate.Within(aggregate.Week),
		},
		{
			Name:    "coctel_by_month",
			Title:   "Con/sin coctel por mes",
			Dims:    []aggregate.Dimension{aggregate.Month, aggregate.Flag},
			Percent: aggregate.Within(aggregate.Month),
		},
		{
			// Broadcast only, counted once per program name: re-airs of
			// the same program on other channels do not bounce.
			Name:    "coctel_by_program",
			Title:   "Con/sin coctel por programa",
			Dims:    []aggregate.Dimension{aggregate.Program, aggregate.Flag},
			Percent: aggregate.Within(aggregate.Program),
			Sources: event.SourceBroadcast,
			Grain:   dedup.Grain{Broadcast: dedup.PerName},
		},
		{
			Name:    "coctel_by_source",
			Title:   "Con/sin coctel por fuente",
			Dims:    []aggregate.Dimension{aggregate.Source, aggregate.Flag},
			Percent: aggregate.Within(aggregate.Source),
		},
		{
			Name:    "source_share",
			Title:   "Participación por fuente",
			Dims:    []aggregate.Dimension{aggregate.Source},
			Percent: aggregate.OfTotal(),
		},
		{
			Name:    "medium_by_week",
			Title:   "Radio y TV por semana",
			Dims:    []aggregate.Dimension{aggregate.Week, aggregate.Medium},
			Percent: aggregate.Within(aggregate.Week),
			Sources: event.SourceBroadcast,
		},
		{
			Name:    "position_by_week",
			Title:   "Posición por semana",
			Dims:    []aggregate.Dimension{aggregate.Week, aggregate.Position},
			Percent: aggregate.Within(aggregate.Week),
		},
		{
			Name:    "stance_by_location",
			Title:   "A favor / en contra por ubicación",
			Dims:    []aggregate.Dimension{aggregate.Location, aggregate.Stance},
			Percent: aggregate.Within(aggregate.Location),
		},
		{
			Name:    "stance_by_month",
			Title:   "A favor / en contra por mes",
			Dims:    []aggregate.Dimension{aggregate.Month, aggregate.Stance},
			Percent: aggregate.Within(aggregate.Month),
		},
		{
			Name:    "unique_events_by_week",
			Title:   "Noticias únicas por semana",
			Dims:    []aggregate.Dimension{aggregate.Week, aggregate.Flag},
			Percent: aggregate.Within(aggregate.Week),
			Grain:   dedup.Grain{Broadcast: dedup.PerEvent, Social: dedup.PerEvent},
		},
		{
			Name:    "top_topics",
			Title:   "Temas más frecuentes",
			Dims:    []aggregate.Dimension{aggregate.Week, aggregate.Topic},
			Percent: aggregate.Within(aggregate.Week),
			Top:     &rank.Options{By: aggregate.Topic, N: DefaultTopN},
		},
		{
			Name:    "top_actors",
			Title:   "Actores más mencionados",
			Dims:    []aggregate.Dimension{aggregate.Month, aggregate.Actor},
			Percent: aggregate.Within(aggregate.Month),
			Top:     &rank.Options{By: aggregate.Actor, N: DefaultTopN, Mode: rank.Latest},
		},
		{
			Name:    "top_channels",
			Title:   "Canales y páginas con más noticias",
			Dims:    []aggregate.Dimension{aggregate.Week, aggregate.Channel},
			Percent: aggregate.Within(aggregate.Week),
			Top:     &rank.Options{By: aggregate.Channel, N: DefaultTopN},
		},
		{
			Name:    "top_locations",
			Title:   "Ubicaciones con más noticias",
			Dims:    []aggregate.Dimension{aggregate.Week, aggregate.Location},
			Percent: aggregate.Within(aggregate.Week),
			Top:     &rank.Options{By: aggregate.Location, N: DefaultTopN},
		},
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Lookup returns the catalog report with the given name.
func Lookup(name string) (Spec, bool) {
	for _, s := range Catalog() {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}
