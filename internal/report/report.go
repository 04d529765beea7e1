// Package report runs declarative reports over rows from the query layer.
//
// A report is one pass of the pipeline: scope rows to the requested sources,
// collapse them into countable units per source family, group each family,
// combine the families from raw counts, compute percentages and optionally
// rank. Runs share no state and may execute concurrently.
package report

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/ppiankov/coctel/internal/aggregate"
	"github.com/ppiankov/coctel/internal/dedup"
	"github.com/ppiankov/coctel/internal/event"
	"github.com/ppiankov/coctel/internal/rank"
	"github.com/ppiankov/coctel/internal/resolve"
)

// Result is the outcome of a report run.
type Result struct {
	Spec    Spec
	Query   Query
	Table   aggregate.Table
	Ranking []rank.Entry
}

// Runner executes reports against a Source.
type Runner struct {
	Source Source
	Keyer  aggregate.Keyer
	Logger *log.Logger
}

// Run fetches the rows for q and computes spec over them. When the query
// layer fails, Run returns an empty result together with the error.
func (r *Runner) Run(ctx context.Context, q Query, spec Spec) (Result, error) {
	empty := Result{Spec: spec, Query: q, Table: aggregate.Table{Dims: spec.Dims, Policy: spec.Percent}}

	if err := spec.Validate(); err != nil {
		return empty, err
	}

	sources, ok := q.Sources.Intersect(spec.Sources)
	if !ok {
		r.logger().Debug("sources disjoint", "report", spec.Name, "query", q.Sources, "report_sources", spec.Sources)
		return empty, nil
	}
	q.Sources = sources
	q.Topics = spec.Has(aggregate.Topic)
	q.Actors = spec.Has(aggregate.Actor)
	empty.Query = q

	rows, err := r.Source.Rows(ctx, q)
	if err != nil {
		return empty, fmt.Errorf("query rows: %w", err)
	}

	keyer := r.Keyer
	keyer.IncludeUndefined = keyer.IncludeUndefined || spec.IncludeUndefined

	res, err := Compute(rows, sources, spec, keyer)
	if err != nil {
		return empty, err
	}
	res.Query = q

	r.logger().Debug("report computed",
		"report", spec.Name,
		"rows", len(rows),
		"buckets", len(res.Table.Rows),
		"total", res.Table.Total(),
	)
	return res, nil
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		return log.Default()
	}
	return r.Logger
}

// Compute runs spec over an already fetched row snapshot.
func Compute(rows []event.Row, sources event.SourceSet, spec Spec, k aggregate.Keyer) (Result, error) {
	res := Result{Spec: spec}
	if err := spec.Validate(); err != nil {
		return res, err
	}

	grain := spec.EffectiveGrain()
	scoped := resolve.Scope(rows, sources)
	if grain.Unique() {
		// An event seen on a program and on a post is still one unit. The
		// first association in row order carries it.
		scoped = dedup.Collapse(scoped, grain)
	}
	broadcast, social := resolve.Split(scoped)

	var tables []aggregate.Table
	for _, family := range [][]event.Row{broadcast, social} {
		t, err := aggregate.Group(dedup.Collapse(family, grain), spec.Dims, k)
		if err != nil {
			return res, fmt.Errorf("group %s: %w", spec.Name, err)
		}
		tables = append(tables, t)
	}

	merged, err := aggregate.Combine(spec.Percent, tables...)
	if err != nil {
		return res, fmt.Errorf("combine %s: %w", spec.Name, err)
	}
	res.Table = merged

	if spec.Top != nil {
		ranked, err := rank.TopN(merged, *spec.Top)
		if err != nil {
			return res, fmt.Errorf("rank %s: %w", spec.Name, err)
		}
		res.Table = ranked.Table
		res.Ranking = ranked.Ranking
	}
	return res, nil
}
