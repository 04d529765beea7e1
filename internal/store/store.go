// Package store persists ingested events in SQLite and answers report
// queries with raw joined rows.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/coctel/internal/event"
	"github.com/ppiankov/coctel/internal/position"
	"github.com/ppiankov/coctel/internal/report"
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db *sql.DB
}

// ProgramRef names a broadcast program an event aired on.
type ProgramRef struct {
	Name    string `json:"name"`
	Channel string `json:"channel"`
	Medium  string `json:"medium"`
}

// PostRef names a social post that carried an event.
type PostRef struct {
	Page   string `json:"page"`
	PostID string `json:"id"`
}

// EventInput is one event with its associations and tags.
type EventInput struct {
	ID         int64
	OccurredAt time.Time
	Location   string
	// Position is nil when the event was not classified.
	Position *int
	// Flag is the raw flag as received; it is coerced when read back.
	Flag     any
	Family   event.Family
	Programs []ProgramRef
	Posts    []PostRef
	Topics   []string
	Actors   []string
}

// Stats summarizes the store contents.
type Stats struct {
	Events       int
	Programs     int
	Pages        int
	Broadcasts   int
	Posts        int
	FirstEvent   time.Time
	LastEvent    time.Time
	Unflagged    int
	Unclassified int
}

var _ report.Source = (*Store)(nil)

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// PRAGMA foreign_keys is per connection; cascades rely on it.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InsertEvent upserts an event and links it to its programs, posts and tags.
// Re-inserting an event replaces its attributes and adds any new links.
func (s *Store) InsertEvent(ctx context.Context, in EventInput) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if in.ID <= 0 {
		return errors.New("id is required")
	}
	if in.OccurredAt.IsZero() {
		return errors.New("occurred_at is required")
	}
	family, err := inferFamily(in)
	if err != nil {
		return err
	}

	var posVal sql.NullInt64
	if in.Position != nil {
		posVal = sql.NullInt64{Int64: int64(*in.Position), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, occurred_at, location, position, flag, family)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			occurred_at = excluded.occurred_at,
			location = excluded.location,
			position = excluded.position,
			flag = excluded.flag,
			family = excluded.family
	`,
		in.ID,
		formatTime(in.OccurredAt),
		strings.TrimSpace(in.Location),
		posVal,
		flagText(in.Flag),
		string(family),
	)
	if err != nil {
		return fmt.Errorf("insert event %d: %w", in.ID, err)
	}

	for _, p := range in.Programs {
		if err := linkProgram(ctx, tx, in.ID, p); err != nil {
			return err
		}
	}
	for _, p := range in.Posts {
		if err := linkPost(ctx, tx, in.ID, p); err != nil {
			return err
		}
	}
	for _, topic := range in.Topics {
		if err := linkTag(ctx, tx, "event_topics", "topic", in.ID, topic); err != nil {
			return err
		}
	}
	for _, actor := range in.Actors {
		if err := linkTag(ctx, tx, "event_actors", "actor", in.ID, actor); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event %d: %w", in.ID, err)
	}
	return nil
}

func inferFamily(in EventInput) (event.Family, error) {
	switch in.Family {
	case event.Broadcast, event.Social:
		return in.Family, nil
	case "":
		if len(in.Posts) > 0 && len(in.Programs) == 0 {
			return event.Social, nil
		}
		return event.Broadcast, nil
	default:
		return "", fmt.Errorf("unknown family %q", in.Family)
	}
}

func linkProgram(ctx context.Context, tx *sql.Tx, eventID int64, p ProgramRef) error {
	name := strings.TrimSpace(p.Name)
	channel := strings.TrimSpace(p.Channel)
	if name == "" || channel == "" {
		return fmt.Errorf("event %d: program name and channel are required", eventID)
	}
	var medium string
	if strings.TrimSpace(p.Medium) != "" {
		m, ok := event.ParseMedium(p.Medium)
		if !ok {
			return fmt.Errorf("event %d: unknown medium %q", eventID, p.Medium)
		}
		medium = string(m)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO programs(name, channel, medium) VALUES(?, ?, ?) ON CONFLICT(name, channel, medium) DO NOTHING",
		name, channel, medium,
	); err != nil {
		return fmt.Errorf("insert program: %w", err)
	}

	var programID int64
	if err := tx.QueryRowContext(ctx,
		"SELECT id FROM programs WHERE name = ? AND channel = ? AND medium = ?",
		name, channel, medium,
	).Scan(&programID); err != nil {
		return fmt.Errorf("lookup program: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO event_programs(event_id, program_id) VALUES(?, ?)",
		eventID, programID,
	); err != nil {
		return fmt.Errorf("link program: %w", err)
	}
	return nil
}

func linkPost(ctx context.Context, tx *sql.Tx, eventID int64, p PostRef) error {
	page := strings.TrimSpace(p.Page)
	postID := strings.TrimSpace(p.PostID)
	if page == "" || postID == "" {
		return fmt.Errorf("event %d: post page and id are required", eventID)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO pages(name) VALUES(?) ON CONFLICT(name) DO NOTHING", page,
	); err != nil {
		return fmt.Errorf("insert page: %w", err)
	}

	var pageID int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM pages WHERE name = ?", page).Scan(&pageID); err != nil {
		return fmt.Errorf("lookup page: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO event_posts(event_id, page_id, post_id) VALUES(?, ?, ?)",
		eventID, pageID, postID,
	); err != nil {
		return fmt.Errorf("link post: %w", err)
	}
	return nil
}

func linkTag(ctx context.Context, tx *sql.Tx, table, column string, eventID int64, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	query := fmt.Sprintf("INSERT OR IGNORE INTO %s(event_id, %s) VALUES(?, ?)", table, column)
	if _, err := tx.ExecContext(ctx, query, eventID, value); err != nil {
		return fmt.Errorf("link %s: %w", column, err)
	}
	return nil
}

// Rows returns the raw joined rows for q: one row per (event, association,
// topic, actor) combination. Tag tables are joined only when q asks for them.
func (s *Store) Rows(ctx context.Context, q report.Query) ([]event.Row, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var out []event.Row
	if q.Sources.HasBroadcast() {
		rows, err := s.queryRows(ctx, q, broadcastQuery(q))
		if err != nil {
			return nil, fmt.Errorf("broadcast rows: %w", err)
		}
		out = append(out, rows...)
	}
	if q.Sources.HasSocial() {
		rows, err := s.queryRows(ctx, q, socialQuery(q))
		if err != nil {
			return nil, fmt.Errorf("social rows: %w", err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

type rowQuery struct {
	sql    string
	args   []any
	social bool
}

func broadcastQuery(q report.Query) rowQuery {
	var b strings.Builder
	b.WriteString(`
		SELECT e.id, e.occurred_at, e.location, e.position, e.flag, e.family,
			p.name, p.channel, p.medium`)
	writeTagColumns(&b, q)
	b.WriteString(`
		FROM events e
		JOIN event_programs ep ON ep.event_id = e.id
		JOIN programs p ON p.id = ep.program_id`)
	writeTagJoins(&b, q)

	where, args := eventFilters(q)
	switch q.Sources.Normalize() & event.SourceBroadcast {
	case event.SourceRadio:
		where = append(where, "p.medium = ?")
		args = append(args, string(event.Radio))
	case event.SourceTV:
		where = append(where, "p.medium = ?")
		args = append(args, string(event.TV))
	}
	writeWhere(&b, where)
	b.WriteString(" ORDER BY e.id, p.medium, p.channel, p.name")
	writeTagOrder(&b, q)

	return rowQuery{sql: b.String(), args: args}
}

func socialQuery(q report.Query) rowQuery {
	var b strings.Builder
	b.WriteString(`
		SELECT e.id, e.occurred_at, e.location, e.position, e.flag, e.family,
			pg.name, ps.post_id`)
	writeTagColumns(&b, q)
	b.WriteString(`
		FROM events e
		JOIN event_posts ps ON ps.event_id = e.id
		JOIN pages pg ON pg.id = ps.page_id`)
	writeTagJoins(&b, q)

	where, args := eventFilters(q)
	writeWhere(&b, where)
	b.WriteString(" ORDER BY e.id, pg.name, ps.post_id")
	writeTagOrder(&b, q)

	return rowQuery{sql: b.String(), args: args, social: true}
}

func writeTagColumns(b *strings.Builder, q report.Query) {
	if q.Topics {
		b.WriteString(", COALESCE(t.topic, '')")
	}
	if q.Actors {
		b.WriteString(", COALESCE(a.actor, '')")
	}
}

func writeTagJoins(b *strings.Builder, q report.Query) {
	if q.Topics {
		b.WriteString(" LEFT JOIN event_topics t ON t.event_id = e.id")
	}
	if q.Actors {
		b.WriteString(" LEFT JOIN event_actors a ON a.event_id = e.id")
	}
}

func writeTagOrder(b *strings.Builder, q report.Query) {
	if q.Topics {
		b.WriteString(", t.topic")
	}
	if q.Actors {
		b.WriteString(", a.actor")
	}
}

func eventFilters(q report.Query) ([]string, []any) {
	var (
		where []string
		args  []any
	)
	if !q.From.IsZero() {
		where = append(where, "e.occurred_at >= ?")
		args = append(args, formatTime(q.From))
	}
	if !q.To.IsZero() {
		where = append(where, "e.occurred_at < ?")
		args = append(args, formatTime(q.To))
	}
	if len(q.Locations) > 0 {
		placeholders := make([]string, len(q.Locations))
		for i, loc := range q.Locations {
			placeholders[i] = "?"
			args = append(args, loc)
		}
		where = append(where, fmt.Sprintf("e.location IN (%s)", strings.Join(placeholders, ",")))
	}
	return where, args
}

func writeWhere(b *strings.Builder, where []string) {
	if len(where) == 0 {
		return
	}
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(where, " AND "))
}

func (s *Store) queryRows(ctx context.Context, q report.Query, rq rowQuery) ([]event.Row, error) {
	rows, err := s.db.QueryContext(ctx, rq.sql, rq.args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []event.Row
	for rows.Next() {
		r, err := scanRow(rows, q, rq.social)
		if err != nil {
			return nil, err
		}
		// The flag filter runs after coercion, which SQL cannot express.
		if !q.Flag.Match(r.Flagged) {
			continue
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(scanner rowScanner, q report.Query, social bool) (event.Row, error) {
	var (
		r          event.Row
		occurredAt string
		family     string
		posVal     sql.NullInt64
		flagVal    sql.NullString
		entityA    string
		entityB    string
		entityC    string
		topic      string
		actor      string
	)

	dest := []any{&r.EventID, &occurredAt, &r.Location, &posVal, &flagVal, &family, &entityA, &entityB}
	if !social {
		dest = append(dest, &entityC)
	}
	if q.Topics {
		dest = append(dest, &topic)
	}
	if q.Actors {
		dest = append(dest, &actor)
	}
	if err := scanner.Scan(dest...); err != nil {
		return event.Row{}, fmt.Errorf("scan row: %w", err)
	}

	var err error
	r.At, err = parseTime(occurredAt)
	if err != nil {
		return event.Row{}, fmt.Errorf("parse occurred_at: %w", err)
	}
	r.Position = position.FromNullable(posVal.Int64, posVal.Valid)
	if flagVal.Valid {
		r.Flagged = event.CoerceFlag(flagVal.String)
	} else {
		r.Flagged = event.CoerceFlag(nil)
	}
	r.Family = event.Family(family)
	r.Topic = topic
	r.Actor = actor

	var e event.Entity
	if social {
		e = event.Post(entityA, entityB)
	} else {
		e = event.Program(entityA, entityB, event.Medium(entityC))
	}
	r.Entity = &e

	return r, nil
}

// PruneOld deletes events older than retainDays together with their links,
// then drops programs and pages no event refers to. Returns the number of
// events removed.
func (s *Store) PruneOld(ctx context.Context, retainDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if retainDays <= 0 {
		return 0, nil
	}

	cutoff := formatTime(time.Now().AddDate(0, 0, -retainDays))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Link and tag rows cascade.
	res, err := tx.ExecContext(ctx, "DELETE FROM events WHERE occurred_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune old events: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM programs WHERE id NOT IN (SELECT program_id FROM event_programs)",
	); err != nil {
		return 0, fmt.Errorf("prune orphan programs: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM pages WHERE id NOT IN (SELECT page_id FROM event_posts)",
	); err != nil {
		return 0, fmt.Errorf("prune orphan pages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

// Stats returns row counts and the time range covered by the store.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if s == nil || s.db == nil {
		return Stats{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		st          Stats
		first, last sql.NullString
	)
	if err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM programs),
			(SELECT COUNT(*) FROM pages),
			(SELECT COUNT(*) FROM event_programs),
			(SELECT COUNT(*) FROM event_posts),
			(SELECT MIN(occurred_at) FROM events),
			(SELECT MAX(occurred_at) FROM events),
			(SELECT COUNT(*) FROM events WHERE position IS NULL)
	`).Scan(&st.Events, &st.Programs, &st.Pages, &st.Broadcasts, &st.Posts, &first, &last, &st.Unclassified); err != nil {
		return Stats{}, fmt.Errorf("read stats: %w", err)
	}

	var err error
	if first.Valid {
		if st.FirstEvent, err = parseTime(first.String); err != nil {
			return Stats{}, fmt.Errorf("parse first event: %w", err)
		}
	}
	if last.Valid {
		if st.LastEvent, err = parseTime(last.String); err != nil {
			return Stats{}, fmt.Errorf("parse last event: %w", err)
		}
	}

	flags, err := s.db.QueryContext(ctx, "SELECT flag FROM events")
	if err != nil {
		return Stats{}, fmt.Errorf("read flags: %w", err)
	}
	defer func() {
		_ = flags.Close()
	}()
	for flags.Next() {
		var v sql.NullString
		if err := flags.Scan(&v); err != nil {
			return Stats{}, fmt.Errorf("scan flag: %w", err)
		}
		var raw any
		if v.Valid {
			raw = v.String
		}
		if !event.CoerceFlag(raw) {
			st.Unflagged++
		}
	}
	if err := flags.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate flags: %w", err)
	}

	return st, nil
}

// Locations returns the distinct event locations, sorted.
func (s *Store) Locations(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT location FROM events WHERE location != ''")
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var locs []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locs = append(locs, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	sort.Strings(locs)
	return locs, nil
}

// flagText stores the raw flag as text so that coercion happens in one place
// on read.
func flagText(raw any) sql.NullString {
	switch v := raw.(type) {
	case nil:
		return sql.NullString{}
	case string:
		return sql.NullString{String: v, Valid: true}
	case *string:
		if v == nil {
			return sql.NullString{}
		}
		return sql.NullString{String: *v, Valid: true}
	case bool:
		return sql.NullString{String: strconv.FormatBool(v), Valid: true}
	case int:
		return sql.NullString{String: strconv.Itoa(v), Valid: true}
	case int64:
		return sql.NullString{String: strconv.FormatInt(v, 10), Valid: true}
	case float64:
		return sql.NullString{String: strconv.FormatFloat(v, 'f', -1, 64), Valid: true}
	default:
		return sql.NullString{String: fmt.Sprint(v), Valid: true}
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(timeLayout, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
