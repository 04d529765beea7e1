package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ppiankov/coctel/internal/event"
	"github.com/ppiankov/coctel/internal/store"
)

var (
	ingestDryRun      bool
	ingestSkipInvalid bool
)

// maxLineSize bounds one JSONL record.
const maxLineSize = 4 << 20

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.jsonl>",
	Short: "Load events from a JSON Lines file (\"-\" for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE:  ingestAction,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "validate records without writing them")
	ingestCmd.Flags().BoolVar(&ingestSkipInvalid, "skip-invalid", false, "log and skip invalid records instead of stopping")
	rootCmd.AddCommand(ingestCmd)
}

// ingestRecord is one line of the ingest file.
type ingestRecord struct {
	ID       int64              `json:"id"`
	At       string             `json:"at"`
	Location string             `json:"location"`
	Position *int               `json:"position"`
	Flag     any                `json:"flag"`
	Family   string             `json:"family"`
	Programs []store.ProgramRef `json:"programs"`
	Posts    []store.PostRef    `json:"posts"`
	Topics   []string           `json:"topics"`
	Actors   []string           `json:"actors"`
}

type ingestSummary struct {
	Events   int
	Skipped  int
	Programs int
	Posts    int
}

func ingestAction(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	var db *store.Store
	if !ingestDryRun {
		db, err = store.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() { _ = db.Close() }()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sum, err := ingest(ctx, in, db, loc, logger)
	if err != nil {
		return err
	}

	verb := "Ingested"
	if ingestDryRun {
		verb = "Validated"
	}
	fmt.Printf("%s %s events (%s program links, %s posts)",
		verb, humanize.Comma(int64(sum.Events)), humanize.Comma(int64(sum.Programs)), humanize.Comma(int64(sum.Posts)))
	if sum.Skipped > 0 {
		fmt.Printf(", skipped %s invalid", humanize.Comma(int64(sum.Skipped)))
	}
	fmt.Println(".")
	return nil
}

// ingest reads JSONL records from r and stores them. A nil db validates only.
func ingest(ctx context.Context, r io.Reader, db *store.Store, loc *time.Location, logger *log.Logger) (ingestSummary, error) {
	var sum ingestSummary

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}

		ev, err := decodeRecord(raw, loc)
		if err == nil && db != nil {
			err = db.InsertEvent(ctx, ev)
		}
		if err != nil {
			if !ingestSkipInvalid {
				return sum, fmt.Errorf("line %d: %w", line, err)
			}
			logger.Warn("skipping record", "line", line, "err", err)
			sum.Skipped++
			continue
		}

		sum.Events++
		sum.Programs += len(ev.Programs)
		sum.Posts += len(ev.Posts)
	}
	if err := scanner.Err(); err != nil {
		return sum, fmt.Errorf("read input: %w", err)
	}

	logger.Debug("ingest finished", "lines", line, "events", sum.Events, "skipped", sum.Skipped)
	return sum, nil
}

func decodeRecord(raw []byte, loc *time.Location) (store.EventInput, error) {
	var rec ingestRecord
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return store.EventInput{}, fmt.Errorf("decode record: %w", err)
	}

	at, err := parseEventTime(rec.At, loc)
	if err != nil {
		return store.EventInput{}, err
	}

	return store.EventInput{
		ID:         rec.ID,
		OccurredAt: at,
		Location:   rec.Location,
		Position:   rec.Position,
		Flag:       rec.Flag,
		Family:     event.Family(strings.ToLower(strings.TrimSpace(rec.Family))),
		Programs:   rec.Programs,
		Posts:      rec.Posts,
		Topics:     rec.Topics,
		Actors:     rec.Actors,
	}, nil
}

// parseEventTime accepts RFC 3339 or a local timestamp in loc.
func parseEventTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("at is required")
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse at %q: want RFC 3339 or YYYY-MM-DD[ HH:MM:SS]", s)
}
