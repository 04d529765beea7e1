package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ppiankov/coctel/internal/store"
)

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what the store holds",
	RunE:  statsAction,
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "terminal", "output format: terminal, json")
	rootCmd.AddCommand(statsCmd)
}

func statsAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	stats, err := db.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	switch statsFormat {
	case "json":
		return printStatsJSON(os.Stdout, stats)
	case "terminal", "":
		printStats(os.Stdout, stats, time.Now())
		return nil
	default:
		return fmt.Errorf("unknown format %q (want terminal or json)", statsFormat)
	}
}

type jsonStatsOutput struct {
	Events       int     `json:"events"`
	Programs     int     `json:"programs"`
	Pages        int     `json:"pages"`
	Broadcasts   int     `json:"broadcast_links"`
	Posts        int     `json:"posts"`
	Bounce       float64 `json:"bounce"`
	Unflagged    int     `json:"unflagged"`
	Unclassified int     `json:"unclassified"`
	FirstEvent   string  `json:"first_event,omitempty"`
	LastEvent    string  `json:"last_event,omitempty"`
}

func printStatsJSON(w io.Writer, st store.Stats) error {
	out := jsonStatsOutput{
		Events:       st.Events,
		Programs:     st.Programs,
		Pages:        st.Pages,
		Broadcasts:   st.Broadcasts,
		Posts:        st.Posts,
		Bounce:       bounce(st),
		Unflagged:    st.Unflagged,
		Unclassified: st.Unclassified,
	}
	if !st.FirstEvent.IsZero() {
		out.FirstEvent = st.FirstEvent.Format(time.RFC3339)
		out.LastEvent = st.LastEvent.Format(time.RFC3339)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printStats(w io.Writer, st store.Stats, now time.Time) {
	if st.Events == 0 {
		fmt.Fprintln(w, "No events found. Run 'coctel ingest' first.")
		return
	}

	fmt.Fprintf(w, "coctel stats — %s events\n\n", humanize.Comma(int64(st.Events)))

	fmt.Fprintln(w, "--- Associations ---")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Programs:       %8s\n", humanize.Comma(int64(st.Programs)))
	fmt.Fprintf(w, "  Pages:          %8s\n", humanize.Comma(int64(st.Pages)))
	fmt.Fprintf(w, "  Program links:  %8s\n", humanize.Comma(int64(st.Broadcasts)))
	fmt.Fprintf(w, "  Posts:          %8s\n", humanize.Comma(int64(st.Posts)))
	fmt.Fprintf(w, "  Bounce:         %8.2f per event\n", bounce(st))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Events ---")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Sin coctel:     %8s  (%.1f%%)\n", humanize.Comma(int64(st.Unflagged)), pct(st.Unflagged, st.Events))
	fmt.Fprintf(w, "  Unclassified:   %8s  (%.1f%%)\n", humanize.Comma(int64(st.Unclassified)), pct(st.Unclassified, st.Events))
	fmt.Fprintf(w, "  First:          %s\n", st.FirstEvent.Format("2006-01-02"))
	fmt.Fprintf(w, "  Last:           %s (%s)\n", st.LastEvent.Format("2006-01-02"), humanize.RelTime(st.LastEvent, now, "ago", "from now"))
}

// bounce is the mean number of associations per event.
func bounce(st store.Stats) float64 {
	if st.Events == 0 {
		return 0
	}
	return float64(st.Broadcasts+st.Posts) / float64(st.Events)
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
