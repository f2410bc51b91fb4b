package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"postdeck/internal/app"
	"postdeck/internal/calendar"
	"postdeck/internal/failure"
	"postdeck/internal/ics"
	logx "postdeck/pkg/logx"
)

const previewRunes = 48

func readState(ctx context.Context, configPath string) (app.State, error) {
	return app.ReadState(ctx, configPath, logx.NewConsole("warn"))
}

func newEventsCommand(configPath func() string) *cobra.Command {
	var date string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List scheduled calendar events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := readState(cmd.Context(), configPath())
			if err != nil {
				return err
			}
			located := sortedEvents(st.Snapshot.Events)
			if date != "" {
				key := calendar.DateKey(strings.TrimSpace(date))
				if _, _, _, err := calendar.ParseDateKey(key); err != nil {
					return err
				}
				filtered := located[:0]
				for _, l := range located {
					if l.Key == key {
						filtered = append(filtered, l)
					}
				}
				located = filtered
			}
			if asJSON {
				return writeJSON(cmd, located)
			}
			if len(located) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No events")
				return nil
			}
			rows := make([][]string, 0, len(located))
			for _, l := range located {
				ev := l.Event
				rows = append(rows, []string{
					string(l.Key),
					ev.Time,
					ev.Platform,
					string(ev.NoteType),
					string(ev.Status),
					preview(ev.Content),
					ev.ID,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"Date", "Time", "Platform", "Note", "Status", "Content", "ID"},
				rows,
				nil,
			))
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Only show events for this date key (e.g. 2024-2-10)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newPostsCommand(configPath func() string) *cobra.Command {
	var list string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List drafts, published or failed posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := strings.ToLower(strings.TrimSpace(list))
			switch kind {
			case "drafts", "published", "failed":
			default:
				return fmt.Errorf("--list must be drafts, published or failed (got %q)", list)
			}
			st, err := readState(cmd.Context(), configPath())
			if err != nil {
				return err
			}
			snap := st.Snapshot
			if asJSON {
				switch kind {
				case "drafts":
					return writeJSON(cmd, snap.Drafts)
				case "published":
					return writeJSON(cmd, snap.Published)
				default:
					return writeJSON(cmd, snap.Failed)
				}
			}

			var headers []string
			var rows [][]string
			var aligns []columnAlignment
			switch kind {
			case "drafts":
				headers = []string{"ID", "Platform", "Saved", "Content"}
				for _, d := range snap.Drafts {
					rows = append(rows, []string{d.ID, d.Platform, formatTime(d.SavedAt, st.Location), preview(d.Content)})
				}
			case "published":
				headers = []string{"ID", "Platform", "Date", "Time", "Likes", "Comments", "Shares", "URL"}
				aligns = []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
				for _, p := range snap.Published {
					rows = append(rows, []string{
						p.ID, p.Platform, string(p.Date), p.Time,
						strconv.Itoa(p.Engagement.Likes),
						strconv.Itoa(p.Engagement.Comments),
						strconv.Itoa(p.Engagement.Shares),
						p.URL,
					})
				}
			default:
				headers = []string{"ID", "Platform", "Date", "Time", "Reason", "Error"}
				for _, f := range snap.Failed {
					rows = append(rows, []string{f.ID, f.Platform, string(f.Date), f.Time, string(f.Reason), preview(f.Error)})
				}
			}
			if len(rows) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s posts\n", strings.TrimSuffix(kind, "s"))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&list, "list", "drafts", "Which list to show: drafts, published or failed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newExportICSCommand(configPath func() string) *cobra.Command {
	var output string
	var name string
	cmd := &cobra.Command{
		Use:   "export-ics",
		Short: "Export scheduled events as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := readState(cmd.Context(), configPath())
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			skipped, err := ics.Write(w, st.Snapshot.Events, ics.Options{Location: st.Location, Name: name})
			if err != nil {
				return err
			}
			if skipped > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "warn: skipped %d events with an invalid date or time\n", skipped)
			}
			if output != "" && output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().StringVar(&name, "name", "postdeck", "Calendar name")
	return cmd
}

func newLimitsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "limits",
		Short: "Show per-platform character limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limits := failure.Limits()
			rows := make([][]string, 0, len(limits))
			for _, l := range limits {
				rows = append(rows, []string{l.Platform, strconv.Itoa(l.Limit)})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Platform", "Limit"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

// sortedEvents flattens buckets by date, then bucket order.
func sortedEvents(events map[calendar.DateKey][]calendar.Event) []calendar.Located {
	type bucket struct {
		key calendar.DateKey
		day time.Time
	}
	keys := make([]bucket, 0, len(events))
	for k := range events {
		y, m, d, err := calendar.ParseDateKey(k)
		if err != nil {
			continue
		}
		keys = append(keys, bucket{key: k, day: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].day.Before(keys[j].day) })

	var out []calendar.Located
	for _, b := range keys {
		for _, ev := range events[b.key] {
			out = append(out, calendar.Located{Key: b.key, Event: ev})
		}
	}
	return out
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes-1]) + "…"
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("2006-01-02 15:04")
}
