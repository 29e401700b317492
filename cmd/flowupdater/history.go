package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/DonovanMods/flowupdater/internal/domain"
	"github.com/DonovanMods/flowupdater/internal/storage/config"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var historyLimit int

type historyJSONEntry struct {
	RunID         string  `json:"run_id"`
	Dir           string  `json:"dir"`
	ForgeVersion  string  `json:"forge_version"`
	State         string  `json:"state"`
	FailedIn      string  `json:"failed_in,omitempty"`
	ModsInstalled int     `json:"mods_installed"`
	ModsSkipped   int     `json:"mods_skipped"`
	StaleDeleted  int     `json:"stale_deleted"`
	Error         string  `json:"error,omitempty"`
	StartedAt     string  `json:"started_at"`
	Seconds       float64 `json:"seconds"`
}

var historyCmd = &cobra.Command{
	Use:   "history [instance.yaml]",
	Short: "Show past install runs",
	Long: `Show the most recent install runs, newest first.

With an instance file, only runs for that instance's directory are shown.

Examples:
  flowupdater history
  flowupdater history instance.yaml --limit 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show (0 for all)")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	var dir string
	if len(args) == 1 {
		inst, err := config.LoadInstance(args[0])
		if err != nil {
			return err
		}
		dir = inst.Dir
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	records, err := svc.History(dir, historyLimit)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		entries := make([]historyJSONEntry, 0, len(records))
		for _, rec := range records {
			entries = append(entries, historyEntry(rec))
		}
		return writeJSON(out, entries)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No install runs recorded.")
		return nil
	}
	printHistory(out, records, dir == "")
	return nil
}

func historyEntry(rec domain.InstallRecord) historyJSONEntry {
	return historyJSONEntry{
		RunID:         rec.RunID,
		Dir:           rec.Dir,
		ForgeVersion:  rec.ForgeVersion,
		State:         rec.State,
		FailedIn:      rec.FailedIn,
		ModsInstalled: rec.ModsInstalled,
		ModsSkipped:   rec.ModsSkipped,
		StaleDeleted:  rec.StaleDeleted,
		Error:         rec.Error,
		StartedAt:     rec.StartedAt.Format(time.RFC3339),
		Seconds:       rec.Duration().Seconds(),
	}
}

func printHistory(out io.Writer, records []domain.InstallRecord, showDir bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := "RUN\tSTARTED\tFORGE\tSTATE\tMODS\tDURATION"
	if showDir {
		header += "\tDIR"
	}
	fmt.Fprintln(w, header)

	for _, rec := range records {
		state := render(styleOK, rec.State)
		switch {
		case rec.Error != "":
			state = render(styleError, rec.State)
			if rec.FailedIn != "" {
				state += " (" + rec.FailedIn + ")"
			}
		case rec.Skipped:
			state = render(styleWarn, "skipped")
		case rec.FinishedAt.IsZero():
			state = render(styleWarn, "incomplete")
		}

		line := fmt.Sprintf("%s\t%s\t%s\t%s\t+%d =%d -%d\t%s",
			shortID(rec.RunID),
			humanize.Time(rec.StartedAt),
			rec.ForgeVersion,
			state,
			rec.ModsInstalled, rec.ModsSkipped, rec.StaleDeleted,
			rec.Duration().Round(100*time.Millisecond),
		)
		if showDir {
			line += "\t" + rec.Dir
		}
		fmt.Fprintln(w, line)
	}
	w.Flush()
}

func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
