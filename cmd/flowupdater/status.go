package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/DonovanMods/flowupdater/internal/core"
	"github.com/DonovanMods/flowupdater/internal/domain"
	"github.com/DonovanMods/flowupdater/internal/storage/config"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type statusJSONOutput struct {
	ConfigDir    string                `json:"config_dir"`
	CachePath    string                `json:"cache_path"`
	CacheFiles   int                   `json:"cache_files"`
	CacheBytes   int64                 `json:"cache_bytes"`
	LinkMethod   string                `json:"link_method"`
	Dir          string                `json:"dir,omitempty"`
	LastRun      *historyJSONEntry     `json:"last_run,omitempty"`
	Mods         []statusModJSON       `json:"mods,omitempty"`
	ForgeMarker  bool                  `json:"forge_installed"`
	Sources      map[string]sourceJSON `json:"sources"`
}

type statusModJSON struct {
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
	SourceID string `json:"source"`
	Present  bool   `json:"present"`
}

type sourceJSON struct {
	Authenticated bool `json:"authenticated"`
}

var statusCmd = &cobra.Command{
	Use:   "status [instance.yaml]",
	Short: "Show current status",
	Long: `Show the cache and source status. With an instance file, also show the last
install run for its directory and the mods recorded as installed there.

Examples:
  flowupdater status
  flowupdater status instance.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	var inst *config.Instance
	if len(args) == 1 {
		var err error
		if inst, err = config.LoadInstance(args[0]); err != nil {
			return err
		}
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	files, bytes, err := svc.Cache().Size()
	if err != nil {
		return err
	}

	output := statusJSONOutput{
		ConfigDir:  svc.ConfigDir(),
		CachePath:  svc.Cache().BasePath(),
		CacheFiles: files,
		CacheBytes: bytes,
		LinkMethod: svc.Config().LinkMethod.String(),
		Sources:    make(map[string]sourceJSON),
	}
	for _, src := range svc.ListSources() {
		output.Sources[src.ID()] = sourceJSON{Authenticated: src.IsAuthenticated()}
	}

	if inst != nil {
		if err := instanceStatus(svc, inst, &output); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, output)
	}
	printStatus(out, svc, output)
	return nil
}

func instanceStatus(svc *core.Service, inst *config.Instance, output *statusJSONOutput) error {
	output.Dir = inst.Dir

	last, err := svc.LastInstall(inst.Dir)
	if err != nil {
		return fmt.Errorf("loading last install: %w", err)
	}
	if last != nil {
		entry := historyEntry(*last)
		output.LastRun = &entry
	}

	req, err := svc.Request(inst)
	if err != nil {
		return err
	}
	spec, err := domain.NewVersionSpec(req.Version)
	if err != nil {
		return err
	}
	_, err = os.Stat(filepath.Join(inst.Dir, filepath.FromSlash(spec.MarkerPath())))
	output.ForgeMarker = err == nil

	mods, err := svc.InstalledMods(inst.Dir)
	if err != nil {
		return fmt.Errorf("loading installed mods: %w", err)
	}
	for _, mod := range mods {
		present := core.FileMatches(filepath.Join(inst.Dir, "mods", mod.FileName), mod.SHA1, mod.Size)
		output.Mods = append(output.Mods, statusModJSON{
			FileName: mod.FileName,
			Size:     mod.Size,
			SourceID: mod.SourceID,
			Present:  present,
		})
	}
	return nil
}

func printStatus(out io.Writer, svc *core.Service, output statusJSONOutput) {
	fmt.Fprintln(out, render(styleHeader, "flowupdater"))
	fmt.Fprintf(out, "  Config: %s\n", output.ConfigDir)
	fmt.Fprintf(out, "  Cache: %s (%d files, %s)\n", output.CachePath, output.CacheFiles, humanize.Bytes(uint64(output.CacheBytes)))
	fmt.Fprintf(out, "  Link method: %s\n", output.LinkMethod)
	for _, src := range svc.ListSources() {
		auth := render(styleWarn, "not authenticated")
		if output.Sources[src.ID()].Authenticated {
			auth = render(styleOK, "authenticated")
		}
		fmt.Fprintf(out, "  %s: %s\n", src.Name(), auth)
	}

	if output.Dir == "" {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s %s\n", render(styleHeader, "Instance"), output.Dir)
	if output.ForgeMarker {
		fmt.Fprintf(out, "  Forge: %s\n", render(styleOK, "installed"))
	} else {
		fmt.Fprintf(out, "  Forge: %s\n", render(styleWarn, "not installed"))
	}

	if run := output.LastRun; run != nil {
		fmt.Fprintf(out, "  Last run: %s %s (%s)\n", shortID(run.RunID), run.State, run.StartedAt)
		if run.Error != "" {
			fmt.Fprintf(out, "  %s %s\n", render(styleError, "Error:"), run.Error)
		}
	} else {
		fmt.Fprintln(out, "  Last run: never")
	}

	if len(output.Mods) == 0 {
		fmt.Fprintln(out, "  No mods recorded.")
		return
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MOD\tSIZE\tSOURCE\tSTATUS")
	for _, mod := range output.Mods {
		state := render(styleOK, "ok")
		if !mod.Present {
			state = render(styleWarn, "missing or changed")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mod.FileName, humanize.Bytes(uint64(mod.Size)), mod.SourceID, state)
	}
	w.Flush()
}
