package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/DonovanMods/flowupdater/internal/core"
	"github.com/DonovanMods/flowupdater/internal/storage/config"

	"github.com/spf13/cobra"
)

var installProgressEvery int

type installJSONOutput struct {
	RunID        string   `json:"run_id"`
	Dir          string   `json:"dir"`
	ForgeVersion string   `json:"forge_version"`
	State        string   `json:"state"`
	Skipped      bool     `json:"skipped"`
	Reason       string   `json:"reason,omitempty"`
	ForgeSkipped bool     `json:"forge_skipped"`
	Assets       int      `json:"assets"`
	Libraries    int      `json:"libraries"`
	Installed    []string `json:"installed"`
	Unchanged    []string `json:"unchanged"`
	Deleted      []string `json:"deleted"`
}

var installCmd = &cobra.Command{
	Use:   "install <instance.yaml>",
	Short: "Install or update Forge and mods for an instance",
	Long: `Install the Forge version, assets, libraries and mods described by an instance file.

Files that are already present and verified are left alone, so running install
again only downloads what changed. With file_deleter enabled, files in the mods
directory that are not part of the mod list are removed.

Examples:
  flowupdater install ~/games/modded/instance.yaml
  flowupdater install instance.yaml --json`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().IntVar(&installProgressEvery, "progress-every", 25, "log progress every n files (0 logs each file)")

	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	inst, err := config.LoadInstance(args[0])
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	callback := &core.LogCallback{Logger: svc.Logger(), Every: installProgressEvery}
	res, err := svc.Install(ctx, inst, callback)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, installOutput(inst, res))
	}
	printInstallResult(out, inst, res, time.Since(start))
	return nil
}

func installOutput(inst *config.Instance, res *core.UpdateResult) installJSONOutput {
	output := installJSONOutput{
		RunID:        res.RunID,
		Dir:          inst.Dir,
		ForgeVersion: res.Spec.ForgeVersion,
		State:        res.Install.State.String(),
		Skipped:      res.Install.Skipped,
		ForgeSkipped: res.Install.ForgeSkipped,
		Assets:       res.Assets,
		Libraries:    res.Libraries,
		Installed:    []string{},
		Unchanged:    []string{},
		Deleted:      []string{},
	}
	if res.Install.Reason != nil {
		output.Reason = res.Install.Reason.Error()
	}
	if mods := res.Install.Mods; mods != nil {
		output.Installed = append(output.Installed, mods.Installed...)
		output.Unchanged = append(output.Unchanged, mods.Skipped...)
	}
	if rec := res.Install.Reconciliation; rec != nil {
		output.Deleted = append(output.Deleted, rec.Deleted...)
	}
	return output
}

func printInstallResult(w io.Writer, inst *config.Instance, res *core.UpdateResult, elapsed time.Duration) {
	fmt.Fprintf(w, "%s %s\n", render(styleHeader, "Forge"), render(styleVersion, res.Spec.ForgeVersion))
	fmt.Fprintf(w, "  Directory: %s\n", inst.Dir)

	if res.Install.Skipped {
		fmt.Fprintf(w, "  %s %v\n", render(styleWarn, "Skipped:"), res.Install.Reason)
		return
	}

	if res.Install.ForgeSkipped {
		fmt.Fprintf(w, "  Forge: %s\n", render(styleDetail, "already installed"))
	} else {
		fmt.Fprintf(w, "  Forge: %s\n", render(styleOK, "installed"))
	}
	if res.Assets > 0 || res.Libraries > 0 {
		fmt.Fprintf(w, "  Assets: %d, Libraries: %d\n", res.Assets, res.Libraries)
	}

	if mods := res.Install.Mods; mods != nil {
		fmt.Fprintf(w, "  Mods: %s installed, %d unchanged\n",
			render(styleOK, fmt.Sprint(len(mods.Installed))), len(mods.Skipped))
		for _, name := range mods.Installed {
			fmt.Fprintf(w, "    + %s\n", name)
		}
	}
	if rec := res.Install.Reconciliation; rec != nil && len(rec.Deleted) > 0 {
		fmt.Fprintf(w, "  Removed %s stale file(s)\n", render(styleWarn, fmt.Sprint(len(rec.Deleted))))
		for _, name := range rec.Deleted {
			fmt.Fprintf(w, "    - %s\n", name)
		}
	}

	fmt.Fprintf(w, "%s in %s\n", render(styleOK, "Done"), elapsed.Round(time.Millisecond))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
