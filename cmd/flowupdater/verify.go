package main

import (
	"context"
	"fmt"

	"github.com/DonovanMods/flowupdater/internal/storage/config"

	"github.com/spf13/cobra"
)

var verifyStrict bool

type verifyJSONOutput struct {
	Dir      string   `json:"dir"`
	Verified []string `json:"verified"`
	Stale    []string `json:"stale"`
}

var verifyCmd = &cobra.Command{
	Use:   "verify <instance.yaml>",
	Short: "Check the mods directory of an instance against its mod list",
	Long: `Classify every file in the mods directory of an instance as verified (name and
SHA-1 match an expected mod) or stale (anything else). Nothing is changed on disk.

Examples:
  flowupdater verify instance.yaml
  flowupdater verify instance.yaml --strict   # Fail when stale files exist`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyStrict, "strict", false, "exit with an error when stale files are found")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	inst, err := config.LoadInstance(args[0])
	if err != nil {
		return err
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	rec, err := svc.Verify(context.Background(), inst)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		output := verifyJSONOutput{Dir: inst.Dir, Verified: []string{}, Stale: []string{}}
		output.Verified = append(output.Verified, rec.Verified...)
		output.Stale = append(output.Stale, rec.Stale...)
		if err := writeJSON(out, output); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%s %s\n", render(styleHeader, "Mods in"), inst.Dir)
		for _, name := range rec.Verified {
			fmt.Fprintf(out, "  %s %s\n", render(styleOK, "ok   "), name)
		}
		for _, name := range rec.Stale {
			fmt.Fprintf(out, "  %s %s\n", render(styleWarn, "stale"), name)
		}
		fmt.Fprintf(out, "%d verified, %d stale\n", len(rec.Verified), len(rec.Stale))
	}

	if verifyStrict && len(rec.Stale) > 0 {
		return fmt.Errorf("%d stale file(s) in %s", len(rec.Stale), inst.Dir)
	}
	return nil
}
