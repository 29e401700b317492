package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/DonovanMods/flowupdater/internal/source/curseforge"
	"github.com/DonovanMods/flowupdater/internal/storage/config"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
)

// stdin is where readAPIKey reads from
var stdin io.Reader = os.Stdin

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the CurseForge API key",
	Long: `Manage the CurseForge API key used to resolve curse_mods entries.

The key is looked up in this order: the FLOWUPDATER_CURSEFORGE_API_KEY environment
variable, curseforge_api_key in config.yaml, then the key saved with 'auth login'.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save a CurseForge API key",
	Long: `Save a CurseForge API key in the local database.

To get a key:
  1. Visit https://console.curseforge.com/
  2. Create a project and generate an API key
  3. Copy your API key`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the saved CurseForge API key",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the CurseForge API key comes from",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, "Enter API key: ")
	apiKey, err := readAPIKey(out)
	if err != nil {
		return fmt.Errorf("reading API key: %w", err)
	}
	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	if err := svc.SaveAPIKey(curseforge.SourceID, apiKey); err != nil {
		return fmt.Errorf("saving API key: %w", err)
	}

	fmt.Fprintf(out, "Saved CurseForge API key %s\n", maskAPIKey(apiKey))
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	if err := svc.DeleteAPIKey(curseforge.SourceID); err != nil {
		return fmt.Errorf("removing API key: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Removed CurseForge API key.")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	out := cmd.OutOrStdout()
	envKey := config.EnvPrefix + "_CURSEFORGE_API_KEY"

	key, err := svc.APIKey(curseforge.SourceID)
	if err != nil {
		return err
	}
	switch {
	case key == "":
		fmt.Fprintf(out, "CurseForge: %s\n", render(styleWarn, "not authenticated"))
	case os.Getenv(envKey) != "":
		fmt.Fprintf(out, "CurseForge: %s via %s (key: %s)\n", render(styleOK, "authenticated"), envKey, maskAPIKey(key))
	default:
		fmt.Fprintf(out, "CurseForge: %s (key: %s)\n", render(styleOK, "authenticated"), maskAPIKey(key))
	}
	return nil
}

// readAPIKey reads an API key, hiding the input when stdin is a terminal
func readAPIKey(out io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(f.Fd()) {
		keyBytes, err := term.ReadPassword(f.Fd())
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimSpace(string(keyBytes)), nil
	}

	// Fallback for non-terminal input (e.g., piped input)
	key, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(key), nil
}

// maskAPIKey returns a masked version of the API key (shows first 3 and last 3 chars)
func maskAPIKey(key string) string {
	if len(key) <= 6 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
