package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/corvidae/pixback/internal/auth"
	"github.com/corvidae/pixback/internal/common/cliutil"
	"github.com/corvidae/pixback/internal/config"
	"github.com/corvidae/pixback/internal/pixivapi"
)

var testRefreshToken string

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Validate configuration and upstream connectivity without archiving anything",
	Long: `Test loads and validates the configuration snapshot, then exercises
the refresh-token exchange against the upstream auth endpoint. It never
touches the task queue, metadata store, or output directory's artifacts.

With no --refresh-token, an interactive terminal is prompted (input
hidden) to try a token other than the one in the configuration file
without writing it anywhere; left blank, or run non-interactively, the
configured token is used as-is.`,
	RunE: runTest,
}

func init() {
	testCmd.Flags().StringVar(&testRefreshToken, "refresh-token", "", "Refresh token to test instead of the configured one")
}

// resolveTestRefreshToken decides which refresh token to exchange:
// the --refresh-token flag wins outright; otherwise an interactive
// terminal is prompted for one (masked, like a password) with an
// empty answer falling back to configured; a non-interactive
// invocation with no flag uses configured without prompting.
func resolveTestRefreshToken(configured string) (string, error) {
	if testRefreshToken != "" {
		return testRefreshToken, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return configured, nil
	}

	fmt.Print("Refresh token to test (blank to use the configured one): ")
	entered, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}
	if len(entered) == 0 {
		return configured, nil
	}
	return string(entered), nil
}

func runTest(cmd *cobra.Command, args []string) error {
	snap, err := config.Load()
	if err != nil {
		fmt.Printf("config: FAIL (%v)\n", err)
		return err
	}
	fmt.Printf("config: OK (user_id=%s mode=%s restrict=%s output_dir=%s)\n",
		snap.UserID, snap.Mode, snap.Restrict, snap.OutputDir)

	refreshToken, err := resolveTestRefreshToken(snap.RefreshToken)
	if err != nil {
		fmt.Printf("auth: FAIL (%v)\n", err)
		return err
	}

	log := cliutil.NewLogger("pixbackd-test")
	client := pixivapi.New(snap.Timeout)
	session, err := auth.New(client, log, snap.OutputDir, refreshToken)
	if err != nil {
		fmt.Printf("auth: FAIL (%v)\n", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), snap.Timeout)
	defer cancel()
	if _, err := session.EnsureFresh(ctx); err != nil {
		fmt.Printf("auth: FAIL (%v)\n", err)
		return err
	}
	fmt.Println("auth: OK (refresh-token exchange succeeded)")
	return nil
}
