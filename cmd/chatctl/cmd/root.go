package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
)

var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Support chat command-line client",
	Long: `chatctl talks to a running support chat server.

Available commands:
  token    Obtain an identity token
  tail     Open the widget and print every view update
  send     Send a message and wait for the support reply
  version  Print the client version

Use "chatctl [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
}

// Execute executes the root command. Interrupts cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("CHATCTL_SERVER", "http://localhost:8080"), "server base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("CHATCTL_TOKEN"), "identity token")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
