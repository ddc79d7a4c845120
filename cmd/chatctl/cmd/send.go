package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var sendWait time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send a message and wait for the support reply",
	Long: `Send a message as the token's identity, then wait until the scripted
support reply shows up in the feed.

Examples:
  chatctl send --token "$TOKEN" "Where is my refund?"
  chatctl send --token "$TOKEN" --wait 0 "fire and forget"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if token == "" {
			return errors.New("send requires --token")
		}
		text := strings.Join(args, " ")

		ctx := cmd.Context()
		if sendWait > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, sendWait)
			defer cancel()
		}

		wc, err := dialWidget(ctx)
		if err != nil {
			return err
		}
		defer wc.Close()

		if err := wc.send("open", ""); err != nil {
			return fmt.Errorf("open panel: %w", err)
		}
		if err := wc.send("submit", text); err != nil {
			return fmt.Errorf("submit: %w", err)
		}
		if sendWait <= 0 {
			// Give the server a moment to read the command before closing.
			time.Sleep(100 * time.Millisecond)
			return nil
		}

		sawTyping := false
		for {
			f, err := wc.next()
			if err != nil {
				if ctx.Err() != nil {
					return fmt.Errorf("no reply within %s", sendWait)
				}
				return fmt.Errorf("read update: %w", err)
			}
			if f.State == nil {
				continue
			}
			if f.State.Typing {
				sawTyping = true
				continue
			}
			if sawTyping {
				return printFrame(cmd.OutOrStdout(), f, false)
			}
		}
	},
}

func init() {
	sendCmd.Flags().DurationVar(&sendWait, "wait", 5*time.Second, "how long to wait for the reply (0 to skip)")
	rootCmd.AddCommand(sendCmd)
}
