package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nfrund/supportchat/internal/server"
	"github.com/spf13/cobra"
)

var tailJSON bool

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Open the widget and print every view update",
	Long: `Open the chat panel for the token's identity and print the feed each
time it changes, until interrupted.

Examples:
  chatctl tail --token "$TOKEN"
  chatctl tail --token "$TOKEN" --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		wc, err := dialWidget(ctx)
		if err != nil {
			return err
		}
		defer wc.Close()

		if err := wc.send("open", ""); err != nil {
			return fmt.Errorf("open panel: %w", err)
		}

		out := cmd.OutOrStdout()
		changed := stateChanges()
		for {
			f, err := wc.next()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("read update: %w", err)
			}
			if !changed(f) {
				continue
			}
			if err := printFrame(out, f, tailJSON); err != nil {
				return err
			}
		}
	},
}

func init() {
	tailCmd.Flags().BoolVar(&tailJSON, "json", false, "print raw view state as JSON lines")
	rootCmd.AddCommand(tailCmd)
}

// stateChanges returns a filter passing frames whose state differs from the
// last one passed. A scroll frame repeats the state of the view before it.
func stateChanges() func(server.Frame) bool {
	var last []byte
	return func(f server.Frame) bool {
		if f.State == nil {
			return false
		}
		data, err := json.Marshal(f.State)
		if err != nil || bytes.Equal(data, last) {
			return false
		}
		last = data
		return true
	}
}

func printFrame(w io.Writer, f server.Frame, raw bool) error {
	if raw {
		data, err := json.Marshal(f.State)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	v := f.State
	fmt.Fprintf(w, "--- open=%t typing=%t messages=%d\n", v.PanelOpen, v.Typing, len(v.Messages))
	for _, row := range v.Rows() {
		if row.Message == nil {
			fmt.Fprintln(w, "  [support is typing...]")
			continue
		}
		who := "you"
		if row.Message.IsAccountant {
			who = row.Message.Sender
		}
		fmt.Fprintf(w, "  %-10s %s\n", who+":", row.Message.Text)
	}
	return nil
}
