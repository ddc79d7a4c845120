package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nfrund/supportchat/internal/domain"
	"github.com/nfrund/supportchat/internal/identity"
	"github.com/spf13/cobra"
)

var (
	tokenKey    string
	tokenLabel  string
	tokenTTL    time.Duration
	tokenSecret string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Obtain an identity token",
	Long: `Obtain an identity token for a user.

With --secret the token is signed locally with the server's JWT secret.
Otherwise the server's /auth/token endpoint is used, which requires
AUTH_DEV_TOKENS=true on the server.

Examples:
  chatctl token --key u1 --label u1@example.com
  chatctl token --key u1 --label u1@example.com --secret "$JWT_SECRET"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id := domain.Identity{Key: tokenKey, Label: tokenLabel}

		var (
			raw string
			err error
		)
		if tokenSecret != "" {
			raw, err = identity.NewTokens(tokenSecret).Issue(id, tokenTTL)
		} else {
			raw, err = requestToken(cmd.Context(), id, tokenTTL)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), raw)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenKey, "key", "", "identity key (user id)")
	tokenCmd.Flags().StringVar(&tokenLabel, "label", "", "identity label, shown as the sender")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "sign locally with this JWT secret")
	_ = tokenCmd.MarkFlagRequired("key")
	_ = tokenCmd.MarkFlagRequired("label")
	rootCmd.AddCommand(tokenCmd)
}

func requestToken(ctx context.Context, id domain.Identity, ttl time.Duration) (string, error) {
	body, err := json.Marshal(map[string]string{"key": id.Key, "label": id.Label, "ttl": ttl.String()})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(serverURL, "/")+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request token: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	return out.Token, nil
}
