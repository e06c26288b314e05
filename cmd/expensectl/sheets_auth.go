package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"expenselog/internal/cli"
	"expenselog/internal/store/google"
)

func newSheetsAuthCmd() *cobra.Command {
	var (
		port      string
		tokenFile string
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sheets-auth",
		Short: "Authorize Google Sheets access and save an OAuth token",
		Long: `Runs the OAuth consent flow for the client in GOOGLE_OAUTH_CLIENT_JSON or
GOOGLE_OAUTH_CLIENT_FILE and writes the token for GOOGLE_OAUTH_TOKEN_FILE.
The client must allow http://localhost:<port>/callback as a redirect URI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli.LoadEnvFile()
			secret, err := google.OAuthClientFromEnv()
			if err != nil {
				return err
			}
			if secret == nil {
				return errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
			}
			cfg, err := google.OAuthConfig(secret)
			if err != nil {
				return err
			}
			cfg.RedirectURL = "http://localhost:" + port + "/callback"

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			ln, err := net.Listen("tcp", "localhost:"+port)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", port, err)
			}
			code, err := awaitCode(ctx, ln, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to authorize:\n%s\n",
					cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline))
			})
			if err != nil {
				return err
			}

			tok, err := cfg.Exchange(ctx, code)
			if err != nil {
				return fmt.Errorf("token exchange: %w", err)
			}
			if err := google.SaveToken(tokenFile, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", tokenFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "8085", "Local port for the OAuth redirect")
	cmd.Flags().StringVar(&tokenFile, "token-file", "token.json", "Where to write the token")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for consent")
	return cmd
}

// awaitCode serves the redirect endpoint until Google calls back with a code
// or ctx ends. ready runs once ln is being served.
func awaitCode(ctx context.Context, ln net.Listener, ready func()) (string, error) {
	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		if msg := r.URL.Query().Get("error"); msg != "" {
			http.Error(w, "OAuth error: "+msg, http.StatusBadRequest)
			select {
			case done <- result{err: fmt.Errorf("authorization failed: %s", msg)}:
			default:
			}
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		select {
		case done <- result{code: r.URL.Query().Get("code")}:
		default:
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	ready()
	select {
	case res := <-done:
		return res.code, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}
}
