package cmd

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/output"
	"github.com/marcus/fueltrack/internal/transport"
	"github.com/marcus/fueltrack/internal/transport/sheets"
)

var errNoClientID = errors.New("google.client_id is not configured (set FUEL_GOOGLE_CLIENT_ID)")

var authCmd = &cobra.Command{
	Use:     "auth",
	Short:   "Manage the Google Sheets credential",
	GroupID: "sync",
}

var authGoogleCmd = &cobra.Command{
	Use:   "google",
	Short: "Authorize access to Google Sheets",
	Long: `Opens the Google consent flow and stores the resulting token locally.

The command listens on google.redirect_url for the callback. Pass --code to
exchange a code obtained elsewhere instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if _, err := requireAdmin(database); err != nil {
			return err
		}

		oc := currentConfig().OAuthConfig(sheets.Scopes...)
		if oc == nil {
			return errNoClientID
		}

		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		code, _ := cmd.Flags().GetString("code")
		if code == "" {
			code, err = authorizeInBrowser(ctx, oc)
			if err != nil {
				return err
			}
		}

		tok, err := oc.Exchange(ctx, code)
		if err != nil {
			return fmt.Errorf("exchange authorization code: %w", err)
		}
		if err := saveToken(database, tok); err != nil {
			return err
		}

		output.Success("Google Sheets authorized")
		if tok.RefreshToken == "" {
			output.Warning("no refresh token returned; re-run 'fuel auth google' when the token expires")
		}
		return nil
	},
}

// authorizeInBrowser prints the consent URL and waits for the loopback
// callback carrying the authorization code.
func authorizeInBrowser(ctx context.Context, oc *oauth2.Config) (string, error) {
	redirect, err := url.Parse(oc.RedirectURL)
	if err != nil {
		return "", fmt.Errorf("parse redirect url: %w", err)
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", redirect.Host, err)
	}

	state := db.NewID()
	authURL := oc.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Println("Open this URL in a browser to authorize access:")
	fmt.Println()
	fmt.Println("  " + authURL)
	fmt.Println()
	fmt.Println(output.Subtle("Waiting for the callback on " + oc.RedirectURL))

	return receiveAuthCode(ctx, ln, redirect.Path, state)
}

// receiveAuthCode serves one OAuth callback on ln and returns its code.
// The listener is closed before returning.
func receiveAuthCode(ctx context.Context, ln net.Listener, path, state string) (string, error) {
	if path == "" {
		path = "/"
	}

	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)
	send := func(r result) {
		select {
		case done <- r:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(w, "Authorization denied. You can close this window.", http.StatusBadRequest)
			send(result{err: fmt.Errorf("authorization denied: %s", q.Get("error"))})
		case q.Get("state") != state:
			http.Error(w, "State mismatch.", http.StatusBadRequest)
		case q.Get("code") == "":
			http.Error(w, "Missing code.", http.StatusBadRequest)
		default:
			fmt.Fprintf(w, "<html><body><p>%s</p></body></html>",
				html.EscapeString("FuelTrack is authorized. You can close this window."))
			send(result{code: q.Get("code")})
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go srv.Serve(ln)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	select {
	case r := <-done:
		return r.code, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}
}

// saveToken stores a token in the settings table
func saveToken(database *db.DB, tok *oauth2.Token) error {
	raw, err := sheets.EncodeToken(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := database.SetSetting(db.SettingOAuthToken, raw); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which remote transport is configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		rc, err := transport.Resolve(database)
		if err != nil {
			return err
		}
		fmt.Printf("Transport: %s\n", rc)

		if raw, _ := database.OAuthToken(); raw != "" {
			tok, err := sheets.DecodeToken(raw)
			if err != nil {
				output.Warning("stored token is unreadable: %v", err)
				return nil
			}
			fmt.Println(formatTokenStatus(tok, time.Now()))
			if rc.Kind == transport.KindWebhook {
				fmt.Println(output.Subtle("The webhook takes precedence over the stored token."))
			}
		}
		if currentConfig().Google.ClientID == "" {
			fmt.Println(output.Subtle("google.client_id not set: expired tokens cannot be refreshed"))
		}
		return nil
	},
}

// formatTokenStatus describes a stored token's expiry
func formatTokenStatus(tok *oauth2.Token, now time.Time) string {
	refresh := "no"
	if tok.RefreshToken != "" {
		refresh = "yes"
	}
	switch {
	case tok.Expiry.IsZero():
		return fmt.Sprintf("Token: no expiry, refreshable: %s", refresh)
	case tok.Expiry.Before(now):
		return fmt.Sprintf("Token: expired %s, refreshable: %s", output.FormatTimeAgo(tok.Expiry), refresh)
	}
	return fmt.Sprintf("Token: valid until %s, refreshable: %s", tok.Expiry.Local().Format("2006-01-02 15:04"), refresh)
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored Google token",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if _, err := requireAdmin(database); err != nil {
			return err
		}
		if err := database.ClearSetting(db.SettingOAuthToken); err != nil {
			return fmt.Errorf("clear token: %w", err)
		}
		fmt.Println("Token removed.")
		return nil
	},
}

func init() {
	authCmd.AddCommand(authGoogleCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authClearCmd)
	rootCmd.AddCommand(authCmd)

	authGoogleCmd.Flags().String("code", "", "Authorization code to exchange")
	authGoogleCmd.Flags().Duration("timeout", 5*time.Minute, "How long to wait for the callback")
}
