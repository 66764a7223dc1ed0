// Package remote builds the concrete transport for a resolved
// configuration.
package remote

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/marcus/fueltrack/internal/transport"
	"github.com/marcus/fueltrack/internal/transport/sheets"
	"github.com/marcus/fueltrack/internal/transport/webhook"
)

// Dialer implements transport.Dialer for the webhook and Sheets adapters.
type Dialer struct {
	Timeout       time.Duration
	RatePerMinute int
	Title         string
	OAuth         *oauth2.Config
	// SaveToken persists refreshed OAuth tokens.
	SaveToken func(*oauth2.Token)
	// Endpoint overrides the Sheets API base URL.
	Endpoint string
}

// Dial returns the adapter for cfg.
func (d *Dialer) Dial(ctx context.Context, cfg transport.Config) (transport.Transport, error) {
	switch cfg.Kind {
	case transport.KindWebhook:
		return webhook.New(cfg.WebhookURL, d.Timeout), nil
	case transport.KindAPIToken:
		tok, err := sheets.DecodeToken(cfg.Token)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", transport.ErrUnauthorized, err)
		}
		return sheets.New(ctx, sheets.Options{
			OAuth:         d.OAuth,
			Token:         tok,
			SpreadsheetID: cfg.CollectionID,
			Title:         d.Title,
			RatePerMinute: d.RatePerMinute,
			Timeout:       d.Timeout,
			Endpoint:      d.Endpoint,
			OnToken:       d.SaveToken,
		})
	default:
		return nil, transport.ErrNotConfigured
	}
}
