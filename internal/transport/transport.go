// Package transport defines the remote side of sync: the record layout
// shared by every adapter and the interface they implement.
package transport

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the API credential is absent or
	// expired and cannot be refreshed.
	ErrUnauthorized = errors.New("remote credential missing or expired")
	// ErrMalformedResponse is returned when a pull body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed remote response")
	// ErrRemoteFailure is returned when the remote reports an error.
	ErrRemoteFailure = errors.New("remote reported failure")
	// ErrNotConfigured is returned when no transport is configured.
	ErrNotConfigured = errors.New("no remote transport configured")
)

// Transport moves fuel event records to and from the remote spreadsheet.
type Transport interface {
	// Push appends records remotely. It must be all-or-nothing from the
	// caller's view: an error means none of the batch counts as delivered.
	Push(ctx context.Context, records []Record) (PushResult, error)
	// Pull returns every data row currently held remotely.
	Pull(ctx context.Context) ([]Record, error)
}

// PushResult carries what the remote reported back after a push.
type PushResult struct {
	// CollectionID is set when the push created a new remote collection.
	CollectionID string
}

// Kind selects the transport variant
type Kind string

const (
	KindUnconfigured Kind = "unconfigured"
	KindWebhook      Kind = "webhook"
	KindAPIToken     Kind = "api"
)

// Config is the resolved remote configuration for one drain or import.
type Config struct {
	Kind         Kind
	WebhookURL   string
	Token        string // raw OAuth token JSON
	CollectionID string // spreadsheet id, may be empty before the first push
}

func (c Config) String() string {
	switch c.Kind {
	case KindWebhook:
		return "webhook " + c.WebhookURL
	case KindAPIToken:
		if c.CollectionID == "" {
			return "sheets api (new spreadsheet)"
		}
		return "sheets api " + c.CollectionID
	default:
		return "unconfigured"
	}
}

// SettingsSource reads persisted remote settings
type SettingsSource interface {
	WebhookURL() (string, error)
	OAuthToken() (string, error)
	SpreadsheetID() (string, error)
}

// Resolve reads the settings once and picks a variant. A webhook URL takes
// precedence over an API token.
func Resolve(s SettingsSource) (Config, error) {
	hook, err := s.WebhookURL()
	if err != nil {
		return Config{}, fmt.Errorf("read webhook url: %w", err)
	}
	if hook != "" {
		return Config{Kind: KindWebhook, WebhookURL: hook}, nil
	}

	token, err := s.OAuthToken()
	if err != nil {
		return Config{}, fmt.Errorf("read oauth token: %w", err)
	}
	if token == "" {
		return Config{Kind: KindUnconfigured}, nil
	}

	id, err := s.SpreadsheetID()
	if err != nil {
		return Config{}, fmt.Errorf("read spreadsheet id: %w", err)
	}
	return Config{Kind: KindAPIToken, Token: token, CollectionID: id}, nil
}

// Dialer builds a Transport for a resolved configuration.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Transport, error)
}
