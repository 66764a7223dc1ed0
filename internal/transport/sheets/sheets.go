// Package sheets implements the authorized transport on top of the Google
// Sheets v4 API.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/marcus/fueltrack/internal/transport"
)

const (
	// DefaultTitle names spreadsheets created on first push
	DefaultTitle = "FuelTrack - Fuel Events"

	sheetName   = "Sheet1"
	headerRange = sheetName + "!A1"
	dataRange   = sheetName + "!A2"
	readRange   = sheetName + "!A:S"

	defaultTimeout       = 60 * time.Second
	defaultRatePerMinute = 60
)

// Scopes requested during authorization
var Scopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive.file",
}

// Options configures a Client
type Options struct {
	// OAuth enables refreshing an expired token. Without it an expired
	// token is unusable.
	OAuth         *oauth2.Config
	Token         *oauth2.Token
	SpreadsheetID string
	Title         string
	RatePerMinute int
	Timeout       time.Duration
	// Endpoint overrides the API base URL.
	Endpoint string
	// OnToken receives refreshed tokens for persistence.
	OnToken func(*oauth2.Token)
}

// Client appends and reads fuel event rows in one spreadsheet
type Client struct {
	svc           *gsheets.Service
	token         *oauth2.Token
	canRefresh    bool
	spreadsheetID string
	title         string
	limiter       *rate.Limiter
}

// New builds a client. Credential problems are reported by Push and Pull
// rather than here, so a bad token fails the batch like any other error.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.RatePerMinute <= 0 {
		opts.RatePerMinute = defaultRatePerMinute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	var src oauth2.TokenSource
	if opts.OAuth != nil && opts.Token != nil {
		src = opts.OAuth.TokenSource(ctx, opts.Token)
	} else {
		src = oauth2.StaticTokenSource(opts.Token)
	}
	src = &notifyingSource{src: src, onToken: opts.OnToken, last: accessToken(opts.Token)}

	httpClient := &http.Client{
		Timeout:   opts.Timeout,
		Transport: &oauth2.Transport{Source: src, Base: http.DefaultTransport},
	}

	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	svc, err := gsheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		token:         opts.Token,
		canRefresh:    opts.OAuth != nil,
		spreadsheetID: opts.SpreadsheetID,
		title:         opts.Title,
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), 5),
	}, nil
}

// SpreadsheetID returns the spreadsheet in use, empty before the first push
func (c *Client) SpreadsheetID() string {
	return c.spreadsheetID
}

// Push appends records, creating the spreadsheet and its header row when
// no id is known. A newly created id is returned even if the append then
// fails, so the next attempt reuses it.
func (c *Client) Push(ctx context.Context, records []transport.Record) (transport.PushResult, error) {
	var res transport.PushResult
	if err := c.checkCredential(); err != nil {
		return res, err
	}

	if c.spreadsheetID == "" {
		id, err := c.create(ctx)
		if err != nil {
			return res, err
		}
		c.spreadsheetID = id
		res.CollectionID = id
		slog.Info("created spreadsheet", "id", id, "title", c.title)
	}

	if len(records) == 0 {
		return res, nil
	}
	if err := c.appendRows(ctx, c.spreadsheetID, dataRange, transport.Rows(records)); err != nil {
		return res, err
	}
	return res, nil
}

// Pull reads every data row of the sheet.
func (c *Client) Pull(ctx context.Context) ([]transport.Record, error) {
	if err := c.checkCredential(); err != nil {
		return nil, err
	}
	if c.spreadsheetID == "" {
		return nil, fmt.Errorf("%w: spreadsheet id not set", transport.ErrNotConfigured)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	vr, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, readRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, mapError("read values", err)
	}

	rows := vr.Values
	if len(rows) > 0 && len(rows[0]) > 0 && rows[0][0] == transport.Header[0] {
		rows = rows[1:]
	}

	records := make([]transport.Record, 0, len(rows))
	for i, row := range rows {
		r, err := transport.ParseRow(row)
		if err != nil {
			slog.Warn("skipping sheet row", "row", i+2, "err", err)
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

func (c *Client) create(ctx context.Context) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	ss, err := c.svc.Spreadsheets.Create(&gsheets.Spreadsheet{
		Properties: &gsheets.SpreadsheetProperties{Title: c.title},
		Sheets: []*gsheets.Sheet{
			{Properties: &gsheets.SheetProperties{Title: sheetName}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", mapError("create spreadsheet", err)
	}
	if err := c.appendRows(ctx, ss.SpreadsheetId, headerRange, [][]any{transport.Header}); err != nil {
		return ss.SpreadsheetId, err
	}
	return ss.SpreadsheetId, nil
}

func (c *Client) appendRows(ctx context.Context, id, rng string, rows [][]any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.svc.Spreadsheets.Values.Append(id, rng, &gsheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return mapError("append values", err)
	}
	return nil
}

// checkCredential rejects tokens that cannot produce an access token.
func (c *Client) checkCredential() error {
	if c.token == nil || c.token.AccessToken == "" {
		return transport.ErrUnauthorized
	}
	if !c.token.Valid() && (c.token.RefreshToken == "" || !c.canRefresh) {
		return fmt.Errorf("%w: token expired at %s", transport.ErrUnauthorized, c.token.Expiry.Format(time.RFC3339))
	}
	return nil
}

func mapError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w", op, transport.ErrUnauthorized)
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("%s: %w: %v", op, transport.ErrUnauthorized, rerr)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func accessToken(tok *oauth2.Token) string {
	if tok == nil {
		return ""
	}
	return tok.AccessToken
}
