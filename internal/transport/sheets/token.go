package sheets

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// storedToken accepts both the oauth2 field names and the millisecond
// expiry_date written by the Google JS client.
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	ExpiryDate   int64     `json:"expiry_date,omitempty"`
}

// DecodeToken parses a persisted token.
func DecodeToken(raw string) (*oauth2.Token, error) {
	var st storedToken
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}
	tok := &oauth2.Token{
		AccessToken:  st.AccessToken,
		TokenType:    st.TokenType,
		RefreshToken: st.RefreshToken,
		Expiry:       st.Expiry,
	}
	if tok.Expiry.IsZero() && st.ExpiryDate > 0 {
		tok.Expiry = time.UnixMilli(st.ExpiryDate)
	}
	return tok, nil
}

// EncodeToken serializes a token for the settings table.
func EncodeToken(tok *oauth2.Token) (string, error) {
	data, err := json.Marshal(storedToken{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// notifyingSource reports each newly minted access token so the caller
// can persist refreshed credentials.
type notifyingSource struct {
	src     oauth2.TokenSource
	onToken func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (s *notifyingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	changed := tok.AccessToken != s.last
	s.last = tok.AccessToken
	s.mu.Unlock()
	if changed && s.onToken != nil {
		s.onToken(tok)
	}
	return tok, nil
}
