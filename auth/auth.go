// Package auth stores exchange credentials on disk and keeps the access
// token fresh. The token file lives next to the vars file under the user's
// config directory and is never written world-readable.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// refreshSkew renews the token this long before its recorded expiry so a
// request never departs with a token about to lapse mid-flight.
const refreshSkew = 60 * time.Second

// Token is the persisted credential pair.
type Token struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (t *Token) valid() bool {
	return t.AccessToken != "" && time.Now().Add(refreshSkew).Before(t.ExpiresAt)
}

// Store loads, refreshes, and persists tokens.
type Store struct {
	path    string
	authURL string
	http    *http.Client
	log     hclog.Logger

	mu    sync.Mutex
	token *Token
}

// NewStore creates a token store. authURL is the exchange auth endpoint
// root (e.g. https://exchange.example.com/auth).
func NewStore(path, authURL string, log hclog.Logger) *Store {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Store{
		path:    path,
		authURL: authURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log.Named("auth"),
	}
}

// DefaultTokenPath returns ~/.lifeline/token.json.
func DefaultTokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".lifeline", "token.json"), nil
}

// GetValidToken returns an access token that is good for at least the
// refresh skew, refreshing via the exchange when the stored one is stale.
func (s *Store) GetValidToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		tok, err := s.load()
		if err != nil {
			return "", fmt.Errorf("not logged in: %w", err)
		}
		s.token = tok
	}

	if s.token.valid() {
		return s.token.AccessToken, nil
	}

	refreshed, err := s.refresh(ctx, s.token.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	s.token = refreshed
	if err := s.save(refreshed); err != nil {
		// A refresh that works but fails to persist still yields a usable
		// token for this process.
		s.log.Warn("persist refreshed token", "error", err)
	}
	return refreshed.AccessToken, nil
}

// Save persists a token obtained out-of-band (e.g. by the login flow).
func (s *Store) Save(tok *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tok
	return s.save(tok)
}

func (s *Store) load() (*Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return &tok, nil
}

func (s *Store) save(tok *Token) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

func (s *Store) refresh(ctx context.Context, refreshToken string) (*Token, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authURL+"/refresh", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth service returned HTTP %d", resp.StatusCode)
	}

	var tok Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	return &tok, nil
}
