package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// Login runs the browser authorization flow: start a localhost callback
// listener, open the exchange authorize page, and wait for the redirect
// carrying the token. Blocks until the flow completes or ctx is done.
func (s *Store) Login(ctx context.Context) error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("start callback listener: %w", err)
	}
	defer listener.Close()

	state := uuid.NewString()
	tokenCh := make(chan *Token, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- fmt.Errorf("authorization state mismatch")
			return
		}
		expiresAt, err := time.Parse(time.RFC3339, q.Get("expires_at"))
		if err != nil {
			expiresAt = time.Now().Add(time.Hour)
		}
		tok := &Token{
			AccessToken:  q.Get("access_token"),
			RefreshToken: q.Get("refresh_token"),
			ExpiresAt:    expiresAt,
		}
		if tok.AccessToken == "" {
			http.Error(w, "missing token", http.StatusBadRequest)
			errCh <- fmt.Errorf("authorization response missing access token")
			return
		}
		fmt.Fprintln(w, "Logged in. You can close this tab and return to the terminal.")
		tokenCh <- tok
	})

	srv := &http.Server{Handler: mux}
	go srv.Serve(listener)
	defer srv.Close()

	authorize := fmt.Sprintf("%s/authorize?state=%s&redirect=http://%s/callback",
		s.authURL, state, listener.Addr().String())
	if err := openBrowser(authorize); err != nil {
		s.log.Warn("could not open browser, visit manually", "url", authorize)
	}

	select {
	case tok := <-tokenCh:
		return s.Save(tok)
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
