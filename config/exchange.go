package config

import (
	"fmt"
	"strings"
)

// Exchange points the client at the engineer marketplace.
type Exchange struct {
	APIURL    string `hcl:"api_url"`
	WSURL     string `hcl:"ws_url"`
	AuthURL   string `hcl:"auth_url,optional"`
	ProjectID string `hcl:"project_id"`
}

func (e *Exchange) Validate() error {
	if e.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if !strings.HasPrefix(e.APIURL, "http://") && !strings.HasPrefix(e.APIURL, "https://") {
		return fmt.Errorf("api_url must be an http(s) URL, got %q", e.APIURL)
	}
	if e.WSURL == "" {
		return fmt.Errorf("ws_url is required")
	}
	if !strings.HasPrefix(e.WSURL, "ws://") && !strings.HasPrefix(e.WSURL, "wss://") {
		return fmt.Errorf("ws_url must be a ws(s) URL, got %q", e.WSURL)
	}
	if e.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	return nil
}

// ResolvedAuthURL returns the auth endpoint, defaulting to {api_url}/auth.
func (e *Exchange) ResolvedAuthURL() string {
	if e.AuthURL != "" {
		return e.AuthURL
	}
	return strings.TrimSuffix(e.APIURL, "/") + "/auth"
}
