package cmd

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"

	"lifeline/auth"
	"lifeline/config"
	"lifeline/directory"
	"lifeline/resolver"
	"lifeline/session"
	"lifeline/store"
	"lifeline/tools"
)

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "path to a config file or directory")
}

func newLogger() hclog.Logger {
	level := hclog.Info
	if lv := os.Getenv("LIFELINE_LOG"); lv != "" {
		level = hclog.LevelFromString(lv)
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "lifeline",
		Level:  level,
		Output: os.Stderr,
	})
}

func loadTokenStore(cfg *config.Config, log hclog.Logger) (*auth.Store, error) {
	tokenPath, err := auth.DefaultTokenPath()
	if err != nil {
		return nil, fmt.Errorf("resolve token path: %w", err)
	}
	return auth.NewStore(tokenPath, cfg.Exchange.ResolvedAuthURL(), log.Named("auth")), nil
}

// buildDeps loads configuration and wires up every collaborator the tools
// need. The caller owns the returned bundle and must Close the stores.
func buildDeps(path string) (*tools.Deps, error) {
	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		return nil, err
	}

	log := newLogger()

	tokens, err := loadTokenStore(cfg, log)
	if err != nil {
		return nil, err
	}

	stores, err := store.NewBundle(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	dir := directory.NewClient(cfg.Exchange.APIURL, tokens, log.Named("directory"))

	return &tools.Deps{
		Config:    cfg,
		Directory: dir,
		Resolver:  resolver.New(dir, log.Named("resolver")),
		Sessions:  session.NewManager(cfg.Exchange.WSURL, tokens, log.Named("session")),
		Stores:    stores,
		Log:       log,
	}, nil
}
