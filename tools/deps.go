package tools

import (
	"github.com/hashicorp/go-hclog"

	"lifeline/config"
	"lifeline/directory"
	"lifeline/resolver"
	"lifeline/session"
	"lifeline/store"
)

// Deps bundles the collaborators both tools compose. The tools hold no
// connection state of their own: sessions live in the manager, keyed by
// task id, so concurrent calls against different tasks cannot interleave.
type Deps struct {
	Config    *config.Config
	Directory *directory.Client
	Resolver  *resolver.Resolver
	Sessions  *session.Manager
	Stores    *store.Bundle
	Log       hclog.Logger
}

// All returns every tool exposed to the agent host.
func All(d *Deps) []Tool {
	return []Tool{
		NewQuickQueryTool(d),
		NewExtendedChatTool(d),
	}
}
