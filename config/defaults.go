package config

import "fmt"

// Credit bounds per task mode. The tool façade rejects anything outside
// these before touching the network.
const (
	QuickCreditsMin = 1
	QuickCreditsMax = 10
	ChatCreditsMin  = 4
	ChatCreditsMax  = 1920
)

// Defaults sets the per-call fallbacks used when the agent omits a value.
type Defaults struct {
	QuickCredits   int `hcl:"quick_credits,optional"`
	ChatCredits    int `hcl:"chat_credits,optional"`
	TimeoutSeconds int `hcl:"timeout_seconds,optional"`
}

// ApplyDefaults fills in default values for unset fields
func (d *Defaults) ApplyDefaults() {
	if d.QuickCredits == 0 {
		d.QuickCredits = 5
	}
	if d.ChatCredits == 0 {
		d.ChatCredits = 60
	}
	if d.TimeoutSeconds == 0 {
		d.TimeoutSeconds = 300
	}
}

func (d *Defaults) Validate() error {
	if d.QuickCredits != 0 && (d.QuickCredits < QuickCreditsMin || d.QuickCredits > QuickCreditsMax) {
		return fmt.Errorf("quick_credits must be between %d and %d", QuickCreditsMin, QuickCreditsMax)
	}
	if d.ChatCredits != 0 && (d.ChatCredits < ChatCreditsMin || d.ChatCredits > ChatCreditsMax) {
		return fmt.Errorf("chat_credits must be between %d and %d", ChatCreditsMin, ChatCreditsMax)
	}
	if d.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds cannot be negative")
	}
	return nil
}
