package config

import (
	"fmt"
	"sort"
)

// Variable is a declared config input. Its effective value comes from the
// operator's override file when set there, otherwise from the default.
// Secret variables must come from the override file.
type Variable struct {
	Name    string `hcl:"name,label"`
	Default string `hcl:"default,optional"`
	Secret  bool   `hcl:"secret,optional"`
}

func (v *Variable) Validate() error {
	if v.Secret && v.Default != "" {
		return fmt.Errorf("secret variable '%s' cannot have a default value set in config", v.Name)
	}
	return nil
}

// ResolvedVariable is one variable after merging config declarations with
// the override file.
type ResolvedVariable struct {
	Name     string
	Value    string
	Secret   bool
	Declared bool
	Override bool
}

// DisplayValue is the value as shown to the operator. Secrets are never
// echoed.
func (r ResolvedVariable) DisplayValue() string {
	switch {
	case r.Secret:
		return "(secret)"
	case r.Value == "":
		return "(unset)"
	default:
		return r.Value
	}
}

// ResolveVariables merges declared variables with overrides. Declared
// variables keep declaration order; override entries with no matching
// declaration follow, sorted by name, flagged undeclared so the operator
// can spot typos.
func ResolveVariables(declared []Variable, overrides map[string]string) []ResolvedVariable {
	resolved := make([]ResolvedVariable, 0, len(declared))
	seen := make(map[string]bool, len(declared))

	for _, v := range declared {
		rv := ResolvedVariable{Name: v.Name, Value: v.Default, Secret: v.Secret, Declared: true}
		if value, ok := overrides[v.Name]; ok {
			rv.Value = value
			rv.Override = true
		}
		resolved = append(resolved, rv)
		seen[v.Name] = true
	}

	extras := make([]string, 0)
	for name := range overrides {
		if !seen[name] {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	for _, name := range extras {
		resolved = append(resolved, ResolvedVariable{Name: name, Value: overrides[name], Override: true})
	}
	return resolved
}

// Declared returns the variable block for name, if the config has one.
func (c *Config) Declared(name string) (Variable, bool) {
	for _, v := range c.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}
