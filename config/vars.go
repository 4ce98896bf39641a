package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Variable overrides live outside the project config so secrets such as
// exchange API keys never land in a committed .hcl file. The file holds one
// NAME=value per line under the user's lifeline dotdir and feeds the vars.*
// evaluation context when a config is loaded.

const overridesFile = "vars.txt"

// OverridesPath returns the location of the operator's override file.
func OverridesPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".lifeline", overridesFile), nil
}

// LoadOverrides reads the override file. A missing file is an empty set,
// not an error. Blank lines and # comments are skipped.
func LoadOverrides() (map[string]string, error) {
	path, err := OverridesPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		overrides[name] = value
	}
	return overrides, nil
}

// SetOverride stores name=value, replacing any previous value.
func SetOverride(name, value string) error {
	if name == "" || strings.ContainsAny(name, "=\n") {
		return fmt.Errorf("invalid variable name %q", name)
	}
	if strings.Contains(value, "\n") {
		return fmt.Errorf("variable %q: value cannot span lines", name)
	}
	overrides, err := LoadOverrides()
	if err != nil {
		return err
	}
	overrides[name] = value
	return saveOverrides(overrides)
}

// UnsetOverride removes the stored value for name.
func UnsetOverride(name string) error {
	overrides, err := LoadOverrides()
	if err != nil {
		return err
	}
	if _, ok := overrides[name]; !ok {
		return fmt.Errorf("no override set for variable %q", name)
	}
	delete(overrides, name)
	return saveOverrides(overrides)
}

// saveOverrides writes the full set sorted by name, mode 0600 since values
// are typically secrets.
func saveOverrides(overrides map[string]string) error {
	path, err := OverridesPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("# lifeline variable overrides, managed by `lifeline vars`\n")
	for _, name := range names {
		fmt.Fprintf(&b, "%s=%s\n", name, overrides[name])
	}
	return os.WriteFile(path, []byte(b.String()), 0600)
}
