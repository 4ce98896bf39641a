package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Config holds all configuration
type Config struct {
	Exchange  *Exchange      `hcl:"exchange,block"`
	Storage   *StorageConfig `hcl:"storage,block"`
	Defaults  *Defaults      `hcl:"defaults,block"`
	Variables []Variable     `hcl:"variable,block"`

	// ResolvedVars holds the resolved variable values for runtime use
	ResolvedVars map[string]cty.Value `hcl:"-"`
}

func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// LoadAndValidate loads the config and validates all components
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all config components are valid
func (c *Config) Validate() error {
	if c.Exchange == nil {
		return fmt.Errorf("missing required 'exchange' block")
	}
	if err := c.Exchange.Validate(); err != nil {
		return fmt.Errorf("exchange: %w", err)
	}

	for _, v := range c.Variables {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("variable '%s': %w", v.Name, err)
		}
	}

	if c.Storage != nil {
		if err := c.Storage.Validate(); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}

	if c.Defaults != nil {
		if err := c.Defaults.Validate(); err != nil {
			return fmt.Errorf("defaults: %w", err)
		}
	}

	return nil
}

func LoadFile(filename string) (*Config, error) {
	return loadFromFiles([]string{filename})
}

func LoadDir(dir string) (*Config, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.hcl"))
	if err != nil {
		return nil, err
	}
	return loadFromFiles(files)
}

// parsedBlocks holds all blocks extracted from a file in one pass
type parsedBlocks struct {
	Variables []*hcl.Block
	Exchanges []*hcl.Block
	Storages  []*hcl.Block
	Defaults  []*hcl.Block
}

// loadFromFiles implements staged loading: variables first, then everything
// that may reference them through vars.*
func loadFromFiles(files []string) (*Config, error) {
	parser := hclparse.NewParser()
	var allParsedBlocks []parsedBlocks

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parse %s: %w", file, diags)
		}

		content, _, diags := hclFile.Body.PartialContent(&hcl.BodySchema{
			Blocks: []hcl.BlockHeaderSchema{
				{Type: "variable", LabelNames: []string{"name"}},
				{Type: "exchange"},
				{Type: "storage"},
				{Type: "defaults"},
			},
		})
		if diags.HasErrors() {
			return nil, fmt.Errorf("partial content %s: %w", file, diags)
		}

		var pb parsedBlocks
		for _, block := range content.Blocks {
			switch block.Type {
			case "variable":
				pb.Variables = append(pb.Variables, block)
			case "exchange":
				pb.Exchanges = append(pb.Exchanges, block)
			case "storage":
				pb.Storages = append(pb.Storages, block)
			case "defaults":
				pb.Defaults = append(pb.Defaults, block)
			}
		}
		allParsedBlocks = append(allParsedBlocks, pb)
	}

	// Stage 1: load variables (no context needed)
	var allVars []Variable
	for _, pb := range allParsedBlocks {
		for _, block := range pb.Variables {
			var v Variable
			v.Name = block.Labels[0]
			diags := gohcl.DecodeBody(block.Body, nil, &v)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode variable %s: %w", v.Name, diags)
			}
			allVars = append(allVars, v)
		}
	}

	varsCtx, resolvedVars := buildVarsContext(allVars)

	cfg := &Config{
		Variables:    allVars,
		ResolvedVars: resolvedVars,
	}

	// Stage 2: load the remaining blocks with the vars context
	for _, pb := range allParsedBlocks {
		for _, block := range pb.Exchanges {
			if cfg.Exchange != nil {
				return nil, fmt.Errorf("duplicate 'exchange' block")
			}
			var e Exchange
			diags := gohcl.DecodeBody(block.Body, varsCtx, &e)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode exchange: %w", diags)
			}
			cfg.Exchange = &e
		}
		for _, block := range pb.Storages {
			if cfg.Storage != nil {
				return nil, fmt.Errorf("duplicate 'storage' block")
			}
			var s StorageConfig
			diags := gohcl.DecodeBody(block.Body, varsCtx, &s)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode storage: %w", diags)
			}
			cfg.Storage = &s
		}
		for _, block := range pb.Defaults {
			if cfg.Defaults != nil {
				return nil, fmt.Errorf("duplicate 'defaults' block")
			}
			var d Defaults
			diags := gohcl.DecodeBody(block.Body, varsCtx, &d)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode defaults: %w", diags)
			}
			cfg.Defaults = &d
		}
	}

	if cfg.Storage == nil {
		cfg.Storage = &StorageConfig{}
	}
	cfg.Storage.ApplyDefaults()

	if cfg.Defaults == nil {
		cfg.Defaults = &Defaults{}
	}
	cfg.Defaults.ApplyDefaults()

	return cfg, nil
}

// buildVarsContext creates context with just vars
func buildVarsContext(vars []Variable) (*hcl.EvalContext, map[string]cty.Value) {
	varsMap := make(map[string]cty.Value)
	overrides, _ := LoadOverrides()
	for _, v := range vars {
		if val, ok := overrides[v.Name]; ok {
			varsMap[v.Name] = cty.StringVal(val)
		} else if v.Default != "" {
			varsMap[v.Name] = cty.StringVal(v.Default)
		} else {
			varsMap[v.Name] = cty.StringVal("")
		}
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"vars": cty.ObjectVal(varsMap),
		},
	}, varsMap
}
