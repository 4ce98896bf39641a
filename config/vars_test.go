package config_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/zclconf/go-cty/cty"

	"lifeline/config"
)

var _ = Describe("Variable Overrides", func() {

	BeforeEach(func() {
		GinkgoT().Setenv("HOME", GinkgoT().TempDir())
	})

	Describe("Set and Load", func() {
		It("round-trips values through the override file", func() {
			Expect(config.SetOverride("api_key", "sk-123")).To(Succeed())
			Expect(config.SetOverride("project", "proj-9")).To(Succeed())

			overrides, err := config.LoadOverrides()
			Expect(err).NotTo(HaveOccurred())
			Expect(overrides).To(Equal(map[string]string{
				"api_key": "sk-123",
				"project": "proj-9",
			}))
		})

		It("treats a missing file as an empty set", func() {
			overrides, err := config.LoadOverrides()
			Expect(err).NotTo(HaveOccurred())
			Expect(overrides).To(BeEmpty())
		})

		It("writes the file sorted, commented, and owner-only", func() {
			Expect(config.SetOverride("zed", "z")).To(Succeed())
			Expect(config.SetOverride("alpha", "a")).To(Succeed())

			path, err := config.OverridesPath()
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join(os.Getenv("HOME"), ".lifeline", "vars.txt")))

			info, err := os.Stat(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0600)))

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			Expect(lines[0]).To(HavePrefix("#"))
			Expect(lines[1:]).To(Equal([]string{"alpha=a", "zed=z"}))
		})

		It("rejects names and values that would corrupt the file", func() {
			Expect(config.SetOverride("bad=name", "v")).NotTo(Succeed())
			Expect(config.SetOverride("", "v")).NotTo(Succeed())
			Expect(config.SetOverride("ok", "line1\nline2")).NotTo(Succeed())
		})
	})

	Describe("Unset", func() {
		It("removes a set override", func() {
			Expect(config.SetOverride("project", "proj-9")).To(Succeed())
			Expect(config.UnsetOverride("project")).To(Succeed())

			overrides, err := config.LoadOverrides()
			Expect(err).NotTo(HaveOccurred())
			Expect(overrides).NotTo(HaveKey("project"))
		})

		It("errors when nothing is set for the name", func() {
			err := config.UnsetOverride("missing")
			Expect(err).To(MatchError(ContainSubstring(`no override set for variable "missing"`)))
		})
	})

	Describe("ResolveVariables", func() {
		declared := []config.Variable{
			{Name: "project", Default: "proj-default"},
			{Name: "api_key", Secret: true},
		}

		It("prefers the override over the declared default", func() {
			resolved := config.ResolveVariables(declared, map[string]string{"project": "proj-override"})
			Expect(resolved[0].Name).To(Equal("project"))
			Expect(resolved[0].Value).To(Equal("proj-override"))
			Expect(resolved[0].Override).To(BeTrue())
			Expect(resolved[0].Declared).To(BeTrue())
		})

		It("falls back to the default when no override is set", func() {
			resolved := config.ResolveVariables(declared, nil)
			Expect(resolved[0].Value).To(Equal("proj-default"))
			Expect(resolved[0].Override).To(BeFalse())
		})

		It("flags override entries the config never declares", func() {
			resolved := config.ResolveVariables(declared, map[string]string{"api_kye": "typo"})
			Expect(resolved).To(HaveLen(3))
			Expect(resolved[2].Name).To(Equal("api_kye"))
			Expect(resolved[2].Declared).To(BeFalse())
			Expect(resolved[2].Override).To(BeTrue())
		})

		It("never echoes secret values", func() {
			resolved := config.ResolveVariables(declared, map[string]string{"api_key": "sk-123"})
			Expect(resolved[1].Secret).To(BeTrue())
			Expect(resolved[1].DisplayValue()).To(Equal("(secret)"))
			Expect(resolved[1].Value).To(Equal("sk-123"))
		})

		It("marks unset declared variables", func() {
			resolved := config.ResolveVariables(declared, nil)
			Expect(resolved[1].DisplayValue()).To(Equal("(secret)"))
			Expect(resolved[0].DisplayValue()).To(Equal("proj-default"))
		})
	})

	Describe("config loading with overrides", func() {
		It("lets the override file win over the declared default", func() {
			Expect(config.SetOverride("project", "proj-from-override")).To(Succeed())

			_, f := writeFixture("config.hcl", `
variable "project" { default = "proj-from-config" }

exchange {
  api_url    = "https://exchange.example.com/api"
  ws_url     = "wss://exchange.example.com/ws"
  project_id = vars.project
}
`)
			cfg, err := config.Load(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Exchange.ProjectID).To(Equal("proj-from-override"))
			Expect(cfg.ResolvedVars["project"]).To(Equal(cty.StringVal("proj-from-override")))
		})

		It("fills a secret variable only from the override file", func() {
			Expect(config.SetOverride("api_key", "sk-123")).To(Succeed())

			_, f := writeFixture("config.hcl", minimalExchangeHCL()+`
variable "api_key" { secret = true }
`)
			cfg, err := config.Load(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.ResolvedVars["api_key"]).To(Equal(cty.StringVal("sk-123")))

			v, ok := cfg.Declared("api_key")
			Expect(ok).To(BeTrue())
			Expect(v.Secret).To(BeTrue())
		})
	})
})
