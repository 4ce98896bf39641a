package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lifeline/config"
)

var _ = Describe("Config Loading", func() {

	Describe("Load", func() {
		It("routes to LoadFile for a file path", func() {
			_, f := writeFixture("config.hcl", minimalExchangeHCL())
			cfg, err := config.Load(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Exchange).NotTo(BeNil())
			Expect(cfg.Exchange.ProjectID).To(Equal("proj-1"))
		})

		It("routes to LoadDir for a directory path", func() {
			dir := writeFixtures(map[string]string{
				"exchange.hcl": minimalExchangeHCL(),
				"storage.hcl":  `storage { backend = "sqlite" }`,
			})
			cfg, err := config.Load(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Exchange).NotTo(BeNil())
			Expect(cfg.Storage.Backend).To(Equal("sqlite"))
		})

		It("returns error for nonexistent path", func() {
			_, err := config.Load("/nonexistent/path/config.hcl")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("LoadFile", func() {
		It("parses a single file with every block type", func() {
			hcl := minimalExchangeHCL() + `
variable "token_hint" { default = "ops" }

storage {
  backend = "sqlite"
  path    = "/tmp/lifeline.db"
}

defaults {
  quick_credits   = 3
  chat_credits    = 120
  timeout_seconds = 600
}
`
			_, f := writeFixture("config.hcl", hcl)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Variables).To(HaveLen(1))
			Expect(cfg.Storage.Path).To(Equal("/tmp/lifeline.db"))
			Expect(cfg.Defaults.QuickCredits).To(Equal(3))
			Expect(cfg.Defaults.ChatCredits).To(Equal(120))
			Expect(cfg.Defaults.TimeoutSeconds).To(Equal(600))
		})

		It("returns parse error for invalid HCL syntax", func() {
			_, f := writeFixture("bad.hcl", `exchange { missing brace`)
			_, err := config.LoadFile(f)
			Expect(err).To(HaveOccurred())
		})

		It("rejects duplicate exchange blocks", func() {
			_, f := writeFixture("config.hcl", minimalExchangeHCL()+minimalExchangeHCL())
			_, err := config.LoadFile(f)
			Expect(err).To(MatchError(ContainSubstring("duplicate 'exchange' block")))
		})
	})

	Describe("LoadDir", func() {
		It("ignores non-.hcl files", func() {
			dir := writeFixtures(map[string]string{
				"config.hcl": minimalExchangeHCL(),
				"readme.txt": `not HCL at all`,
			})
			cfg, err := config.LoadDir(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Exchange).NotTo(BeNil())
		})

		It("rejects the same block split across files", func() {
			dir := writeFixtures(map[string]string{
				"a.hcl": `defaults { quick_credits = 2 }`,
				"b.hcl": `defaults { chat_credits = 90 }`,
			})
			_, err := config.LoadDir(dir)
			Expect(err).To(MatchError(ContainSubstring("duplicate 'defaults' block")))
		})

		It("returns an empty config for a directory with no .hcl files", func() {
			dir := GinkgoT().TempDir()
			err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hello"), 0644)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := config.LoadDir(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Exchange).To(BeNil())
			Expect(cfg.Variables).To(BeEmpty())
		})
	})

	Describe("Staged evaluation order", func() {
		It("resolves variable references in the exchange block", func() {
			hcl := `
variable "project" { default = "proj-from-var" }

exchange {
  api_url    = "https://exchange.example.com/api"
  ws_url     = "wss://exchange.example.com/ws"
  project_id = vars.project
}
`
			_, f := writeFixture("config.hcl", hcl)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Exchange.ProjectID).To(Equal("proj-from-var"))
		})

		It("resolves variables across files regardless of load order", func() {
			dir := writeFixtures(map[string]string{
				"z_vars.hcl": `variable "project" { default = "cross-file" }`,
				"a_exchange.hcl": `
exchange {
  api_url    = "https://exchange.example.com/api"
  ws_url     = "wss://exchange.example.com/ws"
  project_id = vars.project
}
`,
			})
			cfg, err := config.LoadDir(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Exchange.ProjectID).To(Equal("cross-file"))
		})

		It("resolves an undefined-default variable to empty string", func() {
			hcl := `
variable "unset" {}

storage {
  backend = "memory"
  path    = vars.unset
}
`
			_, f := writeFixture("config.hcl", hcl)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			// ApplyDefaults fills the empty path back in.
			Expect(cfg.Storage.Path).To(Equal(".lifeline/store.db"))
		})
	})

	Describe("Applied defaults", func() {
		It("fills storage and defaults blocks when omitted", func() {
			_, f := writeFixture("config.hcl", minimalExchangeHCL())
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfg.Storage.Backend).To(Equal("memory"))
			Expect(cfg.Storage.Path).To(Equal(".lifeline/store.db"))
			Expect(cfg.Defaults.QuickCredits).To(Equal(5))
			Expect(cfg.Defaults.ChatCredits).To(Equal(60))
			Expect(cfg.Defaults.TimeoutSeconds).To(Equal(300))
		})
	})
})
