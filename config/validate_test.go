package config_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lifeline/config"
)

var _ = Describe("Config Validation", func() {

	Describe("Exchange", func() {
		It("requires an exchange block", func() {
			_, f := writeFixture("config.hcl", `variable "x" { default = "y" }`)
			_, err := config.LoadAndValidate(f)
			Expect(err).To(MatchError(ContainSubstring("missing required 'exchange' block")))
		})

		It("rejects a non-http api_url", func() {
			hcl := `
exchange {
  api_url    = "ftp://exchange.example.com"
  ws_url     = "wss://exchange.example.com/ws"
  project_id = "proj-1"
}
`
			_, f := writeFixture("config.hcl", hcl)
			_, err := config.LoadAndValidate(f)
			Expect(err).To(MatchError(ContainSubstring("api_url must be an http(s) URL")))
		})

		It("rejects a non-ws ws_url", func() {
			hcl := `
exchange {
  api_url    = "https://exchange.example.com/api"
  ws_url     = "https://exchange.example.com/ws"
  project_id = "proj-1"
}
`
			_, f := writeFixture("config.hcl", hcl)
			_, err := config.LoadAndValidate(f)
			Expect(err).To(MatchError(ContainSubstring("ws_url must be a ws(s) URL")))
		})

		It("requires a project id", func() {
			hcl := `
exchange {
  api_url    = "https://exchange.example.com/api"
  ws_url     = "wss://exchange.example.com/ws"
  project_id = ""
}
`
			_, f := writeFixture("config.hcl", hcl)
			_, err := config.LoadAndValidate(f)
			Expect(err).To(MatchError(ContainSubstring("project_id is required")))
		})

		It("defaults the auth URL under the API URL", func() {
			e := &config.Exchange{APIURL: "https://exchange.example.com/api/"}
			Expect(e.ResolvedAuthURL()).To(Equal("https://exchange.example.com/api/auth"))

			e.AuthURL = "https://login.example.com"
			Expect(e.ResolvedAuthURL()).To(Equal("https://login.example.com"))
		})
	})

	Describe("Variables", func() {
		It("rejects a secret variable with a default", func() {
			hcl := minimalExchangeHCL() + `
variable "api_token" {
  secret  = true
  default = "leaked"
}
`
			_, f := writeFixture("config.hcl", hcl)
			_, err := config.LoadAndValidate(f)
			Expect(err).To(MatchError(ContainSubstring("secret variable 'api_token' cannot have a default")))
		})
	})

	Describe("Storage", func() {
		It("rejects an unknown backend", func() {
			hcl := minimalExchangeHCL() + `storage { backend = "postgres" }`
			_, f := writeFixture("config.hcl", hcl)
			_, err := config.LoadAndValidate(f)
			Expect(err).To(MatchError(ContainSubstring("unknown backend")))
		})
	})

	Describe("Defaults", func() {
		It("rejects quick_credits outside the quick bounds", func() {
			hcl := minimalExchangeHCL() + `defaults { quick_credits = 11 }`
			_, f := writeFixture("config.hcl", hcl)
			_, err := config.LoadAndValidate(f)
			Expect(err).To(MatchError(ContainSubstring("quick_credits must be between 1 and 10")))
		})

		It("rejects chat_credits outside the chat bounds", func() {
			hcl := minimalExchangeHCL() + `defaults { chat_credits = 2000 }`
			_, f := writeFixture("config.hcl", hcl)
			_, err := config.LoadAndValidate(f)
			Expect(err).To(MatchError(ContainSubstring("chat_credits must be between 4 and 1920")))
		})

		It("accepts in-range overrides", func() {
			hcl := minimalExchangeHCL() + `
defaults {
  quick_credits = 8
  chat_credits  = 240
}
`
			_, f := writeFixture("config.hcl", hcl)
			cfg, err := config.LoadAndValidate(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Defaults.QuickCredits).To(Equal(8))
			Expect(cfg.Defaults.ChatCredits).To(Equal(240))
		})
	})
})
