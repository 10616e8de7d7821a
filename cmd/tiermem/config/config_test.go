package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/tiermem/cmd/tiermem/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		subcommands := []string{}
		for _, sub := range cmd.Commands() {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.PersistentFlags().String("config-dir", "", "")
		out = &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		return cmd.Execute()
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	Describe("set subcommand", func() {
		It("writes config.toml", func() {
			Expect(run("set", "cache.provider", "redis")).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`provider = "redis"`))
			Expect(out.String()).To(ContainSubstring("cache.provider"))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "invalid_key", "value")).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("rejects unknown providers", func() {
			Expect(run("set", "vector_store.provider", "faiss")).To(HaveOccurred())
		})

		It("rejects thresholds outside 1 to 10", func() {
			Expect(run("set", "memory.weekly_threshold", "11")).To(HaveOccurred())
		})

		It("rejects invalid uint values", func() {
			Expect(run("set", "embedding.dimensions", "not-a-number")).To(HaveOccurred())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "cache.provider")).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(run("set", "scorer.provider", "anthropic")).To(Succeed())
			Expect(run("get", "scorer.provider")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("anthropic"))
		})

		It("falls back to defaults", func() {
			Expect(run("get", "memory.promotion_threshold")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("5"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("lists every key", func() {
			Expect(run("set", "events.provider", "kafka")).To(Succeed())
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(MatchRegexp(`events\.provider\s+= "kafka"`))
			Expect(out.String()).To(MatchRegexp(`memory\.weekly_threshold\s+= "7"`))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).To(HaveOccurred())
		})
	})
})

