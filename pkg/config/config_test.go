package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tiermem/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	write := func(data string) {
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())
	}

	load := func() *config.Config {
		c, err := config.NewConfiger(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		cfg, err := c.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		return cfg
	}

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			Expect(load()).To(Equal(config.NewDefaultConfig()))
		})

		It("loads a valid config file and fills in the rest", func() {
			write(`version = 0

[cache]
provider = "redis"
target = "redis.internal:6379"

[memory]
weekly_threshold = 8
promotion_threshold = 6

[retention]
enabled = true
max_age = "720h"
`)
			cfg := load()
			Expect(cfg.Cache.Provider).To(Equal("redis"))
			Expect(cfg.Cache.Target).To(Equal("redis.internal:6379"))
			Expect(cfg.Cache.Namespace).To(Equal("tiermem"))
			Expect(cfg.Memory.WeeklyThreshold).To(Equal(8))
			Expect(cfg.Memory.PromotionThreshold).To(Equal(6))
			Expect(cfg.Memory.Workers).To(Equal(uint(3)))
			Expect(cfg.Retention.Enabled).To(BeTrue())
			Expect(cfg.Retention.MaxAge).To(Equal("720h"))
			Expect(cfg.Retention.Schedule).To(Equal("@daily"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(768)))
		})

		It("returns error for malformed TOML", func() {
			write("[cache\nprovider = ")
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("parsing config TOML")))
		})

		It("returns error for unsupported config version", func() {
			write("version = 99\n")
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version 99")))
		})
	})

	Describe("SaveConfig", func() {
		It("round-trips every field", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Cache.Provider = "redis"
			cfg.Cache.DB = 2
			cfg.VectorStore.Provider = "qdrant"
			cfg.VectorStore.Target = "localhost:6334"
			cfg.Scorer.RatePerSecond = 2.5
			cfg.Events.Provider = "kafka"
			cfg.Retention.Enabled = true
			Expect(c.SaveConfig(cfg)).To(Succeed())

			Expect(load()).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})

		It("writes config.toml inside the target directory", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.GetTarget()).To(Equal(filepath.Join(tmpDir, "config.toml")))
		})
	})

	Describe("SetConfigValue and GetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets and gets typed keys", func() {
			Expect(c.SetConfigValue("cache.provider", "redis")).To(Succeed())
			Expect(c.SetConfigValue("memory.weekly_threshold", "9")).To(Succeed())
			Expect(c.SetConfigValue("embedding.dimensions", "1536")).To(Succeed())
			Expect(c.SetConfigValue("scorer.rate_per_second", "0.5")).To(Succeed())
			Expect(c.SetConfigValue("retention.enabled", "true")).To(Succeed())
			Expect(c.SetConfigValue("scorer.timeout", "3s")).To(Succeed())

			for key, want := range map[string]string{
				"cache.provider":          "redis",
				"memory.weekly_threshold": "9",
				"embedding.dimensions":    "1536",
				"scorer.rate_per_second":  "0.5",
				"retention.enabled":       "true",
				"scorer.timeout":          "3s",
				"api.listen":              ":8090",
			} {
				got, err := c.GetConfigValue(key)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(want), key)
			}
		})

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("events.provider", "kafka")).To(Succeed())
			Expect(c.SetConfigValue("events.topic", "memories")).To(Succeed())

			cfg := load()
			Expect(cfg.Events.Provider).To(Equal("kafka"))
			Expect(cfg.Events.Topic).To(Equal("memories"))
		})

		DescribeTable("rejects invalid values",
			func(key, value, msg string) {
				Expect(c.SetConfigValue(key, value)).To(MatchError(ContainSubstring(msg)))
			},
			Entry("unknown key", "proxy.upstream", "x", "unknown config key"),
			Entry("non-integer threshold", "memory.weekly_threshold", "high", "invalid value for memory.weekly_threshold"),
			Entry("out of range threshold", "memory.promotion_threshold", "11", "between 1 and 10"),
			Entry("bad duration", "scorer.timeout", "soon", "invalid value for scorer.timeout"),
			Entry("bad bool", "retention.enabled", "maybe", "invalid value for retention.enabled"),
			Entry("unknown provider", "cache.provider", "memcached", "unsupported cache provider"),
		)

		It("returns error for unknown key on get", func() {
			_, err := c.GetConfigValue("nope")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("lists keys in section order", func() {
		keys := config.ValidConfigKeys()
		Expect(keys[0]).To(Equal("api.listen"))
		Expect(keys).To(ContainElements("memory.weekly_threshold", "memory.promotion_threshold", "retention.enabled"))
		Expect(keys).To(Equal(config.ValidConfigKeys()))
		for _, k := range keys {
			Expect(config.IsValidConfigKey(k)).To(BeTrue())
		}
		Expect(config.IsValidConfigKey("storage.sqlite_path")).To(BeFalse())
	})
})

var _ = Describe("Validate", func() {
	It("accepts the defaults", func() {
		Expect(config.NewDefaultConfig().Validate()).To(Succeed())
	})

	It("reports every problem", func() {
		cfg := config.NewDefaultConfig()
		cfg.VectorStore.Provider = "pinecone"
		cfg.Memory.WeeklyThreshold = 0
		err := cfg.Validate()
		Expect(err).To(MatchError(ContainSubstring("unsupported vector_store provider")))
		Expect(err).To(MatchError(ContainSubstring("memory.weekly_threshold")))
	})
})

var _ = Describe("PresetConfig", func() {
	It("points scorer and embedding at openai", func() {
		cfg, err := config.PresetConfig("OpenAI")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Scorer.Provider).To(Equal("openai"))
		Expect(cfg.Embedding.Provider).To(Equal("openai"))
		Expect(cfg.Embedding.Dimensions).To(Equal(uint(1536)))
		Expect(cfg.Validate()).To(Succeed())
	})

	It("keeps ollama embeddings for the anthropic preset", func() {
		cfg, err := config.PresetConfig("anthropic")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Scorer.Provider).To(Equal("anthropic"))
		Expect(cfg.Embedding.Provider).To(Equal("ollama"))
	})

	It("returns error for unknown preset", func() {
		_, err := config.PresetConfig("gemini")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
		Expect(config.ValidPresetNames()).To(Equal([]string{"openai", "anthropic", "ollama"}))
	})
})

var _ = Describe("Duration", func() {
	It("parses or falls back", func() {
		Expect(config.Duration("3s", 0).Seconds()).To(Equal(3.0))
		Expect(config.Duration("", 7).Nanoseconds()).To(Equal(int64(7)))
		Expect(config.Duration("-1s", 7).Nanoseconds()).To(Equal(int64(7)))
	})
})
