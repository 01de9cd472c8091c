package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/shopstream/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	writeConfig := func(data string) {
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())
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
			cfg := load()
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config fields", func() {
			writeConfig(`version = 0

[client]
api_target = "http://shop.internal:9000"
timeout = "30s"

[decoder]
encoding = "iso-8859-1"
strict = true
skip_malformed = true
max_buffer = 4096

[history]
provider = "postgres"
sqlite_path = "/tmp/history.db"
postgres_dsn = "postgres://u@db/shop"

[eventstream]
provider = "kafka"
brokers = "k1:9092,k2:9092"
topic = "chat.messages"

[mock]
listen = ":9999"
`)
			cfg := load()
			Expect(cfg.Client.APITarget).To(Equal("http://shop.internal:9000"))
			Expect(cfg.Client.Timeout).To(Equal("30s"))
			Expect(cfg.Decoder.Encoding).To(Equal("iso-8859-1"))
			Expect(cfg.Decoder.Strict).To(BeTrue())
			Expect(cfg.Decoder.SkipMalformed).To(BeTrue())
			Expect(cfg.Decoder.MaxBuffer).To(Equal(4096))
			Expect(cfg.History.Provider).To(Equal("postgres"))
			Expect(cfg.History.SQLitePath).To(Equal("/tmp/history.db"))
			Expect(cfg.History.PostgresDSN).To(Equal("postgres://u@db/shop"))
			Expect(cfg.EventStream.Provider).To(Equal("kafka"))
			Expect(cfg.EventStream.Brokers).To(Equal("k1:9092,k2:9092"))
			Expect(cfg.EventStream.Topic).To(Equal("chat.messages"))
			Expect(cfg.Mock.Listen).To(Equal(":9999"))
		})

		It("fills in defaults for unset fields in a partial config", func() {
			writeConfig(`[decoder]
strict = true
`)
			cfg := load()
			defaults := config.NewDefaultConfig()
			Expect(cfg.Decoder.Strict).To(BeTrue())
			Expect(cfg.Decoder.Encoding).To(Equal(defaults.Decoder.Encoding))
			Expect(cfg.Decoder.MaxBuffer).To(Equal(defaults.Decoder.MaxBuffer))
			Expect(cfg.Client).To(Equal(defaults.Client))
			Expect(cfg.History.Provider).To(Equal(defaults.History.Provider))
			Expect(cfg.EventStream.Topic).To(Equal(defaults.EventStream.Topic))
			Expect(cfg.Mock.Listen).To(Equal(defaults.Mock.Listen))
		})

		It("returns error for malformed TOML", func() {
			writeConfig("not valid toml [[[")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("parsing config TOML")))
		})

		It("returns error for unsupported config version", func() {
			writeConfig("version = 99\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version 99")))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Client.APITarget = "http://saved:8000"
			cfg.Decoder.SkipMalformed = true
			Expect(c.SaveConfig(cfg)).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`api_target = "http://saved:8000"`))
			Expect(string(data)).To(ContainSubstring("skip_malformed = true"))

			Expect(load()).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})
	})

	Describe("SetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets a string config key", func() {
			Expect(c.SetConfigValue("client.api_target", "http://other:8000")).To(Succeed())
			Expect(load().Client.APITarget).To(Equal("http://other:8000"))
		})

		It("sets a bool config key", func() {
			Expect(c.SetConfigValue("decoder.strict", "true")).To(Succeed())
			Expect(load().Decoder.Strict).To(BeTrue())
		})

		It("sets an int config key", func() {
			Expect(c.SetConfigValue("decoder.max_buffer", "2048")).To(Succeed())
			Expect(load().Decoder.MaxBuffer).To(Equal(2048))
		})

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("eventstream.provider", "kafka")).To(Succeed())
			Expect(c.SetConfigValue("eventstream.brokers", "k:9092")).To(Succeed())

			cfg := load()
			Expect(cfg.EventStream.Provider).To(Equal("kafka"))
			Expect(cfg.EventStream.Brokers).To(Equal("k:9092"))
		})

		DescribeTable("rejects invalid values",
			func(key, value, msg string) {
				Expect(c.SetConfigValue(key, value)).To(MatchError(ContainSubstring(msg)))
			},
			Entry("unknown key", "proxy.upstream", "x", "unknown config key"),
			Entry("bool", "decoder.strict", "maybe", "invalid value for decoder.strict"),
			Entry("negative int", "decoder.max_buffer", "-1", "invalid value for decoder.max_buffer"),
			Entry("duration", "client.timeout", "soon", "invalid value for client.timeout"),
			Entry("history provider", "history.provider", "mongo", "invalid value for history.provider"),
			Entry("eventstream provider", "eventstream.provider", "nats", "invalid value for eventstream.provider"),
		)
	})

	Describe("GetConfigValue", func() {
		It("returns default values when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			v, err := c.GetConfigValue("client.api_target")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("http://localhost:8000"))

			v, err = c.GetConfigValue("decoder.strict")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("false"))

			v, err = c.GetConfigValue("decoder.max_buffer")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("1048576"))
		})

		It("returns empty string for key with no default", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			v, err := c.GetConfigValue("history.postgres_dsn")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeEmpty())
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.GetConfigValue("nope")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("returns every key in section order", func() {
		keys := config.ValidConfigKeys()
		Expect(keys).To(HaveLen(13))
		Expect(keys[0]).To(Equal("client.api_target"))
		Expect(keys[len(keys)-1]).To(Equal("mock.listen"))
		for _, k := range keys {
			Expect(config.IsValidConfigKey(k)).To(BeTrue(), k)
		}
	})

	It("rejects unknown keys", func() {
		Expect(config.IsValidConfigKey("storage.sqlite_path")).To(BeFalse())
	})
})

var _ = Describe("PresetConfig", func() {
	It("returns the local preset pointed at the mock server", func() {
		cfg, err := config.PresetConfig("local")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Client.APITarget).To(Equal("http://localhost:8000"))
		Expect(cfg.History.Provider).To(Equal("sqlite"))
		Expect(cfg.EventStream.Provider).To(Equal("none"))
	})

	It("returns the team preset with shared backends", func() {
		cfg, err := config.PresetConfig("TEAM")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.History.Provider).To(Equal("postgres"))
		Expect(cfg.History.PostgresDSN).NotTo(BeEmpty())
		Expect(cfg.EventStream.Provider).To(Equal("kafka"))
		Expect(cfg.EventStream.Brokers).To(Equal("localhost:9092"))
		Expect(cfg.Decoder.SkipMalformed).To(BeTrue())
	})

	It("rejects unknown presets", func() {
		_, err := config.PresetConfig("cloud")
		Expect(err).To(MatchError(ContainSubstring("available: local, team")))
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("returns empty config for empty input", func() {
		cfg, err := config.ParseConfigTOML([]byte(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Client.APITarget).To(BeEmpty())
	})

	It("returns error for invalid TOML", func() {
		cfg, err := config.ParseConfigTOML([]byte("not valid [[["))
		Expect(err).To(HaveOccurred())
		Expect(cfg).To(BeNil())
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetString("client.api_target")).To(Equal("http://localhost:8000"))
		Expect(v.GetDuration("client.timeout")).To(Equal(5 * time.Minute))
		Expect(v.GetInt("decoder.max_buffer")).To(Equal(1048576))
		Expect(v.GetBool("decoder.strict")).To(BeFalse())
	})

	It("reads config file values over defaults", func() {
		data := `[client]
api_target = "http://file:8000"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("client.api_target")).To(Equal("http://file:8000"))
		Expect(v.GetString("mock.listen")).To(Equal(":8000"))
	})

	It("env vars take precedence over config file values", func() {
		data := `[decoder]
encoding = "utf-8"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())
		GinkgoT().Setenv("SHOPSTREAM_DECODER_ENCODING", "shift_jis")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("decoder.encoding")).To(Equal("shift_jis"))
	})
})

var _ = Describe("Flag registry", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("binds cobra flags to viper keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var target string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &target)
		Expect(cmd.Flags().Set("api-target", "http://flag:1")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPITarget})
		Expect(v.GetString("client.api_target")).To(Equal("http://flag:1"))
	})

	It("falls through to config when flag not set", func() {
		data := `[mock]
listen = ":5555"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagMockListen, &listen)
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagMockListen, "nonexistent"})

		Expect(v.GetString("mock.listen")).To(Equal(":5555"))
	})

	It("takes name, shorthand, default and usage from the registry", func() {
		cmd := &cobra.Command{Use: "test"}
		var (
			target  string
			strict  bool
			max     int
			timeout time.Duration
		)
		config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &target)
		config.AddBoolFlag(cmd, config.Flags, config.FlagStrict, &strict)
		config.AddIntFlag(cmd, config.Flags, config.FlagMaxBuffer, &max)
		config.AddDurationFlag(cmd, config.Flags, config.FlagTimeout, &timeout)

		f := cmd.Flags().Lookup("api-target")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("a"))
		Expect(f.DefValue).To(Equal("http://localhost:8000"))

		Expect(cmd.Flags().Lookup("strict").DefValue).To(Equal("false"))
		Expect(cmd.Flags().Lookup("max-buffer").DefValue).To(Equal("1048576"))
		Expect(timeout).To(Equal(5 * time.Minute))
	})

	It("ignores unregistered keys", func() {
		cmd := &cobra.Command{Use: "test"}
		var s string
		config.AddStringFlag(cmd, config.Flags, "nonexistent", &s)
		Expect(cmd.Flags().HasFlags()).To(BeFalse())
	})
})

var _ = Describe("FromViper", func() {
	It("merges flags, env and file into a Config", func() {
		tmpDir := GinkgoT().TempDir()
		data := `[history]
provider = "memory"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())
		GinkgoT().Setenv("SHOPSTREAM_DECODER_STRICT", "true")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var target string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &target)
		Expect(cmd.Flags().Set("api-target", "http://flag:1")).To(Succeed())
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPITarget})

		cfg := config.FromViper(v)
		Expect(cfg.Client.APITarget).To(Equal("http://flag:1"))
		Expect(cfg.Client.TimeoutDuration()).To(Equal(5 * time.Minute))
		Expect(cfg.Decoder.Strict).To(BeTrue())
		Expect(cfg.Decoder.SSEOptions()).To(HaveLen(3))
		Expect(cfg.History.Provider).To(Equal("memory"))
		Expect(cfg.EventStream.Topic).To(Equal("shopstream.messages"))
	})
})
