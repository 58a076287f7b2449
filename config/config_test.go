package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/proxy-sentinel/config"
)

var _ = Describe("Config", func() {
	var (
		tempDir string
		origDir string
	)

	BeforeEach(func() {
		var err error
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tempDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tempDir)
		os.Unsetenv("HEALTH_CHECK_INTERVAL")
		os.Unsetenv("DISCOVERY_CONTAINER_PORT")
		os.Unsetenv("SERVER_ENVIRONMENT")
	})

	Describe("Load", func() {
		Context("with valid config file", func() {
			BeforeEach(func() {
				configContent := `
server:
  address: "127.0.0.1:4000"
  environment: "staging"
  write_timeout: "120s"

health_check:
  interval: "10s"
  timeout: "5s"
  ip_endpoint: "http://echo.internal"

discovery:
  compose_file: "/srv/docker-compose.yml"
  container_port: 1081
  proxy_host: "proxies.local"

metrics:
  buffer_size: 50

logging:
  level: "debug"
`
				configPath := filepath.Join(tempDir, "config.yaml")
				Expect(os.WriteFile(configPath, []byte(configContent), 0644)).To(Succeed())
			})

			It("should load configuration successfully", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())
			})

			It("should parse every section", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.Address).To(Equal("127.0.0.1:4000"))
				Expect(cfg.Server.Environment).To(Equal(config.EnvStaging))
				Expect(cfg.Server.WriteTimeoutDuration()).To(Equal(2 * time.Minute))
				Expect(cfg.HealthCheck.IntervalDuration()).To(Equal(10 * time.Second))
				Expect(cfg.HealthCheck.TimeoutDuration()).To(Equal(5 * time.Second))
				Expect(cfg.HealthCheck.IPEndpoint).To(Equal("http://echo.internal"))
				Expect(cfg.Discovery.ComposeFile).To(Equal("/srv/docker-compose.yml"))
				Expect(cfg.Discovery.ContainerPort).To(Equal(1081))
				Expect(cfg.Discovery.ProxyHost).To(Equal("proxies.local"))
				Expect(cfg.Metrics.BufferSize).To(Equal(50))
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelDebug))
			})

			It("should let environment variables override the file", func() {
				os.Setenv("HEALTH_CHECK_INTERVAL", "15s")
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.HealthCheck.Interval).To(Equal("15s"))
			})
		})

		Context("without a config file", func() {
			It("should use defaults", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.Address).To(Equal("0.0.0.0:3006"))
				Expect(cfg.Server.Environment).To(Equal(config.EnvDev))
				Expect(cfg.Server.WriteTimeoutDuration()).To(Equal(120 * time.Second))
				Expect(cfg.HealthCheck.LivenessTimeoutDuration()).To(Equal(10 * time.Second))
				Expect(cfg.Server.WriteTimeoutDuration()).To(BeNumerically(">", cfg.HealthCheck.WorstCaseCheck()))
				Expect(cfg.HealthCheck.IntervalDuration()).To(Equal(60 * time.Second))
				Expect(cfg.HealthCheck.TimeoutDuration()).To(Equal(30 * time.Second))
				Expect(cfg.HealthCheck.IPEndpoint).To(Equal("https://api4.ipify.org"))
				Expect(cfg.Discovery.ComposeFile).To(Equal("../docker/docker-compose.yml"))
				Expect(cfg.Discovery.ContainerPort).To(Equal(1080))
				Expect(cfg.Discovery.ProxyHost).To(Equal("127.0.0.1"))
				Expect(cfg.Metrics.BufferSize).To(Equal(1000))
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelInfo))
			})

			It("should read environment variables", func() {
				os.Setenv("DISCOVERY_CONTAINER_PORT", "9050")
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Discovery.ContainerPort).To(Equal(9050))
			})

			It("should reject an invalid environment", func() {
				os.Setenv("SERVER_ENVIRONMENT", "qa")
				cfg, err := config.Load()
				Expect(err).To(HaveOccurred())
				Expect(cfg).To(BeNil())
			})
		})
	})

	Describe("Validate", func() {
		var cfg config.Config

		BeforeEach(func() {
			cfg = config.Config{
				Server: config.ServerConfig{
					Address:      "0.0.0.0:3006",
					Environment:  config.EnvDev,
					WriteTimeout: "120s",
				},
				HealthCheck: config.HealthCheckConfig{
					Interval:        "60s",
					Timeout:         "30s",
					LivenessTimeout: "10s",
					IPEndpoint:      "https://api4.ipify.org",
				},
				Discovery: config.DiscoveryConfig{
					ComposeFile:   "docker-compose.yml",
					ContainerPort: 1080,
					ProxyHost:     "127.0.0.1",
				},
				Metrics: config.MetricsConfig{BufferSize: 10},
				Logging: config.LoggingConfig{Level: config.LogLevelInfo},
			}
		})

		It("accepts a complete config", func() {
			Expect(cfg.Validate()).To(Succeed())
		})

		DescribeTable("rejects invalid values",
			func(mutate func(*config.Config)) {
				mutate(&cfg)
				Expect(cfg.Validate()).NotTo(Succeed())
			},
			Entry("address without port", func(c *config.Config) { c.Server.Address = "localhost" }),
			Entry("unknown log level", func(c *config.Config) { c.Logging.Level = "trace" }),
			Entry("malformed interval", func(c *config.Config) { c.HealthCheck.Interval = "soon" }),
			Entry("zero timeout", func(c *config.Config) { c.HealthCheck.Timeout = "0s" }),
			Entry("non-http endpoint", func(c *config.Config) { c.HealthCheck.IPEndpoint = "ftp://echo" }),
			Entry("endpoint without host", func(c *config.Config) { c.HealthCheck.IPEndpoint = "https://" }),
			Entry("container port out of range", func(c *config.Config) { c.Discovery.ContainerPort = 70000 }),
			Entry("missing compose file", func(c *config.Config) { c.Discovery.ComposeFile = "" }),
			Entry("invalid proxy host", func(c *config.Config) { c.Discovery.ProxyHost = "not a host" }),
			Entry("empty metrics buffer", func(c *config.Config) { c.Metrics.BufferSize = 0 }),
			Entry("malformed liveness timeout", func(c *config.Config) { c.HealthCheck.LivenessTimeout = "later" }),
			Entry("write timeout equal to three egress lookups", func(c *config.Config) {
				c.HealthCheck.LivenessTimeout = "1ms"
				c.Server.WriteTimeout = "90s"
			}),
			Entry("write timeout shorter than the worst-case check", func(c *config.Config) { c.Server.WriteTimeout = "100s" }),
			Entry("egress timeout raised past the write timeout", func(c *config.Config) { c.HealthCheck.Timeout = "40s" }),
		)

		It("should accept a write timeout just above the worst-case check", func() {
			cfg.HealthCheck.Timeout = "200ms"
			cfg.HealthCheck.LivenessTimeout = "100ms"
			cfg.Server.WriteTimeout = "701ms"
			Expect(cfg.HealthCheck.WorstCaseCheck()).To(Equal(700 * time.Millisecond))
			Expect(cfg.Validate()).To(Succeed())
		})
	})
})
