package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level chrdbg configuration.
type Config struct {
	Target       string         `yaml:"target"`
	HTTPAddr     string         `yaml:"http_addr"`
	MCPTransport string         `yaml:"mcp_transport"` // stdio | http
	Browser      BrowserConfig  `yaml:"browser"`
	Debugger     DebuggerConfig `yaml:"debugger"`
	Capture      CaptureConfig  `yaml:"capture"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote          string        `yaml:"remote"`
	Headless        *bool         `yaml:"headless"`
	Stealth         bool          `yaml:"stealth"`
	UserDataDir     string        `yaml:"user_data_dir"`
	RecycleInterval time.Duration `yaml:"recycle_interval"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
}

// DebuggerConfig seeds the debugging session.
type DebuggerConfig struct {
	PauseOnExceptions  string        `yaml:"pause_on_exceptions"` // none | uncaught | all
	AsyncStackDepth    int           `yaml:"async_stack_depth"`
	WaitTimeout        time.Duration `yaml:"wait_timeout"`
	MaxScripts         int           `yaml:"max_scripts"`
	SearchMaxMatches   int           `yaml:"search_max_matches"`
	SearchContextLines int           `yaml:"search_context_lines"`
}

// CaptureConfig controls the protocol capture journal. An empty path
// disables capture entirely.
type CaptureConfig struct {
	Path       string `yaml:"path"`
	RetainDays int    `yaml:"retain_days"`
}

// loadConfig reads a YAML configuration file.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// defaultConfig returns the configuration used when no file is given.
func defaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8077"
	}
	if c.MCPTransport == "" {
		c.MCPTransport = "stdio"
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	if c.Capture.Path != "" && c.Capture.RetainDays <= 0 {
		c.Capture.RetainDays = 14
	}
}

func (c *Config) validate() error {
	switch c.MCPTransport {
	case "stdio", "http":
	default:
		return fmt.Errorf("config: mcp_transport %q (want stdio or http)", c.MCPTransport)
	}
	switch c.Debugger.PauseOnExceptions {
	case "", "none", "uncaught", "all":
	default:
		return fmt.Errorf("config: pause_on_exceptions %q (want none, uncaught or all)", c.Debugger.PauseOnExceptions)
	}
	return nil
}

// applyEnv overrides file values from the environment, so containerized
// deployments can skip the config file for the common knobs.
func (c *Config) applyEnv() {
	if v := os.Getenv("TARGET_URL"); v != "" {
		c.Target = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		c.MCPTransport = v
	}
	if v := os.Getenv("CAPTURE_DB"); v != "" {
		c.Capture.Path = v
	}
}

func (c *Config) headless() bool {
	if c.Browser.Headless == nil {
		return true
	}
	return *c.Browser.Headless
}
