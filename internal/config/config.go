// Package config provides application configuration.
//
// Values are resolved in three layers: built-in defaults, an optional TOML
// file, then environment variables. The remote connection settings are held
// in a RemoteCell so a reloaded file can swap them without a restart. No HTTP
// endpoint mutates them.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ashureev/claude-relay/internal/domain"
)

// Executor backends.
const (
	ExecutorHTTP   = "http"
	ExecutorSSH    = "ssh"
	ExecutorDocker = "docker"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	Executor        string
	CmdAPIURL       string
	DockerContainer string
	Remote          Remote
	Poll            PollConfig
	RequestTimeout  time.Duration
	ExecutorTimeout time.Duration
	ExecutorRate    float64
	ExecutorBurst   int
	AllowedOrigins  []string
	GRPCHealthPort  string
	ProbeInterval   time.Duration
	Log             LogConfig

	// File is the TOML file the configuration was read from, if any.
	File string
}

// Remote describes the machine hosting the tmux session and how to launch
// the assistant on it.
type Remote struct {
	Host     string
	Port     int
	User     string
	Password string
	KeyFile  string
	// KnownHosts is an OpenSSH known_hosts file. Empty disables host key
	// checking for the ssh executor.
	KnownHosts    string
	LaunchCommand string
	Session       string
	PathPrefix    string
}

// PollConfig controls the change-detection loop.
type PollConfig struct {
	MaxWait       time.Duration
	CheckInterval time.Duration
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string
	// File enables a rotating log file next to stdout when set.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Address renders host:port.
func (r Remote) Address() string {
	return r.Host + ":" + strconv.Itoa(r.Port)
}

// LogValue keeps credentials out of logs.
func (r Remote) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", r.Host),
		slog.Int("port", r.Port),
		slog.String("user", r.User),
		slog.String("session", r.Session),
		slog.Bool("password_set", r.Password != ""),
		slog.Bool("key_file_set", r.KeyFile != ""),
	)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:      "3000",
		Executor:  ExecutorHTTP,
		CmdAPIURL: "http://10.43.215.37",
		Remote: Remote{
			Host:          "192.168.8.116",
			Port:          22,
			User:          "tim",
			LaunchCommand: "claude --dangerously-skip-permissions",
			Session:       domain.DefaultSessionName,
			PathPrefix:    "/opt/homebrew/bin:/usr/local/bin:$HOME/.local/bin",
		},
		Poll: PollConfig{
			MaxWait:       10 * time.Second,
			CheckInterval: time.Second,
		},
		RequestTimeout:  30 * time.Second,
		ExecutorTimeout: 20 * time.Second,
		ExecutorRate:    20,
		ExecutorBurst:   10,
		AllowedOrigins:  []string{"*"},
		ProbeInterval:   15 * time.Second,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
	}
}

// Load reads configuration from the optional TOML file at path and then from
// environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
		cfg.File = path
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Executor = strings.ToLower(getEnv("EXECUTOR", c.Executor))
	c.CmdAPIURL = strings.TrimRight(getEnv("CMD_API_URL", c.CmdAPIURL), "/")
	c.DockerContainer = getEnv("DOCKER_CONTAINER", c.DockerContainer)

	c.Remote.Host = getEnv("SSH_HOST", c.Remote.Host)
	c.Remote.Port = getEnvInt("SSH_PORT", c.Remote.Port)
	c.Remote.User = getEnv("SSH_USER", c.Remote.User)
	c.Remote.Password = getEnv("SSH_PASS", c.Remote.Password)
	c.Remote.KeyFile = getEnv("SSH_KEY_FILE", c.Remote.KeyFile)
	c.Remote.KnownHosts = getEnv("SSH_KNOWN_HOSTS", c.Remote.KnownHosts)
	c.Remote.LaunchCommand = getEnv("CLAUDE_BIN", c.Remote.LaunchCommand)
	c.Remote.Session = getEnv("TMUX_SESSION", c.Remote.Session)
	c.Remote.PathPrefix = getEnv("REMOTE_PATH", c.Remote.PathPrefix)

	c.Poll.MaxWait = getEnvDuration("POLL_MAX_WAIT", c.Poll.MaxWait)
	c.Poll.CheckInterval = getEnvDuration("POLL_CHECK_INTERVAL", c.Poll.CheckInterval)
	c.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout)
	c.ExecutorTimeout = getEnvDuration("EXECUTOR_TIMEOUT", c.ExecutorTimeout)
	c.ExecutorRate = getEnvFloat("EXECUTOR_RATE", c.ExecutorRate)
	c.GRPCHealthPort = getEnv("GRPC_HEALTH_PORT", c.GRPCHealthPort)
	c.ProbeInterval = getEnvDuration("HEALTH_PROBE_INTERVAL", c.ProbeInterval)

	if origins, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(origins)
	}

	c.Log.Level = strings.ToLower(getEnv("LOG_LEVEL", c.Log.Level))
	c.Log.File = getEnv("LOG_FILE", c.Log.File)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.Executor {
	case ExecutorHTTP:
		if c.CmdAPIURL == "" {
			return fmt.Errorf("CMD_API_URL cannot be empty for the http executor")
		}
	case ExecutorSSH:
		if c.Remote.Host == "" || c.Remote.User == "" {
			return fmt.Errorf("SSH_HOST and SSH_USER are required for the ssh executor")
		}
		if c.Remote.Password == "" && c.Remote.KeyFile == "" {
			return fmt.Errorf("SSH_PASS or SSH_KEY_FILE is required for the ssh executor")
		}
	case ExecutorDocker:
		if c.DockerContainer == "" {
			return fmt.Errorf("DOCKER_CONTAINER cannot be empty for the docker executor")
		}
	default:
		return fmt.Errorf("unknown EXECUTOR %q", c.Executor)
	}
	if c.Remote.Port <= 0 || c.Remote.Port > 65535 {
		return fmt.Errorf("SSH_PORT must be between 1 and 65535")
	}
	if c.Remote.Session == "" {
		return fmt.Errorf("TMUX_SESSION cannot be empty")
	}
	if c.Remote.LaunchCommand == "" {
		return fmt.Errorf("CLAUDE_BIN cannot be empty")
	}
	if c.Poll.CheckInterval <= 0 {
		return fmt.Errorf("POLL_CHECK_INTERVAL must be > 0")
	}
	if c.Poll.MaxWait < 0 {
		return fmt.Errorf("POLL_MAX_WAIT must be >= 0")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be >= 0")
	}
	if c.RequestTimeout > 0 && c.RequestTimeout <= c.Poll.MaxWait {
		return fmt.Errorf("REQUEST_TIMEOUT must be 0 or exceed POLL_MAX_WAIT")
	}
	if c.ExecutorRate <= 0 {
		return fmt.Errorf("EXECUTOR_RATE must be > 0")
	}
	return nil
}

// Endpoint describes where commands are executed, for the health response.
func (c *Config) Endpoint() string {
	switch c.Executor {
	case ExecutorSSH:
		return "ssh://" + c.Remote.User + "@" + c.Remote.Address()
	case ExecutorDocker:
		return "docker://" + c.DockerContainer
	default:
		return c.CmdAPIURL
	}
}

// fileConfig mirrors the TOML layout. Durations are strings ("10s").
type fileConfig struct {
	Port            string   `toml:"port"`
	Executor        string   `toml:"executor"`
	CmdAPIURL       string   `toml:"cmd_api_url"`
	DockerContainer string   `toml:"docker_container"`
	RequestTimeout  string   `toml:"request_timeout"`
	ExecutorTimeout string   `toml:"executor_timeout"`
	ExecutorRate    float64  `toml:"executor_rate"`
	AllowedOrigins  []string `toml:"allowed_origins"`
	GRPCHealthPort  string   `toml:"grpc_health_port"`

	Remote struct {
		Host          string `toml:"host"`
		Port          int    `toml:"port"`
		User          string `toml:"user"`
		Password      string `toml:"password"`
		KeyFile       string `toml:"key_file"`
		KnownHosts    string `toml:"known_hosts"`
		LaunchCommand string `toml:"launch_command"`
		Session       string `toml:"session"`
		PathPrefix    string `toml:"path_prefix"`
	} `toml:"remote"`

	Poll struct {
		MaxWait       string `toml:"max_wait"`
		CheckInterval string `toml:"check_interval"`
	} `toml:"poll"`

	Log struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"log"`
}

func (c *Config) applyFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	setString(&c.Port, fc.Port)
	setString(&c.Executor, strings.ToLower(fc.Executor))
	setString(&c.CmdAPIURL, strings.TrimRight(fc.CmdAPIURL, "/"))
	setString(&c.DockerContainer, fc.DockerContainer)
	setString(&c.GRPCHealthPort, fc.GRPCHealthPort)
	if fc.ExecutorRate > 0 {
		c.ExecutorRate = fc.ExecutorRate
	}
	if len(fc.AllowedOrigins) > 0 {
		c.AllowedOrigins = fc.AllowedOrigins
	}

	setString(&c.Remote.Host, fc.Remote.Host)
	if fc.Remote.Port != 0 {
		c.Remote.Port = fc.Remote.Port
	}
	setString(&c.Remote.User, fc.Remote.User)
	setString(&c.Remote.Password, fc.Remote.Password)
	setString(&c.Remote.KeyFile, fc.Remote.KeyFile)
	setString(&c.Remote.KnownHosts, fc.Remote.KnownHosts)
	setString(&c.Remote.LaunchCommand, fc.Remote.LaunchCommand)
	setString(&c.Remote.Session, fc.Remote.Session)
	setString(&c.Remote.PathPrefix, fc.Remote.PathPrefix)

	setString(&c.Log.Level, strings.ToLower(fc.Log.Level))
	setString(&c.Log.File, fc.Log.File)

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"request_timeout", fc.RequestTimeout, &c.RequestTimeout},
		{"executor_timeout", fc.ExecutorTimeout, &c.ExecutorTimeout},
		{"poll.max_wait", fc.Poll.MaxWait, &c.Poll.MaxWait},
		{"poll.check_interval", fc.Poll.CheckInterval, &c.Poll.CheckInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config file %s: %s: %w", path, d.key, err)
		}
		*d.dst = v
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
