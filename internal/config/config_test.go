package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "relay.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "3000")
	t.Setenv("EXECUTOR", "http")
	t.Setenv("TMUX_SESSION", "claude-ui")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, ExecutorHTTP, cfg.Executor)
	assert.Equal(t, "claude-ui", cfg.Remote.Session)
	assert.Equal(t, 10*time.Second, cfg.Poll.MaxWait)
	assert.Equal(t, time.Second, cfg.Poll.CheckInterval)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
port = "8081"
cmd_api_url = "http://cmd-api.local/"

[remote]
host = "10.0.0.5"
user = "dev"
launch_command = "claude"

[poll]
max_wait = "5s"
check_interval = "250ms"
`)
	t.Setenv("SSH_USER", "ops")
	t.Setenv("PORT", "")
	os.Unsetenv("PORT")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "http://cmd-api.local", cfg.CmdAPIURL)
	assert.Equal(t, "10.0.0.5", cfg.Remote.Host)
	assert.Equal(t, "ops", cfg.Remote.User, "env overrides file")
	assert.Equal(t, "claude", cfg.Remote.LaunchCommand)
	assert.Equal(t, 5*time.Second, cfg.Poll.MaxWait)
	assert.Equal(t, 250*time.Millisecond, cfg.Poll.CheckInterval)
	assert.Equal(t, path, cfg.File)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
[poll]
max_wait = "soon"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll.max_wait")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown executor", func(c *Config) { c.Executor = "telnet" }, "unknown EXECUTOR"},
		{"ssh needs credential", func(c *Config) { c.Executor = ExecutorSSH }, "SSH_PASS or SSH_KEY_FILE"},
		{"ssh with password", func(c *Config) { c.Executor = ExecutorSSH; c.Remote.Password = "pw" }, ""},
		{"docker needs container", func(c *Config) { c.Executor = ExecutorDocker }, "DOCKER_CONTAINER"},
		{"zero interval", func(c *Config) { c.Poll.CheckInterval = 0 }, "POLL_CHECK_INTERVAL"},
		{"timeout below max wait", func(c *Config) { c.RequestTimeout = c.Poll.MaxWait }, "REQUEST_TIMEOUT"},
		{"timeout disabled", func(c *Config) { c.RequestTimeout = 0 }, ""},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, "REQUEST_TIMEOUT"},
		{"empty session", func(c *Config) { c.Remote.Session = "" }, "TMUX_SESSION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEndpoint(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://10.43.215.37", cfg.Endpoint())

	cfg.Executor = ExecutorSSH
	assert.Equal(t, "ssh://tim@192.168.8.116:22", cfg.Endpoint())

	cfg.Executor = ExecutorDocker
	cfg.DockerContainer = "tmux-host"
	assert.Equal(t, "docker://tmux-host", cfg.Endpoint())
}

func TestRemoteCell(t *testing.T) {
	cell := NewRemoteCell(Remote{Host: "a"})
	got := cell.Load()
	got.Host = "mutated"
	assert.Equal(t, "a", cell.Load().Host, "Load returns a copy")

	cell.Store(Remote{Host: "b"})
	assert.Equal(t, "b", cell.Load().Host)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "[remote]\nhost = \"first\"\n")
	t.Setenv("SSH_HOST", "")
	os.Unsetenv("SSH_HOST")

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("[remote]\nhost = \"second\"\n"), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "second", cfg.Remote.Host)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
