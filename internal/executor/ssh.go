package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ashureev/claude-relay/internal/config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultDialTimeout = 10 * time.Second

// SSHExecutor runs commands over a direct SSH connection, without the
// intermediate command service. Each call dials a fresh connection with the
// settings current at call time.
type SSHExecutor struct {
	remote      *config.RemoteCell
	dialTimeout time.Duration
}

// NewSSHExecutor creates an SSH executor reading its target from remote.
func NewSSHExecutor(remote *config.RemoteCell) *SSHExecutor {
	return &SSHExecutor{remote: remote, dialTimeout: defaultDialTimeout}
}

// Run implements Executor.
func (e *SSHExecutor) Run(ctx context.Context, command string) (Result, error) {
	remote := e.remote.Load()

	clientCfg, err := clientConfig(remote, e.dialTimeout)
	if err != nil {
		return Result{}, Failed(err)
	}

	dialer := net.Dialer{Timeout: e.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", remote.Address())
	if err != nil {
		return Result{}, Failed(err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, remote.Address(), clientCfg)
	if err != nil {
		_ = conn.Close()
		return Result{}, Failed(fmt.Errorf("ssh handshake with %s: %w", remote.Address(), err))
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer func() { _ = client.Close() }()

	// Closing the client unblocks session.Run when the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	session, err := client.NewSession()
	if err != nil {
		return Result{}, Failed(fmt.Errorf("open ssh session: %w", err))
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Run(command); err != nil {
		if ctx.Err() != nil {
			return Result{}, Failed(ctx.Err())
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = exitErr.Error()
			}
			return Result{}, &ExecutionError{Message: msg, Err: err}
		}
		return Result{}, Failed(err)
	}

	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

func clientConfig(remote config.Remote, timeout time.Duration) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if remote.KeyFile != "" {
		pem, err := os.ReadFile(remote.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key %s: %w", remote.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if remote.Password != "" {
		password := remote.Password
		auth = append(auth,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}
	if len(auth) == 0 {
		return nil, errors.New("no ssh credentials configured")
	}

	hostKey := ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in via SSH_KNOWN_HOSTS
	if remote.KnownHosts != "" {
		cb, err := knownhosts.New(remote.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		hostKey = cb
	}

	return &ssh.ClientConfig{
		User:            remote.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}, nil
}

// Endpoint describes the SSH target.
func (e *SSHExecutor) Endpoint() string {
	r := e.remote.Load()
	return "ssh://" + r.User + "@" + r.Address()
}
