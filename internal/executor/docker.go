package executor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/claude-relay/internal/logging"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// dockerAPI is the subset of the Docker client the executor uses.
type dockerAPI interface {
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecStartOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	Close() error
}

// DockerExecutor runs commands with `docker exec` inside the container that
// hosts the tmux server, for deployments where the assistant runs in a
// sibling container instead of on a remote machine.
type DockerExecutor struct {
	cli       dockerAPI
	container string
	user      string
}

// NewDockerExecutor creates a Docker-backed executor from the environment
// (DOCKER_HOST and friends).
func NewDockerExecutor(containerName, user string) (*DockerExecutor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	logging.ForComponent(logging.CompExecutor).Info("Docker client initialized", "container", containerName)
	return &DockerExecutor{cli: cli, container: containerName, user: user}, nil
}

// Run implements Executor.
func (e *DockerExecutor) Run(ctx context.Context, command string) (Result, error) {
	resp, err := e.cli.ContainerExecCreate(ctx, e.container, container.ExecOptions{
		Cmd:          []string{"sh", "-c", command},
		User:         e.user,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return Result{}, &ExecutionError{Message: fmt.Sprintf("container %s not found", e.container), Err: err}
		}
		return Result{}, Failed(fmt.Errorf("create exec in container %s: %w", e.container, err))
	}

	attach, err := e.cli.ContainerExecAttach(ctx, resp.ID, container.ExecStartOptions{})
	if err != nil {
		return Result{}, Failed(fmt.Errorf("attach exec %s: %w", resp.ID, err))
	}
	defer attach.Close()

	// Closing the hijacked connection unblocks StdCopy when the caller gives up.
	stop := context.AfterFunc(ctx, attach.Close)
	defer stop()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil {
		if ctx.Err() != nil {
			return Result{}, Failed(ctx.Err())
		}
		return Result{}, Failed(fmt.Errorf("read exec output: %w", err))
	}
	if ctx.Err() != nil {
		return Result{}, Failed(ctx.Err())
	}

	inspect, err := e.cli.ContainerExecInspect(ctx, resp.ID)
	if err != nil {
		return Result{}, Failed(fmt.Errorf("inspect exec %s: %w", resp.ID, err))
	}
	if inspect.ExitCode != 0 {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = fmt.Sprintf("command exited with code %d", inspect.ExitCode)
		}
		return Result{}, &ExecutionError{Message: msg}
	}

	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// Endpoint describes the target container.
func (e *DockerExecutor) Endpoint() string {
	return "docker://" + e.container
}

// Close releases the Docker client.
func (e *DockerExecutor) Close() error {
	return e.cli.Close()
}
