package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
)

const (
	// Runner configuration.
	defaultImage  = "python:3.12-alpine"
	containerUser = "1000"
	workingDir    = "/tmp"

	// Resource limits.
	memoryLimitBytes = 256 * 1024 * 1024 // 256MB
	cpuQuota         = 50000             // 0.5 CPU
	pidsLimit        = 64

	// Captured output is truncated beyond this size.
	maxOutputBytes = 64 * 1024

	defaultRunTimeout = 15 * time.Second
)

// DockerExecutor implements Executor by running each snippet in a
// short-lived container with no network and hard resource limits.
type DockerExecutor struct {
	cli     *client.Client
	image   string
	runtime string // Docker runtime: "" = default (runc), "runsc" = gVisor
	timeout time.Duration
}

// DockerConfig holds configuration for the Docker executor.
type DockerConfig struct {
	Image   string
	Runtime string
	Timeout time.Duration
}

// NewDockerExecutor creates a new Docker-backed executor.
func NewDockerExecutor(cfg DockerConfig) (*DockerExecutor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	image := cfg.Image
	if image == "" {
		image = defaultImage
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}

	// Fail fast when the daemon is unreachable so code execution can be
	// disabled at startup instead of on the first learner run.
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("ping docker daemon: %w", err)
	}

	slog.Info("Sandbox executor initialized", "image", image, "runtime", cfg.Runtime)
	return &DockerExecutor{cli: cli, image: image, runtime: cfg.Runtime, timeout: timeout}, nil
}

// Execute runs the snippet and returns the combined stdout/stderr text.
func (e *DockerExecutor) Execute(ctx context.Context, source string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	containerName := "codelab-run-" + uuid.NewString()

	config := &container.Config{
		Image:           e.image,
		User:            containerUser,
		WorkingDir:      workingDir,
		Cmd:             []string{"python", "-c", source},
		NetworkDisabled: true,
	}
	hostConfig := &container.HostConfig{
		Runtime:     e.runtime,
		NetworkMode: container.NetworkMode("none"),
		AutoRemove:  false,
		Resources: container.Resources{
			Memory:    memoryLimitBytes,
			CPUQuota:  cpuQuota,
			PidsLimit: ptr(int64(pidsLimit)),
		},
	}

	resp, err := e.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, containerName)
	if err != nil {
		return "", &ErrUnavailable{Err: fmt.Errorf("create runner container: %w", err)}
	}
	defer e.remove(resp.ID)

	if err := e.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", &ErrUnavailable{Err: fmt.Errorf("start runner container: %w", err)}
	}

	statusCh, errCh := e.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return "", &ErrUnavailable{Err: fmt.Errorf("wait for runner: %w", err)}
		}
	case status := <-statusCh:
		// Non-zero exit is a learner error, not a sandbox failure; the
		// traceback in the captured output is the lesson.
		if status.StatusCode != 0 {
			slog.Debug("Snippet exited non-zero", "container_id", resp.ID, "exit_code", status.StatusCode)
		}
	case <-ctx.Done():
		return "", &ErrUnavailable{Err: fmt.Errorf("runner timed out: %w", ctx.Err())}
	}

	output, err := e.collectOutput(ctx, resp.ID)
	if err != nil {
		return "", &ErrUnavailable{Err: err}
	}
	return output, nil
}

func (e *DockerExecutor) collectOutput(ctx context.Context, containerID string) (string, error) {
	logs, err := e.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("read runner logs: %w", err)
	}
	defer func() {
		if closeErr := logs.Close(); closeErr != nil {
			slog.Debug("Failed to close runner logs", "error", closeErr, "container_id", containerID)
		}
	}()

	// Docker multiplexes stdout/stderr on one stream; demux and interleave.
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return "", fmt.Errorf("demux runner logs: %w", err)
	}

	combined := stdout.String()
	if stderr.Len() > 0 {
		combined += stderr.String()
	}
	if len(combined) > maxOutputBytes {
		combined = combined[:maxOutputBytes] + "\n... (output truncated)"
	}
	return combined, nil
}

// remove force-removes the runner container. Removal failures are tolerated;
// a follow-up run does not depend on this container being gone.
func (e *DockerExecutor) remove(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		if errdefs.IsNotFound(err) {
			return
		}
		slog.Warn("Failed to remove runner container", "container_id", containerID, "error", err)
	}
}

// Close releases the Docker client.
func (e *DockerExecutor) Close() error {
	return e.cli.Close()
}

func ptr[T any](v T) *T {
	return &v
}
