package main

import (
	"bytes"
	"context"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"
)

// dockerRunner executes a dispatched step's command inside a throwaway
// container, adapted from the reference task executor's DockerClient:
// same create/start/wait/logs/remove lifecycle, generalized to accept a
// context and an image instead of a hardcoded one.
type dockerRunner struct {
	cli    *client.Client
	image  string
	logger *zap.Logger
}

func newDockerRunner(image string, logger *zap.Logger) (*dockerRunner, error) {
	cli, err := client.NewClientWithOpts(
		client.WithHost("unix:///var/run/docker.sock"),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, err
	}
	return &dockerRunner{cli: cli, image: image, logger: logger.Named("docker")}, nil
}

// run executes command in a fresh container, returning its stdout and
// stderr separately once the container exits, and always removes the
// container afterward even if log collection failed.
func (d *dockerRunner) run(ctx context.Context, command string) (stdout, stderr string, err error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := d.cli.ContainerCreate(ctx,
		&container.Config{Image: d.image, Cmd: []string{"sh", "-c", command}},
		&container.HostConfig{AutoRemove: false},
		nil, nil, "",
	)
	if err != nil {
		return "", "", err
	}
	containerID := resp.ID
	defer func() {
		if rmErr := d.cli.ContainerRemove(context.Background(), containerID, types.ContainerRemoveOptions{Force: true}); rmErr != nil {
			d.logger.Warn("container remove failed", zap.String("container", containerID), zap.Error(rmErr))
		}
	}()

	if err := d.cli.ContainerStart(ctx, containerID, types.ContainerStartOptions{}); err != nil {
		return "", "", err
	}
	d.logger.Info("container started", zap.String("container", containerID))

	statusCh, errCh := d.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return "", "", err
		}
	case <-statusCh:
	}

	out, err := d.cli.ContainerLogs(ctx, containerID, types.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", err
	}
	defer out.Close()

	var outBuf, errBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&outBuf, &errBuf, out); err != nil {
		return "", "", err
	}
	return outBuf.String(), errBuf.String(), nil
}
