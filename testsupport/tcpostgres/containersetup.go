package tcpostgres

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultImage = "postgres:17-alpine"

type (
	containerConfig struct {
		req     testcontainers.ContainerRequest
		waitFor []wait.Strategy
	}
	ContainerOption func(*containerConfig)
)

func WithImage(image string) ContainerOption {
	return func(c *containerConfig) {
		c.req.Image = image
	}
}

// WithWaitStrategy adds strategies that must all succeed before the
// container is considered ready.
func WithWaitStrategy(strategies ...wait.Strategy) ContainerOption {
	return func(c *containerConfig) {
		c.waitFor = append(c.waitFor, strategies...)
	}
}

func WithPort(port string) ContainerOption {
	return func(c *containerConfig) {
		c.req.ExposedPorts = append(c.req.ExposedPorts, port)
	}
}

// WithName sets the container name. Named containers are reused between
// test runs.
func WithName(containerName string) ContainerOption {
	return func(c *containerConfig) {
		c.req.Name = containerName
	}
}

func WithCredentials(user, password, dbName string) ContainerOption {
	return func(c *containerConfig) {
		c.req.Env["POSTGRES_USER"] = user
		c.req.Env["POSTGRES_PASSWORD"] = password
		c.req.Env["POSTGRES_DB"] = dbName
	}
}

// StartPostgres starts (or reuses) a postgres container
func StartPostgres(ctx context.Context, opts ...ContainerOption) (testcontainers.Container, error) {
	cfg := &containerConfig{
		req: testcontainers.ContainerRequest{
			Image: defaultImage,
			Env:   map[string]string{},
			// durability is irrelevant for test data
			Cmd: []string{"postgres", "-c", "fsync=off", "-c", "synchronous_commit=off"},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.waitFor) > 0 {
		cfg.req.WaitingFor = wait.ForAll(cfg.waitFor...).WithDeadline(time.Minute)
	}
	return testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: cfg.req,
			Started:          true,
			Reuse:            cfg.req.Name != "",
		})
}
