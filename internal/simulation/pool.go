// Package simulation implements the Simulation Adapter session pool (spec
// §6's "Simulation provider contract"): a pool of pre-warmed Anvil-
// compatible fork containers that the Victim Analyzer borrows a session
// from, forks at a target block, replays a transaction against, and
// returns.
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// AnvilContainer is one recyclable fork node: a running Anvil instance
// exposing its JSON-RPC endpoint on a host-mapped port.
type AnvilContainer struct {
	ID       string
	RPCURL   string
	LastUsed time.Time
}

// SessionPool handles the lifecycle of AnvilContainers: pre-warm -> acquire
// -> reset -> release, directly repurposing the Ghost-Container pool
// pattern from internal/ghostpool/pool_manager.go — available/active
// tracked the same way, Get blocks on the buffered channel or ctx.Done(),
// Put resets the fork state in the background before returning the
// container to the pool.
type SessionPool struct {
	mu          sync.Mutex
	available   chan *AnvilContainer
	active      map[string]*AnvilContainer
	minIdle     int
	maxCapacity int
	imageName   string
	hostPortLow int
}

// NewSessionPool builds a pool of Anvil containers from image and starts
// its background maintainer.
func NewSessionPool(minIdle, maxCap int, image string, hostPortLow int) *SessionPool {
	p := &SessionPool{
		available:   make(chan *AnvilContainer, maxCap),
		active:      make(map[string]*AnvilContainer),
		minIdle:     minIdle,
		maxCapacity: maxCap,
		imageName:   image,
		hostPortLow: hostPortLow,
	}
	go p.maintainPool()
	return p
}

// Get retrieves a pre-warmed container or blocks until one is ready or ctx
// is done.
func (p *SessionPool) Get(ctx context.Context) (*AnvilContainer, error) {
	select {
	case c := <-p.available:
		p.mu.Lock()
		p.active[c.ID] = c
		p.mu.Unlock()
		c.LastUsed = time.Now()
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put resets c's forked state and returns it to the pool, destroying it
// instead if the reset fails.
func (p *SessionPool) Put(c *AnvilContainer) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := resetFork(ctx, c.RPCURL); err != nil {
			slog.Warn("failed to reset anvil fork, destroying container", "container_id", c.ID, "error", err)
			p.destroyContainer(ctx, c)
			return
		}

		p.mu.Lock()
		delete(p.active, c.ID)
		p.mu.Unlock()
		p.available <- c
	}()
}

// maintainPool tops the pool up to minIdle, same cadence as the teacher's
// Ghost-Container maintainer.
func (p *SessionPool) maintainPool() {
	for {
		time.Sleep(2 * time.Second)

		p.mu.Lock()
		activeCount := len(p.active)
		p.mu.Unlock()
		availableCount := len(p.available)
		total := activeCount + availableCount

		if availableCount < p.minIdle && total < p.maxCapacity {
			deficit := p.minIdle - availableCount
			for i := 0; i < deficit; i++ {
				if total+i >= p.maxCapacity {
					break
				}
				go p.createContainer()
			}
		}
	}
}

func (p *SessionPool) createContainer() {
	ctx := context.Background()
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		slog.Warn("failed to create docker client", "error", err)
		return
	}
	defer cli.Close()

	containerPort := nat.Port("8545/tcp")
	hostPort := fmt.Sprintf("%d", p.hostPortLow+len(p.active)+len(p.available))
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			containerPort: {{HostIP: "127.0.0.1", HostPort: hostPort}},
		},
		Resources: container.Resources{
			NanoCPUs: 1_000_000_000,
			Memory:   1024 * 1024 * 1024,
		},
	}

	resp, err := cli.ContainerCreate(ctx, &container.Config{
		Image:        p.imageName,
		ExposedPorts: nat.PortSet{containerPort: struct{}{}},
		Cmd:          []string{"anvil", "--host", "0.0.0.0", "--port", "8545"},
	}, hostConfig, nil, nil, "")
	if err != nil {
		slog.Warn("failed to create anvil container", "error", err)
		return
	}

	if err := cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		slog.Warn("failed to start anvil container", "error", err)
		return
	}

	c := &AnvilContainer{
		ID:       resp.ID,
		RPCURL:   fmt.Sprintf("http://127.0.0.1:%s", hostPort),
		LastUsed: time.Now(),
	}
	p.available <- c
	slog.Info("anvil container pre-warmed", "container_id", resp.ID[:12], "rpc_url", c.RPCURL)
}

func (p *SessionPool) destroyContainer(ctx context.Context, c *AnvilContainer) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		slog.Warn("failed to create docker client for destroy", "error", err)
		return
	}
	defer cli.Close()

	if err := cli.ContainerRemove(ctx, c.ID, types.ContainerRemoveOptions{Force: true}); err != nil {
		slog.Warn("failed to remove anvil container", "container_id", c.ID, "error", err)
	}
}

// Stats reports current pool occupancy.
func (p *SessionPool) Stats() map[string]int {
	p.mu.Lock()
	activeCount := len(p.active)
	p.mu.Unlock()

	return map[string]int{
		"active":       activeCount,
		"idle":         len(p.available),
		"max_capacity": p.maxCapacity,
		"min_idle":     p.minIdle,
	}
}
