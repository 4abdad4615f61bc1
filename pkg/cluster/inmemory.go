package cluster

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/dispatchd/pkg/gateway"
	"github.com/cuemby/dispatchd/pkg/types"
)

// executorEntry is one node's advertised capacity and reservation state.
type executorEntry struct {
	registration types.TaskExecutorRegistration
	gateway      gateway.Gateway
	capacity     types.MachineDefinition
	reserved     map[string]types.MachineDefinition // workerID -> reservation
}

func (e *executorEntry) reservedTotal() types.MachineDefinition {
	var total types.MachineDefinition
	for _, r := range e.reserved {
		total.CPUCores += r.CPUCores
		total.MemoryBytes += r.MemoryBytes
		total.DiskBytes += r.DiskBytes
		total.NetworkBps += r.NetworkBps
		total.GPUCount += r.GPUCount
	}
	return total
}

func (e *executorEntry) fits(want types.MachineDefinition) bool {
	used := e.reservedTotal()
	return e.capacity.CPUCores-used.CPUCores >= want.CPUCores &&
		e.capacity.MemoryBytes-used.MemoryBytes >= want.MemoryBytes &&
		e.capacity.DiskBytes-used.DiskBytes >= want.DiskBytes &&
		e.capacity.NetworkBps-used.NetworkBps >= want.NetworkBps &&
		e.capacity.GPUCount-used.GPUCount >= want.GPUCount
}

// InMemory is a reference ResourceCluster that matches MachineDefinition
// against registered executor capacity with a first-fit scan over
// insertion order. It is the ResourceCluster a single-node cmd/dispatchd
// deployment or a test wires in; a real cluster manager implements the same
// interface against live node state instead of a map.
type InMemory struct {
	mu        sync.Mutex
	executors map[types.TaskExecutorID]*executorEntry
	order     []types.TaskExecutorID
	byHost    map[string]types.TaskExecutorID
}

// NewInMemory creates an empty InMemory ResourceCluster.
func NewInMemory() *InMemory {
	return &InMemory{
		executors: make(map[types.TaskExecutorID]*executorEntry),
		byHost:    make(map[string]types.TaskExecutorID),
	}
}

// RegisterExecutor adds (or replaces) an executor's capacity, registration,
// and gateway.
func (c *InMemory) RegisterExecutor(id types.TaskExecutorID, reg types.TaskExecutorRegistration, gw gateway.Gateway, capacity types.MachineDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.executors[id]; !exists {
		c.order = append(c.order, id)
	}
	c.executors[id] = &executorEntry{
		registration: reg,
		gateway:      gw,
		capacity:     capacity,
		reserved:     make(map[string]types.MachineDefinition),
	}
	c.byHost[reg.Hostname] = id
}

// GetTaskExecutorFor implements ResourceCluster.
func (c *InMemory) GetTaskExecutorFor(ctx context.Context, machineDef types.MachineDefinition, workerID string) (types.TaskExecutorID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range c.order {
		entry := c.executors[id]
		if entry.fits(machineDef) {
			entry.reserved[workerID] = machineDef
			return id, nil
		}
	}
	return "", fmt.Errorf("no executor satisfies requested machine definition")
}

// GetTaskExecutorGateway implements ResourceCluster.
func (c *InMemory) GetTaskExecutorGateway(ctx context.Context, id types.TaskExecutorID) (gateway.Gateway, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.executors[id]
	if !ok {
		return nil, fmt.Errorf("unknown executor %q", id)
	}
	return entry.gateway, nil
}

// GetTaskExecutorInfo implements ResourceCluster.
func (c *InMemory) GetTaskExecutorInfo(ctx context.Context, id types.TaskExecutorID) (types.TaskExecutorRegistration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.executors[id]
	if !ok {
		return types.TaskExecutorRegistration{}, fmt.Errorf("unknown executor %q", id)
	}
	return entry.registration, nil
}

// GetTaskExecutorInfoByHost implements ResourceCluster.
func (c *InMemory) GetTaskExecutorInfoByHost(ctx context.Context, hostname string) (types.TaskExecutorID, types.TaskExecutorRegistration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.byHost[hostname]
	if !ok {
		return "", types.TaskExecutorRegistration{}, fmt.Errorf("no executor registered for host %q", hostname)
	}
	return id, c.executors[id].registration, nil
}

// ReleaseReservation frees the capacity reserved for workerID on id. The
// engine calls it when a placement fails terminally or a cancellation
// succeeds; a launched worker keeps its reservation.
func (c *InMemory) ReleaseReservation(id types.TaskExecutorID, workerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.executors[id]; ok {
		delete(entry.reserved, workerID)
	}
}
