package ha

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Elector reports and signals changes in Raft leadership among Dispatch
// Engine replicas. The Dispatch Engine's mailbox only drains while Leader
// reports true; see pkg/dispatch's optional Elector wiring.
type Elector interface {
	Leader() bool
	WaitForLeadership(ctx context.Context) <-chan bool
}

// Config configures a RaftElector.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string

	// HeartbeatTimeout and ElectionTimeout tune failover latency. Zero
	// values fall back to raft.DefaultConfig's conservative WAN defaults.
	HeartbeatTimeout time.Duration
	ElectionTimeout  time.Duration
}

// RaftElector is an Elector backed by a dedicated github.com/hashicorp/raft
// group carrying no application data.
type RaftElector struct {
	cfg       Config
	raft      *raft.Raft
	transport *raft.NetworkTransport
}

// NewRaftElector opens the elector's durable stores and constructs the Raft
// instance. Call Bootstrap (new cluster) or Join (existing cluster) before
// relying on Leader/WaitForLeadership.
func NewRaftElector(cfg Config) (*RaftElector, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create ha data dir: %w", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)
	if cfg.HeartbeatTimeout > 0 {
		raftCfg.HeartbeatTimeout = cfg.HeartbeatTimeout
	}
	if cfg.ElectionTimeout > 0 {
		raftCfg.ElectionTimeout = cfg.ElectionTimeout
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve ha bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("create ha transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("create ha snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "ha-log.db"))
	if err != nil {
		return nil, fmt.Errorf("create ha log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "ha-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("create ha stable store: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, noopFSM{}, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("create ha raft instance: %w", err)
	}

	return &RaftElector{cfg: cfg, raft: r, transport: transport}, nil
}

// Bootstrap forms a brand new single-member cluster with this node as the
// only voter. Call this on exactly one replica when standing up a fresh
// deployment; every other replica joins via Join.
func (e *RaftElector) Bootstrap() error {
	configuration := raft.Configuration{
		Servers: []raft.Server{
			{ID: raft.ServerID(e.cfg.NodeID), Address: e.transport.LocalAddr()},
		},
	}
	return e.raft.BootstrapCluster(configuration).Error()
}

// Join adds nodeID at address as a voter. Call this on the current leader.
func (e *RaftElector) Join(nodeID, address string) error {
	return e.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second).Error()
}

// Leave removes nodeID from the voter configuration.
func (e *RaftElector) Leave(nodeID string) error {
	return e.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second).Error()
}

// Leader reports whether this replica currently holds Raft leadership.
func (e *RaftElector) Leader() bool {
	return e.raft.State() == raft.Leader
}

// WaitForLeadership relays raft's leadership transitions until ctx is
// canceled. true means this replica became (or already is) leader; false
// means it lost or never held leadership.
func (e *RaftElector) WaitForLeadership(ctx context.Context) <-chan bool {
	out := make(chan bool)
	go func() {
		defer close(out)
		for {
			select {
			case isLeader, ok := <-e.raft.LeaderCh():
				if !ok {
					return
				}
				select {
				case out <- isLeader:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Shutdown releases the underlying Raft instance's resources.
func (e *RaftElector) Shutdown() error {
	return e.raft.Shutdown().Error()
}
