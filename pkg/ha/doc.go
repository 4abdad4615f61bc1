/*
Package ha provides single-purpose leader election for Dispatch Engine
replicas, so that exactly one replica actively drains its mailbox at a time
(only one ResourceCluster should ever place a given workerID).

It wraps github.com/hashicorp/raft with github.com/hashicorp/raft-boltdb as
the durable log and stable store, the same libraries the project's cluster
manager uses for its replicated state, but narrowed to a minimal FSM that
carries no application log entries — Apply is a no-op, since the only thing
being agreed on is who holds the Raft leadership, not any data.

	elector, err := ha.NewRaftElector(ha.Config{
		NodeID:   "engine-1",
		BindAddr: "10.0.0.1:9300",
		DataDir:  "/var/lib/dispatchd/ha",
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := elector.Bootstrap(); err != nil {
		log.Fatal(err)
	}
	leadership := elector.WaitForLeadership(ctx)
*/
package ha
