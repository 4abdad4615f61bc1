/*
Package cluster defines the Dispatch Engine's ResourceCluster collaborator —
executor inventory and placement policy live entirely outside the engine,
behind this interface — plus an in-memory reference implementation used by
tests and by the single-node cmd/dispatchd deployment.

InMemory matches MachineDefinition against registered executor capacity with
a simple first-fit scan; production deployments with a real scheduling
backend (Kubernetes, Nomad, a bespoke cluster manager) supply their own
ResourceCluster built the same way a teacher repo's node/placement layer is
built, consulting real cluster state instead of a map.
*/
package cluster
