/*
Package gateway defines the Dispatch Engine's Gateway collaborator: the
per-executor RPC handle the engine uses to submit and cancel tasks. No wire
transport, certificate, or framing concern belongs here beyond what ships in
this package: InMemory for tests and the single-node cmd/dispatchd
deployment, and HTTPGateway for a real executor fleet reachable over plain
HTTP, which layers pkg/health's HTTPChecker and Status on top of net/http to
fail fast against an executor that has crossed its failure threshold rather
than hanging SubmitTask on every attempt. A deployment speaking a different
executor protocol (gRPC, an SSH-tunneled agent) implements Gateway directly.
*/
package gateway
