/*
Package router implements the Dispatch Engine's JobMessageRouter collaborator:
the outbound edge that hands WorkerLaunched/WorkerLaunchFailed events to the
job-management plane.

Broker adapts the non-blocking pub/sub broadcast pattern (buffered publish
channel, per-subscriber buffered channel, skip-on-full delivery) to a single
synchronous collaborator call. RouteWorkerEvent returns true once the event
is queued and false only after Stop: routing to a running in-process broker
is assumed infallible, matching the contract the
engine's outbound publisher relies on (a false return is treated as a
programming error, never a retry signal).

	b := router.NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)
	go func() {
		for evt := range sub {
			// forward evt to the job-management plane
		}
	}()

	b.RouteWorkerEvent(types.WorkerLaunched{WorkerID: "w-1"})
*/
package router
