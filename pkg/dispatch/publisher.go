package dispatch

import (
	"github.com/cuemby/dispatchd/pkg/log"
	"github.com/cuemby/dispatchd/pkg/router"
	"github.com/cuemby/dispatchd/pkg/types"
)

// publisher is a thin adapter from a WorkerEvent variant to the injected
// JobMessageRouter. A false return from RouteWorkerEvent is treated as a
// programming error (routing to an in-process component is assumed
// infallible) and is only logged, never retried.
type publisher struct {
	router router.JobMessageRouter
}

func newPublisher(r router.JobMessageRouter) *publisher {
	return &publisher{router: r}
}

func (p *publisher) publishLaunched(event types.WorkerLaunched) {
	if !p.router.RouteWorkerEvent(event) {
		l := log.WithWorkerID(event.WorkerID)
		l.Error().Err(newRoutingFailure("WorkerLaunched")).Msg("router declined event")
	}
}

func (p *publisher) publishLaunchFailed(event types.WorkerLaunchFailed) {
	if !p.router.RouteWorkerEvent(event) {
		l := log.WithWorkerID(event.WorkerID)
		l.Error().Err(newRoutingFailure("WorkerLaunchFailed")).Msg("router declined event")
	}
}
