package stage

import (
	"context"

	"platewatch/internal/store"
)

// Handler is what the workflow manager drives for each claimed video: Prepare
// checks the inputs, Execute runs the forensic pipeline over them.
type Handler interface {
	Prepare(context.Context, *store.Video) error
	Execute(context.Context, *store.Video) error
	HealthCheck(context.Context) Health
}

// Health is the handler's readiness as shown by platewatch status. A ready
// handler may still carry a Detail, e.g. when it runs on local reads only.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

func Healthy(name string) Health { return Health{Name: name, Ready: true} }

// Degraded is ready but missing an optional capability.
func Degraded(name, detail string) Health { return Health{Name: name, Ready: true, Detail: detail} }

func Unhealthy(name, detail string) Health { return Health{Name: name, Detail: detail} }
