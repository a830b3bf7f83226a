package pipeline

import (
	"go.uber.org/fx"
)

const ackBuffer = 256

var Module = fx.Module("pipeline",
	fx.Provide(
		func() chan Ack { return make(chan Ack, ackBuffer) },
		BuildBindings,
		NewCoordinator,
		NewRouter,
	),
)
