package rest

import (
	"github.com/asaskevich/EventBus"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/engine"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/queue"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/registry"
)

type ContainerArgs struct {
	MDB    *registry.Store
	MQ     *queue.MessageQueue
	Engine engine.Engine
	Bus    EventBus.Bus
}
