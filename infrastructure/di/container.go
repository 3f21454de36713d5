package di

import (
	"go.uber.org/zap"

	"gentree/application/commands/bus"
	"gentree/application/ports"
	"gentree/application/services"
	"gentree/infrastructure/config"
	"gentree/pkg/auth"
	"gentree/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	LogLevel   zap.AtomicLevel
	Logger     *zap.Logger
	Store      ports.KeyValueStore
	Photos     ports.PhotoStore
	EventBus   ports.EventBus
	Saver      *services.SaveScheduler
	Tree       *services.TreeService
	Views      *services.ViewStateService
	CommandBus *bus.CommandBus
	Collector  *observability.Collector
	Tracer     *observability.Tracer
	Validator  *auth.JWTValidator
}
