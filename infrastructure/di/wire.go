//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"gentree/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideCollector,
	ProvideTracer,
	ProvideRedisClient,
	ProvideKeyValueStore,
	ProvidePhotoStore,
	ProvideEventBus,
	ProvideSaveScheduler,
	ProvideTreeService,
	ProvideViewStateService,
	ProvideCommandBus,
	ProvideJWTValidator,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The returned cleanup
// writes pending saves and then closes storage, in that order.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
