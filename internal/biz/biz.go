// Package biz contains business logic layer implementations.
// This layer holds the catalog, import and collection rules on top of the
// FootballKitArchive client and the catalog repository.
package biz

import (
	"FootyCollect/internal/data"
	"FootyCollect/pkg/fkapi"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewCatalogUsecase,
	NewKitImportUsecase,
	NewCollectionSyncUsecase,
	NewRateLimiterUseCase,
	NewHealthUsecase,
	// Import data layer providers
	data.NewCatalogRepo,
	data.NewRateLimitRepo,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(CatalogRepo), new(*data.CatalogRepo)),
	wire.Bind(new(RateLimitRepo), new(*data.RateLimitRepo)),
	wire.Bind(new(KitArchive), new(*fkapi.Client)),
	wire.Bind(new(CacheInfo), new(*data.Data)),
	wire.Bind(new(MetricsReader), new(*data.Metrics)),
)
