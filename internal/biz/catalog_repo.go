package biz

import (
	"context"

	"FootyCollect/internal/data"
)

// CatalogRepo defines the catalog persistence operations.
// Implementation is in data layer (data.CatalogRepo).
type CatalogRepo interface {
	UpsertClub(ctx context.Context, club *data.Club) error
	UpsertSeason(ctx context.Context, season *data.Season) error
	UpsertBrand(ctx context.Context, brand *data.Brand) error
	UpsertCompetition(ctx context.Context, competition *data.Competition) error
	UpsertKitType(ctx context.Context, kitType *data.KitType) error
	UpsertKit(ctx context.Context, kit *data.Kit) error
	GetKitByFkaID(ctx context.Context, fkaID int) (*data.Kit, error)
	ListKits(ctx context.Context, offset, limit int) ([]*data.Kit, int64, error)
}

// KitArchive is the FootballKitArchive API as used by the use cases.
// Implementation is fkapi.Client. Read methods never fail: they return
// empty lists or nil objects when the upstream is unavailable.
type KitArchive interface {
	SearchClubs(ctx context.Context, query string) []interface{}
	GetClubSeasons(ctx context.Context, clubID int) []interface{}
	GetClubKits(ctx context.Context, clubID, seasonID int) []interface{}
	GetKitDetails(ctx context.Context, kitID int) map[string]interface{}
	SearchKits(ctx context.Context, query string) []interface{}
	SearchBrands(ctx context.Context, query string) []interface{}
	SearchCompetitions(ctx context.Context, query string) []interface{}
	GetKitsBulk(ctx context.Context, slugs []string) []interface{}
	GetUserCollection(ctx context.Context, userID, page, pageSize int, useCache bool) map[string]interface{}
	ScrapeUserCollection(ctx context.Context, userID int) (map[string]interface{}, error)
}

// CacheInfo reports the active cache store.
type CacheInfo interface {
	CacheBackend() string
}

// MetricsReader reads the shared client event counters.
type MetricsReader interface {
	Snapshot(ctx context.Context) map[string]int64
}
