package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"FootyCollect/internal/biz"
	"FootyCollect/internal/model"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

const (
	defaultStoredKitsPageSize = 20
	maxStoredKitsPageSize     = 100
	// defaultCollectionWait keeps the user collection endpoint under the
	// server write timeout.
	defaultCollectionWait = 30 * time.Second
	maxCollectionWait     = 2 * time.Minute
)

// SearchRequest carries the keyword of a search endpoint.
type SearchRequest struct {
	Keyword string
}

// KitRequest identifies an upstream kit.
type KitRequest struct {
	KitID int
}

type ClubSeasonsRequest struct {
	ClubID int
}

type ClubKitsRequest struct {
	ClubID   int
	SeasonID int
}

// ImportKitsRequest is the body of the bulk import endpoint.
type ImportKitsRequest struct {
	Slugs []string `json:"slugs"`
}

// UserRequest identifies an upstream user collection.
type UserRequest struct {
	UserID int
}

type UserCollectionRequest struct {
	UserID   int
	PageSize int
	Wait     time.Duration
}

type StoredKitsRequest struct {
	Page     int
	PageSize int
}

// ListReply wraps list results.
type ListReply struct {
	Results interface{} `json:"results"`
}

type StoredKitsReply struct {
	Results  []*model.ImportedKit `json:"results"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// CatalogService exposes the catalog, import and collection use cases over
// HTTP.
type CatalogService struct {
	catalog     *biz.CatalogUsecase
	imports     *biz.KitImportUsecase
	collections *biz.CollectionSyncUsecase
	health      *biz.HealthUsecase
	logger      *log.Helper
}

// NewCatalogService creates a new CatalogService instance.
func NewCatalogService(
	catalog *biz.CatalogUsecase,
	imports *biz.KitImportUsecase,
	collections *biz.CollectionSyncUsecase,
	health *biz.HealthUsecase,
	logger log.Logger,
) *CatalogService {
	return &CatalogService{
		catalog:     catalog,
		imports:     imports,
		collections: collections,
		health:      health,
		logger:      log.NewHelper(logger),
	}
}

// search turns a too short query into an empty result list.
func search(results []interface{}, err error) (*ListReply, error) {
	if err != nil && !errors.Is(err, biz.ErrQueryTooShort) {
		return nil, err
	}
	if results == nil {
		results = []interface{}{}
	}
	return &ListReply{Results: results}, nil
}

// SearchClubs searches clubs by name.
func (s *CatalogService) SearchClubs(ctx context.Context, req *SearchRequest) (*ListReply, error) {
	return search(s.catalog.SearchClubs(ctx, req.Keyword))
}

// SearchKits searches kits by name.
func (s *CatalogService) SearchKits(ctx context.Context, req *SearchRequest) (*ListReply, error) {
	return search(s.catalog.SearchKits(ctx, req.Keyword))
}

func (s *CatalogService) SearchBrands(ctx context.Context, req *SearchRequest) (*ListReply, error) {
	return search(s.catalog.SearchBrands(ctx, req.Keyword))
}

func (s *CatalogService) SearchCompetitions(ctx context.Context, req *SearchRequest) (*ListReply, error) {
	return search(s.catalog.SearchCompetitions(ctx, req.Keyword))
}

// SearchSeasons searches seasons through the matching kits and clubs.
func (s *CatalogService) SearchSeasons(ctx context.Context, req *SearchRequest) (*ListReply, error) {
	seasons, err := s.catalog.SearchSeasons(ctx, req.Keyword)
	if err != nil && !errors.Is(err, biz.ErrQueryTooShort) {
		return nil, err
	}
	if seasons == nil {
		seasons = []model.SeasonEntry{}
	}
	return &ListReply{Results: seasons}, nil
}

func (s *CatalogService) ClubSeasons(ctx context.Context, req *ClubSeasonsRequest) (*ListReply, error) {
	return search(s.catalog.ClubSeasons(ctx, req.ClubID), nil)
}

func (s *CatalogService) ClubKits(ctx context.Context, req *ClubKitsRequest) (*ListReply, error) {
	return search(s.catalog.ClubKits(ctx, req.ClubID, req.SeasonID), nil)
}

// GetKit returns the upstream kit details, or 503 when they are unavailable.
func (s *CatalogService) GetKit(ctx context.Context, req *KitRequest) (map[string]interface{}, error) {
	return s.catalog.KitDetails(ctx, req.KitID)
}

// ImportKit stores an upstream kit and its references in the catalog.
func (s *CatalogService) ImportKit(ctx context.Context, req *KitRequest) (*model.ImportedKit, error) {
	s.logger.Infow("msg", "ImportKit called", "kit_id", req.KitID)

	kit, err := s.imports.ImportKit(ctx, req.KitID)
	if err != nil {
		if errors.Is(err, biz.ErrKitUnavailable) {
			return nil, biz.ErrKitDataUnavailable
		}
		s.logger.Errorw("msg", "failed to import kit", "kit_id", req.KitID, "error", err)
		return nil, kerrors.InternalServer("KIT_IMPORT_FAILED", "Kit import failed")
	}
	return kit, nil
}

// ImportKits stores the kits behind a list of upstream slugs.
func (s *CatalogService) ImportKits(ctx context.Context, req *ImportKitsRequest) (*model.BulkImportResult, error) {
	slugs := make([]string, 0, len(req.Slugs))
	for _, slug := range req.Slugs {
		if slug = strings.TrimSpace(slug); slug != "" {
			slugs = append(slugs, slug)
		}
	}
	if len(slugs) == 0 {
		return nil, kerrors.BadRequest("SLUGS_REQUIRED", "slugs must contain at least one kit slug")
	}

	s.logger.Infow("msg", "ImportKits called", "slugs", len(slugs))
	return s.imports.ImportKitsBulk(ctx, slugs)
}

// StoredKits lists the kits stored in the catalog.
func (s *CatalogService) StoredKits(ctx context.Context, req *StoredKitsRequest) (*StoredKitsReply, error) {
	page, pageSize := req.Page, req.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultStoredKitsPageSize
	}
	if pageSize > maxStoredKitsPageSize {
		pageSize = maxStoredKitsPageSize
	}

	kits, total, err := s.imports.StoredKits(ctx, page, pageSize)
	if err != nil {
		s.logger.Errorw("msg", "failed to list stored kits", "error", err)
		return nil, kerrors.InternalServer("CATALOG_UNAVAILABLE", "Catalog temporarily unavailable")
	}
	return &StoredKitsReply{Results: kits, Total: total, Page: page, PageSize: pageSize}, nil
}

// StoredKit returns one stored kit by its upstream ID.
func (s *CatalogService) StoredKit(ctx context.Context, req *KitRequest) (*model.ImportedKit, error) {
	kit, err := s.imports.StoredKit(ctx, req.KitID)
	switch {
	case err == nil:
		return kit, nil
	case errors.Is(err, biz.ErrKitNotStored):
		return nil, kerrors.NotFound("KIT_NOT_STORED", "Kit has not been imported")
	default:
		s.logger.Errorw("msg", "failed to read stored kit", "kit_id", req.KitID, "error", err)
		return nil, kerrors.InternalServer("CATALOG_UNAVAILABLE", "Catalog temporarily unavailable")
	}
}

// ScrapeUserCollection asks the upstream to scrape a user collection.
func (s *CatalogService) ScrapeUserCollection(ctx context.Context, req *UserRequest) (map[string]interface{}, error) {
	s.logger.Infow("msg", "ScrapeUserCollection called", "user_id", req.UserID)

	resp, err := s.collections.TriggerScrape(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, biz.ErrScrapeRejected) {
			return nil, kerrors.New(502, "SCRAPE_REJECTED", err.Error())
		}
		s.logger.Warnw("msg", "scrape request failed", "user_id", req.UserID, "error", err)
		return nil, kerrors.ServiceUnavailable("FKAPI_UNAVAILABLE", "Collection scrape temporarily unavailable")
	}
	return resp, nil
}

// UserCollection waits for a scraped user collection and returns all of its
// entries.
func (s *CatalogService) UserCollection(ctx context.Context, req *UserCollectionRequest) (*model.UserCollection, error) {
	wait := req.Wait
	if wait <= 0 {
		wait = defaultCollectionWait
	}
	if wait > maxCollectionWait {
		wait = maxCollectionWait
	}

	collection, err := s.collections.FetchCollection(ctx, req.UserID, wait, req.PageSize)
	switch {
	case err == nil:
		return collection, nil
	case errors.Is(err, biz.ErrCollectionNotReady):
		return nil, kerrors.ServiceUnavailable("COLLECTION_NOT_READY", "Collection is still being scraped")
	case errors.Is(err, biz.ErrCollectionEmpty):
		return nil, kerrors.NotFound("COLLECTION_EMPTY", "Collection has no entries")
	default:
		return nil, err
	}
}

// Health reports the upstream breaker state and the cache backend.
func (s *CatalogService) Health(ctx context.Context) *model.HealthStatus {
	return s.health.Health(ctx)
}

// UpstreamMetrics returns the shared FKAPI client counters.
func (s *CatalogService) UpstreamMetrics(ctx context.Context) map[string]int64 {
	return s.health.UpstreamMetrics(ctx)
}
