package service

import (
	"context"
	"strconv"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/transport/http"
)

const (
	OperationCatalogSearchClubs          = "/footycollect.catalog.Catalog/SearchClubs"
	OperationCatalogSearchKits           = "/footycollect.catalog.Catalog/SearchKits"
	OperationCatalogSearchBrands         = "/footycollect.catalog.Catalog/SearchBrands"
	OperationCatalogSearchCompetitions   = "/footycollect.catalog.Catalog/SearchCompetitions"
	OperationCatalogSearchSeasons        = "/footycollect.catalog.Catalog/SearchSeasons"
	OperationCatalogClubSeasons          = "/footycollect.catalog.Catalog/ClubSeasons"
	OperationCatalogClubKits             = "/footycollect.catalog.Catalog/ClubKits"
	OperationCatalogGetKit               = "/footycollect.catalog.Catalog/GetKit"
	OperationCatalogImportKit            = "/footycollect.catalog.Catalog/ImportKit"
	OperationCatalogImportKits           = "/footycollect.catalog.Catalog/ImportKits"
	OperationCatalogStoredKits           = "/footycollect.catalog.Catalog/StoredKits"
	OperationCatalogStoredKit            = "/footycollect.catalog.Catalog/StoredKit"
	OperationCatalogScrapeUserCollection = "/footycollect.catalog.Catalog/ScrapeUserCollection"
	OperationCatalogUserCollection       = "/footycollect.catalog.Catalog/UserCollection"
	OperationCatalogHealth               = "/footycollect.catalog.Catalog/Health"
	OperationCatalogUpstreamMetrics      = "/footycollect.catalog.Catalog/UpstreamMetrics"
)

// RegisterCatalogHTTPServer mounts the catalog API under /api. Every route
// runs through the server middleware chain.
func RegisterCatalogHTTPServer(s *http.Server, svc *CatalogService) {
	r := s.Route("/api")
	r.GET("/clubs/search", searchHandler(OperationCatalogSearchClubs, svc.SearchClubs))
	r.GET("/kits/search", searchHandler(OperationCatalogSearchKits, svc.SearchKits))
	r.GET("/brands/search", searchHandler(OperationCatalogSearchBrands, svc.SearchBrands))
	r.GET("/competitions/search", searchHandler(OperationCatalogSearchCompetitions, svc.SearchCompetitions))
	r.GET("/seasons/search", searchHandler(OperationCatalogSearchSeasons, svc.SearchSeasons))
	r.GET("/clubs/{club_id}/seasons", _Catalog_ClubSeasons_HTTP_Handler(svc))
	r.GET("/clubs/{club_id}/seasons/{season_id}/kits", _Catalog_ClubKits_HTTP_Handler(svc))
	r.GET("/kit/{kit_id}", _Catalog_GetKit_HTTP_Handler(svc))
	r.POST("/kit/{kit_id}/import", _Catalog_ImportKit_HTTP_Handler(svc))
	r.POST("/kits/import", _Catalog_ImportKits_HTTP_Handler(svc))
	r.GET("/catalog/kits", _Catalog_StoredKits_HTTP_Handler(svc))
	r.GET("/catalog/kits/{kit_id}", _Catalog_StoredKit_HTTP_Handler(svc))
	r.POST("/user-collection/{user_id}/scrape", _Catalog_ScrapeUserCollection_HTTP_Handler(svc))
	r.GET("/user-collection/{user_id}", _Catalog_UserCollection_HTTP_Handler(svc))
	r.GET("/health", _Catalog_Health_HTTP_Handler(svc))
	r.GET("/fkapi/metrics", _Catalog_UpstreamMetrics_HTTP_Handler(svc))
}

// serve runs fn through the middleware chain and writes the reply as JSON.
func serve(ctx http.Context, operation string, in interface{}, fn func(context.Context, interface{}) (interface{}, error)) error {
	http.SetOperation(ctx, operation)
	h := ctx.Middleware(fn)
	out, err := h(ctx, in)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func searchHandler[T any](operation string, fn func(context.Context, *SearchRequest) (T, error)) func(http.Context) error {
	return func(ctx http.Context) error {
		in := &SearchRequest{Keyword: ctx.Query().Get("keyword")}
		return serve(ctx, operation, in, func(ctx context.Context, req interface{}) (interface{}, error) {
			return fn(ctx, req.(*SearchRequest))
		})
	}
}

func _Catalog_ClubSeasons_HTTP_Handler(svc *CatalogService) func(http.Context) error {
	return func(ctx http.Context) error {
		clubID, err := pathID(ctx, "club_id")
		if err != nil {
			return err
		}
		return serve(ctx, OperationCatalogClubSeasons, &ClubSeasonsRequest{ClubID: clubID}, func(ctx context.Context, req interface{}) (interface{}, error) {
			return svc.ClubSeasons(ctx, req.(*ClubSeasonsRequest))
		})
	}
}

func _Catalog_ClubKits_HTTP_Handler(svc *CatalogService) func(http.Context) error {
	return func(ctx http.Context) error {
		clubID, err := pathID(ctx, "club_id")
		if err != nil {
			return err
		}
		seasonID, err := pathID(ctx, "season_id")
		if err != nil {
			return err
		}
		in := &ClubKitsRequest{ClubID: clubID, SeasonID: seasonID}
		return serve(ctx, OperationCatalogClubKits, in, func(ctx context.Context, req interface{}) (interface{}, error) {
			return svc.ClubKits(ctx, req.(*ClubKitsRequest))
		})
	}
}

func _Catalog_GetKit_HTTP_Handler(svc *CatalogService) func(http.Context) error {
	return func(ctx http.Context) error {
		kitID, err := pathID(ctx, "kit_id")
		if err != nil {
			return err
		}
		return serve(ctx, OperationCatalogGetKit, &KitRequest{KitID: kitID}, func(ctx context.Context, req interface{}) (interface{}, error) {
			return svc.GetKit(ctx, req.(*KitRequest))
		})
	}
}

func _Catalog_ImportKit_HTTP_Handler(svc *CatalogService) func(http.Context) error {
	return func(ctx http.Context) error {
		kitID, err := pathID(ctx, "kit_id")
		if err != nil {
			return err
		}
		return serve(ctx, OperationCatalogImportKit, &KitRequest{KitID: kitID}, func(ctx context.Context, req interface{}) (interface{}, error) {
			return svc.ImportKit(ctx, req.(*KitRequest))
		})
	}
}

func _Catalog_ImportKits_HTTP_Handler(svc *CatalogService) func(http.Context) error {
	return func(ctx http.Context) error {
		var in ImportKitsRequest
		if err := ctx.Bind(&in); err != nil {
			return kerrors.BadRequest("INVALID_BODY", "request body must be a JSON object with a slugs list")
		}
		return serve(ctx, OperationCatalogImportKits, &in, func(ctx context.Context, req interface{}) (interface{}, error) {
			return svc.ImportKits(ctx, req.(*ImportKitsRequest))
		})
	}
}

func _Catalog_StoredKits_HTTP_Handler(svc *CatalogService) func(http.Context) error {
	return func(ctx http.Context) error {
		page, err := queryInt(ctx, "page")
		if err != nil {
			return err
		}
		pageSize, err := queryInt(ctx, "page_size")
		if err != nil {
			return err
		}
		in := &StoredKitsRequest{Page: page, PageSize: pageSize}
		return serve(ctx, OperationCatalogStoredKits, in, func(ctx context.Context, req interface{}) (interface{}, error) {
			return svc.StoredKits(ctx, req.(*StoredKitsRequest))
		})
	}
}

func _Catalog_StoredKit_HTTP_Handler(svc *CatalogService) func(http.Context) error {
	return func(ctx http.Context) error {
		kitID, err := pathID(ctx, "kit_id")
		if err != nil {
			return err
		}
		return serve(ctx, OperationCatalogStoredKit, &KitRequest{KitID: kitID}, func(ctx context.Context, req interface{}) (interface{}, error) {
			return svc.StoredKit(ctx, req.(*KitRequest))
		})
	}
}

func _Catalog_ScrapeUserCollection_HTTP_Handler(svc *CatalogService) func(http.Context) error {
	return func(ctx http.Context) error {
		userID, err := pathID(ctx, "user_id")
		if err != nil {
			return err
		}
		return serve(ctx, OperationCatalogScrapeUserCollection, &UserRequest{UserID: userID}, func(ctx context.Context, req interface{}) (interface{}, error) {
			return svc.ScrapeUserCollection(ctx, req.(*UserRequest))
		})
	}
}

func _Catalog_UserCollection_HTTP_Handler(svc *CatalogService) func(http.Context) error {
	return func(ctx http.Context) error {
		userID, err := pathID(ctx, "user_id")
		if err != nil {
			return err
		}
		pageSize, err := queryInt(ctx, "page_size")
		if err != nil {
			return err
		}
		wait, err := queryInt(ctx, "wait")
		if err != nil {
			return err
		}
		in := &UserCollectionRequest{UserID: userID, PageSize: pageSize, Wait: time.Duration(wait) * time.Second}
		return serve(ctx, OperationCatalogUserCollection, in, func(ctx context.Context, req interface{}) (interface{}, error) {
			return svc.UserCollection(ctx, req.(*UserCollectionRequest))
		})
	}
}

func _Catalog_Health_HTTP_Handler(svc *CatalogService) func(http.Context) error {
	return func(ctx http.Context) error {
		return serve(ctx, OperationCatalogHealth, nil, func(ctx context.Context, _ interface{}) (interface{}, error) {
			return svc.Health(ctx), nil
		})
	}
}

func _Catalog_UpstreamMetrics_HTTP_Handler(svc *CatalogService) func(http.Context) error {
	return func(ctx http.Context) error {
		return serve(ctx, OperationCatalogUpstreamMetrics, nil, func(ctx context.Context, _ interface{}) (interface{}, error) {
			return svc.UpstreamMetrics(ctx), nil
		})
	}
}

// pathID parses a numeric path variable.
func pathID(ctx http.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Vars().Get(name))
	if err != nil {
		return 0, kerrors.BadRequest("INVALID_ID", name+" must be an integer").WithMetadata(map[string]string{"field": name})
	}
	return id, nil
}

// queryInt parses an optional numeric query parameter; absent is zero.
func queryInt(ctx http.Context, name string) (int, error) {
	raw := ctx.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, kerrors.BadRequest("INVALID_PARAMETER", name+" must be an integer").WithMetadata(map[string]string{"field": name})
	}
	return n, nil
}
