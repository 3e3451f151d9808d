package biz

import (
	"context"
	"errors"
	"unicode/utf8"

	"FootyCollect/internal/model"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

const (
	// minKitQueryLength is the shortest kit search query sent upstream.
	minKitQueryLength = 3
	// minQueryLength applies to brand, competition and season searches.
	minQueryLength = 2
	// seasonClubLookups bounds the clubs whose seasons enrich a season search.
	seasonClubLookups = 3
)

// ErrQueryTooShort is returned for search queries below the minimum length,
// counted in characters.
// Callers answer with an empty result set.
var ErrQueryTooShort = errors.New("search query too short")

// ErrKitDataUnavailable is returned when the upstream has no kit data and
// nothing is cached.
var ErrKitDataUnavailable = kerrors.New(503, "KIT_DATA_UNAVAILABLE", "Kit data temporarily unavailable")

// CatalogUsecase serves catalog lookups through the FootballKitArchive client.
type CatalogUsecase struct {
	archive KitArchive
	logger  *log.Helper
}

// NewCatalogUsecase creates a new catalog use case.
func NewCatalogUsecase(archive KitArchive, logger log.Logger) *CatalogUsecase {
	return &CatalogUsecase{
		archive: archive,
		logger:  log.NewHelper(logger),
	}
}

func (uc *CatalogUsecase) SearchClubs(ctx context.Context, query string) ([]interface{}, error) {
	return uc.archive.SearchClubs(ctx, query), nil
}

func (uc *CatalogUsecase) SearchKits(ctx context.Context, query string) ([]interface{}, error) {
	if utf8.RuneCountInString(query) < minKitQueryLength {
		return []interface{}{}, ErrQueryTooShort
	}
	return uc.archive.SearchKits(ctx, query), nil
}

func (uc *CatalogUsecase) SearchBrands(ctx context.Context, query string) ([]interface{}, error) {
	if utf8.RuneCountInString(query) < minQueryLength {
		return []interface{}{}, ErrQueryTooShort
	}
	return uc.archive.SearchBrands(ctx, query), nil
}

func (uc *CatalogUsecase) SearchCompetitions(ctx context.Context, query string) ([]interface{}, error) {
	if utf8.RuneCountInString(query) < minQueryLength {
		return []interface{}{}, ErrQueryTooShort
	}
	return uc.archive.SearchCompetitions(ctx, query), nil
}

func (uc *CatalogUsecase) ClubSeasons(ctx context.Context, clubID int) []interface{} {
	return uc.archive.GetClubSeasons(ctx, clubID)
}

func (uc *CatalogUsecase) ClubKits(ctx context.Context, clubID, seasonID int) []interface{} {
	return uc.archive.GetClubKits(ctx, clubID, seasonID)
}

// KitDetails returns the kit payload or ErrKitDataUnavailable.
func (uc *CatalogUsecase) KitDetails(ctx context.Context, kitID int) (map[string]interface{}, error) {
	kit := uc.archive.GetKitDetails(ctx, kitID)
	if kit == nil {
		uc.logger.Warnw("msg", "kit data unavailable", "kit_id", kitID)
		return nil, ErrKitDataUnavailable
	}
	return kit, nil
}

// SearchSeasons collects seasons from the kits matching query, then from the
// seasons of the first matching clubs. The first occurrence of a year wins
// and discovery order is kept.
func (uc *CatalogUsecase) SearchSeasons(ctx context.Context, query string) ([]model.SeasonEntry, error) {
	if utf8.RuneCountInString(query) < minQueryLength {
		return []model.SeasonEntry{}, ErrQueryTooShort
	}

	seasons := make([]model.SeasonEntry, 0)
	seen := make(map[string]struct{})
	add := func(year string, id *int) {
		if year == "" {
			return
		}
		if _, ok := seen[year]; ok {
			return
		}
		seen[year] = struct{}{}
		seasons = append(seasons, model.SeasonEntry{ID: id, Name: year})
	}

	for _, item := range uc.archive.SearchKits(ctx, query) {
		kit, ok := object(item)
		if !ok {
			continue
		}
		switch season := kit["season"].(type) {
		case map[string]interface{}:
			add(str(season, "year"), intPtr(season, "id"))
		case string:
			add(season, nil)
		case float64:
			add(str(kit, "season"), nil)
		}
	}

	clubs := uc.archive.SearchClubs(ctx, query)
	if len(clubs) > seasonClubLookups {
		clubs = clubs[:seasonClubLookups]
	}
	for _, item := range clubs {
		club, ok := object(item)
		if !ok {
			continue
		}
		clubID, ok := intValue(club, "id")
		if !ok || clubID == 0 {
			continue
		}
		for _, s := range uc.archive.GetClubSeasons(ctx, clubID) {
			season, ok := object(s)
			if !ok {
				continue
			}
			add(str(season, "year"), intPtr(season, "id"))
		}
	}

	uc.logger.Debugw("msg", "season search", "query", query, "results", len(seasons))
	return seasons, nil
}
