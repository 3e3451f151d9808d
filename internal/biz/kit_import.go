package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"FootyCollect/internal/data"
	"FootyCollect/internal/model"
	pkgerrors "FootyCollect/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	// bulkBatchSize is the number of slugs per bulk upstream request.
	bulkBatchSize = 30
	// notFoundImage replaces a missing kit image.
	notFoundImage = "https://www.footballkitarchive.com/static/logos/not_found.png"
)

const (
	categoryJacket = "jacket"
	categoryMatch  = "match"
)

var (
	// ErrKitUnavailable is returned when the upstream has no data for a kit.
	ErrKitUnavailable = errors.New("kit not available upstream")
	// ErrKitNotStored is returned when a kit has not been imported.
	ErrKitNotStored = errors.New("kit not stored in the catalog")
)

// KitImportUsecase stores upstream kits and their references in the catalog.
type KitImportUsecase struct {
	archive KitArchive
	repo    CatalogRepo
	logger  *log.Helper
}

// NewKitImportUsecase creates a new kit import use case.
func NewKitImportUsecase(archive KitArchive, repo CatalogRepo, logger log.Logger) *KitImportUsecase {
	return &KitImportUsecase{
		archive: archive,
		repo:    repo,
		logger:  log.NewHelper(logger),
	}
}

// ImportKit fetches one kit by its upstream ID and stores it.
func (uc *KitImportUsecase) ImportKit(ctx context.Context, kitID int) (*model.ImportedKit, error) {
	details := uc.archive.GetKitDetails(ctx, kitID)
	if details == nil {
		return nil, fmt.Errorf("import kit %d: %w", kitID, ErrKitUnavailable)
	}
	if _, ok := intValue(details, "id"); !ok {
		withID := make(map[string]interface{}, len(details)+1)
		for k, v := range details {
			withID[k] = v
		}
		withID["id"] = float64(kitID)
		details = withID
	}

	kit, err := uc.store(ctx, details)
	if err != nil {
		return nil, fmt.Errorf("import kit %d: %w", kitID, err)
	}

	uc.logger.Infow("msg", "kit imported", "kit_id", kitID, "slug", kit.Slug)
	return Summarize(kit), nil
}

// ImportKitsBulk fetches kits by slug in batches and stores each one. Kits
// the upstream does not return are reported as missing.
func (uc *KitImportUsecase) ImportKitsBulk(ctx context.Context, slugs []string) (*model.BulkImportResult, error) {
	result := &model.BulkImportResult{Requested: len(slugs)}
	returned := make(map[string]struct{}, len(slugs))

	for start := 0; start < len(slugs); start += bulkBatchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := start + bulkBatchSize
		if end > len(slugs) {
			end = len(slugs)
		}
		batch := slugs[start:end]
		uc.logger.Debugw("msg", "fetching kit batch", "batch", start/bulkBatchSize+1, "size", len(batch))

		for _, item := range uc.archive.GetKitsBulk(ctx, batch) {
			payload, ok := object(item)
			if !ok {
				result.Failed++
				continue
			}
			kit, err := uc.store(ctx, payload)
			if err != nil {
				uc.logger.Warnw("msg", "failed to import kit", "slug", str(payload, "slug"), "error", err)
				result.Failed++
				continue
			}
			returned[kit.Slug] = struct{}{}
			result.Imported++
		}
	}

	for _, slug := range slugs {
		if _, ok := returned[slug]; !ok {
			result.Missing = append(result.Missing, slug)
		}
	}

	uc.logger.Infow("msg", "bulk kit import finished",
		"requested", result.Requested,
		"imported", result.Imported,
		"failed", result.Failed,
		"missing", len(result.Missing))
	return result, nil
}

// StoredKits returns a page of stored kits, newest first, and the total.
func (uc *KitImportUsecase) StoredKits(ctx context.Context, page, pageSize int) ([]*model.ImportedKit, int64, error) {
	if page < 1 {
		page = 1
	}
	kits, total, err := uc.repo.ListKits(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*model.ImportedKit, 0, len(kits))
	for _, kit := range kits {
		out = append(out, Summarize(kit))
	}
	return out, total, nil
}

// StoredKit returns the stored kit with the given upstream ID.
func (uc *KitImportUsecase) StoredKit(ctx context.Context, fkaID int) (*model.ImportedKit, error) {
	kit, err := uc.repo.GetKitByFkaID(ctx, fkaID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return nil, fmt.Errorf("stored kit %d: %w", fkaID, ErrKitNotStored)
		}
		return nil, err
	}
	return Summarize(kit), nil
}

// store upserts the references of a kit payload, then the kit.
func (uc *KitImportUsecase) store(ctx context.Context, payload map[string]interface{}) (*data.Kit, error) {
	name := str(payload, "name")
	slug := str(payload, "slug")
	if slug == "" {
		slug = slugify(name)
	}
	if name == "" || slug == "" {
		return nil, errors.New("kit payload has no name")
	}

	kit := &data.Kit{
		FkaID:      intPtr(payload, "id"),
		Name:       name,
		Slug:       slug,
		MainImgURL: str(payload, "main_img_url"),
	}
	if kit.MainImgURL == "" {
		kit.MainImgURL = notFoundImage
	}

	if team, ok := object(payload["team"]); ok {
		club, err := uc.storeClub(ctx, team)
		if err != nil {
			return nil, err
		}
		if club != nil {
			kit.TeamID, kit.Team = &club.ID, club
		}
	}

	season, err := uc.storeSeason(ctx, payload["season"])
	if err != nil {
		return nil, err
	}
	if season != nil {
		kit.SeasonID, kit.Season = &season.ID, season
	}

	if b, ok := object(payload["brand"]); ok {
		brand, err := uc.storeBrand(ctx, b)
		if err != nil {
			return nil, err
		}
		if brand != nil {
			kit.BrandID, kit.Brand = &brand.ID, brand
		}
	}

	kitType, err := uc.storeKitType(ctx, payload["type"])
	if err != nil {
		return nil, err
	}
	if kitType != nil {
		kit.TypeID, kit.Type = &kitType.ID, kitType
	}

	for _, c := range listOf(payload, "competition") {
		competition, err := uc.storeCompetition(ctx, c)
		if err != nil {
			return nil, err
		}
		if competition != nil {
			kit.Competitions = append(kit.Competitions, *competition)
		}
	}

	if err := uc.repo.UpsertKit(ctx, kit); err != nil {
		return nil, err
	}
	return kit, nil
}

func (uc *KitImportUsecase) storeClub(ctx context.Context, team map[string]interface{}) (*data.Club, error) {
	name := str(team, "name")
	if name == "" {
		return nil, nil
	}
	club := &data.Club{
		FkaID:    intPtr(team, "id"),
		Name:     name,
		Slug:     slugOr(team, name),
		Country:  strings.ToUpper(str(team, "country")),
		Logo:     str(team, "logo"),
		LogoDark: str(team, "logo_dark"),
	}
	if err := uc.repo.UpsertClub(ctx, club); err != nil {
		return nil, err
	}
	return club, nil
}

// storeSeason accepts a season object or a bare year label.
func (uc *KitImportUsecase) storeSeason(ctx context.Context, v interface{}) (*data.Season, error) {
	var season *data.Season
	switch s := v.(type) {
	case map[string]interface{}:
		if year := str(s, "year"); year != "" {
			season = &data.Season{
				FkaID:      intPtr(s, "id"),
				Year:       year,
				FirstYear:  str(s, "first_year"),
				SecondYear: str(s, "second_year"),
			}
		}
	case string:
		if s != "" {
			season = &data.Season{Year: s}
		}
	}
	if season == nil {
		return nil, nil
	}
	if season.FirstYear == "" {
		first, second, _ := strings.Cut(season.Year, "-")
		season.FirstYear, season.SecondYear = first, second
	}
	if err := uc.repo.UpsertSeason(ctx, season); err != nil {
		return nil, err
	}
	return season, nil
}

func (uc *KitImportUsecase) storeBrand(ctx context.Context, b map[string]interface{}) (*data.Brand, error) {
	name := str(b, "name")
	if name == "" {
		return nil, nil
	}
	brand := &data.Brand{
		FkaID:    intPtr(b, "id"),
		Name:     name,
		Slug:     slugOr(b, name),
		Logo:     str(b, "logo"),
		LogoDark: str(b, "logo_dark"),
	}
	if err := uc.repo.UpsertBrand(ctx, brand); err != nil {
		return nil, err
	}
	return brand, nil
}

func (uc *KitImportUsecase) storeCompetition(ctx context.Context, c map[string]interface{}) (*data.Competition, error) {
	name := str(c, "name")
	if name == "" {
		return nil, nil
	}
	competition := &data.Competition{
		FkaID:    intPtr(c, "id"),
		Name:     name,
		Slug:     slugOr(c, name),
		Logo:     str(c, "logo"),
		LogoDark: str(c, "logo_dark"),
	}
	if err := uc.repo.UpsertCompetition(ctx, competition); err != nil {
		return nil, err
	}
	return competition, nil
}

// storeKitType accepts a type object or a bare name. Jackets are outerwear,
// not kits, and get no kit type.
func (uc *KitImportUsecase) storeKitType(ctx context.Context, v interface{}) (*data.KitType, error) {
	kitType := &data.KitType{Category: categoryMatch}
	switch t := v.(type) {
	case map[string]interface{}:
		kitType.Name = str(t, "name")
		if category := str(t, "category"); category != "" {
			kitType.Category = category
		}
		kitType.IsGoalkeeper = boolean(t, "is_goalkeeper")
	case string:
		kitType.Name = t
	}
	if kitType.Name == "" {
		return nil, nil
	}
	if kitType.Category == categoryJacket {
		uc.logger.Infow("msg", "skipping kit type for jacket", "type", kitType.Name)
		return nil, nil
	}
	if err := uc.repo.UpsertKitType(ctx, kitType); err != nil {
		return nil, err
	}
	return kitType, nil
}

func slugOr(m map[string]interface{}, name string) string {
	if slug := str(m, "slug"); slug != "" {
		return slug
	}
	return slugify(name)
}

// Summarize flattens a stored kit and its references.
func Summarize(kit *data.Kit) *model.ImportedKit {
	out := &model.ImportedKit{
		ID:           kit.ID,
		FkaID:        kit.FkaID,
		Name:         kit.Name,
		Slug:         kit.Slug,
		Competitions: make([]string, 0, len(kit.Competitions)),
		MainImgURL:   kit.MainImgURL,
	}
	if kit.Team != nil {
		out.Team = kit.Team.Name
	}
	if kit.Season != nil {
		out.Season = kit.Season.Year
	}
	if kit.Brand != nil {
		out.Brand = kit.Brand.Name
	}
	if kit.Type != nil {
		out.Type = kit.Type.Name
	}
	for _, c := range kit.Competitions {
		out.Competitions = append(out.Competitions, c.Name)
	}
	return out
}
