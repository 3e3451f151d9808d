package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "FootyCollect/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Model holds the columns shared by every catalog table.
type Model struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (m *Model) identity() *Model { return m }

// Club is a football club as known to FootballKitArchive.
type Club struct {
	Model
	FkaID    *int   `gorm:"column:id_fka;uniqueIndex" json:"id_fka,omitempty"`
	Name     string `gorm:"column:name;size:500;not null" json:"name"`
	Slug     string `gorm:"column:slug;size:150;uniqueIndex;not null" json:"slug"`
	Country  string `gorm:"column:country;size:2" json:"country,omitempty"`
	Logo     string `gorm:"column:logo;size:500" json:"logo,omitempty"`
	LogoDark string `gorm:"column:logo_dark;size:500" json:"logo_dark,omitempty"`
}

func (Club) TableName() string { return "clubs" }

// Season is identified by its year label, "2023-24" or "2024".
type Season struct {
	Model
	FkaID      *int   `gorm:"column:id_fka;index" json:"id_fka,omitempty"`
	Year       string `gorm:"column:year;size:9;uniqueIndex;not null" json:"year"`
	FirstYear  string `gorm:"column:first_year;size:4" json:"first_year"`
	SecondYear string `gorm:"column:second_year;size:4" json:"second_year,omitempty"`
}

func (Season) TableName() string { return "seasons" }

type Brand struct {
	Model
	FkaID    *int   `gorm:"column:id_fka;uniqueIndex" json:"id_fka,omitempty"`
	Name     string `gorm:"column:name;size:100;not null" json:"name"`
	Slug     string `gorm:"column:slug;size:150;uniqueIndex;not null" json:"slug"`
	Logo     string `gorm:"column:logo;size:500" json:"logo,omitempty"`
	LogoDark string `gorm:"column:logo_dark;size:500" json:"logo_dark,omitempty"`
}

func (Brand) TableName() string { return "brands" }

type Competition struct {
	Model
	FkaID    *int   `gorm:"column:id_fka;uniqueIndex" json:"id_fka,omitempty"`
	Name     string `gorm:"column:name;size:100;not null" json:"name"`
	Slug     string `gorm:"column:slug;size:150;uniqueIndex;not null" json:"slug"`
	Logo     string `gorm:"column:logo;size:500" json:"logo,omitempty"`
	LogoDark string `gorm:"column:logo_dark;size:500" json:"logo_dark,omitempty"`
}

func (Competition) TableName() string { return "competitions" }

// KitType is the kit variant: home, away, goalkeeper...
type KitType struct {
	Model
	Name         string `gorm:"column:name;size:100;uniqueIndex;not null" json:"name"`
	Category     string `gorm:"column:category;size:20;default:match;not null" json:"category"`
	IsGoalkeeper bool   `gorm:"column:is_goalkeeper;default:false;not null" json:"is_goalkeeper"`
}

func (KitType) TableName() string { return "kit_types" }

// Kit is one catalog kit with its references.
type Kit struct {
	Model
	FkaID        *int          `gorm:"column:id_fka;uniqueIndex" json:"id_fka,omitempty"`
	Name         string        `gorm:"column:name;size:200;not null" json:"name"`
	Slug         string        `gorm:"column:slug;size:150;uniqueIndex;not null" json:"slug"`
	TeamID       *uint         `gorm:"column:team_id;index" json:"-"`
	Team         *Club         `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"team,omitempty"`
	SeasonID     *uint         `gorm:"column:season_id;index" json:"-"`
	Season       *Season       `gorm:"foreignKey:SeasonID;constraint:OnDelete:CASCADE" json:"season,omitempty"`
	TypeID       *uint         `gorm:"column:type_id;index" json:"-"`
	Type         *KitType      `gorm:"foreignKey:TypeID;constraint:OnDelete:CASCADE" json:"type,omitempty"`
	BrandID      *uint         `gorm:"column:brand_id;index" json:"-"`
	Brand        *Brand        `gorm:"foreignKey:BrandID;constraint:OnDelete:CASCADE" json:"brand,omitempty"`
	Competitions []Competition `gorm:"many2many:kit_competitions" json:"competitions"`
	MainImgURL   string        `gorm:"column:main_img_url;size:500" json:"main_img_url"`
}

func (Kit) TableName() string { return "kits" }

// CatalogRepo implements biz.CatalogRepo with GORM.
type CatalogRepo struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewCatalogRepo creates a new catalog repository.
func NewCatalogRepo(db *gorm.DB, logger log.Logger) *CatalogRepo {
	return &CatalogRepo{
		db:     db,
		logger: log.NewHelper(logger),
	}
}

type scope = func(*gorm.DB) *gorm.DB

func byFkaID(id *int) scope {
	if id == nil {
		return nil
	}
	return func(db *gorm.DB) *gorm.DB { return db.Where("id_fka = ?", *id) }
}

func byColumn(column, value string) scope {
	if value == "" {
		return nil
	}
	return func(db *gorm.DB) *gorm.DB { return db.Where(column+" = ?", value) }
}

func byLowerName(name string) scope {
	return func(db *gorm.DB) *gorm.DB { return db.Where("LOWER(name) = LOWER(?)", name) }
}

// upsert updates the first row matched by the lookups, in order, or creates
// row. Associations are left untouched. A concurrent insert of the same key
// is resolved by retrying the lookup once.
func upsert[T any, P interface {
	*T
	identity() *Model
}](ctx context.Context, db *gorm.DB, row P, lookups ...scope) error {
	for attempt := 0; attempt < 2; attempt++ {
		var existing T
		found := false
		for _, lookup := range lookups {
			if lookup == nil {
				continue
			}
			err := db.WithContext(ctx).Scopes(lookup).First(&existing).Error
			if err == nil {
				found = true
				break
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		if found {
			current := P(&existing).identity()
			row.identity().ID = current.ID
			row.identity().CreatedAt = current.CreatedAt
			return db.WithContext(ctx).Omit(clause.Associations).Save(row).Error
		}

		row.identity().ID = 0
		err := db.WithContext(ctx).Omit(clause.Associations).Create(row).Error
		if err == nil || !pkgerrors.IsDuplicateKeyError(err) {
			return err
		}
	}
	return fmt.Errorf("upsert %T: concurrent writes", row)
}

// UpsertClub matches on the upstream ID, then the slug.
func (r *CatalogRepo) UpsertClub(ctx context.Context, club *Club) error {
	if err := upsert(ctx, r.db, club, byFkaID(club.FkaID), byColumn("slug", club.Slug)); err != nil {
		return fmt.Errorf("failed to upsert club %q: %w", club.Slug, err)
	}
	return nil
}

// UpsertSeason matches on the year label.
func (r *CatalogRepo) UpsertSeason(ctx context.Context, season *Season) error {
	if err := upsert(ctx, r.db, season, byColumn("year", season.Year)); err != nil {
		return fmt.Errorf("failed to upsert season %q: %w", season.Year, err)
	}
	return nil
}

func (r *CatalogRepo) UpsertBrand(ctx context.Context, brand *Brand) error {
	if err := upsert(ctx, r.db, brand, byFkaID(brand.FkaID), byColumn("slug", brand.Slug)); err != nil {
		return fmt.Errorf("failed to upsert brand %q: %w", brand.Slug, err)
	}
	return nil
}

func (r *CatalogRepo) UpsertCompetition(ctx context.Context, competition *Competition) error {
	if err := upsert(ctx, r.db, competition, byFkaID(competition.FkaID), byColumn("slug", competition.Slug)); err != nil {
		return fmt.Errorf("failed to upsert competition %q: %w", competition.Slug, err)
	}
	return nil
}

// UpsertKitType matches the name exactly, then case-insensitively.
func (r *CatalogRepo) UpsertKitType(ctx context.Context, kitType *KitType) error {
	if err := upsert(ctx, r.db, kitType, byColumn("name", kitType.Name), byLowerName(kitType.Name)); err != nil {
		return fmt.Errorf("failed to upsert kit type %q: %w", kitType.Name, err)
	}
	return nil
}

// UpsertKit stores the kit and replaces its competitions. Referenced rows
// must already exist.
func (r *CatalogRepo) UpsertKit(ctx context.Context, kit *Kit) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsert(ctx, tx, kit, byFkaID(kit.FkaID), byColumn("slug", kit.Slug)); err != nil {
			return err
		}
		if len(kit.Competitions) == 0 {
			return tx.Model(kit).Association("Competitions").Clear()
		}
		return tx.Model(kit).Association("Competitions").Replace(kit.Competitions)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert kit %q: %w", kit.Slug, err)
	}

	r.logger.Debugw("msg", "kit stored", "kit_id", kit.ID, "slug", kit.Slug)
	return nil
}

// GetKitByFkaID returns a stored kit with its references.
func (r *CatalogRepo) GetKitByFkaID(ctx context.Context, fkaID int) (*Kit, error) {
	var kit Kit
	err := r.preloadKit(r.db.WithContext(ctx)).Where("id_fka = ?", fkaID).First(&kit).Error
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return nil, fmt.Errorf("kit not found: %d: %w", fkaID, err)
		}
		return nil, fmt.Errorf("failed to get kit: %w", err)
	}
	return &kit, nil
}

// ListKits returns a page of stored kits, newest first, and the total count.
func (r *CatalogRepo) ListKits(ctx context.Context, offset, limit int) ([]*Kit, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&Kit{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count kits: %w", err)
	}

	kits := make([]*Kit, 0, limit)
	err := r.preloadKit(r.db.WithContext(ctx)).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&kits).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list kits: %w", err)
	}
	return kits, total, nil
}

func (r *CatalogRepo) preloadKit(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Team").
		Preload("Season").
		Preload("Type").
		Preload("Brand").
		Preload("Competitions")
}
