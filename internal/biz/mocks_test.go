package biz

import (
	"context"
	"time"

	"FootyCollect/internal/data"

	"github.com/stretchr/testify/mock"
)

// MockKitArchive is a mock implementation of KitArchive for testing.
type MockKitArchive struct {
	mock.Mock
}

func (m *MockKitArchive) list(args mock.Arguments) []interface{} {
	if args.Get(0) == nil {
		return []interface{}{}
	}
	return args.Get(0).([]interface{})
}

func (m *MockKitArchive) object(args mock.Arguments) map[string]interface{} {
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(map[string]interface{})
}

func (m *MockKitArchive) SearchClubs(ctx context.Context, query string) []interface{} {
	return m.list(m.Called(ctx, query))
}

func (m *MockKitArchive) GetClubSeasons(ctx context.Context, clubID int) []interface{} {
	return m.list(m.Called(ctx, clubID))
}

func (m *MockKitArchive) GetClubKits(ctx context.Context, clubID, seasonID int) []interface{} {
	return m.list(m.Called(ctx, clubID, seasonID))
}

func (m *MockKitArchive) GetKitDetails(ctx context.Context, kitID int) map[string]interface{} {
	return m.object(m.Called(ctx, kitID))
}

func (m *MockKitArchive) SearchKits(ctx context.Context, query string) []interface{} {
	return m.list(m.Called(ctx, query))
}

func (m *MockKitArchive) SearchBrands(ctx context.Context, query string) []interface{} {
	return m.list(m.Called(ctx, query))
}

func (m *MockKitArchive) SearchCompetitions(ctx context.Context, query string) []interface{} {
	return m.list(m.Called(ctx, query))
}

func (m *MockKitArchive) GetKitsBulk(ctx context.Context, slugs []string) []interface{} {
	return m.list(m.Called(ctx, slugs))
}

func (m *MockKitArchive) GetUserCollection(ctx context.Context, userID, page, pageSize int, useCache bool) map[string]interface{} {
	return m.object(m.Called(ctx, userID, page, pageSize, useCache))
}

func (m *MockKitArchive) ScrapeUserCollection(ctx context.Context, userID int) (map[string]interface{}, error) {
	args := m.Called(ctx, userID)
	return m.object(args), args.Error(1)
}

// MockCatalogRepo is a mock implementation of CatalogRepo for testing.
// Upserts assign increasing IDs like the database would.
type MockCatalogRepo struct {
	mock.Mock
	nextID uint
}

func (m *MockCatalogRepo) id() uint {
	m.nextID++
	return m.nextID
}

func (m *MockCatalogRepo) UpsertClub(ctx context.Context, club *data.Club) error {
	club.ID = m.id()
	return m.Called(ctx, club).Error(0)
}

func (m *MockCatalogRepo) UpsertSeason(ctx context.Context, season *data.Season) error {
	season.ID = m.id()
	return m.Called(ctx, season).Error(0)
}

func (m *MockCatalogRepo) UpsertBrand(ctx context.Context, brand *data.Brand) error {
	brand.ID = m.id()
	return m.Called(ctx, brand).Error(0)
}

func (m *MockCatalogRepo) UpsertCompetition(ctx context.Context, competition *data.Competition) error {
	competition.ID = m.id()
	return m.Called(ctx, competition).Error(0)
}

func (m *MockCatalogRepo) UpsertKitType(ctx context.Context, kitType *data.KitType) error {
	kitType.ID = m.id()
	return m.Called(ctx, kitType).Error(0)
}

func (m *MockCatalogRepo) UpsertKit(ctx context.Context, kit *data.Kit) error {
	kit.ID = m.id()
	return m.Called(ctx, kit).Error(0)
}

func (m *MockCatalogRepo) GetKitByFkaID(ctx context.Context, fkaID int) (*data.Kit, error) {
	args := m.Called(ctx, fkaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*data.Kit), args.Error(1)
}

func (m *MockCatalogRepo) ListKits(ctx context.Context, offset, limit int) ([]*data.Kit, int64, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*data.Kit), args.Get(1).(int64), args.Error(2)
}

// MockRateLimitRepo is a mock implementation of RateLimitRepo for testing.
type MockRateLimitRepo struct {
	mock.Mock
}

func (m *MockRateLimitRepo) Hit(ctx context.Context, client string, window time.Duration) (int64, time.Duration, error) {
	args := m.Called(ctx, client, window)
	return args.Get(0).(int64), args.Get(1).(time.Duration), args.Error(2)
}
