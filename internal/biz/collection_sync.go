package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FootyCollect/internal/conf"
	"FootyCollect/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	// DefaultCollectionWait bounds the wait for a scrape to finish.
	DefaultCollectionWait = 5 * time.Minute
	// DefaultCollectionPageSize is the page size used when paging a collection.
	DefaultCollectionPageSize = 100
	pollInterval              = time.Second
)

var (
	// ErrCollectionNotReady is returned when the upstream is still scraping
	// after the wait timeout.
	ErrCollectionNotReady = errors.New("user collection not ready")
	// ErrCollectionEmpty is returned when a finished collection has no entries.
	ErrCollectionEmpty = errors.New("user collection has no entries")
	// ErrScrapeRejected is returned when the upstream answers a scrape request
	// with an error.
	ErrScrapeRejected = errors.New("scrape request rejected")
)

// CollectionSyncUsecase triggers upstream scrapes of FootballKitArchive user
// collections and reads them back once ready.
type CollectionSyncUsecase struct {
	archive KitArchive
	userIDs []int
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
	logger  *log.Helper
}

// NewCollectionSyncUsecase creates a new collection sync use case. The
// scheduled users come from jobs.collection_scrape.
func NewCollectionSyncUsecase(archive KitArchive, jobs *conf.Jobs, logger log.Logger) *CollectionSyncUsecase {
	uc := &CollectionSyncUsecase{
		archive: archive,
		sleep:   sleepContext,
		now:     time.Now,
		logger:  log.NewHelper(logger),
	}
	if jobs != nil && jobs.CollectionScrape != nil {
		uc.userIDs = jobs.CollectionScrape.UserIDs
	}
	return uc
}

// TriggerScrape asks the upstream to scrape a user collection. A nil response
// is returned as an empty object.
func (uc *CollectionSyncUsecase) TriggerScrape(ctx context.Context, userID int) (map[string]interface{}, error) {
	resp, err := uc.archive.ScrapeUserCollection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("trigger scrape for user %d: %w", userID, err)
	}
	if resp == nil {
		return map[string]interface{}{}, nil
	}
	if _, ok := resp["error"]; ok || str(resp, "status") == "error" {
		msg := str(resp, "error")
		if msg == "" {
			msg = "unknown error"
		}
		return resp, fmt.Errorf("trigger scrape for user %d: %w: %s", userID, ErrScrapeRejected, msg)
	}

	uc.logger.Infow("msg", "scrape started", "user_id", userID, "task_id", str(resp, "task_id"))
	return resp, nil
}

// FetchCollection waits until the upstream collection is ready, then pages
// through it. Page 1 is polled uncached every second until its status is no
// longer processing or pending and it has entries.
func (uc *CollectionSyncUsecase) FetchCollection(ctx context.Context, userID int, wait time.Duration, pageSize int) (*model.UserCollection, error) {
	if wait <= 0 {
		wait = DefaultCollectionWait
	}
	if pageSize <= 0 {
		pageSize = DefaultCollectionPageSize
	}

	if err := uc.waitReady(ctx, userID, wait, pageSize); err != nil {
		return nil, err
	}

	collection := &model.UserCollection{UserID: userID, Entries: make([]map[string]interface{}, 0)}
	for page := 1; ; page++ {
		resp := uc.archive.GetUserCollection(ctx, userID, page, pageSize, false)
		if resp == nil {
			uc.logger.Warnw("msg", "collection page returned no data", "user_id", userID, "page", page)
			break
		}
		if page == 1 {
			collection.User, _ = object(resp["user"])
		}

		body, _ := object(resp["data"])
		entries := listOf(body, "entries")
		if len(entries) == 0 {
			break
		}
		collection.Entries = append(collection.Entries, entries...)
		collection.Pages = page

		totalPages := 1
		if pagination, ok := object(resp["pagination"]); ok {
			if n, ok := intValue(pagination, "total_pages"); ok {
				totalPages = n
			}
		}
		if page >= totalPages {
			break
		}
	}

	if len(collection.Entries) == 0 {
		return nil, fmt.Errorf("fetch collection for user %d: %w", userID, ErrCollectionEmpty)
	}

	uc.logger.Infow("msg", "collection fetched", "user_id", userID, "entries", len(collection.Entries), "pages", collection.Pages)
	return collection, nil
}

func (uc *CollectionSyncUsecase) waitReady(ctx context.Context, userID int, wait time.Duration, pageSize int) error {
	deadline := uc.now().Add(wait)
	for uc.now().Before(deadline) {
		resp := uc.archive.GetUserCollection(ctx, userID, 1, pageSize, false)
		if resp != nil {
			status := str(resp, "status")
			if status != "processing" && status != "pending" {
				body, _ := object(resp["data"])
				if len(listOf(body, "entries")) > 0 {
					return nil
				}
			}
		}
		if err := uc.sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("fetch collection for user %d after %s: %w", userID, wait, ErrCollectionNotReady)
}

// ScrapeConfiguredUsers triggers a scrape for every scheduled user. Failures
// are logged and do not stop the run. It returns the number of users not
// scraped.
func (uc *CollectionSyncUsecase) ScrapeConfiguredUsers(ctx context.Context) int {
	failed := 0
	for i, userID := range uc.userIDs {
		if err := ctx.Err(); err != nil {
			uc.logger.Warnw("msg", "collection scrape run interrupted", "error", err)
			return failed + len(uc.userIDs) - i
		}
		if _, err := uc.TriggerScrape(ctx, userID); err != nil {
			uc.logger.Errorw("msg", "collection scrape failed", "user_id", userID, "error", err)
			failed++
		}
	}
	uc.logger.Infow("msg", "collection scrape run finished", "users", len(uc.userIDs), "failed", failed)
	return failed
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
