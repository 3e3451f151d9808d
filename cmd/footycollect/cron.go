package main

import (
	"context"
	"time"

	"FootyCollect/internal/biz"
	"FootyCollect/internal/conf"
	pkglog "FootyCollect/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// scrapeRunTimeout bounds one scheduled run over all configured users.
const scrapeRunTimeout = 30 * time.Minute

// collectionScheduler asks the upstream to rescrape the configured user
// collections on a cron schedule. It implements transport.Server so the
// application starts and stops it with the HTTP server.
type collectionScheduler struct {
	cron   *cron.Cron
	job    *conf.CollectionScrape
	sync   *biz.CollectionSyncUsecase
	logger *pkglog.LogHelper
}

func newScheduler(jobs *conf.Jobs, sync *biz.CollectionSyncUsecase, logger log.Logger) (*collectionScheduler, error) {
	s := &collectionScheduler{
		cron:   cron.New(cron.WithSeconds()),
		sync:   sync,
		logger: pkglog.NewLogHelper(logger),
	}
	if jobs != nil {
		s.job = jobs.CollectionScrape
	}
	if s.job == nil || !s.job.Enabled {
		return s, nil
	}

	// seconds minutes hours dom month dow, e.g. "0 0 3 * * *" runs daily at 03:00
	if _, err := s.cron.AddFunc(s.job.Schedule, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *collectionScheduler) run() {
	s.logger.Scheduler("Collection scrape started", "users", len(s.job.UserIDs))
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), scrapeRunTimeout)
	defer cancel()

	failed := s.sync.ScrapeConfiguredUsers(ctx)
	if failed > 0 {
		s.logger.Warnw("msg", "Collection scrape finished with failures",
			"failed", failed,
			"users", len(s.job.UserIDs),
			"type", "scheduler")
		return
	}
	s.logger.Scheduler("Collection scrape completed",
		"users", len(s.job.UserIDs),
		"duration_ms", time.Since(start).Milliseconds())
}

// Start implements transport.Server.
func (s *collectionScheduler) Start(context.Context) error {
	if s.job == nil || !s.job.Enabled {
		s.logger.Scheduler("Collection scrape disabled")
		return nil
	}
	s.cron.Start()
	s.logger.Scheduler("Collection scrape scheduled", "schedule", s.job.Schedule, "users", s.job.UserIDs)
	return nil
}

// Stop implements transport.Server. It waits for a running scrape until ctx
// is done.
func (s *collectionScheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
