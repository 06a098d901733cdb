package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"wanderlust/internal/domain"
)

type SeedService struct {
	listings *ListingService
	workers  int64
}

func NewSeedService(l *ListingService, workers int) *SeedService {
	if workers <= 0 {
		workers = 1
	}
	return &SeedService{listings: l, workers: int64(workers)}
}

type SeedReport struct {
	Cleared  int
	Created  int
	Rejected int
}

// Seed optionally wipes existing listings (cascading to their reviews) and
// inserts the fixtures concurrently. Invalid fixtures are skipped and counted;
// a storage failure aborts the run.
func (s *SeedService) Seed(ctx context.Context, fixtures []map[string]any, clear bool) (SeedReport, error) {
	var rep SeedReport
	if clear {
		n, err := s.clear(ctx)
		rep.Cleared = n
		if err != nil {
			return rep, err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(s.workers)
	var (
		wg       sync.WaitGroup
		created  atomic.Int64
		rejected atomic.Int64
		errOnce  sync.Once
		firstErr error
	)

	for i, raw := range fixtures {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break // canceled by a failing worker or the caller
		}
		wg.Add(1)
		go func(idx int, raw map[string]any) {
			defer wg.Done()
			defer sem.Release(1)

			l, err := s.listings.Create(ctx, mapListing(raw))
			var verr *domain.ValidationError
			switch {
			case errors.As(err, &verr):
				rejected.Add(1)
				log.Warn().Int("fixture", idx).Err(err).Msg("fixture rejected")
			case err != nil:
				errOnce.Do(func() {
					firstErr = fmt.Errorf("seed fixture %d: %w", idx, err)
					cancel()
				})
			default:
				created.Add(1)
				log.Debug().Int("fixture", idx).Str("id", l.ID).Msg("fixture inserted")
			}
		}(i, raw)
	}
	wg.Wait()

	rep.Created = int(created.Load())
	rep.Rejected = int(rejected.Load())
	if firstErr != nil {
		return rep, firstErr
	}
	return rep, ctx.Err()
}

func (s *SeedService) clear(ctx context.Context) (int, error) {
	existing, err := s.listings.repo.ListListings(ctx)
	if err != nil {
		return 0, fmt.Errorf("list existing listings: %w", err)
	}
	n := 0
	for _, l := range existing {
		res, err := s.listings.DeleteCascade(ctx, l.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return n, err
		}
		if res.CleanupErr != nil {
			return n, res.CleanupErr
		}
		n++
	}
	return n, nil
}
