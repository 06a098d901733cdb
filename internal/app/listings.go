package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"wanderlust/internal/adapters/observability"
	"wanderlust/internal/domain"
)

const (
	indexCacheKey = "listings:index"
	cleanupBudget = 10 * time.Second
)

// ListingStore is the part of the entity store the listing service needs.
type ListingStore interface {
	domain.ListingRepository
	domain.ReviewRepository
}

type ListingService struct {
	repo     ListingStore
	cache    domain.Cache // optional
	cacheTTL time.Duration
	now      func() time.Time
	seq      atomic.Uint64
}

func NewListingService(r ListingStore, c domain.Cache, ttl time.Duration) *ListingService {
	return &ListingService{repo: r, cache: c, cacheTTL: ttl, now: time.Now}
}

// DeleteResult describes a cascade delete. CleanupErr is set when the
// listing was removed but some of its reviews may remain.
type DeleteResult struct {
	Listing        domain.Listing
	ReviewsDeleted int64
	CleanupErr     error
}

func (s *ListingService) Create(ctx context.Context, in domain.ListingInput) (domain.Listing, error) {
	in = domain.NormalizeListing(in)
	if err := domain.ValidateListing(in); err != nil {
		return domain.Listing{}, err
	}
	l, err := s.repo.CreateListing(ctx, domain.NewListing(in))
	if err != nil {
		return domain.Listing{}, fmt.Errorf("create listing: %w", err)
	}
	s.invalidate(ctx, indexCacheKey)
	return l, nil
}

func (s *ListingService) List(ctx context.Context) ([]domain.Listing, error) {
	key, cacheable := s.versioned(ctx, indexCacheKey)
	var out []domain.Listing
	if cacheable && s.cached(ctx, key, &out) {
		return out, nil
	}
	out, err := s.repo.ListListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	if cacheable {
		s.store(ctx, key, out)
	}
	return out, nil
}

// Get returns the listing with its reviews resolved.
func (s *ListingService) Get(ctx context.Context, id string) (domain.ListingDetail, error) {
	key, cacheable := s.versioned(ctx, listingKey(id))
	var d domain.ListingDetail
	if cacheable && s.cached(ctx, key, &d) {
		return d, nil
	}
	d, err := s.repo.FindListingByID(ctx, id)
	if err != nil {
		return domain.ListingDetail{}, fmt.Errorf("find listing %s: %w", id, err)
	}
	if cacheable {
		s.store(ctx, key, d)
	}
	return d, nil
}

func (s *ListingService) Update(ctx context.Context, id string, in domain.ListingInput) (domain.Listing, error) {
	in = domain.NormalizeListing(in)
	if err := domain.ValidateListing(in); err != nil {
		return domain.Listing{}, err
	}
	l, err := s.repo.UpdateListing(ctx, id, in)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("update listing %s: %w", id, err)
	}
	s.invalidate(ctx, indexCacheKey, listingKey(id))
	return l, nil
}

// AddReview stores a review and appends it to the listing's review list.
func (s *ListingService) AddReview(ctx context.Context, listingID string, in domain.ReviewInput) (domain.Review, error) {
	if err := domain.ValidateReview(in); err != nil {
		return domain.Review{}, err
	}
	if _, err := s.repo.FindListingByID(ctx, listingID); err != nil {
		return domain.Review{}, fmt.Errorf("find listing %s: %w", listingID, err)
	}

	rv, err := s.repo.CreateReview(ctx, domain.NewReview(in, listingID, s.now()))
	if err != nil {
		return domain.Review{}, fmt.Errorf("create review: %w", err)
	}
	if err := s.repo.AttachReview(ctx, listingID, rv.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// listing deleted between the check and the attach
			if _, derr := s.repo.DeleteReviews(detached(ctx), []string{rv.ID}); derr != nil {
				log.Warn().Err(derr).Str("review", rv.ID).Msg("could not remove unattached review")
			}
		}
		return domain.Review{}, fmt.Errorf("attach review to %s: %w", listingID, err)
	}
	s.invalidate(ctx, listingKey(listingID))
	return rv, nil
}

// DeleteCascade deletes the listing, then every review it referenced.
// The two steps are not atomic: a failed cleanup leaves the listing deleted
// and is reported through DeleteResult.CleanupErr, not as an error.
func (s *ListingService) DeleteCascade(ctx context.Context, id string) (DeleteResult, error) {
	l, err := s.repo.DeleteListing(ctx, id)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete listing %s: %w", id, err)
	}
	s.invalidate(ctx, indexCacheKey, listingKey(id))

	res := DeleteResult{Listing: l}
	if len(l.Reviews) == 0 {
		return res, nil
	}

	cctx, cancel := context.WithTimeout(detached(ctx), cleanupBudget)
	defer cancel()
	n, err := s.repo.DeleteReviews(cctx, l.Reviews)
	if err != nil {
		observability.ObserveCascade(0, true)
		log.Warn().Err(err).
			Str("listing", id).
			Strs("reviews", l.Reviews).
			Msg("listing deleted but review cleanup failed")
		res.CleanupErr = fmt.Errorf("delete reviews of listing %s: %w", id, err)
		return res, nil
	}
	observability.ObserveCascade(n, false)
	res.ReviewsDeleted = n
	return res, nil
}

func listingKey(id string) string { return "listing:" + id }

// detached keeps ctx values but drops its cancellation, so follow-up writes
// are not abandoned when the client goes away mid-request.
func detached(ctx context.Context) context.Context { return context.WithoutCancel(ctx) }

func (s *ListingService) cached(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache get failed")
		return false
	}
	return ok
}

func (s *ListingService) store(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds())); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// Cached entries live under "<base>@<generation>". Readers resolve the
// generation before touching the store and writers replace it after
// mutating, so a read racing a write can only fill a generation nobody
// resolves any more.
func genKey(base string) string { return base + ":gen" }

// versioned returns the current entry key for base. It reports false when the
// generation cannot be read; the caller then bypasses the cache.
func (s *ListingService) versioned(ctx context.Context, base string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	gen := "0"
	if _, err := s.cache.Get(ctx, genKey(base), &gen); err != nil {
		log.Debug().Err(err).Str("key", base).Msg("cache generation lookup failed")
		return "", false
	}
	return base + "@" + gen, true
}

// invalidate moves each base to a fresh generation. The generation outlives
// any entry filled under the previous one.
func (s *ListingService) invalidate(ctx context.Context, bases ...string) {
	if s.cache == nil {
		return
	}
	ttl := 0
	if s.cacheTTL > 0 {
		ttl = int((2*s.cacheTTL + time.Minute).Seconds())
	}
	gen := strconv.FormatInt(s.now().UnixNano(), 36) + "." + strconv.FormatUint(s.seq.Add(1), 36)
	for _, b := range bases {
		if err := s.cache.Set(detached(ctx), genKey(b), gen, ttl); err != nil {
			log.Warn().Err(err).Str("key", b).Msg("cache invalidation failed")
		}
	}
}
