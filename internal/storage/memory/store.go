// Package memory is a thread-safe in-process Store used by tests and by
// STORE_DRIVER=memory for local runs without a database.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"wanderlust/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	nextID   int64
	listings map[string]domain.Listing
	reviews  map[string]domain.Review
	users    map[string]domain.User // keyed by normalized email
	order    []string               // listing ids in creation order
}

func New() *Store {
	return &Store{
		nextID:   1,
		listings: make(map[string]domain.Listing),
		reviews:  make(map[string]domain.Review),
		users:    make(map[string]domain.User),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return strconv.FormatInt(id, 10)
}

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

// Listings -------------------------------------------------------------------

func (s *Store) CreateListing(_ context.Context, l domain.Listing) (domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.nextIDLocked()
	l.Reviews = append([]string{}, l.Reviews...)
	s.listings[l.ID] = l
	s.order = append(s.order, l.ID)
	return cloneListing(l), nil
}

func (s *Store) ListListings(context.Context) ([]domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Listing, 0, len(s.listings))
	for _, id := range s.order {
		if l, ok := s.listings[id]; ok {
			out = append(out, cloneListing(l))
		}
	}
	return out, nil
}

func (s *Store) FindListingByID(_ context.Context, id string) (domain.ListingDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	if !ok {
		return domain.ListingDetail{}, domain.ErrNotFound
	}
	d := domain.ListingDetail{Listing: cloneListing(l), ReviewDocs: []domain.Review{}}
	for _, rid := range l.Reviews {
		if r, ok := s.reviews[rid]; ok {
			d.ReviewDocs = append(d.ReviewDocs, r)
		}
	}
	return d, nil
}

func (s *Store) UpdateListing(_ context.Context, id string, in domain.ListingInput) (domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	l = l.Apply(in)
	s.listings[id] = l
	return cloneListing(l), nil
}

func (s *Store) DeleteListing(_ context.Context, id string) (domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	delete(s.listings, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return cloneListing(l), nil
}

// Reviews --------------------------------------------------------------------

func (s *Store) CreateReview(_ context.Context, r domain.Review) (domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.nextIDLocked()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.reviews[r.ID] = r
	return r, nil
}

func (s *Store) AttachReview(_ context.Context, listingID, reviewID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[listingID]
	if !ok {
		return domain.ErrNotFound
	}
	l.Reviews = append(append([]string{}, l.Reviews...), reviewID)
	s.listings[listingID] = l
	return nil
}

func (s *Store) FindReviewByID(_ context.Context, id string) (domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return r, nil
}

func (s *Store) DeleteReviews(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := s.reviews[id]; ok {
			delete(s.reviews, id)
			n++
		}
	}
	return n, nil
}

// ReviewCount reports how many review records exist.
func (s *Store) ReviewCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reviews)
}

// Users ----------------------------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.Email]; exists {
		return domain.User{}, domain.ErrDuplicateEmail
	}
	u.ID = s.nextIDLocked()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.Email] = u
	return u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

// UserEmails returns the stored emails, sorted.
func (s *Store) UserEmails() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.users))
	for e := range s.users {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func cloneListing(l domain.Listing) domain.Listing {
	l.Reviews = append([]string{}, l.Reviews...)
	return l
}
