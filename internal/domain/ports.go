package domain

import "context"

type ListingRepository interface {
	CreateListing(ctx context.Context, l Listing) (Listing, error)
	ListListings(ctx context.Context) ([]Listing, error)
	FindListingByID(ctx context.Context, id string) (ListingDetail, error)
	UpdateListing(ctx context.Context, id string, in ListingInput) (Listing, error)
	// DeleteListing returns the record as it was before deletion.
	DeleteListing(ctx context.Context, id string) (Listing, error)
}

type ReviewRepository interface {
	CreateReview(ctx context.Context, r Review) (Review, error)
	// AttachReview appends reviewID to the listing's review list.
	AttachReview(ctx context.Context, listingID, reviewID string) error
	FindReviewByID(ctx context.Context, id string) (Review, error)
	DeleteReviews(ctx context.Context, ids []string) (int64, error)
}

type UserRepository interface {
	// CreateUser must reject a duplicate email with ErrDuplicateEmail.
	CreateUser(ctx context.Context, u User) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
}

type Store interface {
	ListingRepository
	ReviewRepository
	UserRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil only when password matches hash.
	Compare(hash, password string) error
}
