package domain

import (
	"strings"
	"time"
)

// DefaultListingImage is stored when a listing is submitted without an image.
const DefaultListingImage = "https://images.unsplash.com/photo-1625505826533-5c80aca7d157?auto=format&fit=crop&w=800&q=60"

type Listing struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Image       string   `json:"image"`
	Location    string   `json:"location"`
	Reviews     []string `json:"reviews"` // review ids, in insertion order
}

// ListingDetail is a listing with its review references resolved.
type ListingDetail struct {
	Listing
	ReviewDocs []Review `json:"reviewDocs"`
}

// ListingInput is the editable part of a listing as submitted by a form.
// Price is a pointer so "missing" and "zero" stay distinguishable.
type ListingInput struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Price       *float64 `json:"price" validate:"required,finite,gte=0"`
	Image       string   `json:"image"`
	Location    string   `json:"location" validate:"required"`
}

// NormalizeListing trims text fields and fills the image default.
func NormalizeListing(in ListingInput) ListingInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.Image = strings.TrimSpace(in.Image)
	if in.Image == "" {
		in.Image = DefaultListingImage
	}
	return in
}

// NewListing builds a record from validated input.
func NewListing(in ListingInput) Listing {
	l := Listing{
		Title:       in.Title,
		Description: in.Description,
		Image:       in.Image,
		Location:    in.Location,
		Reviews:     []string{},
	}
	if in.Price != nil {
		l.Price = *in.Price
	}
	return l
}

// Apply copies the editable fields onto l, keeping id and reviews.
func (l Listing) Apply(in ListingInput) Listing {
	l.Title = in.Title
	l.Description = in.Description
	l.Image = in.Image
	l.Location = in.Location
	if in.Price != nil {
		l.Price = *in.Price
	}
	return l
}

type Review struct {
	ID        string    `json:"id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	AuthorID  string    `json:"author,omitempty"`
	ListingID string    `json:"listing,omitempty"`
}

type ReviewInput struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"required"`
}

// NewReview builds a review for listingID stamped with now (UTC).
func NewReview(in ReviewInput, listingID string, now time.Time) Review {
	return Review{
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
		CreatedAt: now.UTC(),
		ListingID: listingID,
	}
}
