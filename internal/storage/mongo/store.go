// Package mongo persists listings, reviews and users in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mdb "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"wanderlust/internal/adapters/observability"
	"wanderlust/internal/domain"
)

const (
	driverName  = "mongo"
	defaultDB   = "wanderlust"
	listingsCol = "listings"
	reviewsCol  = "reviews"
	usersCol    = "users"
)

type Store struct {
	client   *mdb.Client
	listings *mdb.Collection
	reviews  *mdb.Collection
	users    *mdb.Collection
}

// Connect dials uri, pings the primary and binds the database named in the
// URI path (wanderlust when the path is empty).
func Connect(ctx context.Context, uri string) (*Store, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mdb.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, domain.Unavailable("mongo ping", err)
	}
	return New(client, DatabaseName(uri)), nil
}

func New(client *mdb.Client, dbName string) *Store {
	db := client.Database(dbName)
	return &Store{
		client:   client,
		listings: db.Collection(listingsCol),
		reviews:  db.Collection(reviewsCol),
		users:    db.Collection(usersCol),
	}
}

// DatabaseName extracts the database from a mongodb:// or mongodb+srv:// URI.
func DatabaseName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return defaultDB
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return defaultDB
}

// EnsureIndexes creates the unique email index. Safe to call on every start.
func (s *Store) EnsureIndexes(ctx context.Context) (err error) {
	defer s.observe("ensure_indexes", time.Now(), &err)
	_, err = s.users.Indexes().CreateOne(ctx, mdb.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	return err
}

func (s *Store) Ping(ctx context.Context) (err error) {
	defer s.observe("ping", time.Now(), &err)
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ---- documents ----

type listingDoc struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	Title       string               `bson:"title"`
	Description string               `bson:"description"`
	Price       float64              `bson:"price"`
	Image       string               `bson:"image"`
	Location    string               `bson:"location"`
	Reviews     []primitive.ObjectID `bson:"reviews"`
}

type reviewDoc struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty"`
	Rating    int                 `bson:"rating"`
	Comment   string              `bson:"comment"`
	CreatedAt time.Time           `bson:"createdAt"`
	Author    *primitive.ObjectID `bson:"author,omitempty"`
	Listing   *primitive.ObjectID `bson:"listing,omitempty"`
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d listingDoc) toDomain() domain.Listing {
	ids := make([]string, 0, len(d.Reviews))
	for _, r := range d.Reviews {
		ids = append(ids, r.Hex())
	}
	return domain.Listing{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Price:       d.Price,
		Image:       d.Image,
		Location:    d.Location,
		Reviews:     ids,
	}
}

func (d reviewDoc) toDomain() domain.Review {
	r := domain.Review{
		ID:        d.ID.Hex(),
		Rating:    d.Rating,
		Comment:   d.Comment,
		CreatedAt: d.CreatedAt.UTC(),
	}
	if d.Author != nil {
		r.AuthorID = d.Author.Hex()
	}
	if d.Listing != nil {
		r.ListingID = d.Listing.Hex()
	}
	return r
}

func (d userDoc) toDomain() domain.User {
	return domain.User{ID: d.ID.Hex(), Email: d.Email, PasswordHash: d.Password, CreatedAt: d.CreatedAt.UTC()}
}

// optionalID returns nil for ids that are not ObjectIDs.
func optionalID(hex string) *primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil
	}
	return &oid
}

// objectIDs parses hex ids, skipping malformed ones.
func objectIDs(hexes []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		if oid, err := primitive.ObjectIDFromHex(h); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

// ---- listings ----

func (s *Store) CreateListing(ctx context.Context, l domain.Listing) (_ domain.Listing, err error) {
	defer s.observe("create_listing", time.Now(), &err)
	doc := listingDoc{
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		Image:       l.Image,
		Location:    l.Location,
		Reviews:     objectIDs(l.Reviews),
	}
	res, err := s.listings.InsertOne(ctx, doc)
	if err != nil {
		return domain.Listing{}, err
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (s *Store) ListListings(ctx context.Context) (_ []domain.Listing, err error) {
	defer s.observe("list_listings", time.Now(), &err)
	cur, err := s.listings.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []listingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Listing, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (s *Store) FindListingByID(ctx context.Context, id string) (_ domain.ListingDetail, err error) {
	defer s.observe("find_listing", time.Now(), &err)
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ListingDetail{}, domain.ErrNotFound
	}
	var doc listingDoc
	if err := s.listings.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return domain.ListingDetail{}, err
	}
	d := domain.ListingDetail{Listing: doc.toDomain(), ReviewDocs: []domain.Review{}}
	if len(doc.Reviews) == 0 {
		return d, nil
	}

	cur, err := s.reviews.Find(ctx, bson.M{"_id": bson.M{"$in": doc.Reviews}})
	if err != nil {
		return domain.ListingDetail{}, err
	}
	var rdocs []reviewDoc
	if err := cur.All(ctx, &rdocs); err != nil {
		return domain.ListingDetail{}, err
	}
	byID := make(map[primitive.ObjectID]reviewDoc, len(rdocs))
	for _, r := range rdocs {
		byID[r.ID] = r
	}
	// keep the listing's order; dangling references are skipped
	for _, rid := range doc.Reviews {
		if r, ok := byID[rid]; ok {
			d.ReviewDocs = append(d.ReviewDocs, r.toDomain())
		}
	}
	return d, nil
}

func (s *Store) UpdateListing(ctx context.Context, id string, in domain.ListingInput) (_ domain.Listing, err error) {
	defer s.observe("update_listing", time.Now(), &err)
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Listing{}, domain.ErrNotFound
	}
	set := bson.M{
		"title":       in.Title,
		"description": in.Description,
		"image":       in.Image,
		"location":    in.Location,
	}
	if in.Price != nil {
		set["price"] = *in.Price
	}
	var doc listingDoc
	err = s.listings.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return domain.Listing{}, err
	}
	return doc.toDomain(), nil
}

func (s *Store) DeleteListing(ctx context.Context, id string) (_ domain.Listing, err error) {
	defer s.observe("delete_listing", time.Now(), &err)
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Listing{}, domain.ErrNotFound
	}
	var doc listingDoc
	if err := s.listings.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return domain.Listing{}, err
	}
	return doc.toDomain(), nil
}

// ---- reviews ----

func (s *Store) CreateReview(ctx context.Context, r domain.Review) (_ domain.Review, err error) {
	defer s.observe("create_review", time.Now(), &err)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	doc := reviewDoc{
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
		Author:    optionalID(r.AuthorID),
		Listing:   optionalID(r.ListingID),
	}
	res, err := s.reviews.InsertOne(ctx, doc)
	if err != nil {
		return domain.Review{}, err
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (s *Store) AttachReview(ctx context.Context, listingID, reviewID string) (err error) {
	defer s.observe("attach_review", time.Now(), &err)
	lid, err := primitive.ObjectIDFromHex(listingID)
	if err != nil {
		return domain.ErrNotFound
	}
	rid, err := primitive.ObjectIDFromHex(reviewID)
	if err != nil {
		return domain.ErrNotFound
	}
	res, err := s.listings.UpdateOne(ctx, bson.M{"_id": lid}, bson.M{"$push": bson.M{"reviews": rid}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) FindReviewByID(ctx context.Context, id string) (_ domain.Review, err error) {
	defer s.observe("find_review", time.Now(), &err)
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Review{}, domain.ErrNotFound
	}
	var doc reviewDoc
	if err := s.reviews.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return domain.Review{}, err
	}
	return doc.toDomain(), nil
}

func (s *Store) DeleteReviews(ctx context.Context, ids []string) (_ int64, err error) {
	defer s.observe("delete_reviews", time.Now(), &err)
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return 0, nil
	}
	res, err := s.reviews.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, u domain.User) (_ domain.User, err error) {
	defer s.observe("create_user", time.Now(), &err)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	doc := userDoc{Email: u.Email, Password: u.PasswordHash, CreatedAt: u.CreatedAt}
	res, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		return domain.User{}, err
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (_ domain.User, err error) {
	defer s.observe("find_user", time.Now(), &err)
	var doc userDoc
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		return domain.User{}, err
	}
	return doc.toDomain(), nil
}

// ---- errors & metrics ----

// observe translates driver errors into domain errors and records the call.
func (s *Store) observe(op string, start time.Time, errp *error) {
	*errp = translate(op, *errp)
	observability.ObserveStore(driverName, op, *errp, time.Since(start))
}

func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrDuplicateEmail),
		errors.Is(err, domain.ErrStorageUnavailable):
		return err
	case errors.Is(err, mdb.ErrNoDocuments):
		return domain.ErrNotFound
	case mdb.IsDuplicateKeyError(err):
		return domain.ErrDuplicateEmail
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("mongo %s: %w", op, err)
	case mdb.IsNetworkError(err), mdb.IsTimeout(err), errors.Is(err, mdb.ErrClientDisconnected):
		return domain.Unavailable("mongo "+op, err)
	default:
		return fmt.Errorf("mongo %s: %w", op, err)
	}
}
