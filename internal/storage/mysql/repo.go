package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"wanderlust/internal/adapters/observability"
	"wanderlust/internal/domain"
)

const driverName = "mysql"

// MySQL server error numbers.
const (
	errDupEntry        = 1062
	errNoReferencedRow = 1452
)

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// Open connects with dsn and verifies the server answers.
func Open(ctx context.Context, dsn string) (*Repo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, domain.Unavailable("mysql ping", err)
	}
	return New(db), nil
}

// Migrate creates the tables when they do not exist yet.
func (r *Repo) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *Repo) Ping(ctx context.Context) (err error) {
	defer observe("ping", time.Now(), &err)
	return r.db.PingContext(ctx)
}

func (r *Repo) Close(context.Context) error { return r.db.Close() }

// ---- listings ----

func (r *Repo) CreateListing(ctx context.Context, l domain.Listing) (_ domain.Listing, err error) {
	defer observe("create_listing", time.Now(), &err)
	l.ID = uuid.NewString()
	if _, err := r.db.ExecContext(ctx, insertListingSQL,
		l.ID, l.Title, l.Description, l.Price, l.Image, l.Location,
	); err != nil {
		return domain.Listing{}, err
	}
	l.Reviews = []string{}
	return l, nil
}

func (r *Repo) ListListings(ctx context.Context) (_ []domain.Listing, err error) {
	defer observe("list_listings", time.Now(), &err)
	rows, err := r.db.QueryContext(ctx, selectListingsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Listing
	byID := map[string]int{}
	for rows.Next() {
		var l domain.Listing
		if err := rows.Scan(&l.ID, &l.Title, &l.Description, &l.Price, &l.Image, &l.Location); err != nil {
			return nil, err
		}
		l.Reviews = []string{}
		byID[l.ID] = len(out)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return []domain.Listing{}, nil
	}

	refs, err := r.db.QueryContext(ctx, `SELECT listing_id, review_id FROM listing_reviews ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer refs.Close()
	for refs.Next() {
		var lid, rid string
		if err := refs.Scan(&lid, &rid); err != nil {
			return nil, err
		}
		if i, ok := byID[lid]; ok {
			out[i].Reviews = append(out[i].Reviews, rid)
		}
	}
	return out, refs.Err()
}

func (r *Repo) FindListingByID(ctx context.Context, id string) (_ domain.ListingDetail, err error) {
	defer observe("find_listing", time.Now(), &err)
	var d domain.ListingDetail
	if err := r.db.QueryRowContext(ctx, selectListingSQL, id).
		Scan(&d.ID, &d.Title, &d.Description, &d.Price, &d.Image, &d.Location); err != nil {
		return domain.ListingDetail{}, err
	}
	if d.Reviews, err = reviewIDs(ctx, r.db, id); err != nil {
		return domain.ListingDetail{}, err
	}

	rows, err := r.db.QueryContext(ctx, selectListingReviewsSQL, id)
	if err != nil {
		return domain.ListingDetail{}, err
	}
	defer rows.Close()
	d.ReviewDocs = []domain.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return domain.ListingDetail{}, err
		}
		d.ReviewDocs = append(d.ReviewDocs, rv)
	}
	return d, rows.Err()
}

func (r *Repo) UpdateListing(ctx context.Context, id string, in domain.ListingInput) (_ domain.Listing, err error) {
	defer observe("update_listing", time.Now(), &err)
	cur, err := r.FindListingByID(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	l := cur.Listing.Apply(in)
	if _, err := r.db.ExecContext(ctx, updateListingSQL,
		l.Title, l.Description, l.Price, l.Image, l.Location, id,
	); err != nil {
		return domain.Listing{}, err
	}
	return l, nil
}

// DeleteListing removes the listing and its join rows in one transaction and
// returns the review ids it referenced. The reviews themselves stay.
func (r *Repo) DeleteListing(ctx context.Context, id string) (_ domain.Listing, err error) {
	defer observe("delete_listing", time.Now(), &err)
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Listing{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var l domain.Listing
	if err = tx.QueryRowContext(ctx, selectListingForUpdateSQL, id).
		Scan(&l.ID, &l.Title, &l.Description, &l.Price, &l.Image, &l.Location); err != nil {
		return domain.Listing{}, err
	}
	if l.Reviews, err = reviewIDs(ctx, tx, id); err != nil {
		return domain.Listing{}, err
	}
	if _, err = tx.ExecContext(ctx, deleteListingSQL, id); err != nil {
		return domain.Listing{}, err
	}
	if err = tx.Commit(); err != nil {
		return domain.Listing{}, err
	}
	return l, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func reviewIDs(ctx context.Context, q querier, listingID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, selectReviewIDsSQL, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ---- reviews ----

type rowScanner interface{ Scan(dest ...any) error }

func scanReview(s rowScanner) (domain.Review, error) {
	var (
		rv              domain.Review
		author, listing sql.NullString
	)
	if err := s.Scan(&rv.ID, &rv.Rating, &rv.Comment, &rv.CreatedAt, &author, &listing); err != nil {
		return domain.Review{}, err
	}
	rv.CreatedAt = rv.CreatedAt.UTC()
	rv.AuthorID = author.String
	rv.ListingID = listing.String
	return rv, nil
}

func (r *Repo) CreateReview(ctx context.Context, rv domain.Review) (_ domain.Review, err error) {
	defer observe("create_review", time.Now(), &err)
	rv.ID = uuid.NewString()
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now().UTC()
	}
	// DATETIME(3) keeps milliseconds
	rv.CreatedAt = rv.CreatedAt.Truncate(time.Millisecond)
	if _, err := r.db.ExecContext(ctx, insertReviewSQL,
		rv.ID, rv.Rating, rv.Comment, rv.CreatedAt, nullable(rv.AuthorID), nullable(rv.ListingID),
	); err != nil {
		return domain.Review{}, err
	}
	return rv, nil
}

func (r *Repo) AttachReview(ctx context.Context, listingID, reviewID string) (err error) {
	defer observe("attach_review", time.Now(), &err)
	_, err = r.db.ExecContext(ctx, attachReviewSQL, listingID, reviewID)
	return err
}

func (r *Repo) FindReviewByID(ctx context.Context, id string) (_ domain.Review, err error) {
	defer observe("find_review", time.Now(), &err)
	return scanReview(r.db.QueryRowContext(ctx, selectReviewSQL, id))
}

func (r *Repo) DeleteReviews(ctx context.Context, ids []string) (_ int64, err error) {
	defer observe("delete_reviews", time.Now(), &err)
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := "DELETE FROM reviews WHERE id IN (" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")"
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---- users ----

func (r *Repo) CreateUser(ctx context.Context, u domain.User) (_ domain.User, err error) {
	defer observe("create_user", time.Now(), &err)
	u.ID = uuid.NewString()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.CreatedAt = u.CreatedAt.Truncate(time.Millisecond)
	if _, err := r.db.ExecContext(ctx, insertUserSQL, u.ID, u.Email, u.PasswordHash, u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (r *Repo) FindUserByEmail(ctx context.Context, email string) (_ domain.User, err error) {
	defer observe("find_user", time.Now(), &err)
	var u domain.User
	if err := r.db.QueryRowContext(ctx, selectUserByEmailSQL, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// ---- errors & metrics ----

func observe(op string, start time.Time, errp *error) {
	*errp = translate(op, *errp)
	observability.ObserveStore(driverName, op, *errp, time.Since(start))
}

func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrDuplicateEmail) ||
		errors.Is(err, domain.ErrStorageUnavailable) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var me *gomysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errDupEntry:
			if strings.Contains(me.Message, usersEmailKey) {
				return domain.ErrDuplicateEmail
			}
		case errNoReferencedRow:
			return domain.ErrNotFound
		}
		return fmt.Errorf("mysql %s: %w", op, err)
	}
	var ne net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, gomysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &ne) {
		return domain.Unavailable("mysql "+op, err)
	}
	return fmt.Errorf("mysql %s: %w", op, err)
}
