//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"wanderlust/internal/domain"
	mysqlrepo "wanderlust/internal/storage/mysql"
)

func pfloat(f float64) *float64 { return &f }

func startMySQL(t *testing.T) *mysqlrepo.Repo {
	t.Helper()
	// Start isolated MySQL; let Docker pick a free host port.
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=wanderlust",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/wanderlust?parseTime=true&charset=utf8mb4,utf8&loc=UTC",
		resource.GetPort("3306/tcp"))

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := mysqlrepo.New(db)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// second run must be a no-op
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate again: %v", err)
	}
	return repo
}

func TestRepo_MySQL_CascadeAndUniqueEmail(t *testing.T) {
	repo := startMySQL(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	l, err := repo.CreateListing(ctx, domain.NewListing(domain.NormalizeListing(domain.ListingInput{
		Title: "Cabin", Description: "Cozy", Price: pfloat(100), Location: "Hills",
	})))
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}

	var ids []string
	for i, c := range []string{"Great", "Fine"} {
		rv, err := repo.CreateReview(ctx, domain.NewReview(domain.ReviewInput{Rating: 5 - i, Comment: c}, l.ID, time.Now()))
		if err != nil {
			t.Fatalf("CreateReview: %v", err)
		}
		if err := repo.AttachReview(ctx, l.ID, rv.ID); err != nil {
			t.Fatalf("AttachReview: %v", err)
		}
		ids = append(ids, rv.ID)
	}

	d, err := repo.FindListingByID(ctx, l.ID)
	if err != nil {
		t.Fatalf("FindListingByID: %v", err)
	}
	if d.Price != 100 || len(d.Reviews) != 2 || len(d.ReviewDocs) != 2 || d.ReviewDocs[0].Comment != "Great" {
		t.Fatalf("unexpected detail: %+v", d)
	}

	ls, err := repo.ListListings(ctx)
	if err != nil || len(ls) != 1 || len(ls[0].Reviews) != 2 {
		t.Fatalf("ListListings: %+v, %v", ls, err)
	}

	// prices round-trip at full float64 precision
	for _, p := range []float64{99.999, 1e10, 0.1} {
		fl, err := repo.CreateListing(ctx, domain.NewListing(domain.NormalizeListing(domain.ListingInput{
			Title: "Loft", Description: "Bright", Price: pfloat(p), Location: "Downtown",
		})))
		if err != nil {
			t.Fatalf("CreateListing(price %v): %v", p, err)
		}
		got, err := repo.FindListingByID(ctx, fl.ID)
		if err != nil || got.Price != p {
			t.Fatalf("price %v came back as %v (%v)", p, got.Price, err)
		}
		if _, err := repo.DeleteListing(ctx, fl.ID); err != nil {
			t.Fatalf("DeleteListing: %v", err)
		}
	}

	// attaching the same review twice is not an email conflict
	if err := repo.AttachReview(ctx, l.ID, ids[0]); err == nil || errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("duplicate attach: %v", err)
	}

	del, err := repo.DeleteListing(ctx, l.ID)
	if err != nil || len(del.Reviews) != 2 {
		t.Fatalf("DeleteListing: %+v, %v", del, err)
	}
	// join rows cascade, reviews stay until DeleteReviews
	if _, err := repo.FindReviewByID(ctx, ids[0]); err != nil {
		t.Fatalf("review removed too early: %v", err)
	}
	if n, err := repo.DeleteReviews(ctx, del.Reviews); err != nil || n != 2 {
		t.Fatalf("DeleteReviews: %d, %v", n, err)
	}
	if _, err := repo.FindReviewByID(ctx, ids[1]); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.AttachReview(ctx, l.ID, ids[0]); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("attach to deleted listing: %v", err)
	}

	if _, err := repo.CreateUser(ctx, domain.User{Email: "a@example.com", PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := repo.CreateUser(ctx, domain.User{Email: "a@example.com", PasswordHash: "h"}); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if u, err := repo.FindUserByEmail(ctx, "a@example.com"); err != nil || u.PasswordHash != "h" {
		t.Fatalf("FindUserByEmail: %+v, %v", u, err)
	}
}
