package mysql

// schema is applied statement by statement by Migrate.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS listings (
  id          CHAR(36)      NOT NULL PRIMARY KEY,
  title       VARCHAR(255)  NOT NULL,
  description TEXT          NOT NULL,
  price       DOUBLE        NOT NULL,
  image       VARCHAR(1024) NOT NULL,
  location    VARCHAR(255)  NOT NULL,
  created_at  TIMESTAMP     NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at  TIMESTAMP     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// No foreign key to listings here: only listing_reviews rows cascade.
	`CREATE TABLE IF NOT EXISTS reviews (
  id         CHAR(36)  NOT NULL PRIMARY KEY,
  rating     TINYINT   NOT NULL,
  ` + "`comment`" + `  TEXT      NOT NULL,
  created_at DATETIME(3) NOT NULL,
  author_id  CHAR(36)  NULL,
  listing_id CHAR(36)  NULL,
  KEY idx_reviews_listing (listing_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS listing_reviews (
  listing_id CHAR(36) NOT NULL,
  review_id  CHAR(36) NOT NULL,
  seq        BIGINT   NOT NULL AUTO_INCREMENT,
  PRIMARY KEY (seq),
  UNIQUE KEY uq_listing_review (listing_id, review_id),
  CONSTRAINT fk_lr_listing FOREIGN KEY (listing_id) REFERENCES listings (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS users (
  id            CHAR(36)     NOT NULL PRIMARY KEY,
  email         VARCHAR(320) NOT NULL,
  password_hash VARCHAR(255) NOT NULL,
  created_at    DATETIME(3)  NOT NULL,
  UNIQUE KEY uq_users_email (email)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// usersEmailKey is the unique index a duplicate signup violates.
const usersEmailKey = "uq_users_email"

const insertListingSQL = `
INSERT INTO listings (id, title, description, price, image, location)
VALUES (?, ?, ?, ?, ?, ?)
`

const selectListingsSQL = `
SELECT id, title, description, price, image, location
FROM listings
ORDER BY created_at, id
`

const selectListingSQL = `
SELECT id, title, description, price, image, location
FROM listings
WHERE id = ?
`

// FOR UPDATE so a concurrent attach cannot slip in between read and delete.
const selectListingForUpdateSQL = selectListingSQL + "FOR UPDATE\n"

const updateListingSQL = `
UPDATE listings
SET title = ?, description = ?, price = ?, image = ?, location = ?
WHERE id = ?
`

const deleteListingSQL = `DELETE FROM listings WHERE id = ?`

const selectReviewIDsSQL = `
SELECT review_id FROM listing_reviews WHERE listing_id = ? ORDER BY seq
`

// Populated reviews in attach order; an inner join skips dangling ids.
const selectListingReviewsSQL = "\n" +
	"SELECT r.id, r.rating, r.`comment`, r.created_at, r.author_id, r.listing_id\n" +
	"FROM listing_reviews lr\n" +
	"JOIN reviews r ON r.id = lr.review_id\n" +
	"WHERE lr.listing_id = ?\n" +
	"ORDER BY lr.seq\n"

const insertReviewSQL = "\n" +
	"INSERT INTO reviews (id, rating, `comment`, created_at, author_id, listing_id)\n" +
	"VALUES (?, ?, ?, ?, ?, ?)\n"

const selectReviewSQL = "\n" +
	"SELECT id, rating, `comment`, created_at, author_id, listing_id\n" +
	"FROM reviews WHERE id = ?\n"

const attachReviewSQL = `
INSERT INTO listing_reviews (listing_id, review_id) VALUES (?, ?)
`

const insertUserSQL = `
INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)
`

const selectUserByEmailSQL = `
SELECT id, email, password_hash, created_at FROM users WHERE email = ?
`
