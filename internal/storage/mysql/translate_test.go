package mysql

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"

	"wanderlust/internal/domain"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, domain.ErrNotFound},
		{"duplicate email", &gomysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@example.com' for key 'users.uq_users_email'"}, domain.ErrDuplicateEmail},
		{"missing parent", &gomysql.MySQLError{Number: 1452, Message: "foreign key"}, domain.ErrNotFound},
		{"bad conn", driver.ErrBadConn, domain.ErrStorageUnavailable},
		{"invalid conn", gomysql.ErrInvalidConn, domain.ErrStorageUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := translate("op", tt.in); !errors.Is(got, tt.want) {
				t.Fatalf("translate(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
	if translate("op", nil) != nil {
		t.Fatalf("nil must stay nil")
	}
	other := &gomysql.MySQLError{Number: 1146, Message: "no such table"}
	if got := translate("op", other); errors.Is(got, domain.ErrStorageUnavailable) || !errors.As(got, new(*gomysql.MySQLError)) {
		t.Fatalf("unexpected mapping for %v: %v", other, got)
	}
	// a duplicate on any other unique key is not an email conflict
	attach := &gomysql.MySQLError{Number: 1062, Message: "Duplicate entry 'l1-r1' for key 'listing_reviews.uq_listing_review'"}
	if got := translate("attach_review", attach); errors.Is(got, domain.ErrDuplicateEmail) || !errors.As(got, new(*gomysql.MySQLError)) {
		t.Fatalf("unexpected mapping for %v: %v", attach, got)
	}
}
