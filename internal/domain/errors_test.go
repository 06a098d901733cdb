package domain_test

import (
	"errors"
	"net"
	"testing"

	"wanderlust/internal/domain"
)

func TestUnavailable_KeepsCause(t *testing.T) {
	cause := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	err := domain.Unavailable("ping", cause)

	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable in %v", err)
	}
	var op *net.OpError
	if !errors.As(err, &op) || op != cause {
		t.Fatalf("driver cause not reachable from %v", err)
	}
	if got, want := err.Error(), "ping: storage unavailable: dial tcp: connection refused"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
