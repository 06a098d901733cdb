package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"wanderlust/internal/domain"
)

type AccountService struct {
	users  domain.UserRepository
	hasher domain.PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

func NewAccountService(u domain.UserRepository, h domain.PasswordHasher) *AccountService {
	return &AccountService{users: u, hasher: h}
}

// Signup creates a user keyed by the normalized email. Both the pre-check
// and a store-side uniqueness violation surface as ErrDuplicateEmail.
func (s *AccountService) Signup(ctx context.Context, email, password string) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	if err := domain.ValidateSignup(domain.SignupInput{Email: email, Password: password}); err != nil {
		return domain.User{}, err
	}

	_, err := s.users.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		return domain.User{}, domain.ErrDuplicateEmail
	case !errors.Is(err, domain.ErrNotFound):
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.CreateUser(ctx, domain.User{Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return domain.User{}, domain.ErrDuplicateEmail
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login returns ErrInvalidCredentials for an unknown email and for a wrong
// password alike.
func (s *AccountService) Login(ctx context.Context, email, password string) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	u, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// burn the same hashing cost as a real comparison
			_ = s.hasher.Compare(s.dummy(), password)
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return u, nil
}

func (s *AccountService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("wanderlust-dummy-password")
	})
	return s.dummyHash
}
