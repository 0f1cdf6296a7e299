package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"kwikflow/internal/repo"
)

// EnsureAdmin creates the admin user when it does not exist yet. An existing
// user keeps its stored password.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	_, err := s.repo.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("lookup admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if _, err := s.repo.CreateUser(ctx, repo.NewUser{Username: username, PasswordHash: string(hash)}); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		return fmt.Errorf("create admin: %w", err)
	}
	s.logger.Info("admin user created", "username", username)
	return nil
}

// Authenticate checks a username and password against the stored bcrypt hash.
func (s *Service) Authenticate(ctx context.Context, username, password string) (bool, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}
