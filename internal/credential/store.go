// Package credential is the durable username -> password digest store.
//
// Register and Verify report the expected outcomes (duplicate username,
// wrong password, unknown user) as false with a nil error. A non-nil error
// always wraps common.ErrStorageUnavailable so callers never mistake a
// database outage for bad credentials.
package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/suPer8Hu/localchat/internal/auth"
	"github.com/suPer8Hu/localchat/internal/common"
	"github.com/suPer8Hu/localchat/internal/models"
)

type Store struct {
	repo   *Repo
	hasher auth.PasswordHasher
	// compared against when the username is unknown so both paths hash once
	dummyHash string
}

func NewStore(repo *Repo, hasher auth.PasswordHasher) (*Store, error) {
	if hasher == nil {
		hasher = auth.SHA256Hasher{}
	}
	dummy, err := hasher.Hash("localchat-unknown-user")
	if err != nil {
		return nil, err
	}
	return &Store{repo: repo, hasher: hasher, dummyHash: dummy}, nil
}

// Register creates the credential. It returns false when the username is
// already registered; the stored digest is left unchanged.
func (s *Store) Register(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, common.ErrEmptyCredentials
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.repo.Insert(ctx, &models.Credential{
		Username:     username,
		PasswordHash: hash,
	})
	if err != nil {
		return false, storageErr(err)
	}
	return created, nil
}

// Verify reports whether username is registered with password.
func (s *Store) Verify(ctx context.Context, username, password string) (bool, error) {
	c, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			_ = s.hasher.Compare(s.dummyHash, password)
			return false, nil
		}
		return false, storageErr(err)
	}
	return s.hasher.Compare(c.PasswordHash, password), nil
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
}
