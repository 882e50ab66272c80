// Package memory holds in-process repository implementations used when no
// backing database is configured.
package memory

import (
	"context"
	"sync"

	"github.com/fieldops/job-tracker/internal/core/domain"
)

// AuthRepository stores credentials in memory. Loopback/demo use only.
type AuthRepository struct {
	mu      sync.Mutex
	byEmail map[string]*domain.Credential
}

func NewAuthRepository() *AuthRepository {
	return &AuthRepository{byEmail: make(map[string]*domain.Credential)}
}

func (r *AuthRepository) Create(_ context.Context, cred *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[cred.Email]; ok {
		return domain.ErrUserExists
	}
	c := *cred
	r.byEmail[cred.Email] = &c
	return nil
}

func (r *AuthRepository) FindByEmail(_ context.Context, email string) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	c := *cred
	return &c, nil
}
