package ports

import (
	"context"

	"github.com/fieldops/job-tracker/internal/core/domain"
)

// AuthRepository defines the interface for credential persistence.
type AuthRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Credential, error)
	Create(ctx context.Context, cred *domain.Credential) error
}
