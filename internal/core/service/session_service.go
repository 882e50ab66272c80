package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldops/job-tracker/internal/core/domain"
	"github.com/fieldops/job-tracker/internal/core/ports"
)

// SessionService implements registration, login and the current-identity
// context. A successful login yields an opaque signed token and pins the
// session's user id, which stamps ownership on every subsequent write.
type SessionService struct {
	repo       ports.AuthRepository
	store      ports.EntityStore
	propagator ports.Propagator
	jwtSecret  string
	tokenTTL   time.Duration
	log        zerolog.Logger

	mu            sync.Mutex
	currentUserID string
}

func NewSessionService(repo ports.AuthRepository, store ports.EntityStore, propagator ports.Propagator, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *SessionService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &SessionService{
		repo:       repo,
		store:      store,
		propagator: propagator,
		jwtSecret:  jwtSecret,
		tokenTTL:   tokenTTL,
		log:        log,
	}
}

// Register creates a credential and the matching profile row. The profile
// id equals the identity id from then on.
func (s *SessionService) Register(ctx context.Context, email, password, displayName string) (*domain.UserProfile, error) {
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	cred := &domain.Credential{
		UserID:       uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, cred); err != nil {
		return nil, err
	}

	profile := &domain.UserProfile{
		ID:          cred.UserID,
		DisplayName: displayName,
		Email:       email,
	}
	if err := s.store.PutUser(ctx, profile, false); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	s.propagator.Enqueue(ports.OutboundMutation{
		MutationID: uuid.NewString(),
		Entity:     domain.EntityUser,
		User:       profile,
	})

	s.log.Info().Str("user_id", cred.UserID).Msg("user registered")
	return profile.Clone(), nil
}

// Login verifies credentials, returns a signed token and pins the session's
// current user.
func (s *SessionService) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", domain.ErrInvalidCredentials
	}

	cred, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return "", domain.ErrInvalidCredentials
	}

	token, err := s.generateToken(cred)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.currentUserID = cred.UserID
	s.mu.Unlock()

	s.log.Info().Str("user_id", cred.UserID).Msg("user logged in")
	return token, nil
}

// Logout clears the current identity.
func (s *SessionService) Logout() {
	s.mu.Lock()
	s.currentUserID = ""
	s.mu.Unlock()
}

// CurrentUserID returns the authenticated user id, or false when no user
// is logged in.
func (s *SessionService) CurrentUserID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentUserID, s.currentUserID != ""
}

// ParseToken validates a token and returns the user id it carries.
func (s *SessionService) ParseToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !tkn.Valid {
		return "", domain.ErrInvalidCredentials
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", domain.ErrInvalidCredentials
	}
	return sub, nil
}

func (s *SessionService) generateToken(cred *domain.Credential) (string, error) {
	claims := jwt.MapClaims{
		"sub":   cred.UserID,
		"email": cred.Email,
		"exp":   time.Now().Add(s.tokenTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
