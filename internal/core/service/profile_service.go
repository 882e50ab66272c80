package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldops/job-tracker/internal/core/domain"
	"github.com/fieldops/job-tracker/internal/core/ports"
)

// ProfileInput carries the editable profile fields.
type ProfileInput struct {
	DisplayName   string `validate:"required,max=120"`
	ContactNumber string `validate:"omitempty,min=7,max=20"`
}

// ProfileService exposes the current user's profile row and the locations
// list. Profile saves are plain last-write-wins writes.
type ProfileService struct {
	store      ports.EntityStore
	session    ports.Session
	propagator ports.Propagator
	validate   *validator.Validate
	log        zerolog.Logger
}

func NewProfileService(store ports.EntityStore, session ports.Session, propagator ports.Propagator, log zerolog.Logger) *ProfileService {
	return &ProfileService{
		store:      store,
		session:    session,
		propagator: propagator,
		validate:   validator.New(),
		log:        log,
	}
}

// Profile returns the current user's profile row.
func (s *ProfileService) Profile(ctx context.Context) (*domain.UserProfile, error) {
	userID, ok := s.session.CurrentUserID()
	if !ok {
		return nil, domain.ErrNotAuthenticated
	}
	return s.store.GetUser(userID)
}

// Save updates the current user's display name and contact number.
func (s *ProfileService) Save(ctx context.Context, in ProfileInput) (*domain.UserProfile, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("profile input: %w", err)
	}

	userID, ok := s.session.CurrentUserID()
	if !ok {
		return nil, domain.ErrNotAuthenticated
	}
	profile, err := s.store.GetUser(userID)
	if err != nil {
		return nil, err
	}

	profile.DisplayName = in.DisplayName
	profile.ContactNumber = in.ContactNumber
	if err := s.store.PutUser(ctx, profile, false); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}

	s.propagator.Enqueue(ports.OutboundMutation{
		MutationID: uuid.NewString(),
		Entity:     domain.EntityUser,
		User:       profile,
	})
	s.log.Info().Str("user_id", userID).Msg("profile saved")
	return profile.Clone(), nil
}

// Locations returns all locations in creation order. The "all locations"
// choice is the absence of a filter and deliberately not a record here.
func (s *ProfileService) Locations(ctx context.Context) ([]*domain.Location, error) {
	return s.store.ListLocations()
}
