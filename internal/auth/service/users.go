package service

import (
	"context"
	"errors"

	"github.com/smallbiznis/authr/internal/auth/domain"
	"github.com/smallbiznis/authr/internal/records"
	"github.com/smallbiznis/authr/internal/storage"
	"go.uber.org/zap"
)

// resolveUser finds the local user for identity by GUID, creating it on
// first login. A concurrent first login for the same GUID loses the unique
// race and re-reads the winner's row.
func (s *Service) resolveUser(ctx context.Context, identity domain.Identity) (records.User, error) {
	existing, err := s.findUser(ctx, identity.ExternalGUID)
	if err != nil {
		return records.User{}, err
	}
	if existing != nil {
		return s.refreshUser(ctx, *existing, identity), nil
	}

	created, err := s.users.Create(ctx, &records.UserRequest{
		GUID:    &identity.ExternalGUID,
		Name:    &identity.DisplayName,
		Email:   &identity.Email,
		Picture: &identity.AvatarURL,
	})
	if err == nil {
		s.log.Info("user created", zap.Int64("user_id", created.ID), zap.String("guid", identity.ExternalGUID))
		return *created, nil
	}
	if !errors.Is(err, storage.ErrConflict) && !errors.Is(err, storage.ErrNotCreated) {
		s.log.Error("failed to create user", zap.Error(err))
		return records.User{}, err
	}

	createErr := err
	existing, err = s.findUser(ctx, identity.ExternalGUID)
	if err != nil {
		return records.User{}, err
	}
	if existing == nil {
		return records.User{}, createErr
	}
	return *existing, nil
}

func (s *Service) findUser(ctx context.Context, guid string) (*records.User, error) {
	users, err := s.users.GetQueries(ctx, []storage.Predicate{storage.Equal("guid", guid)})
	if err != nil {
		s.log.Error("user lookup failed", zap.Error(err))
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// refreshUser copies changed profile fields from the provider. Failures are
// logged and the stored row is used as-is.
func (s *Service) refreshUser(ctx context.Context, user records.User, identity domain.Identity) records.User {
	req := &records.UserRequest{ID: &user.ID}
	changed := false
	if identity.DisplayName != "" && identity.DisplayName != user.Name {
		req.Name = &identity.DisplayName
		changed = true
	}
	if identity.Email != "" && identity.Email != user.Email {
		req.Email = &identity.Email
		changed = true
	}
	if identity.AvatarURL != user.Picture {
		req.Picture = &identity.AvatarURL
		changed = true
	}
	if !changed {
		return user
	}

	updated, err := s.users.Update(ctx, req)
	if err != nil {
		s.log.Warn("failed to refresh user profile", zap.Int64("user_id", user.ID), zap.Error(err))
		return user
	}
	return *updated
}
