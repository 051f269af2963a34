package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fraatlas/internal/middleware"
	"fraatlas/internal/models"
	"fraatlas/internal/observability"
	"fraatlas/internal/repository"
	"fraatlas/internal/storage"
	"fraatlas/internal/validation"
)

// UpdateProfileInput carries the editable profile fields. Nil fields are left
// unchanged; an empty phone or address clears the value.
type UpdateProfileInput struct {
	UserID   uint
	FullName *string
	Phone    *string
	Address  *string
}

// UploadAvatarInput is a raw avatar upload.
type UploadAvatarInput struct {
	UserID  uint
	Content []byte
}

type ProfileService struct {
	profiles repository.ProfileRepository
	store    storage.ObjectStore
	now      func() time.Time
	logger   *slog.Logger
}

func NewProfileService(profiles repository.ProfileRepository, store storage.ObjectStore) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		store:    store,
		now:      time.Now,
		logger:   middleware.Component("profile_service"),
	}
}

func (s *ProfileService) Get(ctx context.Context, userID uint) (*models.Profile, error) {
	return s.profiles.GetByUserID(ctx, userID)
}

func (s *ProfileService) Update(ctx context.Context, in UpdateProfileInput) (*models.Profile, error) {
	profile, err := s.profiles.GetByUserID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if err := validation.ValidateFullName(name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		profile.FullName = name
	}
	if in.Phone != nil {
		if err := validation.ValidatePhone(*in.Phone); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		profile.Phone = optionalString(*in.Phone)
	}
	if in.Address != nil {
		if err := validation.ValidateAddress(*in.Address); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		profile.Address = optionalString(*in.Address)
	}

	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// UploadAvatar normalizes the image to a 512px WebP square, stores it at
// profile-avatars/<userID>/avatar.webp and records its URL on the profile.
func (s *ProfileService) UploadAvatar(ctx context.Context, in UploadAvatarInput) (*models.Profile, error) {
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if len(in.Content) > maxAvatarBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", maxAvatarBytes/(1024*1024)))
	}

	profile, err := s.profiles.GetByUserID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	encoded, err := normalizeAvatar(in.Content)
	if err != nil {
		switch {
		case errors.Is(err, errUnsupportedImage):
			return nil, models.NewValidationError("Invalid image file")
		case errors.Is(err, errImageTooLarge):
			return nil, models.NewValidationError("Image dimensions are too large")
		}
		return nil, models.NewInternalError(err)
	}

	key := storage.AvatarKey(in.UserID)
	if err := s.store.Put(ctx, storage.BucketAvatars, key, "image/webp", encoded); err != nil {
		return nil, models.NewInternalError(err)
	}
	observability.DocumentsStored.WithLabelValues(storage.BucketAvatars).Inc()

	url, err := s.store.URL(ctx, storage.BucketAvatars, key)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	// The key never changes, so a version suffix busts client caches.
	if !strings.Contains(url, "?") {
		url = fmt.Sprintf("%s?v=%d", url, s.now().Unix())
	}
	profile.AvatarURL = &url

	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "avatar updated", slog.Uint64("user_id", uint64(in.UserID)), slog.Int("bytes", len(encoded)))
	return profile, nil
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
