package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"alcyxob/fitness-assessment/internal/domain"
	"alcyxob/fitness-assessment/internal/logger"
	"alcyxob/fitness-assessment/internal/repository"
	"alcyxob/fitness-assessment/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var allowedMediaTypes = map[string]domain.MediaType{
	"image/jpeg":       domain.MediaTypeImage,
	"image/jpg":        domain.MediaTypeImage,
	"image/png":        domain.MediaTypeImage,
	"image/gif":        domain.MediaTypeImage,
	"video/mp4":        domain.MediaTypeVideo,
	"video/avi":        domain.MediaTypeVideo,
	"video/mov":        domain.MediaTypeVideo,
	"video/mkv":        domain.MediaTypeVideo,
	"video/quicktime":  domain.MediaTypeVideo,
	"video/x-matroska": domain.MediaTypeVideo,
}

// MediaTypeOf classifies an upload by MIME type. ok is false for types that
// are not accepted.
func MediaTypeOf(contentType string) (domain.MediaType, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	t, ok := allowedMediaTypes[ct]
	return t, ok
}

type MediaService interface {
	UploadMedia(ctx context.Context, userID primitive.ObjectID, files []File, assessmentID *primitive.ObjectID) (*domain.Media, error)
	GetMedia(ctx context.Context, userID primitive.ObjectID) ([]domain.Media, error)
	DeleteMedia(ctx context.Context, userID, parentID, itemID primitive.ObjectID) error
}

type mediaService struct {
	userRepo    repository.UserRepository
	mediaRepo   repository.MediaRepository
	fileStorage storage.FileStorage
	opts        Options
	log         *logger.Logger
}

func NewMediaService(
	userRepo repository.UserRepository,
	mediaRepo repository.MediaRepository,
	fileStorage storage.FileStorage,
	opts Options,
	log *logger.Logger,
) MediaService {
	if opts.URLExpiry <= 0 {
		opts.URLExpiry = storage.DefaultPresignedURLExpiry
	}
	return &mediaService{
		userRepo:    userRepo,
		mediaRepo:   mediaRepo,
		fileStorage: fileStorage,
		opts:        opts,
		log:         log.With("service", "MediaService"),
	}
}

// UploadMedia stores every file and records them as one media group. Either
// all files end up referenced by the new media or none remain in storage.
func (s *mediaService) UploadMedia(ctx context.Context, userID primitive.ObjectID, files []File, assessmentID *primitive.ObjectID) (*domain.Media, error) {
	if userID == primitive.NilObjectID {
		return nil, fmt.Errorf("%w: user id required", ErrValidationFailed)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", ErrValidationFailed)
	}
	types := make([]domain.MediaType, len(files))
	for i, f := range files {
		t, ok := MediaTypeOf(f.ContentType)
		if !ok {
			return nil, fmt.Errorf("%w: unsupported file type %q", ErrValidationFailed, f.ContentType)
		}
		if s.opts.MaxFileBytes > 0 && int64(len(f.Data)) > s.opts.MaxFileBytes {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrValidationFailed, f.Name, s.opts.MaxFileBytes)
		}
		types[i] = t
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	media := &domain.Media{UserID: userID}
	var keys []string
	for i, f := range files {
		key := storage.NewObjectKey(s.opts.Folder, f.Name)
		if err := s.fileStorage.PutObject(ctx, key, f.ContentType, f.Data); err != nil {
			s.log.Error("upload failed", "user_id", userID.Hex(), "file", f.Name, "error", err)
			cleanupBlobs(ctx, s.fileStorage, s.log, keys...)
			return nil, fmt.Errorf("%w: %w", ErrStorageUpload, err)
		}
		keys = append(keys, key)
		url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, key, s.opts.URLExpiry)
		if err != nil {
			s.log.Warn("could not sign media URL", "key", key, "error", err)
		}
		media.Items = append(media.Items, domain.MediaItem{
			Title:        f.Name,
			Type:         types[i],
			StorageKey:   key,
			URL:          url,
			AssessmentID: assessmentID,
		})
	}

	if _, err := s.mediaRepo.Create(ctx, media); err != nil {
		s.log.Error("media write failed", "user_id", userID.Hex(), "error", err)
		cleanupBlobs(ctx, s.fileStorage, s.log, keys...)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.log.Info("media uploaded", "user_id", userID.Hex(), "media_id", media.ID.Hex(), "items", len(media.Items))
	return media, nil
}

// GetMedia lists the user's media with every URL freshly signed.
func (s *mediaService) GetMedia(ctx context.Context, userID primitive.ObjectID) ([]domain.Media, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	list, err := s.mediaRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		for j := range list[i].Items {
			item := &list[i].Items[j]
			url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, item.StorageKey, s.opts.URLExpiry)
			if err != nil {
				s.log.Error("failed to sign media URL", "key", item.StorageKey, "error", err)
				return nil, fmt.Errorf("%w: %w", ErrStorage, err)
			}
			item.URL = url
		}
	}
	return list, nil
}

// DeleteMedia removes one item and its blob. The media must belong to userID.
func (s *mediaService) DeleteMedia(ctx context.Context, userID, parentID, itemID primitive.ObjectID) error {
	media, err := s.mediaRepo.GetByIDForUser(ctx, parentID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMediaNotFound
		}
		return err
	}
	item, ok := media.Item(itemID)
	if !ok {
		return ErrMediaNotFound
	}

	if err := s.fileStorage.DeleteObject(ctx, item.StorageKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.log.Error("blob delete failed", "key", item.StorageKey, "error", err)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.mediaRepo.PullItem(ctx, parentID, userID, itemID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMediaNotFound
		}
		return err
	}
	s.log.Info("media item deleted", "media_id", parentID.Hex(), "item_id", itemID.Hex(), "key", item.StorageKey)
	return nil
}
