package repository

import (
	"context"

	"alcyxob/fitness-assessment/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository reads athlete profiles. Profiles are written by the auth
// service.
type UserRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// MediaRepository stores uploaded media groups.
type MediaRepository interface {
	Create(ctx context.Context, media *domain.Media) (primitive.ObjectID, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Media, error)
	// GetByIDForUser returns ErrNotFound unless the media exists and belongs to userID.
	GetByIDForUser(ctx context.Context, id, userID primitive.ObjectID) (*domain.Media, error)
	// PullItem removes one item. ErrNotFound when the media or item is absent.
	PullItem(ctx context.Context, id, userID, itemID primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// AssessmentRepository stores analysis outcomes.
type AssessmentRepository interface {
	Create(ctx context.Context, assessment *domain.Assessment) (primitive.ObjectID, error)
	// GetByUserID lists newest first.
	GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Assessment, error)
}
