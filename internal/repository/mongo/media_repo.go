package mongo

import (
	"context"
	"errors"
	"time"

	"alcyxob/fitness-assessment/internal/domain"
	"alcyxob/fitness-assessment/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mediaCollectionName = "media"

// mongoMediaRepository implements repository.MediaRepository
type mongoMediaRepository struct {
	collection *mongo.Collection
}

// NewMongoMediaRepository creates a new Media repository backed by MongoDB.
func NewMongoMediaRepository(db *mongo.Database) repository.MediaRepository {
	return &mongoMediaRepository{
		collection: db.Collection(mediaCollectionName),
	}
}

// Create inserts a media group. Items without an id get one.
func (r *mongoMediaRepository) Create(ctx context.Context, media *domain.Media) (primitive.ObjectID, error) {
	if media.UserID == primitive.NilObjectID || len(media.Items) == 0 {
		return primitive.NilObjectID, errors.New("media requires userId and at least one item")
	}

	media.ID = primitive.NewObjectID()
	for i := range media.Items {
		if media.Items[i].ID == primitive.NilObjectID {
			media.Items[i].ID = primitive.NewObjectID()
		}
	}
	now := time.Now().UTC()
	media.CreatedAt = now
	media.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, media)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByUserID lists every media group owned by userID, oldest first.
func (r *mongoMediaRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Media, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	media := []domain.Media{}
	if err = cursor.All(ctx, &media); err != nil {
		return nil, err
	}
	return media, nil
}

func (r *mongoMediaRepository) GetByIDForUser(ctx context.Context, id, userID primitive.ObjectID) (*domain.Media, error) {
	var media domain.Media
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&media)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &media, nil
}

// PullItem removes the item from the media group's item list. The filter
// matches only when the group is owned by userID and still holds the item.
func (r *mongoMediaRepository) PullItem(ctx context.Context, id, userID, itemID primitive.ObjectID) error {
	filter := bson.M{"_id": id, "userId": userID, "media._id": itemID}
	update := bson.M{
		"$pull": bson.M{"media": bson.M{"_id": itemID}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoMediaRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureMediaIndexes creates necessary indexes for the media collection.
func EnsureMediaIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "media.assessmentId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
