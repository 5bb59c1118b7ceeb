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

const assessmentCollectionName = "assessments"

type mongoAssessmentRepository struct {
	collection *mongo.Collection
}

func NewMongoAssessmentRepository(db *mongo.Database) repository.AssessmentRepository {
	return &mongoAssessmentRepository{
		collection: db.Collection(assessmentCollectionName),
	}
}

// Create inserts an assessment. It must reference existing media.
func (r *mongoAssessmentRepository) Create(ctx context.Context, assessment *domain.Assessment) (primitive.ObjectID, error) {
	if assessment.UserID == primitive.NilObjectID || assessment.MediaID == primitive.NilObjectID || assessment.ExerciseName == "" {
		return primitive.NilObjectID, errors.New("assessment requires userId, mediaId and exercise name")
	}

	assessment.ID = primitive.NewObjectID()
	if assessment.CreatedAt.IsZero() {
		assessment.CreatedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, assessment)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

func (r *mongoAssessmentRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Assessment, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	assessments := []domain.Assessment{}
	if err = cursor.All(ctx, &assessments); err != nil {
		return nil, err
	}
	return assessments, nil
}

// EnsureAssessmentIndexes creates necessary indexes for the assessments collection.
func EnsureAssessmentIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "mediaId", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
