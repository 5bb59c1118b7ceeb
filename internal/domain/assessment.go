package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VerificationState of an assessment outcome.
type VerificationState string

const (
	VerificationNotVerified VerificationState = "not verified"
	VerificationVerified    VerificationState = "verified"
)

// Assessment is the persisted outcome of one exercise's analysis. It is only
// written after its Media exists.
type Assessment struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	ExerciseName    ExerciseType       `bson:"assessmentName" json:"exerciseName"`
	Verification    VerificationState  `bson:"assessmentVerification" json:"verificationState"`
	MediaID         primitive.ObjectID `bson:"mediaId" json:"mediaId"`
	RepetitionCount int                `bson:"repetitionCount" json:"repetitionCount"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}
