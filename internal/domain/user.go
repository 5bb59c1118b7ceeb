package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the athlete profile. Only the biometric context needed by the
// analysis engine is read here; profile CRUD lives elsewhere.
type User struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username        string             `bson:"username,omitempty" json:"username,omitempty"`
	Phone           string             `bson:"phone" json:"phone"`
	HeightCM        float64            `bson:"height,omitempty" json:"height,omitempty"`
	WeightKG        float64            `bson:"weight,omitempty" json:"weight,omitempty"`
	Gender          string             `bson:"gender,omitempty" json:"gender,omitempty"`
	Age             int                `bson:"age,omitempty" json:"age,omitempty"`
	IsPhoneVerified bool               `bson:"isPhoneVerified" json:"isPhoneVerified"`
	Role            Role               `bson:"role" json:"role"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
