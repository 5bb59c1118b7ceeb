package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MediaType distinguishes stored images from videos.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// MediaItem is one uploaded file. The blob itself lives in object storage
// under StorageKey; URL is a short-lived signed link.
type MediaItem struct {
	ID           primitive.ObjectID  `bson:"_id" json:"id"`
	Title        string              `bson:"title,omitempty" json:"title,omitempty"`
	Type         MediaType           `bson:"type" json:"type"`
	StorageKey   string              `bson:"storageKey" json:"publicId"`
	URL          string              `bson:"url" json:"url"`
	AssessmentID *primitive.ObjectID `bson:"assessmentId,omitempty" json:"assessmentId,omitempty"`
}

// Media groups the items uploaded together by one user. Immutable except
// for item removal.
type Media struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Items     []MediaItem        `bson:"media" json:"media"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Item returns the item with the given id, if present.
func (m *Media) Item(itemID primitive.ObjectID) (*MediaItem, bool) {
	for i := range m.Items {
		if m.Items[i].ID == itemID {
			return &m.Items[i], true
		}
	}
	return nil, false
}
