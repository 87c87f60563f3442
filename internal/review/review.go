package review

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MinCommentLength is the minimum number of characters in a trimmed comment.
const MinCommentLength = 10

// Review is a document of the `reviews` collection. At most one exists per
// (ProductID, UserID).
type Review struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	ProductID string             `json:"productId" bson:"productId"`
	UserID    string             `json:"userId" bson:"userId"`
	UserName  string             `json:"userName" bson:"userName"`
	Rating    int                `json:"rating" bson:"rating"`
	Title     string             `json:"title,omitempty" bson:"title,omitempty"`
	Comment   string             `json:"comment" bson:"comment"`
	Verified  bool               `json:"verified" bson:"verified"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Stats aggregates the reviews of one product. Distribution is keyed by
// rating "1" through "5".
type Stats struct {
	TotalReviews       int              `json:"totalReviews"`
	AverageRating      float64          `json:"averageRating"`
	RatingDistribution map[string]int64 `json:"ratingDistribution"`
}

func emptyDistribution() map[string]int64 {
	return map[string]int64{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0}
}

type CreateRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Title   string `json:"title" validate:"max=100"`
	Comment string `json:"comment" validate:"required,max=1000"`
}

type UpdateRequest struct {
	Rating  *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Title   *string `json:"title" validate:"omitempty,max=100"`
	Comment *string `json:"comment" validate:"omitempty,max=1000"`
}

// Author is the authenticated caller writing a review.
type Author struct {
	ID   string
	Name string
}
