package user

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a document of the `users` collection. Password holds the bcrypt
// hash and is never serialized to clients.
type User struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Email     string             `json:"email" bson:"email"`
	Password  string             `json:"-" bson:"password"`
	Avatar    string             `json:"avatar,omitempty" bson:"avatar,omitempty"`
	Phone     string             `json:"phone,omitempty" bson:"phone,omitempty"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileUpdate carries the fields a user may change about themselves.
type ProfileUpdate struct {
	Name   *string `json:"name" validate:"omitempty,min=2,max=50"`
	Avatar *string `json:"avatar" validate:"omitempty,max=500"`
	Phone  *string `json:"phone" validate:"omitempty,max=20"`
}
