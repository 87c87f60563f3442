package category

import (
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category is a document of the `categories` collection. Products reference it
// by Name, so ProductCount is a cached value refreshed on reads.
type Category struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name         string             `json:"name" bson:"name"`
	Slug         string             `json:"slug" bson:"slug"`
	Description  string             `json:"description" bson:"description"`
	Icon         string             `json:"icon" bson:"icon"`
	Color        string             `json:"color" bson:"color"`
	Active       bool               `json:"isActive" bson:"isActive"`
	ProductCount int64              `json:"productCount" bson:"productCount"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updatedAt"`
}

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name, collapses every run of non-alphanumerics into one
// hyphen and trims hyphens at both ends. Slugify(Slugify(s)) == Slugify(s).
func Slugify(name string) string {
	s := slugSeparators.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

type CreateRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=50"`
	Description string `json:"description" validate:"max=200"`
	Icon        string `json:"icon" validate:"max=100"`
	Color       string `json:"color" validate:"max=20"`
}

// UpdateRequest changes only the fields that are present. MigrateProducts
// relabels existing products when the name changes.
type UpdateRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=2,max=50"`
	Description     *string `json:"description" validate:"omitempty,max=200"`
	Icon            *string `json:"icon" validate:"omitempty,max=100"`
	Color           *string `json:"color" validate:"omitempty,max=20"`
	Active          *bool   `json:"isActive"`
	MigrateProducts bool    `json:"migrateProducts"`
}

// Overview summarizes the registry for GET /api/categories/stats/overview.
type Overview struct {
	TotalCategories  int        `json:"totalCategories"`
	ActiveCategories int        `json:"activeCategories"`
	TotalProducts    int64      `json:"totalProducts"`
	Top              []Category `json:"topCategories"`
}
