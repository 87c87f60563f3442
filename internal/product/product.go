package product

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlaceholderImage is used when a listing is created without pictures.
const PlaceholderImage = "/images/placeholder.png"

// AnonymousSeller is the display name given to listings created without a session.
const AnonymousSeller = "Anonymous"

// Product maps to a document of the `products` collection. Category is a free
// text label matched against category names, not a reference.
type Product struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	Category    string             `json:"category" bson:"category"`
	Price       float64            `json:"price" bson:"price"`
	SellerID    string             `json:"sellerId" bson:"sellerId"`
	SellerName  string             `json:"sellerName" bson:"sellerName"`
	Images      []string           `json:"images" bson:"images"`
	Image       string             `json:"image" bson:"image"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
}

// Normalize keeps Images non-empty and Image equal to Images[0]. It must run
// before every write.
func (p *Product) Normalize() {
	images := make([]string, 0, len(p.Images)+1)
	for _, img := range p.Images {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}
	if len(images) == 0 {
		if img := strings.TrimSpace(p.Image); img != "" {
			images = append(images, img)
		} else {
			images = append(images, PlaceholderImage)
		}
	}
	p.Images = images
	p.Image = images[0]
}

// CreateRequest is the body of POST /api/products.
type CreateRequest struct {
	Title       string   `json:"title" validate:"required,min=3,max=120"`
	Description string   `json:"description" validate:"required,max=5000"`
	Category    string   `json:"category" validate:"required"`
	Price       float64  `json:"price" validate:"gte=0"`
	Images      []string `json:"images" validate:"omitempty,max=10,dive,required"`
	Image       string   `json:"image"`
	SellerName  string   `json:"sellerName" validate:"max=80"`
}

// Seller identifies who is creating a listing. The zero value is an anonymous seller.
type Seller struct {
	ID   string
	Name string
}
