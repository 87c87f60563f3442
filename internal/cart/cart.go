// Package cart models cart lines and keeps the server-resident cart of
// authenticated users.
package cart

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/secondhand-market/internal/product"
)

// Snapshot is the product as it was when added. It is never refreshed from
// the catalog; its Price is the amount charged.
type Snapshot struct {
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Image      string  `json:"image"`
	SellerName string  `json:"sellerName"`
}

func SnapshotOf(p product.Product) Snapshot {
	return Snapshot{Title: p.Title, Price: p.Price, Image: p.Image, SellerName: p.SellerName}
}

// Line is one product in a cart. Quantity is always at least 1; a line
// that would drop below is removed instead.
type Line struct {
	ProductID string    `json:"productId"`
	Product   Snapshot  `json:"product"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

func (l Line) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(l.Product.Price).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Total sums quantity times snapshot price over lines.
func Total(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

// Cart is the response view of a user's lines.
type Cart struct {
	Items      []Line  `json:"items"`
	TotalItems int     `json:"totalItems"`
	TotalPrice float64 `json:"totalPrice"`
}

func View(lines []Line) Cart {
	c := Cart{Items: lines}
	if c.Items == nil {
		c.Items = []Line{}
	}
	for _, l := range lines {
		c.TotalItems += l.Quantity
	}
	c.TotalPrice = Total(lines).Round(2).InexactFloat64()
	return c
}

// SortLines orders lines by the time they were added, then by product id.
func SortLines(lines []Line) {
	slices.SortFunc(lines, func(a, b Line) int {
		if c := a.AddedAt.Compare(b.AddedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ProductID, b.ProductID)
	})
}

func linesOf(m map[string]Line) []Line {
	out := make([]Line, 0, len(m))
	for _, l := range m {
		out = append(out, l)
	}
	SortLines(out)
	return out
}

func indexLines(lines []Line) map[string]Line {
	m := make(map[string]Line, len(lines))
	for _, l := range lines {
		m[l.ProductID] = l
	}
	return m
}
