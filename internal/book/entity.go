// AngelaMos | 2026
// entity.go

package book

import (
	"time"
)

// Book is a catalog entry. Cover assets live in external storage; the row
// keeps only the public URL and the opaque storage ID needed to delete it.
type Book struct {
	ID             string     `db:"id"`
	Title          string     `db:"title"`
	Author         string     `db:"author"`
	Description    string     `db:"description"`
	ISBN           *string    `db:"isbn"`
	Genre          string     `db:"genre"`
	Price          float64    `db:"price"`
	DiscountPrice  *float64   `db:"discount_price"`
	Stock          int        `db:"stock"`
	CoverURL       *string    `db:"cover_url"`
	CoverStorageID *string    `db:"cover_storage_id"`
	Rating         float64    `db:"rating"`
	RatingCount    int        `db:"rating_count"`
	IsActive       bool       `db:"is_active"`
	IsFeatured     bool       `db:"is_featured"`
	OwnerID        string     `db:"owner_id"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// EffectivePrice is the discount price when one is set, else the list price.
func (b *Book) EffectivePrice() float64 {
	if b.DiscountPrice != nil {
		return *b.DiscountPrice
	}
	return b.Price
}

// DiscountPercentage is 0 when no discount is set or the price is zero.
func (b *Book) DiscountPercentage() float64 {
	if b.DiscountPrice == nil || b.Price <= 0 {
		return 0
	}
	return (b.Price - *b.DiscountPrice) / b.Price * 100
}

func (b *Book) InStock() bool {
	return b.Stock > 0
}
