// AngelaMos | 2026
// dto.go

package book

import (
	"time"
)

type CreateBookRequest struct {
	Title         string   `json:"title"          validate:"required,min=1,max=200"`
	Author        string   `json:"author"         validate:"required,min=1,max=100"`
	Description   string   `json:"description"    validate:"max=2000"`
	ISBN          *string  `json:"isbn,omitempty" validate:"omitempty,min=10,max=17"`
	Genre         string   `json:"genre"          validate:"required,oneof=Fiction Non-Fiction Science Technology History Biography Fantasy Mystery Romance"`
	Price         float64  `json:"price"          validate:"gte=0"`
	DiscountPrice *float64 `json:"discount_price,omitempty" validate:"omitempty,gte=0,ltfield=Price"`
	Stock         int      `json:"stock"          validate:"gte=0"`
	IsFeatured    bool     `json:"is_featured"`
}

type UpdateBookRequest struct {
	Title         *string  `json:"title,omitempty"       validate:"omitempty,min=1,max=200"`
	Author        *string  `json:"author,omitempty"      validate:"omitempty,min=1,max=100"`
	Description   *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
	ISBN          *string  `json:"isbn,omitempty"        validate:"omitempty,min=10,max=17"`
	Genre         *string  `json:"genre,omitempty"       validate:"omitempty,oneof=Fiction Non-Fiction Science Technology History Biography Fantasy Mystery Romance"`
	Price         *float64 `json:"price,omitempty"       validate:"omitempty,gte=0"`
	DiscountPrice *float64 `json:"discount_price,omitempty" validate:"omitempty,gte=0"`
	Stock         *int     `json:"stock,omitempty"       validate:"omitempty,gte=0"`
	IsActive      *bool    `json:"is_active,omitempty"`
	IsFeatured    *bool    `json:"is_featured,omitempty"`
}

// OwnerResponse is the trimmed owner shape attached when a caller opts in
// with include=owner.
type OwnerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type BookResponse struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Author             string         `json:"author"`
	Description        string         `json:"description"`
	ISBN               *string        `json:"isbn,omitempty"`
	Genre              string         `json:"genre"`
	Price              float64        `json:"price"`
	DiscountPrice      *float64       `json:"discount_price,omitempty"`
	EffectivePrice     float64        `json:"effective_price"`
	DiscountPercentage float64        `json:"discount_percentage"`
	Stock              int            `json:"stock"`
	InStock            bool           `json:"in_stock"`
	CoverURL           *string        `json:"cover_url,omitempty"`
	Rating             float64        `json:"rating"`
	RatingCount        int            `json:"rating_count"`
	IsActive           bool           `json:"is_active"`
	IsFeatured         bool           `json:"is_featured"`
	OwnerID            string         `json:"owner_id"`
	Owner              *OwnerResponse `json:"owner,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func ToBookResponse(b *Book) BookResponse {
	return BookResponse{
		ID:                 b.ID,
		Title:              b.Title,
		Author:             b.Author,
		Description:        b.Description,
		ISBN:               b.ISBN,
		Genre:              b.Genre,
		Price:              b.Price,
		DiscountPrice:      b.DiscountPrice,
		EffectivePrice:     b.EffectivePrice(),
		DiscountPercentage: b.DiscountPercentage(),
		Stock:              b.Stock,
		InStock:            b.InStock(),
		CoverURL:           b.CoverURL,
		Rating:             b.Rating,
		RatingCount:        b.RatingCount,
		IsActive:           b.IsActive,
		IsFeatured:         b.IsFeatured,
		OwnerID:            b.OwnerID,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

func ToBookResponseList(books []Book) []BookResponse {
	responses := make([]BookResponse, 0, len(books))
	for _, b := range books {
		responses = append(responses, ToBookResponse(&b))
	}
	return responses
}
