package catalog

import "time"

// Display tags rendered as badges on the storefront.
const (
	TagNuevo       = "nuevo"
	TagOferta      = "oferta"
	TagPopular     = "popular"
	TagLiquidacion = "liquidacion"
)

// ValidTag reports whether tag is empty or one of the known display tags.
func ValidTag(tag string) bool {
	switch tag {
	case "", TagNuevo, TagOferta, TagPopular, TagLiquidacion:
		return true
	default:
		return false
	}
}

type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Stock       int     `json:"stock"`
	Rating      float64 `json:"rating,omitempty"`
	// Pre-discount reference price, shown struck through when > 0.
	OriginalPrice float64   `json:"originalPrice,omitempty"`
	Tag           string    `json:"tag,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}
