package model

import "time"

// Product categories form a closed set enforced at write time; the
// `products.category` column is an ENUM over the same values.
const (
	CategorySkincare = "skincare"
	CategoryHaircare = "haircare"
	CategoryPerfumes = "perfumes"
)

// ValidCategory reports whether c is one of the known product categories.
func ValidCategory(c string) bool {
	switch c {
	case CategorySkincare, CategoryHaircare, CategoryPerfumes:
		return true
	}
	return false
}

// Product represents a catalog entry as stored in the `products` table.
// ImageURL is either empty, an external URL, or a path under the managed
// uploads directory ("uploads/<file>"); only the last kind is ever
// deleted from disk when the product is removed or its image replaced.
type Product struct {
	ID          uint64    // products.id (internal)
	ProductID   string    // products.product_id (external identifier)
	Name        string    // products.name
	Description string    // products.description
	Category    string    // products.category
	Price       float64   // products.price (DECIMAL(10,2), always > 0)
	Stock       int       // products.stock_quantity
	ImageURL    string    // products.image_url
	IsActive    bool      // products.is_active
	CreatedAt   time.Time // products.created_at
	UpdatedAt   time.Time // products.updated_at
}
