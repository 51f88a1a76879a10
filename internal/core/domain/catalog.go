package domain

// ProductStatus is the listing state of a catalog item.
type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductReserved ProductStatus = "reserved"
	ProductInactive ProductStatus = "inactive"
)

// Product is the read model of a catalog listing. The catalog itself is owned elsewhere.
type Product struct {
	ProductID  string        `json:"productID"`
	OwnerID    string        `json:"ownerID"`
	Title      string        `json:"title"`
	Category   string        `json:"category"`
	ValorPrice int64         `json:"valorPrice"`
	Status     ProductStatus `json:"status"`
}

// IsAvailable reports whether the product can be the subject of a new offer.
func (p Product) IsAvailable() bool {
	return p.Status == ProductActive
}
