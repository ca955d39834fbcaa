package crm

import "github.com/shopspring/decimal"

// Product is the CRM products-API record. Price and Stock are pointers so
// the connector can distinguish "zero" from "do not report".
type Product struct {
	SKU              string           `json:"sku"`
	Name             string           `json:"name,omitempty"`
	BaseName         string           `json:"base_name,omitempty"`
	Brand            string           `json:"brand,omitempty"`
	Description      string           `json:"description,omitempty"`
	URL              string           `json:"url,omitempty"`
	ImageURL         string           `json:"image_url,omitempty"`
	ThumbnailURL     string           `json:"thumbnail_url,omitempty"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	OfferPrice       *decimal.Decimal `json:"offer_price,omitempty"`
	Stock            *int             `json:"stock,omitempty"`
	Available        bool             `json:"available"`
	ReleaseDate      string           `json:"release_date,omitempty"`
	Category         []Category       `json:"category,omitempty"`
	CustomAttributes map[string]any   `json:"custom_attributes,omitempty"`
}

// Clean prunes empty custom attribute entries.
func (p *Product) Clean() {
	p.CustomAttributes = CleanAttributes(p.CustomAttributes)
}
