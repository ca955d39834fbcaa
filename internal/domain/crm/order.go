package crm

import "github.com/shopspring/decimal"

// ChannelWeb is the sales channel reported on every imported purchase
const ChannelWeb = "web"

// Order is the CRM purchases-API record.
type Order struct {
	InvoiceNumber  string         `json:"invoice_number"`
	Channel        string         `json:"channel,omitempty"`
	CreateTime     string         `json:"createtime,omitempty"`
	ApprovedTime   string         `json:"approvedtime,omitempty"`
	BranchName     string         `json:"branch_name,omitempty"`
	Customer       *Customer      `json:"customer,omitempty"`
	PurchaseDetail []PurchaseItem `json:"purchase_detail,omitempty"`
	Payment        []Payment      `json:"payment,omitempty"`
	Prices         *Prices        `json:"prices,omitempty"`
	Seller         *Seller        `json:"seller,omitempty"`
	Document       string         `json:"document,omitempty"`
	Email          string         `json:"email,omitempty"`
}

// PurchaseItem is one line of a purchase.
type PurchaseItem struct {
	SKU          string          `json:"sku"`
	ProductName  string          `json:"product_name,omitempty"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	URL          string          `json:"url,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
	ThumbnailURL string          `json:"thumbnail_url,omitempty"`
	Variations   []Variation     `json:"variations,omitempty"`
	Category     []Category      `json:"category,omitempty"`
}

// Variation is a name/value pair describing a SKU dimension (size, color).
type Variation struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Category is one node of a category path, root first.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Payment is one payment applied to a purchase.
type Payment struct {
	Type         string          `json:"type,omitempty"`
	Total        decimal.Decimal `json:"total"`
	Brand        string          `json:"brand,omitempty"`
	Bank         string          `json:"bank,omitempty"`
	Installments int             `json:"installments,omitempty"`
	FirstDigits  string          `json:"first_digits,omitempty"`
}

// Prices carries the purchase totals. Total is always gross minus discount.
type Prices struct {
	Gross    decimal.Decimal `json:"gross"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Seller identifies the call-center operator that placed the order, if any.
type Seller struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Clean prunes empty nested values from the order and its embedded customer.
func (o *Order) Clean() {
	if o.Customer != nil {
		o.Customer.Clean()
	}
	for i := range o.PurchaseDetail {
		o.PurchaseDetail[i].Variations = cleanVariations(o.PurchaseDetail[i].Variations)
	}
}

func cleanVariations(vs []Variation) []Variation {
	out := vs[:0]
	for _, v := range vs {
		if v.Name != "" && v.Value != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
