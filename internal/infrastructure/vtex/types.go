package vtex

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Orders (OMS API)
// ---------------------------------------------------------------------------

// Order is the OMS order detail payload.
type Order struct {
	OrderID                     string              `json:"orderId"`
	Status                      string              `json:"status"`
	CreationDate                string              `json:"creationDate"`
	ClientProfileData           *ClientProfile      `json:"clientProfileData"`
	ShippingData                *ShippingData       `json:"shippingData"`
	Items                       []OrderItem         `json:"items"`
	PaymentData                 *PaymentData        `json:"paymentData"`
	Totals                      []Total             `json:"totals"`
	Marketplace                 *Marketplace        `json:"marketplace"`
	MarketplaceServicesEndpoint string              `json:"marketplaceServicesEndpoint"`
	CallCenterOperatorData      *CallCenterOperator `json:"callCenterOperatorData"`
	Sellers                     []OrderSeller       `json:"sellers"`
}

// ClientProfile is the buyer profile embedded in an order.
type ClientProfile struct {
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	DocumentType string `json:"documentType"`
	Document     string `json:"document"`
	Phone        string `json:"phone"`
}

// ShippingData holds the delivery address of an order.
type ShippingData struct {
	Address *Address `json:"address"`
}

// Address is a shipping or master-data address.
type Address struct {
	PostalCode string `json:"postalCode"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	Street     string `json:"street"`
	Number     string `json:"number"`
}

// OrderItem is one line of an OMS order.
type OrderItem struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"productId"`
	RefID          string          `json:"refId"`
	Name           string          `json:"name"`
	Quantity       int             `json:"quantity"`
	Price          int64           `json:"price"` // minor units
	DetailURL      string          `json:"detailUrl"`
	ImageURL       string          `json:"imageUrl"`
	AdditionalInfo *AdditionalInfo `json:"additionalInfo"`
}

// AdditionalInfo carries the slash-separated category id path of an item.
type AdditionalInfo struct {
	CategoriesIDs string `json:"categoriesIds"`
}

// PaymentData groups the payment transactions of an order.
type PaymentData struct {
	Transactions []Transaction `json:"transactions"`
}

// Transaction is one payment transaction.
type Transaction struct {
	Payments []OrderPayment `json:"payments"`
}

// OrderPayment is a single payment inside a transaction.
type OrderPayment struct {
	Group             string `json:"group"`
	PaymentSystemName string `json:"paymentSystemName"`
	Value             int64  `json:"value"` // minor units
	Installments      int    `json:"installments"`
	FirstDigits       string `json:"firstDigits"`
}

// Total is one entry of the order totals breakdown (Items, Discounts,
// Shipping, Tax). Values are minor units; Discounts arrive negative.
type Total struct {
	ID    string `json:"id"`
	Value int64  `json:"value"`
}

// Marketplace names the marketplace an order came through.
type Marketplace struct {
	Name string `json:"name"`
}

// CallCenterOperator identifies the operator that placed a telesales order.
type CallCenterOperator struct {
	Email    string `json:"email"`
	UserName string `json:"userName"`
}

// OrderSeller is one seller fulfilling part of an order.
type OrderSeller struct {
	Name string `json:"name"`
}

// orderListPage is the OMS order listing envelope.
type orderListPage struct {
	List   []orderListEntry `json:"list"`
	Paging struct {
		Total int `json:"total"`
	} `json:"paging"`
}

type orderListEntry struct {
	OrderID string `json:"orderId"`
}

// ---------------------------------------------------------------------------
// Catalog (public search API)
// ---------------------------------------------------------------------------

// BaseProduct is one result of the public catalog search. Specification
// values live in dynamic top-level keys named after the entries of
// AllSpecifications, captured in extra during unmarshaling.
type BaseProduct struct {
	ProductID         string       `json:"productId"`
	ProductName       string       `json:"productName"`
	Brand             string       `json:"brand"`
	CategoryID        int64        `json:"categoryId"`
	Description       string       `json:"description"`
	Link              string       `json:"link"`
	ReleaseDate       string       `json:"releaseDate"`
	AllSpecifications []string     `json:"allSpecifications"`
	Items             []SearchItem `json:"items"`

	extra map[string]json.RawMessage
}

// UnmarshalJSON captures the dynamic specification keys alongside the
// declared fields.
func (p *BaseProduct) UnmarshalJSON(data []byte) error {
	type alias BaseProduct
	var dst alias
	if err := json.Unmarshal(data, &dst); err != nil {
		return err
	}
	*p = BaseProduct(dst)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.extra = raw
	return nil
}

// SpecValue returns the first value of a named specification, or "".
func (p *BaseProduct) SpecValue(name string) string {
	raw, ok := p.extra[name]
	if !ok {
		return ""
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil || len(values) == 0 {
		return ""
	}
	return values[0]
}

// SearchItem is one SKU of a base product in the catalog search payload.
type SearchItem struct {
	ItemID      string         `json:"itemId"`
	Name        string         `json:"name"`
	ReferenceID []ReferenceID  `json:"referenceId"`
	Images      []SearchImage  `json:"images"`
	Sellers     []SearchSeller `json:"sellers"`
}

// Reference returns the stable reference id of the item, or "".
func (i *SearchItem) Reference() string {
	if len(i.ReferenceID) == 0 {
		return ""
	}
	return i.ReferenceID[0].Value
}

// Offer returns the first seller's commercial offer, or nil.
func (i *SearchItem) Offer() *CommercialOffer {
	if len(i.Sellers) == 0 {
		return nil
	}
	return i.Sellers[0].CommercialOffer
}

// ReferenceID is a key/value reference attached to a SKU.
type ReferenceID struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// SearchImage is one image of a SKU.
type SearchImage struct {
	ImageURL string `json:"imageUrl"`
}

// SearchSeller wraps a seller's commercial offer. The upstream API spells
// the field "commertialOffer".
type SearchSeller struct {
	CommercialOffer *CommercialOffer `json:"commertialOffer"`
}

// CommercialOffer carries price and stock figures for a SKU. Pointers
// distinguish absent figures from genuine zeroes.
type CommercialOffer struct {
	Price             *decimal.Decimal `json:"Price"`
	ListPrice         *decimal.Decimal `json:"ListPrice"`
	AvailableQuantity *int             `json:"AvailableQuantity"`
}

// Variations is the SKU-dimension payload of a product.
type Variations struct {
	Dimensions []string       `json:"dimensions"`
	SKUs       []VariationSKU `json:"skus"`
}

// VariationSKU maps one SKU to its dimension values.
type VariationSKU struct {
	SKU        json.Number       `json:"sku"`
	Dimensions map[string]string `json:"dimensions"`
}

// CatalogProduct is the private ProductGet payload.
type CatalogProduct struct {
	ID        int64  `json:"Id"`
	RefID     string `json:"RefId"`
	Name      string `json:"Name"`
	IsVisible bool   `json:"IsVisible"`
	IsActive  bool   `json:"IsActive"`
}

// CatalogSKU is the private stockkeepingunitbyid payload used by the
// historical product walk.
type CatalogSKU struct {
	ID               int64  `json:"Id"`
	ProductID        int64  `json:"ProductId"`
	ProductName      string `json:"ProductName"`
	Name             string `json:"Name"`
	RefID            string `json:"RefId"`
	BrandName        string `json:"BrandName"`
	ImageURL         string `json:"ImageUrl"`
	DetailURL        string `json:"DetailUrlPage"`
	IsActive         bool   `json:"IsActive"`
	ProductIsVisible bool   `json:"ProductIsVisible"`
}

// productSKUIDsPage is the GetProductAndSkuIds envelope: product id to its
// SKU ids, plus the range total.
type productSKUIDsPage struct {
	Data  map[string][]int64 `json:"data"`
	Range struct {
		Total int `json:"total"`
	} `json:"range"`
}

// ItemPrices is the pricing-API payload for a SKU.
type ItemPrices struct {
	ListPrice *decimal.Decimal `json:"listPrice"`
	BasePrice *decimal.Decimal `json:"basePrice"`
}

// inventoryResponse is the logistics inventory payload for a SKU.
type inventoryResponse struct {
	Balance []struct {
		TotalQuantity    int `json:"totalQuantity"`
		ReservedQuantity int `json:"reservedQuantity"`
	} `json:"balance"`
}

// ---------------------------------------------------------------------------
// Master data (profiles, addresses)
// ---------------------------------------------------------------------------

// Profile is a master-data customer document.
type Profile struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	Document          string `json:"document"`
	DocumentType      string `json:"documentType"`
	HomePhone         string `json:"homePhone"`
	BirthDate         string `json:"birthDate"`
	IsNewsletterOptIn *bool  `json:"isNewsletterOptIn"`
}

type profileIDEntry struct {
	ID string `json:"id"`
}

// ---------------------------------------------------------------------------
// Subscriptions
// ---------------------------------------------------------------------------

// Subscription is one recurring-purchase subscription.
type Subscription struct {
	ID               string             `json:"id"`
	CustomerID       string             `json:"customerId"`
	CustomerEmail    string             `json:"customerEmail"`
	Status           string             `json:"status"`
	NextPurchaseDate string             `json:"nextPurchaseDate"`
	LastPurchaseDate string             `json:"lastPurchaseDate"`
	LastUpdate       string             `json:"lastUpdate"`
	IsSkipped        bool               `json:"isSkipped"`
	Items            []SubscriptionItem `json:"items"`
	Plan             *SubscriptionPlan  `json:"plan"`
}

// SubscriptionItem is one SKU in a subscription.
type SubscriptionItem struct {
	SKUID string `json:"skuId"`
}

// SubscriptionPlan holds validity and frequency of a subscription.
type SubscriptionPlan struct {
	Validity  SubscriptionValidity  `json:"validity"`
	Frequency SubscriptionFrequency `json:"frequency"`
}

// SubscriptionValidity is the plan validity window.
type SubscriptionValidity struct {
	Begin string `json:"begin"`
	End   string `json:"end"`
}

// SubscriptionFrequency is the plan purchase cadence.
type SubscriptionFrequency struct {
	Periodicity string `json:"periodicity"`
	Interval    int    `json:"interval"`
}

// ---------------------------------------------------------------------------
// Categories
// ---------------------------------------------------------------------------

// CategoryNode is one node of the public category tree.
type CategoryNode struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	URL      string         `json:"url"`
	Children []CategoryNode `json:"children"`
}

// CategoryLeaf is a leaf of the category tree with its full id path, used
// to drive per-category catalog searches.
type CategoryLeaf struct {
	ID   string
	Name string
	Path string
}
