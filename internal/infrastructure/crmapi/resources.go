package crmapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/woowup/vtex-connector/internal/domain/crm"
)

// ---------------------------------------------------------------------------
// Multiusers
// ---------------------------------------------------------------------------

// MultiusersResource operates on customers addressed by any identity
// (email or document).
type MultiusersResource struct {
	client *Client
}

// Exist reports whether a customer with the given identity is already
// registered.
func (r *MultiusersResource) Exist(ctx context.Context, identity crm.Identity) (bool, error) {
	query := url.Values{}
	if identity.Email != "" {
		query.Set("email", identity.Email)
	}
	if identity.Document != "" {
		query.Set("document", identity.Document)
	}
	err := r.client.do(ctx, http.MethodGet, "/multiusers/exist", query, nil, nil)
	if IsNotFound(err) || IsUserNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update updates an existing customer.
func (r *MultiusersResource) Update(ctx context.Context, customer *crm.Customer) error {
	return r.client.do(ctx, http.MethodPut, "/multiusers", nil, customer, nil)
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// UsersResource registers new customers.
type UsersResource struct {
	client *Client
}

// Create registers a new customer.
func (r *UsersResource) Create(ctx context.Context, customer *crm.Customer) error {
	return r.client.do(ctx, http.MethodPost, "/users", nil, customer, nil)
}

// UserRecord is the CRM's view of a registered customer, trimmed to the
// fields import decisions depend on.
type UserRecord struct {
	MailingEnabledReason string `json:"mailing_enabled_reason"`
}

// Find fetches the registered customer matching an identity.
func (r *UsersResource) Find(ctx context.Context, identity crm.Identity) (*UserRecord, error) {
	query := url.Values{}
	if identity.Email != "" {
		query.Set("email", identity.Email)
	}
	if identity.Document != "" {
		query.Set("document", identity.Document)
	}
	var envelope struct {
		Payload UserRecord `json:"payload"`
	}
	if err := r.client.do(ctx, http.MethodGet, "/users", query, nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Payload, nil
}

// ---------------------------------------------------------------------------
// Purchases
// ---------------------------------------------------------------------------

// PurchasesResource operates on purchases.
type PurchasesResource struct {
	client *Client
}

// Create registers a new purchase.
func (r *PurchasesResource) Create(ctx context.Context, order *crm.Order) error {
	return r.client.do(ctx, http.MethodPost, "/purchases", nil, order, nil)
}

// Update updates a purchase addressed by its invoice number.
func (r *PurchasesResource) Update(ctx context.Context, order *crm.Order) error {
	return r.client.do(ctx, http.MethodPut, "/purchases", nil, order, nil)
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// ProductsResource operates on the CRM product catalog.
type ProductsResource struct {
	client *Client
}

// Create registers a new product.
func (r *ProductsResource) Create(ctx context.Context, product *crm.Product) error {
	return r.client.do(ctx, http.MethodPost, "/products", nil, product, nil)
}

// Update updates the product addressed by sku.
func (r *ProductsResource) Update(ctx context.Context, sku string, product *crm.Product) error {
	return r.client.do(ctx, http.MethodPut, "/products/"+url.PathEscape(sku), nil, product, nil)
}

// Find fetches the product addressed by sku.
func (r *ProductsResource) Find(ctx context.Context, sku string) (*crm.Product, error) {
	var product crm.Product
	if err := r.client.do(ctx, http.MethodGet, "/products/"+url.PathEscape(sku), nil, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// Search lists products matching a free-text term.
func (r *ProductsResource) Search(ctx context.Context, term string) ([]*crm.Product, error) {
	var products []*crm.Product
	query := url.Values{"search": {term}}
	if err := r.client.do(ctx, http.MethodGet, "/products", query, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ListAvailable pages through the products currently flagged available.
func (r *ProductsResource) ListAvailable(ctx context.Context, page, limit int) ([]*crm.Product, error) {
	var products []*crm.Product
	query := url.Values{
		"available": {"true"},
		"page":      {strconv.Itoa(page)},
		"limit":     {strconv.Itoa(limit)},
	}
	if err := r.client.do(ctx, http.MethodGet, "/products", query, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ---------------------------------------------------------------------------
// Banks
// ---------------------------------------------------------------------------

// BanksResource resolves card metadata from card number prefixes.
type BanksResource struct {
	client *Client
}

// CardData describes a card as resolved from its first six digits.
type CardData struct {
	Type   string `json:"type"`
	Scheme string `json:"scheme"`
	Bank   struct {
		Name string `json:"name"`
	} `json:"bank"`
}

// FromFirstSixDigits resolves issuer data for a card number prefix.
func (r *BanksResource) FromFirstSixDigits(ctx context.Context, digits string) (*CardData, error) {
	if digits == "" {
		return nil, errors.New("crmapi: empty card prefix")
	}
	var data CardData
	if err := r.client.do(ctx, http.MethodGet, "/banks/details/"+url.PathEscape(digits), nil, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
