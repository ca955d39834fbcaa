package vtex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// conversationTrackerHost serves the email alias unmasking API.
const conversationTrackerHost = "http://conversationtracker.vtex.com.br"

// checkConnectionPath is probed by CheckConnection.
const checkConnectionPath = "/api/oms/pvt/orders"

// ConnectorConfig holds the account-level settings of the source connector.
type ConnectorConfig struct {
	AppName      string
	StoreURL     string
	SalesChannel string
	Sellers      []string // lowercase seller allow-list; empty allows all
	Statuses     []string // order status filter
	DataEntity   string   // master data entity for customer profiles
	TrackerHost  string   // email unmasking host override
}

// Connector exposes the source platform operations the importers need.
type Connector struct {
	client *Client
	cfg    ConnectorConfig
	logger *zap.Logger
}

// NewConnector creates a source platform connector on top of client.
func NewConnector(client *Client, cfg ConnectorConfig, logger *zap.Logger) (*Connector, error) {
	if cfg.AppName == "" {
		return nil, errors.New("vtex: app name is required")
	}
	if cfg.StoreURL == "" {
		return nil, errors.New("vtex: store url is required")
	}
	if len(cfg.Statuses) == 0 {
		cfg.Statuses = []string{"invoiced"}
	}
	if cfg.DataEntity == "" {
		cfg.DataEntity = "CL"
	}
	if cfg.TrackerHost == "" {
		cfg.TrackerHost = conversationTrackerHost
	}
	for i, s := range cfg.Sellers {
		cfg.Sellers[i] = strings.ToLower(s)
	}
	return &Connector{client: client, cfg: cfg, logger: logger}, nil
}

// AppName returns the configured account name.
func (c *Connector) AppName() string {
	return c.cfg.AppName
}

// StoreURL returns the public store host.
func (c *Connector) StoreURL() string {
	return c.cfg.StoreURL
}

// CheckConnection probes the orders endpoint to verify the credentials.
func (c *Connector) CheckConnection(ctx context.Context) error {
	_, err := c.client.get(ctx, checkConnectionPath, url.Values{"per_page": {"1"}}, nil)
	return err
}

// DownloadOrder fetches the full detail of an order.
func (c *Connector) DownloadOrder(ctx context.Context, orderID string) (*Order, error) {
	c.logger.Info("downloading order", zap.String("order_id", orderID))
	var order Order
	if err := c.client.getJSON(ctx, "/api/oms/pvt/orders/"+orderID, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// DownloadCustomer fetches a customer profile document.
func (c *Connector) DownloadCustomer(ctx context.Context, customerID string) (*Profile, error) {
	c.logger.Info("downloading customer", zap.String("customer_id", customerID))
	var profile Profile
	path := fmt.Sprintf("/api/dataentities/%s/documents/%s", c.cfg.DataEntity, customerID)
	if err := c.client.getJSON(ctx, path, url.Values{"_fields": {"_all"}}, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetAddress fetches the most recent master-data address of a user.
func (c *Connector) GetAddress(ctx context.Context, userID string) (*Address, error) {
	var addresses []Address
	query := url.Values{"userId": {userID}, "_fields": {"_all"}}
	if err := c.client.getJSON(ctx, "/api/dataentities/AD/search", query, &addresses); err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return nil, ErrNotFound
	}
	return &addresses[len(addresses)-1], nil
}

// GetProductByID fetches a catalog product by its numeric product id.
func (c *Connector) GetProductByID(ctx context.Context, productID string) (*CatalogProduct, error) {
	var product CatalogProduct
	if err := c.client.getJSON(ctx, "/api/catalog_system/pvt/products/ProductGet/"+productID, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// ResolveProductRef returns the stable reference id for a product id. When
// the catalog lookup fails the raw product id is returned along with the
// error so callers can record the cataloging problem and continue.
func (c *Connector) ResolveProductRef(ctx context.Context, productID string) (string, error) {
	c.logger.Info("resolving reference id", zap.String("product_id", productID))
	product, err := c.GetProductByID(ctx, productID)
	if err != nil || product.RefID == "" {
		c.logger.Error("could not resolve reference id, falling back to product id",
			zap.String("product_id", productID))
		if err == nil {
			err = fmt.Errorf("vtex: product %s has no reference id", productID)
		}
		return productID, err
	}
	return product.RefID, nil
}

// GetSKUByID fetches a catalog SKU by its numeric id.
func (c *Connector) GetSKUByID(ctx context.Context, skuID int64) (*CatalogSKU, error) {
	var sku CatalogSKU
	path := "/api/catalog_system/pvt/sku/stockkeepingunitbyid/" + strconv.FormatInt(skuID, 10)
	if err := c.client.getJSON(ctx, path, nil, &sku); err != nil {
		return nil, err
	}
	return &sku, nil
}

// GetVariations fetches the dimension variations of a product. Lookups are
// best effort: any failure yields an empty result.
func (c *Connector) GetVariations(ctx context.Context, productID string) *Variations {
	var variations Variations
	if err := c.client.getJSON(ctx, "/api/catalog_system/pub/products/variations/"+productID, nil, &variations); err != nil {
		c.logger.Error("error getting variations", zap.String("product_id", productID), zap.Error(err))
		return nil
	}
	return &variations
}

// SearchItemPrices fetches list and base price for a SKU from the pricing
// API. A 404 means the SKU has no price record.
func (c *Connector) SearchItemPrices(ctx context.Context, itemID string) (*ItemPrices, error) {
	c.logger.Info("searching item prices", zap.String("item_id", itemID))
	var prices ItemPrices
	if err := c.client.getJSON(ctx, "/api/pricing/prices/"+itemID, nil, &prices); err != nil {
		return nil, err
	}
	return &prices, nil
}

// SearchItemStock fetches the available (non-reserved) stock for a SKU.
func (c *Connector) SearchItemStock(ctx context.Context, itemID string) (int, error) {
	var inv inventoryResponse
	if err := c.client.getJSON(ctx, "/api/logistics/pvt/inventory/skus/"+itemID, nil, &inv); err != nil {
		return 0, err
	}
	stock := 0
	for _, balance := range inv.Balance {
		stock += balance.TotalQuantity - balance.ReservedQuantity
	}
	if stock < 0 {
		stock = 0
	}
	return stock, nil
}

// UnmaskEmail resolves a marketplace email alias to the real address via
// the conversation tracker. Unmapped aliases and failures return the alias
// unchanged.
func (c *Connector) UnmaskEmail(ctx context.Context, alias string) string {
	if alias == "" {
		return alias
	}
	c.logger.Info("unmasking email alias", zap.String("alias", alias))

	query := url.Values{"an": {c.cfg.AppName}, "alias": {alias}}
	resp, err := c.client.do(ctx, request{
		method: "GET",
		host:   c.cfg.TrackerHost,
		path:   "/api/pvt/emailMapping",
		query:  query,
	})
	if err != nil {
		c.logger.Error("email unmasking failed", zap.String("alias", alias), zap.Error(err))
		return alias
	}

	var mapping struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(resp.Body, &mapping); err != nil || mapping.Email == "" {
		c.logger.Info("alias has no email mapping", zap.String("alias", alias))
		return alias
	}
	return mapping.Email
}

// IsAllowedSeller applies the seller allow-list to an order. Orders without
// seller data always pass.
func (c *Connector) IsAllowedSeller(order *Order) bool {
	if len(c.cfg.Sellers) == 0 || len(order.Sellers) == 0 {
		return true
	}
	for _, seller := range order.Sellers {
		if !slices.Contains(c.cfg.Sellers, strings.ToLower(seller.Name)) {
			c.logger.Info("seller not allowed", zap.String("seller", seller.Name))
			return false
		}
	}
	return true
}

// CategoryTree fetches the public category tree.
func (c *Connector) CategoryTree(ctx context.Context) ([]CategoryNode, error) {
	var tree []CategoryNode
	if err := c.client.getJSON(ctx, "/api/catalog_system/pub/category/tree/10", nil, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// resizedImageRe matches the resize suffix embedded in hosted image ids.
var resizedImageRe = regexp.MustCompile(`(\S+vteximg\.com\.br/arquivos/ids/\d+)-\d+-\d+(/\S+)`)

// NormalizeResizedImageURL strips the resize parameters from a hosted image
// URL so the CRM stores the full-size asset.
func (c *Connector) NormalizeResizedImageURL(imageURL string) string {
	return resizedImageRe.ReplaceAllString(imageURL, "$1$2")
}

// StoreLink joins a store-relative detail path to the public store host.
func (c *Connector) StoreLink(detailPath string) string {
	return strings.TrimRight(c.cfg.StoreURL, "/") + "/" + strings.TrimLeft(detailPath, "/")
}

// platformLinkRe matches platform-hosted product links.
var platformLinkRe = regexp.MustCompile(`(?i)https?://[^/]*\.vtexcommercestable\.com\.br`)

// RewriteStoreLink replaces a platform-hosted link's origin with the public
// store host.
func (c *Connector) RewriteStoreLink(link string) string {
	return platformLinkRe.ReplaceAllString(link, strings.TrimRight(c.cfg.StoreURL, "/"))
}
