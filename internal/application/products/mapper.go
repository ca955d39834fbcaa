package products

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/application/pipeline"
	"github.com/woowup/vtex-connector/internal/domain/crm"
	"github.com/woowup/vtex-connector/internal/infrastructure/vtex"
)

// specNameRe keeps letters, spaces and Spanish accented characters;
// everything else is dropped before spaces become underscores.
var specNameRe = regexp.MustCompile(`[^a-zA-Z áéíóúÁÉÍÓÚñÑ]`)

// ChildrenMapper fans a catalog base product out into one CRM product per
// SKU that carries a stable reference id.
type ChildrenMapper struct {
	vtex       *vtex.Connector
	categories map[string][]crm.Category
	logger     *zap.Logger
}

var _ pipeline.Mapper[vtex.BaseProduct, crm.Product] = (*ChildrenMapper)(nil)

// NewChildrenMapper creates a per-SKU fan-out mapper. categories is the
// flattened category tree keyed by category id, and may be nil.
func NewChildrenMapper(connector *vtex.Connector, categories map[string][]crm.Category, logger *zap.Logger) *ChildrenMapper {
	return &ChildrenMapper{vtex: connector, categories: categories, logger: logger}
}

// Map builds one product per referenced SKU. Items without a reference id
// are skipped.
func (m *ChildrenMapper) Map(ctx context.Context, source *vtex.BaseProduct) ([]*crm.Product, error) {
	var products []*crm.Product
	for _, item := range source.Items {
		sku := item.Reference()
		if sku == "" {
			m.logger.Info("skipping item without reference id",
				zap.String("product_id", source.ProductID),
				zap.String("item_id", item.ItemID))
			continue
		}

		product := m.baseFields(source)
		product.SKU = sku
		product.Name = item.Name
		product.Available = true
		m.fillItemFields(ctx, product, &item)

		product.Clean()
		products = append(products, product)
	}
	return products, nil
}

// baseFields builds the per-product fields every fan-out element shares.
func (m *ChildrenMapper) baseFields(source *vtex.BaseProduct) *crm.Product {
	product := &crm.Product{
		Brand:            source.Brand,
		Description:      crm.StripHTML(source.Description),
		URL:              m.vtex.RewriteStoreLink(source.Link),
		BaseName:         source.ProductName,
		ReleaseDate:      source.ReleaseDate,
		CustomAttributes: specAttributes(source),
	}
	if category, ok := m.categories[strconv.FormatInt(source.CategoryID, 10)]; ok {
		product.Category = category
	}
	return product
}

// fillItemFields copies the SKU-level figures: image, stock and prices,
// falling back to the pricing API when the embedded offer has gaps.
func (m *ChildrenMapper) fillItemFields(ctx context.Context, product *crm.Product, item *vtex.SearchItem) {
	if len(item.Images) > 0 {
		imageURL := m.vtex.NormalizeResizedImageURL(item.Images[0].ImageURL)
		product.ImageURL = imageURL
		product.ThumbnailURL = imageURL
	}
	product.Stock = itemStock(item)
	product.Price = m.itemListPrice(ctx, item)
	product.OfferPrice = m.itemPrice(ctx, item)
}

// itemStock reads the available quantity from the first seller's offer.
func itemStock(item *vtex.SearchItem) *int {
	offer := item.Offer()
	if offer == nil {
		return nil
	}
	return offer.AvailableQuantity
}

// itemPrice reads the selling price from the embedded offer, falling back
// to the pricing API's base price.
func (m *ChildrenMapper) itemPrice(ctx context.Context, item *vtex.SearchItem) *decimal.Decimal {
	if offer := item.Offer(); offer != nil && offer.Price != nil {
		return offer.Price
	}
	prices, err := m.vtex.SearchItemPrices(ctx, item.ItemID)
	if err != nil {
		m.logger.Error("could not fetch item prices", zap.String("item_id", item.ItemID), zap.Error(err))
		return nil
	}
	return prices.BasePrice
}

// itemListPrice reads the list price from the embedded offer, falling back
// to the pricing API. A SKU without any list price reports zero.
func (m *ChildrenMapper) itemListPrice(ctx context.Context, item *vtex.SearchItem) *decimal.Decimal {
	if offer := item.Offer(); offer != nil && offer.ListPrice != nil {
		return offer.ListPrice
	}
	prices, err := m.vtex.SearchItemPrices(ctx, item.ItemID)
	if err == nil && prices.ListPrice != nil {
		return prices.ListPrice
	}
	zero := decimal.Zero
	return &zero
}

// specAttributes converts a product's specifications into custom
// attributes. Keys are sanitized to letters and underscores; values lose
// any markup.
func specAttributes(source *vtex.BaseProduct) map[string]any {
	if len(source.AllSpecifications) == 0 {
		return nil
	}
	attrs := make(map[string]any, len(source.AllSpecifications))
	for _, name := range source.AllSpecifications {
		key := specNameRe.ReplaceAllString(name, "")
		key = strings.ReplaceAll(strings.TrimSpace(key), " ", "_")
		if key == "" {
			continue
		}
		attrs[key] = crm.StripHTML(source.SpecValue(name))
	}
	return attrs
}

// ParentMapper maps a catalog base product into a single CRM product built
// from its first SKU, with the stock of every SKU summed.
type ParentMapper struct {
	children *ChildrenMapper
}

var _ pipeline.Mapper[vtex.BaseProduct, crm.Product] = (*ParentMapper)(nil)

// NewParentMapper creates a parent-product mapper.
func NewParentMapper(connector *vtex.Connector, categories map[string][]crm.Category, logger *zap.Logger) *ParentMapper {
	return &ParentMapper{children: NewChildrenMapper(connector, categories, logger)}
}

// Map builds the single parent product, or nothing when the first SKU has
// no reference id.
func (m *ParentMapper) Map(ctx context.Context, source *vtex.BaseProduct) ([]*crm.Product, error) {
	if len(source.Items) == 0 || source.Items[0].Reference() == "" {
		return nil, nil
	}
	item := source.Items[0]

	product := m.children.baseFields(source)
	product.SKU = item.Reference()
	product.Name = item.Name
	product.Available = true
	m.children.fillItemFields(ctx, product, &item)

	stock := 0
	for _, it := range source.Items {
		if s := itemStock(&it); s != nil {
			stock += *s
		}
	}
	product.Stock = &stock

	product.Clean()
	return []*crm.Product{product}, nil
}
