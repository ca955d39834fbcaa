package orders

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/application/pipeline"
	"github.com/woowup/vtex-connector/internal/domain/crm"
	"github.com/woowup/vtex-connector/internal/infrastructure/vtex"
)

// marketplaceEndpointRe extracts the account name from a marketplace
// services endpoint's trailing an= parameter.
var marketplaceEndpointRe = regexp.MustCompile(`an=(\w+)$`)

// creationDateLayouts covers the timestamp shapes the OMS emits.
var creationDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.9999999Z07:00",
	"2006-01-02T15:04:05",
}

// MapperConfig tunes the order mapper.
type MapperConfig struct {
	Branch string
	// Importing marks historical runs: the approval time is backdated
	// to the creation time instead of the import moment.
	Importing bool
	// EmptyPaymentType is reported when a payment carries no group.
	EmptyPaymentType string
}

// Mapper translates OMS orders into CRM purchases.
type Mapper struct {
	vtex       *vtex.Connector
	tracker    *Tracker
	categories map[string][]crm.Category
	typeSolver crm.PaymentTypeSolver
	cfg        MapperConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewMapper creates an order mapper. categories maps category ids to
// their full paths and may be nil.
func NewMapper(
	connector *vtex.Connector,
	tracker *Tracker,
	categories map[string][]crm.Category,
	cfg MapperConfig,
	logger *zap.Logger,
) *Mapper {
	return &Mapper{
		vtex:       connector,
		tracker:    tracker,
		categories: categories,
		typeSolver: crm.PaymentTypeSolver{EmptyDefault: cfg.EmptyPaymentType},
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Map builds the CRM purchase for one order.
func (m *Mapper) Map(ctx context.Context, order *vtex.Order) ([]*crm.Order, error) {
	m.tracker.OrderSeen()

	createTime := m.normalizeCreationDate(order.CreationDate)
	approvedTime := m.now().Format(time.RFC3339)
	if m.cfg.Importing {
		approvedTime = createTime
	}

	detail, err := m.buildDetail(ctx, order)
	if err != nil {
		return nil, err
	}

	purchase := &crm.Order{
		InvoiceNumber:  order.OrderID,
		Channel:        crm.ChannelWeb,
		CreateTime:     createTime,
		ApprovedTime:   approvedTime,
		BranchName:     m.orderBranch(order),
		Customer:       m.buildCustomer(ctx, order),
		PurchaseDetail: detail,
		Payment:        m.buildPayments(order),
		Prices:         buildPrices(order.Totals),
		Seller:         buildSeller(order.CallCenterOperatorData),
	}

	if purchase.Customer != nil {
		purchase.Document = purchase.Customer.Document
		purchase.Email = purchase.Customer.Email
	}

	purchase.Clean()
	return []*crm.Order{purchase}, nil
}

func (m *Mapper) normalizeCreationDate(raw string) string {
	for _, layout := range creationDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(time.RFC3339)
		}
	}
	m.logger.Warn("unparseable creation date", zap.String("creation_date", raw))
	return raw
}

// orderBranch resolves the reporting branch: the marketplace name when
// present, otherwise the account embedded in the marketplace services
// endpoint, otherwise the configured branch. The store's own account name
// always maps back to the configured branch.
func (m *Mapper) orderBranch(order *vtex.Order) string {
	branch := ""
	if order.Marketplace != nil && order.Marketplace.Name != "" {
		branch = order.Marketplace.Name
	} else if match := marketplaceEndpointRe.FindStringSubmatch(order.MarketplaceServicesEndpoint); match != nil {
		branch = match[1]
	} else {
		branch = m.cfg.Branch
	}

	if branch == m.vtex.AppName() {
		return m.cfg.Branch
	}
	return branch
}

// buildCustomer extracts the buyer embedded in the order.
func (m *Mapper) buildCustomer(ctx context.Context, order *vtex.Order) *crm.Customer {
	profile := order.ClientProfileData
	if profile == nil {
		return nil
	}

	customer := &crm.Customer{
		Email:        m.vtex.UnmaskEmail(ctx, profile.Email),
		FirstName:    crm.NormalizeName(profile.FirstName),
		LastName:     crm.NormalizeName(profile.LastName),
		DocumentType: profile.DocumentType,
		Document:     profile.Document,
		Telephone:    profile.Phone,
	}

	if order.ShippingData != nil && order.ShippingData.Address != nil {
		address := order.ShippingData.Address
		customer.Postcode = address.PostalCode
		customer.City = crm.NormalizeName(address.City)
		customer.State = crm.NormalizeName(address.State)
		customer.Country = address.Country
		customer.Street = crm.NormalizeName(crm.JoinStreet(address.Street, address.Number))
	}
	return customer
}

// buildDetail maps the order items. Items whose product reference cannot
// be resolved fall back to the raw product id and are recorded as
// cataloging problems; crossing the cataloging threshold aborts the run.
func (m *Mapper) buildDetail(ctx context.Context, order *vtex.Order) ([]crm.PurchaseItem, error) {
	detail := make([]crm.PurchaseItem, 0, len(order.Items))
	for _, item := range order.Items {
		sku := item.RefID
		if sku == "" {
			resolved, err := m.vtex.ResolveProductRef(ctx, item.ProductID)
			if err != nil {
				if trackErr := m.tracker.BadProduct(ctx, item.ProductID); trackErr != nil {
					return nil, pipeline.Abort(trackErr)
				}
			}
			sku = resolved
		}

		line := crm.PurchaseItem{
			SKU:          sku,
			ProductName:  item.Name,
			Quantity:     item.Quantity,
			UnitPrice:    crm.FromMinorUnits(item.Price),
			URL:          m.vtex.StoreLink(item.DetailURL),
			ImageURL:     item.ImageURL,
			ThumbnailURL: m.vtex.NormalizeResizedImageURL(item.ImageURL),
			Variations:   m.buildVariations(ctx, item),
			Category:     m.itemCategory(item),
		}
		detail = append(detail, line)
	}
	return detail, nil
}

// buildVariations matches the item against the product's dimension table.
func (m *Mapper) buildVariations(ctx context.Context, item vtex.OrderItem) []crm.Variation {
	table := m.vtex.GetVariations(ctx, item.ProductID)
	if table == nil || len(table.Dimensions) == 0 {
		return nil
	}

	var variations []crm.Variation
	for _, sku := range table.SKUs {
		if sku.SKU.String() != item.ID {
			continue
		}
		for _, dimension := range table.Dimensions {
			if value, ok := sku.Dimensions[dimension]; ok {
				variations = append(variations, crm.Variation{Name: dimension, Value: value})
			}
		}
	}
	return variations
}

// itemCategory resolves the deepest category of the item's id path.
func (m *Mapper) itemCategory(item vtex.OrderItem) []crm.Category {
	if item.AdditionalInfo == nil || item.AdditionalInfo.CategoriesIDs == "" {
		return nil
	}
	path := strings.Split(strings.Trim(item.AdditionalInfo.CategoriesIDs, "/"), "/")
	leafID := path[len(path)-1]
	return m.categories[leafID]
}

// buildPayments flattens the order's transactions into CRM payments.
// Card prefixes are only forwarded for payment services that actually
// expose real card data.
func (m *Mapper) buildPayments(order *vtex.Order) []crm.Payment {
	if order.PaymentData == nil {
		return nil
	}

	var payments []crm.Payment
	for _, transaction := range order.PaymentData.Transactions {
		for _, p := range transaction.Payments {
			payment := crm.Payment{
				Type:  m.typeSolver.Solve(p.Group),
				Total: crm.FromMinorUnits(p.Value),
				Brand: strings.TrimSpace(p.PaymentSystemName),
			}
			if p.Installments > 0 {
				payment.Installments = p.Installments
			}
			if crm.CardTrackedService(p.PaymentSystemName) {
				payment.FirstDigits = strings.TrimSpace(p.FirstDigits)
			}
			payments = append(payments, payment)
		}
	}
	return payments
}

// buildPrices folds the totals breakdown. Discounts arrive negative and
// are reported as a positive amount; the total is gross minus discount.
func buildPrices(totals []vtex.Total) *crm.Prices {
	prices := &crm.Prices{}
	for _, total := range totals {
		value := crm.FromMinorUnits(total.Value)
		switch total.ID {
		case "Items":
			prices.Gross = value
		case "Discounts":
			prices.Discount = value.Abs()
		case "Shipping":
			prices.Shipping = value
		case "Tax":
			prices.Tax = value
		}
	}
	prices.Total = prices.Gross.Sub(prices.Discount)
	return prices
}

func buildSeller(operator *vtex.CallCenterOperator) *crm.Seller {
	if operator == nil || operator.Email == "" {
		return nil
	}
	return &crm.Seller{Email: operator.Email, Name: operator.UserName}
}
