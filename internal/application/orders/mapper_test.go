package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/domain/account"
	"github.com/woowup/vtex-connector/internal/domain/crm"
	"github.com/woowup/vtex-connector/internal/infrastructure/vtex"
)

// mapperFixture provides a mapper over a fake platform API.
type mapperFixture struct {
	mapper  *Mapper
	tracker *Tracker
}

func newOrderMapperFixture(t *testing.T, cfg MapperConfig) *mapperFixture {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/pvt/emailMapping":
			if r.URL.Query().Get("alias") == "abc123@ct.vtex.com.br" {
				json.NewEncoder(w).Encode(map[string]string{"email": "real@example.com"})
				return
			}
			w.Write([]byte(`{}`))
		case strings.HasPrefix(r.URL.Path, "/api/catalog_system/pub/products/variations/"):
			if strings.HasSuffix(r.URL.Path, "/55") {
				json.NewEncoder(w).Encode(map[string]any{
					"dimensions": []string{"Talle", "Color"},
					"skus": []map[string]any{
						{"sku": 901, "dimensions": map[string]string{"Talle": "M", "Color": "Azul"}},
						{"sku": 902, "dimensions": map[string]string{"Talle": "L", "Color": "Azul"}},
					},
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{})
		case strings.HasPrefix(r.URL.Path, "/api/catalog_system/pvt/products/ProductGet/"):
			if strings.HasSuffix(r.URL.Path, "/77") {
				json.NewEncoder(w).Encode(map[string]any{"Id": 77, "RefId": "REF-77"})
				return
			}
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	t.Cleanup(server.Close)

	client := vtex.NewClient(vtex.ClientConfig{
		BaseURL:         server.URL,
		RateLimitPerSec: 10000,
	}, zap.NewNop())
	connector, err := vtex.NewConnector(client, vtex.ConnectorConfig{
		AppName:     "teststore",
		StoreURL:    "https://www.teststore.com",
		TrackerHost: server.URL,
	}, zap.NewNop())
	require.NoError(t, err)

	if cfg.Branch == "" {
		cfg.Branch = "Tienda Web"
	}
	tracker := NewTracker(account.Settings{ID: 100}, nil, zap.NewNop())
	categories := map[string][]crm.Category{
		"12": {{ID: "3", Name: "Ropa"}, {ID: "12", Name: "Remeras"}},
	}
	mapper := NewMapper(connector, tracker, categories, cfg, zap.NewNop())
	mapper.now = func() time.Time {
		return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	}
	return &mapperFixture{mapper: mapper, tracker: tracker}
}

func sampleOrder() *vtex.Order {
	return &vtex.Order{
		OrderID:      "v502-1",
		CreationDate: "2024-05-01T14:30:00.0000000+00:00",
		ClientProfileData: &vtex.ClientProfile{
			Email:        "abc123@ct.vtex.com.br",
			FirstName:    "ANA",
			LastName:     "pérez",
			Document:     "30111222",
			DocumentType: "dni",
			Phone:        "+5435110000",
		},
		ShippingData: &vtex.ShippingData{Address: &vtex.Address{
			PostalCode: "5000",
			City:       "córdoba",
			State:      "córdoba",
			Country:    "ARG",
			Street:     "san martín",
			Number:     "120",
		}},
		Items: []vtex.OrderItem{{
			ID:             "901",
			ProductID:      "55",
			RefID:          "REM-001",
			Name:           "Remera Azul",
			Quantity:       2,
			Price:          159900,
			DetailURL:      "/remera-azul/p",
			ImageURL:       "https://store.vteximg.com.br/arquivos/ids/155242-292-292/remera.jpg",
			AdditionalInfo: &vtex.AdditionalInfo{CategoriesIDs: "/3/12/"},
		}},
		PaymentData: &vtex.PaymentData{Transactions: []vtex.Transaction{{
			Payments: []vtex.OrderPayment{{
				Group:             "creditCard",
				PaymentSystemName: "Visa",
				Value:             319800,
				Installments:      3,
				FirstDigits:       "450799",
			}},
		}}},
		Totals: []vtex.Total{
			{ID: "Items", Value: 319800},
			{ID: "Discounts", Value: -19800},
			{ID: "Shipping", Value: 5000},
			{ID: "Tax", Value: 0},
		},
		MarketplaceServicesEndpoint: "http://portal.vtexcommercestable.com.br/api/oms?an=teststore",
	}
}

func TestMapperBuildsPurchase(t *testing.T) {
	f := newOrderMapperFixture(t, MapperConfig{})

	purchases, err := f.mapper.Map(context.Background(), sampleOrder())
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	p := purchases[0]

	assert.Equal(t, "v502-1", p.InvoiceNumber)
	assert.Equal(t, crm.ChannelWeb, p.Channel)
	assert.Equal(t, "2024-05-01T14:30:00Z", p.CreateTime)
	assert.Equal(t, "2024-05-10T12:00:00Z", p.ApprovedTime)
	// the endpoint's account is the store itself, so the configured branch wins
	assert.Equal(t, "Tienda Web", p.BranchName)

	require.NotNil(t, p.Customer)
	assert.Equal(t, "real@example.com", p.Customer.Email)
	assert.Equal(t, "Ana", p.Customer.FirstName)
	assert.Equal(t, "Pérez", p.Customer.LastName)
	assert.Equal(t, "+5435110000", p.Customer.Telephone)
	assert.Equal(t, "San Martín 120", p.Customer.Street)
	assert.Equal(t, "30111222", p.Document)
	assert.Equal(t, "real@example.com", p.Email)

	require.Len(t, p.PurchaseDetail, 1)
	item := p.PurchaseDetail[0]
	assert.Equal(t, "REM-001", item.SKU)
	assert.Equal(t, "Remera Azul", item.ProductName)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, "1599", item.UnitPrice.String())
	assert.Equal(t, "https://www.teststore.com/remera-azul/p", item.URL)
	assert.Equal(t, "https://store.vteximg.com.br/arquivos/ids/155242/remera.jpg", item.ThumbnailURL)
	assert.Equal(t, []crm.Variation{{Name: "Talle", Value: "M"}, {Name: "Color", Value: "Azul"}}, item.Variations)
	require.Len(t, item.Category, 2)
	assert.Equal(t, "Remeras", item.Category[1].Name)

	require.Len(t, p.Payment, 1)
	payment := p.Payment[0]
	assert.Equal(t, crm.PaymentTypeCredit, payment.Type)
	assert.Equal(t, "3198", payment.Total.String())
	assert.Equal(t, "Visa", payment.Brand)
	assert.Equal(t, 3, payment.Installments)
	assert.Equal(t, "450799", payment.FirstDigits)

	require.NotNil(t, p.Prices)
	assert.Equal(t, "3198", p.Prices.Gross.String())
	assert.Equal(t, "198", p.Prices.Discount.String())
	assert.Equal(t, "50", p.Prices.Shipping.String())
	assert.Equal(t, "3000", p.Prices.Total.String())
}

func TestMapperImportingBackdatesApproval(t *testing.T) {
	f := newOrderMapperFixture(t, MapperConfig{Importing: true})

	purchases, err := f.mapper.Map(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, purchases[0].CreateTime, purchases[0].ApprovedTime)
}

func TestMapperBranchFromMarketplace(t *testing.T) {
	f := newOrderMapperFixture(t, MapperConfig{})

	order := sampleOrder()
	order.Marketplace = &vtex.Marketplace{Name: "mercadolibre"}
	purchases, err := f.mapper.Map(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "mercadolibre", purchases[0].BranchName)
}

func TestMapperBranchFromEndpoint(t *testing.T) {
	f := newOrderMapperFixture(t, MapperConfig{})

	order := sampleOrder()
	order.MarketplaceServicesEndpoint = "http://portal.vtexcommercestable.com.br/api/oms?an=otherstore"
	purchases, err := f.mapper.Map(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "otherstore", purchases[0].BranchName)
}

func TestMapperSuppressesCardDigitsForWallets(t *testing.T) {
	f := newOrderMapperFixture(t, MapperConfig{})

	order := sampleOrder()
	order.PaymentData.Transactions[0].Payments[0] = vtex.OrderPayment{
		Group:             "mercadopago",
		PaymentSystemName: "mercadopago",
		Value:             319800,
		FirstDigits:       "450799",
	}
	purchases, err := f.mapper.Map(context.Background(), order)
	require.NoError(t, err)

	payment := purchases[0].Payment[0]
	assert.Equal(t, crm.PaymentTypeMercadoPago, payment.Type)
	assert.Empty(t, payment.FirstDigits)
	assert.Equal(t, "mercadopago", payment.Brand)
}

func TestMapperResolvesMissingReference(t *testing.T) {
	f := newOrderMapperFixture(t, MapperConfig{})

	order := sampleOrder()
	order.Items[0].RefID = ""
	order.Items[0].ProductID = "77"
	purchases, err := f.mapper.Map(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "REF-77", purchases[0].PurchaseDetail[0].SKU)
}

func TestMapperFallsBackToProductID(t *testing.T) {
	f := newOrderMapperFixture(t, MapperConfig{})

	order := sampleOrder()
	order.Items[0].RefID = ""
	order.Items[0].ProductID = "404404" // unknown in the catalog
	purchases, err := f.mapper.Map(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "404404", purchases[0].PurchaseDetail[0].SKU)
}

func TestBuildPricesTotalIsGrossMinusDiscount(t *testing.T) {
	prices := buildPrices([]vtex.Total{
		{ID: "Items", Value: 10000},
		{ID: "Discounts", Value: -500},
	})
	assert.Equal(t, "100", prices.Gross.String())
	assert.Equal(t, "5", prices.Discount.String())
	assert.Equal(t, "95", prices.Total.String())
}
