package products

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/application/pipeline"
	"github.com/woowup/vtex-connector/internal/domain/crm"
	"github.com/woowup/vtex-connector/internal/infrastructure/crmapi"
)

func newTestUploader(t *testing.T, handler http.Handler) *Uploader {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewUploader(crmapi.NewClient(crmapi.Config{Host: server.URL, APIKey: "k"}, zap.NewNop()), zap.NewNop())
}

func TestUploaderUpdatesKnownSKU(t *testing.T) {
	var requests []string
	uploader := newTestUploader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Method+" "+r.URL.Path)
	}))

	result, err := uploader.Upload(context.Background(), &crm.Product{SKU: "REF-901"})
	require.NoError(t, err)
	assert.Equal(t, pipeline.Updated, result)
	assert.Equal(t, []string{"PUT /products/REF-901"}, requests)
	assert.Equal(t, []string{"REF-901"}, uploader.SeenSKUs())
}

func TestUploaderCreatesUnknownSKU(t *testing.T) {
	var requests []string
	uploader := newTestUploader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	result, err := uploader.Upload(context.Background(), &crm.Product{SKU: "REF-902"})
	require.NoError(t, err)
	assert.Equal(t, pipeline.Created, result)
	assert.Equal(t, []string{"PUT /products/REF-902", "POST /products"}, requests)
}

func TestUploaderFailsOnRejectedPayload(t *testing.T) {
	uploader := newTestUploader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"validation_error","message":"bad","payload":{"errors":["name missing"]}}`))
	}))

	result, err := uploader.Upload(context.Background(), &crm.Product{SKU: "REF-903"})
	require.Error(t, err)
	assert.Equal(t, pipeline.Failed, result)
	assert.Equal(t, "name missing", crmapi.ErrorText(err))
	assert.Empty(t, uploader.SeenSKUs())
}

func TestUploaderSkipsProductWithoutSKU(t *testing.T) {
	uploader := newTestUploader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}))

	result, err := uploader.Upload(context.Background(), &crm.Product{Name: "sin sku"})
	require.NoError(t, err)
	assert.Equal(t, pipeline.Skipped, result)
}

func TestDisableMissingFlagsVanishedProducts(t *testing.T) {
	var updated []string
	page := 0
	uploader := newTestUploader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/products":
			assert.Equal(t, "true", r.URL.Query().Get("available"))
			if page > 0 {
				json.NewEncoder(w).Encode([]any{})
				return
			}
			page++
			json.NewEncoder(w).Encode([]map[string]any{
				{"sku": "REF-901", "name": "Remera M"},
				{"sku": "REF-OLD", "name": "Discontinuada"},
			})
		case r.Method == http.MethodPut:
			updated = append(updated, r.URL.Path)
			var product crm.Product
			require.NoError(t, json.NewDecoder(r.Body).Decode(&product))
			assert.False(t, product.Available)
			require.NotNil(t, product.Stock)
			assert.Equal(t, 0, *product.Stock)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	require.NoError(t, uploader.DisableMissing(context.Background(), []string{"REF-901"}))
	assert.Equal(t, []string{"/products/REF-OLD"}, updated)
}
