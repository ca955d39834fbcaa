package orders

import (
	"context"
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

// crmHandler fakes the CRM endpoints an order upload touches.
func crmHandler(t *testing.T, createStatus int, createBody string, updateStatus int, updateBody string, requests *[]string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*requests = append(*requests, r.Method+" "+r.URL.Path)
		switch r.Method + " " + r.URL.Path {
		case "GET /multiusers/exist":
			return // buyer exists
		case "PUT /multiusers":
			return
		case "POST /purchases":
			w.WriteHeader(createStatus)
			w.Write([]byte(createBody))
		case "PUT /purchases":
			w.WriteHeader(updateStatus)
			w.Write([]byte(updateBody))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
}

func sampleUpload() *crm.Order {
	return &crm.Order{
		InvoiceNumber: "v502-1",
		Customer:      &crm.Customer{Email: "ana@example.com"},
	}
}

func TestUploaderCreatesPurchase(t *testing.T) {
	var requests []string
	server := httptest.NewServer(crmHandler(t, http.StatusCreated, `{}`, 0, "", &requests))
	defer server.Close()

	uploader := NewUploader(crmapi.NewClient(crmapi.Config{Host: server.URL, APIKey: "k"}, zap.NewNop()), true, zap.NewNop())

	result, err := uploader.Upload(context.Background(), sampleUpload())
	require.NoError(t, err)
	assert.Equal(t, pipeline.Created, result)
	// the buyer goes first
	assert.Equal(t, []string{"GET /multiusers/exist", "PUT /multiusers", "POST /purchases"}, requests)
}

func TestUploaderUpdatesDuplicates(t *testing.T) {
	var requests []string
	server := httptest.NewServer(crmHandler(t,
		http.StatusBadRequest, `{"code":"duplicated_purchase_number","message":"dup"}`,
		http.StatusOK, `{}`, &requests))
	defer server.Close()

	uploader := NewUploader(crmapi.NewClient(crmapi.Config{Host: server.URL, APIKey: "k"}, zap.NewNop()), true, zap.NewNop())

	result, err := uploader.Upload(context.Background(), sampleUpload())
	require.NoError(t, err)
	assert.Equal(t, pipeline.Duplicated, result)
	assert.Contains(t, requests, "PUT /purchases")

	// the refresh must not hide the duplicate from the run counters
	var stats pipeline.RunStats[crm.Order]
	stats.Add(result, nil)
	assert.Equal(t, 1, stats.Duplicated)
	assert.Equal(t, 0, stats.Updated)
}

func TestUploaderCountsDuplicatesWithoutUpdating(t *testing.T) {
	var requests []string
	server := httptest.NewServer(crmHandler(t,
		http.StatusBadRequest, `{"code":"duplicated_purchase_number","message":"dup"}`,
		0, "", &requests))
	defer server.Close()

	uploader := NewUploader(crmapi.NewClient(crmapi.Config{Host: server.URL, APIKey: "k"}, zap.NewNop()), false, zap.NewNop())

	result, err := uploader.Upload(context.Background(), sampleUpload())
	require.NoError(t, err)
	assert.Equal(t, pipeline.Duplicated, result)
	assert.NotContains(t, requests, "PUT /purchases")
}

func TestUploaderToleratesForeignDuplicates(t *testing.T) {
	// updating a duplicate owned by another customer is a benign skip
	var requests []string
	server := httptest.NewServer(crmHandler(t,
		http.StatusBadRequest, `{"code":"duplicated_purchase_number","message":"dup"}`,
		http.StatusBadRequest, `{"code":"user_not_found","message":"other owner"}`, &requests))
	defer server.Close()

	uploader := NewUploader(crmapi.NewClient(crmapi.Config{Host: server.URL, APIKey: "k"}, zap.NewNop()), true, zap.NewNop())

	result, err := uploader.Upload(context.Background(), sampleUpload())
	require.NoError(t, err)
	assert.Equal(t, pipeline.Duplicated, result)
}

func TestUploaderFailsOnUnknownBuyer(t *testing.T) {
	var requests []string
	server := httptest.NewServer(crmHandler(t,
		http.StatusBadRequest, `{"code":"user_not_found","message":"no user"}`,
		0, "", &requests))
	defer server.Close()

	uploader := NewUploader(crmapi.NewClient(crmapi.Config{Host: server.URL, APIKey: "k"}, zap.NewNop()), true, zap.NewNop())

	result, err := uploader.Upload(context.Background(), sampleUpload())
	assert.Equal(t, pipeline.Failed, result)
	assert.True(t, crmapi.IsUserNotFound(err))
}

func TestUploaderReportsValidationErrors(t *testing.T) {
	var requests []string
	server := httptest.NewServer(crmHandler(t,
		http.StatusBadRequest, `{"code":"validation_error","message":"bad","payload":{"errors":["price missing","sku missing"]}}`,
		0, "", &requests))
	defer server.Close()

	uploader := NewUploader(crmapi.NewClient(crmapi.Config{Host: server.URL, APIKey: "k"}, zap.NewNop()), true, zap.NewNop())

	result, err := uploader.Upload(context.Background(), sampleUpload())
	assert.Equal(t, pipeline.Failed, result)
	assert.Equal(t, "price missing;sku missing", crmapi.ErrorText(err))
}
