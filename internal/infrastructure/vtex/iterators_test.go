package vtex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestConnector(t *testing.T, serverURL string, cfg ConnectorConfig) *Connector {
	t.Helper()
	client, _ := newTestClient(t, serverURL, ClientConfig{})
	if cfg.AppName == "" {
		cfg.AppName = "teststore"
	}
	if cfg.StoreURL == "" {
		cfg.StoreURL = "https://www.teststore.com"
	}
	connector, err := NewConnector(client, cfg, zap.NewNop())
	require.NoError(t, err)
	return connector
}

func collect2[T any](t *testing.T, seq func(func(T, error) bool)) []T {
	t.Helper()
	var out []T
	for v, err := range seq {
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func TestOrderIDsPagesThroughWindows(t *testing.T) {
	// 130 orders in a single 3h window at 100 per page: 2 pages
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		count := 100
		if page == 2 {
			count = 30
		}
		list := make([]map[string]string, count)
		for i := range list {
			list[i] = map[string]string{"orderId": fmt.Sprintf("v%d-%d", page, i)}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"list":   list,
			"paging": map[string]int{"total": 130},
		})
	}))
	defer server.Close()

	connector := newTestConnector(t, server.URL, ConnectorConfig{})

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ids := collect2(t, connector.OrderIDs(context.Background(), OrderListOptions{
		From: from,
		To:   from.Add(3 * time.Hour),
	}))

	assert.Len(t, ids, 130)
	assert.Len(t, requests, 2)
	assert.Contains(t, requests[0], "orderBy=creationDate%2Casc")
	assert.Contains(t, requests[0], "f_status=invoiced")
	assert.Contains(t, requests[0], "per_page=100")
}

func TestOrderIDsSplitsDenseWindows(t *testing.T) {
	// the full window reports more pages than the budget allows; each
	// half reports a page worth of orders
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("f_creationDate")

		total := 50
		if filter == "creationDate:[2024-05-01T00:00:00.000Z TO 2024-05-01T03:00:00.000Z]" {
			total = 500 // 5 pages at 100 per page, budget is 2
		}
		list := make([]map[string]string, 50)
		for i := range list {
			list[i] = map[string]string{"orderId": fmt.Sprintf("v-%d", i)}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"list":   list,
			"paging": map[string]int{"total": total},
		})
	}))
	defer server.Close()

	connector := newTestConnector(t, server.URL, ConnectorConfig{})

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ids := collect2(t, connector.OrderIDs(context.Background(), OrderListOptions{
		From:              from,
		To:                from.Add(3 * time.Hour),
		MaxPagesPerWindow: 2,
	}))

	// the dense window splits into two halves of 50 orders each
	assert.Len(t, ids, 100)
}

func TestProductsPagesEveryCategoryLeaf(t *testing.T) {
	// one leaf category with 257 products at 25 per page: 11 pages
	var searches int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/catalog_system/pub/category/tree/10":
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": 1, "name": "Root", "children": []map[string]any{
					{"id": 7, "name": "Shoes", "children": []any{}},
				}},
			})
		case "/api/catalog_system/pub/products/search":
			searches++
			assert.Equal(t, "C:1/7/", r.URL.Query().Get("fq"))
			from, _ := strconv.Atoi(r.URL.Query().Get("_from"))
			to, _ := strconv.Atoi(r.URL.Query().Get("_to"))

			count := to - from + 1
			if from+count > 257 {
				count = 257 - from
			}
			products := make([]map[string]any, count)
			for i := range products {
				products[i] = map[string]any{"productId": strconv.Itoa(from + i)}
			}
			w.Header().Set("resources", fmt.Sprintf("%d-%d/257", from, to))
			w.WriteHeader(http.StatusPartialContent)
			json.NewEncoder(w).Encode(products)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	connector := newTestConnector(t, server.URL, ConnectorConfig{})

	products := collect2(t, connector.Products(context.Background(), 25))

	assert.Len(t, products, 257)
	assert.Equal(t, 11, searches)
}

func TestCustomerIDsThreadsScrollToken(t *testing.T) {
	var tokens []string
	var ranges []string
	var call int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call++
		tokens = append(tokens, r.URL.Query().Get("_token"))
		ranges = append(ranges, r.Header.Get("REST-Range"))
		assert.Equal(t, "/api/dataentities/CL/scroll", r.URL.Path)
		assert.Equal(t, "id", r.URL.Query().Get("_fields"))
		assert.Equal(t, "updatedIn>2024-05-01", r.URL.Query().Get("_where"))

		count := 2
		if call == 3 {
			count = 1
		}
		entries := make([]map[string]string, count)
		for i := range entries {
			entries[i] = map[string]string{"id": fmt.Sprintf("c%d-%d", call, i)}
		}
		w.Header().Set("X-VTEX-MD-TOKEN", fmt.Sprintf("tok-%d", call))
		w.Header().Set("REST-Content-Total", "5")
		json.NewEncoder(w).Encode(entries)
	}))
	defer server.Close()

	connector := newTestConnector(t, server.URL, ConnectorConfig{})

	since := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ids := collect2(t, connector.CustomerIDs(context.Background(), since, 2))

	assert.Len(t, ids, 5)
	assert.Equal(t, []string{"", "tok-1", "tok-2"}, tokens)
	assert.Equal(t, []string{"resources=0-2", "resources=0-2", "resources=0-2"}, ranges)
}

func TestCustomerIDsScrollsWithoutTotalHeader(t *testing.T) {
	var call int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call++
		// no REST-Content-Total; the scroll ends at the empty page
		w.Header().Set("X-VTEX-MD-TOKEN", fmt.Sprintf("tok-%d", call))
		if call > 2 {
			w.Write([]byte(`[]`))
			return
		}
		entries := []map[string]string{
			{"id": fmt.Sprintf("c%d-0", call)},
			{"id": fmt.Sprintf("c%d-1", call)},
		}
		json.NewEncoder(w).Encode(entries)
	}))
	defer server.Close()

	connector := newTestConnector(t, server.URL, ConnectorConfig{})

	since := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ids := collect2(t, connector.CustomerIDs(context.Background(), since, 2))

	assert.Len(t, ids, 4)
	assert.Equal(t, 3, call)
}

func TestSubscriptionsStopsAtTotalCount(t *testing.T) {
	var pages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rns/pub/subscriptions", r.URL.Path)
		pages = append(pages, r.URL.Query().Get("page"))

		count := 2
		if len(pages) == 2 {
			count = 1
		}
		subs := make([]map[string]any, count)
		for i := range subs {
			subs[i] = map[string]any{"id": fmt.Sprintf("s%d", i)}
		}
		w.Header().Set("X-Total-Count", "3")
		json.NewEncoder(w).Encode(subs)
	}))
	defer server.Close()

	connector := newTestConnector(t, server.URL, ConnectorConfig{})

	subscriptions := collect2(t, connector.Subscriptions(context.Background(), 2))

	assert.Len(t, subscriptions, 3)
	assert.Equal(t, []string{"1", "2"}, pages)
}

func TestCategoryLeaves(t *testing.T) {
	tree := []CategoryNode{
		{ID: 1, Name: "Root", Children: []CategoryNode{
			{ID: 2, Name: "Shoes"},
			{ID: 3, Name: "Bags", Children: []CategoryNode{
				{ID: 9, Name: "Backpacks"},
			}},
		}},
		{ID: 4, Name: "Sale"},
	}

	leaves := CategoryLeaves(tree)

	require.Len(t, leaves, 3)
	assert.Equal(t, CategoryLeaf{ID: "2", Name: "Shoes", Path: "1/2/"}, leaves[0])
	assert.Equal(t, CategoryLeaf{ID: "9", Name: "Backpacks", Path: "1/3/9/"}, leaves[1])
	assert.Equal(t, CategoryLeaf{ID: "4", Name: "Sale", Path: "4/"}, leaves[2])
}

func TestFlattenCategoryTree(t *testing.T) {
	tree := []CategoryNode{
		{ID: 1, Name: "Root", URL: "https://host/root", Children: []CategoryNode{
			{ID: 2, Name: "Shoes", URL: "https://host/root/shoes"},
		}},
	}

	flat := FlattenCategoryTree(tree)

	require.Len(t, flat, 2)
	require.Len(t, flat["2"], 2)
	assert.Equal(t, "Root", flat["2"][0].Name)
	assert.Equal(t, "Shoes", flat["2"][1].Name)
}

func TestNormalizeResizedImageURL(t *testing.T) {
	connector := newTestConnector(t, "http://unused", ConnectorConfig{})

	got := connector.NormalizeResizedImageURL("https://store.vteximg.com.br/arquivos/ids/155242-292-292/shirt.jpg")
	assert.Equal(t, "https://store.vteximg.com.br/arquivos/ids/155242/shirt.jpg", got)

	untouched := "https://store.vteximg.com.br/arquivos/ids/155242/shirt.jpg"
	assert.Equal(t, untouched, connector.NormalizeResizedImageURL(untouched))
}

func TestRewriteStoreLink(t *testing.T) {
	connector := newTestConnector(t, "http://unused", ConnectorConfig{
		StoreURL: "https://www.teststore.com",
	})

	got := connector.RewriteStoreLink("https://teststore.vtexcommercestable.com.br/shirt/p")
	assert.Equal(t, "https://www.teststore.com/shirt/p", got)
}
