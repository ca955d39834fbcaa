package vtex

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/domain/crm"
)

// minOrderWindow bounds adaptive window splitting: a window this small is
// paged through even when it exceeds the page budget.
const minOrderWindow = 15 * time.Minute

const orderDateLayout = "2006-01-02T15:04:05.000Z"

// OrderListOptions tunes the order id listing.
type OrderListOptions struct {
	From              time.Time
	To                time.Time
	Window            time.Duration // size of each date partition
	PerPage           int
	MaxPagesPerWindow int // windows paging past this are split in half
}

func (o *OrderListOptions) applyDefaults() {
	if o.Window <= 0 {
		o.Window = 3 * time.Hour
	}
	if o.PerPage <= 0 {
		o.PerPage = 100
	}
	if o.MaxPagesPerWindow <= 0 {
		o.MaxPagesPerWindow = 30
	}
}

// OrderIDs streams the ids of all orders created in [From, To]. The range
// is partitioned into fixed windows so the listing endpoint's page depth
// stays bounded; windows that would still page too deep are split in half
// until they fit or reach the minimum window size.
func (c *Connector) OrderIDs(ctx context.Context, opts OrderListOptions) iter.Seq2[string, error] {
	opts.applyDefaults()

	return func(yield func(string, error) bool) {
		type window struct{ from, to time.Time }

		// LIFO keeps windows in chronological order as halves are pushed
		stack := []window{}
		for from := opts.From.UTC(); from.Before(opts.To.UTC()); from = from.Add(opts.Window) {
			to := from.Add(opts.Window)
			if to.After(opts.To.UTC()) {
				to = opts.To.UTC()
			}
			stack = append(stack, window{from, to})
		}
		// reverse so the earliest window pops first
		for i, j := 0, len(stack)-1; i < j; i, j = i+1, j-1 {
			stack[i], stack[j] = stack[j], stack[i]
		}

		for len(stack) > 0 {
			win := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			c.logger.Info("listing orders",
				zap.Time("from", win.from),
				zap.Time("to", win.to))

			page := 0
			total := 0
			for {
				page++
				ids, pageTotal, err := c.listOrderPage(ctx, win.from, win.to, page, opts.PerPage)
				if err != nil {
					yield("", err)
					return
				}
				total = pageTotal

				if page == 1 {
					needed := (total + opts.PerPage - 1) / opts.PerPage
					if needed > opts.MaxPagesPerWindow && win.to.Sub(win.from) > minOrderWindow {
						mid := win.from.Add(win.to.Sub(win.from) / 2)
						c.logger.Info("window too dense, splitting",
							zap.Int("orders", total),
							zap.Time("mid", mid))
						stack = append(stack, window{mid, win.to}, window{win.from, mid})
						break
					}
				}

				if len(ids) == 0 {
					break
				}
				for _, id := range ids {
					if !yield(id, nil) {
						return
					}
				}
				if page*opts.PerPage >= total {
					break
				}
			}
		}
	}
}

// listOrderPage fetches one page of the order listing for a date window.
func (c *Connector) listOrderPage(ctx context.Context, from, to time.Time, page, perPage int) ([]string, int, error) {
	dateFilter := fmt.Sprintf("creationDate:[%s TO %s]",
		from.UTC().Format(orderDateLayout),
		to.UTC().Format(orderDateLayout))

	query := url.Values{
		"f_status":       {strings.Join(c.cfg.Statuses, ",")},
		"f_creationDate": {dateFilter},
		"page":           {strconv.Itoa(page)},
		"per_page":       {strconv.Itoa(perPage)},
		"orderBy":        {"creationDate,asc"},
	}
	if c.cfg.SalesChannel != "" {
		query.Set("f_salesChannel", c.cfg.SalesChannel)
	}

	var result orderListPage
	if err := c.client.getJSON(ctx, "/api/oms/pvt/orders/", query, &result); err != nil {
		return nil, 0, err
	}

	ids := make([]string, 0, len(result.List))
	for _, entry := range result.List {
		ids = append(ids, entry.OrderID)
	}
	return ids, result.Paging.Total, nil
}

// Products streams every base product of the catalog, walking each category
// leaf with offset/limit pagination. The page total comes from the
// "resources" response header ("0-24/257").
func (c *Connector) Products(ctx context.Context, pageSize int) iter.Seq2[*BaseProduct, error] {
	if pageSize <= 0 {
		pageSize = 25
	}

	return func(yield func(*BaseProduct, error) bool) {
		tree, err := c.CategoryTree(ctx)
		if err != nil {
			yield(nil, err)
			return
		}

		for _, leaf := range CategoryLeaves(tree) {
			offset := 0
			for {
				c.logger.Info("searching catalog",
					zap.String("category", leaf.Name),
					zap.Int("from", offset),
					zap.Int("to", offset+pageSize-1))

				query := url.Values{
					"_from": {strconv.Itoa(offset)},
					"_to":   {strconv.Itoa(offset + pageSize - 1)},
					"fq":    {"C:" + leaf.Path},
				}
				resp, err := c.client.get(ctx, "/api/catalog_system/pub/products/search", query, nil)
				if err != nil {
					yield(nil, err)
					return
				}

				total, err := parseResourcesTotal(resp.Header)
				if err != nil {
					yield(nil, err)
					return
				}

				var products []*BaseProduct
				if err := jsonDecode(resp.Body, &products); err != nil {
					yield(nil, err)
					return
				}
				if len(products) == 0 {
					break
				}
				for _, product := range products {
					if !yield(product, nil) {
						return
					}
				}

				offset += pageSize
				if offset >= total {
					break
				}
			}
		}
	}
}

// CustomerIDs streams the ids of customer profiles updated since a date via
// the master-data scroll endpoint. The continuation token arrives in the
// X-VTEX-MD-TOKEN response header and is threaded back as _token.
func (c *Connector) CustomerIDs(ctx context.Context, updatedSince time.Time, pageSize int) iter.Seq2[string, error] {
	if pageSize <= 0 {
		pageSize = 100
	}

	return func(yield func(string, error) bool) {
		c.logger.Info("listing customers",
			zap.String("updated_since", updatedSince.Format("2006-01-02")),
			zap.String("data_entity", c.cfg.DataEntity))

		query := url.Values{
			"_fields": {"id"},
			"_where":  {"updatedIn>" + updatedSince.Format("2006-01-02")},
		}
		headers := http.Header{
			"REST-Range": {fmt.Sprintf("resources=0-%d", pageSize)},
		}

		page := 0
		for {
			page++
			resp, err := c.client.do(ctx, request{
				method:  http.MethodGet,
				path:    fmt.Sprintf("/api/dataentities/%s/scroll", c.cfg.DataEntity),
				query:   query,
				headers: headers,
			})
			if err != nil {
				yield("", err)
				return
			}

			var entries []profileIDEntry
			if err := jsonDecode(resp.Body, &entries); err != nil {
				yield("", err)
				return
			}
			if len(entries) == 0 {
				return
			}
			for _, entry := range entries {
				if !yield(entry.ID, nil) {
					return
				}
			}

			if token := resp.Header.Get("X-VTEX-MD-TOKEN"); token != "" {
				query.Set("_token", token)
			}
			// without a usable total, scroll on until the empty page
			total, err := strconv.Atoi(resp.Header.Get("REST-Content-Total"))
			if err == nil && page*pageSize >= total {
				return
			}
		}
	}
}

// Subscriptions streams every recurring-purchase subscription. The page
// total comes from the X-Total-Count response header.
func (c *Connector) Subscriptions(ctx context.Context, pageSize int) iter.Seq2[*Subscription, error] {
	if pageSize <= 0 {
		pageSize = 100
	}

	return func(yield func(*Subscription, error) bool) {
		page := 0
		for {
			page++
			c.logger.Info("listing subscriptions", zap.Int("page", page))

			query := url.Values{
				"page": {strconv.Itoa(page)},
				"size": {strconv.Itoa(pageSize)},
			}
			resp, err := c.client.get(ctx, "/rns/pub/subscriptions", query, nil)
			if err != nil {
				yield(nil, err)
				return
			}

			var subscriptions []*Subscription
			if err := jsonDecode(resp.Body, &subscriptions); err != nil {
				yield(nil, err)
				return
			}
			if len(subscriptions) == 0 {
				return
			}
			for _, subscription := range subscriptions {
				if !yield(subscription, nil) {
					return
				}
			}

			total, _ := strconv.Atoi(resp.Header.Get("X-Total-Count"))
			if page*pageSize >= total {
				return
			}
		}
	}
}

// HistoricalSKUs walks the whole private catalog (GetProductAndSkuIds) and
// streams each SKU's detail, optionally including inactive ones.
func (c *Connector) HistoricalSKUs(ctx context.Context, pageSize int, includeInactive bool) iter.Seq2[*CatalogSKU, error] {
	if pageSize <= 0 {
		pageSize = 50
	}

	return func(yield func(*CatalogSKU, error) bool) {
		offset := 1 // this endpoint's ranges are 1-based
		for {
			query := url.Values{
				"_from": {strconv.Itoa(offset)},
				"_to":   {strconv.Itoa(offset + pageSize - 1)},
			}
			var pageResult productSKUIDsPage
			if err := c.client.getJSON(ctx, "/api/catalog_system/pvt/products/GetProductAndSkuIds", query, &pageResult); err != nil {
				yield(nil, err)
				return
			}
			if len(pageResult.Data) == 0 {
				return
			}

			for _, skuIDs := range pageResult.Data {
				for _, skuID := range skuIDs {
					sku, err := c.GetSKUByID(ctx, skuID)
					if err != nil {
						c.logger.Error("skipping sku", zap.Int64("sku_id", skuID), zap.Error(err))
						continue
					}
					if !sku.IsActive && !includeInactive {
						continue
					}
					if !yield(sku, nil) {
						return
					}
				}
			}

			offset += pageSize
			if offset > pageResult.Range.Total {
				return
			}
		}
	}
}

// CategoryLeaves collects the leaves of a category tree with their full id
// paths, used to scope catalog searches.
func CategoryLeaves(tree []CategoryNode) []CategoryLeaf {
	var leaves []CategoryLeaf
	var walk func(node CategoryNode, parentPath string)
	walk = func(node CategoryNode, parentPath string) {
		path := parentPath + strconv.FormatInt(node.ID, 10) + "/"
		if len(node.Children) == 0 {
			leaves = append(leaves, CategoryLeaf{
				ID:   strconv.FormatInt(node.ID, 10),
				Name: node.Name,
				Path: path,
			})
			return
		}
		for _, child := range node.Children {
			walk(child, path)
		}
	}
	for _, node := range tree {
		walk(node, "")
	}
	return leaves
}

// FlattenCategoryTree maps every category id to its full path, root first.
func FlattenCategoryTree(tree []CategoryNode) map[string][]crm.Category {
	categories := make(map[string][]crm.Category)
	var walk func(node CategoryNode, parentPath []crm.Category)
	walk = func(node CategoryNode, parentPath []crm.Category) {
		id := strconv.FormatInt(node.ID, 10)
		path := make([]crm.Category, len(parentPath), len(parentPath)+1)
		copy(path, parentPath)
		path = append(path, crm.Category{ID: id, Name: node.Name, URL: node.URL})
		categories[id] = path
		for _, child := range node.Children {
			walk(child, path)
		}
	}
	for _, node := range tree {
		walk(node, nil)
	}
	return categories
}

// parseResourcesTotal extracts the collection total from a "resources"
// header shaped like "0-24/257".
func parseResourcesTotal(header http.Header) (int, error) {
	value := header.Get("resources")
	_, totalPart, found := strings.Cut(value, "/")
	if !found {
		return 0, fmt.Errorf("vtex: malformed resources header %q", value)
	}
	total, err := strconv.Atoi(totalPart)
	if err != nil {
		return 0, fmt.Errorf("vtex: malformed resources header %q", value)
	}
	return total, nil
}

func jsonDecode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("vtex: failed to parse response: %w", err)
	}
	return nil
}
