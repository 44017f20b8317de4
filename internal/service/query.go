package service

import (
	"context"
	"strings"

	"github.com/m2b-ebook/api/internal/database"
	"github.com/m2b-ebook/api/internal/enum"
)

const (
	defaultPerPage  = 20
	maxPerPage      = 100
	exportBatchSize = 200
)

// ListParams selects one page of orders. Zero values mean "first page,
// default size, no filter".
type ListParams struct {
	Status  string
	Search  string
	Page    int
	PerPage int
}

type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type ListResult struct {
	Orders     []database.Order
	Stats      database.OrderStats
	Pagination Pagination
}

// NormalizePage clamps page to >= 1 and perPage to [1, maxPerPage]; a
// non-positive perPage means the default.
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// TotalPages is ceil(total/perPage).
func TotalPages(total int64, perPage int) int {
	if perPage < 1 || total <= 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// QueryService answers dashboard reads.
type QueryService struct {
	store QueryStore
}

func NewQueryService(store QueryStore) *QueryService {
	return &QueryService{store: store}
}

// normalizeFilter maps legacy status labels and rejects unknown ones.
func normalizeFilter(status, search string) (string, string, error) {
	st := enum.NormalizeStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && !enum.IsValidPaymentStatus(st) {
		return "", "", invalid("status", "is not a known payment status")
	}
	return st, strings.TrimSpace(search), nil
}

// List returns one page of matching orders, newest first, with global
// stats.
func (s *QueryService) List(ctx context.Context, p ListParams) (*ListResult, error) {
	status, search, err := normalizeFilter(p.Status, p.Search)
	if err != nil {
		return nil, err
	}
	page, perPage := NormalizePage(p.Page, p.PerPage)

	total, err := s.store.CountOrders(ctx, database.CountOrdersParams{Status: status, Search: search})
	if err != nil {
		return nil, storeError("count orders", err)
	}

	orders, err := s.store.ListOrders(ctx, database.ListOrdersParams{
		Status: status,
		Search: search,
		Limit:  int32(perPage),
		Offset: int32((page - 1) * perPage),
	})
	if err != nil {
		return nil, storeError("list orders", err)
	}
	if orders == nil {
		orders = []database.Order{}
	}

	stats, err := s.store.GetOrderStats(ctx)
	if err != nil {
		return nil, storeError("order stats", err)
	}

	return &ListResult{
		Orders: orders,
		Stats:  stats,
		Pagination: Pagination{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: TotalPages(total, perPage),
		},
	}, nil
}

func (s *QueryService) Get(ctx context.Context, orderID string) (database.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return database.Order{}, invalid("order_id", "is required")
	}
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return database.Order{}, storeError("get order", err)
	}
	return o, nil
}

// Each calls fn exactly once for every order matching the filter, newest
// first. Batches are keyed on (created_at, id) of the last row seen, so
// inserts and deletes during the scan cannot repeat or skip a row. It
// stops at the first error from fn.
func (s *QueryService) Each(ctx context.Context, status, search string, fn func(database.Order) error) error {
	status, search, err := normalizeFilter(status, search)
	if err != nil {
		return err
	}

	params := database.ListOrdersParams{
		Status: status,
		Search: search,
		Limit:  exportBatchSize,
	}
	for {
		batch, err := s.store.ListOrders(ctx, params)
		if err != nil {
			return storeError("list orders", err)
		}
		for _, o := range batch {
			if err := fn(o); err != nil {
				return err
			}
		}
		if len(batch) < exportBatchSize {
			return nil
		}
		last := batch[len(batch)-1]
		params.BeforeCreatedAt, params.BeforeID = last.CreatedAt, last.ID
	}
}
