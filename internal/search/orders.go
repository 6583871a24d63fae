// Package search indexes orders in Elasticsearch for the admin search screen.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/models"
)

var (
	ErrIndexFailed = errors.New("SEARCH_INDEX_FAILED")
	ErrQueryFailed = errors.New("SEARCH_QUERY_FAILED")
)

// OrderMapping is the index mapping for order documents.
const OrderMapping = `{
	"mappings": {
		"properties": {
			"orderId":      {"type": "keyword"},
			"customerName": {"type": "text"},
			"email":        {"type": "keyword"},
			"nationality":  {"type": "keyword"},
			"destination":  {"type": "text", "fields": {"raw": {"type": "keyword"}}},
			"planId":       {"type": "keyword"},
			"planName":     {"type": "text"},
			"addOns":       {"type": "keyword"},
			"totalAmount":  {"type": "long"},
			"currency":     {"type": "keyword"},
			"status":       {"type": "keyword"},
			"createdAt":    {"type": "date"}
		}
	}
}`

type OrderDocument struct {
	OrderID      string    `json:"orderId"`
	CustomerName string    `json:"customerName"`
	Email        string    `json:"email"`
	Nationality  string    `json:"nationality,omitempty"`
	Destination  string    `json:"destination,omitempty"`
	PlanID       string    `json:"planId"`
	PlanName     string    `json:"planName"`
	AddOns       []string  `json:"addOns,omitempty"`
	TotalAmount  int64     `json:"totalAmount"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

func NewOrderDocument(o *models.Order) OrderDocument {
	addOns := make([]string, 0, len(o.AddOns))
	for _, a := range o.AddOns {
		addOns = append(addOns, a.AddOn.ID)
	}
	return OrderDocument{
		OrderID:      o.ID,
		CustomerName: o.Contact.Name,
		Email:        o.Contact.Email,
		Nationality:  o.Trip.Nationality,
		Destination:  o.Trip.Destination,
		PlanID:       o.Plan.ID,
		PlanName:     o.Plan.Name,
		AddOns:       addOns,
		TotalAmount:  o.TotalAmount,
		Currency:     o.Currency,
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt,
	}
}

type OrderQuery struct {
	Text   string `form:"q"`
	Status string `form:"status"`
	From   int    `form:"from"`
	Size   int    `form:"size"`
}

type OrderSearchResult struct {
	Total int64           `json:"total"`
	Hits  []OrderDocument `json:"hits"`
	Took  int             `json:"took"`
}

type OrderIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewOrderIndex(client *elasticsearch.Client, index string, log logger.Logger) *OrderIndex {
	if index == "" {
		index = "orders"
	}
	return &OrderIndex{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "order_index", "index": index}),
	}
}

func (i *OrderIndex) Name() string {
	return "search_index"
}

// Apply indexes a freshly stored order.
func (i *OrderIndex) Apply(ctx context.Context, order *models.Order) error {
	return i.IndexOrder(ctx, order)
}

func (i *OrderIndex) IndexOrder(ctx context.Context, order *models.Order) error {
	body, err := json.Marshal(NewOrderDocument(order))
	if err != nil {
		return fmt.Errorf("%w: marshal document: %v", ErrIndexFailed, err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: order.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrIndexFailed, res.String())
	}

	i.logger.Debug("order indexed", map[string]interface{}{"orderId": order.ID})
	return nil
}

func (i *OrderIndex) Search(ctx context.Context, q OrderQuery) (*OrderSearchResult, error) {
	if q.Size <= 0 || q.Size > 100 {
		q.Size = 20
	}
	if q.From < 0 {
		q.From = 0
	}

	body, err := json.Marshal(buildOrderQuery(q))
	if err != nil {
		return nil, fmt.Errorf("%w: marshal query: %v", ErrQueryFailed, err)
	}

	from, size := q.From, q.Size
	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
		From:  &from,
		Size:  &size,
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrQueryFailed, res.StatusCode, string(raw))
	}

	var parsed struct {
		Took int `json:"took"`
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source OrderDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrQueryFailed, err)
	}

	out := &OrderSearchResult{Total: parsed.Hits.Total.Value, Took: parsed.Took, Hits: []OrderDocument{}}
	for _, h := range parsed.Hits.Hits {
		out.Hits = append(out.Hits, h.Source)
	}
	return out, nil
}

func buildOrderQuery(q OrderQuery) map[string]interface{} {
	boolQuery := map[string]interface{}{}

	if q.Text != "" {
		boolQuery["must"] = []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  q.Text,
					"fields": []string{"customerName^2", "email", "destination", "planName", "orderId"},
				},
			},
		}
	} else {
		boolQuery["must"] = []interface{}{map[string]interface{}{"match_all": map[string]interface{}{}}}
	}

	if q.Status != "" {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"status": q.Status}},
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  []interface{}{map[string]interface{}{"createdAt": map[string]interface{}{"order": "desc"}}},
	}
}
