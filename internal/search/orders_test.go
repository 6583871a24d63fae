package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/models"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

func newTestIndex(t *testing.T, status int, response string) (*OrderIndex, *[]capturedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, capturedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return NewOrderIndex(client, "orders", logger.NewTestLogger(t)), &requests
}

func testOrder() *models.Order {
	return &models.Order{
		ID:          "order-1",
		Contact:     models.Contact{Name: "Asha Rao", Email: "asha@example.com"},
		Trip:        models.Trip{Nationality: "India", Destination: "France"},
		Plan:        models.Plan{ID: "standard", Name: "Standard"},
		AddOns:      []models.SelectedAddOn{{AddOn: models.AddOn{ID: "rush-processing"}, Quantity: 2}},
		TotalAmount: 69700,
		Currency:    "usd",
		Status:      models.OrderStatusSubmitted,
		CreatedAt:   time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestOrderIndex_IndexOrder(t *testing.T) {
	idx, requests := newTestIndex(t, http.StatusCreated, `{"result":"created"}`)

	require.NoError(t, idx.Apply(context.Background(), testOrder()))

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/orders/_doc/order-1", req.Path)
	assert.Equal(t, "Asha Rao", gjson.Get(req.Body, "customerName").String())
	assert.Equal(t, int64(69700), gjson.Get(req.Body, "totalAmount").Int())
	assert.Equal(t, "rush-processing", gjson.Get(req.Body, "addOns.0").String())
}

func TestOrderIndex_IndexOrder_ErrorStatus(t *testing.T) {
	idx, _ := newTestIndex(t, http.StatusServiceUnavailable, `{"error":"unavailable"}`)

	err := idx.IndexOrder(context.Background(), testOrder())
	assert.True(t, errors.Is(err, ErrIndexFailed))
}

func TestOrderIndex_Search(t *testing.T) {
	doc, _ := json.Marshal(NewOrderDocument(testOrder()))
	response := `{"took":3,"hits":{"total":{"value":1},"hits":[{"_source":` + string(doc) + `}]}}`
	idx, requests := newTestIndex(t, http.StatusOK, response)

	result, err := idx.Search(context.Background(), OrderQuery{Text: "asha", Status: "submitted", Size: 10})
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Total)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "order-1", result.Hits[0].OrderID)

	req := (*requests)[0]
	assert.True(t, strings.HasSuffix(req.Path, "/orders/_search"))
	assert.Contains(t, req.Query, "size=10")
	assert.Equal(t, "asha", gjson.Get(req.Body, "query.bool.must.0.multi_match.query").String())
	assert.Equal(t, "submitted", gjson.Get(req.Body, "query.bool.filter.0.term.status").String())
}

func TestBuildOrderQuery_MatchAllWithoutText(t *testing.T) {
	q := buildOrderQuery(OrderQuery{})
	raw, err := json.Marshal(q)
	require.NoError(t, err)

	assert.True(t, gjson.GetBytes(raw, "query.bool.must.0.match_all").Exists())
	assert.False(t, gjson.GetBytes(raw, "query.bool.filter").Exists())
	assert.Equal(t, "desc", gjson.GetBytes(raw, "sort.0.createdAt.order").String())
}

func TestOrderIndex_Search_ErrorStatus(t *testing.T) {
	idx, _ := newTestIndex(t, http.StatusBadRequest, `{"error":{"type":"parsing_exception"}}`)

	_, err := idx.Search(context.Background(), OrderQuery{Text: "x"})
	assert.ErrorIs(t, err, ErrQueryFailed)
}
