package api

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"travel-concierge/internal/common/auth"
	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/models"
	"travel-concierge/internal/search"
	"travel-concierge/internal/store"
)

const adminSecret = "admin-secret"

type fakeDirectory struct {
	mu        sync.Mutex
	users     map[string]*auth.User
	lastFirst int
	lastMax   int
	verifies  []string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: map[string]*auth.User{
		"u-1": {ID: "u-1", Email: "ada@example.com", Enabled: true, EmailVerified: true},
		"u-2": {ID: "u-2", Email: "grace@example.com", Enabled: true},
	}}
}

func (f *fakeDirectory) ListUsers(ctx context.Context, search string, first, max int) ([]auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFirst, f.lastMax = first, max
	out := []auth.User{}
	for _, id := range []string{"u-1", "u-2"} {
		if u := f.users[id]; strings.Contains(u.Email, search) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeDirectory) CountUsers(ctx context.Context, search string) (int, error) {
	users, _ := f.ListUsers(ctx, search, 0, 100)
	return len(users), nil
}

func (f *fakeDirectory) GetUser(ctx context.Context, userID string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, apperrors.NewResourceNotFoundError("keycloak", "GET /users/"+userID)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeDirectory) SetUserEnabled(ctx context.Context, userID string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperrors.NewResourceNotFoundError("keycloak", "PUT /users/"+userID)
	}
	u.Enabled = enabled
	return nil
}

func (f *fakeDirectory) SendVerifyEmail(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifies = append(f.verifies, userID)
	return nil
}

type fakeTables struct{}

func (fakeTables) ListTables(ctx context.Context) ([]models.TableInfo, error) {
	return []models.TableInfo{{Name: "orders", RowCount: 2}}, nil
}

func (fakeTables) Rows(ctx context.Context, table string, page, pageSize int) (*models.TablePage, error) {
	if !store.IsAdminTable(table) {
		return nil, fmt.Errorf("%w: table %s", store.ErrNotFound, table)
	}
	return &models.TablePage{Table: table, Columns: []string{"id"}, Rows: []map[string]interface{}{{"id": "o-1"}}, Page: page, PageSize: pageSize, Total: 1}, nil
}

func (fakeTables) Export(ctx context.Context, table string) ([]string, []map[string]interface{}, error) {
	if !store.IsAdminTable(table) {
		return nil, nil, fmt.Errorf("%w: table %s", store.ErrNotFound, table)
	}
	return []string{"id", "total_amount", "note"}, []map[string]interface{}{
		{"id": "o-1", "total_amount": int64(69700), "note": "needs, quoting"},
		{"id": "o-2", "total_amount": int64(49900), "note": nil},
	}, nil
}

type fakeOrders struct {
	limit int
}

func (f *fakeOrders) RecentOrders(ctx context.Context, limit int) ([]*models.Order, error) {
	f.limit = limit
	return []*models.Order{{ID: "o-1"}}, nil
}

type fakeSearch struct {
	got search.OrderQuery
	err error
}

func (f *fakeSearch) Search(ctx context.Context, q search.OrderQuery) (*search.OrderSearchResult, error) {
	f.got = q
	if f.err != nil {
		return nil, f.err
	}
	return &search.OrderSearchResult{Total: 1}, nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (a *recordingAudit) Record(ctx context.Context, entry models.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

type adminFixture struct {
	router  http.Handler
	users   *fakeDirectory
	orders  *fakeOrders
	search  *fakeSearch
	audit   *recordingAudit
	headers map[string]string
}

func newAdminFixture(t *testing.T) *adminFixture {
	f := &adminFixture{
		users:  newFakeDirectory(),
		orders: &fakeOrders{},
		search: &fakeSearch{},
		audit:  &recordingAudit{},
		headers: map[string]string{
			"Authorization": "Bearer " + signToken(t, adminSecret, "admin-1", "admin"),
		},
	}
	f.router = newTestRouter(t, Config{JWTSecret: adminSecret}, Deps{
		Users:  f.users,
		Tables: fakeTables{},
		Orders: f.orders,
		Search: f.search,
		Audit:  f.audit,
	})
	return f
}

func TestAdmin_ListUsers(t *testing.T) {
	f := newAdminFixture(t)

	w := doRequest(t, f.router, http.MethodGet, "/api/supabase/users?search=grace&page=2&pageSize=5", nil, f.headers)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Equal(t, int64(1), gjson.Get(body, "total").Int())
	assert.Equal(t, "grace@example.com", gjson.Get(body, "data.0.email").String())
	assert.Equal(t, 5, f.users.lastFirst)
	assert.Equal(t, 5, f.users.lastMax)
}

func TestAdmin_SetUserStatus(t *testing.T) {
	f := newAdminFixture(t)

	w := doRequest(t, f.router, http.MethodPatch, "/api/supabase/users/u-1/status", map[string]bool{"enabled": false}, f.headers)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, gjson.Get(w.Body.String(), "data.enabled").Bool())

	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	assert.Equal(t, "user_status_changed", entry.EventType)
	assert.Equal(t, "u-1", entry.ResourceID)
	assert.Equal(t, "admin-1", entry.Details["actor"])

	w = doRequest(t, f.router, http.MethodPatch, "/api/supabase/users/u-9/status", map[string]bool{"enabled": true}, f.headers)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, f.router, http.MethodPatch, "/api/supabase/users/u-1/status", map[string]string{}, f.headers)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_ResendConfirmation(t *testing.T) {
	f := newAdminFixture(t)

	w := doRequest(t, f.router, http.MethodPost, "/api/supabase/users/u-2/resend-confirmation", nil, f.headers)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, []string{"u-2"}, f.users.verifies)

	w = doRequest(t, f.router, http.MethodPost, "/api/supabase/users/u-1/resend-confirmation", nil, f.headers)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Len(t, f.users.verifies, 1)
}

func TestAdmin_Tables(t *testing.T) {
	f := newAdminFixture(t)

	w := doRequest(t, f.router, http.MethodGet, "/api/supabase/tables", nil, f.headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "orders", gjson.Get(w.Body.String(), "data.0.name").String())

	w = doRequest(t, f.router, http.MethodGet, "/api/supabase/tables/orders/rows?page=3&pageSize=500", nil, f.headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3), gjson.Get(w.Body.String(), "data.page").Int())
	assert.Equal(t, int64(store.MaxPageSize), gjson.Get(w.Body.String(), "data.pageSize").Int())

	w = doRequest(t, f.router, http.MethodGet, "/api/supabase/tables/pg_authid/rows", nil, f.headers)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_ExportCSV(t *testing.T) {
	f := newAdminFixture(t)

	w := doRequest(t, f.router, http.MethodGet, "/api/supabase/tables/orders/export", nil, f.headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "orders-")

	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"id", "total_amount", "note"},
		{"o-1", "69700", "needs, quoting"},
		{"o-2", "49900", ""},
	}, records)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "table_exported", f.audit.entries[0].EventType)
}

func TestAdmin_ExportJSONAndErrors(t *testing.T) {
	f := newAdminFixture(t)

	w := doRequest(t, f.router, http.MethodGet, "/api/supabase/tables/orders/export?format=json", nil, f.headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "rows.#").Int())

	w = doRequest(t, f.router, http.MethodGet, "/api/supabase/tables/orders/export?format=xml", nil, f.headers)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, f.router, http.MethodGet, "/api/supabase/tables/users/export", nil, f.headers)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_Orders(t *testing.T) {
	f := newAdminFixture(t)

	w := doRequest(t, f.router, http.MethodGet, "/api/supabase/orders?limit=10", nil, f.headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, f.orders.limit)
	assert.Equal(t, "o-1", gjson.Get(w.Body.String(), "data.0.id").String())

	w = doRequest(t, f.router, http.MethodGet, "/api/supabase/orders/search?q=lovelace&status=submitted&size=5", nil, f.headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, search.OrderQuery{Text: "lovelace", Status: "submitted", Size: 5}, f.search.got)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "data.total").Int())

	f.search.err = search.ErrQueryFailed
	w = doRequest(t, f.router, http.MethodGet, "/api/supabase/orders/search?q=lovelace", nil, f.headers)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "SEARCH_QUERY_FAILED", gjson.Get(w.Body.String(), "error").String())
}
