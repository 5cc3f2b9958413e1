package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estoque/internal/core/domain"
	"estoque/internal/core/service"
)

type stubItemRepo struct {
	mu    sync.Mutex
	items []domain.InventoryItem
}

func (s *stubItemRepo) ListByClass(_ context.Context, category domain.Category, location string) ([]domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.InventoryItem
	for _, it := range s.items {
		if it.Category == category && it.Location == location {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *stubItemRepo) GetByID(_ context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			it := s.items[i]
			return &it, nil
		}
	}
	return nil, nil
}

func (s *stubItemRepo) DecrementIfAvailable(_ context.Context, id string, qty int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			if s.items[i].Quantity < qty {
				return s.items[i].Quantity, false, nil
			}
			s.items[i].Quantity -= qty
			return s.items[i].Quantity, true, nil
		}
	}
	return 0, false, nil
}

func (s *stubItemRepo) IncreaseQuantity(_ context.Context, id string, qty int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Quantity += qty
			return s.items[i].Quantity, nil
		}
	}
	return 0, service.ErrNotFound
}

type stubLedgerRepo struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry
}

func (s *stubLedgerRepo) AppendEntry(_ context.Context, entry domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubLedgerRepo) ListRecent(_ context.Context, location string, limit int) ([]domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LedgerEntry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].Location == location {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

type stubTokenRegistry struct {
	mu       sync.Mutex
	consumed map[string]bool
}

func (s *stubTokenRegistry) IsConsumed(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumed[token], nil
}

func (s *stubTokenRegistry) MarkConsumed(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumed[token] {
		return false, nil
	}
	s.consumed[token] = true
	return true, nil
}

func newTestServer(items ...domain.InventoryItem) *httptest.Server {
	cfg := service.DefaultConfig()
	cfg.ThrottleInterval = 0
	coordinator := service.NewCoordinator(
		&stubItemRepo{items: items},
		&stubLedgerRepo{},
		&stubTokenRegistry{consumed: make(map[string]bool)},
		nil,
		cfg,
	)
	return httptest.NewServer(NewHTTPHandler(coordinator).Routes())
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func testPicanha() domain.InventoryItem {
	return domain.InventoryItem{
		ID: "picanha-01", Name: "Picanha", Quantity: 5, Unit: "kg",
		Category: domain.CategoryColdStorage, Location: "fortaleza",
	}
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListItems(t *testing.T) {
	srv := newTestServer(testPicanha())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/items/camara_fria?location=fortaleza")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body itemsResponse
	decodeBody(t, resp, &body)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Picanha", body.Items[0].Name)
}

func TestListItems_UnknownClass(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/items/freezer?location=fortaleza")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestScan_SuccessThenConflict(t *testing.T) {
	srv := newTestServer(testPicanha())
	defer srv.Close()

	req := map[string]string{"token": "CF-picanha-0001", "location": "fortaleza"}

	resp := postJSON(t, srv.URL+"/api/scan", req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var first domain.ScanResult
	decodeBody(t, resp, &first)
	assert.True(t, first.Success)
	assert.Equal(t, 4, first.Remaining)

	resp = postJSON(t, srv.URL+"/api/scan", req)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var second domain.ScanResult
	decodeBody(t, resp, &second)
	assert.Equal(t, domain.FailureAlreadyUsed, second.Kind)
}

func TestScan_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantKind   domain.FailureKind
	}{
		{"malformed", "garbage", http.StatusBadRequest, domain.FailureMalformedToken},
		{"unknown prefix", "XX-picanha-0001", http.StatusBadRequest, domain.FailureMalformedToken},
		{"not found", "CF-costela-0001", http.StatusNotFound, domain.FailureNotFound},
	}

	srv := newTestServer(testPicanha())
	defer srv.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/scan", map[string]string{"token": tt.token, "location": "fortaleza"})
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			var result domain.ScanResult
			decodeBody(t, resp, &result)
			assert.Equal(t, tt.wantKind, result.Kind)
			assert.NotEmpty(t, result.Message)
		})
	}
}

func TestScan_OutOfStockIsGone(t *testing.T) {
	empty := testPicanha()
	empty.Quantity = 0
	srv := newTestServer(empty)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/scan", map[string]string{"token": "CF-picanha-0001", "location": "fortaleza"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestScan_MissingFields(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/scan", map[string]string{"token": "CF-picanha-0001"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdjust(t *testing.T) {
	srv := newTestServer(testPicanha())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/adjust", map[string]interface{}{
		"class": "camara_fria", "item_id": "picanha-01",
		"quantity": 10, "direction": "inbound", "location": "fortaleza",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result service.AdjustResult
	decodeBody(t, resp, &result)
	assert.Equal(t, "Picanha", result.ItemName)
	assert.Equal(t, 15, result.Remaining)
}

func TestAdjust_OutOfStock(t *testing.T) {
	srv := newTestServer(testPicanha())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/adjust", map[string]interface{}{
		"class": "camara_fria", "item_id": "picanha-01",
		"quantity": 50, "direction": "outbound", "location": "fortaleza",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestLedger_ReflectsMovements(t *testing.T) {
	srv := newTestServer(testPicanha())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/scan", map[string]string{"token": "CF-picanha-0001", "location": "fortaleza"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Get(srv.URL + "/api/ledger?location=fortaleza")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Entries []domain.LedgerEntry `json:"entries"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "Picanha", body.Entries[0].ItemName)
	assert.Equal(t, domain.DirectionOutbound, body.Entries[0].Direction)
}
