package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"spendlens/internal/core"
)

type fakeStore struct {
	receipts  []core.Receipt
	listErr   error
	createErr error
	listCalls int
}

func (f *fakeStore) Create(ctx context.Context, r core.Receipt) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.receipts = append(f.receipts, r)
	return nil
}

func (f *fakeStore) ListAll(ctx context.Context, userID string) ([]core.Receipt, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []core.Receipt
	for _, r := range f.receipts {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListRecent(ctx context.Context, userID string, limit int) ([]core.Receipt, error) {
	return f.ListAll(ctx, userID)
}

type fakeProcessor struct {
	receipt core.Receipt
	err     error
	gotUser string
	gotLen  int
}

func (f *fakeProcessor) Process(ctx context.Context, image []byte, userID string) (core.Receipt, error) {
	f.gotUser = userID
	f.gotLen = len(image)
	if f.err != nil {
		return core.Receipt{}, f.err
	}
	return f.receipt, nil
}

func newTestServer(t *testing.T, st *fakeStore, p *fakeProcessor) *Server {
	t.Helper()
	if st == nil {
		st = &fakeStore{}
	}
	if p == nil {
		p = &fakeProcessor{}
	}
	srv := NewServer(":0", st, p, 1<<20)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(srv *Server, method, target string, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	rr := do(srv, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", rr.Code)
	}
}

func TestListReceiptsEmpty(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rr := do(srv, http.MethodGet, "/api/receipts?user_id=u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Fatalf("expected empty array, got %s", got)
	}
}

func TestListReceiptsStoreFailure(t *testing.T) {
	st := &fakeStore{listErr: errors.New("disk on fire")}
	srv := newTestServer(t, st, nil)

	rr := do(srv, http.MethodGet, "/api/receipts?user_id=u1", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "failed to fetch receipts") {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestReceiptsCacheInvalidatedOnCreate(t *testing.T) {
	st := &fakeStore{}
	srv := newTestServer(t, st, nil)

	// Prime the cache.
	do(srv, http.MethodGet, "/api/receipts?user_id=u1", "")
	do(srv, http.MethodGet, "/api/receipts?user_id=u1", "")
	if st.listCalls != 1 {
		t.Fatalf("expected 1 store read after cached poll, got %d", st.listCalls)
	}

	body := `{"store":"Fresh Mart","date":"2025-04-01","user_id":"u1","items":[{"name":"Milk","price":2,"category":"Dairy"}]}`
	rr := do(srv, http.MethodPost, "/api/receipts", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}

	// The write must invalidate the cached list so the next poll sees it.
	rr = do(srv, http.MethodGet, "/api/receipts?user_id=u1", "")
	var got []core.Receipt
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Store != "Fresh Mart" {
		t.Fatalf("stale list after create: %+v", got)
	}
	if st.listCalls != 2 {
		t.Fatalf("expected cache miss after invalidation, listCalls=%d", st.listCalls)
	}
}

func TestMetricsLabeledByRouteNotPath(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rr := do(srv, http.MethodGet, "/no/such/path", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}

	// Unmatched paths fall through the "/" catch-all; recording the raw
	// path would let clients mint unbounded label values.
	if got := testutil.ToFloat64(requestsTotal.WithLabelValues("GET", "/no/such/path", "404")); got != 0 {
		t.Fatalf("raw path recorded as metric label (%v observations)", got)
	}
	if got := testutil.ToFloat64(requestsTotal.WithLabelValues("GET", "/", "404")); got < 1 {
		t.Fatalf("catch-all route not observed, got %v", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rr := do(srv, http.MethodDelete, "/api/receipts", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rr.Code)
	}
	rr = do(srv, http.MethodPost, "/api/spending?timeframe=week", "{}")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("spending status=%d", rr.Code)
	}
}
