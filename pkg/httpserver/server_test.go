package httpserver

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/molbhav/molbhav/internal/botdetect"
	"github.com/molbhav/molbhav/internal/catalog"
	"github.com/molbhav/molbhav/internal/coupon"
	"github.com/molbhav/molbhav/internal/dialogue"
	"github.com/molbhav/molbhav/internal/hotstore"
	"github.com/molbhav/molbhav/internal/negotiation"
	"github.com/molbhav/molbhav/internal/quote"
	"github.com/molbhav/molbhav/internal/storage"
	"github.com/molbhav/molbhav/pkg/healthprobe"
	"github.com/molbhav/molbhav/pkg/types"
)

const testAdminKey = "test-admin-key"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zap.NewNop()
	store := storage.NewConsoleStorage(logger)
	hot := hotstore.NewMemoryStore(logger)

	cat, err := catalog.New(&catalog.Config{Store: store, Logger: logger})
	if err != nil {
		t.Fatalf("catalog.New() error: %v", err)
	}

	coupons, err := coupon.New(&coupon.Config{Store: store, Logger: logger})
	if err != nil {
		t.Fatalf("coupon.New() error: %v", err)
	}

	gen, err := dialogue.New(&dialogue.Config{Logger: logger})
	if err != nil {
		t.Fatalf("dialogue.New() error: %v", err)
	}

	quotes, err := quote.New(&quote.Config{SigningKey: "test-signing-key", TTL: time.Minute})
	if err != nil {
		t.Fatalf("quote.New() error: %v", err)
	}

	svc, err := negotiation.NewService(&negotiation.Config{
		Machine:  negotiation.NewMachine(0.01, botdetect.New(2*time.Second)),
		Hot:      hot,
		Durable:  store,
		Catalog:  cat,
		Coupons:  coupons,
		Dialogue: gen,
		Quotes:   quotes,
		Logger:   logger,
		Cooldown: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("negotiation.NewService() error: %v", err)
	}

	if err := store.CreateProduct(context.Background(), &types.Product{
		ID:           "nike-air-max",
		Name:         "Nike Air Max",
		Category:     "shoes",
		AnchorPrice:  12999,
		CostPrice:    9000,
		MinMargin:    0.05,
		TargetMargin: 0.30,
		Active:       true,
	}); err != nil {
		t.Fatalf("CreateProduct() error: %v", err)
	}

	hc := healthprobe.New()
	hc.SetReady(true)

	srv := New(&Config{
		Port:          "0",
		Logger:        logger,
		HealthChecker: hc,
		Negotiations:  svc,
		Catalog:       cat,
		Hot:           hot,
		Durable:       store,
		AdminKey:      testAdminKey,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return ts
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}

	return resp, out.Bytes()
}

func startSession(t *testing.T, ts *httptest.Server) types.SessionResponse {
	t.Helper()

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/negotiate/start",
		types.StartRequest{ProductID: "nike-air-max"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d, body %s", resp.StatusCode, body)
	}

	var sess types.SessionResponse
	if err := json.Unmarshal(body, &sess); err != nil {
		t.Fatalf("decode: %v", err)
	}

	return sess
}

func TestStartEndpoint(t *testing.T) {
	ts := newTestServer(t)

	sess := startSession(t, ts)

	if sess.State != types.StateProposing {
		t.Errorf("state = %s, want proposing", sess.State)
	}
	if sess.SessionToken == "" {
		t.Error("start response missing session token")
	}
	if sess.CurrentPrice != 12999 {
		t.Errorf("current price = %.0f, want 12999", sess.CurrentPrice)
	}
}

func TestOfferEndpoint(t *testing.T) {
	ts := newTestServer(t)
	sess := startSession(t, ts)

	time.Sleep(5 * time.Millisecond)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/negotiate/"+sess.SessionID+"/offer",
		types.OfferRequest{Price: 12900},
		map[string]string{sessionTokenHeader: sess.SessionToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("offer status = %d, body %s", resp.StatusCode, body)
	}

	var out types.SessionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.State != types.StateAgreed {
		t.Errorf("state = %s, want agreed", out.State)
	}
	if out.SessionToken != "" {
		t.Error("offer response leaked the session token")
	}
}

func TestOfferWrongTokenIs401(t *testing.T) {
	ts := newTestServer(t)
	sess := startSession(t, ts)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/negotiate/"+sess.SessionID+"/offer",
		types.OfferRequest{Price: 10000},
		map[string]string{sessionTokenHeader: "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	var envelope types.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Kind != types.KindBadToken {
		t.Errorf("kind = %s, want bad_token", envelope.Kind)
	}
	if envelope.RequestID == "" {
		t.Error("error envelope missing request id")
	}
}

func TestOfferMalformedBodyIs400(t *testing.T) {
	ts := newTestServer(t)
	sess := startSession(t, ts)

	req, _ := http.NewRequest(http.MethodPost,
		ts.URL+"/negotiate/"+sess.SessionID+"/offer",
		bytes.NewBufferString("{not json"))
	req.Header.Set(sessionTokenHeader, sess.SessionToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)
	sess := startSession(t, ts)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/negotiate/"+sess.SessionID+"/status", nil,
		map[string]string{sessionTokenHeader: sess.SessionToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}

	var out types.SessionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.State != types.StateProposing {
		t.Errorf("state = %s, want proposing", out.State)
	}
}

func TestAdminRequiresKey(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/admin/products", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/admin/products", nil,
		map[string]string{adminKeyHeader: "wrong-key"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong key status = %d, want 401", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/admin/products", nil,
		map[string]string{adminKeyHeader: testAdminKey})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("good key status = %d", resp.StatusCode)
	}

	var products []types.Product
	if err := json.Unmarshal(body, &products); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(products) != 1 || products[0].ID != "nike-air-max" {
		t.Errorf("products = %+v", products)
	}
}

func TestAdminProductLifecycle(t *testing.T) {
	ts := newTestServer(t)
	key := map[string]string{adminKeyHeader: testAdminKey}

	created := types.Product{
		ID:           "levis-501",
		Name:         "Levi's 501",
		Category:     "apparel",
		AnchorPrice:  4999,
		CostPrice:    2200,
		MinMargin:    0.12,
		TargetMargin: 0.35,
	}

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/admin/products", created, key)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/admin/products/levis-501", nil, key)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}

	var got types.Product
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Active {
		t.Error("created product not active")
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/admin/products/levis-501", nil, key)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("deactivate status = %d, want 204", resp.StatusCode)
	}
}

func TestAdminSessionHistory(t *testing.T) {
	ts := newTestServer(t)
	sess := startSession(t, ts)

	time.Sleep(5 * time.Millisecond)
	doJSON(t, http.MethodPost, ts.URL+"/negotiate/"+sess.SessionID+"/offer",
		types.OfferRequest{Price: 5000},
		map[string]string{sessionTokenHeader: sess.SessionToken})

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/admin/sessions/"+sess.SessionID, nil,
		map[string]string{adminKeyHeader: testAdminKey})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d, body %s", resp.StatusCode, body)
	}

	var hist sessionHistoryResponse
	if err := json.Unmarshal(body, &hist); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hist.Events) != 3 {
		t.Errorf("events = %d, want 3", len(hist.Events))
	}
}

func TestAdminSystemStatus(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/admin/status", nil,
		map[string]string{adminKeyHeader: testAdminKey})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var st systemStatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.HotStore != "ok" || st.Durable != "ok" {
		t.Errorf("stores = %+v, want ok", st)
	}
}

func TestProbesAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		resp, _ := doJSON(t, http.MethodGet, ts.URL+path, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}
