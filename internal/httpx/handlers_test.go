package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/katuparan/farm2stall/internal/market"
	"github.com/katuparan/farm2stall/internal/service"
	"github.com/katuparan/farm2stall/internal/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type apiEnv struct {
	srv *httptest.Server
	m   *store.Memory

	farmerID   int64
	disposerID int64
	consumerID int64
	productID  int64
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	m := store.NewMemory()
	log := zap.NewNop()

	demands := service.NewDemandService(m, service.Nop{}, "test", log)
	requests := service.NewRequestService(m, service.Nop{}, "test", log)
	orders := service.NewOrderService(m, service.Nop{}, "test", log)
	inventory := service.NewInventoryService(m, log)

	r := NewRouter(log)
	r.Group(func(r chi.Router) {
		r.Use(Identity)
		NewDemandsHandler(demands, nil, log).Register(r)
		NewRequestsHandler(requests, nil, m, log).Register(r)
		NewOrdersHandler(orders, nil, m, log).Register(r)
		NewInventoryHandler(inventory).Register(r)
	})

	e := &apiEnv{srv: httptest.NewServer(r), m: m}
	t.Cleanup(e.srv.Close)

	e.farmerID = m.SeedUser(store.User{Username: "mang_tomas", Role: market.RoleFarmer, FarmName: "Tomas Farm"})
	e.disposerID = m.SeedUser(store.User{Username: "aling_nena", Role: market.RoleDisposer})
	e.consumerID = m.SeedUser(store.User{Username: "juan", Role: market.RoleConsumer})
	m.SeedStall(market.Stall{Name: "Nena's Stall", UserID: e.disposerID})
	e.productID = m.SeedProduct(market.Product{Name: "Tomato", Variant: "Native", CurrentPrice: d("45")})
	return e
}

func (e *apiEnv) do(t *testing.T, method, path string, userID int64, role, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if userID != 0 {
		req.Header.Set("X-User-Id", fmt.Sprintf("%d", userID))
		req.Header.Set("X-User-Role", role)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status = %d, want %d", resp.StatusCode, want)
	}
}

func TestHealthz(t *testing.T) {
	e := newAPIEnv(t)
	resp := e.do(t, http.MethodGet, "/healthz", 0, "", "")
	wantStatus(t, resp, http.StatusOK)
}

func TestIdentityRequired(t *testing.T) {
	e := newAPIEnv(t)

	resp := e.do(t, http.MethodGet, "/demands", 0, "", "")
	wantStatus(t, resp, http.StatusUnauthorized)

	resp = e.do(t, http.MethodGet, "/demands", e.disposerID, "sysadmin", "")
	wantStatus(t, resp, http.StatusUnauthorized)

	resp = e.do(t, http.MethodGet, "/demands", e.disposerID, "disposer", "")
	wantStatus(t, resp, http.StatusOK)
}

func TestDemandEndpoints(t *testing.T) {
	e := newAPIEnv(t)

	body := fmt.Sprintf(`{"product_id":%d,"weight":50}`, e.productID)
	resp := e.do(t, http.MethodPost, "/demands", e.disposerID, "disposer", body)
	wantStatus(t, resp, http.StatusCreated)
	var dm market.DemandView
	decodeBody(t, resp, &dm)
	if !dm.Weight.Equal(d("50")) || dm.ProductName != "Tomato" {
		t.Fatalf("demand = %+v", dm)
	}

	// same product upserts in place
	resp = e.do(t, http.MethodPost, "/demands", e.disposerID, "disposer", fmt.Sprintf(`{"product_id":%d,"weight":80}`, e.productID))
	wantStatus(t, resp, http.StatusCreated)
	var dm2 market.DemandView
	decodeBody(t, resp, &dm2)
	if dm2.ID != dm.ID || !dm2.Weight.Equal(d("80")) {
		t.Fatalf("upsert = %+v, want same id weight 80", dm2)
	}

	// farmers cannot write demands
	resp = e.do(t, http.MethodPost, "/demands", e.farmerID, "farmer", body)
	wantStatus(t, resp, http.StatusForbidden)

	resp = e.do(t, http.MethodPatch, fmt.Sprintf("/demands/%d", dm.ID), e.disposerID, "disposer", `{"weight":0}`)
	wantStatus(t, resp, http.StatusBadRequest)
}

func TestDemandCompleteEndpoint(t *testing.T) {
	e := newAPIEnv(t)

	resp := e.do(t, http.MethodPost, "/demands", e.disposerID, "disposer", fmt.Sprintf(`{"product_id":%d,"weight":50}`, e.productID))
	wantStatus(t, resp, http.StatusCreated)
	var dm market.DemandView
	decodeBody(t, resp, &dm)

	supply := fmt.Sprintf(`{"product_id":%d,"weight":30,"demand_id":%d,"price":45,"method":"cash"}`, e.productID, dm.ID)
	resp = e.do(t, http.MethodPost, "/supplies", e.farmerID, "farmer", supply)
	wantStatus(t, resp, http.StatusCreated)
	var sr market.SupplyRequest
	decodeBody(t, resp, &sr)

	resp = e.do(t, http.MethodPost, fmt.Sprintf("/demands/%d/complete", dm.ID), e.disposerID, "disposer", "")
	wantStatus(t, resp, http.StatusOK)
	var out map[string]int
	decodeBody(t, resp, &out)
	if out["completed_requests"] != 1 {
		t.Fatalf("completed_requests = %d, want 1", out["completed_requests"])
	}

	resp = e.do(t, http.MethodGet, fmt.Sprintf("/requests/%d", sr.Request.ID), e.farmerID, "farmer", "")
	wantStatus(t, resp, http.StatusOK)
	var v market.RequestView
	decodeBody(t, resp, &v)
	if v.Status != market.RequestCompleted {
		t.Fatalf("request status = %s, want completed", v.Status)
	}

	resp = e.do(t, http.MethodGet, fmt.Sprintf("/demands/%d", dm.ID), e.disposerID, "disposer", "")
	wantStatus(t, resp, http.StatusNotFound)
}

func TestSupplyRequestEndpoints(t *testing.T) {
	e := newAPIEnv(t)

	resp := e.do(t, http.MethodPost, "/demands", e.disposerID, "disposer", fmt.Sprintf(`{"product_id":%d,"weight":50}`, e.productID))
	wantStatus(t, resp, http.StatusCreated)
	var dm market.DemandView
	decodeBody(t, resp, &dm)

	// oversupply is a 400
	over := fmt.Sprintf(`{"product_id":%d,"weight":51,"demand_id":%d,"price":45,"method":"cash"}`, e.productID, dm.ID)
	resp = e.do(t, http.MethodPost, "/supplies", e.farmerID, "farmer", over)
	wantStatus(t, resp, http.StatusBadRequest)

	ok := fmt.Sprintf(`{"product_id":%d,"weight":50,"demand_id":%d,"price":45,"method":"cash"}`, e.productID, dm.ID)
	resp = e.do(t, http.MethodPost, "/supplies", e.farmerID, "farmer", ok)
	wantStatus(t, resp, http.StatusCreated)
	var sr market.SupplyRequest
	decodeBody(t, resp, &sr)
	if sr.Request.Status != market.RequestProcessing {
		t.Fatalf("request = %+v", sr.Request)
	}

	// a second request on the same supply conflicts
	bind := fmt.Sprintf(`{"supply_id":%d,"demand_id":%d,"price":40,"method":"cash"}`, sr.Supply.ID, dm.ID)
	resp = e.do(t, http.MethodPost, "/requests", e.farmerID, "farmer", bind)
	wantStatus(t, resp, http.StatusConflict)

	// disposer accepts
	resp = e.do(t, http.MethodPatch, fmt.Sprintf("/requests/%d", sr.Request.ID), e.disposerID, "disposer", `{"status":"accepted"}`)
	wantStatus(t, resp, http.StatusOK)

	// status fast path falls back to the database with a nil cache
	resp = e.do(t, http.MethodGet, fmt.Sprintf("/requests/%d/status", sr.Request.ID), e.farmerID, "farmer", "")
	wantStatus(t, resp, http.StatusOK)
	var st map[string]string
	decodeBody(t, resp, &st)
	if st["status"] != "accepted" {
		t.Fatalf("status = %q, want accepted", st["status"])
	}

	// terminal transitions are 409
	resp = e.do(t, http.MethodPatch, fmt.Sprintf("/requests/%d", sr.Request.ID), e.disposerID, "disposer", `{"status":"rejected"}`)
	wantStatus(t, resp, http.StatusConflict)

	// accepted requests cannot be withdrawn
	resp = e.do(t, http.MethodDelete, fmt.Sprintf("/requests/%d", sr.Request.ID), e.farmerID, "farmer", "")
	wantStatus(t, resp, http.StatusConflict)

	// unknown status value is a 400
	resp = e.do(t, http.MethodPatch, fmt.Sprintf("/requests/%d", sr.Request.ID), e.disposerID, "disposer", `{"status":"done"}`)
	wantStatus(t, resp, http.StatusBadRequest)
}

func TestOrderEndpoints(t *testing.T) {
	e := newAPIEnv(t)

	inv := fmt.Sprintf(`{"product_id":%d,"stocks":10,"size":"medium","type":"fresh","freshness":"new","item_class":"A","price":50}`, e.productID)
	resp := e.do(t, http.MethodPost, "/inventory", e.disposerID, "disposer", inv)
	wantStatus(t, resp, http.StatusCreated)
	var line market.StallInventory
	decodeBody(t, resp, &line)

	order := fmt.Sprintf(`{"stall_inventory_id":%d,"amount":300,"method":"gcash","weight":6}`, line.ID)
	resp = e.do(t, http.MethodPost, "/orders", e.consumerID, "consumer", order)
	wantStatus(t, resp, http.StatusCreated)
	var ov market.OrderView
	decodeBody(t, resp, &ov)
	if !ov.Item.Stocks.Equal(d("4")) {
		t.Fatalf("stocks in view = %s, want 4", ov.Item.Stocks)
	}

	// overdraw is a 422
	over := fmt.Sprintf(`{"stall_inventory_id":%d,"amount":10,"method":"cash","weight":5}`, line.ID)
	resp = e.do(t, http.MethodPost, "/orders", e.consumerID, "consumer", over)
	wantStatus(t, resp, http.StatusUnprocessableEntity)

	// disposer accepts, consumer receives
	resp = e.do(t, http.MethodPatch, fmt.Sprintf("/orders/%d", ov.ID), e.disposerID, "disposer", `{"status":"accepted"}`)
	wantStatus(t, resp, http.StatusOK)
	resp = e.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/receive", ov.ID), e.consumerID, "consumer", "")
	wantStatus(t, resp, http.StatusOK)
	var done market.OrderView
	decodeBody(t, resp, &done)
	if done.Status != market.OrderCompleted {
		t.Fatalf("status = %s", done.Status)
	}

	// completed orders cannot be deleted
	resp = e.do(t, http.MethodDelete, fmt.Sprintf("/orders/%d", ov.ID), e.consumerID, "consumer", "")
	wantStatus(t, resp, http.StatusConflict)
}

func TestOrderDeleteRestoresStock(t *testing.T) {
	e := newAPIEnv(t)

	inv := fmt.Sprintf(`{"product_id":%d,"stocks":10,"size":"m","type":"t","freshness":"f","item_class":"a","price":50}`, e.productID)
	resp := e.do(t, http.MethodPost, "/inventory", e.disposerID, "disposer", inv)
	wantStatus(t, resp, http.StatusCreated)
	var line market.StallInventory
	decodeBody(t, resp, &line)

	order := fmt.Sprintf(`{"stall_inventory_id":%d,"amount":100,"method":"cash","weight":6}`, line.ID)
	resp = e.do(t, http.MethodPost, "/orders", e.consumerID, "consumer", order)
	wantStatus(t, resp, http.StatusCreated)
	var ov market.OrderView
	decodeBody(t, resp, &ov)

	resp = e.do(t, http.MethodDelete, fmt.Sprintf("/orders/%d", ov.ID), e.consumerID, "consumer", "")
	wantStatus(t, resp, http.StatusNoContent)

	resp = e.do(t, http.MethodGet, fmt.Sprintf("/inventory/%d", line.ID), e.consumerID, "consumer", "")
	wantStatus(t, resp, http.StatusOK)
	var after market.InventoryView
	decodeBody(t, resp, &after)
	if !after.Stocks.Equal(d("10")) {
		t.Fatalf("stocks = %s, want 10 after delete", after.Stocks)
	}
}

func TestErrorMapping(t *testing.T) {
	e := newAPIEnv(t)

	// unknown id -> 404
	resp := e.do(t, http.MethodGet, "/requests/999", e.farmerID, "farmer", "")
	wantStatus(t, resp, http.StatusNotFound)

	// malformed body -> 400
	resp = e.do(t, http.MethodPost, "/demands", e.disposerID, "disposer", `{"product_id":`)
	wantStatus(t, resp, http.StatusBadRequest)

	// non-numeric id -> 400
	resp = e.do(t, http.MethodGet, "/orders/abc", e.consumerID, "consumer", "")
	wantStatus(t, resp, http.StatusBadRequest)

	// role without access -> 403
	resp = e.do(t, http.MethodGet, "/requests", e.consumerID, "consumer", "")
	wantStatus(t, resp, http.StatusForbidden)
}

func TestProductsEndpoint(t *testing.T) {
	e := newAPIEnv(t)
	resp := e.do(t, http.MethodGet, "/products", e.consumerID, "consumer", "")
	wantStatus(t, resp, http.StatusOK)
	var ps []market.Product
	decodeBody(t, resp, &ps)
	if len(ps) != 1 || ps[0].Name != "Tomato" {
		t.Fatalf("products = %+v", ps)
	}
}
