package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeConal/smart-restaurant/internal/api"
	"github.com/JakeConal/smart-restaurant/internal/hub"
	"github.com/JakeConal/smart-restaurant/internal/order"
	"github.com/JakeConal/smart-restaurant/internal/payment"
	"github.com/JakeConal/smart-restaurant/internal/store/memory"
)

type hubPublisher struct {
	hub *hub.Hub
}

func (p hubPublisher) Publish(ctx context.Context, ev order.Event) error {
	p.hub.Publish(ev.OrderID, ev)
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	store := memory.New()
	notifications := hub.New(8)
	orders := order.NewService(store, hubPublisher{notifications}, 0.08)
	gateway := payment.NewGateway("https://gateway.example/pay", "TESTTMN", "test-secret")
	payments := payment.NewService(orders, store, gateway)

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(orders, payments), notifications))
	t.Cleanup(srv.Close)
	return srv, notifications
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createOrderHTTP(t *testing.T, srv *httptest.Server) order.Order {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/orders", order.CreateOrderRequest{
		TableID:   "table-2",
		GuestName: "Huy",
		Items:     []order.CreateItemRequest{{MenuItemID: "m1", Name: "Bun Cha", Quantity: 1, UnitPrice: 50}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[order.Order](t, resp)
}

func TestCreateAndGetOrder(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createOrderHTTP(t, srv)

	resp, err := http.Get(srv.URL + "/api/orders/" + created.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[order.Order](t, resp)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, order.StatusPendingAcceptance, got.Status)
	assert.Equal(t, 54.0, got.Total)
}

func TestGetOrderNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/orders/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTransitionEndpointEnforcesTable(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createOrderHTTP(t, srv)

	resp := postJSON(t, srv.URL+"/api/orders/"+created.ID+"/transition",
		map[string]string{"status": "ready", "changed_by": "chef-1"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/orders/"+created.ID+"/transition",
		map[string]string{"status": "accepted", "changed_by": "chef-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[order.Order](t, resp)
	assert.Equal(t, order.StatusAccepted, got.Status)
}

func TestBillRequestEndpointIdempotent(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createOrderHTTP(t, srv)

	resp := postJSON(t, srv.URL+"/api/orders/"+created.ID+"/bill-request", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[order.Order](t, resp)
	require.NotNil(t, first.BillRequestedAt)

	resp = postJSON(t, srv.URL+"/api/orders/"+created.ID+"/bill-request", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[order.Order](t, resp)
	assert.Equal(t, *first.BillRequestedAt, *second.BillRequestedAt)
}

func TestSettleEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createOrderHTTP(t, srv)

	resp := postJSON(t, srv.URL+"/api/orders/"+created.ID+"/settle", map[string]string{"method": "cash"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[order.Order](t, resp)
	assert.True(t, got.IsPaid)

	resp = postJSON(t, srv.URL+"/api/orders/"+created.ID+"/settle", map[string]string{"method": "vnpay"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckoutEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	a := createOrderHTTP(t, srv)
	b := createOrderHTTP(t, srv)

	resp := postJSON(t, srv.URL+"/api/payments/checkout", map[string]any{
		"order_ids":  []string{a.ID, b.ID},
		"return_url": "https://app.example/return",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		RedirectURL string           `json:"redirect_url"`
		Checkout    payment.Checkout `json:"checkout"`
	}](t, resp)

	assert.Contains(t, body.RedirectURL, "vnp_TxnRef=")
	assert.Equal(t, 108.0, body.Checkout.BaseTotal)
	assert.Equal(t, 10.8, body.Checkout.DiscountAmount)
}

func TestPaymentReturnBadSignature(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/payments/return?vnp_TxnRef=x&vnp_ResponseCode=00&vnp_SecureHash=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebsocketSubscribeReceivesTransitions(t *testing.T) {
	srv, notifications := newTestServer(t)
	created := createOrderHTTP(t, srv)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(hub.Frame{Action: "subscribe", OrderID: created.ID}))
	require.Eventually(t, func() bool {
		return notifications.SubscriptionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp := postJSON(t, srv.URL+"/api/orders/"+created.ID+"/transition",
		map[string]string{"status": "accepted", "changed_by": "chef-1"})
	resp.Body.Close()

	var ev order.Event
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, order.EventAccepted, ev.Type)
	assert.Equal(t, created.ID, ev.OrderID)
	assert.Equal(t, order.StatusAccepted, ev.NewStatus)
}
