package order_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeConal/smart-restaurant/internal/order"
	"github.com/JakeConal/smart-restaurant/internal/store/memory"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []order.Event
	fail   error
}

func (p *capturePublisher) Publish(ctx context.Context, ev order.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) all() []order.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]order.Event(nil), p.events...)
}

func newTestService() (*order.Service, *memory.Store, *capturePublisher) {
	store := memory.New()
	pub := &capturePublisher{}
	return order.NewService(store, pub, 0.08), store, pub
}

func createOrder(t *testing.T, svc *order.Service, items ...order.CreateItemRequest) *order.Order {
	t.Helper()
	if len(items) == 0 {
		items = []order.CreateItemRequest{{MenuItemID: "m1", Name: "Pho Bo", Quantity: 2, UnitPrice: 12.50}}
	}
	o, err := svc.Create(context.Background(), order.CreateOrderRequest{
		TableID:   "table-7",
		GuestName: "Linh",
		Items:     items,
	})
	require.NoError(t, err)
	return o
}

func TestCreateComputesTotals(t *testing.T) {
	svc, _, _ := newTestService()
	o := createOrder(t, svc, order.CreateItemRequest{
		MenuItemID: "m1", Name: "Pho Bo", Quantity: 2, UnitPrice: 10,
		Modifiers: []order.ItemModifier{{Name: "extra beef", Price: 2.5}},
	})

	assert.Equal(t, order.StatusPendingAcceptance, o.Status)
	assert.Equal(t, 25.0, o.Subtotal)
	assert.Equal(t, 2.0, o.TaxAmount)
	assert.Equal(t, 27.0, o.Total)
	assert.Equal(t, 25.0, o.Items[0].LineTotal)
	assert.NotEmpty(t, o.Number)
	assert.False(t, o.IsPaid)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name string
		req  order.CreateOrderRequest
	}{
		{"empty guest name", order.CreateOrderRequest{TableID: "t1", Items: []order.CreateItemRequest{{Name: "a", Quantity: 1, UnitPrice: 1}}}},
		{"bad guest name characters", order.CreateOrderRequest{TableID: "t1", GuestName: "Linh;DROP", Items: []order.CreateItemRequest{{Name: "a", Quantity: 1, UnitPrice: 1}}}},
		{"missing table", order.CreateOrderRequest{GuestName: "Linh", Items: []order.CreateItemRequest{{Name: "a", Quantity: 1, UnitPrice: 1}}}},
		{"no items", order.CreateOrderRequest{TableID: "t1", GuestName: "Linh"}},
		{"zero quantity", order.CreateOrderRequest{TableID: "t1", GuestName: "Linh", Items: []order.CreateItemRequest{{Name: "a", Quantity: 0, UnitPrice: 1}}}},
		{"free item", order.CreateOrderRequest{TableID: "t1", GuestName: "Linh", Items: []order.CreateItemRequest{{Name: "a", Quantity: 1, UnitPrice: 0}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req)
			assert.Error(t, err)
		})
	}
}

func TestTransitionEmitsExactlyOneEvent(t *testing.T) {
	svc, _, pub := newTestService()
	o := createOrder(t, svc)

	got, err := svc.Transition(context.Background(), o.ID, order.StatusAccepted, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusAccepted, got.Status)
	assert.NotNil(t, got.AcceptedAt)

	evs := pub.all()
	require.Len(t, evs, 1)
	assert.Equal(t, order.EventAccepted, evs[0].Type)
	assert.Equal(t, o.ID, evs[0].OrderID)
	assert.Equal(t, got.StatusSeq, evs[0].Seq)
}

func TestInvalidTransitionLeavesOrderUnchanged(t *testing.T) {
	svc, _, pub := newTestService()
	o := createOrder(t, svc)

	_, err := svc.Transition(context.Background(), o.ID, order.StatusReady, "staff-1")
	assert.ErrorIs(t, err, order.ErrInvalidTransition)

	stored, err := svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPendingAcceptance, stored.Status)
	assert.Empty(t, pub.all(), "rejected transition must not fan out")
}

func TestTransitionSequenceIsMonotonic(t *testing.T) {
	svc, _, pub := newTestService()
	o := createOrder(t, svc)

	path := []order.Status{order.StatusAccepted, order.StatusReceived, order.StatusPreparing, order.StatusReady, order.StatusCompleted}
	for _, s := range path {
		_, err := svc.Transition(context.Background(), o.ID, s, "staff-1")
		require.NoError(t, err)
	}

	evs := pub.all()
	require.Len(t, evs, len(path))
	for i := 1; i < len(evs); i++ {
		assert.Greater(t, evs[i].Seq, evs[i-1].Seq)
	}
	assert.Equal(t, order.EventProgress, evs[1].Type)
	assert.Equal(t, order.StatusReceived, evs[1].NewStatus)
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	store := memory.New()
	pub := &capturePublisher{fail: assert.AnError}
	svc := order.NewService(store, pub, 0.08)
	o := createOrder(t, svc)

	got, err := svc.Transition(context.Background(), o.ID, order.StatusAccepted, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusAccepted, got.Status)

	// The state is durably committed: a direct read sees it even though the
	// event never left the building.
	stored, err := svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusAccepted, stored.Status)
}

func TestRequestBillFirstCallWins(t *testing.T) {
	svc, _, pub := newTestService()
	o := createOrder(t, svc)

	first, err := svc.RequestBill(context.Background(), o.ID)
	require.NoError(t, err)
	require.NotNil(t, first.BillRequestedAt)

	second, err := svc.RequestBill(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.BillRequestedAt, *second.BillRequestedAt)

	// Only the applied request produces a snapshot event.
	evs := pub.all()
	require.Len(t, evs, 1)
	assert.Equal(t, order.EventUpdated, evs[0].Type)
	require.NotNil(t, evs[0].Order)
	assert.NotNil(t, evs[0].Order.BillRequestedAt)
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	svc, _, pub := newTestService()
	o := createOrder(t, svc)

	meta := order.PaymentMeta{Method: order.MethodCash}
	first, err := svc.MarkPaid(context.Background(), o.ID, meta)
	require.NoError(t, err)
	assert.True(t, first.IsPaid)
	require.NotNil(t, first.PaidAt)

	second, err := svc.MarkPaid(context.Background(), o.ID, meta)
	require.NoError(t, err)
	assert.Equal(t, *first.PaidAt, *second.PaidAt)
	assert.Equal(t, first.FinalTotal, second.FinalTotal)

	require.Len(t, pub.all(), 1)
}

func TestMarkPaidRejectsUnknownMethod(t *testing.T) {
	svc, _, _ := newTestService()
	o := createOrder(t, svc)

	_, err := svc.MarkPaid(context.Background(), o.ID, order.PaymentMeta{Method: "bitcoin"})
	assert.Error(t, err)
}
