package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"checkout-service/internal/gateway"
	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockOrderStore implements OrderStore in memory.
type mockOrderStore struct {
	mu         sync.Mutex
	profiles   map[string]bool
	addresses  map[string]models.Address
	orders     []models.Order
	items      []models.OrderItem
	nextID     int64
	failCreate error

	ensureProfileCalls int
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{
		profiles:  make(map[string]bool),
		addresses: make(map[string]models.Address),
	}
}

func (m *mockOrderStore) FindProfile(_ context.Context, userID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profiles[userID] {
		return &models.Profile{UserID: userID}, nil
	}
	return nil, nil
}

func (m *mockOrderStore) EnsureProfile(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureProfileCalls++
	m.profiles[userID] = true
	return nil
}

func (m *mockOrderStore) GetAddress(_ context.Context, userID, addressID string) (*models.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr, ok := m.addresses[addressID]
	if !ok || addr.UserID != userID {
		return nil, errors.New("address not found")
	}
	return &addr, nil
}

func (m *mockOrderStore) CreateOrderWithItems(_ context.Context, order *models.Order, items []models.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		// Atomic: nothing is stored on failure.
		return m.failCreate
	}
	m.nextID++
	order.ID = m.nextID
	m.orders = append(m.orders, *order)
	for i := range items {
		items[i].OrderID = order.ID
		m.items = append(m.items, items[i])
	}
	return nil
}

func (m *mockOrderStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == id {
			return &m.orders[i], nil
		}
	}
	return nil, errors.New("order not found")
}

func (m *mockOrderStore) GetOrderItemsByOrderID(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.OrderItem
	for _, item := range m.items {
		if item.OrderID == orderID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockOrderStore) GetOrdersByUserID(_ context.Context, userID string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderStore) GetOrderByGatewayOrderID(_ context.Context, gatewayOrderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].GatewayOrderID == gatewayOrderID {
			return &m.orders[i], nil
		}
	}
	return nil, errors.New("order not found")
}

func (m *mockOrderStore) UpdatePaymentStatus(_ context.Context, gatewayOrderID, paymentStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].GatewayOrderID == gatewayOrderID {
			m.orders[i].PaymentStatus = paymentStatus
			return nil
		}
	}
	return errors.New("order not found")
}

// mockGateway implements PaymentGateway.
type mockGateway struct {
	mu          sync.Mutex
	err         error
	verifyOK    bool
	createCalls int
	gotAmount   decimal.Decimal
}

func (m *mockGateway) CreateOrder(_ context.Context, amount decimal.Decimal, _ string) (*gateway.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	m.gotAmount = amount
	if m.err != nil {
		return nil, m.err
	}
	return &gateway.Order{
		ID:          "order_rzp_test",
		AmountMinor: gateway.ToMinorUnits(amount),
		Currency:    "INR",
		Receipt:     "rcpt_test",
	}, nil
}

func (m *mockGateway) VerifyPaymentSignature(_, _, _ string) bool {
	return m.verifyOK
}

// mockPublisher implements EventPublisher and AbusePublisher.
type mockPublisher struct {
	mu        sync.Mutex
	tampering chan *models.PriceTamperingEvent
	initiated []*models.OrderInitiatedEvent
	captured  []*models.PaymentCapturedEvent
	failed    []*models.PaymentFailedEvent
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{tampering: make(chan *models.PriceTamperingEvent, 8)}
}

func (m *mockPublisher) PublishPriceTampering(_ context.Context, e *models.PriceTamperingEvent) error {
	m.tampering <- e
	return nil
}

func (m *mockPublisher) PublishOrderInitiated(_ context.Context, e *models.OrderInitiatedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initiated = append(m.initiated, e)
	return nil
}

func (m *mockPublisher) PublishPaymentCaptured(_ context.Context, e *models.PaymentCapturedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captured = append(m.captured, e)
	return nil
}

func (m *mockPublisher) PublishPaymentFailed(_ context.Context, e *models.PaymentFailedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, e)
	return nil
}

type checkoutFixture struct {
	store     *mockOrderStore
	gateway   *mockGateway
	publisher *mockPublisher
	svc       *CheckoutService
}

func newCheckoutFixture(catalog Catalog) *checkoutFixture {
	store := newMockOrderStore()
	store.addresses["addr-1"] = models.Address{
		ID: "addr-1", UserID: "user-1", Line1: "14 Mill Road",
		City: "Pune", State: "MH", PostalCode: "411001", Country: "IN",
	}

	gw := &mockGateway{verifyOK: true}
	pub := newMockPublisher()
	svc := NewCheckoutService(store, NewPriceValidator(catalog), gw, NewTamperingLogger(pub), pub)

	return &checkoutFixture{store: store, gateway: gw, publisher: pub, svc: svc}
}

func TestInitiateCheckout_HappyPath(t *testing.T) {
	fx := newCheckoutFixture(catalogWith(
		models.Product{ID: "p1", Price: price("500"), Purchasable: true},
	))

	resp, err := fx.svc.InitiateCheckout(context.Background(), "user-1", "10.0.0.1",
		&InitiateCheckoutRequest{
			Items: []models.CartLineRequest{
				{ProductID: "p1", Quantity: 2, Price: price("500")},
			},
			ShippingAddressID: "addr-1",
		})

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "order_rzp_test", resp.OrderID)
	assert.Equal(t, int64(100000), resp.Amount, "1000 rupees is 100000 paise")
	assert.Equal(t, "INR", resp.Currency)
	assert.NotZero(t, resp.DBOrderID)

	assert.True(t, fx.gateway.gotAmount.Equal(price("1000")))
	assert.Equal(t, 1, fx.store.ensureProfileCalls)

	require.Len(t, fx.store.orders, 1)
	order := fx.store.orders[0]
	assert.Equal(t, "user-1", order.UserID)
	assert.True(t, order.TotalAmount.Equal(price("1000")))
	assert.Equal(t, models.OrderStatusPlaced, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "order_rzp_test", order.GatewayOrderID)
	assert.NotEmpty(t, order.ShippingAddress)

	require.Len(t, fx.store.items, 1)
	assert.True(t, fx.store.items[0].Price.Equal(price("500")), "item price must be the catalog price")
	assert.Equal(t, 2, fx.store.items[0].Quantity)

	require.Len(t, fx.publisher.initiated, 1)
	assert.Equal(t, order.ID, fx.publisher.initiated[0].OrderID)
}

func TestInitiateCheckout_TamperedCart(t *testing.T) {
	fx := newCheckoutFixture(catalogWith(
		models.Product{ID: "p1", Price: price("500"), Purchasable: true},
	))

	resp, err := fx.svc.InitiateCheckout(context.Background(), "user-1", "10.0.0.1",
		&InitiateCheckoutRequest{
			Items: []models.CartLineRequest{
				{ProductID: "p1", Quantity: 2, Price: price("1")},
			},
			ShippingAddressID: "addr-1",
		})

	assert.Nil(t, resp)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.NotEmpty(t, validationErr.Errors)

	assert.Equal(t, 0, fx.gateway.createCalls, "no gateway order for a tampered cart")
	assert.Empty(t, fx.store.orders, "no durable order state for a tampered cart")

	select {
	case event := <-fx.publisher.tampering:
		assert.Equal(t, "user-1", event.UserID)
		assert.Equal(t, "p1", event.ProductID)
		assert.True(t, event.ClaimedPrice.Equal(price("1")))
		assert.True(t, event.ActualPrice.Equal(price("500")))
		assert.Equal(t, "10.0.0.1", event.IPAddress)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a tampering event on the abuse channel")
	}
}

func TestInitiateCheckout_UnresolvableProductNotLoggedAsAbuse(t *testing.T) {
	fx := newCheckoutFixture(catalogWith())

	_, err := fx.svc.InitiateCheckout(context.Background(), "user-1", "10.0.0.1",
		&InitiateCheckoutRequest{
			Items: []models.CartLineRequest{
				{ProductID: "deleted-product", Quantity: 1, Price: price("500")},
			},
			ShippingAddressID: "addr-1",
		})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	// A stale cart is ambiguous, not proven malice.
	select {
	case <-fx.publisher.tampering:
		t.Fatal("unresolvable products must not be logged as tampering")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestInitiateCheckout_OutOfStockStillSucceeds(t *testing.T) {
	fx := newCheckoutFixture(catalogWith(
		models.Product{ID: "p1", Price: price("500"), Purchasable: false},
	))

	resp, err := fx.svc.InitiateCheckout(context.Background(), "user-1", "10.0.0.1",
		&InitiateCheckoutRequest{
			Items: []models.CartLineRequest{
				{ProductID: "p1", Quantity: 1, Price: price("500")},
			},
			ShippingAddressID: "addr-1",
		})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Warnings)
}

func TestInitiateCheckout_MissingAddress(t *testing.T) {
	fx := newCheckoutFixture(catalogWith(
		models.Product{ID: "p1", Price: price("500"), Purchasable: true},
	))

	_, err := fx.svc.InitiateCheckout(context.Background(), "user-1", "10.0.0.1",
		&InitiateCheckoutRequest{
			Items: []models.CartLineRequest{
				{ProductID: "p1", Quantity: 1, Price: price("500")},
			},
			ShippingAddressID: "no-such-address",
		})

	var inputErr *ClientInputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, 0, fx.gateway.createCalls)
	assert.Empty(t, fx.store.orders)
}

func TestInitiateCheckout_GatewayFailure(t *testing.T) {
	fx := newCheckoutFixture(catalogWith(
		models.Product{ID: "p1", Price: price("500"), Purchasable: true},
	))
	fx.gateway.err = errors.New("gateway timeout")

	resp, err := fx.svc.InitiateCheckout(context.Background(), "user-1", "10.0.0.1",
		&InitiateCheckoutRequest{
			Items: []models.CartLineRequest{
				{ProductID: "p1", Quantity: 1, Price: price("500")},
			},
			ShippingAddressID: "addr-1",
		})

	assert.Nil(t, resp)
	assert.Error(t, err)
	assert.Empty(t, fx.store.orders, "no local order when the gateway step fails")
}

func TestInitiateCheckout_PersistenceFailureLeavesNoOrder(t *testing.T) {
	fx := newCheckoutFixture(catalogWith(
		models.Product{ID: "p1", Price: price("500"), Purchasable: true},
	))
	fx.store.failCreate = errors.New("insert failed")

	resp, err := fx.svc.InitiateCheckout(context.Background(), "user-1", "10.0.0.1",
		&InitiateCheckoutRequest{
			Items: []models.CartLineRequest{
				{ProductID: "p1", Quantity: 1, Price: price("500")},
			},
			ShippingAddressID: "addr-1",
		})

	assert.Nil(t, resp)
	assert.Error(t, err)

	var validationErr *ValidationError
	assert.False(t, errors.As(err, &validationErr), "persistence failures are not validation errors")

	assert.Empty(t, fx.store.orders)
	assert.Empty(t, fx.store.items)
}

func TestInitiateCheckout_CatalogDownFailsClosed(t *testing.T) {
	fx := newCheckoutFixture(&mockCatalog{err: errors.New("catalog unreachable")})

	resp, err := fx.svc.InitiateCheckout(context.Background(), "user-1", "10.0.0.1",
		&InitiateCheckoutRequest{
			Items: []models.CartLineRequest{
				{ProductID: "p1", Quantity: 1, Price: price("500")},
			},
			ShippingAddressID: "addr-1",
		})

	assert.Nil(t, resp)
	require.Error(t, err)

	var validationErr *ValidationError
	assert.False(t, errors.As(err, &validationErr), "systemic failure is not a client validation error")
	assert.Equal(t, 0, fx.gateway.createCalls)
	assert.Empty(t, fx.store.orders)
}

func TestVerifyPayment_Success(t *testing.T) {
	fx := newCheckoutFixture(catalogWith(
		models.Product{ID: "p1", Price: price("500"), Purchasable: true},
	))

	_, err := fx.svc.InitiateCheckout(context.Background(), "user-1", "10.0.0.1",
		&InitiateCheckoutRequest{
			Items: []models.CartLineRequest{
				{ProductID: "p1", Quantity: 1, Price: price("500")},
			},
			ShippingAddressID: "addr-1",
		})
	require.NoError(t, err)

	order, err := fx.svc.VerifyPayment(context.Background(), &VerifyPaymentRequest{
		GatewayOrderID:   "order_rzp_test",
		GatewayPaymentID: "pay_123",
		Signature:        "sig",
	})

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)
	require.Len(t, fx.publisher.captured, 1)
	assert.Equal(t, "pay_123", fx.publisher.captured[0].GatewayPaymentID)
}

func TestVerifyPayment_BadSignature(t *testing.T) {
	fx := newCheckoutFixture(catalogWith(
		models.Product{ID: "p1", Price: price("500"), Purchasable: true},
	))
	fx.gateway.verifyOK = false

	_, err := fx.svc.InitiateCheckout(context.Background(), "user-1", "10.0.0.1",
		&InitiateCheckoutRequest{
			Items: []models.CartLineRequest{
				{ProductID: "p1", Quantity: 1, Price: price("500")},
			},
			ShippingAddressID: "addr-1",
		})
	require.NoError(t, err)

	order, err := fx.svc.VerifyPayment(context.Background(), &VerifyPaymentRequest{
		GatewayOrderID:   "order_rzp_test",
		GatewayPaymentID: "pay_123",
		Signature:        "forged",
	})

	assert.Nil(t, order)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	stored, getErr := fx.store.GetOrderByGatewayOrderID(context.Background(), "order_rzp_test")
	require.NoError(t, getErr)
	assert.Equal(t, models.PaymentStatusFailed, stored.PaymentStatus)
	require.Len(t, fx.publisher.failed, 1)
}

func TestVerifyPayment_UnknownOrder(t *testing.T) {
	fx := newCheckoutFixture(catalogWith())

	_, err := fx.svc.VerifyPayment(context.Background(), &VerifyPaymentRequest{
		GatewayOrderID:   "order_unknown",
		GatewayPaymentID: "pay_123",
		Signature:        "sig",
	})

	var inputErr *ClientInputError
	assert.ErrorAs(t, err, &inputErr)
}
