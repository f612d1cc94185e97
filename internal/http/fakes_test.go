package http

import (
	"context"
	"io"
	"log"
	"net/http"
	"sync"
	"testing"

	"github.com/construmax/storefront-backend/internal/auth"
	"github.com/construmax/storefront-backend/internal/cart"
	"github.com/construmax/storefront-backend/internal/catalog"
	"github.com/construmax/storefront-backend/internal/checkout"
	"github.com/construmax/storefront-backend/internal/order"
)

var testSecret = []byte("test-secret")

type fakeCatalogRepo struct {
	mu       sync.Mutex
	products map[string]catalog.Product
	listErr  error

	created []catalog.Product
	updated []catalog.Product
	deleted []string
}

func newFakeCatalogRepo(products ...catalog.Product) *fakeCatalogRepo {
	m := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &fakeCatalogRepo{products: m}
}

func (r *fakeCatalogRepo) List(ctx context.Context) ([]catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]catalog.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeCatalogRepo) Search(ctx context.Context, query, category string) ([]catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.Product
	for _, p := range r.products {
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeCatalogRepo) Get(ctx context.Context, productID string) (catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (r *fakeCatalogRepo) Create(ctx context.Context, p *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = *p
	r.created = append(r.created, *p)
	return nil
}

func (r *fakeCatalogRepo) Update(ctx context.Context, p *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; !ok {
		return catalog.ErrNotFound
	}
	r.products[p.ID] = *p
	r.updated = append(r.updated, *p)
	return nil
}

func (r *fakeCatalogRepo) Delete(ctx context.Context, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[productID]; !ok {
		return catalog.ErrNotFound
	}
	delete(r.products, productID)
	r.deleted = append(r.deleted, productID)
	return nil
}

type fakeCartRepo struct {
	mu      sync.Mutex
	lines   map[string][]cart.Line
	loadErr error
	saveErr error

	saves  int
	clears int
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{lines: map[string][]cart.Line{}}
}

func (r *fakeCartRepo) Load(ctx context.Context, sessionID string) ([]cart.Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return append([]cart.Line(nil), r.lines[sessionID]...), nil
}

func (r *fakeCartRepo) Save(ctx context.Context, sessionID string, lines []cart.Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.lines[sessionID] = append([]cart.Line(nil), lines...)
	return nil
}

func (r *fakeCartRepo) Clear(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
	delete(r.lines, sessionID)
	return nil
}

func (r *fakeCartRepo) stored(sessionID string) []cart.Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cart.Line(nil), r.lines[sessionID]...)
}

type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*order.Order
	createErr error
}

func newFakeOrderRepo(orders ...*order.Order) *fakeOrderRepo {
	m := make(map[string]*order.Order, len(orders))
	for _, o := range orders {
		m[o.ID] = o
	}
	return &fakeOrderRepo{orders: m}
}

func (r *fakeOrderRepo) Create(ctx context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.orders[o.ID] = o
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, orderID string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) List(ctx context.Context) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.Order
	for _, o := range r.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (r *fakeOrderRepo) UpdateStatus(ctx context.Context, orderID string, status order.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	return nil
}

func (r *fakeOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type fakeAdminRepo struct {
	admins map[string]auth.Admin
}

func (r *fakeAdminRepo) GetByEmail(ctx context.Context, email string) (auth.Admin, error) {
	a, ok := r.admins[email]
	if !ok {
		return auth.Admin{}, auth.ErrNotFound
	}
	return a, nil
}

type fakePaymentGateway struct {
	mu         sync.Mutex
	createErr  error
	confirmErr error
	paymentRef string
	intents    int
}

func (g *fakePaymentGateway) CreateIntent(ctx context.Context, lines []cart.Line, customer order.Customer) (checkout.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return checkout.Intent{}, g.createErr
	}
	g.intents++
	return checkout.Intent{ID: "intent-1"}, nil
}

func (g *fakePaymentGateway) Confirm(ctx context.Context, intent checkout.Intent) (checkout.Confirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.confirmErr != nil {
		return checkout.Confirmation{}, g.confirmErr
	}
	ref := g.paymentRef
	if ref == "" {
		ref = "pay-1"
	}
	return checkout.Confirmation{PaymentRef: ref}, nil
}

type fakeEvents struct {
	mu         sync.Mutex
	published  []*order.Order
	reconciled []*order.Order
	publishErr error
}

func (e *fakeEvents) PublishOrderCreated(ctx context.Context, o *order.Order) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.publishErr != nil {
		return e.publishErr
	}
	e.published = append(e.published, o)
	return nil
}

func (e *fakeEvents) OrderReconcile(ctx context.Context, o *order.Order) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reconciled = append(e.reconciled, o)
	return nil
}

type testEnv struct {
	router  http.Handler
	catalog *fakeCatalogRepo
	carts   *fakeCartRepo
	orders  *fakeOrderRepo
	gateway *fakePaymentGateway
	events  *fakeEvents
	admins  *fakeAdminRepo
}

func newTestEnv(t *testing.T, products ...catalog.Product) *testEnv {
	t.Helper()

	logger := log.New(io.Discard, "", 0)

	env := &testEnv{
		catalog: newFakeCatalogRepo(products...),
		carts:   newFakeCartRepo(),
		orders:  newFakeOrderRepo(),
		gateway: &fakePaymentGateway{},
		events:  &fakeEvents{},
		admins:  &fakeAdminRepo{admins: map[string]auth.Admin{}},
	}

	env.router = NewRouter(RouterConfig{
		Products: NewProductHandler(env.catalog, catalog.NewStore(env.catalog)),
		Carts:    NewCartHandler(env.carts, env.catalog, logger),
		Checkout: NewCheckoutHandler(env.carts, env.gateway, env.orders, env.events, env.events, logger),
		Admin:    NewAdminHandler(env.admins, env.catalog, env.orders, testSecret),

		JWTSecret:        testSecret,
		CORSAllowOrigins: []string{"*"},
	})

	return env
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, "admin@construmax.mx", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}
