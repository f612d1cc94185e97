package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/construmax/storefront-backend/internal/auth"
	"github.com/construmax/storefront-backend/internal/cart"
	"github.com/construmax/storefront-backend/internal/catalog"
	"github.com/construmax/storefront-backend/internal/db"
	"github.com/construmax/storefront-backend/internal/events"
	httpserver "github.com/construmax/storefront-backend/internal/http"
	"github.com/construmax/storefront-backend/internal/order"
	"github.com/construmax/storefront-backend/internal/payment"
	"github.com/construmax/storefront-backend/internal/pricing"
)

const (
	adminEmail    = "admin@construmax.mx"
	adminPassword = "obra-negra-2024"
	jwtSecret     = "integration-secret"
)

func TestStorefrontIntegration(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	pgC, dbURL := startPostgres(ctx, t)
	defer terminateContainer(t, pgC)

	rabbitC, rabbitURL := startRabbitMQ(ctx, t)
	defer terminateContainer(t, rabbitC)

	logger := log.New(io.Discard, "", log.LstdFlags)
	require.NoError(t, db.RunMigrations(dbURL, logger))

	gatewaySrv := startFakeGateway(t)

	app := startStorefront(ctx, t, dbURL, rabbitURL, gatewaySrv.URL)
	defer app.stop()

	seedAdmin(ctx, t, app)

	client := &http.Client{Timeout: 10 * time.Second}

	token := login(ctx, t, client, app.baseURL)

	productID := createProduct(ctx, t, client, app.baseURL, token, map[string]any{
		"name":     "Cemento gris 50kg",
		"price":    189.50,
		"category": "cemento",
		"stock":    40,
		"tag":      "popular",
	})

	// storefront list goes through the catalog store
	products := listProducts(ctx, t, client, app.baseURL)
	require.Len(t, products, 1)
	require.Equal(t, productID, products[0].ID)

	// build a session cart: two bags of cement
	addToCart(ctx, t, client, app.baseURL, "session-1", productID)
	cartState := addToCart(ctx, t, client, app.baseURL, "session-1", productID)
	require.Equal(t, 2, cartState.TotalItems)

	wantSummary := pricing.Summarize(2 * 189.50)
	require.Equal(t, wantSummary, cartState.Summary)

	placed := checkoutCart(ctx, t, client, app.baseURL, "session-1")
	require.Equal(t, order.StatusPending, placed.Status)
	require.Equal(t, wantSummary.Total, placed.Total)
	require.NotEmpty(t, placed.PaymentRef)

	// cart must be empty once the order row is durable
	emptied := getCart(ctx, t, client, app.baseURL, "session-1")
	require.Equal(t, 0, emptied.TotalItems)

	// the order.created event reaches the broker
	rabbitConn := dialAMQP(ctx, t, rabbitURL)
	defer rabbitConn.Close()
	ev := waitForOrderCreated(ctx, t, rabbitConn)
	require.Equal(t, placed.ID, ev.OrderID)
	require.Len(t, ev.Items, 1)
	require.Equal(t, 2, ev.Items[0].Quantity)

	// back office walks the order through its lifecycle
	updated := updateOrderStatus(ctx, t, client, app.baseURL, token, placed.ID, "paid", http.StatusOK)
	require.Equal(t, order.StatusPaid, updated.Status)

	updateOrderStatus(ctx, t, client, app.baseURL, token, placed.ID, "delivered", http.StatusConflict)

	updated = updateOrderStatus(ctx, t, client, app.baseURL, token, placed.ID, "shipped", http.StatusOK)
	require.Equal(t, order.StatusShipped, updated.Status)
}

type storefrontApp struct {
	baseURL string
	pool    *pgxpool.Pool
	stop    func()
}

func startStorefront(ctx context.Context, t *testing.T, dbURL, rabbitURL, gatewayURL string) *storefrontApp {
	t.Helper()

	pool, err := db.Open(ctx, dbURL)
	require.NoError(t, err)

	conn := dialAMQP(ctx, t, rabbitURL)

	publisher, err := events.NewPublisher(conn)
	require.NoError(t, err)

	gateway, err := payment.NewClient(gatewayURL, 5*time.Second)
	require.NoError(t, err)

	logger := log.New(io.Discard, "", log.LstdFlags)

	productRepo := catalog.NewPostgresRepository(pool)
	cartRepo := cart.NewPostgresRepository(pool)
	orderRepo := order.NewPostgresRepository(pool)
	adminRepo := auth.NewPostgresRepository(pool)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Products: httpserver.NewProductHandler(productRepo, catalog.NewStore(productRepo)),
		Carts:    httpserver.NewCartHandler(cartRepo, productRepo, logger),
		Checkout: httpserver.NewCheckoutHandler(cartRepo, gateway, orderRepo, publisher, publisher, logger),
		Admin:    httpserver.NewAdminHandler(adminRepo, productRepo, orderRepo, []byte(jwtSecret)),

		JWTSecret:        []byte(jwtSecret),
		CORSAllowOrigins: []string{"*"},
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	return &storefrontApp{
		baseURL: fmt.Sprintf("http://%s", ln.Addr().String()),
		pool:    pool,
		stop: func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = server.Shutdown(shutdownCtx)
			_ = publisher.Close()
			_ = conn.Close()
			pool.Close()

			select {
			case err := <-errCh:
				t.Logf("server error: %v", err)
			default:
			}
		},
	}
}

// startFakeGateway serves the card processor API: every intent is granted and
// every confirmation succeeds.
func startFakeGateway(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/payments/intents", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"intentId": "intent-integration"})
	})
	mux.HandleFunc("/api/payments/intents/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"status":     "succeeded",
			"paymentRef": "pay-integration",
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func seedAdmin(ctx context.Context, t *testing.T, app *storefrontApp) {
	t.Helper()

	hash, err := auth.HashPassword(adminPassword)
	require.NoError(t, err)

	_, err = app.pool.Exec(ctx,
		`INSERT INTO admins (id, email, password_hash) VALUES ($1, $2, $3)`,
		uuid.NewString(), adminEmail, hash)
	require.NoError(t, err)
}

func startPostgres(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "storefront"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/storefront?sslmode=disable", host, mappedPort.Port())
	return container, dsn
}

func startRabbitMQ(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3-management",
		ExposedPorts: []string{"5672/tcp", "15672/tcp"},
		WaitingFor:   wait.ForListeningPort("5672/tcp").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)

	return container, fmt.Sprintf("amqp://guest:guest@%s:%s/", host, mappedPort.Port())
}

func terminateContainer(t *testing.T, c testcontainers.Container) {
	t.Helper()
	terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Terminate(terminateCtx))
}

func dialAMQP(ctx context.Context, t *testing.T, rabbitURL string) *amqp.Connection {
	t.Helper()
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, err := amqp.DialConfig(rabbitURL, amqp.Config{
		Dial: func(network, addr string) (net.Conn, error) {
			return (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 5 * time.Second,
			}).DialContext(dialCtx, network, addr)
		},
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	require.NoError(t, err)
	return conn
}

func login(ctx context.Context, t *testing.T, client *http.Client, baseURL string) string {
	t.Helper()

	var resp map[string]string
	postJSON(ctx, t, client, baseURL+"/api/admin/login", "", map[string]string{
		"email":    adminEmail,
		"password": adminPassword,
	}, http.StatusOK, &resp)

	require.NotEmpty(t, resp["token"])
	return resp["token"]
}

func createProduct(ctx context.Context, t *testing.T, client *http.Client, baseURL, token string, body map[string]any) string {
	t.Helper()

	var p catalog.Product
	postJSON(ctx, t, client, baseURL+"/api/admin/products", token, body, http.StatusCreated, &p)
	require.NotEmpty(t, p.ID)
	return p.ID
}

func listProducts(ctx context.Context, t *testing.T, client *http.Client, baseURL string) []catalog.Product {
	t.Helper()

	var products []catalog.Product
	getJSON(ctx, t, client, baseURL+"/api/products", http.StatusOK, &products)
	return products
}

type cartResponse struct {
	Items      []cart.Line     `json:"items"`
	TotalItems int             `json:"totalItems"`
	Summary    pricing.Summary `json:"summary"`
}

func addToCart(ctx context.Context, t *testing.T, client *http.Client, baseURL, sessionID, productID string) cartResponse {
	t.Helper()

	var resp cartResponse
	postJSON(ctx, t, client, fmt.Sprintf("%s/api/cart/%s/items", baseURL, sessionID), "",
		map[string]any{"productId": productID}, http.StatusOK, &resp)
	return resp
}

func getCart(ctx context.Context, t *testing.T, client *http.Client, baseURL, sessionID string) cartResponse {
	t.Helper()

	var resp cartResponse
	getJSON(ctx, t, client, fmt.Sprintf("%s/api/cart/%s", baseURL, sessionID), http.StatusOK, &resp)
	return resp
}

func checkoutCart(ctx context.Context, t *testing.T, client *http.Client, baseURL, sessionID string) order.Order {
	t.Helper()

	var placed order.Order
	postJSON(ctx, t, client, fmt.Sprintf("%s/api/cart/%s/checkout", baseURL, sessionID), "",
		map[string]string{
			"name":    "Maria Lopez",
			"phone":   "555-123-4567",
			"address": "Av. Insurgentes 120, Col. Centro",
			"email":   "maria@example.com",
		}, http.StatusCreated, &placed)
	return placed
}

func updateOrderStatus(ctx context.Context, t *testing.T, client *http.Client, baseURL, token, orderID, status string, wantCode int) order.Order {
	t.Helper()

	body, err := json.Marshal(map[string]string{"status": status})
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		fmt.Sprintf("%s/api/admin/orders/%s/status", baseURL, orderID), bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, wantCode, resp.StatusCode)

	var o order.Order
	if wantCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&o))
	}
	return o
}

func waitForOrderCreated(ctx context.Context, t *testing.T, conn *amqp.Connection) events.OrderCreated {
	t.Helper()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	_, err = ch.QueueDeclare(events.OrderCreatedQueue, true, false, false, false, nil)
	require.NoError(t, err)

	pollCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	backoff := 50 * time.Millisecond
	for {
		select {
		case <-pollCtx.Done():
			t.Fatalf("timed out waiting for order.created: %v", pollCtx.Err())
		default:
		}

		msg, ok, getErr := ch.Get(events.OrderCreatedQueue, true)
		require.NoError(t, getErr)
		if ok {
			var ev events.OrderCreated
			require.NoError(t, json.Unmarshal(msg.Body, &ev))
			return ev
		}

		time.Sleep(backoff)
		if backoff < time.Second {
			backoff *= 2
			if backoff > time.Second {
				backoff = time.Second
			}
		}
	}
}

func postJSON(ctx context.Context, t *testing.T, client *http.Client, url, token string, body any, wantCode int, out any) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, wantCode, resp.StatusCode)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func getJSON(ctx context.Context, t *testing.T, client *http.Client, url string, wantCode int, out any) {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, wantCode, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}
