package test

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/irsalhamdi/traderfolio/api"
	"github.com/irsalhamdi/traderfolio/config"
	"github.com/irsalhamdi/traderfolio/core/item"
	"github.com/irsalhamdi/traderfolio/core/order"
	"github.com/irsalhamdi/traderfolio/database"
	"github.com/irsalhamdi/traderfolio/gateway"
	"github.com/irsalhamdi/traderfolio/rate"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
)

const (
	razorpayKeyID     = "rzp_test_1DP5mmOlF5G5ag"
	razorpayKeySecret = "thisissupersecret"
	stripeWebhookKey  = "whsec_test_secret"

	coursePrice   = 499900
	workshopPrice = 150000
	servicePrice  = 250000
)

// Catalog holds the ids of the items seeded for a test.
type Catalog struct {
	CourseID   int64
	WorkshopID int64
	ServiceID  int64
	HiddenID   int64
}

type TestEnv struct {
	*httptest.Server

	DB       *sqlx.DB
	Catalog  Catalog
	Razorpay *mockRazorpay
	Stripe   *mockStripe
	Paypal   *mockPaypal
	Alerts   *recordingAlerter
	Fulfills *countingFulfillers
}

// NewTestEnv starts a throwaway Postgres, the payment provider mocks and the
// API on top of them.
func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := startDB(t, name)
	if err != nil {
		return nil, err
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	cat, err := seed(context.Background(), db)
	if err != nil {
		return nil, fmt.Errorf("seeding catalog: %w", err)
	}

	env := &TestEnv{
		DB:       db,
		Catalog:  cat,
		Razorpay: &mockRazorpay{},
		Stripe:   &mockStripe{intents: make(map[string]map[string]any)},
		Paypal:   &mockPaypal{},
		Alerts:   &recordingAlerter{},
		Fulfills: newCountingFulfillers(order.DefaultFulfillers()),
	}

	rzpSrv := httptest.NewServer(env.Razorpay.handle())
	t.Cleanup(rzpSrv.Close)
	strpSrv := httptest.NewServer(env.Stripe.handle())
	t.Cleanup(strpSrv.Close)
	ppSrv := httptest.NewServer(env.Paypal.handle())
	t.Cleanup(ppSrv.Close)

	rzp := gateway.NewRazorpay(config.Razorpay{KeyID: razorpayKeyID, KeySecret: razorpayKeySecret, URL: rzpSrv.URL}, 5*time.Second)

	strpCfg := config.Stripe{APISecret: "sk_test", PublishableKey: "pk_test", WebhookSecret: stripeWebhookKey, URL: strpSrv.URL}
	strp := gateway.NewStripe(gateway.NewStripeAPI(strpCfg), strpCfg)

	ppcl, err := paypal.NewClient("client-id", "client-secret", ppSrv.URL)
	if err != nil {
		return nil, fmt.Errorf("creating paypal client: %w", err)
	}
	if _, err := ppcl.GetAccessToken(context.Background()); err != nil {
		return nil, fmt.Errorf("getting paypal token: %w", err)
	}
	pp := gateway.NewPaypal(ppcl, config.Paypal{ClientID: "client-id"})

	svc := order.NewService(order.ServiceConfig{
		DB:             db,
		Gateways:       gateway.NewSet(rzp, strp, pp),
		DefaultGateway: gateway.Razorpay,
		Timeout:        5 * time.Second,
		Fulfillers:     env.Fulfills.wrapped(),
		Alerter:        env.Alerts,
		Log:            log,
	})

	env.Server = httptest.NewServer(api.APIMux(api.APIConfig{
		Log:     log,
		DB:      db,
		Orders:  svc,
		Stripe:  strp,
		Limiter: rate.NewLimiter(1000, rate.Every(time.Millisecond), time.Minute),
	}))
	t.Cleanup(env.Server.Close)

	return env, nil
}

func startDB(t *testing.T, name string) (*sqlx.DB, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("connecting to docker: %w", err)
	}
	pool.MaxWait = 2 * time.Minute

	res, err := pool.RunWithOptions(&dockertest.RunOptions{
		Name:       "traderfolio_" + name + "_" + fmt.Sprint(time.Now().UnixNano()),
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_DB=traderfolio",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, fmt.Errorf("starting postgres: %w", err)
	}
	t.Cleanup(func() { pool.Purge(res) })

	if err := res.Expire(300); err != nil {
		return nil, fmt.Errorf("setting container expiry: %w", err)
	}

	cfg := config.DB{
		User:         "postgres",
		Password:     "postgres",
		Host:         res.GetHostPort("5432/tcp"),
		Name:         "traderfolio",
		MaxOpenConns: 20,
		DisableTLS:   true,
	}

	var db *sqlx.DB
	err = pool.Retry(func() error {
		var err error
		if db, err = database.Open(cfg); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return database.StatusCheck(ctx, db)
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for postgres: %w", err)
	}
	t.Cleanup(func() { db.Close() })

	return db, nil
}

func seed(ctx context.Context, db *sqlx.DB) (Catalog, error) {
	var cat Catalog

	const course = `
	INSERT INTO courses (title, description, price, currency)
	VALUES ('Options Trading Basics', 'Calls, puts and spreads', $1, 'INR')
	RETURNING course_id`
	if err := db.QueryRowContext(ctx, course, coursePrice).Scan(&cat.CourseID); err != nil {
		return cat, fmt.Errorf("course: %w", err)
	}

	const hidden = `
	INSERT INTO courses (title, price, currency, published)
	VALUES ('Unreleased Course', 100, 'INR', FALSE)
	RETURNING course_id`
	if err := db.QueryRowContext(ctx, hidden).Scan(&cat.HiddenID); err != nil {
		return cat, fmt.Errorf("hidden course: %w", err)
	}

	const workshop = `
	INSERT INTO workshops (title, starts_at, location, price, currency, capacity)
	VALUES ('Price Action Live', NOW() + INTERVAL '30 days', 'Mumbai', $1, 'INR', 1)
	RETURNING workshop_id`
	if err := db.QueryRowContext(ctx, workshop, workshopPrice).Scan(&cat.WorkshopID); err != nil {
		return cat, fmt.Errorf("workshop: %w", err)
	}

	const service = `
	INSERT INTO services (title, duration_min, price, currency)
	VALUES ('Portfolio Review', 45, $1, 'INR')
	RETURNING service_id`
	if err := db.QueryRowContext(ctx, service, servicePrice).Scan(&cat.ServiceID); err != nil {
		return cat, fmt.Errorf("service: %w", err)
	}

	return cat, nil
}

type recordingAlerter struct {
	mu       sync.Mutex
	subjects []string
}

func (a *recordingAlerter) Alert(ctx context.Context, subject string, fields map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subjects = append(a.subjects, subject)
}

func (a *recordingAlerter) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subjects)
}

// countingFulfillers counts how often the success action of every item type
// ran.
type countingFulfillers struct {
	next  map[item.Type]order.Fulfiller
	count map[item.Type]*atomic.Int32
}

func newCountingFulfillers(next map[item.Type]order.Fulfiller) *countingFulfillers {
	c := &countingFulfillers{next: next, count: make(map[item.Type]*atomic.Int32)}
	for typ := range next {
		c.count[typ] = &atomic.Int32{}
	}
	return c
}

func (c *countingFulfillers) wrapped() map[item.Type]order.Fulfiller {
	out := make(map[item.Type]order.Fulfiller, len(c.next))
	for typ, f := range c.next {
		typ, f := typ, f
		out[typ] = order.FulfillerFunc(func(ctx context.Context, tx sqlx.ExtContext, ord order.Order) error {
			c.count[typ].Add(1)
			return f.Fulfill(ctx, tx, ord)
		})
	}
	return out
}

func (c *countingFulfillers) Count(typ item.Type) int {
	return int(c.count[typ].Load())
}
