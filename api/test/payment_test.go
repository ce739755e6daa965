package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/traderfolio/api/web"
	"github.com/plutov/paypal/v4"
	mock "github.com/stripe/stripe-mock/param"
)

type mockRazorpay struct {
	seq atomic.Int64
}

func (m *mockRazorpay) handle() http.Handler {
	create := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != razorpayKeyID || pass != razorpayKeySecret {
			web.Respond(context.Background(), w, map[string]any{"error": map[string]string{"code": "BAD_REQUEST_ERROR", "description": "Authentication failed"}}, http.StatusUnauthorized)
			return
		}

		var req struct {
			Amount   int64             `json:"amount"`
			Currency string            `json:"currency"`
			Receipt  string            `json:"receipt"`
			Notes    map[string]string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 || req.Receipt == "" {
			web.Respond(context.Background(), w, nil, http.StatusBadRequest)
			return
		}

		ord := map[string]any{
			"id":       fmt.Sprintf("order_test%08d", m.seq.Add(1)),
			"entity":   "order",
			"amount":   req.Amount,
			"currency": req.Currency,
			"receipt":  req.Receipt,
			"status":   "created",
			"notes":    req.Notes,
		}
		web.Respond(context.Background(), w, ord, http.StatusOK)
	})

	r := mux.NewRouter()
	r.Handle("/v1/orders", create).Methods("POST")
	return r
}

type mockStripe struct {
	mu      sync.Mutex
	seq     int
	intents map[string]map[string]any
}

// Succeed marks a payment intent as paid, as the Stripe checkout would.
func (m *mockStripe) Succeed(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pi, ok := m.intents[id]; ok {
		pi["status"] = "succeeded"
	}
}

func (m *mockStripe) handle() http.Handler {
	create := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, _ := mock.ParseParams(r)

		amount, err := strconv.ParseInt(fmt.Sprint(params["amount"]), 10, 64)
		if err != nil {
			web.Respond(context.Background(), w, err, http.StatusBadRequest)
			return
		}

		m.mu.Lock()
		m.seq++
		id := fmt.Sprintf("pi_test%08d", m.seq)
		pi := map[string]any{
			"id":            id,
			"object":        "payment_intent",
			"amount":        amount,
			"currency":      params["currency"],
			"client_secret": id + "_secret_test",
			"status":        "requires_payment_method",
		}
		m.intents[id] = pi
		m.mu.Unlock()

		web.Respond(context.Background(), w, pi, http.StatusOK)
	})

	get := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		pi, ok := m.intents[mux.Vars(r)["id"]]
		var out map[string]any
		if ok {
			out = make(map[string]any, len(pi))
			for k, v := range pi {
				out[k] = v
			}
		}
		m.mu.Unlock()

		if !ok {
			web.Respond(context.Background(), w, map[string]any{"error": map[string]string{"type": "invalid_request_error", "message": "No such payment_intent"}}, http.StatusNotFound)
			return
		}
		web.Respond(context.Background(), w, out, http.StatusOK)
	})

	r := mux.NewRouter()
	r.Handle("/v1/payment_intents", create).Methods("POST")
	r.Handle("/v1/payment_intents/{id}", get).Methods("GET")
	return r
}

type paypalOrder struct {
	status    string
	amount    *paypal.PurchaseUnitAmount
	captureID string
}

// mockPaypal approves every order it opens, as if the buyer went through the
// PayPal popup, and captures each order at most once.
type mockPaypal struct {
	mu       sync.Mutex
	seq      int
	orders   map[string]*paypalOrder
	captures int
}

// Captures reports how many captures the mock accepted.
func (m *mockPaypal) Captures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captures
}

func (m *mockPaypal) units(o *paypalOrder) []paypal.CapturedPurchaseUnit {
	if o.captureID == "" {
		return nil
	}
	capt := paypal.CaptureAmount{ID: o.captureID, Status: "COMPLETED", Amount: o.amount}
	return []paypal.CapturedPurchaseUnit{{Payments: &paypal.CapturedPayments{Captures: []paypal.CaptureAmount{capt}}}}
}

func (m *mockPaypal) handle() http.Handler {
	token := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		web.Respond(context.Background(), w, map[string]any{"access_token": "A21AA", "token_type": "Bearer", "expires_in": 32400}, http.StatusOK)
	})

	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var pu struct {
			Units []paypal.PurchaseUnitRequest `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&pu); err != nil || len(pu.Units) != 1 || pu.Units[0].Amount == nil {
			web.Respond(context.Background(), w, nil, http.StatusBadRequest)
			return
		}

		m.mu.Lock()
		if m.orders == nil {
			m.orders = make(map[string]*paypalOrder)
		}
		m.seq++
		id := fmt.Sprintf("PAYPAL%011d", m.seq)
		amt := pu.Units[0].Amount
		m.orders[id] = &paypalOrder{status: "APPROVED", amount: &paypal.PurchaseUnitAmount{Currency: amt.Currency, Value: amt.Value}}
		m.mu.Unlock()

		web.Respond(context.Background(), w, paypal.Order{ID: id, Status: "CREATED"}, http.StatusCreated)
	})

	show := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		m.mu.Lock()
		o, ok := m.orders[id]
		var out paypal.Order
		if ok {
			out = paypal.Order{ID: id, Status: o.status}
			for _, u := range m.units(o) {
				out.PurchaseUnits = append(out.PurchaseUnits, paypal.PurchaseUnit{Payments: u.Payments})
			}
		}
		m.mu.Unlock()

		if !ok {
			web.Respond(context.Background(), w, map[string]string{"name": "RESOURCE_NOT_FOUND"}, http.StatusNotFound)
			return
		}
		web.Respond(context.Background(), w, out, http.StatusOK)
	})

	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		m.mu.Lock()
		o, ok := m.orders[id]
		var (
			out    paypal.CaptureOrderResponse
			status = http.StatusCreated
		)
		switch {
		case !ok:
			status = http.StatusNotFound
		case o.status == "COMPLETED":
			status = http.StatusUnprocessableEntity
		default:
			m.captures++
			o.status = "COMPLETED"
			o.captureID = fmt.Sprintf("CAPT%012d", m.captures)
			out = paypal.CaptureOrderResponse{ID: id, Status: o.status, PurchaseUnits: m.units(o)}
		}
		m.mu.Unlock()

		if status == http.StatusUnprocessableEntity {
			body := map[string]any{
				"name":    "UNPROCESSABLE_ENTITY",
				"details": []map[string]string{{"issue": "ORDER_ALREADY_CAPTURED"}},
			}
			web.Respond(context.Background(), w, body, status)
			return
		}
		if status != http.StatusCreated {
			web.Respond(context.Background(), w, map[string]string{"name": "RESOURCE_NOT_FOUND"}, status)
			return
		}
		web.Respond(context.Background(), w, out, status)
	})

	r := mux.NewRouter()
	r.Handle("/v1/oauth2/token", token).Methods("POST")
	r.Handle("/v2/checkout/orders", checkout).Methods("POST")
	r.Handle("/v2/checkout/orders/{id}", show).Methods("GET")
	r.Handle("/v2/checkout/orders/{id}/capture", capture).Methods("POST")
	return r
}
