package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/irsalhamdi/traderfolio/config"
)

type razorpayOrder struct {
	ID       string            `json:"id"`
	Entity   string            `json:"entity"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Status   string            `json:"status"`
	Notes    map[string]string `json:"notes"`
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

type RazorpayClient struct {
	cfg    config.Razorpay
	client *http.Client
}

func NewRazorpay(cfg config.Razorpay, timeout time.Duration) *RazorpayClient {
	return &RazorpayClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (rp *RazorpayClient) Name() string { return Razorpay }

func (rp *RazorpayClient) Public() Public {
	return Public{Gateway: Razorpay, Key: rp.cfg.KeyID, ScriptURL: rp.cfg.ScriptURL}
}

func (rp *RazorpayClient) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	body := struct {
		Amount   int64             `json:"amount"`
		Currency string            `json:"currency"`
		Receipt  string            `json:"receipt"`
		Notes    map[string]string `json:"notes,omitempty"`
	}{
		Amount:   req.Amount,
		Currency: strings.ToUpper(req.Currency),
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	}

	b, err := json.Marshal(body)
	if err != nil {
		return Order{}, fmt.Errorf("encoding razorpay order: %w", err)
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(rp.cfg.URL, "/")+"/v1/orders", bytes.NewReader(b))
	if err != nil {
		return Order{}, fmt.Errorf("building razorpay request: %w", err)
	}
	r.Header.Set("Content-Type", "application/json")
	r.SetBasicAuth(rp.cfg.KeyID, rp.cfg.KeySecret)

	resp, err := rp.client.Do(r)
	if err != nil {
		return Order{}, fmt.Errorf("calling razorpay: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Order{}, fmt.Errorf("reading razorpay response: %v: %w", err, ErrUnavailable)
	}

	if resp.StatusCode/100 != 2 {
		var re razorpayError
		if err := json.Unmarshal(raw, &re); err == nil && re.Error.Code != "" {
			return Order{}, fmt.Errorf("razorpay returned %d %s (%s): %w", resp.StatusCode, re.Error.Code, re.Error.Description, ErrUnavailable)
		}
		return Order{}, fmt.Errorf("razorpay returned %d: %w", resp.StatusCode, ErrUnavailable)
	}

	var ord razorpayOrder
	if err := json.Unmarshal(raw, &ord); err != nil {
		return Order{}, fmt.Errorf("decoding razorpay order: %v: %w", err, ErrUnavailable)
	}

	if ord.ID == "" {
		return Order{}, fmt.Errorf("razorpay order without id: %w", ErrUnavailable)
	}
	if ord.Amount != req.Amount {
		return Order{}, fmt.Errorf("razorpay order[%s] amount %d, requested %d: %w", ord.ID, ord.Amount, req.Amount, ErrUnavailable)
	}

	return Order{ID: ord.ID}, nil
}

func (rp *RazorpayClient) VerifyPayment(ctx context.Context, p Payment) (string, error) {
	if p.PaymentID == "" || p.Signature == "" {
		return "", fmt.Errorf("razorpay order[%s]: missing payment id or signature: %w", p.GatewayOrderID, ErrSignatureMismatch)
	}

	expected := RazorpaySignature(p.GatewayOrderID, p.PaymentID, rp.cfg.KeySecret)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(p.Signature))) {
		return "", fmt.Errorf("razorpay order[%s] payment[%s]: %w", p.GatewayOrderID, p.PaymentID, ErrSignatureMismatch)
	}

	return p.PaymentID, nil
}

// RazorpaySignature computes the checkout signature Razorpay sends back to the
// browser: hex(HMAC-SHA256(order_id + "|" + payment_id, key_secret)).
func RazorpaySignature(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
