// Package client is a Go client for the checkout API. Every failed call
// comes back as an *errclass.NetworkError; nothing is retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/irsalhamdi/traderfolio/client/errclass"
)

type CheckoutConfig struct {
	Gateway   string `json:"gateway"`
	Key       string `json:"key"`
	ScriptURL string `json:"script_url"`
}

type OrderRequest struct {
	ItemID   int64             `json:"item_id"`
	ItemType string            `json:"item_type"`
	Email    string            `json:"email"`
	Name     string            `json:"name,omitempty"`
	Phone    string            `json:"phone,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
	Gateway  string            `json:"gateway,omitempty"`
}

type Order struct {
	OrderID        string `json:"order_id"`
	Gateway        string `json:"gateway"`
	GatewayOrderID string `json:"gateway_order_id"`
	ItemType       string `json:"item_type"`
	ItemID         int64  `json:"item_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	ReceiptNo      string `json:"receipt_no"`
	CheckoutToken  string `json:"checkout_token,omitempty"`
}

type Receipt struct {
	ReceiptNo      string    `json:"receipt_no"`
	OrderID        string    `json:"order_id"`
	Gateway        string    `json:"gateway"`
	GatewayOrderID string    `json:"gateway_order_id"`
	PaymentID      string    `json:"gateway_payment_id"`
	ItemType       string    `json:"item_type"`
	ItemID         int64     `json:"item_id"`
	Email          string    `json:"email"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	Display        string    `json:"display"`
	CompletedAt    time.Time `json:"completed_at"`
}

type Confirmation struct {
	Status  string   `json:"status"`
	Receipt *Receipt `json:"receipt,omitempty"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) CheckoutConfig(ctx context.Context, gateway string) (CheckoutConfig, error) {
	path := "/checkout/config"
	if gateway != "" {
		path += "?gateway=" + url.QueryEscape(gateway)
	}

	var cfg CheckoutConfig
	if err := c.do(ctx, http.MethodGet, path, nil, &cfg); err != nil {
		return CheckoutConfig{}, err
	}
	return cfg, nil
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	var ord Order
	if err := c.do(ctx, http.MethodPost, "/orders", req, &ord); err != nil {
		return Order{}, err
	}
	return ord, nil
}

func (c *Client) Verify(ctx context.Context, orderID, paymentID, signature string) (Confirmation, error) {
	body := struct {
		PaymentID string `json:"gateway_payment_id"`
		Signature string `json:"gateway_signature,omitempty"`
	}{
		PaymentID: paymentID,
		Signature: signature,
	}

	var conf Confirmation
	if err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/verify", body, &conf); err != nil {
		return Confirmation{}, err
	}
	return conf, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	u := c.baseURL + path

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	r, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	r.Header.Set("Accept", "application/json")
	if in != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(r)
	if err != nil {
		return &errclass.NetworkError{Method: method, URL: u, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &errclass.NetworkError{Method: method, URL: u, StatusCode: resp.StatusCode, Timeout: isTimeout(err), Err: err}
	}

	if resp.StatusCode/100 != 2 {
		var er struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &er)
		if er.Error == "" {
			er.Error = http.StatusText(resp.StatusCode)
		}
		return &errclass.NetworkError{Method: method, URL: u, StatusCode: resp.StatusCode, Message: er.Error}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &errclass.NetworkError{Method: method, URL: u, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
