package errclass

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/irsalhamdi/traderfolio/client/validation"
	"github.com/sirupsen/logrus"
)

func newClassifier() *Classifier {
	log := logrus.New()
	log.SetOutput(io.Discard)
	c := New(log)
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return c
}

func TestClassifyDeclined(t *testing.T) {
	c := newClassifier()

	gerr := &GatewayError{
		Code:        "PAYMENT_DECLINED",
		Description: "Insufficient funds in account ending 4242",
		Source:      "bank",
		Step:        "payment_authorization",
		Reason:      "insufficient_funds",
	}

	p := c.Classify(gerr, Context{Operation: OpCheckout, OrderID: "ord_1"})

	if p.Code != "PAYMENT_DECLINED" {
		t.Fatalf("expected PAYMENT_DECLINED, got %s", p.Code)
	}
	if p.Severity != Medium {
		t.Fatalf("expected medium severity, got %s", p.Severity)
	}
	if p.Source != SourceGateway {
		t.Fatalf("expected gateway source, got %s", p.Source)
	}
	if !strings.Contains(p.UserMessage, "declined") {
		t.Fatalf("user message should mention the decline: %q", p.UserMessage)
	}
	if strings.Contains(p.UserMessage, gerr.Description) || strings.Contains(p.UserMessage, "4242") {
		t.Fatalf("user message leaks the gateway description: %q", p.UserMessage)
	}
	if p.Details["description"] != gerr.Description {
		t.Fatalf("details should keep the raw description, got %v", p.Details["description"])
	}
	if p.Context.OrderID != "ord_1" {
		t.Fatalf("expected context to be attached, got %+v", p.Context)
	}
	if p.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
}

func TestClassifyGateway(t *testing.T) {
	tests := []struct {
		name     string
		err      *GatewayError
		code     string
		severity Severity
	}{
		{"card declined", &GatewayError{Code: "CARD_DECLINED"}, "PAYMENT_DECLINED", Medium},
		{"declined reason", &GatewayError{Code: "X", Reason: "Card Declined by issuer"}, "PAYMENT_DECLINED", Medium},
		{"cancelled", &GatewayError{Code: "X", Reason: "payment cancelled"}, "PAYMENT_CANCELLED", Low},
		{"timeout", &GatewayError{Code: "GATEWAY_TIMEOUT"}, "PAYMENT_TIMEOUT", Medium},
		{"bad request", &GatewayError{Code: "BAD_REQUEST_ERROR"}, "PAYMENT_METHOD_INVALID", Medium},
		{"server", &GatewayError{Code: "SERVER_ERROR"}, "PAYMENT_GATEWAY_ERROR", High},
		{"other", &GatewayError{Code: "SOMETHING_ELSE"}, "PAYMENT_FAILED", Medium},
	}

	c := newClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := c.Classify(tt.err, Context{Operation: OpCheckout})
			if p.Code != tt.code || p.Severity != tt.severity {
				t.Fatalf("expected %s/%s, got %s/%s", tt.code, tt.severity, p.Code, p.Severity)
			}
		})
	}
}

func TestClassifyNetwork(t *testing.T) {
	tests := []struct {
		name     string
		err      *NetworkError
		op       string
		code     string
		severity Severity
	}{
		{"offline", &NetworkError{Err: errors.New("connection refused")}, OpCreateOrder, "NETWORK_ERROR", Medium},
		{"offline during verify", &NetworkError{Err: errors.New("connection refused")}, OpVerify, "NETWORK_ERROR", Critical},
		{"timeout", &NetworkError{Timeout: true}, OpLoad, "NETWORK_TIMEOUT", Medium},
		{"timeout during verify", &NetworkError{Timeout: true}, OpVerify, "NETWORK_TIMEOUT", Critical},
		{"bad request", &NetworkError{StatusCode: http.StatusBadRequest}, OpCreateOrder, "BAD_REQUEST", Medium},
		{"verification failed", &NetworkError{StatusCode: http.StatusBadRequest}, OpVerify, "VERIFICATION_FAILED", High},
		{"item not found", &NetworkError{StatusCode: http.StatusNotFound}, OpCreateOrder, "ITEM_NOT_FOUND", Medium},
		{"order not found", &NetworkError{StatusCode: http.StatusNotFound}, OpVerify, "ORDER_NOT_FOUND", High},
		{"sold out", &NetworkError{StatusCode: http.StatusConflict}, OpCreateOrder, "SOLD_OUT", Medium},
		{"method unavailable", &NetworkError{StatusCode: http.StatusUnprocessableEntity}, OpCreateOrder, "PAYMENT_METHOD_UNAVAILABLE", Medium},
		{"rate limited", &NetworkError{StatusCode: http.StatusTooManyRequests}, OpCreateOrder, "RATE_LIMITED", Low},
		{"bad gateway", &NetworkError{StatusCode: http.StatusBadGateway}, OpCreateOrder, "GATEWAY_UNAVAILABLE", High},
		{"bad gateway during verify", &NetworkError{StatusCode: http.StatusBadGateway}, OpVerify, "GATEWAY_UNAVAILABLE", Critical},
		{"server error", &NetworkError{StatusCode: http.StatusInternalServerError}, OpCreateOrder, "SERVER_ERROR", High},
		{"teapot", &NetworkError{StatusCode: http.StatusTeapot}, OpCreateOrder, "REQUEST_FAILED", Medium},
	}

	c := newClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := c.Classify(tt.err, Context{Operation: tt.op})
			if p.Code != tt.code || p.Severity != tt.severity {
				t.Fatalf("expected %s/%s, got %s/%s", tt.code, tt.severity, p.Code, p.Severity)
			}
			if p.Source != SourceNetwork {
				t.Fatalf("expected network source, got %s", p.Source)
			}
		})
	}
}

func TestClassifyOther(t *testing.T) {
	c := newClassifier()

	verr := validation.New().ValidatePaymentContext(validation.Form{ItemType: "course", Email: "nope"}).Err()

	tests := []struct {
		name string
		err  error
		want ProcessedError
	}{
		{
			name: "nil",
			err:  nil,
			want: ProcessedError{Message: "nil error", UserMessage: msgUnknown, Code: "UNKNOWN_ERROR", Source: SourceUnknown, Severity: Medium},
		},
		{
			name: "dismissed",
			err:  fmt.Errorf("widget: %w", ErrCancelled),
			want: ProcessedError{Message: "widget: " + ErrCancelled.Error(), UserMessage: msgCancelled, Code: "PAYMENT_CANCELLED", Source: SourceCheckout, Severity: Low},
		},
		{
			name: "validation",
			err:  verr,
			want: ProcessedError{Message: verr.Error(), UserMessage: verr.Error(), Code: validation.CodeEmailInvalid, Source: SourceValidation, Severity: Low},
		},
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: ProcessedError{Message: context.DeadlineExceeded.Error(), UserMessage: msgTimeout, Code: "NETWORK_TIMEOUT", Source: SourceNetwork, Severity: Medium},
		},
		{
			name: "canceled context",
			err:  context.Canceled,
			want: ProcessedError{Message: context.Canceled.Error(), UserMessage: msgCancelled, Code: "PAYMENT_CANCELLED", Source: SourceCheckout, Severity: Low},
		},
		{
			name: "anything else",
			err:  errors.New("boom"),
			want: ProcessedError{Message: "boom", UserMessage: msgApplication, Code: "APPLICATION_ERROR", Source: SourceApplication, Severity: Medium},
		},
	}

	ignore := cmpopts.IgnoreFields(ProcessedError{}, "Timestamp", "Context", "Details")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.err, Context{Operation: OpCheckout})
			if diff := cmp.Diff(tt.want, got, ignore); diff != "" {
				t.Fatalf("classification mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProcessedErrorIsAnError(t *testing.T) {
	p := newClassifier().Classify(ErrCancelled, Context{})

	var err error = p
	var got ProcessedError
	if !errors.As(err, &got) {
		t.Fatal("expected ProcessedError to satisfy errors.As")
	}
	if err.Error() != msgCancelled {
		t.Fatalf("expected the user message as error text, got %q", err.Error())
	}
}
