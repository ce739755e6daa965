// Package errclass turns errors caught during checkout into a ProcessedError:
// a code, a severity and a message that is safe to show to buyers. The raw
// error only ever ends up in Details, which is meant for logs.
package errclass

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/irsalhamdi/traderfolio/client/validation"
	"github.com/sirupsen/logrus"
)

type Severity string

const (
	Low      Severity = "low"
	Medium   Severity = "medium"
	High     Severity = "high"
	Critical Severity = "critical"
)

type Source string

const (
	SourceGateway     Source = "gateway"
	SourceNetwork     Source = "network"
	SourceCheckout    Source = "checkout"
	SourceValidation  Source = "validation"
	SourceApplication Source = "application"
	SourceUnknown     Source = "unknown"
)

// Operations a Context can name.
const (
	OpValidate    = "validate"
	OpLoad        = "load_checkout"
	OpCreateOrder = "create_order"
	OpCheckout    = "checkout"
	OpVerify      = "verify"
)

var ErrCancelled = errors.New("checkout dismissed by the buyer")

// GatewayError is a failure reported by the hosted checkout widget.
type GatewayError struct {
	Code        string
	Description string
	Source      string
	Step        string
	Reason      string
	Metadata    map[string]string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Description)
}

// NetworkError is a failed call to the checkout API. StatusCode is zero when
// no response was received.
type NetworkError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
	Timeout    bool
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: network error", e.Method, e.URL)
}

func (e *NetworkError) Unwrap() error { return e.Err }

type Context struct {
	Operation string
	OrderID   string
	ItemType  string
}

type ProcessedError struct {
	Message     string         `json:"message"`
	UserMessage string         `json:"user_message"`
	Code        string         `json:"code"`
	Source      Source         `json:"source"`
	Severity    Severity       `json:"severity"`
	Timestamp   time.Time      `json:"timestamp"`
	Context     Context        `json:"-"`
	Details     map[string]any `json:"-"`
}

func (p ProcessedError) Error() string { return p.UserMessage }

const (
	msgDeclined       = "Your payment was declined. Please check your payment method or try a different one."
	msgMethodInvalid  = "Your payment details look incorrect. Please check them and try again."
	msgPaymentTimeout = "The payment took too long to complete. Please try again."
	msgPaymentFailed  = "Your payment could not be completed. Please try again or use a different payment method."
	msgGatewayDown    = "The payment service is temporarily unavailable. Please try again in a few minutes."
	msgCancelled      = "Payment was cancelled. You can try again whenever you are ready."
	msgTimeout        = "The request timed out. Please try again."
	msgOffline        = "We could not reach the server. Please check your internet connection and try again."
	msgBadRequest     = "Some of the details you entered are not valid. Please review the form and try again."
	msgItemNotFound   = "This item is no longer available."
	msgOrderNotFound  = "We could not find your order. Please start the checkout again."
	msgSoldOut        = "This item is sold out."
	msgMethodOff      = "This payment method is not available right now. Please choose another one."
	msgRateLimited    = "Too many attempts. Please wait a moment and try again."
	msgVerifyFailed   = "We could not verify your payment. If you were charged, please contact support with your order number."
	msgUnconfirmed    = "Your payment was received but we could not confirm it yet. Please contact support with your order number."
	msgServer         = "Something went wrong on our side. Please try again later."
	msgApplication    = "Something went wrong. Please try again."
	msgUnknown        = "An unexpected error occurred. Please try again."
)

// Classifier is stateless apart from its logger and clock.
type Classifier struct {
	log logrus.FieldLogger
	now func() time.Time
}

func New(log logrus.FieldLogger) *Classifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Classifier{log: log, now: time.Now}
}

// Classify never retries or mutates anything; it only logs.
func (c *Classifier) Classify(err error, ctx Context) ProcessedError {
	p := classify(err, ctx)
	p.Timestamp = c.now().UTC()
	p.Context = ctx
	c.logError(p)
	return p
}

func classify(err error, ctx Context) ProcessedError {
	var (
		gerr *GatewayError
		nerr *NetworkError
		verr *validation.Error
	)

	switch {
	case err == nil:
		return ProcessedError{
			Message:     "nil error",
			UserMessage: msgUnknown,
			Code:        "UNKNOWN_ERROR",
			Source:      SourceUnknown,
			Severity:    Medium,
			Details:     map[string]any{},
		}

	case errors.Is(err, ErrCancelled):
		return ProcessedError{
			Message:     err.Error(),
			UserMessage: msgCancelled,
			Code:        "PAYMENT_CANCELLED",
			Source:      SourceCheckout,
			Severity:    Low,
			Details:     details(err),
		}

	case errors.As(err, &verr):
		d := details(err)
		d["failures"] = verr.Failures
		return ProcessedError{
			Message:     err.Error(),
			UserMessage: verr.Message,
			Code:        verr.Code,
			Source:      SourceValidation,
			Severity:    Low,
			Details:     d,
		}

	case errors.As(err, &gerr):
		return classifyGateway(gerr)

	case errors.As(err, &nerr):
		return classifyNetwork(nerr, ctx)

	case errors.Is(err, context.DeadlineExceeded):
		return ProcessedError{
			Message:     err.Error(),
			UserMessage: msgTimeout,
			Code:        "NETWORK_TIMEOUT",
			Source:      SourceNetwork,
			Severity:    Medium,
			Details:     details(err),
		}

	case errors.Is(err, context.Canceled):
		return ProcessedError{
			Message:     err.Error(),
			UserMessage: msgCancelled,
			Code:        "PAYMENT_CANCELLED",
			Source:      SourceCheckout,
			Severity:    Low,
			Details:     details(err),
		}
	}

	return ProcessedError{
		Message:     err.Error(),
		UserMessage: msgApplication,
		Code:        "APPLICATION_ERROR",
		Source:      SourceApplication,
		Severity:    Medium,
		Details:     details(err),
	}
}

func classifyGateway(e *GatewayError) ProcessedError {
	d := map[string]any{
		"error":       e.Error(),
		"type":        fmt.Sprintf("%T", e),
		"code":        e.Code,
		"description": e.Description,
		"source":      e.Source,
		"step":        e.Step,
		"reason":      e.Reason,
	}
	for k, v := range e.Metadata {
		d["metadata."+k] = v
	}

	p := ProcessedError{
		Message: e.Error(),
		Source:  SourceGateway,
		Details: d,
	}

	code := strings.ToUpper(e.Code)
	reason := strings.ToLower(e.Reason + " " + e.Description)

	switch {
	case code == "PAYMENT_DECLINED" || code == "CARD_DECLINED" ||
		strings.Contains(reason, "declined") || strings.Contains(reason, "insufficient"):
		p.Code, p.Severity, p.UserMessage = "PAYMENT_DECLINED", Medium, msgDeclined

	case code == "PAYMENT_CANCELLED" || strings.Contains(reason, "cancelled"):
		p.Code, p.Severity, p.UserMessage = "PAYMENT_CANCELLED", Low, msgCancelled

	case code == "PAYMENT_TIMEOUT" || code == "GATEWAY_TIMEOUT" || strings.Contains(reason, "timeout"):
		p.Code, p.Severity, p.UserMessage = "PAYMENT_TIMEOUT", Medium, msgPaymentTimeout

	case code == "INVALID_CARD" || code == "CARD_EXPIRED" || code == "BAD_REQUEST_ERROR":
		p.Code, p.Severity, p.UserMessage = "PAYMENT_METHOD_INVALID", Medium, msgMethodInvalid

	case code == "GATEWAY_ERROR" || code == "SERVER_ERROR":
		p.Code, p.Severity, p.UserMessage = "PAYMENT_GATEWAY_ERROR", High, msgGatewayDown

	default:
		p.Code, p.Severity, p.UserMessage = "PAYMENT_FAILED", Medium, msgPaymentFailed
	}

	return p
}

func classifyNetwork(e *NetworkError, ctx Context) ProcessedError {
	d := details(e)
	d["method"] = e.Method
	d["url"] = e.URL
	d["status_code"] = e.StatusCode
	d["server_message"] = e.Message

	p := ProcessedError{
		Message: e.Error(),
		Source:  SourceNetwork,
		Details: d,
	}

	verify := ctx.Operation == OpVerify

	switch s := e.StatusCode; {
	case e.Timeout:
		p.Code, p.Severity, p.UserMessage = "NETWORK_TIMEOUT", Medium, msgTimeout
		if verify {
			p.Severity, p.UserMessage = Critical, msgUnconfirmed
		}
	case s == 0:
		p.Code, p.Severity, p.UserMessage = "NETWORK_ERROR", Medium, msgOffline
		if verify {
			p.Severity, p.UserMessage = Critical, msgUnconfirmed
		}
	case s == http.StatusBadRequest && verify:
		p.Code, p.Severity, p.UserMessage = "VERIFICATION_FAILED", High, msgVerifyFailed
	case s == http.StatusBadRequest:
		p.Code, p.Severity, p.UserMessage = "BAD_REQUEST", Medium, msgBadRequest
	case s == http.StatusNotFound && verify:
		p.Code, p.Severity, p.UserMessage = "ORDER_NOT_FOUND", High, msgOrderNotFound
	case s == http.StatusNotFound:
		p.Code, p.Severity, p.UserMessage = "ITEM_NOT_FOUND", Medium, msgItemNotFound
	case s == http.StatusConflict:
		p.Code, p.Severity, p.UserMessage = "SOLD_OUT", Medium, msgSoldOut
	case s == http.StatusUnprocessableEntity:
		p.Code, p.Severity, p.UserMessage = "PAYMENT_METHOD_UNAVAILABLE", Medium, msgMethodOff
	case s == http.StatusTooManyRequests:
		p.Code, p.Severity, p.UserMessage = "RATE_LIMITED", Low, msgRateLimited
	case s == http.StatusBadGateway || s == http.StatusServiceUnavailable || s == http.StatusGatewayTimeout:
		p.Code, p.Severity, p.UserMessage = "GATEWAY_UNAVAILABLE", High, msgGatewayDown
		if verify {
			p.Severity, p.UserMessage = Critical, msgUnconfirmed
		}
	case s >= 500:
		p.Code, p.Severity, p.UserMessage = "SERVER_ERROR", High, msgServer
		if verify {
			p.Severity, p.UserMessage = Critical, msgUnconfirmed
		}
	default:
		p.Code, p.Severity, p.UserMessage = "REQUEST_FAILED", Medium, msgUnknown
	}

	return p
}

func details(err error) map[string]any {
	return map[string]any{
		"error": err.Error(),
		"type":  fmt.Sprintf("%T", err),
	}
}

func (c *Classifier) logError(p ProcessedError) {
	fields := logrus.Fields{
		"code":      p.Code,
		"source":    p.Source,
		"severity":  p.Severity,
		"operation": p.Context.Operation,
	}
	if p.Context.OrderID != "" {
		fields["order_id"] = p.Context.OrderID
	}
	if p.Context.ItemType != "" {
		fields["item_type"] = p.Context.ItemType
	}
	for k, v := range p.Details {
		fields["details."+k] = v
	}

	entry := c.log.WithFields(fields)

	switch p.Severity {
	case Low:
		entry.Info(p.Message)
	case Medium:
		entry.Warn(p.Message)
	default:
		entry.Error(p.Message)
	}
}
