package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/irsalhamdi/traderfolio/core/item"
	"github.com/irsalhamdi/traderfolio/database"
	"github.com/irsalhamdi/traderfolio/gateway"
	"github.com/irsalhamdi/traderfolio/random"
	"github.com/irsalhamdi/traderfolio/validate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const receiptLength = 14

// Alerter notifies operators about events that may indicate tampering.
type Alerter interface {
	Alert(ctx context.Context, subject string, fields map[string]any)
}

type ServiceConfig struct {
	DB             *sqlx.DB
	Gateways       gateway.Set
	DefaultGateway string
	Timeout        time.Duration
	Fulfillers     map[item.Type]Fulfiller
	Alerter        Alerter
	Log            logrus.FieldLogger
}

// Service opens orders on the payment gateways and confirms the payments
// made against them.
type Service struct {
	db             *sqlx.DB
	gateways       gateway.Set
	defaultGateway string
	timeout        time.Duration
	fulfillers     map[item.Type]Fulfiller
	alerter        Alerter
	log            logrus.FieldLogger
	now            func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		db:             cfg.DB,
		gateways:       cfg.Gateways,
		defaultGateway: cfg.DefaultGateway,
		timeout:        cfg.Timeout,
		fulfillers:     cfg.Fulfillers,
		alerter:        cfg.Alerter,
		log:            cfg.Log,
		now:            func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}

	if s.fulfillers == nil {
		s.fulfillers = DefaultFulfillers()
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Second
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

// Public returns the browser-safe configuration of a gateway, the default
// one when name is empty.
func (s *Service) Public(name string) (gateway.Public, error) {
	if name == "" {
		name = s.defaultGateway
	}
	gw, err := s.gateways.Get(name)
	if err != nil {
		return gateway.Public{}, err
	}
	return gw.Public(), nil
}

func (s *Service) CreateOrder(ctx context.Context, nw OrderNew) (Order, error) {
	gwName := nw.Gateway
	if gwName == "" {
		gwName = s.defaultGateway
	}

	gw, err := s.gateways.Get(gwName)
	if err != nil {
		return Order{}, err
	}

	it, err := item.Fetch(ctx, s.db, nw.ItemType, nw.ItemID)
	if err != nil {
		return Order{}, fmt.Errorf("resolving %s[%d]: %w", nw.ItemType, nw.ItemID, err)
	}

	if it.SoldOut {
		return Order{}, fmt.Errorf("%s[%d]: %w", it.Type, it.ID, ErrSoldOut)
	}

	rcpt, err := random.Prefixed("rcpt_", receiptLength)
	if err != nil {
		return Order{}, fmt.Errorf("generating receipt number: %w", err)
	}

	req := gateway.OrderRequest{
		Receipt:  rcpt,
		Amount:   it.Price,
		Currency: it.Currency,
		Title:    it.Title,
		Email:    nw.Email,
		Notes: map[string]string{
			"item_type": string(it.Type),
			"item_id":   strconv.FormatInt(it.ID, 10),
		},
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	gord, err := gw.CreateOrder(gctx, req)
	if err != nil {
		orderFailures.WithLabelValues(gw.Name(), "gateway").Inc()
		return Order{}, fmt.Errorf("opening %s order for %s[%d]: %w", gw.Name(), it.Type, it.ID, err)
	}

	now := s.now()
	ord := Order{
		ID:             validate.NewOrderID(),
		Gateway:        gw.Name(),
		GatewayOrderID: gord.ID,
		ItemType:       it.Type,
		ItemID:         it.ID,
		Email:          nw.Email,
		Name:           nw.Name,
		Phone:          nw.Phone,
		Extra:          Extra(nw.Extra),
		Amount:         it.Price,
		Currency:       it.Currency,
		Status:         Pending,
		ReceiptNo:      rcpt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if ord.Extra == nil {
		ord.Extra = Extra{}
	}

	if err := Create(ctx, s.db, ord); err != nil {
		orderFailures.WithLabelValues(gw.Name(), "storage").Inc()
		return Order{}, fmt.Errorf("creating the order bound to payment[%s]: %w", gord.ID, err)
	}

	ordersCreated.WithLabelValues(gw.Name(), string(it.Type)).Inc()
	s.log.WithFields(logrus.Fields{
		"order_id":         ord.ID,
		"gateway":          ord.Gateway,
		"gateway_order_id": ord.GatewayOrderID,
		"item":             fmt.Sprintf("%s[%d]", ord.ItemType, ord.ItemID),
		"amount":           ord.Amount,
	}).Info("order created")

	ord.CheckoutToken = gord.Token
	return ord, nil
}

// ConfirmPayment checks the payment reported by the checkout against the
// stored order and completes it. Confirming a completed order again returns
// the stored receipt without running the success action twice.
func (s *Service) ConfirmPayment(ctx context.Context, orderID, paymentID, signature string) (Confirmation, error) {
	ord, err := Fetch(ctx, s.db, orderID)
	if err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Confirmation{}, &VerificationError{OrderID: orderID, Reason: ErrOrderNotFound}
		}
		return Confirmation{}, fmt.Errorf("fetching order[%s]: %w", orderID, err)
	}

	return s.confirm(ctx, ord, paymentID, signature)
}

// ConfirmGatewayOrder is ConfirmPayment for callers that only know the
// gateway side of the order, such as provider webhooks.
func (s *Service) ConfirmGatewayOrder(ctx context.Context, gw, gatewayOrderID, paymentID, signature string) (Confirmation, error) {
	ord, err := FetchByGatewayOrderID(ctx, s.db, gatewayOrderID)
	if err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Confirmation{}, &VerificationError{OrderID: gatewayOrderID, Reason: ErrOrderNotFound}
		}
		return Confirmation{}, fmt.Errorf("fetching the order bound to payment[%s]: %w", gatewayOrderID, err)
	}

	if ord.Gateway != gw {
		return Confirmation{}, &VerificationError{OrderID: ord.ID, Status: ord.Status, Reason: ErrOrderNotFound}
	}

	return s.confirm(ctx, ord, paymentID, signature)
}

func (s *Service) confirm(ctx context.Context, ord Order, paymentID, signature string) (Confirmation, error) {
	log := s.log.WithFields(logrus.Fields{
		"order_id":         ord.ID,
		"gateway":          ord.Gateway,
		"gateway_order_id": ord.GatewayOrderID,
	})

	if ord.Status == Failed {
		verifications.WithLabelValues(ord.Gateway, "failed").Inc()
		return Confirmation{}, &VerificationError{OrderID: ord.ID, Status: Failed, Reason: ErrOrderFailed}
	}

	gw, err := s.gateways.Get(ord.Gateway)
	if err != nil {
		return Confirmation{}, fmt.Errorf("order[%s]: %w", ord.ID, err)
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pid, err := gw.VerifyPayment(gctx, gateway.Payment{
		GatewayOrderID: ord.GatewayOrderID,
		PaymentID:      paymentID,
		Signature:      signature,
		Amount:         ord.Amount,
		Currency:       ord.Currency,
	})

	if ord.Status == Completed {
		return s.reconfirm(ctx, log, ord, paymentID, pid, err)
	}

	switch {
	case errors.Is(err, gateway.ErrSignatureMismatch):
		return Confirmation{}, s.reject(ctx, log, ord, paymentID, err)

	case errors.Is(err, gateway.ErrPaymentIncomplete):
		// A concurrent callback may have settled the order while the
		// provider refused this one, e.g. a PayPal order captured twice.
		cur, ferr := Fetch(ctx, s.db, ord.ID)
		if ferr == nil && cur.Status == Completed {
			return s.completed(cur, "")
		}

		verifications.WithLabelValues(ord.Gateway, "incomplete").Inc()
		log.WithField("message", err).Warn("payment not completed")
		return Confirmation{}, &VerificationError{OrderID: ord.ID, Status: Pending, Reason: err}

	case err != nil:
		verifications.WithLabelValues(ord.Gateway, "unavailable").Inc()
		return Confirmation{}, fmt.Errorf("verifying payment for order[%s]: %w", ord.ID, err)
	}

	now := s.now()
	var applied bool

	err = database.Transaction(ctx, s.db, func(tx sqlx.ExtContext) error {
		up := StatusUp{
			ID:          ord.ID,
			Status:      Completed,
			PaymentID:   &pid,
			CompletedAt: &now,
			UpdatedAt:   now,
		}

		ok, err := UpdateStatusIfPending(ctx, tx, up)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		applied = true

		ord.Status = Completed
		ord.GatewayPaymentID = &pid
		ord.CompletedAt = &now
		ord.UpdatedAt = now

		f, ok := s.fulfillers[ord.ItemType]
		if !ok {
			return fmt.Errorf("no success action for item type %q", ord.ItemType)
		}

		if err := f.Fulfill(ctx, tx, ord); err != nil {
			return fmt.Errorf("fulfilling %s[%d]: %w", ord.ItemType, ord.ItemID, err)
		}
		return nil
	})
	if err != nil {
		return Confirmation{}, fmt.Errorf("the order[%s] was paid but its fulfillment failed: %w", ord.ID, err)
	}

	if !applied {
		cur, err := Fetch(ctx, s.db, ord.ID)
		if err != nil {
			return Confirmation{}, fmt.Errorf("reloading order[%s]: %w", ord.ID, err)
		}
		if cur.Status != Completed {
			return Confirmation{}, &VerificationError{OrderID: cur.ID, Status: cur.Status, Reason: ErrOrderFailed}
		}
		return s.completed(cur, pid)
	}

	verifications.WithLabelValues(ord.Gateway, "completed").Inc()
	log.WithField("gateway_payment_id", pid).Info("payment confirmed")

	rc, _ := ord.Receipt()
	return Confirmation{Status: Completed, Receipt: &rc}, nil
}

// reconfirm answers a verification for an order that is already completed.
// The payment is checked with the gateway again; a mismatch is reported and
// alerted but leaves the order completed.
func (s *Service) reconfirm(ctx context.Context, log logrus.FieldLogger, ord Order, paymentID, pid string, err error) (Confirmation, error) {
	switch {
	case errors.Is(err, gateway.ErrSignatureMismatch):
		s.alertMismatch(ctx, log, ord, paymentID, err)
		return Confirmation{}, &VerificationError{OrderID: ord.ID, Status: Completed, Reason: err}

	case errors.Is(err, gateway.ErrPaymentIncomplete):
		verifications.WithLabelValues(ord.Gateway, "failed").Inc()
		return Confirmation{}, &VerificationError{OrderID: ord.ID, Status: Completed, Reason: err}

	case err != nil:
		verifications.WithLabelValues(ord.Gateway, "unavailable").Inc()
		return Confirmation{}, fmt.Errorf("verifying payment for order[%s]: %w", ord.ID, err)
	}

	return s.completed(ord, pid)
}

func (s *Service) completed(ord Order, paymentID string) (Confirmation, error) {
	rc, ok := ord.Receipt()
	if !ok {
		return Confirmation{}, fmt.Errorf("order[%s] is completed without a receipt", ord.ID)
	}

	if paymentID != "" && rc.PaymentID != paymentID {
		verifications.WithLabelValues(ord.Gateway, "failed").Inc()
		return Confirmation{}, &VerificationError{OrderID: ord.ID, Status: Completed, Reason: ErrPaymentMismatch}
	}

	verifications.WithLabelValues(ord.Gateway, "duplicate").Inc()
	return Confirmation{Status: Completed, Receipt: &rc}, nil
}

// reject fails the order after a signature mismatch and alerts operators.
func (s *Service) reject(ctx context.Context, log logrus.FieldLogger, ord Order, paymentID string, cause error) error {
	s.alertMismatch(ctx, log, ord, paymentID, cause)

	now := s.now()
	ok, err := UpdateStatusIfPending(ctx, s.db, StatusUp{ID: ord.ID, Status: Failed, UpdatedAt: now})
	if err != nil {
		return fmt.Errorf("failing order[%s] after %v: %w", ord.ID, cause, err)
	}

	status := Failed
	if !ok {
		// A concurrent callback settled the order first.
		cur, err := Fetch(ctx, s.db, ord.ID)
		if err == nil {
			status = cur.Status
		}
	}

	return &VerificationError{OrderID: ord.ID, Status: status, Reason: cause}
}

func (s *Service) alertMismatch(ctx context.Context, log logrus.FieldLogger, ord Order, paymentID string, cause error) {
	verifications.WithLabelValues(ord.Gateway, "signature_mismatch").Inc()
	signatureMismatches.WithLabelValues(ord.Gateway).Inc()

	if s.alerter == nil {
		log.WithFields(logrus.Fields{"alert": true, "message": cause}).Error("payment signature mismatch")
		return
	}

	fields := map[string]any{
		"order_id":           ord.ID,
		"gateway":            ord.Gateway,
		"gateway_order_id":   ord.GatewayOrderID,
		"gateway_payment_id": paymentID,
		"order_status":       string(ord.Status),
		"item":               fmt.Sprintf("%s[%d]", ord.ItemType, ord.ItemID),
		"amount":             ord.Amount,
		"reason":             cause.Error(),
	}
	s.alerter.Alert(ctx, "payment signature mismatch", fields)
}
