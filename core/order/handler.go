package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/irsalhamdi/traderfolio/api/web"
	"github.com/irsalhamdi/traderfolio/api/weberr"
	"github.com/irsalhamdi/traderfolio/database"
	"github.com/irsalhamdi/traderfolio/gateway"
	"github.com/irsalhamdi/traderfolio/validate"
	"github.com/jmoiron/sqlx"
)

type verifyFailure struct {
	Error  string `json:"error"`
	Status Status `json:"status"`
}

// webError converts service errors into responses safe to show to buyers.
func webError(err error) error {
	var verr *VerificationError
	switch {
	case errors.As(err, &verr):
		fields := weberr.WithFields(map[string]interface{}{"order_id": verr.OrderID, "reason": verr.Reason.Error()})
		if errors.Is(verr.Reason, ErrOrderNotFound) {
			return weberr.NotFound(err, fields)
		}

		status := verr.Status
		if status == "" {
			status = Failed
		}
		body := verifyFailure{Error: "the payment could not be verified", Status: status}
		return weberr.Wrap(&weberr.RequestError{Err: err}, fields, weberr.WithResponse(body, http.StatusBadRequest))

	case errors.Is(err, ErrItemNotFound):
		return weberr.NewError(err, "the item could not be found", http.StatusNotFound)

	case errors.Is(err, ErrSoldOut):
		return weberr.Conflict(err, "the item is sold out")

	case errors.Is(err, gateway.ErrUnknown):
		return weberr.NewError(err, "the selected payment method is not available", http.StatusUnprocessableEntity)

	case errors.Is(err, gateway.ErrUnavailable):
		return weberr.BadGateway(err)
	}

	return err
}

func invalidPayload(err error) error {
	var fe *validate.FieldError
	if errors.As(err, &fe) {
		return weberr.NewError(err, fe.Message, http.StatusBadRequest, weberr.WithFields(map[string]any{"field": fe.Field}))
	}
	return weberr.BadRequest(err)
}

func HandleCreate(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var nw OrderNew
		if err := web.Decode(w, r, &nw); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(nw); err != nil {
			return invalidPayload(err)
		}

		ord, err := svc.CreateOrder(ctx, nw)
		if err != nil {
			return webError(err)
		}

		return web.Respond(ctx, w, ord, http.StatusCreated)
	}
}

func HandleVerify(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckOrderID(id); err != nil {
			return weberr.NotFound(fmt.Errorf("order[%s]: %w", id, err))
		}

		var vn VerifyNew
		if err := web.Decode(w, r, &vn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(vn); err != nil {
			return invalidPayload(err)
		}

		conf, err := svc.ConfirmPayment(ctx, id, vn.PaymentID, vn.Signature)
		if err != nil {
			return webError(err)
		}

		return web.Respond(ctx, w, conf, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckOrderID(id); err != nil {
			return weberr.NotFound(fmt.Errorf("order[%s]: %w", id, err))
		}

		ord, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching order[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, ord.View(), http.StatusOK)
	}
}

func HandleCheckoutConfig(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		pub, err := svc.Public(r.URL.Query().Get("gateway"))
		if err != nil {
			return webError(err)
		}

		return web.Respond(ctx, w, pub, http.StatusOK)
	}
}

func HandleStripeWebhook(svc *Service, strp *gateway.StripeClient) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		p, ok, err := strp.ParseWebhook(b, r.Header.Get("Stripe-Signature"))
		if err != nil {
			return weberr.BadRequest(err)
		}

		if !ok {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		if _, err := svc.ConfirmGatewayOrder(ctx, gateway.Stripe, p.GatewayOrderID, p.PaymentID, ""); err != nil {
			return webError(err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
