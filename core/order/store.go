package order

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/traderfolio/database"
	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders
		(order_id, gateway, gateway_order_id, item_type, item_id, email, name, phone, extra,
		amount, currency, status, receipt_no, created_at, updated_at)
	VALUES
		(:order_id, :gateway, :gateway_order_id, :item_type, :item_id, :email, :name, :phone, :extra,
		:amount, :currency, :status, :receipt_no, :created_at, :updated_at)`

	if _, err := database.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order[%s]: %w", ord.ID, err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Order, error) {
	in := struct {
		ID string `db:"order_id"`
	}{
		ID: id,
	}

	const q = `
	SELECT
		*
	FROM
		orders
	WHERE
		order_id = :order_id`

	var ord Order
	if err := database.NamedQueryStruct(ctx, db, q, in, &ord); err != nil {
		return Order{}, fmt.Errorf("selecting order[%s]: %w", id, err)
	}

	return ord, nil
}

func FetchByGatewayOrderID(ctx context.Context, db sqlx.ExtContext, gatewayOrderID string) (Order, error) {
	in := struct {
		ID string `db:"gateway_order_id"`
	}{
		ID: gatewayOrderID,
	}

	const q = `
	SELECT
		*
	FROM
		orders
	WHERE
		gateway_order_id = :gateway_order_id`

	var ord Order
	if err := database.NamedQueryStruct(ctx, db, q, in, &ord); err != nil {
		return Order{}, fmt.Errorf("selecting order bound to payment[%s]: %w", gatewayOrderID, err)
	}

	return ord, nil
}

// UpdateStatusIfPending moves a pending order to up.Status. It reports false
// when the order was no longer pending, which is how concurrent callbacks for
// the same order are told apart.
func UpdateStatusIfPending(ctx context.Context, db sqlx.ExtContext, up StatusUp) (bool, error) {
	if !Pending.CanTransition(up.Status) {
		return false, fmt.Errorf("invalid transition from %s to %s", Pending, up.Status)
	}

	const q = `
	UPDATE
		orders
	SET
		status = :status,
		gateway_payment_id = COALESCE(:gateway_payment_id, gateway_payment_id),
		completed_at = COALESCE(:completed_at, completed_at),
		updated_at = :updated_at
	WHERE
		order_id = :order_id AND status = 'pending'`

	n, err := database.NamedExecContext(ctx, db, q, up)
	if err != nil {
		return false, fmt.Errorf("updating order[%s] to %s: %w", up.ID, up.Status, err)
	}

	return n > 0, nil
}
