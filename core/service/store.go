package service

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/traderfolio/database"
	"github.com/jmoiron/sqlx"
)

func Fetch(ctx context.Context, db sqlx.ExtContext, id int64) (Service, error) {
	in := struct {
		ID int64 `db:"service_id"`
	}{
		ID: id,
	}

	const q = `
	SELECT
		*
	FROM
		services
	WHERE
		service_id = :service_id`

	var s Service
	if err := database.NamedQueryStruct(ctx, db, q, in, &s); err != nil {
		return Service{}, fmt.Errorf("selecting service[%d]: %w", id, err)
	}

	return s, nil
}

func List(ctx context.Context, db sqlx.ExtContext) ([]Service, error) {
	const q = `
	SELECT
		*
	FROM
		services
	WHERE
		published = TRUE
	ORDER BY
		price, service_id`

	services := []Service{}
	if err := database.NamedQuerySlice(ctx, db, q, struct{}{}, &services); err != nil {
		return nil, fmt.Errorf("selecting services: %w", err)
	}

	return services, nil
}

// Book logs the paid booking. Each order books at most once.
func Book(ctx context.Context, db sqlx.ExtContext, b Booking) error {
	const q = `
	INSERT INTO service_bookings
		(service_id, email, name, phone, contact_method, message, order_id, created_at)
	VALUES
		(:service_id, :email, :name, :phone, :contact_method, :message, :order_id, :created_at)
	ON CONFLICT (order_id) DO NOTHING`

	if _, err := database.NamedExecContext(ctx, db, q, b); err != nil {
		return fmt.Errorf("inserting booking for service[%d]: %w", b.ServiceID, err)
	}

	return nil
}
