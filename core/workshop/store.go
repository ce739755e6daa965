package workshop

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/traderfolio/database"
	"github.com/jmoiron/sqlx"
)

func Fetch(ctx context.Context, db sqlx.ExtContext, id int64) (Workshop, error) {
	in := struct {
		ID int64 `db:"workshop_id"`
	}{
		ID: id,
	}

	const q = `
	SELECT
		*
	FROM
		workshops
	WHERE
		workshop_id = :workshop_id`

	var ws Workshop
	if err := database.NamedQueryStruct(ctx, db, q, in, &ws); err != nil {
		return Workshop{}, fmt.Errorf("selecting workshop[%d]: %w", id, err)
	}

	return ws, nil
}

func List(ctx context.Context, db sqlx.ExtContext) ([]Workshop, error) {
	const q = `
	SELECT
		*
	FROM
		workshops
	WHERE
		published = TRUE
	ORDER BY
		starts_at, workshop_id`

	workshops := []Workshop{}
	if err := database.NamedQuerySlice(ctx, db, q, struct{}{}, &workshops); err != nil {
		return nil, fmt.Errorf("selecting workshops: %w", err)
	}

	return workshops, nil
}

// Apply records a paid application and takes a seat. A repeated application
// for the same email leaves the seat count untouched.
func Apply(ctx context.Context, db sqlx.ExtContext, app Application) error {
	const q = `
	INSERT INTO workshop_applications
		(workshop_id, email, name, phone, experience_level, order_id, created_at)
	VALUES
		(:workshop_id, :email, :name, :phone, :experience_level, :order_id, :created_at)
	ON CONFLICT DO NOTHING`

	n, err := database.NamedExecContext(ctx, db, q, app)
	if err != nil {
		return fmt.Errorf("inserting application for workshop[%d]: %w", app.WorkshopID, err)
	}
	if n == 0 {
		return nil
	}

	const up = `
	UPDATE
		workshops
	SET
		seats_taken = seats_taken + 1,
		updated_at = :created_at
	WHERE
		workshop_id = :workshop_id`

	if _, err := database.NamedExecContext(ctx, db, up, app); err != nil {
		return fmt.Errorf("taking a seat in workshop[%d]: %w", app.WorkshopID, err)
	}

	return nil
}
