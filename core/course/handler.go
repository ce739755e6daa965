package course

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/irsalhamdi/traderfolio/api/web"
	"github.com/irsalhamdi/traderfolio/api/weberr"
	"github.com/irsalhamdi/traderfolio/database"
	"github.com/jmoiron/sqlx"
)

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id, err := strconv.ParseInt(web.Param(r, "id"), 10, 64)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("parsing course id: %w", err))
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%d]: %w", id, err)
		}

		if !c.Published {
			return weberr.NotFound(fmt.Errorf("course[%d] is not published", id))
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courses, err := List(ctx, db)
		if err != nil {
			return fmt.Errorf("listing courses: %w", err)
		}

		return web.Respond(ctx, w, courses, http.StatusOK)
	}
}
