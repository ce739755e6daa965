package service

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
			return weberr.BadRequest(fmt.Errorf("parsing service id: %w", err))
		}

		s, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching service[%d]: %w", id, err)
		}

		if !s.Published {
			return weberr.NotFound(fmt.Errorf("service[%d] is not published", id))
		}

		return web.Respond(ctx, w, s, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		services, err := List(ctx, db)
		if err != nil {
			return fmt.Errorf("listing services: %w", err)
		}

		return web.Respond(ctx, w, services, http.StatusOK)
	}
}
