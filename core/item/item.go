// Package item resolves the purchasable catalog entries (courses, workshops
// and services) behind a single shape used by the checkout flow.
package item

import (
	"context"
	"errors"
	"fmt"

	"github.com/irsalhamdi/traderfolio/core/course"
	"github.com/irsalhamdi/traderfolio/core/service"
	"github.com/irsalhamdi/traderfolio/core/workshop"
	"github.com/irsalhamdi/traderfolio/database"
	"github.com/jmoiron/sqlx"
)

type Type string

const (
	Course   Type = "course"
	Workshop Type = "workshop"
	Service  Type = "service"
)

var Types = []Type{Course, Workshop, Service}

func (t Type) Valid() bool {
	switch t {
	case Course, Workshop, Service:
		return true
	}
	return false
}

var (
	ErrNotFound = errors.New("item not found")
	ErrSoldOut  = errors.New("item sold out")
)

type Item struct {
	ID          int64  `json:"id"`
	Type        Type   `json:"type"`
	Title       string `json:"title"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
	Purchasable bool   `json:"purchasable"`
	SoldOut     bool   `json:"sold_out"`
}

// Fetch loads the item and fails with ErrNotFound when the type is unknown,
// the row is missing or the item is not published.
func Fetch(ctx context.Context, db sqlx.ExtContext, typ Type, id int64) (Item, error) {
	var (
		it  Item
		err error
	)

	switch typ {
	case Course:
		var c course.Course
		if c, err = course.Fetch(ctx, db, id); err == nil {
			it = Item{ID: c.ID, Type: typ, Title: c.Title, Price: c.Price, Currency: c.Currency, Purchasable: c.Published}
		}
	case Workshop:
		var ws workshop.Workshop
		if ws, err = workshop.Fetch(ctx, db, id); err == nil {
			it = Item{ID: ws.ID, Type: typ, Title: ws.Title, Price: ws.Price, Currency: ws.Currency, Purchasable: ws.Published, SoldOut: ws.SoldOut()}
		}
	case Service:
		var s service.Service
		if s, err = service.Fetch(ctx, db, id); err == nil {
			it = Item{ID: s.ID, Type: typ, Title: s.Title, Price: s.Price, Currency: s.Currency, Purchasable: s.Published}
		}
	default:
		return Item{}, fmt.Errorf("unknown item type %q: %w", typ, ErrNotFound)
	}

	if err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Item{}, fmt.Errorf("%s[%d]: %w", typ, id, ErrNotFound)
		}
		return Item{}, err
	}

	if !it.Purchasable {
		return Item{}, fmt.Errorf("%s[%d] is not purchasable: %w", typ, id, ErrNotFound)
	}

	return it, nil
}
