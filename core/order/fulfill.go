package order

import (
	"context"
	"fmt"
	"time"

	"github.com/irsalhamdi/traderfolio/core/course"
	"github.com/irsalhamdi/traderfolio/core/item"
	"github.com/irsalhamdi/traderfolio/core/service"
	"github.com/irsalhamdi/traderfolio/core/workshop"
	"github.com/jmoiron/sqlx"
)

// Fulfiller runs the success action of a paid order inside the transaction
// that completed it. Implementations must be idempotent.
type Fulfiller interface {
	Fulfill(ctx context.Context, tx sqlx.ExtContext, ord Order) error
}

type FulfillerFunc func(ctx context.Context, tx sqlx.ExtContext, ord Order) error

func (f FulfillerFunc) Fulfill(ctx context.Context, tx sqlx.ExtContext, ord Order) error {
	return f(ctx, tx, ord)
}

func DefaultFulfillers() map[item.Type]Fulfiller {
	return map[item.Type]Fulfiller{
		item.Course:   FulfillerFunc(enroll),
		item.Workshop: FulfillerFunc(apply),
		item.Service:  FulfillerFunc(book),
	}
}

func completedAt(ord Order) time.Time {
	if ord.CompletedAt != nil {
		return *ord.CompletedAt
	}
	return time.Now().UTC()
}

func enroll(ctx context.Context, tx sqlx.ExtContext, ord Order) error {
	en := course.Enrollment{
		CourseID:  ord.ItemID,
		Email:     ord.Email,
		Name:      ord.Name,
		OrderID:   ord.ID,
		CreatedAt: completedAt(ord),
	}

	if err := course.Enroll(ctx, tx, en); err != nil {
		return fmt.Errorf("enrolling %s: %w", ord.Email, err)
	}
	return nil
}

func apply(ctx context.Context, tx sqlx.ExtContext, ord Order) error {
	app := workshop.Application{
		WorkshopID:      ord.ItemID,
		Email:           ord.Email,
		Name:            ord.Name,
		Phone:           ord.Phone,
		ExperienceLevel: ord.Extra["experience_level"],
		OrderID:         ord.ID,
		CreatedAt:       completedAt(ord),
	}

	if err := workshop.Apply(ctx, tx, app); err != nil {
		return fmt.Errorf("confirming seat for %s: %w", ord.Email, err)
	}
	return nil
}

func book(ctx context.Context, tx sqlx.ExtContext, ord Order) error {
	b := service.Booking{
		ServiceID:     ord.ItemID,
		Email:         ord.Email,
		Name:          ord.Name,
		Phone:         ord.Phone,
		ContactMethod: ord.Extra["contact_method"],
		Message:       ord.Extra["message"],
		OrderID:       ord.ID,
		CreatedAt:     completedAt(ord),
	}

	if err := service.Book(ctx, tx, b); err != nil {
		return fmt.Errorf("logging booking for %s: %w", ord.Email, err)
	}
	return nil
}
