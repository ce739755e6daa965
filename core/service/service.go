package service

import "time"

// Service is a bookable one-to-one offering such as a portfolio review or a
// mentoring call.
type Service struct {
	ID          int64     `json:"id" db:"service_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	DurationMin int       `json:"duration_min" db:"duration_min"`
	Price       int64     `json:"price" db:"price"`
	Currency    string    `json:"currency" db:"currency"`
	Published   bool      `json:"-" db:"published"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Booking struct {
	ServiceID     int64     `json:"service_id" db:"service_id"`
	Email         string    `json:"email" db:"email"`
	Name          string    `json:"name" db:"name"`
	Phone         string    `json:"phone" db:"phone"`
	ContactMethod string    `json:"contact_method" db:"contact_method"`
	Message       string    `json:"message" db:"message"`
	OrderID       string    `json:"order_id" db:"order_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
