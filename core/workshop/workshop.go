package workshop

import "time"

type Workshop struct {
	ID          int64     `json:"id" db:"workshop_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	StartsAt    time.Time `json:"starts_at" db:"starts_at"`
	Location    string    `json:"location" db:"location"`
	Price       int64     `json:"price" db:"price"`
	Currency    string    `json:"currency" db:"currency"`
	Capacity    int       `json:"capacity" db:"capacity"`
	SeatsTaken  int       `json:"seats_taken" db:"seats_taken"`
	Published   bool      `json:"-" db:"published"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// SeatsLeft reports the remaining seats. A zero capacity means unlimited.
func (w Workshop) SeatsLeft() (int, bool) {
	if w.Capacity == 0 {
		return 0, false
	}
	left := w.Capacity - w.SeatsTaken
	if left < 0 {
		left = 0
	}
	return left, true
}

func (w Workshop) SoldOut() bool {
	left, limited := w.SeatsLeft()
	return limited && left == 0
}

type Application struct {
	WorkshopID      int64     `json:"workshop_id" db:"workshop_id"`
	Email           string    `json:"email" db:"email"`
	Name            string    `json:"name" db:"name"`
	Phone           string    `json:"phone" db:"phone"`
	ExperienceLevel string    `json:"experience_level" db:"experience_level"`
	OrderID         string    `json:"order_id" db:"order_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
