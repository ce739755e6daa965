package course

import "time"

type Course struct {
	ID          int64     `json:"id" db:"course_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	ImageURL    string    `json:"image_url" db:"image_url"`
	Price       int64     `json:"price" db:"price"`
	Currency    string    `json:"currency" db:"currency"`
	Published   bool      `json:"-" db:"published"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Enrollment links a purchaser to a course once its order has been paid.
type Enrollment struct {
	CourseID  int64     `json:"course_id" db:"course_id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	OrderID   string    `json:"order_id" db:"order_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
