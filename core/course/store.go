package course

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/traderfolio/database"
	"github.com/jmoiron/sqlx"
)

func Fetch(ctx context.Context, db sqlx.ExtContext, id int64) (Course, error) {
	in := struct {
		ID int64 `db:"course_id"`
	}{
		ID: id,
	}

	const q = `
	SELECT
		*
	FROM
		courses
	WHERE
		course_id = :course_id`

	var c Course
	if err := database.NamedQueryStruct(ctx, db, q, in, &c); err != nil {
		return Course{}, fmt.Errorf("selecting course[%d]: %w", id, err)
	}

	return c, nil
}

func List(ctx context.Context, db sqlx.ExtContext) ([]Course, error) {
	const q = `
	SELECT
		*
	FROM
		courses
	WHERE
		published = TRUE
	ORDER BY
		created_at DESC, course_id DESC`

	courses := []Course{}
	if err := database.NamedQuerySlice(ctx, db, q, struct{}{}, &courses); err != nil {
		return nil, fmt.Errorf("selecting courses: %w", err)
	}

	return courses, nil
}

// Enroll records the enrollment. Enrolling the same email twice is a no-op.
func Enroll(ctx context.Context, db sqlx.ExtContext, en Enrollment) error {
	const q = `
	INSERT INTO enrollments
		(course_id, email, name, order_id, created_at)
	VALUES
		(:course_id, :email, :name, :order_id, :created_at)
	ON CONFLICT DO NOTHING`

	if _, err := database.NamedExecContext(ctx, db, q, en); err != nil {
		return fmt.Errorf("inserting enrollment for course[%d]: %w", en.CourseID, err)
	}

	return nil
}

func CountEnrollments(ctx context.Context, db sqlx.ExtContext, courseID int64, email string) (int, error) {
	in := struct {
		CourseID int64  `db:"course_id"`
		Email    string `db:"email"`
	}{
		CourseID: courseID,
		Email:    email,
	}

	const q = `
	SELECT
		count(*) AS n
	FROM
		enrollments
	WHERE
		course_id = :course_id AND email = :email`

	var out struct {
		N int `db:"n"`
	}
	if err := database.NamedQueryStruct(ctx, db, q, in, &out); err != nil {
		return 0, fmt.Errorf("counting enrollments for course[%d]: %w", courseID, err)
	}

	return out.N, nil
}
