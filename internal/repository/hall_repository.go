package repository // repository holds data access logic for domain entities

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// HallRepo provides methods to create and retrieve cinema halls. Rows and
// SeatsInRow describe the seat layout and bound every ticket sold for a
// session in the hall.
type HallRepo struct {
	db *sql.DB // db is the underlying database connection
}

// NewHallRepo constructs a HallRepo with the given DB handle.
func NewHallRepo(db *sql.DB) *HallRepo {
	return &HallRepo{db: db}
}

const hallColumns = `id, name, rows_count, seats_in_row`

// Create inserts a new hall into the database. After insert the ID field
// of the hall will be set.
func (r *HallRepo) Create(ctx context.Context, h *model.CinemaHall) error {
	const q = `INSERT INTO cinema_halls (name, rows_count, seats_in_row) VALUES (?, ?, ?)`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, h.Name, h.Rows, h.SeatsInRow)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	return nil
}

// GetByID retrieves a hall by its ID. It returns ErrHallNotFound when no
// row is found.
func (r *HallRepo) GetByID(ctx context.Context, id uint64) (*model.CinemaHall, error) {
	const q = `SELECT ` + hallColumns + ` FROM cinema_halls WHERE id = ?`
	var h model.CinemaHall
	err := conn(ctx, r.db).QueryRowContext(ctx, q, id).Scan(&h.ID, &h.Name, &h.Rows, &h.SeatsInRow)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHallNotFound
		}
		return nil, err
	}
	return &h, nil
}

// List returns every hall ordered by id.
func (r *HallRepo) List(ctx context.Context) ([]model.CinemaHall, error) {
	const q = `SELECT ` + hallColumns + ` FROM cinema_halls ORDER BY id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.CinemaHall{}
	for rows.Next() {
		var h model.CinemaHall
		if err := rows.Scan(&h.ID, &h.Name, &h.Rows, &h.SeatsInRow); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Update rewrites name and geometry. Shrinking a hall below already sold
// places is not checked here.
func (r *HallRepo) Update(ctx context.Context, h *model.CinemaHall) error {
	const q = `UPDATE cinema_halls SET name = ?, rows_count = ?, seats_in_row = ? WHERE id = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, h.Name, h.Rows, h.SeatsInRow, h.ID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, ErrHallNotFound)
}

// Delete removes a hall. A hall referenced by a session yields ErrConflict.
func (r *HallRepo) Delete(ctx context.Context, id uint64) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM cinema_halls WHERE id = ?`, id)
	if err != nil {
		if isReferenced(err) {
			return ErrConflict
		}
		return err
	}
	return affectedOrNotFound(res, ErrHallNotFound)
}
