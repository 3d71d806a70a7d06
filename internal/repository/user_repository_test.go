package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cinema-booking/internal/model"
)

func TestUserRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	insert := regexp.QuoteMeta(`INSERT INTO users (email, password_hash, role) VALUES (?,?,?)`)
	mock.ExpectExec(insert).
		WithArgs("ann@example.com", sqlmock.AnyArg(), model.RoleCustomer).
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectExec(insert).
		WithArgs("ann@example.com", sqlmock.AnyArg(), model.RoleCustomer).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	repo := NewUserRepo(db)
	id, err := repo.Create(context.Background(), " Ann@Example.com", "secret-pass", model.RoleCustomer, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), id)

	_, err = repo.Create(context.Background(), "ann@example.com", "secret-pass", model.RoleCustomer, bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_SetRoleAndLookup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE users SET role=\? WHERE email=\?`).
		WithArgs(model.RoleAdmin, "nobody@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM users WHERE email=\?`).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewUserRepo(db)
	err = repo.SetRole(context.Background(), "Nobody@example.com", model.RoleAdmin)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
