package user

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).
		AddRow(id.String(), "maria@example.com", "hash", time.Now())
	mock.ExpectQuery("SELECT id, email, password_hash, created_at FROM users WHERE id =").WillReturnRows(rows)

	repo := NewRepository(db)
	u, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "maria@example.com", u.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDUnknownUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, email, password_hash, created_at FROM users WHERE id =").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}))

	repo := NewRepository(db)
	u, err := repo.GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterValidation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	_, err = repo.Register(context.Background(), "not-an-email", "secret")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = repo.Register(context.Background(), "maria@example.com", "")
	assert.ErrorIs(t, err, ErrBlankPassword)
}
