package kv

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Postgres, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return NewPostgresWithDB(sqlxdb), mock, func() {
		db.Close()
	}
}

func TestPostgresGet(t *testing.T) {
	store, mock, cleanup := newMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"value"}).AddRow(`{"hello":"world"}`)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM app_state WHERE key = $1 LIMIT 1")).
		WithArgs("studyhelper_requests").
		WillReturnRows(rows)

	value, err := store.Get(context.Background(), "studyhelper_requests")
	require.NoError(t, err)
	assert.Equal(t, `{"hello":"world"}`, value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetMissingKey(t *testing.T) {
	store, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM app_state WHERE key = $1 LIMIT 1")).
		WithArgs("absent").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, err := store.Get(context.Background(), "absent")
	require.ErrorIs(t, err, ErrKeyNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetUpserts(t *testing.T) {
	store, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO app_state").WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Set(context.Background(), "studyhelper_auth", `{"role":"fulfiller"}`)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDelete(t *testing.T) {
	store, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM app_state WHERE key = $1")).
		WithArgs("studyhelper_auth").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Delete(context.Background(), "studyhelper_auth")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
