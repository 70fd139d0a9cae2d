package database

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"invoiceapi/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	base := config.DatabaseConfig{Host: "db", Port: "5432", User: "importer", Name: "invoices"}

	tests := []struct {
		name    string
		mutate  func(c *config.DatabaseConfig)
		want    string
		wantErr bool
	}{
		{
			name: "password and sslmode",
			mutate: func(c *config.DatabaseConfig) {
				c.Password = "p@ss"
				c.SSLMode = "disable"
			},
			want: "postgres://importer:p%40ss@db:5432/invoices?application_name=invoiceapi&sslmode=disable",
		},
		{
			name:   "no password, no sslmode",
			mutate: func(c *config.DatabaseConfig) {},
			want:   "postgres://importer@db:5432/invoices?application_name=invoiceapi",
		},
		{name: "missing host", mutate: func(c *config.DatabaseConfig) { c.Host = "" }, wantErr: true},
		{name: "missing port", mutate: func(c *config.DatabaseConfig) { c.Port = "" }, wantErr: true},
		{name: "missing user", mutate: func(c *config.DatabaseConfig) { c.User = "" }, wantErr: true},
		{name: "missing name", mutate: func(c *config.DatabaseConfig) { c.Name = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			got, err := BuildPostgresDSN(c)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// stubOpen makes NewPostgres use db instead of dialing.
func stubOpen(t *testing.T, db *sql.DB, err error) {
	t.Helper()
	origOpen, origDelay := sqlOpen, retryDelay
	sqlOpen = func(driverName, dataSourceName string) (*sql.DB, error) {
		assert.Contains(t, dataSourceName, "application_name=invoiceapi")
		return db, err
	}
	retryDelay = time.Millisecond
	t.Cleanup(func() {
		sqlOpen = origOpen
		retryDelay = origDelay
	})
}

func TestNewPostgres(t *testing.T) {
	conf := config.DatabaseConfig{
		Host:               "db",
		Port:               "5432",
		User:               "importer",
		Password:           "pass",
		Name:               "invoices",
		MaxOpenConns:       10,
		MaxIdleConns:       5,
		ConnMaxLifetimeSec: 300,
		ConnectAttempts:    3,
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("first ping succeeds", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		stubOpen(t, db, nil)

		mock.ExpectPing()

		gotDB, err := NewPostgres(ctx, conf, logger)
		assert.NoError(t, err)
		assert.NotNil(t, gotDB)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database comes up on a later attempt", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		stubOpen(t, db, nil)

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		mock.ExpectPing().WillReturnError(errors.New("the database system is starting up"))
		mock.ExpectPing()

		gotDB, err := NewPostgres(ctx, conf, logger)
		assert.NoError(t, err)
		assert.NotNil(t, gotDB)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		stubOpen(t, db, nil)

		for i := 0; i < 3; i++ {
			mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		}
		mock.ExpectClose()

		gotDB, err := NewPostgres(ctx, conf, logger)
		assert.ErrorContains(t, err, "db ping: connection refused")
		assert.Nil(t, gotDB)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		stubOpen(t, db, nil)
		retryDelay = time.Hour

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		mock.ExpectClose()

		cctx, cancel := context.WithCancel(ctx)
		time.AfterFunc(20*time.Millisecond, cancel)

		gotDB, err := NewPostgres(cctx, conf, logger)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, gotDB)
	})

	t.Run("sqlOpen error", func(t *testing.T) {
		stubOpen(t, nil, errors.New("open error"))

		gotDB, err := NewPostgres(ctx, conf, logger)
		assert.ErrorContains(t, err, "sql open: open error")
		assert.Nil(t, gotDB)
	})

	t.Run("invalid DSN", func(t *testing.T) {
		gotDB, err := NewPostgres(ctx, config.DatabaseConfig{}, logger)
		assert.Error(t, err)
		assert.Nil(t, gotDB)
	})
}

func TestPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	assert.NoError(t, Ping(context.Background(), db, time.Second))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, Ping(context.Background(), db, time.Second))
	assert.NoError(t, mock.ExpectationsWereMet())
}
